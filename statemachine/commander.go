package statemachine

import (
	"scrap-protocol/messages"
	"scrap-protocol/scraperr"
	"scrap-protocol/settlement"
)

// CommanderPhase is the commander-side shadow lifecycle, mirroring but not
// identical to ExecutorState's phases (it tracks what the commander has
// observed, not what the executor has decided).
type CommanderPhase int

const (
	Sent CommanderPhase = iota
	CLocked
	CAccepted
	ProofReceived
	CClaimed
)

// CommanderState is the commander's local projection of a task's
// settlement progress, built purely from messages it has sent or received.
type CommanderState struct {
	TaskID        string
	CorrelationID [32]byte
	OfferedSats   uint64
	PaymentHash   [32]byte
	Phase         CommanderPhase
}

// NewCommanderState creates a Sent-phase projection right after a
// commander emits its own TaskRequest.
func NewCommanderState(req *messages.TaskRequest) *CommanderState {
	cid := req.RequestHash()
	return &CommanderState{
		TaskID:        req.TaskID,
		CorrelationID: cid,
		OfferedSats:   req.PaymentMaxSats,
		PaymentHash:   [32]byte(settlement.DerivePaymentHash(cid)),
		Phase:         Sent,
	}
}

// ObserveLock transitions Sent -> CLocked once the commander's own lock
// has been sent (the commander drives this transition itself, there is no
// guard against an external party here).
func (s *CommanderState) ObserveLock() error {
	if s.Phase != Sent {
		return scraperr.Wrap(scraperr.ErrConstraintViolation, "lock observed out of order")
	}
	s.Phase = CLocked
	return nil
}

// ObserveAccept validates and records an incoming TaskAccept. Refuses an
// accept whose amount exceeds the commander's own offer, and refuses one
// that arrives before a lock was sent.
func (s *CommanderState) ObserveAccept(accept *messages.TaskAccept) error {
	if s.Phase != CLocked {
		return scraperr.Wrap(scraperr.ErrConstraintViolation, "accept observed out of order")
	}
	if accept.AmountSats > s.OfferedSats {
		return scraperr.Wrap(scraperr.ErrAmountExceedsOffer, "accept amount exceeds offer")
	}
	s.Phase = CAccepted
	return nil
}

// ObserveProof records receipt of an ExecutionProof. Must follow an accept.
func (s *CommanderState) ObserveProof() error {
	if s.Phase != CAccepted {
		return scraperr.Wrap(scraperr.ErrConstraintViolation, "proof observed out of order")
	}
	s.Phase = ProofReceived
	return nil
}

// ObserveClaim validates and records an incoming PaymentClaim. Refuses a
// claim that arrives before a proof, and refuses one whose preimage does
// not redeem the expected payment_hash.
func (s *CommanderState) ObserveClaim(claim *messages.PaymentClaim) error {
	if s.Phase != ProofReceived {
		return scraperr.Wrap(scraperr.ErrConstraintViolation, "claim observed before proof")
	}
	if !settlement.PreimageRedeemsHash(claim.Preimage, s.PaymentHash) {
		return scraperr.Wrap(scraperr.ErrPaymentHashMismatch, "claim preimage does not redeem payment hash")
	}
	s.Phase = CClaimed
	return nil
}
