// Package statemachine tracks per-task settlement phase on both the
// executor side (authoritative) and the commander side (a shadow
// projection derived from received messages), enforcing the protocol's
// transition guards.
package statemachine

import (
	"scrap-protocol/messages"
	"scrap-protocol/scraperr"
	"scrap-protocol/settlement"
)

// Phase is a settlement lifecycle stage.
type Phase int

const (
	Requested Phase = iota
	Locked
	Accepted
	ProofSent
	Claimed
	Rejected
)

// ExecutorState is the authoritative per-task settlement record owned by
// the executor that admitted the request.
type ExecutorState struct {
	TaskID            string
	CorrelationID     [32]byte
	RequestTimestamp  uint32
	MaxAmountSats     uint64
	TimeoutBlocks     uint32
	Phase             Phase
	LockedAmountSats  uint64
}

// NewExecutorState creates a Requested-phase state from a verified request.
func NewExecutorState(req *messages.TaskRequest) *ExecutorState {
	return &ExecutorState{
		TaskID:           req.TaskID,
		CorrelationID:    req.RequestHash(),
		RequestTimestamp: req.Timestamp,
		MaxAmountSats:    req.PaymentMaxSats,
		TimeoutBlocks:    req.TimeoutBlocks,
		Phase:            Requested,
	}
}

// deadline is the Unix-second timestamp past which the task is stale.
func (s *ExecutorState) deadline() uint64 {
	return uint64(s.RequestTimestamp) + uint64(s.TimeoutBlocks)
}

// TimedOut reports whether now is past the task's request deadline.
func (s *ExecutorState) TimedOut(now uint64) bool {
	return now > s.deadline()
}

// ApplyLock validates and applies an incoming PaymentLock. A second lock
// for an already-Locked task is ignored (not rejected) per the tie-break
// rule; any other phase rejects the lock as out-of-order.
func (s *ExecutorState) ApplyLock(lock *messages.PaymentLock, now uint64) error {
	if s.Phase == Locked {
		return nil
	}
	if s.Phase != Requested {
		return scraperr.Wrap(scraperr.ErrConstraintViolation, "payment_lock out of order")
	}
	if lock.TaskID != s.TaskID {
		return scraperr.Wrap(scraperr.ErrCorrelationMismatch, "lock task_id mismatch")
	}
	if lock.CorrelationID != s.CorrelationID {
		return scraperr.Wrap(scraperr.ErrCorrelationMismatch, "lock correlation_id mismatch")
	}
	if lock.AmountSats > s.MaxAmountSats {
		return scraperr.Wrap(scraperr.ErrAmountExceedsOffer, "lock amount exceeds offer")
	}
	if lock.TimeoutBlocks != s.TimeoutBlocks {
		return scraperr.Wrap(scraperr.ErrConstraintViolation, "lock timeout_blocks mismatch")
	}
	if now > s.deadline() {
		s.Phase = Rejected
		return scraperr.Wrap(scraperr.ErrTimeoutElapsed, "lock arrived after timeout")
	}
	expected := settlement.DerivePaymentHash(s.CorrelationID)
	if lock.PaymentHash != [32]byte(expected) {
		return scraperr.Wrap(scraperr.ErrPaymentHashMismatch, "lock payment_hash mismatch")
	}
	s.Phase = Locked
	s.LockedAmountSats = lock.AmountSats
	return nil
}

// CanEmitAccept reports whether the task is ready for the executor to
// emit a TaskAccept.
func (s *ExecutorState) CanEmitAccept() bool {
	return s.Phase == Locked
}

// MarkAccepted transitions Locked -> Accepted after a TaskAccept is emitted.
func (s *ExecutorState) MarkAccepted() error {
	if s.Phase != Locked {
		return scraperr.Wrap(scraperr.ErrConstraintViolation, "accept emitted out of order")
	}
	s.Phase = Accepted
	return nil
}

// CanEmitProof reports whether the task is ready for the executor to emit
// an ExecutionProof once the work is done.
func (s *ExecutorState) CanEmitProof() bool {
	return s.Phase == Accepted || s.Phase == Locked
}

// MarkProofSent transitions Accepted/Locked -> ProofSent.
func (s *ExecutorState) MarkProofSent() error {
	if !s.CanEmitProof() {
		return scraperr.Wrap(scraperr.ErrConstraintViolation, "proof emitted out of order")
	}
	s.Phase = ProofSent
	return nil
}

// MarkClaimed transitions ProofSent -> Claimed once the preimage has been
// revealed via PaymentClaim.
func (s *ExecutorState) MarkClaimed() error {
	if s.Phase != ProofSent {
		return scraperr.Wrap(scraperr.ErrConstraintViolation, "claim emitted out of order")
	}
	s.Phase = Claimed
	return nil
}

// Reject forces the task into Rejected, e.g. on timeout or guard failure.
// Idempotent: rejecting an already-Rejected task is a no-op.
func (s *ExecutorState) Reject() {
	s.Phase = Rejected
}

// ExpireIfTimedOut moves the task to Rejected if now is past its deadline
// and it has not already reached a terminal phase.
func (s *ExecutorState) ExpireIfTimedOut(now uint64) bool {
	if s.Phase == Claimed || s.Phase == Rejected {
		return false
	}
	if s.TimedOut(now) {
		s.Phase = Rejected
		return true
	}
	return false
}
