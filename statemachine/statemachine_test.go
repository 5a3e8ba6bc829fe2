package statemachine

import (
	"testing"

	"scrap-protocol/messages"
	"scrap-protocol/settlement"
)

func fixtureRequest() *messages.TaskRequest {
	return &messages.TaskRequest{
		TaskID:          "task-flow",
		Timestamp:       1,
		CapabilityToken: []byte{0x01, 0x02},
		TaskType:        "cmd:imaging:msi",
		TargetJSON:      "{}",
		ParametersJSON:  "{}",
		ConstraintsJSON: "{}",
		PaymentMaxSats:  20000,
		TimeoutBlocks:   144,
	}
}

func TestExecutorHappyPathToClaimed(t *testing.T) {
	req := fixtureRequest()
	state := NewExecutorState(req)
	if state.Phase != Requested {
		t.Fatalf("expected initial phase Requested")
	}

	lock := &messages.PaymentLock{
		TaskID:        req.TaskID,
		CorrelationID: state.CorrelationID,
		PaymentHash:   [32]byte(settlement.DerivePaymentHash(state.CorrelationID)),
		AmountSats:    15000,
		TimeoutBlocks: req.TimeoutBlocks,
		Timestamp:     2,
	}
	if err := state.ApplyLock(lock, 2); err != nil {
		t.Fatalf("apply lock: %v", err)
	}
	if state.Phase != Locked {
		t.Fatalf("expected Locked, got %v", state.Phase)
	}

	if !state.CanEmitAccept() {
		t.Fatalf("expected CanEmitAccept after lock")
	}
	if err := state.MarkAccepted(); err != nil {
		t.Fatalf("mark accepted: %v", err)
	}
	if err := state.MarkProofSent(); err != nil {
		t.Fatalf("mark proof sent: %v", err)
	}
	if err := state.MarkClaimed(); err != nil {
		t.Fatalf("mark claimed: %v", err)
	}
	if state.Phase != Claimed {
		t.Fatalf("expected Claimed, got %v", state.Phase)
	}
}

func TestDuplicateLockOnLockedTaskIgnored(t *testing.T) {
	req := fixtureRequest()
	state := NewExecutorState(req)
	lock := &messages.PaymentLock{
		TaskID:        req.TaskID,
		CorrelationID: state.CorrelationID,
		PaymentHash:   [32]byte(settlement.DerivePaymentHash(state.CorrelationID)),
		AmountSats:    15000,
		TimeoutBlocks: req.TimeoutBlocks,
	}
	if err := state.ApplyLock(lock, 2); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if err := state.ApplyLock(lock, 2); err != nil {
		t.Fatalf("duplicate lock on already-locked task must be ignored, not rejected: %v", err)
	}
	if state.Phase != Locked {
		t.Fatalf("expected phase to remain Locked")
	}
}

func TestAmountExceedsOfferRejected(t *testing.T) {
	req := fixtureRequest()
	state := NewExecutorState(req)
	lock := &messages.PaymentLock{
		TaskID:        req.TaskID,
		CorrelationID: state.CorrelationID,
		PaymentHash:   [32]byte(settlement.DerivePaymentHash(state.CorrelationID)),
		AmountSats:    req.PaymentMaxSats + 1,
		TimeoutBlocks: req.TimeoutBlocks,
	}
	if err := state.ApplyLock(lock, 2); err == nil {
		t.Fatalf("expected rejection of amount exceeding offer")
	}
}

func TestAmountEqualsMaxAccepted(t *testing.T) {
	req := fixtureRequest()
	state := NewExecutorState(req)
	lock := &messages.PaymentLock{
		TaskID:        req.TaskID,
		CorrelationID: state.CorrelationID,
		PaymentHash:   [32]byte(settlement.DerivePaymentHash(state.CorrelationID)),
		AmountSats:    req.PaymentMaxSats,
		TimeoutBlocks: req.TimeoutBlocks,
	}
	if err := state.ApplyLock(lock, 2); err != nil {
		t.Fatalf("amount_sats == max_amount_sats must be accepted: %v", err)
	}
}

func TestTimeoutBlocksZeroInstantlyExpired(t *testing.T) {
	req := fixtureRequest()
	req.TimeoutBlocks = 0
	req.Timestamp = 100
	state := NewExecutorState(req)
	if !state.TimedOut(101) {
		t.Fatalf("timeout_blocks == 0 must be instantly expired once observed past request_timestamp")
	}
}

func TestLockAfterTimeoutRejectedAndMarksRejected(t *testing.T) {
	req := fixtureRequest()
	req.TimeoutBlocks = 10
	req.Timestamp = 100
	state := NewExecutorState(req)
	lock := &messages.PaymentLock{
		TaskID:        req.TaskID,
		CorrelationID: state.CorrelationID,
		PaymentHash:   [32]byte(settlement.DerivePaymentHash(state.CorrelationID)),
		AmountSats:    1000,
		TimeoutBlocks: req.TimeoutBlocks,
	}
	if err := state.ApplyLock(lock, 200); err == nil {
		t.Fatalf("expected timeout rejection")
	}
	if state.Phase != Rejected {
		t.Fatalf("expected phase Rejected after timeout, got %v", state.Phase)
	}
}

func TestCommanderRefusesAcceptExceedingOffer(t *testing.T) {
	req := fixtureRequest()
	req.PaymentMaxSats = 10000
	cs := NewCommanderState(req)
	if err := cs.ObserveLock(); err != nil {
		t.Fatalf("observe lock: %v", err)
	}
	accept := &messages.TaskAccept{AmountSats: 20000}
	if err := cs.ObserveAccept(accept); err == nil {
		t.Fatalf("expected rejection of accept amount exceeding offer")
	}
}

func TestCommanderRefusesClaimBeforeProof(t *testing.T) {
	req := fixtureRequest()
	cs := NewCommanderState(req)
	cs.ObserveLock()
	cs.ObserveAccept(&messages.TaskAccept{AmountSats: req.PaymentMaxSats})
	claim := &messages.PaymentClaim{Preimage: [32]byte{1}, PaymentHash: cs.PaymentHash}
	if err := cs.ObserveClaim(claim); err == nil {
		t.Fatalf("expected rejection of claim arriving before proof")
	}
}

func TestCommanderRefusesPreimageMismatch(t *testing.T) {
	req := fixtureRequest()
	cs := NewCommanderState(req)
	cs.ObserveLock()
	cs.ObserveAccept(&messages.TaskAccept{AmountSats: req.PaymentMaxSats})
	cs.ObserveProof()

	badClaim := &messages.PaymentClaim{Preimage: [32]byte{0xFF}, PaymentHash: cs.PaymentHash}
	if err := cs.ObserveClaim(badClaim); err == nil {
		t.Fatalf("expected rejection of mismatched preimage")
	}
	if cs.Phase == CClaimed {
		t.Fatalf("task must not transition to Claimed on preimage mismatch")
	}
}

func TestCommanderHappyPathToClaimed(t *testing.T) {
	req := fixtureRequest()
	cs := NewCommanderState(req)
	if err := cs.ObserveLock(); err != nil {
		t.Fatalf("observe lock: %v", err)
	}
	if err := cs.ObserveAccept(&messages.TaskAccept{AmountSats: 15000}); err != nil {
		t.Fatalf("observe accept: %v", err)
	}
	if err := cs.ObserveProof(); err != nil {
		t.Fatalf("observe proof: %v", err)
	}
	preimage := settlement.DerivePreimage(cs.CorrelationID)
	claim := &messages.PaymentClaim{Preimage: [32]byte(preimage), PaymentHash: cs.PaymentHash}
	if err := cs.ObserveClaim(claim); err != nil {
		t.Fatalf("observe claim: %v", err)
	}
	if cs.Phase != CClaimed {
		t.Fatalf("expected CClaimed, got %v", cs.Phase)
	}
}
