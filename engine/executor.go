// Package engine drives the settlement kernel end to end: it composes the
// verifier, the replay/revocation guard, and the per-task state machines
// into the executor- and commander-side runtimes a host embeds. All
// message verification and state transitions happen here; transport and
// persistence stay with the host.
package engine

import (
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"

	"scrap-protocol/clock"
	"scrap-protocol/messages"
	"scrap-protocol/replay"
	"scrap-protocol/scraperr"
	"scrap-protocol/settlement"
	"scrap-protocol/statemachine"
	"scrap-protocol/token"
	"scrap-protocol/verifier"
)

// executorTask pairs a task's settlement state with the token that
// authorized it; the token id is needed again when the proof is emitted.
type executorTask struct {
	state   *statemachine.ExecutorState
	tokenID [16]byte
}

// Executor is the authoritative settlement runtime for one executor
// identity. It admits verified task requests behind the replay guard,
// validates payment locks, and emits the signed accept/proof/claim
// messages that advance a task to Claimed.
type Executor struct {
	priv  *btcec.PrivateKey
	ver   *verifier.Verifier
	guard replay.Guard
	clk   clock.Clock

	mu    sync.Mutex
	tasks map[string]*executorTask
}

// NewExecutor constructs an executor runtime. operatorPubkey is the
// operator this executor trusts as token issuer; the executor's own
// public key is derived from priv.
func NewExecutor(priv *btcec.PrivateKey, operatorPubkey []byte, guard replay.Guard, clk clock.Clock) *Executor {
	return &Executor{
		priv:  priv,
		ver:   verifier.New(operatorPubkey, priv.PubKey().SerializeCompressed(), clk),
		guard: guard,
		clk:   clk,
		tasks: make(map[string]*executorTask),
	}
}

// Admit verifies an incoming TaskRequest and, if it passes every
// synchronous check, records a Requested-phase settlement entry. The
// replay and revocation guards run after verification but before any
// state is created, so a rejected request leaves no partial state behind.
func (e *Executor) Admit(req *messages.TaskRequest) (*statemachine.ExecutorState, error) {
	if err := e.ver.VerifyRequest(req); err != nil {
		return nil, err
	}
	tok, err := token.DecodeTLV(req.CapabilityToken)
	if err != nil {
		return nil, err
	}
	if e.guard.IsRevoked(tok.TokenID) {
		return nil, scraperr.Wrap(scraperr.ErrRevoked, "capability token revoked")
	}
	status, err := e.guard.CheckAndInsert(tok.TokenID)
	if err != nil {
		return nil, err
	}
	switch status {
	case replay.Replay:
		return nil, scraperr.Wrap(scraperr.ErrReplay, "capability token already used")
	case replay.Unavailable:
		return nil, scraperr.Wrap(scraperr.ErrUnavailable, "replay guard unavailable")
	}

	state := statemachine.NewExecutorState(req)
	e.mu.Lock()
	e.tasks[req.TaskID] = &executorTask{state: state, tokenID: tok.TokenID}
	e.mu.Unlock()
	return state, nil
}

// HandleLock applies an incoming PaymentLock to its task. On a guard
// failure the task is rejected and the returned TaskReject carries the
// reason back to the commander; a duplicate lock on an already-Locked
// task returns (nil, nil) per the ignore-not-reject tie-break.
func (e *Executor) HandleLock(lock *messages.PaymentLock) (*messages.TaskReject, error) {
	task, err := e.lookup(lock.TaskID)
	if err != nil {
		return nil, err
	}
	if err := task.state.ApplyLock(lock, e.clk.Now()); err != nil {
		task.state.Reject()
		return &messages.TaskReject{
			TaskID:    lock.TaskID,
			Reason:    "lock_rejected",
			Details:   err.Error(),
			Timestamp: uint32(e.clk.Now()),
		}, err
	}
	return nil, nil
}

// AcceptParams carries the executor-chosen fields of a TaskAccept that
// the state machine does not derive itself.
type AcceptParams struct {
	Description          string
	ExpirySec            uint32
	EstimatedDurationSec uint32
	EarliestStart        uint32
	DataVolumeMB         uint32
	QualityEstimate      uint32
}

// EmitAccept builds and signs the TaskAccept for a Locked task and
// transitions it to Accepted. The accept replies to the request hash
// (the task's correlation id) and echoes the locked amount.
func (e *Executor) EmitAccept(taskID string, params AcceptParams) (*messages.TaskAccept, error) {
	task, err := e.lookup(taskID)
	if err != nil {
		return nil, err
	}
	if !task.state.CanEmitAccept() {
		return nil, scraperr.Wrap(scraperr.ErrConstraintViolation, "accept requires a locked task")
	}

	accept := &messages.TaskAccept{
		TaskID:               taskID,
		Timestamp:            uint32(e.clk.Now()),
		InReplyTo:            task.state.CorrelationID,
		PaymentHash:          [32]byte(settlement.DerivePaymentHash(task.state.CorrelationID)),
		AmountSats:           task.state.LockedAmountSats,
		ExpirySec:            params.ExpirySec,
		Description:          params.Description,
		EstimatedDurationSec: params.EstimatedDurationSec,
		EarliestStart:        params.EarliestStart,
		DataVolumeMB:         params.DataVolumeMB,
		QualityEstimate:      params.QualityEstimate,
	}
	sig, err := signSchnorr(e.priv, accept.ExecutorSigningHash())
	if err != nil {
		return nil, err
	}
	accept.ExecutorSignature = sig

	if err := task.state.MarkAccepted(); err != nil {
		return nil, err
	}
	return accept, nil
}

// EmitProof builds and signs the ExecutionProof for a finished task,
// binding the authorizing token id, the task's payment hash, and the
// SHA-256 of the out-of-band output artifact.
func (e *Executor) EmitProof(taskID string, outputHash [32]byte) (*messages.ProofOfExecution, error) {
	task, err := e.lookup(taskID)
	if err != nil {
		return nil, err
	}
	if !task.state.CanEmitProof() {
		return nil, scraperr.Wrap(scraperr.ErrConstraintViolation, "proof requires an accepted task")
	}

	proof := &messages.ProofOfExecution{
		TaskID:             taskID,
		TaskTokenID:        task.tokenID,
		PaymentHash:        [32]byte(settlement.DerivePaymentHash(task.state.CorrelationID)),
		OutputHash:         outputHash,
		ExecutionTimestamp: uint32(e.clk.Now()),
		ExecutorPubkey:     e.priv.PubKey().SerializeCompressed(),
	}
	if err := settlement.SignProof(e.priv, proof); err != nil {
		return nil, err
	}
	if err := task.state.MarkProofSent(); err != nil {
		return nil, err
	}
	return proof, nil
}

// EmitClaim reveals the task's preimage, transitioning it to the
// terminal Claimed phase. The preimage is derived from the correlation
// id, so the commander (and the payment adapter behind it) can check
// SHA256(preimage) against the payment hash it locked funds under.
func (e *Executor) EmitClaim(taskID string) (*messages.PaymentClaim, error) {
	task, err := e.lookup(taskID)
	if err != nil {
		return nil, err
	}

	claim := &messages.PaymentClaim{
		TaskID:        taskID,
		CorrelationID: task.state.CorrelationID,
		PaymentHash:   [32]byte(settlement.DerivePaymentHash(task.state.CorrelationID)),
		Preimage:      [32]byte(settlement.DerivePreimage(task.state.CorrelationID)),
		Timestamp:     uint32(e.clk.Now()),
	}
	if err := task.state.MarkClaimed(); err != nil {
		return nil, err
	}
	return claim, nil
}

// ExpireStale sweeps every open task past its deadline into Rejected and
// returns one TaskReject per newly expired task. Safe to call on a
// timer; already-terminal tasks are skipped.
func (e *Executor) ExpireStale() []*messages.TaskReject {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clk.Now()
	var rejects []*messages.TaskReject
	for id, task := range e.tasks {
		if task.state.ExpireIfTimedOut(now) {
			rejects = append(rejects, &messages.TaskReject{
				TaskID:    id,
				Reason:    "timeout",
				Details:   "deadline passed without settlement",
				Timestamp: uint32(now),
			})
		}
	}
	return rejects
}

// TaskState returns the settlement state for taskID, or nil if the task
// was never admitted.
func (e *Executor) TaskState(taskID string) *statemachine.ExecutorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if task, ok := e.tasks[taskID]; ok {
		return task.state
	}
	return nil
}

func (e *Executor) lookup(taskID string) (*executorTask, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.tasks[taskID]
	if !ok {
		return nil, scraperr.Wrap(scraperr.ErrMissingField, "unknown task: "+taskID)
	}
	return task, nil
}
