package engine

import (
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"

	"scrap-protocol/clock"
	"scrap-protocol/cryptoprim"
	"scrap-protocol/messages"
	"scrap-protocol/scraperr"
	"scrap-protocol/settlement"
	"scrap-protocol/statemachine"
	"scrap-protocol/verifier"
)

// Commander is the requester-side runtime: it builds and signs task
// requests, emits the payment lock, and validates the executor's
// accept/proof/claim messages against its shadow state.
type Commander struct {
	priv *btcec.PrivateKey
	ver  *verifier.Verifier
	clk  clock.Clock

	mu    sync.Mutex
	tasks map[string]*statemachine.CommanderState
}

// NewCommander constructs a commander runtime. operatorPubkey and
// executorPubkey identify the counterparties whose signatures this
// commander will check.
func NewCommander(priv *btcec.PrivateKey, operatorPubkey, executorPubkey []byte, clk clock.Clock) *Commander {
	return &Commander{
		priv:  priv,
		ver:   verifier.New(operatorPubkey, executorPubkey, clk),
		clk:   clk,
		tasks: make(map[string]*statemachine.CommanderState),
	}
}

// RequestParams carries the commander-chosen fields of a TaskRequest.
type RequestParams struct {
	TaskID          string
	CapabilityToken []byte
	DelegationChain [][]byte
	TaskType        string
	TargetJSON      string
	ParametersJSON  string
	ConstraintsJSON string
	PaymentMaxSats  uint64
	TimeoutBlocks   uint32
}

// BuildRequest assembles and signs a TaskRequest and opens the
// commander-side shadow state for it.
func (c *Commander) BuildRequest(params RequestParams) (*messages.TaskRequest, error) {
	if params.TaskType == "" {
		return nil, scraperr.Wrap(scraperr.ErrMissingField, "task_type required")
	}
	req := &messages.TaskRequest{
		TaskID:          params.TaskID,
		Timestamp:       uint32(c.clk.Now()),
		CapabilityToken: params.CapabilityToken,
		DelegationChain: params.DelegationChain,
		TaskType:        params.TaskType,
		TargetJSON:      params.TargetJSON,
		ParametersJSON:  params.ParametersJSON,
		ConstraintsJSON: params.ConstraintsJSON,
		PaymentMaxSats:  params.PaymentMaxSats,
		TimeoutBlocks:   params.TimeoutBlocks,
	}
	sig, err := signSchnorr(c.priv, req.CommanderSigningHash())
	if err != nil {
		return nil, err
	}
	req.CommanderSignature = sig

	c.mu.Lock()
	c.tasks[req.TaskID] = statemachine.NewCommanderState(req)
	c.mu.Unlock()
	return req, nil
}

// EmitLock builds the PaymentLock for a sent request, binding the
// derived payment hash to the task's correlation id, and advances the
// shadow state to its locked phase. amountSats may be below the offer
// but never above it.
func (c *Commander) EmitLock(taskID string, amountSats uint64, timeoutBlocks uint32) (*messages.PaymentLock, error) {
	state, err := c.lookup(taskID)
	if err != nil {
		return nil, err
	}
	if amountSats > state.OfferedSats {
		return nil, scraperr.Wrap(scraperr.ErrAmountExceedsOffer, "lock amount exceeds own offer")
	}
	lock := &messages.PaymentLock{
		TaskID:        taskID,
		CorrelationID: state.CorrelationID,
		PaymentHash:   state.PaymentHash,
		AmountSats:    amountSats,
		TimeoutBlocks: timeoutBlocks,
		Timestamp:     uint32(c.clk.Now()),
	}
	if err := state.ObserveLock(); err != nil {
		return nil, err
	}
	return lock, nil
}

// ReceiveAccept validates an incoming TaskAccept (reply binding,
// executor signature, amount within offer) and records it.
func (c *Commander) ReceiveAccept(accept *messages.TaskAccept) error {
	state, err := c.lookup(accept.TaskID)
	if err != nil {
		return err
	}
	if err := c.ver.VerifyAccept(accept, state.CorrelationID); err != nil {
		return err
	}
	return state.ObserveAccept(accept)
}

// ReceiveProof validates an incoming ExecutionProof signature and its
// payment-hash binding, then records it.
func (c *Commander) ReceiveProof(proof *messages.ProofOfExecution) error {
	state, err := c.lookup(proof.TaskID)
	if err != nil {
		return err
	}
	if err := c.ver.VerifyProof(proof); err != nil {
		return err
	}
	if proof.PaymentHash != state.PaymentHash {
		return scraperr.Wrap(scraperr.ErrPaymentHashMismatch, "proof payment_hash mismatch")
	}
	return state.ObserveProof()
}

// ReceiveClaim checks that the revealed preimage redeems the payment
// hash this commander locked funds under and closes the task.
func (c *Commander) ReceiveClaim(claim *messages.PaymentClaim) error {
	state, err := c.lookup(claim.TaskID)
	if err != nil {
		return err
	}
	if claim.CorrelationID != state.CorrelationID {
		return scraperr.Wrap(scraperr.ErrCorrelationMismatch, "claim correlation_id mismatch")
	}
	return state.ObserveClaim(claim)
}

// ExpectedPreimage returns the preimage the commander's payment adapter
// should expect for taskID once the executor claims.
func (c *Commander) ExpectedPreimage(taskID string) ([32]byte, error) {
	state, err := c.lookup(taskID)
	if err != nil {
		return [32]byte{}, err
	}
	return [32]byte(settlement.DerivePreimage(state.CorrelationID)), nil
}

// TaskState returns the shadow state for taskID, or nil if no request
// was built for it.
func (c *Commander) TaskState(taskID string) *statemachine.CommanderState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tasks[taskID]
}

func (c *Commander) lookup(taskID string) (*statemachine.CommanderState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.tasks[taskID]
	if !ok {
		return nil, scraperr.Wrap(scraperr.ErrMissingField, "unknown task: "+taskID)
	}
	return state, nil
}

func signSchnorr(priv *btcec.PrivateKey, hash cryptoprim.Hash) ([64]byte, error) {
	return cryptoprim.SignSchnorr(priv, hash)
}
