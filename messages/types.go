// Package messages implements the six wire-level protocol messages that
// flow between commander and executor: TaskRequest, TaskAccept,
// TaskReject, ProofOfExecution, PaymentLock and PaymentClaim. Each type
// has a TLV codec and, where the data model calls for one, a signing hash.
package messages

// TaskRequest is a commander's signed offer to pay for a capability-gated
// task, referencing a capability token (and optional delegation chain).
type TaskRequest struct {
	TaskID             string
	Timestamp          uint32
	CapabilityToken    []byte
	DelegationChain    [][]byte
	TaskType           string
	TargetJSON         string
	ParametersJSON     string
	ConstraintsJSON    string
	PaymentMaxSats     uint64
	TimeoutBlocks      uint32
	CommanderSignature [64]byte
}

// TaskAccept is an executor's signed acknowledgement of a locked task.
type TaskAccept struct {
	TaskID               string
	Timestamp            uint32
	InReplyTo            [32]byte
	PaymentHash          [32]byte
	AmountSats           uint64
	ExpirySec            uint32
	Description          string
	EstimatedDurationSec uint32
	EarliestStart        uint32
	DataVolumeMB         uint32
	QualityEstimate      uint32
	ExecutorSignature    [64]byte
}

// TaskReject carries a reason an executor (or commander, implicitly)
// declined to continue a task.
type TaskReject struct {
	TaskID    string
	Reason    string
	Details   string
	Timestamp uint32
}

// ProofOfExecution is the executor's signed evidence the paid-for work
// completed.
type ProofOfExecution struct {
	TaskID             string
	TaskTokenID        [16]byte
	PaymentHash        [32]byte
	OutputHash         [32]byte
	ExecutionTimestamp uint32
	ExecutorPubkey     []byte
	ExecutorSignature  [64]byte
}

// PaymentLock is the commander's conveyance that funds are conditionally
// locked behind payment_hash for this task.
type PaymentLock struct {
	TaskID        string
	CorrelationID [32]byte
	PaymentHash   [32]byte
	AmountSats    uint64
	TimeoutBlocks uint32
	Timestamp     uint32
}

// PaymentClaim reveals the preimage redeeming the HTLC locked by a prior
// PaymentLock.
type PaymentClaim struct {
	TaskID        string
	CorrelationID [32]byte
	PaymentHash   [32]byte
	Preimage      [32]byte
	Timestamp     uint32
}
