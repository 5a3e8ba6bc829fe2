// Package cbor implements the CBOR interchange profile: string-keyed
// entity maps with omitted-if-absent optional fields for tokens and
// messages (an equivalent fixture form to the TLV wire encoding), plus the
// CBOR-native SAT-CAP capability token envelope with its ES256K /
// SCHNORR-SECP256K1 algorithm selection.
package cbor

import (
	"github.com/fxamacker/cbor/v2"

	"scrap-protocol/messages"
	"scrap-protocol/token"
)

var encMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// ConstraintsEntity is the CBOR map form of token.Constraints. Unset
// fields are omitted rather than encoded as zero or null.
type ConstraintsEntity struct {
	Geo        string `cbor:"geo,omitempty"`
	RateCount  uint32 `cbor:"rate_count,omitempty"`
	RatePeriod uint32 `cbor:"rate_period,omitempty"`
	Amount     uint64 `cbor:"amount,omitempty"`
	NotBefore  uint32 `cbor:"not_before,omitempty"`
}

// DelegationEntity is the CBOR map form of token.Delegation.
type DelegationEntity struct {
	RootIssuer    []byte `cbor:"root_issuer,omitempty"`
	RootTokenID   []byte `cbor:"root_token_id,omitempty"`
	ParentTokenID []byte `cbor:"parent_token_id,omitempty"`
	ChainDepth    *uint8 `cbor:"chain_depth,omitempty"`
}

// TokenEntity is the CBOR interchange-equivalent fixture form of a
// token.Token: a string-keyed map rather than ascending-type TLV records.
type TokenEntity struct {
	Version      uint8              `cbor:"version"`
	Issuer       []byte             `cbor:"issuer"`
	Subject      []byte             `cbor:"subject"`
	Audience     []byte             `cbor:"audience"`
	IssuedAt     uint32             `cbor:"issued_at"`
	ExpiresAt    uint32             `cbor:"expires_at"`
	TokenID      []byte             `cbor:"token_id"`
	Capabilities []string           `cbor:"capabilities"`
	Constraints  *ConstraintsEntity `cbor:"constraints,omitempty"`
	Delegation   *DelegationEntity  `cbor:"delegation,omitempty"`
	Signature    []byte             `cbor:"signature"`
}

// FromToken converts a domain token.Token into its CBOR entity form.
func FromToken(t *token.Token) *TokenEntity {
	e := &TokenEntity{
		Version:      t.Version,
		Issuer:       t.Issuer,
		Subject:      t.Subject,
		Audience:     t.Audience,
		IssuedAt:     t.IssuedAt,
		ExpiresAt:    t.ExpiresAt,
		TokenID:      t.TokenID[:],
		Capabilities: t.Capabilities,
		Signature:    t.Signature[:],
	}
	if t.Constraints.HasGeo || t.Constraints.HasRate || t.Constraints.HasAmount || t.Constraints.HasNotBefore {
		c := &ConstraintsEntity{}
		if t.Constraints.HasGeo {
			c.Geo = t.Constraints.Geo
		}
		if t.Constraints.HasRate {
			c.RateCount = t.Constraints.RateCount
			c.RatePeriod = t.Constraints.RatePeriod
		}
		if t.Constraints.HasAmount {
			c.Amount = t.Constraints.Amount
		}
		if t.Constraints.HasNotBefore {
			c.NotBefore = t.Constraints.NotBefore
		}
		e.Constraints = c
	}
	if t.Delegation.HasRootIssuer || t.Delegation.HasRootTokenID || t.Delegation.HasParentTokenID || t.Delegation.HasChainDepth {
		d := &DelegationEntity{}
		if t.Delegation.HasRootIssuer {
			d.RootIssuer = t.Delegation.RootIssuer
		}
		if t.Delegation.HasRootTokenID {
			d.RootTokenID = t.Delegation.RootTokenID[:]
		}
		if t.Delegation.HasParentTokenID {
			d.ParentTokenID = t.Delegation.ParentTokenID[:]
		}
		if t.Delegation.HasChainDepth {
			depth := t.Delegation.ChainDepth
			d.ChainDepth = &depth
		}
		e.Delegation = d
	}
	return e
}

// ToToken converts a CBOR entity back into a domain token.Token.
func (e *TokenEntity) ToToken() *token.Token {
	t := &token.Token{
		Version:      e.Version,
		Issuer:       e.Issuer,
		Subject:      e.Subject,
		Audience:     e.Audience,
		IssuedAt:     e.IssuedAt,
		ExpiresAt:    e.ExpiresAt,
		Capabilities: e.Capabilities,
	}
	copy(t.TokenID[:], e.TokenID)
	copy(t.Signature[:], e.Signature)
	if e.Constraints != nil {
		if e.Constraints.Geo != "" {
			t.Constraints.Geo = e.Constraints.Geo
			t.Constraints.HasGeo = true
		}
		if e.Constraints.RatePeriod != 0 || e.Constraints.RateCount != 0 {
			t.Constraints.RateCount = e.Constraints.RateCount
			t.Constraints.RatePeriod = e.Constraints.RatePeriod
			t.Constraints.HasRate = true
		}
		if e.Constraints.Amount != 0 {
			t.Constraints.Amount = e.Constraints.Amount
			t.Constraints.HasAmount = true
		}
		if e.Constraints.NotBefore != 0 {
			t.Constraints.NotBefore = e.Constraints.NotBefore
			t.Constraints.HasNotBefore = true
		}
	}
	if e.Delegation != nil {
		if e.Delegation.RootIssuer != nil {
			t.Delegation.RootIssuer = e.Delegation.RootIssuer
			t.Delegation.HasRootIssuer = true
		}
		if e.Delegation.RootTokenID != nil {
			copy(t.Delegation.RootTokenID[:], e.Delegation.RootTokenID)
			t.Delegation.HasRootTokenID = true
		}
		if e.Delegation.ParentTokenID != nil {
			copy(t.Delegation.ParentTokenID[:], e.Delegation.ParentTokenID)
			t.Delegation.HasParentTokenID = true
		}
		if e.Delegation.ChainDepth != nil {
			t.Delegation.ChainDepth = *e.Delegation.ChainDepth
			t.Delegation.HasChainDepth = true
		}
	}
	return t
}

// EncodeToken renders t as a canonical CBOR map.
func EncodeToken(t *token.Token) ([]byte, error) {
	return encMode.Marshal(FromToken(t))
}

// DecodeToken parses a CBOR-encoded token map into a domain token.Token.
func DecodeToken(b []byte) (*token.Token, error) {
	var e TokenEntity
	if err := cbor.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return e.ToToken(), nil
}

// TaskRequestEntity is the CBOR map form of messages.TaskRequest.
type TaskRequestEntity struct {
	TaskID             string   `cbor:"task_id"`
	Timestamp          uint32   `cbor:"timestamp"`
	CapabilityToken    []byte   `cbor:"capability_token"`
	DelegationChain    [][]byte `cbor:"delegation_chain,omitempty"`
	TaskType           string   `cbor:"task_type"`
	TargetJSON         string   `cbor:"target"`
	ParametersJSON     string   `cbor:"parameters"`
	ConstraintsJSON    string   `cbor:"constraints"`
	PaymentMaxSats     uint64   `cbor:"payment_max_sats"`
	TimeoutBlocks      uint32   `cbor:"timeout_blocks"`
	CommanderSignature []byte   `cbor:"commander_signature"`
}

// FromTaskRequest converts a domain TaskRequest into its CBOR entity form.
func FromTaskRequest(r *messages.TaskRequest) *TaskRequestEntity {
	return &TaskRequestEntity{
		TaskID:             r.TaskID,
		Timestamp:          r.Timestamp,
		CapabilityToken:    r.CapabilityToken,
		DelegationChain:    r.DelegationChain,
		TaskType:           r.TaskType,
		TargetJSON:         r.TargetJSON,
		ParametersJSON:     r.ParametersJSON,
		ConstraintsJSON:    r.ConstraintsJSON,
		PaymentMaxSats:     r.PaymentMaxSats,
		TimeoutBlocks:      r.TimeoutBlocks,
		CommanderSignature: r.CommanderSignature[:],
	}
}

// ToTaskRequest converts a CBOR entity back into a domain TaskRequest.
func (e *TaskRequestEntity) ToTaskRequest() *messages.TaskRequest {
	r := &messages.TaskRequest{
		TaskID:          e.TaskID,
		Timestamp:       e.Timestamp,
		CapabilityToken: e.CapabilityToken,
		DelegationChain: e.DelegationChain,
		TaskType:        e.TaskType,
		TargetJSON:      e.TargetJSON,
		ParametersJSON:  e.ParametersJSON,
		ConstraintsJSON: e.ConstraintsJSON,
		PaymentMaxSats:  e.PaymentMaxSats,
		TimeoutBlocks:   e.TimeoutBlocks,
	}
	copy(r.CommanderSignature[:], e.CommanderSignature)
	return r
}

// EncodeTaskRequest renders r as a canonical CBOR map.
func EncodeTaskRequest(r *messages.TaskRequest) ([]byte, error) {
	return encMode.Marshal(FromTaskRequest(r))
}

// DecodeTaskRequest parses a CBOR-encoded task request map.
func DecodeTaskRequest(b []byte) (*messages.TaskRequest, error) {
	var e TaskRequestEntity
	if err := cbor.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return e.ToTaskRequest(), nil
}

// ProofEntity is the CBOR map form of messages.ProofOfExecution.
type ProofEntity struct {
	TaskID             string `cbor:"task_id"`
	TaskTokenID        []byte `cbor:"task_token_id"`
	PaymentHash        []byte `cbor:"payment_hash"`
	OutputHash         []byte `cbor:"output_hash"`
	ExecutionTimestamp uint32 `cbor:"execution_timestamp"`
	ExecutorPubkey     []byte `cbor:"executor_pubkey,omitempty"`
	ExecutorSignature  []byte `cbor:"executor_signature"`
}

// FromProof converts a domain ProofOfExecution into its CBOR entity form.
func FromProof(p *messages.ProofOfExecution) *ProofEntity {
	return &ProofEntity{
		TaskID:             p.TaskID,
		TaskTokenID:        p.TaskTokenID[:],
		PaymentHash:        p.PaymentHash[:],
		OutputHash:         p.OutputHash[:],
		ExecutionTimestamp: p.ExecutionTimestamp,
		ExecutorPubkey:     p.ExecutorPubkey,
		ExecutorSignature:  p.ExecutorSignature[:],
	}
}

// ToProof converts a CBOR entity back into a domain ProofOfExecution.
func (e *ProofEntity) ToProof() *messages.ProofOfExecution {
	p := &messages.ProofOfExecution{
		TaskID:             e.TaskID,
		ExecutionTimestamp: e.ExecutionTimestamp,
		ExecutorPubkey:     e.ExecutorPubkey,
	}
	copy(p.TaskTokenID[:], e.TaskTokenID)
	copy(p.PaymentHash[:], e.PaymentHash)
	copy(p.OutputHash[:], e.OutputHash)
	copy(p.ExecutorSignature[:], e.ExecutorSignature)
	return p
}

// EncodeProof renders p as a canonical CBOR map.
func EncodeProof(p *messages.ProofOfExecution) ([]byte, error) {
	return encMode.Marshal(FromProof(p))
}

// DecodeProof parses a CBOR-encoded proof map.
func DecodeProof(b []byte) (*messages.ProofOfExecution, error) {
	var e ProofEntity
	if err := cbor.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return e.ToProof(), nil
}
