package messages

import (
	"encoding/binary"

	"scrap-protocol/scraperr"
	"scrap-protocol/wire"
)

const (
	reqTaskID             uint64 = 0
	reqTimestamp          uint64 = 2
	reqCapabilityToken    uint64 = 4
	reqDelegationToken    uint64 = 6
	reqTaskType           uint64 = 8
	reqTarget             uint64 = 10
	reqParameters         uint64 = 12
	reqConstraints        uint64 = 14
	reqMaxAmountSats      uint64 = 16
	reqTimeoutBlocks      uint64 = 18
	reqCommanderSignature uint64 = 20
)

// EncodeTLV serializes the request including its commander signature.
func (r *TaskRequest) EncodeTLV() []byte {
	records := r.baseRecords()
	records = append(records, wire.Record{Type: reqCommanderSignature, Value: r.CommanderSignature[:]})
	return wire.EncodeRecords(records)
}

// EncodeTLVWithoutSignature is the byte string the commander signature
// commits to.
func (r *TaskRequest) EncodeTLVWithoutSignature() []byte {
	return wire.EncodeRecords(r.baseRecords())
}

func (r *TaskRequest) baseRecords() []wire.Record {
	var records []wire.Record
	records = append(records, wire.Record{Type: reqTaskID, Value: []byte(r.TaskID)})
	records = append(records, wire.Record{Type: reqTimestamp, Value: be32(r.Timestamp)})
	records = append(records, wire.Record{Type: reqCapabilityToken, Value: r.CapabilityToken})
	for _, d := range r.DelegationChain {
		records = append(records, wire.Record{Type: reqDelegationToken, Value: d})
	}
	records = append(records, wire.Record{Type: reqTaskType, Value: []byte(r.TaskType)})
	records = append(records, wire.Record{Type: reqTarget, Value: []byte(r.TargetJSON)})
	records = append(records, wire.Record{Type: reqParameters, Value: []byte(r.ParametersJSON)})
	records = append(records, wire.Record{Type: reqConstraints, Value: []byte(r.ConstraintsJSON)})
	records = append(records, wire.Record{Type: reqMaxAmountSats, Value: be64(r.PaymentMaxSats)})
	records = append(records, wire.Record{Type: reqTimeoutBlocks, Value: be32(r.TimeoutBlocks)})
	return records
}

// DecodeTaskRequest parses an encoded TaskRequest.
func DecodeTaskRequest(b []byte) (*TaskRequest, error) {
	records, err := wire.DecodeRecords(b)
	if err != nil {
		return nil, err
	}
	var req TaskRequest
	var haveTaskID, haveTimestamp, haveCapToken, haveTaskType bool
	var haveTarget, haveParameters, haveConstraints, haveMaxAmount, haveTimeout, haveSig bool

	seen := make(map[uint64]bool)
	for _, rec := range records {
		if rec.Type != reqDelegationToken && seen[rec.Type] {
			return nil, scraperr.Wrap(scraperr.ErrDecode, "task_request duplicate tlv type")
		}
		seen[rec.Type] = true
		switch rec.Type {
		case reqTaskID:
			req.TaskID = string(rec.Value)
			haveTaskID = true
		case reqTimestamp:
			v, err := readU32(rec.Value)
			if err != nil {
				return nil, err
			}
			req.Timestamp = v
			haveTimestamp = true
		case reqCapabilityToken:
			req.CapabilityToken = rec.Value
			haveCapToken = true
		case reqDelegationToken:
			req.DelegationChain = append(req.DelegationChain, rec.Value)
		case reqTaskType:
			req.TaskType = string(rec.Value)
			haveTaskType = true
		case reqTarget:
			req.TargetJSON = string(rec.Value)
			haveTarget = true
		case reqParameters:
			req.ParametersJSON = string(rec.Value)
			haveParameters = true
		case reqConstraints:
			req.ConstraintsJSON = string(rec.Value)
			haveConstraints = true
		case reqMaxAmountSats:
			v, err := readU64(rec.Value)
			if err != nil {
				return nil, err
			}
			req.PaymentMaxSats = v
			haveMaxAmount = true
		case reqTimeoutBlocks:
			v, err := readU32(rec.Value)
			if err != nil {
				return nil, err
			}
			req.TimeoutBlocks = v
			haveTimeout = true
		case reqCommanderSignature:
			sig, err := readFixed64(rec.Value)
			if err != nil {
				return nil, err
			}
			req.CommanderSignature = sig
			haveSig = true
		default:
			if err := wire.RejectUnknownEven(rec.Type); err != nil {
				return nil, err
			}
		}
	}

	if !haveTaskID || !haveTimestamp || !haveCapToken || !haveTaskType || !haveTarget ||
		!haveParameters || !haveConstraints || !haveMaxAmount || !haveTimeout || !haveSig {
		return nil, scraperr.Wrap(scraperr.ErrMissingField, "task_request missing required field")
	}
	return &req, nil
}

const (
	acceptTaskID            uint64 = 0
	acceptTimestamp         uint64 = 2
	acceptInReplyTo         uint64 = 4
	acceptPaymentHash       uint64 = 6
	acceptAmountSats        uint64 = 8
	acceptExpirySec         uint64 = 10
	acceptDescription       uint64 = 12
	acceptEstDurationSec    uint64 = 14
	acceptEarliestStart     uint64 = 16
	acceptDataVolumeMB      uint64 = 18
	acceptQualityEstimate   uint64 = 20
	acceptExecutorSignature uint64 = 22
)

// EncodeTLV serializes the accept including its executor signature.
func (a *TaskAccept) EncodeTLV() []byte {
	records := a.baseRecords()
	records = append(records, wire.Record{Type: acceptExecutorSignature, Value: a.ExecutorSignature[:]})
	return wire.EncodeRecords(records)
}

// EncodeTLVWithoutSignature is the byte string the executor signature
// commits to.
func (a *TaskAccept) EncodeTLVWithoutSignature() []byte {
	return wire.EncodeRecords(a.baseRecords())
}

func (a *TaskAccept) baseRecords() []wire.Record {
	return []wire.Record{
		{Type: acceptTaskID, Value: []byte(a.TaskID)},
		{Type: acceptTimestamp, Value: be32(a.Timestamp)},
		{Type: acceptInReplyTo, Value: a.InReplyTo[:]},
		{Type: acceptPaymentHash, Value: a.PaymentHash[:]},
		{Type: acceptAmountSats, Value: be64(a.AmountSats)},
		{Type: acceptExpirySec, Value: be32(a.ExpirySec)},
		{Type: acceptDescription, Value: []byte(a.Description)},
		{Type: acceptEstDurationSec, Value: be32(a.EstimatedDurationSec)},
		{Type: acceptEarliestStart, Value: be32(a.EarliestStart)},
		{Type: acceptDataVolumeMB, Value: be32(a.DataVolumeMB)},
		{Type: acceptQualityEstimate, Value: be32(a.QualityEstimate)},
	}
}

// DecodeTaskAccept parses an encoded TaskAccept.
func DecodeTaskAccept(b []byte) (*TaskAccept, error) {
	records, err := wire.DecodeRecords(b)
	if err != nil {
		return nil, err
	}
	var a TaskAccept
	have := map[uint64]bool{}

	for _, rec := range records {
		if have[rec.Type] {
			return nil, scraperr.Wrap(scraperr.ErrDecode, "duplicate tlv type")
		}
		switch rec.Type {
		case acceptTaskID:
			a.TaskID = string(rec.Value)
		case acceptTimestamp:
			v, err := readU32(rec.Value)
			if err != nil {
				return nil, err
			}
			a.Timestamp = v
		case acceptInReplyTo:
			v, err := readFixed32(rec.Value)
			if err != nil {
				return nil, err
			}
			a.InReplyTo = v
		case acceptPaymentHash:
			v, err := readFixed32(rec.Value)
			if err != nil {
				return nil, err
			}
			a.PaymentHash = v
		case acceptAmountSats:
			v, err := readU64(rec.Value)
			if err != nil {
				return nil, err
			}
			a.AmountSats = v
		case acceptExpirySec:
			v, err := readU32(rec.Value)
			if err != nil {
				return nil, err
			}
			a.ExpirySec = v
		case acceptDescription:
			a.Description = string(rec.Value)
		case acceptEstDurationSec:
			v, err := readU32(rec.Value)
			if err != nil {
				return nil, err
			}
			a.EstimatedDurationSec = v
		case acceptEarliestStart:
			v, err := readU32(rec.Value)
			if err != nil {
				return nil, err
			}
			a.EarliestStart = v
		case acceptDataVolumeMB:
			v, err := readU32(rec.Value)
			if err != nil {
				return nil, err
			}
			a.DataVolumeMB = v
		case acceptQualityEstimate:
			v, err := readU32(rec.Value)
			if err != nil {
				return nil, err
			}
			a.QualityEstimate = v
		case acceptExecutorSignature:
			sig, err := readFixed64(rec.Value)
			if err != nil {
				return nil, err
			}
			a.ExecutorSignature = sig
		default:
			if err := wire.RejectUnknownEven(rec.Type); err != nil {
				return nil, err
			}
			continue
		}
		have[rec.Type] = true
	}

	required := []uint64{acceptTaskID, acceptTimestamp, acceptInReplyTo, acceptPaymentHash,
		acceptAmountSats, acceptExpirySec, acceptDescription, acceptEstDurationSec,
		acceptEarliestStart, acceptDataVolumeMB, acceptQualityEstimate, acceptExecutorSignature}
	for _, t := range required {
		if !have[t] {
			return nil, scraperr.Wrap(scraperr.ErrMissingField, "task_accept missing required field")
		}
	}
	return &a, nil
}

const (
	proofTaskID         uint64 = 0
	proofTokenID        uint64 = 2
	proofPaymentHash    uint64 = 4
	proofOutputHash     uint64 = 6
	proofExecutionTS    uint64 = 8
	proofExecutorPubkey uint64 = 10
	proofSignature      uint64 = 12
)

// EncodeTLV serializes a ProofOfExecution.
func (p *ProofOfExecution) EncodeTLV() []byte {
	records := []wire.Record{
		{Type: proofTaskID, Value: []byte(p.TaskID)},
		{Type: proofTokenID, Value: p.TaskTokenID[:]},
		{Type: proofPaymentHash, Value: p.PaymentHash[:]},
		{Type: proofOutputHash, Value: p.OutputHash[:]},
		{Type: proofExecutionTS, Value: be32(p.ExecutionTimestamp)},
		{Type: proofExecutorPubkey, Value: p.ExecutorPubkey},
		{Type: proofSignature, Value: p.ExecutorSignature[:]},
	}
	return wire.EncodeRecords(records)
}

// DecodeProofOfExecution parses an encoded ProofOfExecution.
func DecodeProofOfExecution(b []byte) (*ProofOfExecution, error) {
	records, err := wire.DecodeRecords(b)
	if err != nil {
		return nil, err
	}
	var p ProofOfExecution
	have := map[uint64]bool{}
	for _, rec := range records {
		if have[rec.Type] {
			return nil, scraperr.Wrap(scraperr.ErrDecode, "duplicate tlv type")
		}
		switch rec.Type {
		case proofTaskID:
			p.TaskID = string(rec.Value)
		case proofTokenID:
			v, err := readFixed16(rec.Value)
			if err != nil {
				return nil, err
			}
			p.TaskTokenID = v
		case proofPaymentHash:
			v, err := readFixed32(rec.Value)
			if err != nil {
				return nil, err
			}
			p.PaymentHash = v
		case proofOutputHash:
			v, err := readFixed32(rec.Value)
			if err != nil {
				return nil, err
			}
			p.OutputHash = v
		case proofExecutionTS:
			v, err := readU32(rec.Value)
			if err != nil {
				return nil, err
			}
			p.ExecutionTimestamp = v
		case proofExecutorPubkey:
			p.ExecutorPubkey = rec.Value
		case proofSignature:
			v, err := readFixed64(rec.Value)
			if err != nil {
				return nil, err
			}
			p.ExecutorSignature = v
		default:
			if err := wire.RejectUnknownEven(rec.Type); err != nil {
				return nil, err
			}
			continue
		}
		have[rec.Type] = true
	}
	required := []uint64{proofTaskID, proofTokenID, proofPaymentHash, proofOutputHash,
		proofExecutionTS, proofExecutorPubkey, proofSignature}
	for _, t := range required {
		if !have[t] {
			return nil, scraperr.Wrap(scraperr.ErrMissingField, "proof missing required field")
		}
	}
	return &p, nil
}

const (
	lockTaskID        uint64 = 0
	lockCorrelationID uint64 = 2
	lockPaymentHash   uint64 = 4
	lockAmountSats    uint64 = 6
	lockTimeoutBlocks uint64 = 8
	lockTimestamp     uint64 = 10
)

// EncodeTLV serializes a PaymentLock.
func (l *PaymentLock) EncodeTLV() []byte {
	records := []wire.Record{
		{Type: lockTaskID, Value: []byte(l.TaskID)},
		{Type: lockCorrelationID, Value: l.CorrelationID[:]},
		{Type: lockPaymentHash, Value: l.PaymentHash[:]},
		{Type: lockAmountSats, Value: be64(l.AmountSats)},
		{Type: lockTimeoutBlocks, Value: be32(l.TimeoutBlocks)},
		{Type: lockTimestamp, Value: be32(l.Timestamp)},
	}
	return wire.EncodeRecords(records)
}

// DecodePaymentLock parses an encoded PaymentLock.
func DecodePaymentLock(b []byte) (*PaymentLock, error) {
	records, err := wire.DecodeRecords(b)
	if err != nil {
		return nil, err
	}
	var l PaymentLock
	have := map[uint64]bool{}
	for _, rec := range records {
		if have[rec.Type] {
			return nil, scraperr.Wrap(scraperr.ErrDecode, "duplicate tlv type")
		}
		switch rec.Type {
		case lockTaskID:
			l.TaskID = string(rec.Value)
		case lockCorrelationID:
			v, err := readFixed32(rec.Value)
			if err != nil {
				return nil, err
			}
			l.CorrelationID = v
		case lockPaymentHash:
			v, err := readFixed32(rec.Value)
			if err != nil {
				return nil, err
			}
			l.PaymentHash = v
		case lockAmountSats:
			v, err := readU64(rec.Value)
			if err != nil {
				return nil, err
			}
			l.AmountSats = v
		case lockTimeoutBlocks:
			v, err := readU32(rec.Value)
			if err != nil {
				return nil, err
			}
			l.TimeoutBlocks = v
		case lockTimestamp:
			v, err := readU32(rec.Value)
			if err != nil {
				return nil, err
			}
			l.Timestamp = v
		default:
			if err := wire.RejectUnknownEven(rec.Type); err != nil {
				return nil, err
			}
			continue
		}
		have[rec.Type] = true
	}
	required := []uint64{lockTaskID, lockCorrelationID, lockPaymentHash, lockAmountSats,
		lockTimeoutBlocks, lockTimestamp}
	for _, t := range required {
		if !have[t] {
			return nil, scraperr.Wrap(scraperr.ErrMissingField, "payment_lock missing required field")
		}
	}
	return &l, nil
}

const (
	claimTaskID        uint64 = 0
	claimCorrelationID uint64 = 2
	claimPaymentHash   uint64 = 4
	claimPreimage      uint64 = 6
	claimTimestamp     uint64 = 8
)

// EncodeTLV serializes a PaymentClaim.
func (c *PaymentClaim) EncodeTLV() []byte {
	records := []wire.Record{
		{Type: claimTaskID, Value: []byte(c.TaskID)},
		{Type: claimCorrelationID, Value: c.CorrelationID[:]},
		{Type: claimPaymentHash, Value: c.PaymentHash[:]},
		{Type: claimPreimage, Value: c.Preimage[:]},
		{Type: claimTimestamp, Value: be32(c.Timestamp)},
	}
	return wire.EncodeRecords(records)
}

// DecodePaymentClaim parses an encoded PaymentClaim.
func DecodePaymentClaim(b []byte) (*PaymentClaim, error) {
	records, err := wire.DecodeRecords(b)
	if err != nil {
		return nil, err
	}
	var c PaymentClaim
	have := map[uint64]bool{}
	for _, rec := range records {
		if have[rec.Type] {
			return nil, scraperr.Wrap(scraperr.ErrDecode, "duplicate tlv type")
		}
		switch rec.Type {
		case claimTaskID:
			c.TaskID = string(rec.Value)
		case claimCorrelationID:
			v, err := readFixed32(rec.Value)
			if err != nil {
				return nil, err
			}
			c.CorrelationID = v
		case claimPaymentHash:
			v, err := readFixed32(rec.Value)
			if err != nil {
				return nil, err
			}
			c.PaymentHash = v
		case claimPreimage:
			v, err := readFixed32(rec.Value)
			if err != nil {
				return nil, err
			}
			c.Preimage = v
		case claimTimestamp:
			v, err := readU32(rec.Value)
			if err != nil {
				return nil, err
			}
			c.Timestamp = v
		default:
			if err := wire.RejectUnknownEven(rec.Type); err != nil {
				return nil, err
			}
			continue
		}
		have[rec.Type] = true
	}
	required := []uint64{claimTaskID, claimCorrelationID, claimPaymentHash, claimPreimage, claimTimestamp}
	for _, t := range required {
		if !have[t] {
			return nil, scraperr.Wrap(scraperr.ErrMissingField, "payment_claim missing required field")
		}
	}
	return &c, nil
}

const (
	rejectTaskID    uint64 = 0
	rejectReason    uint64 = 2
	rejectDetails   uint64 = 4
	rejectTimestamp uint64 = 6
)

// EncodeTLV serializes a TaskReject.
func (r *TaskReject) EncodeTLV() []byte {
	records := []wire.Record{
		{Type: rejectTaskID, Value: []byte(r.TaskID)},
		{Type: rejectReason, Value: []byte(r.Reason)},
		{Type: rejectDetails, Value: []byte(r.Details)},
		{Type: rejectTimestamp, Value: be32(r.Timestamp)},
	}
	return wire.EncodeRecords(records)
}

// DecodeTaskReject parses an encoded TaskReject.
func DecodeTaskReject(b []byte) (*TaskReject, error) {
	records, err := wire.DecodeRecords(b)
	if err != nil {
		return nil, err
	}
	var r TaskReject
	have := map[uint64]bool{}
	for _, rec := range records {
		if have[rec.Type] {
			return nil, scraperr.Wrap(scraperr.ErrDecode, "duplicate tlv type")
		}
		switch rec.Type {
		case rejectTaskID:
			r.TaskID = string(rec.Value)
		case rejectReason:
			r.Reason = string(rec.Value)
		case rejectDetails:
			r.Details = string(rec.Value)
		case rejectTimestamp:
			v, err := readU32(rec.Value)
			if err != nil {
				return nil, err
			}
			r.Timestamp = v
		default:
			if err := wire.RejectUnknownEven(rec.Type); err != nil {
				return nil, err
			}
			continue
		}
		have[rec.Type] = true
	}
	required := []uint64{rejectTaskID, rejectReason, rejectDetails, rejectTimestamp}
	for _, t := range required {
		if !have[t] {
			return nil, scraperr.Wrap(scraperr.ErrMissingField, "task_reject missing required field")
		}
	}
	return &r, nil
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func readU32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, scraperr.Wrap(scraperr.ErrDecode, "invalid u32 field")
	}
	return binary.BigEndian.Uint32(b), nil
}

func readU64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, scraperr.Wrap(scraperr.ErrDecode, "invalid u64 field")
	}
	return binary.BigEndian.Uint64(b), nil
}

func readFixed16(b []byte) ([16]byte, error) {
	var out [16]byte
	if len(b) != 16 {
		return out, &scraperr.InvalidHashLength{Expected: 16, Got: len(b)}
	}
	copy(out[:], b)
	return out, nil
}

func readFixed32(b []byte) ([32]byte, error) {
	var out [32]byte
	if len(b) != 32 {
		return out, &scraperr.InvalidHashLength{Expected: 32, Got: len(b)}
	}
	copy(out[:], b)
	return out, nil
}

func readFixed64(b []byte) ([64]byte, error) {
	var out [64]byte
	if len(b) != 64 {
		return out, &scraperr.InvalidHashLength{Expected: 64, Got: len(b)}
	}
	copy(out[:], b)
	return out, nil
}
