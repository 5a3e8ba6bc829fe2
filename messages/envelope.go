package messages

import (
	"scrap-protocol/scraperr"
	"scrap-protocol/wire"
)

// Envelope is a decoded wire message tagged with its concrete type.
type Envelope struct {
	Type    uint8
	Request *TaskRequest
	Accept  *TaskAccept
	Reject  *TaskReject
	Proof   *ProofOfExecution
	Lock    *PaymentLock
	Claim   *PaymentClaim
}

// EncodeEnvelope frames one of the six message kinds for wire transport.
func EncodeEnvelope(v interface{}) ([]byte, error) {
	switch m := v.(type) {
	case *TaskRequest:
		return wire.EncodeEnvelope(wire.MsgTaskRequest, m.EncodeTLV())
	case *TaskAccept:
		return wire.EncodeEnvelope(wire.MsgTaskAccept, m.EncodeTLV())
	case *TaskReject:
		return wire.EncodeEnvelope(wire.MsgTaskReject, m.EncodeTLV())
	case *ProofOfExecution:
		return wire.EncodeEnvelope(wire.MsgProofOfExecution, m.EncodeTLV())
	case *PaymentLock:
		return wire.EncodeEnvelope(wire.MsgPaymentLock, m.EncodeTLV())
	case *PaymentClaim:
		return wire.EncodeEnvelope(wire.MsgPaymentClaim, m.EncodeTLV())
	default:
		return nil, scraperr.Wrap(scraperr.ErrEncode, "unknown message kind")
	}
}

// DecodeEnvelope parses a framed message and dispatches on msg_type.
func DecodeEnvelope(b []byte) (*Envelope, error) {
	msgType, body, err := wire.DecodeEnvelope(b)
	if err != nil {
		return nil, err
	}
	switch msgType {
	case wire.MsgTaskRequest:
		req, err := DecodeTaskRequest(body)
		if err != nil {
			return nil, err
		}
		return &Envelope{Type: msgType, Request: req}, nil
	case wire.MsgTaskAccept:
		acc, err := DecodeTaskAccept(body)
		if err != nil {
			return nil, err
		}
		return &Envelope{Type: msgType, Accept: acc}, nil
	case wire.MsgTaskReject:
		rej, err := DecodeTaskReject(body)
		if err != nil {
			return nil, err
		}
		return &Envelope{Type: msgType, Reject: rej}, nil
	case wire.MsgProofOfExecution:
		proof, err := DecodeProofOfExecution(body)
		if err != nil {
			return nil, err
		}
		return &Envelope{Type: msgType, Proof: proof}, nil
	case wire.MsgPaymentLock:
		lock, err := DecodePaymentLock(body)
		if err != nil {
			return nil, err
		}
		return &Envelope{Type: msgType, Lock: lock}, nil
	case wire.MsgPaymentClaim:
		claim, err := DecodePaymentClaim(body)
		if err != nil {
			return nil, err
		}
		return &Envelope{Type: msgType, Claim: claim}, nil
	default:
		return nil, scraperr.Wrap(scraperr.ErrDecode, "unknown message type")
	}
}
