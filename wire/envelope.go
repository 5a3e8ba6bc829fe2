package wire

import (
	"encoding/binary"

	"scrap-protocol/scraperr"
)

// Message type bytes for the envelope framing msg_type:u8 || body_len:u16 || body.
const (
	MsgTaskRequest      uint8 = 0x01
	MsgTaskAccept       uint8 = 0x02
	MsgTaskReject       uint8 = 0x03
	MsgProofOfExecution uint8 = 0x04
	MsgPaymentLock      uint8 = 0x10
	MsgPaymentClaim     uint8 = 0x11
)

// EncodeEnvelope frames body under msg_type as msg_type:u8 || body_len:u16 || body.
func EncodeEnvelope(msgType uint8, body []byte) ([]byte, error) {
	if len(body) > 0xFFFF {
		return nil, scraperr.Wrap(scraperr.ErrEncode, "envelope body too large")
	}
	out := make([]byte, 0, 3+len(body))
	out = append(out, msgType)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(body)))
	out = append(out, lenBuf[:]...)
	out = append(out, body...)
	return out, nil
}

// DecodeEnvelope splits a framed message into its type byte and body,
// rejecting truncated headers and length mismatches.
func DecodeEnvelope(b []byte) (uint8, []byte, error) {
	if len(b) < 3 {
		return 0, nil, scraperr.Wrap(scraperr.ErrDecode, "envelope too short")
	}
	msgType := b[0]
	length := int(binary.BigEndian.Uint16(b[1:3]))
	if len(b)-3 != length {
		return 0, nil, scraperr.Wrap(scraperr.ErrDecode, "envelope length mismatch")
	}
	return msgType, b[3:], nil
}
