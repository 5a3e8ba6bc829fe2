// Package wire implements the TLV wire format used by every on-the-wire
// entity in the protocol: BigSize compact integers, ascending-type TLV
// records, and the msg_type/body_len/body message envelope.
package wire

import (
	"encoding/binary"

	"scrap-protocol/scraperr"
)

// EncodeBigSize appends the canonical-minimal BigSize encoding of value to out.
func EncodeBigSize(value uint64, out []byte) []byte {
	switch {
	case value < 0xFD:
		return append(out, byte(value))
	case value <= 0xFFFF:
		out = append(out, 0xFD)
		var buf [2]byte
		binary.BigEndian.PutUint16(buf[:], uint16(value))
		return append(out, buf[:]...)
	case value <= 0xFFFFFFFF:
		out = append(out, 0xFE)
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(value))
		return append(out, buf[:]...)
	default:
		out = append(out, 0xFF)
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], value)
		return append(out, buf[:]...)
	}
}

// DecodeBigSize reads a canonical BigSize value from the front of b and
// returns the decoded value plus the number of bytes consumed. It rejects
// truncated input and non-canonical (non-minimal) encodings.
func DecodeBigSize(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, scraperr.Wrap(scraperr.ErrDecode, "bigsize: empty input")
	}
	prefix := b[0]
	switch {
	case prefix < 0xFD:
		return uint64(prefix), 1, nil
	case prefix == 0xFD:
		if len(b) < 3 {
			return 0, 0, scraperr.Wrap(scraperr.ErrDecode, "bigsize: truncated u16")
		}
		value := uint64(binary.BigEndian.Uint16(b[1:3]))
		if value < 0xFD {
			return 0, 0, scraperr.Wrap(scraperr.ErrDecode, "bigsize: non-canonical u16")
		}
		return value, 3, nil
	case prefix == 0xFE:
		if len(b) < 5 {
			return 0, 0, scraperr.Wrap(scraperr.ErrDecode, "bigsize: truncated u32")
		}
		value := uint64(binary.BigEndian.Uint32(b[1:5]))
		if value < 0x10000 {
			return 0, 0, scraperr.Wrap(scraperr.ErrDecode, "bigsize: non-canonical u32")
		}
		return value, 5, nil
	default:
		if len(b) < 9 {
			return 0, 0, scraperr.Wrap(scraperr.ErrDecode, "bigsize: truncated u64")
		}
		value := binary.BigEndian.Uint64(b[1:9])
		if value < 0x100000000 {
			return 0, 0, scraperr.Wrap(scraperr.ErrDecode, "bigsize: non-canonical u64")
		}
		return value, 9, nil
	}
}
