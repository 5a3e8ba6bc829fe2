package wire

import "scrap-protocol/scraperr"

// Record is a single TLV record: type, length (implicit in len(Value)) and
// value.
type Record struct {
	Type  uint64
	Value []byte
}

// EncodeRecords writes records in the order given. Callers must supply them
// in non-descending Type order (repeatable types appear as adjacent records
// of equal Type); EncodeRecords itself only serializes,
// it does not sort or validate ordering (DecodeRecords enforces ordering on
// the way back in, which is the side that matters for security).
func EncodeRecords(records []Record) []byte {
	var out []byte
	for _, r := range records {
		out = EncodeBigSize(r.Type, out)
		out = EncodeBigSize(uint64(len(r.Value)), out)
		out = append(out, r.Value...)
	}
	return out
}

// DecodeRecords parses a TLV byte stream into records, rejecting
// descending types and truncated lengths. Equal adjacent types are
// allowed at this layer because some entities carry repeatable fields
// (a token's capability list, a request's delegation chain); entity
// decoders reject duplicates of their non-repeatable types.
func DecodeRecords(b []byte) ([]Record, error) {
	var records []Record
	idx := 0
	haveLast := false
	var lastType uint64

	for idx < len(b) {
		t, tLen, err := DecodeBigSize(b[idx:])
		if err != nil {
			return nil, err
		}
		idx += tLen

		length, lLen, err := DecodeBigSize(b[idx:])
		if err != nil {
			return nil, err
		}
		idx += lLen

		if idx+int(length) > len(b) {
			return nil, scraperr.Wrap(scraperr.ErrDecode, "tlv: length exceeds buffer")
		}
		if haveLast && t < lastType {
			return nil, scraperr.Wrap(scraperr.ErrDecode, "tlv: types must be ascending")
		}
		lastType = t
		haveLast = true

		value := make([]byte, length)
		copy(value, b[idx:idx+int(length)])
		idx += int(length)

		records = append(records, Record{Type: t, Value: value})
	}
	return records, nil
}

// RejectUnknownEven returns an error if t is even; used by every entity
// decoder's default case for TLV types it doesn't recognize. Odd unknown
// types are silently skipped by the caller (no action needed).
func RejectUnknownEven(t uint64) error {
	if t%2 == 0 {
		return scraperr.Wrap(scraperr.ErrDecode, "unknown even tlv type")
	}
	return nil
}
