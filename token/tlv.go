package token

import (
	"encoding/binary"

	"scrap-protocol/scraperr"
	"scrap-protocol/wire"
)

// Token TLV type numbers, fixed per the wire reference table.
const (
	tlvVersion   uint64 = 0
	tlvIssuer    uint64 = 2
	tlvSubject   uint64 = 4
	tlvAudience  uint64 = 6
	tlvIssuedAt  uint64 = 8
	tlvExpiresAt uint64 = 10
	tlvTokenID   uint64 = 12
	tlvCapability uint64 = 14

	tlvConstraintGeo       uint64 = 13
	tlvConstraintRate      uint64 = 15
	tlvConstraintAmount    uint64 = 17
	tlvConstraintNotBefore uint64 = 19

	tlvRootIssuer    uint64 = 20
	tlvRootTokenID   uint64 = 22
	tlvParentTokenID uint64 = 24
	tlvChainDepth    uint64 = 26

	tlvSignature uint64 = 240
)

// EncodeTLV serializes the token including its signature field.
func (t *Token) EncodeTLV() []byte {
	records := t.baseRecords()
	records = append(records, wire.Record{Type: tlvSignature, Value: t.Signature[:]})
	return wire.EncodeRecords(records)
}

// EncodeTLVWithoutSignature serializes every field except the signature;
// this is the byte string that gets tagged-hashed and signed.
func (t *Token) EncodeTLVWithoutSignature() []byte {
	return wire.EncodeRecords(t.baseRecords())
}

func (t *Token) baseRecords() []wire.Record {
	var records []wire.Record
	records = append(records, wire.Record{Type: tlvVersion, Value: []byte{t.Version}})
	records = append(records, wire.Record{Type: tlvIssuer, Value: t.Issuer})
	records = append(records, wire.Record{Type: tlvSubject, Value: t.Subject})
	records = append(records, wire.Record{Type: tlvAudience, Value: t.Audience})
	records = append(records, wire.Record{Type: tlvIssuedAt, Value: be32(t.IssuedAt)})
	records = append(records, wire.Record{Type: tlvExpiresAt, Value: be32(t.ExpiresAt)})
	records = append(records, wire.Record{Type: tlvTokenID, Value: t.TokenID[:]})
	// Type numbers interleave here: constraint.geo (13) sits below the
	// repeatable capability type (14). Emission must stay in ascending
	// type order or the decoder rejects our own output.
	if t.Constraints.HasGeo {
		records = append(records, wire.Record{Type: tlvConstraintGeo, Value: []byte(t.Constraints.Geo)})
	}
	for _, cap := range t.Capabilities {
		records = append(records, wire.Record{Type: tlvCapability, Value: []byte(cap)})
	}
	if t.Constraints.HasRate {
		v := make([]byte, 8)
		binary.BigEndian.PutUint32(v[0:4], t.Constraints.RateCount)
		binary.BigEndian.PutUint32(v[4:8], t.Constraints.RatePeriod)
		records = append(records, wire.Record{Type: tlvConstraintRate, Value: v})
	}
	if t.Constraints.HasAmount {
		records = append(records, wire.Record{Type: tlvConstraintAmount, Value: be64(t.Constraints.Amount)})
	}
	if t.Constraints.HasNotBefore {
		records = append(records, wire.Record{Type: tlvConstraintNotBefore, Value: be32(t.Constraints.NotBefore)})
	}
	if t.Delegation.HasRootIssuer {
		records = append(records, wire.Record{Type: tlvRootIssuer, Value: t.Delegation.RootIssuer})
	}
	if t.Delegation.HasRootTokenID {
		records = append(records, wire.Record{Type: tlvRootTokenID, Value: t.Delegation.RootTokenID[:]})
	}
	if t.Delegation.HasParentTokenID {
		records = append(records, wire.Record{Type: tlvParentTokenID, Value: t.Delegation.ParentTokenID[:]})
	}
	if t.Delegation.HasChainDepth {
		records = append(records, wire.Record{Type: tlvChainDepth, Value: []byte{t.Delegation.ChainDepth}})
	}
	return records
}

// DecodeTLV parses an encoded token, rejecting unknown even types and
// requiring every mandatory field to be present.
func DecodeTLV(b []byte) (*Token, error) {
	records, err := wire.DecodeRecords(b)
	if err != nil {
		return nil, err
	}

	var tok Token
	var haveVersion, haveIssuer, haveSubject, haveAudience bool
	var haveIssuedAt, haveExpiresAt, haveTokenID, haveSignature bool

	seen := make(map[uint64]bool)
	for _, r := range records {
		if r.Type != tlvCapability && seen[r.Type] {
			return nil, scraperr.Wrap(scraperr.ErrDecode, "token duplicate tlv type")
		}
		seen[r.Type] = true
		switch r.Type {
		case tlvVersion:
			if len(r.Value) < 1 {
				return nil, scraperr.Wrap(scraperr.ErrDecode, "token missing version byte")
			}
			tok.Version = r.Value[0]
			haveVersion = true
		case tlvIssuer:
			tok.Issuer = r.Value
			haveIssuer = true
		case tlvSubject:
			tok.Subject = r.Value
			haveSubject = true
		case tlvAudience:
			tok.Audience = r.Value
			haveAudience = true
		case tlvIssuedAt:
			v, err := readU32(r.Value)
			if err != nil {
				return nil, err
			}
			tok.IssuedAt = v
			haveIssuedAt = true
		case tlvExpiresAt:
			v, err := readU32(r.Value)
			if err != nil {
				return nil, err
			}
			tok.ExpiresAt = v
			haveExpiresAt = true
		case tlvTokenID:
			id, err := readFixed16(r.Value)
			if err != nil {
				return nil, err
			}
			tok.TokenID = id
			haveTokenID = true
		case tlvCapability:
			tok.Capabilities = append(tok.Capabilities, string(r.Value))
		case tlvSignature:
			sig, err := readFixed64(r.Value)
			if err != nil {
				return nil, err
			}
			tok.Signature = sig
			haveSignature = true
		case tlvConstraintGeo:
			tok.Constraints.Geo = string(r.Value)
			tok.Constraints.HasGeo = true
		case tlvConstraintRate:
			if len(r.Value) != 8 {
				return nil, scraperr.Wrap(scraperr.ErrDecode, "constraint_rate length invalid")
			}
			tok.Constraints.RateCount = binary.BigEndian.Uint32(r.Value[0:4])
			tok.Constraints.RatePeriod = binary.BigEndian.Uint32(r.Value[4:8])
			tok.Constraints.HasRate = true
		case tlvConstraintAmount:
			v, err := readU64(r.Value)
			if err != nil {
				return nil, err
			}
			tok.Constraints.Amount = v
			tok.Constraints.HasAmount = true
		case tlvConstraintNotBefore:
			v, err := readU32(r.Value)
			if err != nil {
				return nil, err
			}
			tok.Constraints.NotBefore = v
			tok.Constraints.HasNotBefore = true
		case tlvRootIssuer:
			tok.Delegation.RootIssuer = r.Value
			tok.Delegation.HasRootIssuer = true
		case tlvRootTokenID:
			id, err := readFixed16(r.Value)
			if err != nil {
				return nil, err
			}
			tok.Delegation.RootTokenID = id
			tok.Delegation.HasRootTokenID = true
		case tlvParentTokenID:
			id, err := readFixed16(r.Value)
			if err != nil {
				return nil, err
			}
			tok.Delegation.ParentTokenID = id
			tok.Delegation.HasParentTokenID = true
		case tlvChainDepth:
			if len(r.Value) < 1 {
				return nil, scraperr.Wrap(scraperr.ErrDecode, "token missing chain_depth byte")
			}
			tok.Delegation.ChainDepth = r.Value[0]
			tok.Delegation.HasChainDepth = true
		default:
			if err := wire.RejectUnknownEven(r.Type); err != nil {
				return nil, err
			}
		}
	}

	if !haveVersion || !haveIssuer || !haveSubject || !haveAudience || !haveIssuedAt ||
		!haveExpiresAt || !haveTokenID || !haveSignature {
		return nil, scraperr.Wrap(scraperr.ErrMissingField, "token missing required field")
	}
	return &tok, nil
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

func readFixed64(b []byte) ([64]byte, error) {
	var out [64]byte
	if len(b) != 64 {
		return out, &scraperr.InvalidHashLength{Expected: 64, Got: len(b)}
	}
	copy(out[:], b)
	return out, nil
}
