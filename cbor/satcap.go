package cbor

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/fxamacker/cbor/v2"

	"scrap-protocol/cryptoprim"
	"scrap-protocol/scraperr"
)

// Algorithm names selectable via CapHeader.Alg.
const (
	AlgES256K           = "ES256K"
	AlgSchnorrSecp256k1 = "SCHNORR-SECP256K1"
)

// CapHeader is the SAT-CAP token header.
type CapHeader struct {
	Alg string `cbor:"alg"`
	Typ string `cbor:"typ"`
	Enc string `cbor:"enc,omitempty"`
	Chn uint32 `cbor:"chn,omitempty"`
}

// CapConstraints mirrors token.Constraints for the CBOR SAT-CAP payload.
type CapConstraints = ConstraintsEntity

// CapPayload is the SAT-CAP token payload.
type CapPayload struct {
	Iss    string          `cbor:"iss"`
	Sub    string          `cbor:"sub"`
	Aud    string          `cbor:"aud"`
	Iat    uint64          `cbor:"iat"`
	Exp    uint64          `cbor:"exp"`
	Jti    string          `cbor:"jti"`
	Cap    []string        `cbor:"cap"`
	Cns    *CapConstraints `cbor:"cns,omitempty"`
	Prf    string          `cbor:"prf,omitempty"`
	CmdPub []byte          `cbor:"cmd_pub,omitempty"`
}

// CapToken is the top-level SAT-CAP envelope: {header, payload, signature}.
type CapToken struct {
	Header    CapHeader  `cbor:"header"`
	Payload   CapPayload `cbor:"payload"`
	Signature []byte     `cbor:"signature"`
}

// encodePayload renders header and payload (but not signature) as the
// canonical CBOR bytes that form the signing input.
func encodePayload(header CapHeader, payload CapPayload) ([]byte, error) {
	return encMode.Marshal(struct {
		Header  CapHeader  `cbor:"header"`
		Payload CapPayload `cbor:"payload"`
	}{header, payload})
}

// Sign produces a complete CapToken, signing header‖payload under the
// algorithm named in header.Alg.
func Sign(priv *btcec.PrivateKey, header CapHeader, payload CapPayload) (*CapToken, error) {
	signingInput, err := encodePayload(header, payload)
	if err != nil {
		return nil, scraperr.Wrap(scraperr.ErrEncode, err.Error())
	}
	hash := cryptoprim.TaggedHash(cryptoprim.TagSatCap, signingInput)

	var sig []byte
	switch header.Alg {
	case AlgES256K:
		sig = cryptoprim.SignECDSADER(priv, hash)
	case AlgSchnorrSecp256k1:
		s, err := cryptoprim.SignSchnorr(priv, hash)
		if err != nil {
			return nil, err
		}
		sig = s[:]
	default:
		return nil, scraperr.Wrap(scraperr.ErrInvalidCapability, "unknown sat-cap alg: "+header.Alg)
	}

	return &CapToken{Header: header, Payload: payload, Signature: sig}, nil
}

// Verify checks a CapToken's signature against pub, selecting the
// verification profile from tok.Header.Alg. pub must be a 33-byte
// compressed key for ES256K and a 32-byte x-only key for
// SCHNORR-SECP256K1.
func Verify(tok *CapToken, pub []byte) error {
	signingInput, err := encodePayload(tok.Header, tok.Payload)
	if err != nil {
		return scraperr.Wrap(scraperr.ErrEncode, err.Error())
	}
	hash := cryptoprim.TaggedHash(cryptoprim.TagSatCap, signingInput)

	switch tok.Header.Alg {
	case AlgES256K:
		if !cryptoprim.VerifyECDSADER(hash, tok.Signature, pub) {
			return scraperr.Wrap(scraperr.ErrVerificationFailed, "sat-cap ES256K signature invalid")
		}
	case AlgSchnorrSecp256k1:
		if len(tok.Signature) != 64 {
			return scraperr.Wrap(scraperr.ErrVerificationFailed, "sat-cap schnorr signature must be 64 bytes")
		}
		xonly, err := cryptoprim.NormalizePubKey(pub)
		if err != nil {
			return err
		}
		var sig [64]byte
		copy(sig[:], tok.Signature)
		if !cryptoprim.VerifySchnorr(hash, sig, xonly) {
			return scraperr.Wrap(scraperr.ErrVerificationFailed, "sat-cap schnorr signature invalid")
		}
	default:
		return scraperr.Wrap(scraperr.ErrInvalidCapability, "unknown sat-cap alg: "+tok.Header.Alg)
	}
	return nil
}

// Encode renders a CapToken as canonical CBOR bytes.
func Encode(tok *CapToken) ([]byte, error) {
	return encMode.Marshal(tok)
}

// Decode parses CBOR bytes into a CapToken.
func Decode(b []byte) (*CapToken, error) {
	var tok CapToken
	if err := cbor.Unmarshal(b, &tok); err != nil {
		return nil, scraperr.Wrap(scraperr.ErrDecode, err.Error())
	}
	return &tok, nil
}

// BindingHash commits a SAT-CAP token to its conditional payment:
// SHA256(jti || payment_hash). Both sides recompute it to check a token
// and a payment lock refer to the same task.
func BindingHash(jti string, paymentHash [32]byte) cryptoprim.Hash {
	msg := make([]byte, 0, len(jti)+32)
	msg = append(msg, jti...)
	msg = append(msg, paymentHash[:]...)
	return cryptoprim.SHA256(msg)
}

// ProofDigest is the SAT-CAP profile's execution-proof commitment:
// SHA256(task_jti || payment_hash || output_hash || timestamp_be64).
// The TLV profile commits to the same facts through its own tagged
// proof hash; this form exists for CBOR-profile interoperability.
func ProofDigest(taskJti string, paymentHash, outputHash [32]byte, timestamp uint64) cryptoprim.Hash {
	msg := make([]byte, 0, len(taskJti)+32+32+8)
	msg = append(msg, taskJti...)
	msg = append(msg, paymentHash[:]...)
	msg = append(msg, outputHash[:]...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], timestamp)
	msg = append(msg, ts[:]...)
	return cryptoprim.SHA256(msg)
}
