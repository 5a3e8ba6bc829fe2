package cryptoprim

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"scrap-protocol/scraperr"
)

// XOnlyPubKey is the 32-byte normalized public key form used for Schnorr
// comparisons and audience binding.
type XOnlyPubKey [32]byte

// NormalizePubKey accepts either a 33-byte compressed secp256k1 key or a
// 32-byte x-only key and returns its canonical 32-byte x-only form.
func NormalizePubKey(raw []byte) (XOnlyPubKey, error) {
	switch len(raw) {
	case 32:
		if _, err := schnorr.ParsePubKey(raw); err != nil {
			return XOnlyPubKey{}, scraperr.Wrap(scraperr.ErrInvalidPublicKey, err.Error())
		}
		var out XOnlyPubKey
		copy(out[:], raw)
		return out, nil
	case 33:
		pub, err := btcec.ParsePubKey(raw)
		if err != nil {
			return XOnlyPubKey{}, scraperr.Wrap(scraperr.ErrInvalidPublicKey, err.Error())
		}
		var out XOnlyPubKey
		copy(out[:], schnorr.SerializePubKey(pub))
		return out, nil
	default:
		return XOnlyPubKey{}, scraperr.Wrap(scraperr.ErrInvalidPublicKey, "pubkey must be 32 or 33 bytes")
	}
}

// KeyID returns the audience key-id form of an x-only public key:
// SHA256(xonly_pubkey).
func (k XOnlyPubKey) KeyID() Hash {
	return SHA256(k[:])
}

// SignSchnorr signs hash (already tagged-hashed) with priv, producing the
// 64-byte Schnorr signature format used throughout the TLV profile.
func SignSchnorr(priv *btcec.PrivateKey, hash Hash) ([64]byte, error) {
	sig, err := schnorr.Sign(priv, hash[:])
	if err != nil {
		return [64]byte{}, scraperr.Wrap(scraperr.ErrInvalidPrivateKey, err.Error())
	}
	var out [64]byte
	copy(out[:], sig.Serialize())
	return out, nil
}

// VerifySchnorr verifies a 64-byte Schnorr signature over hash under pub.
// It fails closed: any malformed signature or key yields false rather than
// an error, matching the "all verifications fail closed" rule.
func VerifySchnorr(hash Hash, sig [64]byte, pub XOnlyPubKey) bool {
	parsedSig, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return false
	}
	parsedPub, err := schnorr.ParsePubKey(pub[:])
	if err != nil {
		return false
	}
	return parsedSig.Verify(hash[:], parsedPub)
}
