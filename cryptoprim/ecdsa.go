package cryptoprim

import (
	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// SignECDSADER signs a SHA-256 hash with priv and returns the DER-encoded
// signature used by the SAT-CAP "ES256K" compatibility profile.
func SignECDSADER(priv *btcec.PrivateKey, hash Hash) []byte {
	sig := btcecdsa.Sign(priv, hash[:])
	return sig.Serialize()
}

// VerifyECDSADER verifies a DER-encoded ECDSA signature over a SHA-256 hash
// under a 33-byte compressed secp256k1 public key. Fails closed on any
// malformed input.
func VerifyECDSADER(hash Hash, der []byte, compressedPub []byte) bool {
	pub, err := btcec.ParsePubKey(compressedPub)
	if err != nil {
		return false
	}
	sig, err := btcecdsa.ParseDERSignature(der)
	if err != nil {
		return false
	}
	return sig.Verify(hash[:], pub)
}
