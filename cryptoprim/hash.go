// Package cryptoprim implements the hashing and signature primitives the
// rest of the protocol is built on: SHA-256, domain-separated tagged
// hashes, and the two signature profiles (Schnorr/secp256k1 for the TLV
// token profile, ECDSA-DER/secp256k1 for the CBOR SAT-CAP profile).
//
// Everything here is a pure function over byte slices — no I/O, no global
// state — matching the synchronous, computation-only core described for
// the rest of the kernel.
package cryptoprim

import "crypto/sha256"

// Hash is a 32-byte SHA-256 digest.
type Hash [32]byte

// Tags used to domain-separate signature inputs. Each is hashed once (via
// TaggedHash) so distinct message kinds can never collide under the same
// signature.
const (
	TagToken      = "SCRAP/token/v1"
	TagDelegation = "SCRAP/delegation/v1"
	TagTaskRequest = "SCRAP/task_request/v1"
	TagTaskAccept = "SCRAP/task_accept/v1"
	TagProof      = "SCRAP/proof/v1"
	TagPreimage   = "SCRAP/preimage/v1"
	TagSatCap     = "SCRAP/sat-cap/v1"
)

// SHA256 hashes b and returns the digest.
func SHA256(b []byte) Hash {
	return sha256.Sum256(b)
}

// TaggedHash implements SHA256(SHA256(tag) || SHA256(tag) || msg), the
// domain-separated hash used for every signature input in the protocol.
func TaggedHash(tag string, msg []byte) Hash {
	tagHash := sha256.Sum256([]byte(tag))
	h := sha256.New()
	h.Write(tagHash[:])
	h.Write(tagHash[:])
	h.Write(msg)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
