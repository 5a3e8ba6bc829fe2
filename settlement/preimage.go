// Package settlement binds a task's correlation id to its HTLC-style
// payment hash/preimage pair and implements the execution-proof hash and
// its sign/verify helpers.
package settlement

import "scrap-protocol/cryptoprim"

// DerivePreimage implements preimage = TaggedHash("SCRAP/preimage/v1", correlation_id).
func DerivePreimage(correlationID [32]byte) cryptoprim.Hash {
	return cryptoprim.TaggedHash(cryptoprim.TagPreimage, correlationID[:])
}

// DerivePaymentHash implements payment_hash = SHA256(preimage). Revealing
// the preimage that hashes to payment_hash redeems the HTLC.
func DerivePaymentHash(correlationID [32]byte) cryptoprim.Hash {
	preimage := DerivePreimage(correlationID)
	return cryptoprim.SHA256(preimage[:])
}

// PreimageRedeemsHash reports whether preimage is the correct redemption
// for paymentHash, i.e. SHA256(preimage) == payment_hash.
func PreimageRedeemsHash(preimage, paymentHash [32]byte) bool {
	return cryptoprim.SHA256(preimage[:]) == cryptoprim.Hash(paymentHash)
}
