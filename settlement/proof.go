package settlement

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"

	"scrap-protocol/cryptoprim"
	"scrap-protocol/messages"
)

// ProofHash implements proof_hash = TaggedHash("SCRAP/proof/v1",
// task_token_id || payment_hash || output_hash || execution_timestamp_be32).
func ProofHash(p *messages.ProofOfExecution) cryptoprim.Hash {
	msg := make([]byte, 0, 16+32+32+4)
	msg = append(msg, p.TaskTokenID[:]...)
	msg = append(msg, p.PaymentHash[:]...)
	msg = append(msg, p.OutputHash[:]...)
	var ts [4]byte
	binary.BigEndian.PutUint32(ts[:], p.ExecutionTimestamp)
	msg = append(msg, ts[:]...)
	return cryptoprim.TaggedHash(cryptoprim.TagProof, msg)
}

// SignProof computes and signs a proof's hash under the executor's key,
// filling in ExecutorSignature.
func SignProof(priv *btcec.PrivateKey, p *messages.ProofOfExecution) error {
	sig, err := cryptoprim.SignSchnorr(priv, ProofHash(p))
	if err != nil {
		return err
	}
	p.ExecutorSignature = sig
	return nil
}

// VerifyProof checks a proof's signature under its claimed executor
// public key. It does not check binding against a specific task or lock;
// callers combine it with settlement-state checks for that.
func VerifyProof(p *messages.ProofOfExecution) bool {
	xonly, err := cryptoprim.NormalizePubKey(p.ExecutorPubkey)
	if err != nil {
		return false
	}
	return cryptoprim.VerifySchnorr(ProofHash(p), p.ExecutorSignature, xonly)
}
