package messages

import "scrap-protocol/cryptoprim"

// RequestHash is SHA256(encoded-without-signature); it doubles as the
// request's correlation_id, the stable identifier binding every later
// message of this task.
func (r *TaskRequest) RequestHash() [32]byte {
	return cryptoprim.SHA256(r.EncodeTLVWithoutSignature())
}

// CommanderSigningHash is the tagged hash the commander's signature commits to.
func (r *TaskRequest) CommanderSigningHash() cryptoprim.Hash {
	return cryptoprim.TaggedHash(cryptoprim.TagTaskRequest, r.EncodeTLVWithoutSignature())
}

// ExecutorSigningHash is the tagged hash the executor's signature on a
// TaskAccept commits to.
func (a *TaskAccept) ExecutorSigningHash() cryptoprim.Hash {
	return cryptoprim.TaggedHash(cryptoprim.TagTaskAccept, a.EncodeTLVWithoutSignature())
}
