// Package verifier implements the composite validator that checks
// capability tokens, delegation chains, task requests, task accepts, and
// execution proofs against the signature and binding rules of the
// protocol.
package verifier

import (
	"scrap-protocol/clock"
	"scrap-protocol/cryptoprim"
	"scrap-protocol/messages"
	"scrap-protocol/scraperr"
	"scrap-protocol/settlement"
	"scrap-protocol/token"
)

// Verifier checks signatures and bindings against a fixed operator and
// executor identity, using clk for expiry comparisons.
type Verifier struct {
	OperatorPubkey []byte
	ExecutorPubkey []byte
	Clk            clock.Clock
}

// New constructs a Verifier for one operator/executor pair.
func New(operatorPubkey, executorPubkey []byte, clk clock.Clock) *Verifier {
	return &Verifier{OperatorPubkey: operatorPubkey, ExecutorPubkey: executorPubkey, Clk: clk}
}

// VerifyToken checks a root (non-delegated) token: signature under the
// operator key, issuer identity, audience match, and expiry.
func (v *Verifier) VerifyToken(tok *token.Token) error {
	return v.verifyRoot(tok)
}

func (v *Verifier) verifyRoot(tok *token.Token) error {
	opXOnly, err := cryptoprim.NormalizePubKey(v.OperatorPubkey)
	if err != nil {
		return scraperr.Wrap(scraperr.ErrInvalidPublicKey, "operator public key invalid")
	}
	tokenHash := cryptoprim.TaggedHash(cryptoprim.TagToken, tok.EncodeTLVWithoutSignature())
	if !cryptoprim.VerifySchnorr(tokenHash, tok.Signature, opXOnly) {
		return scraperr.Wrap(scraperr.ErrInvalidSignature, "token signature invalid")
	}
	issuerXOnly, err := cryptoprim.NormalizePubKey(tok.Issuer)
	if err != nil {
		return scraperr.Wrap(scraperr.ErrInvalidPublicKey, "token issuer not a valid public key")
	}
	if issuerXOnly != opXOnly {
		return scraperr.Wrap(scraperr.ErrAudienceMismatch, "token issuer does not match operator")
	}
	matched, err := v.audienceMatches(tok.Audience)
	if err != nil {
		return err
	}
	if !matched {
		return scraperr.Wrap(scraperr.ErrAudienceMismatch, "token audience does not match executor")
	}
	if uint64(tok.ExpiresAt) <= v.Clk.Now() {
		return scraperr.Wrap(scraperr.ErrTokenExpired, "token expired")
	}
	if tok.Constraints.HasNotBefore && v.Clk.Now() < uint64(tok.Constraints.NotBefore) {
		return scraperr.Wrap(scraperr.ErrTokenNotYetValid, "token not yet valid")
	}
	return nil
}

func (v *Verifier) audienceMatches(audience []byte) (bool, error) {
	executorXOnly, err := cryptoprim.NormalizePubKey(v.ExecutorPubkey)
	if err != nil {
		return false, scraperr.Wrap(scraperr.ErrInvalidPublicKey, "executor public key invalid")
	}
	if audXOnly, err := cryptoprim.NormalizePubKey(audience); err == nil {
		if audXOnly == executorXOnly {
			return true, nil
		}
	}
	keyID := executorXOnly.KeyID()
	if len(audience) != len(keyID) {
		return false, nil
	}
	var audHash cryptoprim.Hash
	copy(audHash[:], audience)
	return audHash == keyID, nil
}

// VerifyDelegationChain validates a root token followed by zero or more
// delegated children, each narrowing the previous, ending at leaf.
// chain must be ordered root-first; leaf is the token actually presented
// (it may equal chain's last element's child, or chain may be empty and
// leaf itself is the root).
func (v *Verifier) VerifyDelegationChain(chain []*token.Token, leaf *token.Token) error {
	full := append(append([]*token.Token{}, chain...), leaf)

	root := full[0]
	if err := v.verifyRoot(root); err != nil {
		return err
	}
	if root.ChainDepthMismatch() {
		return scraperr.Wrap(scraperr.ErrDelegationDepth, "root chain_depth must be zero")
	}

	for i := 1; i < len(full); i++ {
		parent := full[i-1]
		child := full[i]

		parentXOnly, err := cryptoprim.NormalizePubKey(parent.Subject)
		if err != nil {
			return scraperr.Wrap(scraperr.ErrInvalidPublicKey, "delegation parent subject invalid")
		}
		issuerXOnly, err := cryptoprim.NormalizePubKey(child.Issuer)
		if err != nil {
			return scraperr.Wrap(scraperr.ErrInvalidPublicKey, "delegation child issuer invalid")
		}
		if issuerXOnly != parentXOnly {
			return scraperr.Wrap(scraperr.ErrInvalidCapability, "delegation issuer does not match parent subject")
		}

		childHash := cryptoprim.TaggedHash(cryptoprim.TagDelegation, child.EncodeTLVWithoutSignature())
		if !cryptoprim.VerifySchnorr(childHash, child.Signature, parentXOnly) {
			return scraperr.Wrap(scraperr.ErrInvalidSignature, "delegation signature invalid")
		}
		if child.ExpiresAt > parent.ExpiresAt {
			return scraperr.Wrap(scraperr.ErrDelegationExpiry, "delegation extends parent expiration")
		}
		if !token.CapabilitiesSubset(child.Capabilities, parent.Capabilities) {
			return scraperr.Wrap(scraperr.ErrDelegationCapability, "delegation capability not subset of parent")
		}
		parentDepth := uint8(0)
		if parent.Delegation.HasChainDepth {
			parentDepth = parent.Delegation.ChainDepth
		}
		if !child.Delegation.HasChainDepth || child.Delegation.ChainDepth != parentDepth+1 {
			return scraperr.Wrap(scraperr.ErrDelegationDepth, "delegation chain_depth mismatch")
		}
		if !child.Delegation.HasParentTokenID || child.Delegation.ParentTokenID != parent.TokenID {
			return scraperr.Wrap(scraperr.ErrDelegationDepth, "delegation parent_token_id does not reference parent")
		}
		rootIssuer := root.Issuer
		if !child.Delegation.HasRootIssuer || string(child.Delegation.RootIssuer) != string(rootIssuer) {
			return scraperr.Wrap(scraperr.ErrDelegationDepth, "delegation root_issuer mismatch")
		}
		if !child.Delegation.HasRootTokenID || child.Delegation.RootTokenID != root.TokenID {
			return scraperr.Wrap(scraperr.ErrDelegationDepth, "delegation root_token_id mismatch")
		}
		if uint64(child.ExpiresAt) <= v.Clk.Now() {
			return scraperr.Wrap(scraperr.ErrTokenExpired, "delegated token expired")
		}
		if child.Constraints.HasNotBefore && v.Clk.Now() < uint64(child.Constraints.NotBefore) {
			return scraperr.Wrap(scraperr.ErrTokenNotYetValid, "delegated token not yet valid")
		}
	}
	return nil
}

// VerifyRequest decodes the embedded capability token (and delegation
// chain, if any), verifies it, verifies the commander's signature, and
// checks that task_type is authorized by the leaf token's capabilities.
func (v *Verifier) VerifyRequest(req *messages.TaskRequest) error {
	leaf, err := token.DecodeTLV(req.CapabilityToken)
	if err != nil {
		return err
	}

	if len(req.DelegationChain) > 0 {
		chain := make([]*token.Token, 0, len(req.DelegationChain))
		for _, raw := range req.DelegationChain {
			parent, err := token.DecodeTLV(raw)
			if err != nil {
				return err
			}
			chain = append(chain, parent)
		}
		if err := v.VerifyDelegationChain(chain, leaf); err != nil {
			return err
		}
	} else {
		if err := v.verifyRoot(leaf); err != nil {
			return err
		}
	}

	commanderXOnly, err := cryptoprim.NormalizePubKey(leaf.Subject)
	if err != nil {
		return scraperr.Wrap(scraperr.ErrInvalidPublicKey, "request subject invalid")
	}
	if !cryptoprim.VerifySchnorr(req.CommanderSigningHash(), req.CommanderSignature, commanderXOnly) {
		return scraperr.Wrap(scraperr.ErrInvalidSignature, "commander signature invalid")
	}

	if req.TaskType == "" {
		return scraperr.Wrap(scraperr.ErrMissingField, "task_type missing")
	}
	if !token.ValidCapability(req.TaskType) {
		return scraperr.Wrap(scraperr.ErrInvalidCapability, "task_type malformed")
	}
	if !token.Authorizes(leaf.Capabilities, req.TaskType) {
		return scraperr.Wrap(scraperr.ErrInvalidCapability, "task_type not authorized by token")
	}
	return nil
}

// VerifyAccept checks that an accept replies to expectedRequestHash and
// carries a valid executor signature.
func (v *Verifier) VerifyAccept(accept *messages.TaskAccept, expectedRequestHash [32]byte) error {
	if accept.InReplyTo != expectedRequestHash {
		return scraperr.Wrap(scraperr.ErrCorrelationMismatch, "task_accept in_reply_to mismatch")
	}
	executorXOnly, err := cryptoprim.NormalizePubKey(v.ExecutorPubkey)
	if err != nil {
		return scraperr.Wrap(scraperr.ErrInvalidPublicKey, "executor public key invalid")
	}
	if !cryptoprim.VerifySchnorr(accept.ExecutorSigningHash(), accept.ExecutorSignature, executorXOnly) {
		return scraperr.Wrap(scraperr.ErrInvalidSignature, "executor signature invalid")
	}
	return nil
}

// VerifyProof checks the executor signature over a proof's own proof_hash.
func (v *Verifier) VerifyProof(proof *messages.ProofOfExecution) error {
	if !settlement.VerifyProof(proof) {
		return scraperr.Wrap(scraperr.ErrInvalidSignature, "proof signature invalid")
	}
	return nil
}

// VerifyClaim checks that a claim's preimage redeems its payment_hash.
func (v *Verifier) VerifyClaim(claim *messages.PaymentClaim) error {
	if !settlement.PreimageRedeemsHash(claim.Preimage, claim.PaymentHash) {
		return scraperr.Wrap(scraperr.ErrPaymentHashMismatch, "claim preimage does not redeem payment hash")
	}
	return nil
}
