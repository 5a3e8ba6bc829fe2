package token

import (
	"github.com/btcsuite/btcd/btcec/v2"

	"scrap-protocol/cryptoprim"
	"scrap-protocol/scraperr"
)

// DelegateRequest carries the parameters for narrowing a parent token into
// a child delegation.
type DelegateRequest struct {
	Subject      []byte
	Audience     []byte
	Capabilities []string
	ExpiresAt    uint32
	Constraints  Constraints
}

// Delegate builds and signs a child token narrowing parent. priv must be
// the private key corresponding to parent.Subject, since a delegation is
// signed by the bearer delegating it onward.
func Delegate(parent *Token, priv *btcec.PrivateKey, req DelegateRequest) (*Token, error) {
	if req.ExpiresAt > parent.ExpiresAt {
		return nil, scraperr.Wrap(scraperr.ErrDelegationExpiry, "child expiry exceeds parent")
	}
	for _, c := range req.Capabilities {
		if !ValidCapability(c) {
			return nil, scraperr.Wrap(scraperr.ErrInvalidCapability, "malformed capability: "+c)
		}
	}
	if !CapabilitiesSubset(req.Capabilities, parent.Capabilities) {
		return nil, scraperr.Wrap(scraperr.ErrDelegationCapability, "child capabilities not subset of parent")
	}

	rootIssuer := parent.Issuer
	if parent.Delegation.HasRootIssuer {
		rootIssuer = parent.Delegation.RootIssuer
	}
	rootTokenID := parent.TokenID
	if parent.Delegation.HasRootTokenID {
		rootTokenID = parent.Delegation.RootTokenID
	}
	parentDepth := uint8(0)
	if parent.Delegation.HasChainDepth {
		parentDepth = parent.Delegation.ChainDepth
	}

	child := &Token{
		Version:      parent.Version,
		Issuer:       parent.Subject,
		Subject:      req.Subject,
		Audience:     req.Audience,
		IssuedAt:     parent.IssuedAt,
		ExpiresAt:    req.ExpiresAt,
		Capabilities: req.Capabilities,
		Constraints:  req.Constraints,
		Delegation: Delegation{
			RootIssuer:       rootIssuer,
			HasRootIssuer:    true,
			RootTokenID:      rootTokenID,
			HasRootTokenID:   true,
			ParentTokenID:    parent.TokenID,
			HasParentTokenID: true,
			ChainDepth:       parentDepth + 1,
			HasChainDepth:    true,
		},
	}
	child.TokenID = deriveChildTokenID(child)

	if err := sign(child, priv, cryptoprim.TagDelegation); err != nil {
		return nil, err
	}
	return child, nil
}

// deriveChildTokenID assigns a deterministic, collision-resistant id to a
// delegated token derived from its parent linkage and narrowed fields,
// distinct from the root token_id's operator-assigned namespace.
func deriveChildTokenID(child *Token) [16]byte {
	h := cryptoprim.TaggedHash(cryptoprim.TagDelegation, child.EncodeTLVWithoutSignature())
	var id [16]byte
	copy(id[:], h[:16])
	return id
}
