package token

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"

	"scrap-protocol/cryptoprim"
	"scrap-protocol/scraperr"
)

// IssueRequest carries the parameters an operator uses to mint a root token.
type IssueRequest struct {
	Subject      []byte
	Audience     []byte
	Capabilities []string
	IssuedAt     uint32
	ExpiresAt    uint32
	Constraints  Constraints
	TokenID      *[16]byte // nil means "generate a fresh random id"
}

// Issue mints and signs a root capability token under the operator's key.
// The operator's public key becomes the token's issuer.
func Issue(priv *btcec.PrivateKey, operatorPubkey []byte, req IssueRequest) (*Token, error) {
	if req.IssuedAt >= req.ExpiresAt {
		return nil, scraperr.Wrap(scraperr.ErrConstraintViolation, "issued_at must precede expires_at")
	}
	for _, c := range req.Capabilities {
		if !ValidCapability(c) {
			return nil, scraperr.Wrap(scraperr.ErrInvalidCapability, "malformed capability: "+c)
		}
	}
	tokenID := req.TokenID
	if tokenID == nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return nil, scraperr.Wrap(scraperr.ErrEncode, "token id generation failed")
		}
		var arr [16]byte
		copy(arr[:], id[:])
		tokenID = &arr
	}

	tok := &Token{
		Version:      1,
		Issuer:       operatorPubkey,
		Subject:      req.Subject,
		Audience:     req.Audience,
		IssuedAt:     req.IssuedAt,
		ExpiresAt:    req.ExpiresAt,
		TokenID:      *tokenID,
		Capabilities: req.Capabilities,
		Constraints:  req.Constraints,
	}

	if err := sign(tok, priv, cryptoprim.TagToken); err != nil {
		return nil, err
	}
	return tok, nil
}

func sign(tok *Token, priv *btcec.PrivateKey, tag string) error {
	hash := cryptoprim.TaggedHash(tag, tok.EncodeTLVWithoutSignature())
	sig, err := cryptoprim.SignSchnorr(priv, hash)
	if err != nil {
		return err
	}
	tok.Signature = sig
	return nil
}
