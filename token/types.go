// Package token implements capability tokens: their fields, TLV encoding,
// signing, delegation, and the capability-string grammar used to match
// granted capabilities against requested ones.
package token

import "scrap-protocol/cryptoprim"

// Constraints narrows what a token's capabilities may be used for. All
// fields are optional; zero value means "unset", not "unlimited zero".
type Constraints struct {
	Geo       string
	HasGeo    bool
	RateCount uint32
	RatePeriod uint32
	HasRate   bool
	Amount    uint64
	HasAmount bool
	NotBefore uint32
	HasNotBefore bool
}

// Delegation records where a token sits in a delegation chain. A root
// token (directly operator-issued) leaves every field unset.
type Delegation struct {
	RootIssuer   []byte
	HasRootIssuer bool
	RootTokenID  [16]byte
	HasRootTokenID bool
	ParentTokenID [16]byte
	HasParentTokenID bool
	ChainDepth   uint8
	HasChainDepth bool
}

// Token is a capability token as described by the protocol's data model.
type Token struct {
	Version      uint8
	Issuer       []byte
	Subject      []byte
	Audience     []byte
	IssuedAt     uint32
	ExpiresAt    uint32
	TokenID      [16]byte
	Capabilities []string
	Constraints  Constraints
	Delegation   Delegation
	Signature    [64]byte
}

// ChainDepthMismatch reports whether a root-positioned token (no parent
// recorded) nonetheless carries a nonzero chain depth, which structurally
// cannot happen for a legitimate root.
func (t *Token) ChainDepthMismatch() bool {
	return t.Delegation.HasChainDepth && t.Delegation.ChainDepth != 0
}

// KeyID returns SHA256(normalized x-only pubkey) for raw, the audience
// key-id form used when a token's audience commits to an identity without
// carrying the raw key.
func KeyID(raw []byte) (cryptoprim.Hash, error) {
	xonly, err := cryptoprim.NormalizePubKey(raw)
	if err != nil {
		return cryptoprim.Hash{}, err
	}
	return xonly.KeyID(), nil
}
