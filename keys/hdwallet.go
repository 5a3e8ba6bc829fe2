// Package keys derives operator, commander and executor secp256k1
// identities from BIP-39 mnemonics using SLIP-0010-style hardened HMAC
// derivation, for demo fixtures and CLI key material.
//
// Derivation model: hardened children only, path m / role' / index'. This
// keeps derivation simple and matches the hardened-only scheme secp256k1
// key material is normally derived under.
package keys

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	bip39 "github.com/tyler-smith/go-bip39"
)

const (
	hardenedOffset uint32 = 0x80000000
	masterHMACKey         = "scrap-protocol seed"
)

// HDWallet keeps master key material in memory only. Never persist the
// private fields directly; use an encrypted keystore instead.
type HDWallet struct {
	seed        []byte
	masterKey   []byte
	masterChain []byte
}

// Seed returns a copy of the wallet's master seed. Callers should wipe the
// returned slice after use.
func (w *HDWallet) Seed() []byte {
	out := make([]byte, len(w.seed))
	copy(out, w.seed)
	return out
}

// NewRandomWallet generates entropyBits (128/256) of RNG entropy and
// returns a wallet plus its BIP-39 mnemonic. The caller must store the
// mnemonic securely.
func NewRandomWallet(entropyBits int) (*HDWallet, string, error) {
	if entropyBits != 128 && entropyBits != 256 {
		return nil, "", errors.New("unsupported entropy size")
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, "", err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", err
	}
	seed := bip39.NewSeed(mnemonic, "")
	w, err := NewHDWalletFromSeed(seed)
	if err != nil {
		return nil, "", err
	}
	return w, mnemonic, nil
}

// WalletFromMnemonic imports an existing BIP-39 phrase.
func WalletFromMnemonic(mnemonic, passphrase string) (*HDWallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic checksum")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	return NewHDWalletFromSeed(seed)
}

// NewHDWalletFromSeed builds a wallet directly from a seed, bypassing
// mnemonic generation (useful for deterministic test fixtures).
func NewHDWalletFromSeed(seed []byte) (*HDWallet, error) {
	if len(seed) < 16 {
		return nil, errors.New("seed too short")
	}
	I := hmacSHA512([]byte(masterHMACKey), seed)
	return &HDWallet{
		seed:        seed,
		masterKey:   I[:32],
		masterChain: I[32:],
	}, nil
}

func hmacSHA512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// derivePrivate returns the key material and chain code for a hardened
// index. Index must already carry the hardened offset.
func derivePrivate(parentKey, parentChain []byte, index uint32) (key, ccode []byte, err error) {
	if index < hardenedOffset {
		return nil, nil, errors.New("non-hardened derivation not supported")
	}
	data := make([]byte, 1+32+4)
	copy(data[1:], parentKey)
	binary.BigEndian.PutUint32(data[33:], index)

	I := hmacSHA512(parentChain, data)
	return I[:32], I[32:], nil
}

// Role identifies which party a derived key is for, forming the first
// hardened derivation level (m / role').
type Role uint32

const (
	RoleOperator Role = iota
	RoleCommander
	RoleExecutor
	RoleVerifier
)

// PrivateKey derives the secp256k1 private key at m / role' / index'.
func (w *HDWallet) PrivateKey(role Role, index uint32) (*btcec.PrivateKey, error) {
	roleIdx := uint32(role) | hardenedOffset
	idx := index | hardenedOffset

	k1, c1, err := derivePrivate(w.masterKey, w.masterChain, roleIdx)
	if err != nil {
		return nil, err
	}
	k2, _, err := derivePrivate(k1, c1, idx)
	if err != nil {
		return nil, err
	}
	priv, _ := btcec.PrivKeyFromBytes(k2)
	return priv, nil
}

// RandomMnemonicEntropy produces cryptographically secure random entropy
// of the given bit length.
func RandomMnemonicEntropy(bits int) ([]byte, error) {
	if bits%32 != 0 {
		return nil, errors.New("entropy bits must be multiple of 32")
	}
	return bip39.NewEntropy(bits)
}

// Wipe zeroes a byte slice in place (best effort; the GC may still copy).
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
