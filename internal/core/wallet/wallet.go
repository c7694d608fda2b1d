// Package wallet creates and restores the custodial EVM wallets held for SMS users.
package wallet

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyLength is the size of a secp256k1 private key in bytes.
const KeyLength = 32

// ErrCorruptKey is returned when stored key material does not decode to KeyLength bytes.
// Retrying cannot fix it.
var ErrCorruptKey = errors.New("corrupt private key material")

// Wallet is a key pair and its derived address.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// Address returns the checksummed hex address.
func (w *Wallet) Address() string {
	return w.address.Hex()
}

// PrivateKeyBytes returns the raw 32-byte private key.
func (w *Wallet) PrivateKeyBytes() []byte {
	return crypto.FromECDSA(w.key)
}

// Generator creates and reconstructs wallets.
type Generator interface {
	New() (*Wallet, error)
	FromPrivateKey(key []byte) (*Wallet, error)
}

// Secp256k1 is the go-ethereum backed Generator.
type Secp256k1 struct{}

// NewGenerator returns the default wallet generator.
func NewGenerator() Secp256k1 {
	return Secp256k1{}
}

// New generates a fresh random wallet.
func (Secp256k1) New() (*Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return fromECDSA(key), nil
}

// FromPrivateKey restores a wallet from raw key bytes.
func (Secp256k1) FromPrivateKey(key []byte) (*Wallet, error) {
	if len(key) != KeyLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrCorruptKey, len(key))
	}
	pk, err := crypto.ToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("restore key: %w", err)
	}
	return fromECDSA(pk), nil
}

func fromECDSA(key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// EncodeKey encodes raw key material for storage.
func EncodeKey(key []byte) string {
	return hex.EncodeToString(key)
}

// DecodeKey decodes stored key material. Any result other than KeyLength
// bytes is reported as ErrCorruptKey.
func DecodeKey(encoded string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(encoded), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptKey, err)
	}
	if len(raw) != KeyLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrCorruptKey, len(raw))
	}
	return raw, nil
}
