// Package keys turns mnemonic phrases into Solana signing keys and converts
// keys to and from the opaque string handle callers pass around.
package keys

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"
)

// ErrKeyDerivation matches every KeyDerivationError via errors.Is.
var ErrKeyDerivation = errors.New("key derivation failed")

// KeyDerivationError reports why a mnemonic or signer handle was rejected.
type KeyDerivationError struct {
	Reason string
	Err    error
}

func (e *KeyDerivationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("key derivation failed: %s: %v", e.Reason, e.Err)
	}
	return "key derivation failed: " + e.Reason
}

func (e *KeyDerivationError) Unwrap() error { return e.Err }

func (e *KeyDerivationError) Is(target error) bool { return target == ErrKeyDerivation }

// DeriveSigner derives an ed25519 signing key from a BIP-39 mnemonic and an
// optional passphrase. The key seed is the first 32 bytes of the BIP-39 seed,
// which is how solana-keygen recovers keypairs without a derivation path.
func DeriveSigner(mnemonic, passphrase string) (solana.PrivateKey, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if mnemonic == "" {
		return nil, &KeyDerivationError{Reason: "mnemonic is empty"}
	}

	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, &KeyDerivationError{Reason: "invalid mnemonic", Err: err}
	}

	return solana.PrivateKey(ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])), nil
}

// NewMnemonic generates a fresh English mnemonic from bits of entropy
// (128 to 256, a multiple of 32).
func NewMnemonic(bits int) (string, error) {
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// EncodeSigner renders a key as its signer handle: base58 of the 64-byte keypair.
func EncodeSigner(key solana.PrivateKey) string {
	return key.String()
}

// DecodeSigner parses a signer handle produced by EncodeSigner. The public half
// must match the private half.
func DecodeSigner(handle string) (solana.PrivateKey, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, &KeyDerivationError{Reason: "signer handle is empty"}
	}

	key, err := solana.PrivateKeyFromBase58(handle)
	if err != nil {
		return nil, &KeyDerivationError{Reason: "signer handle is not base58", Err: err}
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, &KeyDerivationError{Reason: fmt.Sprintf("signer handle decodes to %d bytes, want %d", len(key), ed25519.PrivateKeySize)}
	}

	expected := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !ed25519.PublicKey(expected[ed25519.SeedSize:]).Equal(ed25519.PublicKey(key[ed25519.SeedSize:])) {
		return nil, &KeyDerivationError{Reason: "signer handle public key does not match private key"}
	}
	return key, nil
}

// AddressOf returns the base58 address of the signer behind handle.
func AddressOf(handle string) (solana.PublicKey, error) {
	key, err := DecodeSigner(handle)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return key.PublicKey(), nil
}
