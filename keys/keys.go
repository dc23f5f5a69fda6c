package keys

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/slb-bond-backend/interfaces"
)

func Generate() (*ecdsa.PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// Save writes the key as hex to path with 0600 permissions.
func Save(path string, key *ecdsa.PrivateKey) error {
	if err := crypto.SaveECDSA(path, key); err != nil {
		return fmt.Errorf("failed to save key to %s: %w", path, err)
	}
	return nil
}

func Load(path string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load key from %s: %w", path, err)
	}
	return key, nil
}

// FromHex parses a 0x-prefixed or bare hex private key.
func FromHex(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid private key: %v", interfaces.ErrInvalidArgument, err)
	}
	return key, nil
}

func ToHex(key *ecdsa.PrivateKey) string {
	return fmt.Sprintf("%x", crypto.FromECDSA(key))
}

func Address(key *ecdsa.PrivateKey) interfaces.Principal {
	return crypto.PubkeyToAddress(key.PublicKey)
}
