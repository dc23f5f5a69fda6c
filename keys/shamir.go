package keys

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/vault/shamir"
	"github.com/ruteri/slb-bond-backend/interfaces"
)

var (
	ErrAlreadyRecovered = errors.New("key already recovered")
	ErrUnknownCustodian = errors.New("share not signed by a registered custodian")
	ErrNotRecovered     = errors.New("not enough shares to recover the key")
)

// Split divides the key into parts shares, any threshold of which recover it.
func Split(key *ecdsa.PrivateKey, parts, threshold int) ([][]byte, error) {
	if threshold < 2 {
		return nil, fmt.Errorf("%w: threshold must be at least 2", interfaces.ErrInvalidArgument)
	}
	if parts < threshold {
		return nil, fmt.Errorf("%w: total shares must be at least equal to threshold", interfaces.ErrInvalidArgument)
	}

	secret := crypto.FromECDSA(key)
	defer wipeBytes(secret)

	shares, err := shamir.Split(secret, parts, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to split key: %w", err)
	}
	return shares, nil
}

// Combine reassembles a key from shares. Fewer than threshold shares yield
// either an error or a different key, so callers should check the address.
func Combine(shares [][]byte) (*ecdsa.PrivateKey, error) {
	secret, err := shamir.Combine(shares)
	if err != nil {
		return nil, fmt.Errorf("failed to combine shares: %w", err)
	}
	defer wipeBytes(secret)

	key, err := crypto.ToECDSA(secret)
	if err != nil {
		return nil, fmt.Errorf("combined shares are not a valid key: %w", err)
	}
	return key, nil
}

// SignShare signs a share with a custodian's key so Recovery can attribute it.
func SignShare(share []byte, custodian *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(accounts.TextHash(share), custodian)
}

// Recovery collects custodian-signed shares until the key can be rebuilt.
// When Expected is set the rebuilt key must match that address.
type Recovery struct {
	mu         sync.Mutex
	threshold  int
	expected   interfaces.Principal
	custodians map[interfaces.Principal]bool
	received   map[interfaces.Principal][]byte
	key        *ecdsa.PrivateKey
}

func NewRecovery(threshold int, custodians []interfaces.Principal, expected interfaces.Principal) (*Recovery, error) {
	if threshold < 2 {
		return nil, fmt.Errorf("%w: threshold must be at least 2", interfaces.ErrInvalidArgument)
	}
	if len(custodians) < threshold {
		return nil, fmt.Errorf("%w: need at least %d custodians", interfaces.ErrInvalidArgument, threshold)
	}

	r := &Recovery{
		threshold:  threshold,
		expected:   expected,
		custodians: make(map[interfaces.Principal]bool, len(custodians)),
		received:   make(map[interfaces.Principal][]byte),
	}
	for _, c := range custodians {
		r.custodians[c] = true
	}
	return r, nil
}

// SubmitShare records a share and attempts reconstruction once the threshold
// is reached. It returns true when the key has been recovered. A resubmission
// by the same custodian replaces the earlier share.
func (r *Recovery) SubmitShare(share, signature []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.key != nil {
		return true, ErrAlreadyRecovered
	}

	pub, err := crypto.SigToPub(accounts.TextHash(share), signature)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnknownCustodian, err)
	}
	signer := crypto.PubkeyToAddress(*pub)
	if !r.custodians[signer] {
		return false, fmt.Errorf("%w: %s", ErrUnknownCustodian, signer.Hex())
	}

	r.received[signer] = append([]byte(nil), share...)
	if len(r.received) < r.threshold {
		return false, nil
	}

	shares := make([][]byte, 0, len(r.received))
	for _, s := range r.received {
		shares = append(shares, s)
	}
	key, err := Combine(shares)
	if err != nil {
		return false, err
	}
	if r.expected != interfaces.EmptyPrincipal && Address(key) != r.expected {
		return false, fmt.Errorf("%w: recovered %s, expected %s", interfaces.ErrHashMismatch, Address(key).Hex(), r.expected.Hex())
	}

	r.key = key
	for _, s := range r.received {
		wipeBytes(s)
	}
	r.received = make(map[interfaces.Principal][]byte)
	return true, nil
}

func (r *Recovery) Key() (*ecdsa.PrivateKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.key == nil {
		return nil, ErrNotRecovered
	}
	return r.key, nil
}

func wipeBytes(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
