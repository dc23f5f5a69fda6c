package cryptoutils

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignature is returned when a request signature cannot be recovered.
var ErrInvalidSignature = errors.New("invalid request signature")

// Request is the signed part of an API request. Nonce is the caller's next
// contract nonce and Expiry the unix time after which the request is void, so
// a signature authorizes one commit within a bounded window.
type Request struct {
	Method string
	Path   string
	Nonce  uint64
	Expiry uint64
	Body   []byte
}

// Message returns "METHOD PATH\nNONCE EXPIRY\nBODY".
func (r Request) Message() []byte {
	msg := make([]byte, 0, len(r.Method)+len(r.Path)+len(r.Body)+44)
	msg = append(msg, r.Method...)
	msg = append(msg, ' ')
	msg = append(msg, r.Path...)
	msg = append(msg, '\n')
	msg = strconv.AppendUint(msg, r.Nonce, 10)
	msg = append(msg, ' ')
	msg = strconv.AppendUint(msg, r.Expiry, 10)
	msg = append(msg, '\n')
	msg = append(msg, r.Body...)
	return msg
}

// SignRequest signs the request message with personal-sign semantics.
// The returned signature is 65 bytes with V in {27, 28}.
func SignRequest(req Request, key *ecdsa.PrivateKey) ([]byte, error) {
	hash := accounts.TextHash(req.Message())
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverRequestSigner returns the address that produced sig over the request.
func RecoverRequestSigner(req Request, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(sig))
	}

	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	hash := accounts.TextHash(req.Message())
	pubkey, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pubkey), nil
}
