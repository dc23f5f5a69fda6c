package interfaces

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Principal identifies an authenticated caller.
type Principal = common.Address

// EmptyPrincipal is returned for unassigned roles and unregistered devices.
var EmptyPrincipal = Principal{}

// ParsePrincipal parses a 0x-prefixed or bare 40-char hex address.
func ParsePrincipal(s string) (Principal, error) {
	if !common.IsHexAddress(s) {
		return Principal{}, fmt.Errorf("%w: invalid address %q", ErrInvalidArgument, s)
	}
	return common.HexToAddress(s), nil
}

// Triple is an ordered group of three integers: KPI targets and reported impact values.
type Triple [3]uint64

// ParseTriple parses "v1,v2,v3".
func ParseTriple(s string) (Triple, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Triple{}, errors.New("expected three comma-separated values")
	}

	var t Triple
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return Triple{}, fmt.Errorf("value %d: %w", i+1, err)
		}
		t[i] = v
	}
	return t, nil
}

// String returns "v1,v2,v3".
func (t Triple) String() string {
	return fmt.Sprintf("%d,%d,%d", t[0], t[1], t[2])
}

// AtLeast reports whether every value of t is greater than or equal to the
// matching value of target.
func (t Triple) AtLeast(target Triple) bool {
	for i := range t {
		if t[i] < target[i] {
			return false
		}
	}
	return true
}

// Clock supplies the current time as unix seconds, the way a block timestamp does.
type Clock interface {
	Now() uint64
}

// Payout is a withdrawal waiting to be released to its recipient. ID is the
// sequence number of the withdrawal commit.
type Payout struct {
	ID     uint64    `json:"id"`
	To     Principal `json:"to"`
	Amount uint64    `json:"amount"`
}

// PayoutSink releases withdrawn funds to their recipient.
type PayoutSink interface {
	// Release transfers the payout. It is called only after the withdrawal is
	// committed, and may be called again with the same ID after a crash or a
	// failed commit, so implementations must treat a repeated ID as done.
	Release(ctx context.Context, payout Payout) error
}
