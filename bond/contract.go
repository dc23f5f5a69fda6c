package bond

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/ruteri/slb-bond-backend/ledger"
	"github.com/ruteri/slb-bond-backend/metrics"
	"github.com/ruteri/slb-bond-backend/statestore"
)

// Config wires a Contract to its host collaborators. Only Owner is required,
// and only when the store holds no snapshot yet.
type Config struct {
	// Owner is the regulator principal of a freshly deployed contract.
	Owner interfaces.Principal

	Clock   interfaces.Clock
	Store   interfaces.StateStore
	Payouts interfaces.PayoutSink
	Events  interfaces.EventSink
	Metrics *metrics.Metrics
	Log     *slog.Logger
}

// Contract is the sequential bond contract.
type Contract struct {
	mu    sync.RWMutex
	state State

	clock   interfaces.Clock
	store   interfaces.StateStore
	payouts interfaces.PayoutSink
	events  interfaces.EventSink
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New restores the contract from cfg.Store, or deploys a new one owned by
// cfg.Owner if the store is empty.
func New(ctx context.Context, cfg Config) (*Contract, error) {
	c := &Contract{
		clock:   cfg.Clock,
		store:   cfg.Store,
		payouts: cfg.Payouts,
		events:  cfg.Events,
		metrics: cfg.Metrics,
		log:     cfg.Log,
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.clock == nil {
		c.clock = SystemClock{}
	}
	if c.store == nil {
		c.store = statestore.NewMemoryStore()
	}
	if c.payouts == nil {
		c.payouts = LogPayoutSink{Log: c.log}
	}

	data, err := c.store.Load(ctx)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &c.state); err != nil {
			return nil, fmt.Errorf("decoding state snapshot: %w", err)
		}
		c.log.Info("restored bond state", "seq", c.state.Seq, "owner", c.state.Governance.Owner.Hex(), "status", c.state.Ledger.Status)
		if cfg.Owner != interfaces.EmptyPrincipal && cfg.Owner != c.state.Governance.Owner {
			c.log.Warn("configured owner differs from the restored owner, keeping the restored one", "configured", cfg.Owner.Hex())
		}

	case errors.Is(err, interfaces.ErrStateNotFound):
		if cfg.Owner == interfaces.EmptyPrincipal {
			return nil, fmt.Errorf("%w: owner is required to deploy a new bond", interfaces.ErrInvalidArgument)
		}
		c.state = Genesis(cfg.Owner)
		snapshot, err := json.Marshal(&c.state)
		if err != nil {
			return nil, fmt.Errorf("encoding genesis state: %w", err)
		}
		if err := c.store.Save(ctx, c.state.Seq, snapshot); err != nil {
			return nil, fmt.Errorf("persisting genesis state: %w", err)
		}
		c.log.Info("deployed new bond", "owner", cfg.Owner.Hex())

	default:
		return nil, fmt.Errorf("loading state: %w", err)
	}

	c.observeState()

	if len(c.state.Payouts) > 0 {
		c.log.Info("releasing pending payouts", "count", len(c.state.Payouts))
		if err := c.settlePayouts(ctx); err != nil {
			c.log.Warn("payouts remain pending", "count", len(c.state.Payouts), "err", err)
		}
	}
	return c, nil
}

// transitionFunc applies one operation to the private copy of the state and
// returns the event payload.
type transitionFunc func(s *State, now uint64) (map[string]any, error)

type nonceKey struct{}

// WithNonce binds the caller nonce a signed request was issued for. An
// operation run with such a context commits only if the caller's nonce still
// matches, and the commit advances it.
func WithNonce(ctx context.Context, nonce uint64) context.Context {
	return context.WithValue(ctx, nonceKey{}, nonce)
}

func nonceFromContext(ctx context.Context) (uint64, bool) {
	nonce, ok := ctx.Value(nonceKey{}).(uint64)
	return nonce, ok
}

// apply runs fn for caller under the contract lock and returns the sequence
// number of the commit.
func (c *Contract) apply(ctx context.Context, caller interfaces.Principal, kind interfaces.EventKind, fn transitionFunc) (seq uint64, err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveOperation(string(kind), interfaces.ErrorKind(err), time.Since(start))
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	if want, ok := nonceFromContext(ctx); ok {
		if have := c.state.Nonces[caller]; want != have {
			c.log.Debug("stale request nonce", "op", kind, "caller", caller.Hex(), "nonce", want, "expected", have)
			return 0, fmt.Errorf("%w: nonce %d is not the next nonce %d", interfaces.ErrUnauthorized, want, have)
		}
	}

	return c.commit(ctx, caller, kind, func(s *State, now uint64) (map[string]any, error) {
		data, err := fn(s, now)
		if err != nil {
			return nil, err
		}
		if s.Nonces == nil {
			s.Nonces = make(map[interfaces.Principal]uint64)
		}
		s.Nonces[caller]++
		return data, nil
	})
}

// commit applies fn to a copy of the state, persists the copy and swaps it
// in. The caller holds c.mu.
func (c *Contract) commit(ctx context.Context, caller interfaces.Principal, kind interfaces.EventKind, fn transitionFunc) (uint64, error) {
	now := c.clock.Now()
	next := c.state.Clone()
	next.Seq++

	data, err := fn(&next, now)
	if err != nil {
		c.log.Debug("operation rejected", "op", kind, "caller", caller.Hex(), "err", err)
		return 0, err
	}

	snapshot, err := json.Marshal(&next)
	if err != nil {
		return 0, fmt.Errorf("encoding state: %w", err)
	}
	if err := c.store.Save(ctx, next.Seq, snapshot); err != nil {
		c.log.Error("could not persist state", "op", kind, "seq", next.Seq, "err", err)
		return 0, fmt.Errorf("persisting state: %w", err)
	}
	c.state = next
	c.observeState()

	c.log.Info("operation committed", "op", kind, "caller", caller.Hex(), "seq", next.Seq)

	if c.events != nil {
		event := interfaces.Event{
			Seq:       next.Seq,
			Kind:      kind,
			Principal: caller,
			Time:      now,
			Data:      data,
		}
		if err := c.events.Publish(ctx, event); err != nil {
			c.log.Warn("could not publish event", "op", kind, "seq", next.Seq, "err", err)
		}
	}
	return next.Seq, nil
}

// SettlePayouts releases the pending payouts oldest first and clears each
// released one with its own commit. It stops at the first failure; the
// remaining payouts stay pending.
func (c *Contract) SettlePayouts(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settlePayouts(ctx)
}

func (c *Contract) settlePayouts(ctx context.Context) error {
	for len(c.state.Payouts) > 0 {
		payout := c.state.Payouts[0]
		if err := c.payouts.Release(ctx, payout); err != nil {
			c.log.Warn("payout release failed, keeping it pending", "payout", payout.ID, "to", payout.To.Hex(), "amount", payout.Amount, "err", err)
			return fmt.Errorf("releasing payout %d: %w", payout.ID, err)
		}

		_, err := c.commit(ctx, payout.To, interfaces.EventPayoutReleased, func(s *State, _ uint64) (map[string]any, error) {
			s.Payouts = slices.DeleteFunc(s.Payouts, func(p interfaces.Payout) bool { return p.ID == payout.ID })
			return map[string]any{"payout": payout.ID, "to": payout.To, "amount": payout.Amount}, nil
		})
		if err != nil {
			return fmt.Errorf("clearing payout %d: %w", payout.ID, err)
		}
	}
	return nil
}

// RunSettlement retries pending payouts every interval until ctx is done.
func (c *Contract) RunSettlement(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if len(c.PendingPayouts()) == 0 {
				continue
			}
			if err := c.SettlePayouts(ctx); err != nil {
				c.log.Debug("settlement attempt failed", "err", err)
			}
		}
	}
}

func (c *Contract) observeState() {
	c.metrics.SetLedger(metrics.LedgerSnapshot{
		Seq:          c.state.Seq,
		Balance:      c.state.Ledger.Balance,
		BondsForSale: c.state.Ledger.BondsForSale,
		Period:       c.state.Reporting.CurrentPeriod(),
		Paused:       c.state.Governance.Paused,

		PendingPayouts: len(c.state.Payouts),
	})
}

// SetRoles assigns the issuer and verifier. Owner only, until the bond terms are set.
func (c *Contract) SetRoles(ctx context.Context, caller, issuer, verifier interfaces.Principal) (uint64, error) {
	return c.apply(ctx, caller, interfaces.EventRolesSet, func(s *State, _ uint64) (map[string]any, error) {
		if err := s.Governance.SetRoles(caller, issuer, verifier); err != nil {
			return nil, err
		}
		return map[string]any{"issuer": issuer, "verifier": verifier}, nil
	})
}

// SetBond stores the bond terms and locks the role assignment.
func (c *Contract) SetBond(ctx context.Context, caller interfaces.Principal, terms ledger.Terms) (uint64, error) {
	return c.apply(ctx, caller, interfaces.EventBondSet, func(s *State, now uint64) (map[string]any, error) {
		if err := s.Ledger.SetBond(&s.Governance, caller, terms, now); err != nil {
			return nil, err
		}
		s.Governance.LockRoles()
		return map[string]any{"terms": terms, "status": s.Ledger.Status}, nil
	})
}

// MintBond takes amount bonds from the remaining supply for caller.
func (c *Contract) MintBond(ctx context.Context, caller interfaces.Principal, amount uint64) (uint64, error) {
	return c.apply(ctx, caller, interfaces.EventBondMinted, func(s *State, _ uint64) (map[string]any, error) {
		if err := s.Ledger.MintBond(&s.Governance, caller, amount); err != nil {
			return nil, err
		}
		return map[string]any{"amount": amount, "bonds_for_sale": s.Ledger.BondsForSale}, nil
	})
}

// IssueBond moves a bond pending activation to Issued.
func (c *Contract) IssueBond(ctx context.Context, caller interfaces.Principal) (uint64, error) {
	return c.apply(ctx, caller, interfaces.EventBondIssued, func(s *State, now uint64) (map[string]any, error) {
		return nil, s.Ledger.IssueBond(&s.Governance, caller, now)
	})
}

// SetBondActive moves an Issued bond to Active.
func (c *Contract) SetBondActive(ctx context.Context, caller interfaces.Principal) (uint64, error) {
	return c.apply(ctx, caller, interfaces.EventBondActivated, func(s *State, now uint64) (map[string]any, error) {
		return nil, s.Ledger.SetBondActive(&s.Governance, caller, now)
	})
}

// EndBond moves a matured Active bond to Ended.
func (c *Contract) EndBond(ctx context.Context, caller interfaces.Principal) (uint64, error) {
	return c.apply(ctx, caller, interfaces.EventBondEnded, func(s *State, now uint64) (map[string]any, error) {
		return nil, s.Ledger.EndBond(&s.Governance, caller, now)
	})
}

// FundBond deposits amount into the funding account.
func (c *Contract) FundBond(ctx context.Context, caller interfaces.Principal, amount uint64) (uint64, error) {
	return c.apply(ctx, caller, interfaces.EventBondFunded, func(s *State, _ uint64) (map[string]any, error) {
		if err := s.Ledger.FundBond(&s.Governance, amount); err != nil {
			return nil, err
		}
		return map[string]any{"amount": amount, "balance": s.Ledger.Balance}, nil
	})
}

// WithdrawMoney takes amount out of the funding account for the issuer. The
// payout is committed together with the withdrawal and released after it. A
// payout that cannot be released stays pending until SettlePayouts succeeds.
func (c *Contract) WithdrawMoney(ctx context.Context, caller interfaces.Principal, amount uint64) (uint64, error) {
	seq, err := c.apply(ctx, caller, interfaces.EventFundsWithdrawn, func(s *State, _ uint64) (map[string]any, error) {
		if err := s.Ledger.WithdrawMoney(&s.Governance, caller, amount); err != nil {
			return nil, err
		}
		if amount > 0 {
			s.Payouts = append(s.Payouts, interfaces.Payout{ID: s.Seq, To: caller, Amount: amount})
		}
		return map[string]any{"amount": amount, "balance": s.Ledger.Balance}, nil
	})
	if err != nil {
		return 0, err
	}

	// The withdrawal stands even if the release has to be retried
	_ = c.SettlePayouts(ctx)
	return seq, nil
}

// RegisterDevice binds deviceID to caller.
func (c *Contract) RegisterDevice(ctx context.Context, caller interfaces.Principal, deviceID string) (uint64, error) {
	return c.apply(ctx, caller, interfaces.EventDeviceRegistered, func(s *State, _ uint64) (map[string]any, error) {
		if err := s.Reporting.RegisterDevice(&s.Governance, &s.Devices, caller, deviceID); err != nil {
			return nil, err
		}
		return map[string]any{"device_id": deviceID}, nil
	})
}

// ReportImpact records the impact of the next period, attested by the
// identity commitment of a registered device.
func (c *Contract) ReportImpact(ctx context.Context, caller interfaces.Principal, impact interfaces.Triple, deviceID string, digest common.Hash) (uint64, error) {
	return c.apply(ctx, caller, interfaces.EventImpactReported, func(s *State, now uint64) (map[string]any, error) {
		if err := s.Reporting.ReportImpact(&s.Governance, &s.Ledger, &s.Devices, caller, impact, deviceID, digest, now); err != nil {
			return nil, err
		}
		return map[string]any{
			"period":    s.Reporting.CurrentPeriod(),
			"impact":    impact,
			"device_id": deviceID,
			"digest":    digest,
		}, nil
	})
}

// VerifyImpact records the verifier's verdict on the current period.
func (c *Contract) VerifyImpact(ctx context.Context, caller interfaces.Principal, approved bool) (uint64, error) {
	return c.apply(ctx, caller, interfaces.EventImpactVerified, func(s *State, now uint64) (map[string]any, error) {
		if err := s.Reporting.VerifyImpact(&s.Governance, caller, approved, now); err != nil {
			return nil, err
		}
		return map[string]any{
			"period":      s.Reporting.CurrentPeriod(),
			"approved":    approved,
			"coupon_rate": s.Reporting.CouponRate(s.Ledger.Terms),
		}, nil
	})
}

// FreezeBond pauses every mutating ledger and reporting operation. Owner only.
func (c *Contract) FreezeBond(ctx context.Context, caller interfaces.Principal) (uint64, error) {
	return c.apply(ctx, caller, interfaces.EventBondFrozen, func(s *State, _ uint64) (map[string]any, error) {
		return nil, s.Governance.Freeze(caller)
	})
}

// UnfreezeBond lifts the pause. Owner only.
func (c *Contract) UnfreezeBond(ctx context.Context, caller interfaces.Principal) (uint64, error) {
	return c.apply(ctx, caller, interfaces.EventBondUnfrozen, func(s *State, _ uint64) (map[string]any, error) {
		return nil, s.Governance.Unfreeze(caller)
	})
}

// TransferOwnership hands the regulator role to newOwner.
func (c *Contract) TransferOwnership(ctx context.Context, caller, newOwner interfaces.Principal) (uint64, error) {
	return c.apply(ctx, caller, interfaces.EventOwnershipTransferred, func(s *State, _ uint64) (map[string]any, error) {
		if err := s.Governance.TransferOwnership(caller, newOwner); err != nil {
			return nil, err
		}
		return map[string]any{"previous_owner": caller, "new_owner": newOwner}, nil
	})
}
