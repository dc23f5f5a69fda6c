// Package ledger holds the bond terms, the supply and funding counters and the
// lifecycle state machine.
//
// Every operation takes the authenticated caller and the guard used for role
// and pause checks. Operations either fully apply or return an error; callers
// that need atomicity across several components work on a clone.
package ledger

import (
	"fmt"
	"maps"
	"math"

	"github.com/ruteri/slb-bond-backend/interfaces"
)

// State is the bond ledger.
type State struct {
	Terms    Terms `json:"terms"`
	TermsSet bool  `json:"terms_set"`

	BondsForSale uint64 `json:"bonds_for_sale"`
	Status       Status `json:"status"`

	// Balance is the funding account.
	Balance uint64 `json:"balance"`

	// Holdings is the amount minted by each principal.
	Holdings map[interfaces.Principal]uint64 `json:"holdings"`
}

// NewState returns an empty bond in the Created status.
func NewState() State {
	return State{
		Status:   StatusCreated,
		Holdings: make(map[interfaces.Principal]uint64),
	}
}

// Clone returns a deep copy.
func (s *State) Clone() State {
	c := *s
	c.Holdings = maps.Clone(s.Holdings)
	return c
}

// SetBond stores the terms. Issuer only, and only once.
// The bond is Issued right away if the start date has passed.
func (s *State) SetBond(g interfaces.Guard, caller interfaces.Principal, terms Terms, now uint64) error {
	if err := g.RequireNotPaused(); err != nil {
		return err
	}
	if err := g.Require(caller, interfaces.RoleIssuer); err != nil {
		return err
	}
	if s.TermsSet {
		return fmt.Errorf("%w: bond terms already set", interfaces.ErrInvalidState)
	}
	if err := terms.Validate(); err != nil {
		return err
	}

	s.Terms = terms
	s.TermsSet = true
	s.BondsForSale = terms.TotalSupply
	if now >= terms.StartDate {
		return s.transition(StatusIssued)
	}
	return nil
}

// MintBond takes amount bonds out of the remaining supply and credits them to caller.
func (s *State) MintBond(g interfaces.Guard, caller interfaces.Principal, amount uint64) error {
	if err := g.RequireNotPaused(); err != nil {
		return err
	}
	if amount > s.BondsForSale {
		return fmt.Errorf("%w: %d requested, %d for sale", interfaces.ErrOutOfRange, amount, s.BondsForSale)
	}

	s.BondsForSale -= amount
	if amount > 0 {
		if s.Holdings == nil {
			s.Holdings = make(map[interfaces.Principal]uint64)
		}
		s.Holdings[caller] += amount
	}
	return nil
}

// IssueBond moves a bond pending activation to Issued once its start date is reached.
func (s *State) IssueBond(g interfaces.Guard, caller interfaces.Principal, now uint64) error {
	if err := g.RequireNotPaused(); err != nil {
		return err
	}
	if err := g.Require(caller, interfaces.RoleIssuer); err != nil {
		return err
	}
	if !s.TermsSet {
		return fmt.Errorf("%w: bond terms not set", interfaces.ErrInvalidState)
	}
	if now < s.Terms.StartDate {
		return fmt.Errorf("%w: start date %d not reached", interfaces.ErrInvalidState, s.Terms.StartDate)
	}
	return s.transition(StatusIssued)
}

// SetBondActive moves an Issued bond to Active.
func (s *State) SetBondActive(g interfaces.Guard, caller interfaces.Principal, now uint64) error {
	if err := g.RequireNotPaused(); err != nil {
		return err
	}
	if err := g.Require(caller, interfaces.RoleIssuer); err != nil {
		return err
	}
	if s.Status != StatusIssued {
		return fmt.Errorf("%w: bond is %s, want %s", interfaces.ErrInvalidState, s.Status, StatusIssued)
	}
	if now < s.Terms.StartDate {
		return fmt.Errorf("%w: start date %d not reached", interfaces.ErrInvalidState, s.Terms.StartDate)
	}
	return s.transition(StatusActive)
}

// EndBond moves an Active bond to Ended once it has matured.
func (s *State) EndBond(g interfaces.Guard, caller interfaces.Principal, now uint64) error {
	if err := g.RequireNotPaused(); err != nil {
		return err
	}
	if err := g.Require(caller, interfaces.RoleIssuer); err != nil {
		return err
	}
	if s.Status != StatusActive {
		return fmt.Errorf("%w: bond is %s, want %s", interfaces.ErrInvalidState, s.Status, StatusActive)
	}
	if now < s.Terms.MaturityDate {
		return fmt.Errorf("%w: maturity date %d not reached", interfaces.ErrInvalidState, s.Terms.MaturityDate)
	}
	return s.transition(StatusEnded)
}

// FundBond deposits amount into the funding account.
func (s *State) FundBond(g interfaces.Guard, amount uint64) error {
	if err := g.RequireNotPaused(); err != nil {
		return err
	}
	if amount > math.MaxUint64-s.Balance {
		return fmt.Errorf("%w: balance overflow", interfaces.ErrOutOfRange)
	}
	s.Balance += amount
	return nil
}

// WithdrawMoney takes amount out of the funding account. Issuer only.
// Releasing the funds is up to the caller of this method.
func (s *State) WithdrawMoney(g interfaces.Guard, caller interfaces.Principal, amount uint64) error {
	if err := g.RequireNotPaused(); err != nil {
		return err
	}
	if err := g.Require(caller, interfaces.RoleIssuer); err != nil {
		return err
	}
	if amount > s.Balance {
		return fmt.Errorf("%w: %d requested, balance is %d", interfaces.ErrOutOfRange, amount, s.Balance)
	}
	s.Balance -= amount
	return nil
}

// HoldingOf returns the amount minted by p.
func (s *State) HoldingOf(p interfaces.Principal) uint64 {
	return s.Holdings[p]
}

// RequireStatus fails with ErrInvalidState unless the bond is in status want.
func (s *State) RequireStatus(want Status) error {
	if s.Status != want {
		return fmt.Errorf("%w: bond is %s, want %s", interfaces.ErrInvalidState, s.Status, want)
	}
	return nil
}
