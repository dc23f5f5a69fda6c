// Package reporting runs the periodic impact reporting cycle. A report is
// accepted only from the issuer of an Active bond and only together with the
// identity commitment of a registered measurement device.
package reporting

import (
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/slb-bond-backend/device"
	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/ruteri/slb-bond-backend/ledger"
)

// Record is the outcome of one reporting period.
type Record struct {
	Period   uint64            `json:"period"`
	Impact   interfaces.Triple `json:"impact"`
	Reported bool              `json:"reported"`

	// Verified can only be set on a reported period.
	Verified bool `json:"verified"`

	// Reviewed is set once the verifier has ruled on the period, whatever the verdict.
	Reviewed bool `json:"reviewed"`

	DeviceID   string `json:"device_id,omitempty"`
	ReportedAt uint64 `json:"reported_at,omitempty"`
	ReviewedAt uint64 `json:"reviewed_at,omitempty"`
}

// State is the reporting engine state. Current starts at period 0, unreported.
type State struct {
	Current Record   `json:"current"`
	History []Record `json:"history,omitempty"`
}

// NewState returns the engine before the first report.
func NewState() State {
	return State{}
}

// Clone returns a deep copy.
func (s *State) Clone() State {
	return State{Current: s.Current, History: slices.Clone(s.History)}
}

// RegisterDevice binds deviceID to caller for later reports.
func (s *State) RegisterDevice(g interfaces.Guard, devices *device.State, caller interfaces.Principal, deviceID string) error {
	if err := g.RequireNotPaused(); err != nil {
		return err
	}
	return devices.Register(caller, deviceID)
}

// ReportImpact records impact for the next period. The previous period, if
// any, must have been reviewed.
func (s *State) ReportImpact(g interfaces.Guard, bond *ledger.State, devices *device.State, caller interfaces.Principal, impact interfaces.Triple, deviceID string, digest common.Hash, now uint64) error {
	if err := g.RequireNotPaused(); err != nil {
		return err
	}
	if err := g.Require(caller, interfaces.RoleIssuer); err != nil {
		return err
	}
	if err := bond.RequireStatus(ledger.StatusActive); err != nil {
		return err
	}
	if s.Current.Reported && !s.Current.Reviewed {
		return fmt.Errorf("%w: period %d already reported", interfaces.ErrInvalidState, s.Current.Period)
	}
	if err := devices.AttestIdentity(deviceID, digest); err != nil {
		return err
	}

	if s.Current.Reported {
		s.History = append(s.History, s.Current)
	}
	s.Current = Record{
		Period:     s.Current.Period + 1,
		Impact:     impact,
		Reported:   true,
		DeviceID:   deviceID,
		ReportedAt: now,
	}
	return nil
}

// VerifyImpact records the verifier's verdict on the current period.
func (s *State) VerifyImpact(g interfaces.Guard, caller interfaces.Principal, approved bool, now uint64) error {
	if err := g.RequireNotPaused(); err != nil {
		return err
	}
	if err := g.Require(caller, interfaces.RoleVerifier); err != nil {
		return err
	}
	if !s.Current.Reported {
		return fmt.Errorf("%w: period %d not reported", interfaces.ErrInvalidState, s.Current.Period)
	}
	if s.Current.Reviewed {
		return fmt.Errorf("%w: period %d already reviewed", interfaces.ErrInvalidState, s.Current.Period)
	}

	s.Current.Verified = approved
	s.Current.Reviewed = true
	s.Current.ReviewedAt = now
	return nil
}

func (s *State) CurrentPeriod() uint64 { return s.Current.Period }
func (s *State) IsReported() bool      { return s.Current.Reported }
func (s *State) IsVerified() bool      { return s.Current.Verified }

// LastReviewed returns the most recent period the verifier ruled on.
func (s *State) LastReviewed() (Record, bool) {
	if s.Current.Reviewed {
		return s.Current, true
	}
	if n := len(s.History); n > 0 {
		return s.History[n-1], true
	}
	return Record{}, false
}

// KPIMet reports whether the last reviewed period was verified and reached
// every KPI target.
func (s *State) KPIMet(terms ledger.Terms) bool {
	rec, ok := s.LastReviewed()
	return ok && rec.Verified && rec.Impact.AtLeast(terms.KPITargets)
}

// CouponRate returns the rate owed for the last reviewed period: the base
// rate, plus the penalty when the KPI targets were missed or not verified.
func (s *State) CouponRate(terms ledger.Terms) uint64 {
	if _, ok := s.LastReviewed(); !ok || s.KPIMet(terms) {
		return terms.CouponRate
	}
	return terms.CouponRate + terms.PenaltyRate
}
