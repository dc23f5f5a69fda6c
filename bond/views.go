package bond

import (
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/slb-bond-backend/device"
	"github.com/ruteri/slb-bond-backend/governance"
	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/ruteri/slb-bond-backend/ledger"
	"github.com/ruteri/slb-bond-backend/reporting"
)

// BondInfo is the public view of the bond.
type BondInfo struct {
	Seq          uint64
	Terms        ledger.Terms
	TermsSet     bool
	Status       ledger.Status
	BondsForSale uint64
	Balance      uint64
	Paused       bool

	// CouponRate owed for the last reviewed period.
	CouponRate uint64
	KPIMet     bool

	// PendingPayouts are committed withdrawals not yet released.
	PendingPayouts []interfaces.Payout
}

// ImpactInfo is the public view of the reporting engine.
type ImpactInfo struct {
	Current reporting.Record
	History []reporting.Record
}

func (c *Contract) view(fn func(s *State)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(&c.state)
}

// Seq returns the sequence number of the committed state.
func (c *Contract) Seq() (seq uint64) {
	c.view(func(s *State) { seq = s.Seq })
	return seq
}

// NonceOf returns the nonce the next signed request of p must carry.
func (c *Contract) NonceOf(p interfaces.Principal) (nonce uint64) {
	c.view(func(s *State) { nonce = s.Nonces[p] })
	return nonce
}

// PendingPayouts returns the withdrawals waiting to be released.
func (c *Contract) PendingPayouts() (payouts []interfaces.Payout) {
	c.view(func(s *State) { payouts = slices.Clone(s.Payouts) })
	return payouts
}

// Snapshot returns a deep copy of the committed state.
func (c *Contract) Snapshot() (snapshot State) {
	c.view(func(s *State) { snapshot = s.Clone() })
	return snapshot
}

func (c *Contract) Bond() (info BondInfo) {
	c.view(func(s *State) {
		info = BondInfo{
			Seq:          s.Seq,
			Terms:        s.Ledger.Terms,
			TermsSet:     s.Ledger.TermsSet,
			Status:       s.Ledger.Status,
			BondsForSale: s.Ledger.BondsForSale,
			Balance:      s.Ledger.Balance,
			Paused:       s.Governance.Paused,
			CouponRate:   s.Reporting.CouponRate(s.Ledger.Terms),
			KPIMet:       s.Reporting.KPIMet(s.Ledger.Terms),

			PendingPayouts: slices.Clone(s.Payouts),
		}
	})
	return info
}

func (c *Contract) Status() (status ledger.Status) {
	c.view(func(s *State) { status = s.Ledger.Status })
	return status
}

func (c *Contract) BondsForSale() (n uint64) {
	c.view(func(s *State) { n = s.Ledger.BondsForSale })
	return n
}

func (c *Contract) GetBalance() (balance uint64) {
	c.view(func(s *State) { balance = s.Ledger.Balance })
	return balance
}

func (c *Contract) HoldingOf(p interfaces.Principal) (n uint64) {
	c.view(func(s *State) { n = s.Ledger.HoldingOf(p) })
	return n
}

// Roles returns the role registry and pause state.
func (c *Contract) Roles() (roles governance.State) {
	c.view(func(s *State) { roles = s.Governance })
	return roles
}

func (c *Contract) IsPaused() (paused bool) {
	c.view(func(s *State) { paused = s.Governance.Paused })
	return paused
}

// FindDeviceOwner returns the owner of deviceID, or the empty principal.
func (c *Contract) FindDeviceOwner(deviceID string) (owner interfaces.Principal) {
	c.view(func(s *State) { owner, _ = s.Devices.Owner(deviceID) })
	return owner
}

func (c *Contract) CheckDevice(deviceID string, digest common.Hash) (ok bool) {
	c.view(func(s *State) { ok = s.Devices.CheckDevice(deviceID, digest) })
	return ok
}

func (c *Contract) CheckDeviceMeasurement(deviceID string, digest common.Hash, m interfaces.Triple) (ok bool) {
	c.view(func(s *State) { ok = s.Devices.CheckDeviceMeasurement(deviceID, digest, m) })
	return ok
}

// IdentityDigest is device.IdentityDigest; it reads no state.
func (c *Contract) IdentityDigest(deviceID string, owner interfaces.Principal) common.Hash {
	return device.IdentityDigest(deviceID, owner)
}

// MeasurementDigest is device.MeasurementDigest; it reads no state.
func (c *Contract) MeasurementDigest(deviceID string, owner interfaces.Principal, m interfaces.Triple) common.Hash {
	return device.MeasurementDigest(deviceID, owner, m)
}

func (c *Contract) Impact() (info ImpactInfo) {
	c.view(func(s *State) {
		snapshot := s.Reporting.Clone()
		info = ImpactInfo{Current: snapshot.Current, History: snapshot.History}
	})
	return info
}

func (c *Contract) CurrentPeriod() (period uint64) {
	c.view(func(s *State) { period = s.Reporting.CurrentPeriod() })
	return period
}

func (c *Contract) IsReported() (reported bool) {
	c.view(func(s *State) { reported = s.Reporting.IsReported() })
	return reported
}

func (c *Contract) IsVerified() (verified bool) {
	c.view(func(s *State) { verified = s.Reporting.IsVerified() })
	return verified
}
