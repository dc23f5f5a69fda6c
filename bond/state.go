package bond

import (
	"maps"
	"slices"

	"github.com/ruteri/slb-bond-backend/device"
	"github.com/ruteri/slb-bond-backend/governance"
	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/ruteri/slb-bond-backend/ledger"
	"github.com/ruteri/slb-bond-backend/reporting"
)

// State is the complete contract state, persisted as one JSON snapshot.
type State struct {
	// Seq counts committed operations. The genesis state has Seq 0.
	Seq uint64 `json:"seq"`

	Governance governance.State `json:"governance"`
	Ledger     ledger.State     `json:"ledger"`
	Devices    device.State     `json:"devices"`
	Reporting  reporting.State  `json:"reporting"`

	// Nonces counts the operations committed by each principal. A signed
	// request names the nonce it expects, so it commits at most once.
	Nonces map[interfaces.Principal]uint64 `json:"nonces"`

	// Payouts are committed withdrawals not yet released, oldest first.
	Payouts []interfaces.Payout `json:"payouts"`
}

// Genesis returns the state at deployment.
func Genesis(owner interfaces.Principal) State {
	return State{
		Governance: governance.NewState(owner),
		Ledger:     ledger.NewState(),
		Devices:    device.NewState(),
		Reporting:  reporting.NewState(),
		Nonces:     make(map[interfaces.Principal]uint64),
	}
}

// Clone returns a deep copy.
func (s *State) Clone() State {
	return State{
		Seq:        s.Seq,
		Governance: s.Governance,
		Ledger:     s.Ledger.Clone(),
		Devices:    s.Devices.Clone(),
		Reporting:  s.Reporting.Clone(),
		Nonces:     maps.Clone(s.Nonces),
		Payouts:    slices.Clone(s.Payouts),
	}
}
