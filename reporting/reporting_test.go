package reporting

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/slb-bond-backend/device"
	"github.com/ruteri/slb-bond-backend/governance"
	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/ruteri/slb-bond-backend/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")
	issuer   = common.HexToAddress("0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2")
	verifier = common.HexToAddress("0x4B20993Bc481177ec7E8f571ceCaE8A9e22C02db")
	other    = common.HexToAddress("0x78731D3Ca6b7E34aC0F824c42a7cC18A495cabaB")
)

const now = uint64(1_700_000_000)

type fixture struct {
	guard   *governance.State
	bond    *ledger.State
	devices *device.State
	engine  *State
	digest  common.Hash
}

func newFixture(t *testing.T) *fixture {
	g := governance.NewState(owner)
	require.NoError(t, g.SetRoles(owner, issuer, verifier))

	b := ledger.NewState()
	require.NoError(t, b.SetBond(&g, issuer, ledger.Terms{
		Description:  "green bond",
		KPITargets:   interfaces.Triple{10, 20, 30},
		TotalSupply:  100,
		CouponRate:   5,
		PenaltyRate:  2,
		StartDate:    now,
		CouponDate:   now + 1,
		MaturityDate: now + 2,
	}, now))
	require.NoError(t, b.SetBondActive(&g, issuer, now))

	d := device.NewState()
	e := NewState()
	require.NoError(t, e.RegisterDevice(&g, &d, issuer, "123"))

	return &fixture{
		guard:   &g,
		bond:    &b,
		devices: &d,
		engine:  &e,
		digest:  device.IdentityDigest("123", issuer),
	}
}

func (f *fixture) report(impact interfaces.Triple) error {
	return f.engine.ReportImpact(f.guard, f.bond, f.devices, issuer, impact, "123", f.digest, now)
}

func TestReportAndVerify(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.devices.CheckDevice("123", f.digest))
	assert.Equal(t, uint64(0), f.engine.CurrentPeriod())
	assert.False(t, f.engine.IsReported())

	require.NoError(t, f.report(interfaces.Triple{1, 2, 3}))
	assert.Equal(t, uint64(1), f.engine.CurrentPeriod())
	assert.True(t, f.engine.IsReported())
	assert.False(t, f.engine.IsVerified())

	require.NoError(t, f.engine.VerifyImpact(f.guard, verifier, true, now))
	assert.True(t, f.engine.IsVerified())
}

func TestReportImpact_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*fixture)
		caller   interfaces.Principal
		deviceID string
		digest   func(*fixture) common.Hash
		wantErr  error
	}{
		{
			name:     "not issuer",
			caller:   other,
			deviceID: "123",
			wantErr:  interfaces.ErrUnauthorized,
		},
		{
			name:     "unregistered device",
			caller:   issuer,
			deviceID: "999",
			digest:   func(*fixture) common.Hash { return device.IdentityDigest("999", issuer) },
			wantErr:  interfaces.ErrNotFound,
		},
		{
			name:     "digest of another owner",
			caller:   issuer,
			deviceID: "123",
			digest:   func(*fixture) common.Hash { return device.IdentityDigest("123", other) },
			wantErr:  interfaces.ErrHashMismatch,
		},
		{
			name:     "paused",
			setup:    func(f *fixture) { require.NoError(t, f.guard.Freeze(owner)) },
			caller:   issuer,
			deviceID: "123",
			wantErr:  interfaces.ErrPaused,
		},
		{
			name:     "bond not active",
			setup:    func(f *fixture) { f.bond.Status = ledger.StatusIssued },
			caller:   issuer,
			deviceID: "123",
			wantErr:  interfaces.ErrInvalidState,
		},
		{
			name:     "period already reported",
			setup:    func(f *fixture) { require.NoError(t, f.report(interfaces.Triple{})) },
			caller:   issuer,
			deviceID: "123",
			wantErr:  interfaces.ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			digest := f.digest
			if tt.digest != nil {
				digest = tt.digest(f)
			}
			before := f.engine.Clone()

			err := f.engine.ReportImpact(f.guard, f.bond, f.devices, tt.caller, interfaces.Triple{1, 2, 3}, tt.deviceID, digest, now)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, *f.engine)
		})
	}
}

func TestVerifyImpact_Errors(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.engine.VerifyImpact(f.guard, verifier, true, now), interfaces.ErrInvalidState)

	require.NoError(t, f.report(interfaces.Triple{1, 2, 3}))
	assert.ErrorIs(t, f.engine.VerifyImpact(f.guard, issuer, true, now), interfaces.ErrUnauthorized)

	require.NoError(t, f.guard.Freeze(owner))
	assert.ErrorIs(t, f.engine.VerifyImpact(f.guard, verifier, true, now), interfaces.ErrPaused)
	require.NoError(t, f.guard.Unfreeze(owner))

	require.NoError(t, f.engine.VerifyImpact(f.guard, verifier, false, now))
	assert.ErrorIs(t, f.engine.VerifyImpact(f.guard, verifier, true, now), interfaces.ErrInvalidState)
	assert.False(t, f.engine.IsVerified())
}

func TestPeriodRearm(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.report(interfaces.Triple{1, 2, 3}))
	require.NoError(t, f.engine.VerifyImpact(f.guard, verifier, false, now))

	require.NoError(t, f.report(interfaces.Triple{10, 20, 30}))
	assert.Equal(t, uint64(2), f.engine.CurrentPeriod())
	assert.True(t, f.engine.IsReported())
	assert.False(t, f.engine.IsVerified())

	require.Len(t, f.engine.History, 1)
	assert.Equal(t, uint64(1), f.engine.History[0].Period)
	assert.Equal(t, interfaces.Triple{1, 2, 3}, f.engine.History[0].Impact)
	assert.True(t, f.engine.History[0].Reviewed)
}

func TestCouponRate(t *testing.T) {
	f := newFixture(t)
	terms := f.bond.Terms

	assert.Equal(t, uint64(5), f.engine.CouponRate(terms), "base rate before any review")
	assert.False(t, f.engine.KPIMet(terms))

	// Targets reached but not yet reviewed
	require.NoError(t, f.report(interfaces.Triple{10, 20, 30}))
	assert.Equal(t, uint64(5), f.engine.CouponRate(terms))

	require.NoError(t, f.engine.VerifyImpact(f.guard, verifier, true, now))
	assert.True(t, f.engine.KPIMet(terms))
	assert.Equal(t, uint64(5), f.engine.CouponRate(terms))

	// One value short of its target
	require.NoError(t, f.report(interfaces.Triple{10, 19, 30}))
	assert.True(t, f.engine.KPIMet(terms), "last reviewed period still counts")
	require.NoError(t, f.engine.VerifyImpact(f.guard, verifier, true, now))
	assert.False(t, f.engine.KPIMet(terms))
	assert.Equal(t, uint64(7), f.engine.CouponRate(terms))

	// Targets reached but rejected
	require.NoError(t, f.report(interfaces.Triple{50, 50, 50}))
	require.NoError(t, f.engine.VerifyImpact(f.guard, verifier, false, now))
	assert.Equal(t, uint64(7), f.engine.CouponRate(terms))
}

func TestRegisterDevice(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.engine.RegisterDevice(f.guard, f.devices, other, "123"), interfaces.ErrOwnerConflict)

	require.NoError(t, f.guard.Freeze(owner))
	assert.ErrorIs(t, f.engine.RegisterDevice(f.guard, f.devices, other, "456"), interfaces.ErrPaused)
	_, ok := f.devices.Owner("456")
	assert.False(t, ok)
}
