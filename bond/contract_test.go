package bond

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruteri/slb-bond-backend/device"
	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/ruteri/slb-bond-backend/ledger"
	"github.com/ruteri/slb-bond-backend/metrics"
	"github.com/ruteri/slb-bond-backend/statestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	owner    = common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")
	issuer   = common.HexToAddress("0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2")
	verifier = common.HexToAddress("0x4B20993Bc481177ec7E8f571ceCaE8A9e22C02db")
	addr1    = common.HexToAddress("0x78731D3Ca6b7E34aC0F824c42a7cC18A495cabaB")
	addr2    = common.HexToAddress("0x617F2E2fD72FD9D5503197092aC168c91465E7f2")
)

const now = uint64(1_700_000_000)

func testTerms(start uint64) ledger.Terms {
	return ledger.Terms{
		Description:  "Solar farm bond",
		KPITargets:   interfaces.Triple{10, 20, 30},
		TotalSupply:  1000,
		InstrumentID: 1,
		CouponRate:   5,
		PenaltyRate:  2,
		FaceValue:    100,
		StartDate:    start,
		CouponDate:   start + 86400,
		MaturityDate: start + 2*86400,
	}
}

// ok fails the test unless the operation committed and returns its sequence number.
func ok(t *testing.T) func(uint64, error) uint64 {
	return func(seq uint64, err error) uint64 {
		t.Helper()
		require.NoError(t, err)
		return seq
	}
}

func errOf(_ uint64, err error) error { return err }

type env struct {
	ctx   context.Context
	clock *ManualClock
	store *statestore.MemoryStore
	c     *Contract
}

func newEnv(t *testing.T) *env {
	ctx := context.Background()
	clock := NewManualClock(now)
	store := statestore.NewMemoryStore()

	c, err := New(ctx, Config{Owner: owner, Clock: clock, Store: store})
	require.NoError(t, err)
	ok(t)(c.SetRoles(ctx, owner, issuer, verifier))

	return &env{ctx: ctx, clock: clock, store: store, c: c}
}

// activeEnv returns a contract with an Active bond.
func activeEnv(t *testing.T) *env {
	e := newEnv(t)
	ok(t)(e.c.SetBond(e.ctx, issuer, testTerms(now)))
	ok(t)(e.c.SetBondActive(e.ctx, issuer))
	return e
}

func TestNew_RequiresOwner(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)
}

func TestScenario_SetBondActivates(t *testing.T) {
	e := newEnv(t)

	ok(t)(e.c.SetBond(e.ctx, issuer, testTerms(now)))
	assert.Equal(t, ledger.StatusIssued, e.c.Status())
	assert.Equal(t, uint64(1000), e.c.BondsForSale())

	ok(t)(e.c.SetBondActive(e.ctx, issuer))
	assert.Equal(t, ledger.StatusActive, e.c.Status())

	assert.ErrorIs(t, errOf(e.c.SetBondActive(e.ctx, issuer)), interfaces.ErrInvalidState)
}

func TestScenario_FundAndWithdraw(t *testing.T) {
	e := activeEnv(t)

	ok(t)(e.c.FundBond(e.ctx, addr1, 2))
	assert.Equal(t, uint64(2), e.c.GetBalance())

	ok(t)(e.c.WithdrawMoney(e.ctx, issuer, 1))
	assert.Equal(t, uint64(1), e.c.GetBalance())

	assert.ErrorIs(t, errOf(e.c.WithdrawMoney(e.ctx, issuer, 2)), interfaces.ErrOutOfRange)
	assert.Equal(t, uint64(1), e.c.GetBalance())
}

func TestScenario_ReportAndVerify(t *testing.T) {
	e := activeEnv(t)

	ok(t)(e.c.RegisterDevice(e.ctx, addr1, "123"))
	digest := e.c.IdentityDigest("123", addr1)
	assert.True(t, e.c.CheckDevice("123", digest))

	// The issuer reports with the device registered by addr1
	ok(t)(e.c.ReportImpact(e.ctx, issuer, interfaces.Triple{1, 2, 3}, "123", digest))
	assert.Equal(t, uint64(1), e.c.CurrentPeriod())
	assert.True(t, e.c.IsReported())

	ok(t)(e.c.VerifyImpact(e.ctx, verifier, true))
	assert.True(t, e.c.IsVerified())

	// Verified but below target
	info := e.c.Bond()
	assert.False(t, info.KPIMet)
	assert.Equal(t, uint64(7), info.CouponRate)
}

func TestScenario_DeviceOwnerConflict(t *testing.T) {
	e := newEnv(t)

	ok(t)(e.c.RegisterDevice(e.ctx, addr1, "123"))
	assert.ErrorIs(t, errOf(e.c.RegisterDevice(e.ctx, addr2, "123")), interfaces.ErrOwnerConflict)
	assert.Equal(t, addr1, e.c.FindDeviceOwner("123"))
	assert.Equal(t, interfaces.EmptyPrincipal, e.c.FindDeviceOwner("456"))
}

func TestMeasurementCommitment(t *testing.T) {
	e := newEnv(t)
	ok(t)(e.c.RegisterDevice(e.ctx, addr1, "123"))

	m := interfaces.Triple{4, 5, 6}
	digest := e.c.MeasurementDigest("123", e.c.FindDeviceOwner("123"), m)
	assert.True(t, e.c.CheckDeviceMeasurement("123", digest, m))
	assert.False(t, e.c.CheckDeviceMeasurement("123", digest, interfaces.Triple{4, 5, 7}))
}

func TestMintBond(t *testing.T) {
	e := activeEnv(t)

	ok(t)(e.c.MintBond(e.ctx, addr1, 400))
	assert.Equal(t, uint64(600), e.c.BondsForSale())
	assert.Equal(t, uint64(400), e.c.HoldingOf(addr1))

	assert.ErrorIs(t, errOf(e.c.MintBond(e.ctx, addr2, 601)), interfaces.ErrOutOfRange)
	assert.Equal(t, uint64(600), e.c.BondsForSale())
	assert.Equal(t, uint64(0), e.c.HoldingOf(addr2))
}

func TestFreeze(t *testing.T) {
	e := activeEnv(t)
	ok(t)(e.c.RegisterDevice(e.ctx, issuer, "123"))
	digest := device.IdentityDigest("123", issuer)

	assert.ErrorIs(t, errOf(e.c.FreezeBond(e.ctx, issuer)), interfaces.ErrUnauthorized)
	ok(t)(e.c.FreezeBond(e.ctx, owner))
	assert.True(t, e.c.IsPaused())

	assert.ErrorIs(t, errOf(e.c.MintBond(e.ctx, addr1, 1)), interfaces.ErrPaused)
	assert.ErrorIs(t, errOf(e.c.FundBond(e.ctx, addr1, 1)), interfaces.ErrPaused)
	assert.ErrorIs(t, errOf(e.c.ReportImpact(e.ctx, issuer, interfaces.Triple{1, 2, 3}, "123", digest)), interfaces.ErrPaused)
	assert.ErrorIs(t, errOf(e.c.RegisterDevice(e.ctx, addr1, "456")), interfaces.ErrPaused)

	// Freeze is not a mutating ledger operation
	assert.ErrorIs(t, errOf(e.c.FreezeBond(e.ctx, owner)), interfaces.ErrInvalidState)

	ok(t)(e.c.UnfreezeBond(e.ctx, owner))
	assert.NoError(t, errOf(e.c.MintBond(e.ctx, addr1, 1)))
	assert.NoError(t, errOf(e.c.FundBond(e.ctx, addr1, 1)))
	assert.NoError(t, errOf(e.c.ReportImpact(e.ctx, issuer, interfaces.Triple{1, 2, 3}, "123", digest)))
}

func TestRolesLockedAfterSetBond(t *testing.T) {
	e := newEnv(t)

	// Reassignment is allowed before the terms are set
	ok(t)(e.c.SetRoles(e.ctx, owner, addr1, verifier))
	ok(t)(e.c.SetRoles(e.ctx, owner, issuer, verifier))
	assert.ErrorIs(t, errOf(e.c.SetRoles(e.ctx, issuer, issuer, verifier)), interfaces.ErrUnauthorized)

	ok(t)(e.c.SetBond(e.ctx, issuer, testTerms(now)))
	assert.ErrorIs(t, errOf(e.c.SetRoles(e.ctx, owner, addr1, verifier)), interfaces.ErrInvalidState)
	assert.Equal(t, issuer, e.c.Roles().Issuer)
}

func TestTransferOwnership(t *testing.T) {
	e := newEnv(t)

	ok(t)(e.c.TransferOwnership(e.ctx, owner, addr1))
	assert.Equal(t, addr1, e.c.Roles().Owner)

	assert.ErrorIs(t, errOf(e.c.FreezeBond(e.ctx, owner)), interfaces.ErrUnauthorized)
	assert.NoError(t, errOf(e.c.FreezeBond(e.ctx, addr1)))
}

func TestPendingActivation(t *testing.T) {
	e := newEnv(t)

	ok(t)(e.c.SetBond(e.ctx, issuer, testTerms(now+3600)))
	assert.Equal(t, ledger.StatusCreated, e.c.Status())
	assert.ErrorIs(t, errOf(e.c.SetBondActive(e.ctx, issuer)), interfaces.ErrInvalidState)
	assert.ErrorIs(t, errOf(e.c.IssueBond(e.ctx, issuer)), interfaces.ErrInvalidState)

	e.clock.Advance(3600)
	ok(t)(e.c.IssueBond(e.ctx, issuer))
	ok(t)(e.c.SetBondActive(e.ctx, issuer))

	assert.ErrorIs(t, errOf(e.c.EndBond(e.ctx, issuer)), interfaces.ErrInvalidState)
	e.clock.Advance(2 * 86400)
	ok(t)(e.c.EndBond(e.ctx, issuer))
	assert.Equal(t, ledger.StatusEnded, e.c.Status())
}

func TestRejectedOperationLeavesNoTrace(t *testing.T) {
	e := activeEnv(t)
	before := e.c.Snapshot()

	assert.Error(t, errOf(e.c.MintBond(e.ctx, addr1, 1001)))
	assert.Error(t, errOf(e.c.WithdrawMoney(e.ctx, addr1, 0)))
	assert.Error(t, errOf(e.c.VerifyImpact(e.ctx, verifier, true)))
	assert.Error(t, errOf(e.c.RegisterDevice(e.ctx, addr1, "")))

	assert.Equal(t, before, e.c.Snapshot())
}

func TestWithdraw_ReleaseFailureStaysPending(t *testing.T) {
	ctx := context.Background()
	payout := interfaces.Payout{ID: 3, To: issuer, Amount: 5}
	payouts := new(MockPayoutSink)
	payouts.On("Release", mock.Anything, payout).Return(errors.New("settlement down")).Once()
	payouts.On("Release", mock.Anything, payout).Return(nil).Once()

	c, err := New(ctx, Config{Owner: owner, Clock: NewManualClock(now), Payouts: payouts})
	require.NoError(t, err)
	ok(t)(c.SetRoles(ctx, owner, issuer, verifier))
	ok(t)(c.FundBond(ctx, addr1, 10))

	// The withdrawal is committed, its payout waits for the sink
	assert.Equal(t, uint64(3), ok(t)(c.WithdrawMoney(ctx, issuer, 5)))
	assert.Equal(t, uint64(5), c.GetBalance())
	assert.Equal(t, []interfaces.Payout{payout}, c.PendingPayouts())
	assert.Equal(t, []interfaces.Payout{payout}, c.Bond().PendingPayouts)

	require.NoError(t, c.SettlePayouts(ctx))
	assert.Empty(t, c.PendingPayouts())
	assert.Equal(t, uint64(4), c.Seq())
	assert.Equal(t, uint64(1), c.NonceOf(issuer))

	require.NoError(t, c.SettlePayouts(ctx))
	payouts.AssertExpectations(t)
}

func TestWithdraw_StoreFailureReleasesNothing(t *testing.T) {
	ctx := context.Background()
	store := new(MockStateStore)
	store.On("Load", mock.Anything).Return(nil, interfaces.ErrStateNotFound)
	store.On("Save", mock.Anything, uint64(3), mock.Anything).Return(errors.New("disk full")).Once()
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	payouts := new(MockPayoutSink)
	payouts.On("Release", mock.Anything, mock.Anything).Return(nil)

	c, err := New(ctx, Config{Owner: owner, Clock: NewManualClock(now), Store: store, Payouts: payouts})
	require.NoError(t, err)
	ok(t)(c.SetRoles(ctx, owner, issuer, verifier))
	ok(t)(c.FundBond(ctx, addr1, 10))

	_, err = c.WithdrawMoney(ctx, issuer, 10)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, uint64(10), c.GetBalance())
	assert.Empty(t, c.PendingPayouts())
	payouts.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)

	// The retry releases the funds exactly once
	assert.Equal(t, uint64(3), ok(t)(c.WithdrawMoney(ctx, issuer, 10)))
	assert.Equal(t, uint64(0), c.GetBalance())
	assert.ErrorIs(t, errOf(c.WithdrawMoney(ctx, issuer, 10)), interfaces.ErrOutOfRange)

	payouts.AssertNumberOfCalls(t, "Release", 1)
	payouts.AssertCalled(t, "Release", mock.Anything, interfaces.Payout{ID: 3, To: issuer, Amount: 10})
	assert.Empty(t, c.PendingPayouts())
}

func TestRestore_ReleasesPendingPayouts(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore()

	down := new(MockPayoutSink)
	down.On("Release", mock.Anything, mock.Anything).Return(errors.New("settlement down"))

	c, err := New(ctx, Config{Owner: owner, Store: store, Payouts: down})
	require.NoError(t, err)
	ok(t)(c.SetRoles(ctx, owner, issuer, verifier))
	ok(t)(c.FundBond(ctx, addr1, 8))
	ok(t)(c.WithdrawMoney(ctx, issuer, 8))
	require.Len(t, c.PendingPayouts(), 1)

	payouts := new(MockPayoutSink)
	payouts.On("Release", mock.Anything, interfaces.Payout{ID: 3, To: issuer, Amount: 8}).Return(nil).Once()

	restored, err := New(ctx, Config{Store: store, Payouts: payouts})
	require.NoError(t, err)
	assert.Empty(t, restored.PendingPayouts())
	assert.Equal(t, uint64(0), restored.GetBalance())
	payouts.AssertExpectations(t)
}

func TestNonce_RequestCommitsOnce(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, uint64(1), e.c.NonceOf(owner))
	assert.Equal(t, uint64(0), e.c.NonceOf(addr1))

	fund := WithNonce(e.ctx, 0)
	ok(t)(e.c.FundBond(fund, addr1, 3))
	assert.Equal(t, uint64(1), e.c.NonceOf(addr1))

	assert.ErrorIs(t, errOf(e.c.FundBond(fund, addr1, 3)), interfaces.ErrUnauthorized)
	assert.Equal(t, uint64(3), e.c.GetBalance())

	// A rejected operation does not use up the nonce
	assert.Error(t, errOf(e.c.MintBond(WithNonce(e.ctx, 1), addr1, 1)))
	assert.Equal(t, uint64(1), e.c.NonceOf(addr1))
	ok(t)(e.c.FundBond(WithNonce(e.ctx, 1), addr1, 1))
	assert.Equal(t, uint64(4), e.c.GetBalance())
}

func TestNonce_UnfreezeCannotBeReused(t *testing.T) {
	e := newEnv(t)

	ok(t)(e.c.FreezeBond(WithNonce(e.ctx, 1), owner))
	unfreeze := WithNonce(e.ctx, 2)
	ok(t)(e.c.UnfreezeBond(unfreeze, owner))
	ok(t)(e.c.FreezeBond(WithNonce(e.ctx, 3), owner))

	assert.ErrorIs(t, errOf(e.c.UnfreezeBond(unfreeze, owner)), interfaces.ErrUnauthorized)
	assert.True(t, e.c.IsPaused())
}

func TestOperationsReturnCommittedSeq(t *testing.T) {
	e := newEnv(t)

	seq := ok(t)(e.c.FundBond(e.ctx, addr1, 1))
	assert.Equal(t, e.c.Seq(), seq)
	assert.Equal(t, seq+1, ok(t)(e.c.FundBond(e.ctx, addr2, 1)))

	seq, err := e.c.FreezeBond(e.ctx, addr1)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)
	assert.Zero(t, seq)
}

func TestStoreFailureAborts(t *testing.T) {
	ctx := context.Background()
	store := new(MockStateStore)
	store.On("Load", mock.Anything).Return(nil, interfaces.ErrStateNotFound)
	store.On("Save", mock.Anything, uint64(0), mock.Anything).Return(nil)
	store.On("Save", mock.Anything, uint64(1), mock.Anything).Return(errors.New("disk full"))

	c, err := New(ctx, Config{Owner: owner, Store: store})
	require.NoError(t, err)

	assert.Error(t, errOf(c.FundBond(ctx, addr1, 10)))
	assert.Equal(t, uint64(0), c.GetBalance())
	assert.Equal(t, uint64(0), c.Seq())
	store.AssertExpectations(t)
}

func TestEventsPublished(t *testing.T) {
	ctx := context.Background()
	events := new(MockEventSink)
	events.On("Publish", mock.Anything, mock.MatchedBy(func(ev interfaces.Event) bool {
		return ev.Kind == interfaces.EventRolesSet && ev.Seq == 1 && ev.Principal == owner && ev.Time == now
	})).Return(nil).Once()
	events.On("Publish", mock.Anything, mock.MatchedBy(func(ev interfaces.Event) bool {
		return ev.Kind == interfaces.EventBondFunded && ev.Seq == 2 && ev.Data["amount"] == uint64(4)
	})).Return(errors.New("queue full")).Once()

	c, err := New(ctx, Config{Owner: owner, Clock: NewManualClock(now), Events: events})
	require.NoError(t, err)
	ok(t)(c.SetRoles(ctx, owner, issuer, verifier))

	// A failed publish never rolls back the commit
	ok(t)(c.FundBond(ctx, addr1, 4))
	assert.Equal(t, uint64(4), c.GetBalance())

	// Rejected operations publish nothing
	assert.Error(t, errOf(c.WithdrawMoney(ctx, addr1, 1)))
	events.AssertExpectations(t)
}

func TestRestore(t *testing.T) {
	e := activeEnv(t)
	ok(t)(e.c.RegisterDevice(e.ctx, addr1, "123"))
	ok(t)(e.c.MintBond(e.ctx, addr1, 10))
	ok(t)(e.c.FundBond(e.ctx, addr1, 10))
	ok(t)(e.c.ReportImpact(e.ctx, issuer, interfaces.Triple{1, 2, 3}, "123", device.IdentityDigest("123", addr1)))

	restored, err := New(e.ctx, Config{Store: e.store, Clock: e.clock})
	require.NoError(t, err)

	assert.Equal(t, e.c.Snapshot(), restored.Snapshot())
	assert.Equal(t, addr1, restored.FindDeviceOwner("123"))
	assert.Equal(t, uint64(10), restored.HoldingOf(addr1))
	assert.Equal(t, uint64(1), restored.CurrentPeriod())

	// The restored contract keeps the sequence going
	ok(t)(restored.VerifyImpact(e.ctx, verifier, true))
	assert.Equal(t, e.c.Seq()+1, restored.Seq())
}

func TestMetricsObserved(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())

	c, err := New(ctx, Config{Owner: owner, Metrics: m})
	require.NoError(t, err)

	ok(t)(c.FundBond(ctx, addr1, 3))
	assert.Error(t, errOf(c.FreezeBond(ctx, addr1)))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("BondFunded", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("BondFrozen", "unauthorized")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Balance))
}
