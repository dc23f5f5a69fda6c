package keys

import (
	"crypto/ecdsa"
	"path/filepath"
	"testing"

	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "issuer.key")
	require.NoError(t, Save(path, key))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Address(key), Address(loaded))

	_, err = Load(filepath.Join(t.TempDir(), "missing.key"))
	assert.Error(t, err)
}

func TestFromHex(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)

	parsed, err := FromHex("0x" + ToHex(key))
	require.NoError(t, err)
	assert.Equal(t, Address(key), Address(parsed))

	_, err = FromHex("zz")
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)
}

func TestSplitCombine(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)

	shares, err := Split(key, 5, 3)
	require.NoError(t, err)
	require.Len(t, shares, 5)

	combined, err := Combine([][]byte{shares[4], shares[0], shares[2]})
	require.NoError(t, err)
	assert.Equal(t, Address(key), Address(combined))

	_, err = Split(key, 2, 3)
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)
	_, err = Split(key, 5, 1)
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)
}

func custodians(t *testing.T, n int) ([]*ecdsa.PrivateKey, []interfaces.Principal) {
	t.Helper()
	keys := make([]*ecdsa.PrivateKey, n)
	addrs := make([]interfaces.Principal, n)
	for i := range keys {
		k, err := Generate()
		require.NoError(t, err)
		keys[i] = k
		addrs[i] = Address(k)
	}
	return keys, addrs
}

func TestRecovery(t *testing.T) {
	verifierKey, err := Generate()
	require.NoError(t, err)
	shares, err := Split(verifierKey, 3, 2)
	require.NoError(t, err)

	ck, addrs := custodians(t, 3)
	r, err := NewRecovery(2, addrs, Address(verifierKey))
	require.NoError(t, err)

	_, err = r.Key()
	assert.ErrorIs(t, err, ErrNotRecovered)

	// a share signed by an outsider is rejected
	outsider, err := Generate()
	require.NoError(t, err)
	sig, err := SignShare(shares[0], outsider)
	require.NoError(t, err)
	_, err = r.SubmitShare(shares[0], sig)
	assert.ErrorIs(t, err, ErrUnknownCustodian)

	sig, err = SignShare(shares[0], ck[0])
	require.NoError(t, err)
	done, err := r.SubmitShare(shares[0], sig)
	require.NoError(t, err)
	assert.False(t, done)

	sig, err = SignShare(shares[1], ck[1])
	require.NoError(t, err)
	done, err = r.SubmitShare(shares[1], sig)
	require.NoError(t, err)
	assert.True(t, done)

	recovered, err := r.Key()
	require.NoError(t, err)
	assert.Equal(t, Address(verifierKey), Address(recovered))

	sig, err = SignShare(shares[2], ck[2])
	require.NoError(t, err)
	_, err = r.SubmitShare(shares[2], sig)
	assert.ErrorIs(t, err, ErrAlreadyRecovered)
}

func TestRecovery_WrongKey(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)
	other, err := Generate()
	require.NoError(t, err)
	shares, err := Split(key, 2, 2)
	require.NoError(t, err)

	ck, addrs := custodians(t, 2)
	r, err := NewRecovery(2, addrs, Address(other))
	require.NoError(t, err)

	for i, share := range shares {
		sig, err := SignShare(share, ck[i])
		require.NoError(t, err)
		done, err := r.SubmitShare(share, sig)
		if i == len(shares)-1 {
			assert.ErrorIs(t, err, interfaces.ErrHashMismatch)
			assert.False(t, done)
		} else {
			require.NoError(t, err)
		}
	}
}

func TestNewRecovery_Invalid(t *testing.T) {
	_, addrs := custodians(t, 2)
	_, err := NewRecovery(1, addrs, interfaces.EmptyPrincipal)
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)
	_, err = NewRecovery(3, addrs, interfaces.EmptyPrincipal)
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)
}
