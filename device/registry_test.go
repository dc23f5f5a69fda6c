package device

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/slb-bond-backend/cryptoutils"
	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	addr1 = common.HexToAddress("0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2")
	addr2 = common.HexToAddress("0x4B20993Bc481177ec7E8f571ceCaE8A9e22C02db")
)

func TestRegister(t *testing.T) {
	s := NewState()

	require.NoError(t, s.Register(addr1, "123"))
	owner, ok := s.Owner("123")
	assert.True(t, ok)
	assert.Equal(t, addr1, owner)

	// First writer wins
	err := s.Register(addr2, "123")
	assert.ErrorIs(t, err, interfaces.ErrOwnerConflict)
	owner, _ = s.Owner("123")
	assert.Equal(t, addr1, owner)

	// Same owner cannot register twice either
	assert.ErrorIs(t, s.Register(addr1, "123"), interfaces.ErrOwnerConflict)

	assert.ErrorIs(t, s.Register(addr1, ""), interfaces.ErrInvalidArgument)
	assert.Equal(t, 1, s.Len())
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"123", true},
		{"meter-7/solar east", true},
		{"zähler-1", true},
		{"", false},
		{"dev\x00ice", false},
		{"dev\tice", false},
		{"\xff\xfe", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)
			}
		})
	}
}

func TestRegister_RejectsIdentityOverlappingMeasurement(t *testing.T) {
	m := interfaces.Triple{1, 2, 3}
	v3 := cryptoutils.UintField(m[2]).Packed()

	// An id that swallows the owner and the first two values, leaving the low
	// bytes of v3 to act as the owner address
	id := []byte("123")
	id = append(id, addr1.Bytes()...)
	id = append(id, cryptoutils.UintField(m[0]).Packed()...)
	id = append(id, cryptoutils.UintField(m[1]).Packed()...)
	id = append(id, v3[:12]...)
	crafted := common.BytesToAddress(v3[12:])

	measurement := MeasurementDigest("123", addr1, m)
	require.Equal(t, measurement, IdentityDigest(string(id), crafted))

	s := NewState()
	assert.ErrorIs(t, s.Register(crafted, string(id)), interfaces.ErrInvalidArgument)
	assert.False(t, s.CheckDevice(string(id), measurement))
}

func TestOwner_Unregistered(t *testing.T) {
	s := NewState()
	owner, ok := s.Owner("missing")
	assert.False(t, ok)
	assert.Equal(t, interfaces.EmptyPrincipal, owner)
}

func TestCheckDevice(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Register(addr1, "123"))
	require.NoError(t, s.Register(addr2, "456"))

	digest := IdentityDigest("123", addr1)
	assert.True(t, s.CheckDevice("123", digest))

	tests := []struct {
		name     string
		deviceID string
		digest   common.Hash
	}{
		{"other owner", "123", IdentityDigest("123", addr2)},
		{"other device", "456", digest},
		{"other device with own owner", "123", IdentityDigest("456", addr1)},
		{"unregistered device", "789", IdentityDigest("789", addr1)},
		{"measurement digest is a different scheme", "123", MeasurementDigest("123", addr1, interfaces.Triple{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, s.CheckDevice(tt.deviceID, tt.digest))
		})
	}
}

func TestAttestIdentity_Errors(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Register(addr1, "123"))

	assert.NoError(t, s.AttestIdentity("123", IdentityDigest("123", addr1)))
	assert.ErrorIs(t, s.AttestIdentity("999", IdentityDigest("999", addr1)), interfaces.ErrNotFound)
	assert.ErrorIs(t, s.AttestIdentity("123", IdentityDigest("123", addr2)), interfaces.ErrHashMismatch)
}

func TestCheckDeviceMeasurement(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Register(addr1, "123"))

	m := interfaces.Triple{1, 2, 3}
	digest := MeasurementDigest("123", addr1, m)
	assert.True(t, s.CheckDeviceMeasurement("123", digest, m))

	for i := range m {
		changed := m
		changed[i]++
		assert.False(t, s.CheckDeviceMeasurement("123", digest, changed), "changing v%d must flip the result", i+1)
	}

	assert.False(t, s.CheckDeviceMeasurement("123", MeasurementDigest("123", addr2, m), m))
	assert.False(t, s.CheckDeviceMeasurement("404", MeasurementDigest("404", addr1, m), m))
}

func TestClone_IsIndependent(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Register(addr1, "123"))

	c := s.Clone()
	require.NoError(t, c.Register(addr2, "456"))

	_, ok := s.Owner("456")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}
