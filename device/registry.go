// Package device maps measurement device identifiers to the principal that
// registered them and verifies the commitments those devices produce.
package device

import (
	"fmt"
	"maps"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/slb-bond-backend/cryptoutils"
	"github.com/ruteri/slb-bond-backend/interfaces"
)

// State is the device registry. The owner of a device id is fixed by the first
// successful registration.
type State struct {
	Owners map[string]interfaces.Principal `json:"owners"`
}

// NewState returns an empty registry.
func NewState() State {
	return State{Owners: make(map[string]interfaces.Principal)}
}

// Clone returns a deep copy.
func (s *State) Clone() State {
	return State{Owners: maps.Clone(s.Owners)}
}

// ValidateID accepts non-empty UTF-8 device ids without control characters.
// Packed uint64 values always contain NUL bytes, so a valid id cannot absorb
// the fields of a measurement commitment.
func ValidateID(deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: empty device id", interfaces.ErrInvalidArgument)
	}
	if !utf8.ValidString(deviceID) {
		return fmt.Errorf("%w: device id is not valid UTF-8", interfaces.ErrInvalidArgument)
	}
	if strings.IndexFunc(deviceID, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: device id contains control characters", interfaces.ErrInvalidArgument)
	}
	return nil
}

// Register binds deviceID to caller.
func (s *State) Register(caller interfaces.Principal, deviceID string) error {
	if err := ValidateID(deviceID); err != nil {
		return err
	}
	if owner, ok := s.Owners[deviceID]; ok {
		return fmt.Errorf("%w: %q is owned by %s", interfaces.ErrOwnerConflict, deviceID, owner.Hex())
	}
	if s.Owners == nil {
		s.Owners = make(map[string]interfaces.Principal)
	}
	s.Owners[deviceID] = caller
	return nil
}

// Owner returns the registered owner of deviceID, or the empty principal.
func (s *State) Owner(deviceID string) (interfaces.Principal, bool) {
	owner, ok := s.Owners[deviceID]
	return owner, ok
}

// Len returns the number of registered devices.
func (s *State) Len() int {
	return len(s.Owners)
}

// IdentityDigest is the identity commitment of (deviceID, owner).
func IdentityDigest(deviceID string, owner interfaces.Principal) common.Hash {
	return cryptoutils.Commit(
		cryptoutils.StringField(deviceID),
		cryptoutils.AddressField(owner),
	)
}

// MeasurementDigest is the measurement commitment of (deviceID, owner, v1, v2, v3).
func MeasurementDigest(deviceID string, owner interfaces.Principal, m interfaces.Triple) common.Hash {
	return cryptoutils.Commit(
		cryptoutils.StringField(deviceID),
		cryptoutils.AddressField(owner),
		cryptoutils.UintField(m[0]),
		cryptoutils.UintField(m[1]),
		cryptoutils.UintField(m[2]),
	)
}

// CheckDevice reports whether digest is the identity commitment of deviceID
// and its registered owner. Unregistered devices never check.
func (s *State) CheckDevice(deviceID string, digest common.Hash) bool {
	return s.AttestIdentity(deviceID, digest) == nil
}

// CheckDeviceMeasurement reports whether digest is the measurement commitment of
// deviceID, its registered owner and m.
func (s *State) CheckDeviceMeasurement(deviceID string, digest common.Hash, m interfaces.Triple) bool {
	owner, ok := s.Owners[deviceID]
	if !ok {
		return false
	}
	return MeasurementDigest(deviceID, owner, m) == digest
}

// AttestIdentity is CheckDevice with a reason: ErrNotFound for an unregistered
// device, ErrHashMismatch for a digest that does not match.
func (s *State) AttestIdentity(deviceID string, digest common.Hash) error {
	owner, ok := s.Owners[deviceID]
	if !ok {
		return fmt.Errorf("%w: device %q", interfaces.ErrNotFound, deviceID)
	}
	if IdentityDigest(deviceID, owner) != digest {
		return fmt.Errorf("%w: identity commitment of device %q", interfaces.ErrHashMismatch, deviceID)
	}
	return nil
}
