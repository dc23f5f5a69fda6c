package governance

import (
	"fmt"

	"github.com/ruteri/slb-bond-backend/interfaces"
)

// State is the role registry and pause control state.
type State struct {
	Owner    interfaces.Principal `json:"owner"`
	Issuer   interfaces.Principal `json:"issuer"`
	Verifier interfaces.Principal `json:"verifier"`

	// RolesLocked is set once the bond terms are set; issuer and verifier are
	// immutable from then on.
	RolesLocked bool `json:"roles_locked"`

	Paused bool `json:"paused"`
}

// Compile-time interface check.
var _ interfaces.Guard = (*State)(nil)

// NewState returns the state at deployment: owner set, no other roles, not paused.
func NewState(owner interfaces.Principal) State {
	return State{Owner: owner}
}

// Holder returns the principal currently holding role.
func (s *State) Holder(role interfaces.Role) interfaces.Principal {
	switch role {
	case interfaces.RoleOwner:
		return s.Owner
	case interfaces.RoleIssuer:
		return s.Issuer
	case interfaces.RoleVerifier:
		return s.Verifier
	default:
		return interfaces.EmptyPrincipal
	}
}

// Require fails with ErrUnauthorized unless caller holds role. An unassigned
// role is never held, not even by the zero address.
func (s *State) Require(caller interfaces.Principal, role interfaces.Role) error {
	holder := s.Holder(role)
	if holder == interfaces.EmptyPrincipal || holder != caller {
		return fmt.Errorf("%w: %s required", interfaces.ErrUnauthorized, role)
	}
	return nil
}

// SetRoles assigns the issuer and verifier. Owner only.
func (s *State) SetRoles(caller, issuer, verifier interfaces.Principal) error {
	if err := s.Require(caller, interfaces.RoleOwner); err != nil {
		return err
	}
	if s.RolesLocked {
		return fmt.Errorf("%w: roles are locked once bond terms are set", interfaces.ErrInvalidState)
	}
	if issuer == interfaces.EmptyPrincipal || verifier == interfaces.EmptyPrincipal {
		return fmt.Errorf("%w: issuer and verifier must be set", interfaces.ErrInvalidArgument)
	}

	s.Issuer = issuer
	s.Verifier = verifier
	return nil
}

// LockRoles freezes the issuer and verifier assignment.
func (s *State) LockRoles() {
	s.RolesLocked = true
}

// TransferOwnership hands the owner role to newOwner. Owner only.
func (s *State) TransferOwnership(caller, newOwner interfaces.Principal) error {
	if err := s.Require(caller, interfaces.RoleOwner); err != nil {
		return err
	}
	if newOwner == interfaces.EmptyPrincipal {
		return fmt.Errorf("%w: new owner is the zero address", interfaces.ErrInvalidArgument)
	}

	s.Owner = newOwner
	return nil
}
