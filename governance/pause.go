package governance

import (
	"fmt"

	"github.com/ruteri/slb-bond-backend/interfaces"
)

// RequireNotPaused fails with ErrPaused while the bond is frozen.
func (s *State) RequireNotPaused() error {
	if s.Paused {
		return interfaces.ErrPaused
	}
	return nil
}

// Freeze pauses every state-mutating operation of the ledger and the reporting engine.
// Freeze and Unfreeze are never blocked by the pause itself, but each only
// applies in the opposite state: freezing a paused bond, or unfreezing a
// running one, fails with ErrInvalidState.
func (s *State) Freeze(caller interfaces.Principal) error {
	if err := s.Require(caller, interfaces.RoleOwner); err != nil {
		return err
	}
	if s.Paused {
		return fmt.Errorf("%w: already paused", interfaces.ErrInvalidState)
	}
	s.Paused = true
	return nil
}

// Unfreeze lifts the pause.
func (s *State) Unfreeze(caller interfaces.Principal) error {
	if err := s.Require(caller, interfaces.RoleOwner); err != nil {
		return err
	}
	if !s.Paused {
		return fmt.Errorf("%w: not paused", interfaces.ErrInvalidState)
	}
	s.Paused = false
	return nil
}
