package ledger

import (
	"fmt"
	"strings"

	"github.com/ruteri/slb-bond-backend/interfaces"
)

// Status is the bond lifecycle stage.
type Status uint8

const (
	StatusCreated Status = iota
	StatusIssued
	StatusActive
	StatusEnded
)

var statusNames = map[Status]string{
	StatusCreated: "created",
	StatusIssued:  "issued",
	StatusActive:  "active",
	StatusEnded:   "ended",
}

// transitions lists the only legal successor of each status.
var transitions = map[Status]Status{
	StatusCreated: StatusIssued,
	StatusIssued:  StatusActive,
	StatusActive:  StatusEnded,
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// ParseStatus is the inverse of String.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown status %q", interfaces.ErrInvalidArgument, name)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to Status) bool {
	next, ok := transitions[from]
	return ok && next == to
}

// transition moves the state to the given status or fails with ErrInvalidState.
func (s *State) transition(to Status) error {
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("%w: cannot move bond from %s to %s", interfaces.ErrInvalidState, s.Status, to)
	}
	s.Status = to
	return nil
}
