package interfaces

// Role is a distinguished principal with exclusive rights to specific operations.
type Role int

const (
	// RoleOwner is the regulator/admin. It assigns roles and controls the pause switch.
	RoleOwner Role = iota
	// RoleIssuer sets bond terms, activates the bond, withdraws funds and reports impact.
	RoleIssuer
	// RoleVerifier approves or rejects reported impact.
	RoleVerifier
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleIssuer:
		return "issuer"
	case RoleVerifier:
		return "verifier"
	default:
		return "unknown"
	}
}

// Guard gates privileged and state-mutating operations.
type Guard interface {
	// Require fails with ErrUnauthorized unless caller currently holds role.
	Require(caller Principal, role Role) error

	// RequireNotPaused fails with ErrPaused while the bond is frozen.
	RequireNotPaused() error
}
