// Package governance implements the role registry and the pause switch of the bond.
//
// State holds the owner (regulator), issuer and verifier principals together
// with the paused flag. It implements interfaces.Guard, the single capability
// every other component uses to check roles and the pause switch:
//
//	if err := guard.RequireNotPaused(); err != nil {
//	    return err
//	}
//	if err := guard.Require(caller, interfaces.RoleIssuer); err != nil {
//	    return err
//	}
//
// Roles may be reassigned by the owner until the bond terms are set, after
// which they are locked. Ownership itself can always be transferred by the
// current owner. Freeze and unfreeze remain callable while paused.
package governance
