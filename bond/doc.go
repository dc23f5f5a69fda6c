// Package bond composes the role registry, pause control, bond ledger, device
// registry and reporting engine into one sequential contract.
//
// Every mutating operation runs under the contract lock on a private copy of
// the state. The copy replaces the live state only after the operation
// succeeded and the new snapshot was persisted to the configured
// interfaces.StateStore, so a rejected operation leaves no trace. Committed
// operations are then published to the configured interfaces.EventSink.
//
// Withdrawals commit a pending payout before anything is released. The payout
// is handed to the interfaces.PayoutSink after the commit and cleared by a
// follow-up commit, so funds are never released for a withdrawal that did not
// persist.
//
// A context built with WithNonce makes an operation single-use: it commits
// only while the caller's nonce matches, and committing advances the nonce.
//
// Usage:
//
//	c, err := bond.New(ctx, bond.Config{
//		Owner: regulator,
//		Store: store,
//		Log:   log,
//	})
//	if err != nil {
//		return err
//	}
//	seq, err := c.SetRoles(ctx, regulator, issuer, verifier)
package bond
