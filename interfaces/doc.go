// Package interfaces defines core interfaces and types for the sustainability-linked
// bond (SLB) service, separating interface definitions from implementations.
//
// The package provides the shared vocabulary of the system:
//
// # Principals and Roles
//
// Principal: an authenticated caller, represented as a 20-byte Ethereum address.
// The zero address is the "empty" principal and never holds a role.
//
// Role: one of owner (regulator), issuer or verifier. Guard is the capability
// every state-mutating component receives to check roles and the pause switch.
//
// # Error Taxonomy
//
// ErrUnauthorized, ErrInvalidState, ErrPaused, ErrOutOfRange, ErrNotFound,
// ErrHashMismatch and ErrOwnerConflict classify every rejected operation.
// ErrorKind and ErrorForKind translate them to and from wire identifiers.
//
// # Storage Interfaces
//
// StateStore: durable storage for the contract state snapshot.
//
// StorageBackend: content-addressed storage for the event journal and archived
// impact reports across multiple backend types (file, S3, IPFS, Vault).
//
// StorageBackendFactory: creates storage backends from URI strings and manages
// multi-backend configurations for redundant storage.
//
// # Host Collaborators
//
// Clock supplies the current time (unix seconds) and EventSink receives the
// events of committed operations. PayoutSink releases withdrawn funds after
// the withdrawal is committed; a Payout may be presented more than once, and
// its ID identifies the withdrawal so the sink can ignore repeats.
package interfaces
