// Package statestore implements interfaces.StateStore.
//
// BoltStore keeps the latest contract snapshot in a bbolt database together
// with every committed snapshot indexed by sequence number. MemoryStore keeps
// the latest snapshot in memory and is used by tests and ephemeral servers.
package statestore
