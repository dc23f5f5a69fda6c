// Package keys manages the secp256k1 keys used to sign API requests.
//
// Keys are generated and persisted with go-ethereum's crypto helpers. For
// custody of a role key (for example the verifier's) the key can be split into
// Shamir shares held by separate custodians, and reassembled either offline
// with Combine or through a Recovery that only accepts shares signed by a
// registered custodian.
package keys
