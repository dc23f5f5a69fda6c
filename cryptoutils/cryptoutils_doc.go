// Package cryptoutils provides the cryptographic primitives of the SLB service.
//
// # Commitments
//
// Commit binds an ordered tuple of fields into a 32-byte digest. Fields are
// tightly packed the way Solidity's abi.encodePacked packs them and hashed
// with legacy Keccak-256, so digests computed here match digests computed by
// an on-chain verifier:
//
//   - StringField: the raw UTF-8 bytes
//   - AddressField: the 20 address bytes
//   - UintField: a 32-byte big-endian uint256
//
// Both device commitment schemes are instances of Commit:
//
//	identity    = Commit(StringField(deviceID), AddressField(owner))
//	measurement = Commit(StringField(deviceID), AddressField(owner), UintField(v1), UintField(v2), UintField(v3))
//
// Packing carries no scheme tag or length prefix, to stay compatible with
// abi.encodePacked. A string field can therefore absorb the bytes of the
// fields after it. Callers that mix schemes keep them apart by restricting
// string fields: device ids never contain control bytes, while every packed
// uint64 starts with 24 zero bytes.
//
// # Request Signing
//
// SignRequest and RecoverRequestSigner authenticate API callers. The signed
// Request covers the method and path, the caller's nonce, an expiry time and
// the body. The signature is an EIP-191 personal-sign signature so keys held
// in ordinary Ethereum wallets can be used.
package cryptoutils
