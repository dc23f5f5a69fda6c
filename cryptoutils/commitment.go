package cryptoutils

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// CommitField is one element of a committed tuple.
type CommitField interface {
	// Packed returns the tight encoding of the field.
	Packed() []byte
}

// StringField commits to the raw bytes of a string.
type StringField string

func (f StringField) Packed() []byte { return []byte(f) }

// AddressField commits to a 20-byte address.
type AddressField common.Address

func (f AddressField) Packed() []byte { return f[:] }

// UintField commits to an unsigned integer widened to uint256.
type UintField uint64

func (f UintField) Packed() []byte {
	var word [32]byte
	binary.BigEndian.PutUint64(word[24:], uint64(f))
	return word[:]
}

// Commit returns keccak256 over the concatenated packed fields, the same
// digest as keccak256(abi.encodePacked(...)). Fields are not tagged, so the
// caller keeps schemes of different arity apart.
func Commit(fields ...CommitField) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, f := range fields {
		h.Write(f.Packed())
	}

	var digest common.Hash
	h.Sum(digest[:0])
	return digest
}
