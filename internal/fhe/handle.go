package fhe

import (
	"crypto/rand"
	"encoding/hex"
)

// Handle is an opaque reference to an encrypted value held by the coprocessor.
// It is meaningless to anyone without a decryption authorization.
type Handle string

// ZeroHandle marks "no value" slots in game views, mirroring a zeroed
// ciphertext handle on chain.
const ZeroHandle Handle = ""

// CiphertextType tags what a handle decrypts to.
type CiphertextType byte

const (
	TypeEuint8 CiphertextType = iota
	TypeEbool
)

// newHandle generates a fresh random handle
func newHandle() Handle {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return Handle(hex.EncodeToString(bytes))
}
