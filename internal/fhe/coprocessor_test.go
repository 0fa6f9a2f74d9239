package fhe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCoprocessor() *Coprocessor {
	return NewCoprocessor("seal-secret", "input-secret")
}

func mustReveal(t *testing.T, cp *Coprocessor, h Handle) uint8 {
	t.Helper()
	values, err := cp.OracleDecrypt([]Handle{h})
	require.NoError(t, err)
	return values[0]
}

func TestEncryptedInputRoundTrip(t *testing.T) {
	cp := newTestCoprocessor()

	h, proof := cp.CreateEncryptedInput("contract", "alice", 3)
	require.NotEqual(t, ZeroHandle, h)
	require.NoError(t, cp.VerifyInput(h, "contract", "alice", proof))
	require.Equal(t, uint8(3), mustReveal(t, cp, h))
}

func TestVerifyInputBinding(t *testing.T) {
	cp := newTestCoprocessor()

	h, proof := cp.CreateEncryptedInput("contract", "alice", 1)

	// The proof binds handle, contract and user together
	require.ErrorIs(t, cp.VerifyInput(h, "contract", "bob", proof), ErrInvalidCiphertext)
	require.ErrorIs(t, cp.VerifyInput(h, "other-contract", "alice", proof), ErrInvalidCiphertext)
	require.ErrorIs(t, cp.VerifyInput(h, "contract", "alice", "not-a-proof"), ErrInvalidCiphertext)

	other, _ := cp.CreateEncryptedInput("contract", "alice", 1)
	require.ErrorIs(t, cp.VerifyInput(other, "contract", "alice", proof), ErrInvalidCiphertext)
}

func TestVerifyInputUnknownHandle(t *testing.T) {
	cp := newTestCoprocessor()
	require.ErrorIs(t, cp.VerifyInput(Handle("deadbeef"), "contract", "alice", "proof"), ErrInvalidCiphertext)
}

func TestComparisonOps(t *testing.T) {
	cp := newTestCoprocessor()

	h := cp.TrivialEncrypt8(1)

	lt, err := cp.Lt(h, 2)
	require.NoError(t, err)
	require.Equal(t, uint8(1), mustReveal(t, cp, lt))

	notLt, err := cp.Lt(h, 1)
	require.NoError(t, err)
	require.Equal(t, uint8(0), mustReveal(t, cp, notLt))

	eq, err := cp.Eq(h, cp.TrivialEncrypt8(1))
	require.NoError(t, err)
	require.Equal(t, uint8(1), mustReveal(t, cp, eq))

	neq, err := cp.Eq(h, cp.TrivialEncrypt8(3))
	require.NoError(t, err)
	require.Equal(t, uint8(0), mustReveal(t, cp, neq))
}

func TestRem(t *testing.T) {
	cp := newTestCoprocessor()

	h := cp.TrivialEncrypt8(3)
	rem, err := cp.Rem(h, 2)
	require.NoError(t, err)
	require.Equal(t, uint8(1), mustReveal(t, cp, rem))

	_, err = cp.Rem(h, 0)
	require.Error(t, err)

	_, err = cp.Rem(cp.TrivialEncryptBool(true), 2)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestBooleanOps(t *testing.T) {
	cp := newTestCoprocessor()

	yes := cp.TrivialEncryptBool(true)
	no := cp.TrivialEncryptBool(false)

	and, err := cp.And(yes, no)
	require.NoError(t, err)
	require.Equal(t, uint8(0), mustReveal(t, cp, and))

	or, err := cp.Or(yes, no)
	require.NoError(t, err)
	require.Equal(t, uint8(1), mustReveal(t, cp, or))

	not, err := cp.Not(no)
	require.NoError(t, err)
	require.Equal(t, uint8(1), mustReveal(t, cp, not))

	// Boolean ops refuse euint8 operands
	_, err = cp.And(yes, cp.TrivialEncrypt8(1))
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestSelect(t *testing.T) {
	cp := newTestCoprocessor()

	a := cp.TrivialEncrypt8(7)
	b := cp.TrivialEncrypt8(9)

	picked, err := cp.Select(cp.TrivialEncryptBool(true), a, b)
	require.NoError(t, err)
	require.Equal(t, uint8(7), mustReveal(t, cp, picked))

	picked, err = cp.Select(cp.TrivialEncryptBool(false), a, b)
	require.NoError(t, err)
	require.Equal(t, uint8(9), mustReveal(t, cp, picked))

	// A fresh handle comes back either way, never the input handle
	require.NotEqual(t, a, picked)
	require.NotEqual(t, b, picked)

	_, err = cp.Select(cp.TrivialEncryptBool(true), a, cp.TrivialEncryptBool(true))
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestOpsOnUnknownHandle(t *testing.T) {
	cp := newTestCoprocessor()

	_, err := cp.Lt(Handle("missing"), 2)
	require.ErrorIs(t, err, ErrUnknownHandle)

	_, err = cp.OracleDecrypt([]Handle{Handle("missing")})
	require.ErrorIs(t, err, ErrUnknownHandle)
}

func TestUserDecryptACL(t *testing.T) {
	cp := newTestCoprocessor()

	h := cp.TrivialEncrypt8(2)

	_, err := cp.UserDecrypt([]Handle{h}, "alice")
	require.ErrorIs(t, err, ErrNotAllowed)

	cp.Allow(h, "alice")

	out, err := cp.UserDecrypt([]Handle{h}, "alice")
	require.NoError(t, err)
	require.Equal(t, uint8(2), out[h])

	// The grant is per account
	_, err = cp.UserDecrypt([]Handle{h}, "bob")
	require.ErrorIs(t, err, ErrNotAllowed)
}

func TestUserDecryptSkipsZeroHandle(t *testing.T) {
	cp := newTestCoprocessor()

	h := cp.TrivialEncrypt8(5)
	cp.Allow(h, "alice")

	out, err := cp.UserDecrypt([]Handle{ZeroHandle, h}, "alice")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, uint8(5), out[h])
}

func TestDecryptionAuthTokens(t *testing.T) {
	token, err := SignDecryptionAuth("jwt-secret", "alice", "contract", 7)
	require.NoError(t, err)

	require.NoError(t, VerifyDecryptionAuth("jwt-secret", token, "alice", "contract"))

	// Bound to user, contract and signing key
	require.ErrorIs(t, VerifyDecryptionAuth("jwt-secret", token, "bob", "contract"), ErrInvalidAuth)
	require.ErrorIs(t, VerifyDecryptionAuth("jwt-secret", token, "alice", "other"), ErrInvalidAuth)
	require.ErrorIs(t, VerifyDecryptionAuth("wrong-secret", token, "alice", "contract"), ErrInvalidAuth)
}

func TestDecryptionAuthExpiry(t *testing.T) {
	token, err := SignDecryptionAuth("jwt-secret", "alice", "contract", -1)
	require.NoError(t, err)
	require.ErrorIs(t, VerifyDecryptionAuth("jwt-secret", token, "alice", "contract"), ErrInvalidAuth)
}

func TestDecryptionResultProof(t *testing.T) {
	cleartexts := []uint8{0, 2, 1}
	proof := SignDecryptionResult("oracle-key", "req-1", cleartexts)

	require.True(t, VerifyDecryptionResult("oracle-key", "req-1", cleartexts, proof))
	require.False(t, VerifyDecryptionResult("oracle-key", "req-2", cleartexts, proof))
	require.False(t, VerifyDecryptionResult("other-key", "req-1", cleartexts, proof))
	require.False(t, VerifyDecryptionResult("oracle-key", "req-1", []uint8{1, 2, 1}, proof))
}
