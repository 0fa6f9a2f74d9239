package fhe

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

var (
	// ErrInvalidCiphertext is returned when an encrypted input fails proof verification
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	// ErrUnknownHandle is returned when an operation references a handle the coprocessor never issued
	ErrUnknownHandle = errors.New("unknown ciphertext handle")
	// ErrNotAllowed is returned when an account asks to decrypt a handle it has no ACL entry for
	ErrNotAllowed = errors.New("account not allowed on handle")
	// ErrTypeMismatch is returned when an operation is applied to the wrong ciphertext type
	ErrTypeMismatch = errors.New("ciphertext type mismatch")
)

// Coprocessor simulates the encrypted-value substrate: it holds sealed
// cleartexts keyed by opaque handles and evaluates operations over them without
// ever returning cleartext to callers. Only the decryption paths (oracle and
// ACL-gated user decryption) reveal values.
type Coprocessor struct {
	sealKey  [32]byte
	inputKey []byte
	values   map[Handle][]byte // sealed [type, value]
	acl      map[Handle]map[string]bool
	mu       sync.RWMutex
}

// NewCoprocessor creates a coprocessor with a sealing key and an input-verifier key
func NewCoprocessor(sealSecret, inputSecret string) *Coprocessor {
	cp := &Coprocessor{
		inputKey: []byte(inputSecret),
		values:   make(map[Handle][]byte),
		acl:      make(map[Handle]map[string]bool),
	}
	cp.sealKey = sha256.Sum256([]byte(sealSecret))
	return cp
}

// seal encrypts a [type, value] pair under the coprocessor key
func (cp *Coprocessor) seal(ct CiphertextType, value uint8) []byte {
	var nonce [24]byte
	rand.Read(nonce[:])
	out := secretbox.Seal(nonce[:], []byte{byte(ct), value}, &nonce, &cp.sealKey)
	return out
}

// open decrypts a sealed pair; fails only if the store was tampered with
func (cp *Coprocessor) open(sealed []byte) (CiphertextType, uint8, error) {
	if len(sealed) < 24 {
		return 0, 0, ErrInvalidCiphertext
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &cp.sealKey)
	if !ok || len(plain) != 2 {
		return 0, 0, ErrInvalidCiphertext
	}
	return CiphertextType(plain[0]), plain[1], nil
}

// store seals a value under a fresh handle
func (cp *Coprocessor) store(ct CiphertextType, value uint8) Handle {
	h := newHandle()
	cp.mu.Lock()
	cp.values[h] = cp.seal(ct, value)
	cp.mu.Unlock()
	return h
}

// load opens the value behind a handle
func (cp *Coprocessor) load(h Handle) (CiphertextType, uint8, error) {
	cp.mu.RLock()
	sealed, exists := cp.values[h]
	cp.mu.RUnlock()
	if !exists {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	return cp.open(sealed)
}

// inputProof computes the binding proof for an encrypted input
func (cp *Coprocessor) inputProof(h Handle, contract, user string) string {
	mac := hmac.New(sha256.New, cp.inputKey)
	mac.Write([]byte(string(h) + "|" + contract + "|" + user))
	return hex.EncodeToString(mac.Sum(nil))
}

// CreateEncryptedInput encrypts an 8-bit value bound to a contract and a user,
// returning the handle and the input proof the ledger will verify.
func (cp *Coprocessor) CreateEncryptedInput(contract, user string, value uint8) (Handle, string) {
	h := cp.store(TypeEuint8, value)
	return h, cp.inputProof(h, contract, user)
}

// VerifyInput checks an encrypted input against its proof
func (cp *Coprocessor) VerifyInput(h Handle, contract, user, proof string) error {
	cp.mu.RLock()
	_, exists := cp.values[h]
	cp.mu.RUnlock()
	if !exists {
		return ErrInvalidCiphertext
	}
	expected := cp.inputProof(h, contract, user)
	if !hmac.Equal([]byte(expected), []byte(proof)) {
		return ErrInvalidCiphertext
	}
	return nil
}

// TrivialEncrypt8 wraps a public 8-bit constant as a ciphertext handle
func (cp *Coprocessor) TrivialEncrypt8(value uint8) Handle {
	return cp.store(TypeEuint8, value)
}

// TrivialEncryptBool wraps a public boolean as a ciphertext handle
func (cp *Coprocessor) TrivialEncryptBool(value bool) Handle {
	return cp.store(TypeEbool, boolByte(value))
}

// Lt returns an ebool handle for (h < c)
func (cp *Coprocessor) Lt(h Handle, c uint8) (Handle, error) {
	_, v, err := cp.load(h)
	if err != nil {
		return ZeroHandle, err
	}
	return cp.store(TypeEbool, boolByte(v < c)), nil
}

// Eq returns an ebool handle for (a == b)
func (cp *Coprocessor) Eq(a, b Handle) (Handle, error) {
	_, va, err := cp.load(a)
	if err != nil {
		return ZeroHandle, err
	}
	_, vb, err := cp.load(b)
	if err != nil {
		return ZeroHandle, err
	}
	return cp.store(TypeEbool, boolByte(va == vb)), nil
}

// Rem returns an euint8 handle for (h % c)
func (cp *Coprocessor) Rem(h Handle, c uint8) (Handle, error) {
	ct, v, err := cp.load(h)
	if err != nil {
		return ZeroHandle, err
	}
	if ct != TypeEuint8 {
		return ZeroHandle, ErrTypeMismatch
	}
	if c == 0 {
		return ZeroHandle, fmt.Errorf("remainder by zero")
	}
	return cp.store(TypeEuint8, v%c), nil
}

// And returns an ebool handle for (a && b)
func (cp *Coprocessor) And(a, b Handle) (Handle, error) {
	va, err := cp.loadBool(a)
	if err != nil {
		return ZeroHandle, err
	}
	vb, err := cp.loadBool(b)
	if err != nil {
		return ZeroHandle, err
	}
	return cp.store(TypeEbool, boolByte(va && vb)), nil
}

// Or returns an ebool handle for (a || b)
func (cp *Coprocessor) Or(a, b Handle) (Handle, error) {
	va, err := cp.loadBool(a)
	if err != nil {
		return ZeroHandle, err
	}
	vb, err := cp.loadBool(b)
	if err != nil {
		return ZeroHandle, err
	}
	return cp.store(TypeEbool, boolByte(va || vb)), nil
}

// Not returns an ebool handle for (!h)
func (cp *Coprocessor) Not(h Handle) (Handle, error) {
	v, err := cp.loadBool(h)
	if err != nil {
		return ZeroHandle, err
	}
	return cp.store(TypeEbool, boolByte(!v)), nil
}

// Select returns cond ? a : b without revealing cond. Both branches are
// evaluated by the caller beforehand; this is the oblivious-select primitive.
func (cp *Coprocessor) Select(cond, a, b Handle) (Handle, error) {
	v, err := cp.loadBool(cond)
	if err != nil {
		return ZeroHandle, err
	}
	ctA, va, err := cp.load(a)
	if err != nil {
		return ZeroHandle, err
	}
	ctB, vb, err := cp.load(b)
	if err != nil {
		return ZeroHandle, err
	}
	if ctA != ctB {
		return ZeroHandle, ErrTypeMismatch
	}
	if v {
		return cp.store(ctA, va), nil
	}
	return cp.store(ctB, vb), nil
}

func (cp *Coprocessor) loadBool(h Handle) (bool, error) {
	ct, v, err := cp.load(h)
	if err != nil {
		return false, err
	}
	if ct != TypeEbool {
		return false, ErrTypeMismatch
	}
	return v != 0, nil
}

// Allow grants an account decryption rights on a handle
func (cp *Coprocessor) Allow(h Handle, account string) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if _, exists := cp.acl[h]; !exists {
		cp.acl[h] = make(map[string]bool)
	}
	cp.acl[h][account] = true
}

// IsAllowed reports whether an account may decrypt a handle
func (cp *Coprocessor) IsAllowed(h Handle, account string) bool {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.acl[h][account]
}

// OracleDecrypt reveals cleartexts for the decryption oracle. Only the oracle
// worker holds a reference that calls this; the ledger and API never do.
func (cp *Coprocessor) OracleDecrypt(handles []Handle) ([]uint8, error) {
	out := make([]uint8, 0, len(handles))
	for _, h := range handles {
		_, v, err := cp.load(h)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// UserDecrypt reveals cleartexts for an account across the given handles,
// enforcing the per-handle ACL. Authorization is checked by the caller via
// VerifyDecryptionAuth before this is reached.
func (cp *Coprocessor) UserDecrypt(handles []Handle, account string) (map[Handle]uint8, error) {
	out := make(map[Handle]uint8, len(handles))
	for _, h := range handles {
		if h == ZeroHandle {
			continue
		}
		if !cp.IsAllowed(h, account) {
			return nil, fmt.Errorf("%w: %s", ErrNotAllowed, h)
		}
		_, v, err := cp.load(h)
		if err != nil {
			return nil, err
		}
		out[h] = v
	}
	return out, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
