package fhe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignDecryptionResult produces the oracle's proof over a fulfilled request:
// an HMAC binding the request id to the cleartexts it delivers.
func SignDecryptionResult(key, requestID string, cleartexts []uint8) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(requestID))
	mac.Write([]byte{0})
	mac.Write(cleartexts)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyDecryptionResult checks an oracle proof against the request id and cleartexts
func VerifyDecryptionResult(key, requestID string, cleartexts []uint8, proof string) bool {
	expected := SignDecryptionResult(key, requestID, cleartexts)
	return hmac.Equal([]byte(expected), []byte(proof))
}
