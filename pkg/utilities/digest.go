package utilities

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// ScopedDigest returns hex(HMAC-SHA256(scope, value)). Each caller uses its
// own scope so digests of the same input never collide across purposes.
func ScopedDigest(scope, value string) string {
	m := hmac.New(sha256.New, []byte(scope))
	m.Write([]byte(value))
	return hex.EncodeToString(m.Sum(nil))
}

// ConstantTimeCompare reports whether a and b are equal without leaking
// timing information about where they differ.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RandomHex returns n random bytes encoded as hex.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
