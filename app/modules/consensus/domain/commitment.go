package consensusdomain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// PreimageSeparator joins the identity, number and nonce of a commitment preimage.
const PreimageSeparator = "|"

// DigestLength is the length of a hex encoded SHA-256 digest.
const DigestLength = sha256.Size * 2

// Digest returns the lowercase hex SHA-256 of s.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Preimage builds the canonical commitment preimage. number must already be
// the decimal string form of the chosen integer.
func Preimage(identity, number, nonce string) string {
	return identity + PreimageSeparator + number + PreimageSeparator + nonce
}

// Commit returns the digest a participant submits during the commit phase.
func Commit(identity string, number int, nonce string) string {
	return Digest(Preimage(identity, strconv.Itoa(number), nonce))
}

// NewNonce returns a random hex nonce of n bytes of entropy.
func NewNonce(n int) (string, error) {
	if n <= 0 {
		n = 16
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// IsDigest reports whether s looks like a lowercase hex SHA-256 digest.
func IsDigest(s string) bool {
	if len(s) != DigestLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
