package utils

import (
	"crypto/sha256"
	"fmt"
)

// Checksum returns the hex-encoded SHA-256 digest of the input. Used for
// duplicate detection on uploaded document content.
func Checksum(input string) string {
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash)
}
