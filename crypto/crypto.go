package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ChecksumSize is the size in bytes of checksums returned by Checksum.
const ChecksumSize = blake2b.Size256

// Checksum returns the BLAKE2b-256 digest of data.
func Checksum(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

// EqualChecksums compares two checksums in constant time.
func EqualChecksums(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// RandomData returns a slice of the specified size containing random data.
func RandomData(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("size cannot be negative")
	}

	data := make([]byte, size)
	_, err := rand.Read(data)
	if err != nil {
		return nil, fmt.Errorf("failed generating random data: %w", err)
	}

	return data, nil
}
