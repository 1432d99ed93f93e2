// Package hashutil computes the SHA-256 digests the manifest model and
// the build pipeline compare against, always as lowercase hex.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// streamBufSize bounds the buffer HashFile uses so hashing never loads
// an entire file into memory.
const streamBufSize = 256 * 1024

// HashBytes returns the lowercase hex SHA-256 digest of buf.
func HashBytes(buf []byte) string {
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// HashFile streams path through SHA-256 with a bounded buffer and
// returns the lowercase hex digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, streamBufSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
