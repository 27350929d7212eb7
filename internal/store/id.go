package store

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// allocateID builds a 24-character lowercase hex document id per spec §3:
// the first 8 characters encode the insert-time unix second, big-endian;
// the remaining 16 are drawn from a random source.
func allocateID(now time.Time) (string, error) {
	var tsBuf [4]byte
	binary.BigEndian.PutUint32(tsBuf[:], uint32(now.Unix()))

	var randBuf [8]byte
	if _, err := rand.Read(randBuf[:]); err != nil {
		return "", fmt.Errorf("allocate document id: %w", err)
	}

	return hex.EncodeToString(tsBuf[:]) + hex.EncodeToString(randBuf[:]), nil
}
