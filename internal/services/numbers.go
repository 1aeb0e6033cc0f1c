package services

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// generateNumber builds a human-readable identifier: a fixed prefix followed
// by nine random digits. Orders use "R", shipments "H", return
// authorizations "RMA". Uniqueness is enforced at the persistence layer.
func generateNumber(prefix string) string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the platform is broken; fall back to
		// a zero suffix rather than aborting order creation.
		return fmt.Sprintf("%s%09d", prefix, 0)
	}
	n := binary.BigEndian.Uint32(b[:]) % 1_000_000_000
	return fmt.Sprintf("%s%09d", prefix, n)
}
