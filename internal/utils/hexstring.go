package utils

import (
	"crypto/rand"
	"encoding/hex"
	mrand "math/rand"
	"strings"
)

// size of a single random fragment in bytes
const hexFragmentSize = 8

// HexString returns exactly length lowercase hex characters.
func HexString(length int) string {
	if length <= 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow(length + 2*hexFragmentSize)

	buf := make([]byte, hexFragmentSize)
	for sb.Len() < length {
		if _, err := rand.Read(buf); err != nil {
			for i := range buf {
				buf[i] = byte(mrand.Uint32())
			}
		}
		sb.WriteString(hex.EncodeToString(buf))
	}

	return sb.String()[:length]
}
