package services

import (
	"crypto/rand"
	"strings"
)

// Room codes must survive being read aloud and typed on a phone, so the
// alphabet drops 0/O and 1/I. 32 characters also divides 256 evenly, which
// keeps the byte mapping unbiased.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

// generateRoomCode returns a random code. It does not guarantee uniqueness;
// the caller checks the store and retries on collision.
func generateRoomCode() string {
	buf := make([]byte, codeLength)
	rand.Read(buf)

	var builder strings.Builder
	builder.Grow(codeLength)
	for _, b := range buf {
		builder.WriteByte(codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return builder.String()
}

// NormalizeCode maps user-typed codes onto the stored form. Codes are
// matched case-insensitively everywhere but stored uppercase.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
