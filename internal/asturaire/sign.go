package asturaire

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Sign computes the auth header pair the AsturAire REST API expects:
// a millisecond timestamp and a hash-chained signature
// sha256(sha256(user+pass) + timestamp), both hex-encoded.
// Deterministic for a given clock value; callers must invoke it per
// request so the timestamp stays fresh.
func Sign(user, pass string, now time.Time) (signature, timestamp string) {
	timestamp = strconv.FormatInt(now.UnixMilli(), 10)
	first := sha256Hex(user + pass)
	signature = sha256Hex(first + timestamp)
	return signature, timestamp
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
