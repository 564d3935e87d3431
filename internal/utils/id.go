package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// NewID returns a session identifier for the hub's connection registry.
// Uniqueness only has to hold among concurrently open sessions.
func NewID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}

	// crypto/rand failed, fall back to the clock.
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
