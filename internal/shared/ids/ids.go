package ids

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// Len is the length of every server-assigned entity id.
const Len = 22

// New returns a 22-character URL-safe random id.
func New() string {
	u := uuid.New()
	return base64.RawURLEncoding.EncodeToString(u[:])
}

// Valid reports whether s has the shape of an id produced by New.
func Valid(s string) bool {
	if len(s) != Len {
		return false
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil && len(b) == 16
}
