// Package gameid generates time-ordered game identifiers: a UUIDv7 encoded
// as 26 characters of lowercase Crockford base32.
package gameid

import (
	"encoding/base32"
	"fmt"

	"github.com/google/uuid"
)

// Length is the length of an encoded ID.
const Length = 26

// Crockford's base32 alphabet, in ascending byte order so encoded IDs sort
// the same way as the UUIDs they encode.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// Generate creates a new game ID.
func Generate() string {
	return Encode(uuid.Must(uuid.NewV7()))
}

// Encode renders id in the game ID format.
func Encode(id uuid.UUID) string {
	return encoding.EncodeToString(id[:])
}

// Decode parses a game ID back into its UUID.
func Decode(s string) (uuid.UUID, error) {
	if err := Validate(s); err != nil {
		return uuid.Nil, err
	}
	b, err := encoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid game ID %q: %w", s, err)
	}
	return uuid.FromBytes(b)
}

// Validate checks that s has the length and alphabet of a game ID.
func Validate(s string) error {
	if len(s) != Length {
		return fmt.Errorf("game ID must be exactly %d characters, got %d", Length, len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') || c == 'i' || c == 'l' || c == 'o' || c == 'u' {
			return fmt.Errorf("invalid character %c at position %d", c, i)
		}
	}
	return nil
}
