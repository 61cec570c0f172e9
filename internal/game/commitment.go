package game

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// CommitmentLength is the length of a hex encoded commitment.
const CommitmentLength = 2 * blake2b.Size256

// Commit returns the lowercase hex BLAKE2b-256 digest of the move's
// identifying character followed by the salt bytes. Players submit this value
// with SubmitMove and later disclose the move and salt with Reveal.
func Commit(m Move, salt string) string {
	preimage := make([]byte, 0, 1+len(salt))
	preimage = append(preimage, m.Char())
	preimage = append(preimage, salt...)
	return commitPreimage(preimage)
}

func commitPreimage(preimage []byte) string {
	sum := blake2b.Sum256(preimage)
	return hex.EncodeToString(sum[:])
}

// VerifyCommitment reports whether move and salt hash to the stored commitment.
func VerifyCommitment(stored string, m Move, salt string) bool {
	computed := Commit(m, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1
}

// ValidateCommitment checks that s looks like a value produced by Commit.
func ValidateCommitment(s string) error {
	if len(s) != CommitmentLength {
		return fmt.Errorf("%w: want %d hex characters, got %d", ErrMalformedCommitment, CommitmentLength, len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("%w: invalid character %q", ErrMalformedCommitment, c)
		}
	}
	return nil
}

// ParseReveal splits the single-string reveal form "<digit><salt>" into its
// move and salt.
func ParseReveal(plaintext string) (Move, string, error) {
	if plaintext == "" {
		return 0, "", fmt.Errorf("%w: empty reveal", ErrUnknownMove)
	}
	m, err := MoveFromChar(plaintext[0])
	if err != nil {
		return 0, "", err
	}
	return m, plaintext[1:], nil
}
