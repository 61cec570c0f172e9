package game

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitKnownValues(t *testing.T) {
	assert.Equal(t, "f1244ffa79e862c61540f1667c6a120356a6c2d0c066e4beb5204c80fbe7e845", Commit(Rock, "salt"))
	assert.Equal(t, "0671db7167ca6d0b8f9785cea480491eb296e02512c63de65bd3a05f72a66444", Commit(Lizard, "lizard-salt"))
}

func TestVerifyCommitment(t *testing.T) {
	c := Commit(Paper, "pepper")
	require.NoError(t, ValidateCommitment(c))

	assert.True(t, VerifyCommitment(c, Paper, "pepper"))
	assert.False(t, VerifyCommitment(c, Rock, "pepper"))
	assert.False(t, VerifyCommitment(c, Paper, "pepper2"))
	assert.False(t, VerifyCommitment(strings.ToUpper(c), Paper, "pepper"))
}

func TestValidateCommitment(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"valid", Commit(Spock, ""), true},
		{"empty", "", false},
		{"short", strings.Repeat("a", 63), false},
		{"uppercase", strings.Repeat("A", 64), false},
		{"non hex", strings.Repeat("g", 64), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommitment(tt.input)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrMalformedCommitment)
				assert.Equal(t, CategoryInvalid, CategoryOf(err))
			}
		})
	}
}

func TestParseReveal(t *testing.T) {
	m, s, err := ParseReveal("2abc")
	require.NoError(t, err)
	assert.Equal(t, Scissors, m)
	assert.Equal(t, "abc", s)
	assert.True(t, VerifyCommitment(Commit(Scissors, "abc"), m, s))

	_, _, err = ParseReveal("9abc")
	assert.ErrorIs(t, err, ErrUnknownMove)

	_, _, err = ParseReveal("")
	assert.ErrorIs(t, err, ErrUnknownMove)
}
