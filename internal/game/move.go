package game

import (
	"fmt"
	"math/bits"
	"strings"
)

// Move is one of the five throws. The numeric value doubles as the
// deterministic ordering used for set operations.
type Move uint8

const (
	Rock Move = iota
	Paper
	Scissors
	Lizard
	Spock
)

// MoveCount is the number of distinct moves.
const MoveCount = 5

// AllMoves lists every move in ascending order.
var AllMoves = [MoveCount]Move{Rock, Paper, Scissors, Lizard, Spock}

var moveNames = [MoveCount]string{"rock", "paper", "scissors", "lizard", "spock"}

// beats[m] is the bitmask of moves that m defeats.
var beats = [MoveCount]MoveSet{
	Rock:     NewMoveSet(Scissors, Lizard),
	Paper:    NewMoveSet(Rock, Spock),
	Scissors: NewMoveSet(Paper, Lizard),
	Lizard:   NewMoveSet(Paper, Spock),
	Spock:    NewMoveSet(Rock, Scissors),
}

// Valid reports whether m is one of the five moves.
func (m Move) Valid() bool {
	return m < MoveCount
}

// Wins reports whether m defeats other. Identical moves never win.
func (m Move) Wins(other Move) bool {
	if !m.Valid() || !other.Valid() {
		return false
	}
	return beats[m].Contains(other)
}

// Char returns the single character that identifies the move inside a
// commitment preimage ('0' for Rock through '4' for Spock).
func (m Move) Char() byte {
	return '0' + byte(m)
}

func (m Move) String() string {
	if !m.Valid() {
		return fmt.Sprintf("move(%d)", uint8(m))
	}
	return moveNames[m]
}

// MarshalText encodes the move by name.
func (m Move) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMove, uint8(m))
	}
	return []byte(moveNames[m]), nil
}

// UnmarshalText accepts either a move name or its identifying digit.
func (m *Move) UnmarshalText(text []byte) error {
	parsed, err := ParseMove(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMove accepts a move name ("rock", case-insensitive) or its digit ("0".."4").
func ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 1 {
		if m, err := MoveFromChar(s[0]); err == nil {
			return m, nil
		}
	}
	for i, name := range moveNames {
		if name == s {
			return Move(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMove, s)
}

// MoveFromChar maps an identifying character back to its move.
func MoveFromChar(c byte) (Move, error) {
	if c < '0' || c > '4' {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMove, c)
	}
	return Move(c - '0'), nil
}

// MoveSet is a bitmask of distinct moves.
type MoveSet uint8

// NewMoveSet builds a set from the given moves.
func NewMoveSet(moves ...Move) MoveSet {
	var s MoveSet
	for _, m := range moves {
		s = s.With(m)
	}
	return s
}

func (s MoveSet) With(m Move) MoveSet { return s | 1<<m }
func (s MoveSet) Without(m Move) MoveSet { return s &^ (1 << m) }
func (s MoveSet) Contains(m Move) bool { return m.Valid() && s&(1<<m) != 0 }
func (s MoveSet) Len() int { return bits.OnesCount8(uint8(s)) }
func (s MoveSet) Minus(o MoveSet) MoveSet { return s &^ o }
func (s MoveSet) IsEmpty() bool { return s == 0 }
func (s MoveSet) Intersect(o MoveSet) MoveSet { return s & o }

// Moves returns the members in ascending order.
func (s MoveSet) Moves() []Move {
	moves := make([]Move, 0, s.Len())
	for _, m := range AllMoves {
		if s.Contains(m) {
			moves = append(moves, m)
		}
	}
	return moves
}

func (s MoveSet) String() string {
	names := make([]string, 0, s.Len())
	for _, m := range s.Moves() {
		names = append(names, m.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}
