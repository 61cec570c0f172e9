package game

import (
	"encoding/json"
	"fmt"
)

// StageKind names the current phase of the game.
type StageKind uint8

const (
	// Preparation collects players in the lobby.
	Preparation StageKind = iota
	// InProgress collects committed moves.
	InProgress
	// Reveal collects the plaintext behind each commitment.
	Reveal
)

var stageNames = map[StageKind]string{
	Preparation: "preparation",
	InProgress:  "in_progress",
	Reveal:      "reveal",
}

func (k StageKind) String() string {
	if name, ok := stageNames[k]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", uint8(k))
}

func (k StageKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *StageKind) UnmarshalText(text []byte) error {
	for kind, name := range stageNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", text)
}

// StageDescription splits the players of the current round into those
// still owing an action and those who have acted. The two sets never
// overlap.
type StageDescription struct {
	Anticipated AddressSet `json:"anticipated"`
	Finished    AddressSet `json:"finished"`
}

// Players returns everyone active in the round.
func (d StageDescription) Players() AddressSet {
	return d.Anticipated.Union(d.Finished)
}

// Contains reports whether a is active in the round.
func (d StageDescription) Contains(a Address) bool {
	return d.Anticipated.Contains(a) || d.Finished.Contains(a)
}

// finish moves a from anticipated to finished.
func (d *StageDescription) finish(a Address) bool {
	if !d.Anticipated.Remove(a) {
		return false
	}
	d.Finished.Add(a)
	return true
}

// Clone returns an independent copy.
func (d StageDescription) Clone() StageDescription {
	return StageDescription{
		Anticipated: d.Anticipated.Clone(),
		Finished:    d.Finished.Clone(),
	}
}

// Stage is the tagged union of the three phases. Description is empty for
// Preparation.
type Stage struct {
	Kind        StageKind        `json:"kind"`
	Description StageDescription `json:"description"`
}

func preparationStage() Stage {
	return Stage{Kind: Preparation}
}

func inProgressStage(anticipated AddressSet) Stage {
	return Stage{Kind: InProgress, Description: StageDescription{Anticipated: anticipated.Clone()}}
}

func revealStage(anticipated AddressSet) Stage {
	return Stage{Kind: Reveal, Description: StageDescription{Anticipated: anticipated.Clone()}}
}

// GameInProgress reports whether a game is running (any stage other than
// Preparation).
func (s Stage) GameInProgress() bool {
	return s.Kind != Preparation
}

// IsPlayerInGame reports whether a takes part in the current round.
func (s Stage) IsPlayerInGame(a Address) bool {
	return s.GameInProgress() && s.Description.Contains(a)
}

// CurrentPlayers returns the round's players, or false in Preparation.
func (s Stage) CurrentPlayers() (AddressSet, bool) {
	if !s.GameInProgress() {
		return AddressSet{}, false
	}
	return s.Description.Players(), true
}

// Clone returns an independent copy.
func (s Stage) Clone() Stage {
	return Stage{Kind: s.Kind, Description: s.Description.Clone()}
}

func (s Stage) String() string {
	if !s.GameInProgress() {
		return s.Kind.String()
	}
	data, _ := json.Marshal(s.Description)
	return fmt.Sprintf("%s%s", s.Kind, data)
}
