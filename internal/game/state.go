package game

import (
	"maps"
	"time"
)

// State is the whole game aggregate. It is owned by a single Engine and only
// mutated by the action currently being handled.
type State struct {
	Owner      Address     `json:"owner"`
	Config     GameConfig  `json:"config"`
	NextConfig *GameConfig `json:"next_config,omitempty"`

	Stage      Stage     `json:"stage"`
	StageStart time.Time `json:"stage_start"`

	Lobby       AddressSet         `json:"lobby"`
	Commitments map[Address]string `json:"commitments"`
	Revealed    map[Address]Move   `json:"revealed"`

	// Bettors maps each player who paid into the current pot to the amount
	// they contributed.
	Bettors map[Address]Amount `json:"bettors"`
	Pot     Amount             `json:"pot"`

	GameNumber  uint64 `json:"game_number"`
	RoundNumber uint64 `json:"round_number"`
}

func newState(init InitConfig, now time.Time) *State {
	return &State{
		Owner:       init.Owner,
		Config:      init.Config,
		Stage:       preparationStage(),
		StageStart:  now,
		Lobby:       NewAddressSet(init.Lobby...),
		Commitments: make(map[Address]string),
		Revealed:    make(map[Address]Move),
		Bettors:     make(map[Address]Amount),
	}
}

// Clone returns a deep copy used as the scratch state of one action.
func (s *State) Clone() *State {
	c := *s
	if s.NextConfig != nil {
		next := *s.NextConfig
		c.NextConfig = &next
	}
	c.Stage = s.Stage.Clone()
	c.Lobby = s.Lobby.Clone()
	c.Commitments = maps.Clone(s.Commitments)
	c.Revealed = maps.Clone(s.Revealed)
	c.Bettors = maps.Clone(s.Bettors)
	if c.Commitments == nil {
		c.Commitments = make(map[Address]string)
	}
	if c.Revealed == nil {
		c.Revealed = make(map[Address]Move)
	}
	if c.Bettors == nil {
		c.Bettors = make(map[Address]Amount)
	}
	return &c
}

func (s *State) restampClock(now time.Time) {
	s.StageStart = now
}

func (s *State) clearMoves() {
	clear(s.Commitments)
	clear(s.Revealed)
}

// resetToPreparation ends the current game. The pot must already have been
// paid out.
func (s *State) resetToPreparation(now time.Time) {
	s.clearMoves()
	s.Lobby = AddressSet{}
	clear(s.Bettors)
	if s.NextConfig != nil {
		s.Config = *s.NextConfig
		s.NextConfig = nil
	}
	s.Stage = preparationStage()
	s.GameNumber++
	s.RoundNumber = 0
	s.restampClock(now)
}

func (s *State) startRound(players AddressSet, now time.Time) {
	s.clearMoves()
	s.Stage = inProgressStage(players)
	s.RoundNumber++
	s.restampClock(now)
}

func (s *State) startReveal(committed AddressSet, now time.Time) {
	s.Stage = revealStage(committed)
	s.restampClock(now)
}
