package game

import (
	"fmt"
	"time"
)

// EventType identifies the kind of a game event.
type EventType string

// Success events, one per accepted action, plus the transition event
// reported when a lazy timeout fired before the action ran.
const (
	EventTypePlayerRegistered        EventType = "player_registered"
	EventTypePlayerWasAdded          EventType = "player_was_added"
	EventTypePlayerWasRemoved        EventType = "player_was_removed"
	EventTypeLobbyPlayersListUpdated EventType = "lobby_players_list_updated"
	EventTypeBetSizeWasChanged       EventType = "bet_size_was_changed"
	EventTypeNextConfigChanged       EventType = "next_config_changed"
	EventTypeSuccessfulMove          EventType = "successful_move"
	EventTypeSuccessfulReveal        EventType = "successful_reveal"
	EventTypeGameWasStopped          EventType = "game_was_stopped"
	EventTypeStageTimedOut           EventType = "stage_timed_out"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// Event is the success result of an action or a timeout transition.
type Event interface {
	EventType() EventType
}

type PlayerRegistered struct {
	Player Address `json:"player"`
}

type PlayerWasAdded struct {
	Player Address `json:"player"`
}

type PlayerWasRemoved struct {
	Player Address `json:"player"`
}

type LobbyPlayersListUpdated struct {
	Players []Address `json:"players"`
}

type BetSizeWasChanged struct {
	BetSize Amount `json:"bet_size"`
}

type NextConfigChanged struct {
	Config GameConfig `json:"config"`
}

type SuccessfulMove struct {
	Player Address `json:"player"`
}

type SuccessfulReveal struct {
	Player Address      `json:"player"`
	Result RevealResult `json:"result"`
}

// GameWasStopped lists the players that received a refund or a share.
type GameWasStopped struct {
	Players []Address `json:"players"`
}

// StageTimedOut reports a lazy timeout transition. Next equals Expired when
// the timeout only restarted the stage clock.
type StageTimedOut struct {
	Expired StageKind `json:"expired"`
	Next    StageKind `json:"next"`
	Players []Address `json:"players,omitempty"`
	Winner  Address   `json:"winner,omitempty"`
}

func (PlayerRegistered) EventType() EventType        { return EventTypePlayerRegistered }
func (PlayerWasAdded) EventType() EventType          { return EventTypePlayerWasAdded }
func (PlayerWasRemoved) EventType() EventType        { return EventTypePlayerWasRemoved }
func (LobbyPlayersListUpdated) EventType() EventType { return EventTypeLobbyPlayersListUpdated }
func (BetSizeWasChanged) EventType() EventType       { return EventTypeBetSizeWasChanged }
func (NextConfigChanged) EventType() EventType       { return EventTypeNextConfigChanged }
func (SuccessfulMove) EventType() EventType          { return EventTypeSuccessfulMove }
func (SuccessfulReveal) EventType() EventType        { return EventTypeSuccessfulReveal }
func (GameWasStopped) EventType() EventType          { return EventTypeGameWasStopped }
func (StageTimedOut) EventType() EventType           { return EventTypeStageTimedOut }

// RevealResultKind tells what a reveal led to.
type RevealResultKind uint8

const (
	// Continue means other players still have to reveal.
	Continue RevealResultKind = iota
	// NextRoundStarted means the round resolved with several survivors.
	NextRoundStarted
	// GameOver means the round resolved with a single winner.
	GameOver
)

var revealResultNames = map[RevealResultKind]string{
	Continue:         "continue",
	NextRoundStarted: "next_round_started",
	GameOver:         "game_over",
}

func (k RevealResultKind) String() string {
	if name, ok := revealResultNames[k]; ok {
		return name
	}
	return fmt.Sprintf("reveal_result(%d)", uint8(k))
}

func (k RevealResultKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *RevealResultKind) UnmarshalText(text []byte) error {
	for kind, name := range revealResultNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown reveal result %q", text)
}

// RevealResult is the outcome of one accepted reveal.
type RevealResult struct {
	Kind    RevealResultKind `json:"kind"`
	Players []Address        `json:"players,omitempty"`
	Winner  Address          `json:"winner,omitempty"`
}

// Outcome is everything a successful action produced.
type Outcome struct {
	Event       Event      `json:"-"`
	Transitions []Event    `json:"-"`
	Transfers   []Transfer `json:"transfers"`
	Stage       Stage      `json:"stage"`
	Pot         Amount     `json:"pot"`
	GameNumber  uint64     `json:"game_number"`
	At          time.Time  `json:"at"`
}
