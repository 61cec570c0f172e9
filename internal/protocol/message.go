// Package protocol defines the JSON messages exchanged over the websocket
// between rpsforbots clients and the server.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/lox/rpsforbots/internal/game"
)

// MessageType represents a WebSocket message type with type safety
type MessageType string

const (
	// Client to server messages
	MessageTypeHello      MessageType = "hello"
	MessageTypeAction     MessageType = "action"
	MessageTypeQuery      MessageType = "query"
	MessageTypeCreateGame MessageType = "create_game"
	MessageTypeListGames  MessageType = "list_games"

	// Server to client messages
	MessageTypeWelcome     MessageType = "welcome"
	MessageTypeEvent       MessageType = "event"
	MessageTypeQueryResult MessageType = "query_result"
	MessageTypeGameCreated MessageType = "game_created"
	MessageTypeGameList    MessageType = "game_list"
	MessageTypeError       MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// WithRequestID sets the correlation ID and returns the message.
func (m *Message) WithRequestID(id string) *Message {
	m.RequestID = id
	return m
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// Client → Server Messages

type HelloData struct {
	Address game.Address `json:"address"`
	// Token proves the address when the server validates identities.
	Token string `json:"token,omitempty"`
}

type ActionData struct {
	Game   string          `json:"game"`
	Kind   game.ActionKind `json:"kind"`
	Value  game.Amount     `json:"value,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

type QueryData struct {
	Game string `json:"game"`
}

type CreateGameData struct {
	Config ConfigData     `json:"config"`
	Lobby  []game.Address `json:"lobby,omitempty"`
}

// Server → Client Messages

type WelcomeData struct {
	Address game.Address `json:"address"`
	Balance game.Amount  `json:"balance"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventEnvelope carries one typed game event.
type EventEnvelope struct {
	Type game.EventType  `json:"type"`
	Data json.RawMessage `json:"data"`
}

type EventData struct {
	Game        string          `json:"game"`
	Caller      game.Address    `json:"caller"`
	Event       EventEnvelope   `json:"event"`
	Transitions []EventEnvelope `json:"transitions,omitempty"`
	Transfers   []game.Transfer `json:"transfers,omitempty"`
	Stage       game.Stage      `json:"stage"`
	Pot         game.Amount     `json:"pot"`
	GameNumber  uint64          `json:"gameNumber"`
	At          time.Time       `json:"at"`
}

type QueryResultData struct {
	Game       string         `json:"game"`
	Owner      game.Address   `json:"owner"`
	Config     ConfigData     `json:"config"`
	NextConfig *ConfigData    `json:"nextConfig,omitempty"`
	Lobby      []game.Address `json:"lobby"`
	Stage      game.Stage     `json:"stage"`
	StageStart time.Time      `json:"stageStart"`
	Deadline   time.Time      `json:"deadline"`
	Pot        game.Amount    `json:"pot"`
	GameNumber uint64         `json:"gameNumber"`
}

// GameSummary holds lightweight metadata for clients.
type GameSummary struct {
	ID                string         `json:"id"`
	Owner             game.Address   `json:"owner"`
	BetSize           game.Amount    `json:"betSize"`
	PlayersCountLimit int            `json:"playersCountLimit"`
	Stage             game.StageKind `json:"stage"`
	LobbySize         int            `json:"lobbySize"`
	Pot               game.Amount    `json:"pot"`
	GameNumber        uint64         `json:"gameNumber"`
}

type GameCreatedData struct {
	Game GameSummary `json:"game"`
}

type GameListData struct {
	Games []GameSummary `json:"games"`
}

// ConfigData is the wire form of game.GameConfig with timeouts in
// milliseconds.
type ConfigData struct {
	BetSize           game.Amount `json:"betSize"`
	PlayersCountLimit int         `json:"playersCountLimit"`
	EntryTimeoutMs    int64       `json:"entryTimeoutMs"`
	MoveTimeoutMs     int64       `json:"moveTimeoutMs"`
	RevealTimeoutMs   int64       `json:"revealTimeoutMs"`
}

func ConfigFromGame(c game.GameConfig) ConfigData {
	return ConfigData{
		BetSize:           c.BetSize,
		PlayersCountLimit: c.PlayersCountLimit,
		EntryTimeoutMs:    c.EntryTimeout.Milliseconds(),
		MoveTimeoutMs:     c.MoveTimeout.Milliseconds(),
		RevealTimeoutMs:   c.RevealTimeout.Milliseconds(),
	}
}

func (c ConfigData) ToGame() game.GameConfig {
	return game.GameConfig{
		BetSize:           c.BetSize,
		PlayersCountLimit: c.PlayersCountLimit,
		EntryTimeout:      time.Duration(c.EntryTimeoutMs) * time.Millisecond,
		MoveTimeout:       time.Duration(c.MoveTimeoutMs) * time.Millisecond,
		RevealTimeout:     time.Duration(c.RevealTimeoutMs) * time.Millisecond,
	}
}

// ErrorCode maps an engine error to its wire code.
func ErrorCode(err error) string {
	return string(game.CategoryOf(err))
}
