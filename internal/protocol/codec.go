package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/lox/rpsforbots/internal/game"
)

// changeNextConfigParams is the wire form of game.ChangeNextConfig.
type changeNextConfigParams struct {
	Config ConfigData `json:"config"`
}

// EncodeAction builds the action payload for a.
func EncodeAction(gameID string, value game.Amount, a game.Action) (ActionData, error) {
	var params any = a
	if c, ok := a.(game.ChangeNextConfig); ok {
		params = changeNextConfigParams{Config: ConfigFromGame(c.Config)}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return ActionData{}, fmt.Errorf("failed to encode %s: %w", a.Kind(), err)
	}
	return ActionData{Game: gameID, Kind: a.Kind(), Value: value, Params: raw}, nil
}

// DecodeAction turns an action payload back into an engine action.
func DecodeAction(data ActionData) (game.Action, error) {
	params := data.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}

	var (
		action game.Action
		err    error
	)
	switch data.Kind {
	case game.ActionRegister:
		action = game.Register{}
	case game.ActionAddPlayer:
		action, err = decodeAs[game.AddPlayer](params)
	case game.ActionRemovePlayer:
		action, err = decodeAs[game.RemovePlayer](params)
	case game.ActionSetLobby:
		action, err = decodeAs[game.SetLobby](params)
	case game.ActionSetBetSize:
		action, err = decodeAs[game.SetBetSize](params)
	case game.ActionSubmitMove:
		action, err = decodeAs[game.SubmitMove](params)
	case game.ActionReveal:
		action, err = decodeReveal(params)
	case game.ActionChangeNextConfig:
		var p changeNextConfigParams
		p, err = decodeAs[changeNextConfigParams](params)
		action = game.ChangeNextConfig{Config: p.Config.ToGame()}
	case game.ActionStopGame:
		action = game.StopGame{}
	default:
		return nil, fmt.Errorf("%w: %q", game.ErrUnknownAction, data.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: bad %s params: %v", game.ErrUnknownAction, data.Kind, err)
	}
	return action, nil
}

// revealParams also carries the single-string form "<digit><salt>".
type revealParams struct {
	game.RevealMove
	Plaintext string `json:"plaintext,omitempty"`
}

func decodeReveal(raw json.RawMessage) (game.Action, error) {
	p, err := decodeAs[revealParams](raw)
	if err != nil {
		return nil, err
	}
	if p.Plaintext == "" {
		return p.RevealMove, nil
	}
	m, salt, err := game.ParseReveal(p.Plaintext)
	if err != nil {
		return nil, err
	}
	return game.RevealMove{Move: m, Salt: salt}, nil
}

func decodeAs[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

// EncodeEvent wraps an engine event with its type.
func EncodeEvent(ev game.Event) (EventEnvelope, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{Type: ev.EventType(), Data: raw}, nil
}

// DecodeEvent restores the concrete engine event from its envelope.
func DecodeEvent(env EventEnvelope) (game.Event, error) {
	switch env.Type {
	case game.EventTypePlayerRegistered:
		return decodeAs[game.PlayerRegistered](env.Data)
	case game.EventTypePlayerWasAdded:
		return decodeAs[game.PlayerWasAdded](env.Data)
	case game.EventTypePlayerWasRemoved:
		return decodeAs[game.PlayerWasRemoved](env.Data)
	case game.EventTypeLobbyPlayersListUpdated:
		return decodeAs[game.LobbyPlayersListUpdated](env.Data)
	case game.EventTypeBetSizeWasChanged:
		return decodeAs[game.BetSizeWasChanged](env.Data)
	case game.EventTypeNextConfigChanged:
		return decodeAs[game.NextConfigChanged](env.Data)
	case game.EventTypeSuccessfulMove:
		return decodeAs[game.SuccessfulMove](env.Data)
	case game.EventTypeSuccessfulReveal:
		return decodeAs[game.SuccessfulReveal](env.Data)
	case game.EventTypeGameWasStopped:
		return decodeAs[game.GameWasStopped](env.Data)
	case game.EventTypeStageTimedOut:
		return decodeAs[game.StageTimedOut](env.Data)
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

// NewEventData converts an engine outcome into the broadcast payload.
func NewEventData(gameID string, caller game.Address, out *game.Outcome) (EventData, error) {
	event, err := EncodeEvent(out.Event)
	if err != nil {
		return EventData{}, err
	}
	data := EventData{
		Game:       gameID,
		Caller:     caller,
		Event:      event,
		Transfers:  out.Transfers,
		Stage:      out.Stage,
		Pot:        out.Pot,
		GameNumber: out.GameNumber,
		At:         out.At,
	}
	for _, tr := range out.Transitions {
		env, err := EncodeEvent(tr)
		if err != nil {
			return EventData{}, err
		}
		data.Transitions = append(data.Transitions, env)
	}
	return data, nil
}
