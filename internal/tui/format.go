package tui

import (
	"fmt"
	"strings"

	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/protocol"
)

// FormatEvent renders a broadcast as log lines. Timeout transitions come
// first since they happened before the action.
func FormatEvent(ev protocol.EventData, self game.Address) []string {
	var lines []string
	for _, env := range ev.Transitions {
		lines = append(lines, formatEnvelope(env, ev.Caller, self))
	}
	lines = append(lines, formatEnvelope(ev.Event, ev.Caller, self))

	for _, tr := range ev.Transfers {
		if tr.To != self {
			continue
		}
		lines = append(lines, SuccessStyle.Render(fmt.Sprintf("  + %d (%s)", tr.Amount, tr.Reason)))
	}
	return lines
}

func formatEnvelope(env protocol.EventEnvelope, caller, self game.Address) string {
	ev, err := protocol.DecodeEvent(env)
	if err != nil {
		return ErrorStyle.Render(fmt.Sprintf("undecodable %s event: %v", env.Type, err))
	}
	return formatGameEvent(ev, caller, self)
}

func name(a, self game.Address) string {
	if a == self {
		return "you"
	}
	return string(a)
}

func names(addrs []game.Address, self game.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = name(a, self)
	}
	return strings.Join(parts, ", ")
}

func formatGameEvent(ev game.Event, caller, self game.Address) string {
	switch e := ev.(type) {
	case game.PlayerRegistered:
		return fmt.Sprintf("%s joined the lobby", name(e.Player, self))
	case game.PlayerWasAdded:
		return fmt.Sprintf("%s added %s", name(caller, self), name(e.Player, self))
	case game.PlayerWasRemoved:
		return fmt.Sprintf("%s removed %s", name(caller, self), name(e.Player, self))
	case game.LobbyPlayersListUpdated:
		return fmt.Sprintf("lobby is now [%s]", names(e.Players, self))
	case game.BetSizeWasChanged:
		return WarningStyle.Render(fmt.Sprintf("bet size changed to %d", e.BetSize))
	case game.NextConfigChanged:
		return InfoStyle.Render(fmt.Sprintf("next game: bet %d, up to %d players", e.Config.BetSize, e.Config.PlayersCountLimit))
	case game.SuccessfulMove:
		return fmt.Sprintf("%s committed a move", name(e.Player, self))
	case game.SuccessfulReveal:
		switch e.Result.Kind {
		case game.NextRoundStarted:
			return ActionsStyle.Render(fmt.Sprintf("%s revealed; next round with %s", name(e.Player, self), names(e.Result.Players, self)))
		case game.GameOver:
			return SuccessStyle.Render(fmt.Sprintf("%s revealed; %s won the game", name(e.Player, self), name(e.Result.Winner, self)))
		default:
			return fmt.Sprintf("%s revealed", name(e.Player, self))
		}
	case game.GameWasStopped:
		return WarningStyle.Render(fmt.Sprintf("game stopped; paid out %s", names(e.Players, self)))
	case game.StageTimedOut:
		if e.Winner != "" {
			return WarningStyle.Render(fmt.Sprintf("%s timed out; %s won", e.Expired, name(e.Winner, self)))
		}
		if e.Next == e.Expired {
			return InfoStyle.Render(fmt.Sprintf("%s timed out and restarted", e.Expired))
		}
		return WarningStyle.Render(fmt.Sprintf("%s timed out; %s with %s", e.Expired, e.Next, names(e.Players, self)))
	}
	return fmt.Sprintf("%s", ev.EventType())
}
