package game

import "fmt"

func (tx *txn) requirePreparation() error {
	if tx.state.Stage.GameInProgress() {
		return ErrGameInProgress
	}
	return nil
}

func (tx *txn) register() (Event, error) {
	st := tx.state
	caller := tx.msg.Caller
	if err := tx.requirePreparation(); err != nil {
		return nil, err
	}
	if st.Lobby.Contains(caller) {
		return nil, ErrAlreadyInLobby
	}
	if st.Lobby.Len() >= st.Config.PlayersCountLimit {
		return nil, ErrLobbyFull
	}
	if err := tx.collectBet(caller); err != nil {
		return nil, err
	}
	st.Lobby.Add(caller)
	tx.logger.Debug("Player registered", "player", caller, "lobby", st.Lobby.Len())
	return PlayerRegistered{Player: caller}, nil
}

func (tx *txn) addPlayer(player Address) (Event, error) {
	st := tx.state
	if err := tx.requireOwner(); err != nil {
		return nil, err
	}
	if err := tx.requirePreparation(); err != nil {
		return nil, err
	}
	if st.Lobby.Contains(player) {
		return nil, ErrAlreadyInLobby
	}
	if st.Lobby.Len() >= st.Config.PlayersCountLimit {
		return nil, ErrLobbyFull
	}
	st.Lobby.Add(player)
	return PlayerWasAdded{Player: player}, nil
}

func (tx *txn) removePlayer(player Address) (Event, error) {
	st := tx.state
	if err := tx.requireOwner(); err != nil {
		return nil, err
	}
	if err := tx.requirePreparation(); err != nil {
		return nil, err
	}
	if !st.Lobby.Remove(player) {
		return nil, ErrNotInLobby
	}
	if err := tx.refundBettor(player); err != nil {
		return nil, err
	}
	return PlayerWasRemoved{Player: player}, nil
}

func (tx *txn) setLobby(players []Address) (Event, error) {
	st := tx.state
	if err := tx.requireOwner(); err != nil {
		return nil, err
	}
	if err := tx.requirePreparation(); err != nil {
		return nil, err
	}
	lobby := NewAddressSet(players...)
	if lobby.Len() > st.Config.PlayersCountLimit {
		return nil, fmt.Errorf("%w: %d players for a limit of %d", ErrLobbyFull, lobby.Len(), st.Config.PlayersCountLimit)
	}
	for _, p := range sortedBettors(st.Bettors) {
		if !lobby.Contains(p) {
			if err := tx.refundBettor(p); err != nil {
				return nil, err
			}
		}
	}
	st.Lobby = lobby
	return LobbyPlayersListUpdated{Players: lobby.Slice()}, nil
}

func (tx *txn) setBetSize(bet Amount) (Event, error) {
	if err := tx.requireOwner(); err != nil {
		return nil, err
	}
	if err := tx.requirePreparation(); err != nil {
		return nil, err
	}
	tx.state.Config.BetSize = bet
	return BetSizeWasChanged{BetSize: bet}, nil
}

// changeNextConfig stages cfg. It takes effect when the current game ends,
// never mid-game and never immediately.
func (tx *txn) changeNextConfig(cfg GameConfig) (Event, error) {
	if err := tx.requireOwner(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tx.state.NextConfig = &cfg
	return NextConfigChanged{Config: cfg}, nil
}
