package game

// applyTimeout performs at most one stage transition if the current stage's
// deadline has strictly passed.
func (tx *txn) applyTimeout() error {
	st := tx.state
	deadline := st.StageStart.Add(st.Config.timeoutFor(st.Stage.Kind))
	if !tx.now.After(deadline) {
		return nil
	}

	expired := st.Stage.Kind
	var (
		ev  StageTimedOut
		err error
	)
	switch expired {
	case Preparation:
		ev = tx.entryTimeout()
	case InProgress:
		ev, err = tx.moveTimeout()
	case Reveal:
		ev, err = tx.revealTimeout()
	}
	if err != nil {
		return err
	}
	ev.Expired = expired
	ev.Next = tx.state.Stage.Kind

	tx.logger.Info("Stage timed out",
		"expired", ev.Expired,
		"next", ev.Next,
		"late", tx.now.Sub(deadline))
	tx.transitions = append(tx.transitions, ev)
	return nil
}

// entryTimeout starts the game with the whole lobby, or restarts the entry
// clock when there are too few players.
func (tx *txn) entryTimeout() StageTimedOut {
	st := tx.state
	if st.Lobby.Len() < MinPlayersCount {
		st.restampClock(tx.now)
		return StageTimedOut{}
	}
	st.startRound(st.Lobby, tx.now)
	return StageTimedOut{Players: st.Lobby.Slice()}
}

// moveTimeout eliminates everyone who did not commit.
func (tx *txn) moveTimeout() (StageTimedOut, error) {
	st := tx.state
	committed := st.Stage.Description.Finished
	switch committed.Len() {
	case 0:
		st.restampClock(tx.now)
		return StageTimedOut{}, nil
	case 1:
		winner, _ := committed.First()
		if err := tx.payPrize(winner); err != nil {
			return StageTimedOut{}, err
		}
		st.resetToPreparation(tx.now)
		return StageTimedOut{Winner: winner}, nil
	default:
		st.startReveal(committed, tx.now)
		return StageTimedOut{Players: committed.Slice()}, nil
	}
}

// revealTimeout eliminates everyone who did not reveal and resolves the
// round among those who did.
func (tx *txn) revealTimeout() (StageTimedOut, error) {
	st := tx.state
	if st.Stage.Description.Finished.IsEmpty() {
		st.restampClock(tx.now)
		return StageTimedOut{}, nil
	}
	result, err := tx.resolveRound(true)
	if err != nil {
		return StageTimedOut{}, err
	}
	return StageTimedOut{Players: result.Players, Winner: result.Winner}, nil
}
