package game

import "fmt"

// submitMove records a commitment. In Preparation it also starts the game
// with the whole lobby, provided there are enough players.
func (tx *txn) submitMove(commitment string) (Event, error) {
	st := tx.state
	caller := tx.msg.Caller
	if err := ValidateCommitment(commitment); err != nil {
		return nil, err
	}

	switch st.Stage.Kind {
	case Preparation:
		if !st.Lobby.Contains(caller) {
			return nil, ErrNotEligibleToMove
		}
		if st.Lobby.Len() < MinPlayersCount {
			return nil, ErrNotEnoughPlayers
		}
	case InProgress:
		if !st.Stage.Description.Anticipated.Contains(caller) {
			return nil, ErrNotEligibleToMove
		}
	case Reveal:
		return nil, ErrRevealStage
	}

	if err := tx.collectBet(caller); err != nil {
		return nil, err
	}
	if st.Stage.Kind == Preparation {
		st.startRound(st.Lobby, tx.now)
		tx.logger.Info("Game started", "players", st.Lobby.Len(), "pot", st.Pot)
	}

	st.Commitments[caller] = commitment
	st.Stage.Description.finish(caller)
	if st.Stage.Description.Anticipated.IsEmpty() {
		st.startReveal(st.Stage.Description.Finished, tx.now)
	}
	return SuccessfulMove{Player: caller}, nil
}

// reveal checks the plaintext against the stored commitment and resolves
// the round once everyone has revealed.
func (tx *txn) reveal(move Move, salt string) (Event, error) {
	st := tx.state
	caller := tx.msg.Caller
	if st.Stage.Kind != Reveal {
		return nil, ErrNotRevealStage
	}
	d := &st.Stage.Description
	if !d.Anticipated.Contains(caller) {
		if d.Finished.Contains(caller) {
			return nil, ErrAlreadyRevealed
		}
		return nil, ErrNotInRevealStage
	}
	if !move.Valid() {
		return nil, ErrUnknownMove
	}
	stored, ok := st.Commitments[caller]
	if !ok {
		return nil, fmt.Errorf("%w: no commitment stored for %s", ErrInternal, caller)
	}
	if !VerifyCommitment(stored, move, salt) {
		return nil, ErrCheating
	}

	st.Revealed[caller] = move
	d.finish(caller)

	result := RevealResult{Kind: Continue}
	if d.Anticipated.IsEmpty() {
		var err error
		if result, err = tx.resolveRound(false); err != nil {
			return nil, err
		}
	}
	return SuccessfulReveal{Player: caller, Result: result}, nil
}
