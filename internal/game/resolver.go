package game

import "fmt"

// SurvivingMoves returns the moves whose players advance given the distinct
// moves revealed in a round.
//
// With one, four or five distinct moves everyone advances. With two or three
// a pairwise tally is built: moves that never lose survive; failing that,
// every move except those that never win survives; failing that (a cycle),
// all moves survive.
func SurvivingMoves(present MoveSet) MoveSet {
	switch present.Len() {
	case 2, 3:
	default:
		return present
	}

	var wins, losses [MoveCount]int
	moves := present.Moves()
	for i, a := range moves {
		for _, b := range moves[i+1:] {
			if a.Wins(b) {
				wins[a]++
				losses[b]++
			} else {
				losses[a]++
				wins[b]++
			}
		}
	}

	var onlyWins, onlyLoses MoveSet
	for _, m := range moves {
		switch {
		case losses[m] == 0:
			onlyWins = onlyWins.With(m)
		case wins[m] == 0:
			onlyLoses = onlyLoses.With(m)
		}
	}

	switch {
	case !onlyWins.IsEmpty():
		return onlyWins
	case !onlyLoses.IsEmpty():
		return present.Minus(onlyLoses)
	default:
		return present
	}
}

// SurvivingPlayers applies SurvivingMoves to a set of revealed moves.
func SurvivingPlayers(revealed map[Address]Move) AddressSet {
	var present MoveSet
	for _, m := range revealed {
		present = present.With(m)
	}
	winners := SurvivingMoves(present)

	var survivors AddressSet
	for player, m := range revealed {
		if winners.Contains(m) {
			survivors.Add(player)
		}
	}
	return survivors
}

// resolveRound ends the reveal stage. When forced is false every active
// player must have revealed.
func (tx *txn) resolveRound(forced bool) (RevealResult, error) {
	st := tx.state
	if st.Stage.Kind != Reveal {
		return RevealResult{}, fmt.Errorf("%w: resolving outside reveal stage (%s)", ErrInternal, st.Stage.Kind)
	}
	if !forced && !st.Stage.Description.Anticipated.IsEmpty() {
		return RevealResult{}, fmt.Errorf("%w: resolving with %d reveals outstanding", ErrInternal, st.Stage.Description.Anticipated.Len())
	}

	survivors := SurvivingPlayers(st.Revealed)
	tx.logger.Debug("Round resolved",
		"round", st.RoundNumber,
		"revealed", len(st.Revealed),
		"survivors", survivors.Len())

	switch survivors.Len() {
	case 0:
		return RevealResult{}, fmt.Errorf("%w: round produced no survivors", ErrInternal)
	case 1:
		winner, _ := survivors.First()
		if err := tx.payPrize(winner); err != nil {
			return RevealResult{}, err
		}
		tx.state.resetToPreparation(tx.now)
		return RevealResult{Kind: GameOver, Winner: winner}, nil
	default:
		st.startRound(survivors, tx.now)
		return RevealResult{Kind: NextRoundStarted, Players: survivors.Slice()}, nil
	}
}
