package game

import (
	"fmt"
	"maps"
	"slices"
)

// collectBet takes the bet from the attached value unless player already
// paid into this game, in which case the whole value goes back as change.
func (tx *txn) collectBet(player Address) error {
	st := tx.state
	if _, paid := st.Bettors[player]; paid {
		return nil
	}
	bet := st.Config.BetSize
	if tx.unspent < bet {
		return fmt.Errorf("%w: got %d, bet is %d", ErrInsufficientBet, tx.unspent, bet)
	}
	pot, err := addAmount(st.Pot, bet)
	if err != nil {
		return err
	}
	tx.unspent -= bet
	st.Pot = pot
	st.Bettors[player] = bet
	return nil
}

// refundBettor returns player's contribution, if any.
func (tx *txn) refundBettor(player Address) error {
	st := tx.state
	amount, ok := st.Bettors[player]
	if !ok {
		return nil
	}
	if err := tx.pay(player, amount, ReasonRefund); err != nil {
		return err
	}
	delete(st.Bettors, player)
	st.Pot -= amount
	return nil
}

// payPrize gives the whole pot to winner.
func (tx *txn) payPrize(winner Address) error {
	st := tx.state
	if err := tx.pay(winner, st.Pot, ReasonPrize); err != nil {
		return err
	}
	tx.logger.Info("Game won",
		"winner", winner,
		"prize", st.Pot,
		"rounds", st.RoundNumber)
	st.Pot = 0
	clear(st.Bettors)
	return nil
}

// stopGame ends a running game. When some lobby member never paid the
// contributions are refunded; otherwise the pot is split equally among the
// players of the current stage.
func (tx *txn) stopGame() (Event, error) {
	st := tx.state
	if err := tx.requireOwner(); err != nil {
		return nil, err
	}
	if !st.Stage.GameInProgress() {
		return nil, ErrGameNotInProgress
	}

	var rewarded []Address
	if tx.everyonePaid() {
		players, _ := st.Stage.CurrentPlayers()
		rewarded = players.Slice()
		for i, share := range SplitEqually(st.Pot, len(rewarded)) {
			if err := tx.pay(rewarded[i], share, ReasonShare); err != nil {
				return nil, err
			}
		}
		st.Pot = 0
		clear(st.Bettors)
	} else {
		rewarded = sortedBettors(st.Bettors)
		for _, p := range rewarded {
			if err := tx.refundBettor(p); err != nil {
				return nil, err
			}
		}
	}

	tx.logger.Info("Game stopped", "rewarded", len(rewarded))
	st.resetToPreparation(tx.now)
	return GameWasStopped{Players: rewarded}, nil
}

func (tx *txn) everyonePaid() bool {
	for _, p := range tx.state.Lobby.Slice() {
		if _, ok := tx.state.Bettors[p]; !ok {
			return false
		}
	}
	return true
}

// SplitEqually divides total into n shares. The first total mod n shares
// carry one extra unit so the shares always sum to total.
func SplitEqually(total Amount, n int) []Amount {
	if n <= 0 {
		return nil
	}
	share := total / Amount(n)
	rem := int(total % Amount(n))
	shares := make([]Amount, n)
	for i := range shares {
		shares[i] = share
		if i < rem {
			shares[i]++
		}
	}
	return shares
}

func sortedBettors(bettors map[Address]Amount) []Address {
	return slices.Sorted(maps.Keys(bettors))
}
