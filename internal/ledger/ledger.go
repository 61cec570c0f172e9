// Package ledger keeps player and game balances in memory and settles game
// payouts atomically.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/rpsforbots/internal/game"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOverflow          = errors.New("balance overflow")
)

// Ledger tracks the balance of every address. Game accounts are ordinary
// addresses that receive bets and pay out prizes.
type Ledger struct {
	mu       sync.RWMutex
	balances map[game.Address]game.Amount
	logger   *log.Logger
}

// New creates an empty ledger.
func New(logger *log.Logger) *Ledger {
	return &Ledger{
		balances: make(map[game.Address]game.Amount),
		logger:   logger.WithPrefix("ledger"),
	}
}

// Deposit credits addr with amount, as a faucet would.
func (l *Ledger) Deposit(addr game.Address, amount game.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[addr]
	if balance+amount < balance {
		return fmt.Errorf("%w: depositing %d to %s", ErrOverflow, amount, addr)
	}
	l.balances[addr] = balance + amount
	l.logger.Debug("Deposit", "address", addr, "amount", amount, "balance", l.balances[addr])
	return nil
}

// Balance returns the balance of addr.
func (l *Ledger) Balance(addr game.Address) game.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[addr]
}

// Balances returns a copy of every non-zero balance.
func (l *Ledger) Balances() map[game.Address]game.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.balances)
}

// Total returns the sum of all balances. Settlements never change it.
func (l *Ledger) Total() game.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total game.Amount
	for _, balance := range l.balances {
		total += balance
	}
	return total
}

// Account returns the treasury view of a game account.
func (l *Ledger) Account(addr game.Address) *Account {
	return &Account{ledger: l, addr: addr}
}

// apply moves value from s.From to account and from account to every payee,
// or changes nothing.
func (l *Ledger) apply(account game.Address, s game.Settlement) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make(map[game.Address]game.Amount)
	get := func(a game.Address) game.Amount {
		if v, ok := next[a]; ok {
			return v
		}
		return l.balances[a]
	}

	if s.Received > 0 {
		from := get(s.From)
		if from < s.Received {
			return fmt.Errorf("%w: %s holds %d, attached %d", ErrInsufficientFunds, s.From, from, s.Received)
		}
		next[s.From] = from - s.Received
		next[account] = get(account) + s.Received
	}

	for _, t := range s.Payouts {
		held := get(account)
		if held < t.Amount {
			return fmt.Errorf("%w: game account %s holds %d, paying %d", ErrInsufficientFunds, account, held, t.Amount)
		}
		next[account] = held - t.Amount
		to := get(t.To)
		if to+t.Amount < to {
			return fmt.Errorf("%w: paying %d to %s", ErrOverflow, t.Amount, t.To)
		}
		next[t.To] = to + t.Amount
	}

	for addr, balance := range next {
		if balance == 0 {
			delete(l.balances, addr)
			continue
		}
		l.balances[addr] = balance
	}
	return nil
}

// Account is a game's view of the ledger. It implements game.Treasury.
type Account struct {
	ledger *Ledger
	addr   game.Address
}

var _ game.Treasury = (*Account)(nil)

// Address returns the game account address.
func (a *Account) Address() game.Address {
	return a.addr
}

func (a *Account) Available(context.Context) (game.Amount, error) {
	return a.ledger.Balance(a.addr), nil
}

func (a *Account) Settle(ctx context.Context, s game.Settlement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.ledger.apply(a.addr, s); err != nil {
		return err
	}
	a.ledger.logger.Debug("Settled",
		"account", a.addr,
		"from", s.From,
		"received", s.Received,
		"payouts", len(s.Payouts))
	return nil
}
