package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/lox/rpsforbots/internal/game"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

func toInt64(a game.Amount) (int64, error) {
	if a > math.MaxInt64 {
		return 0, fmt.Errorf("amount %d does not fit in the database", a)
	}
	return int64(a), nil
}

// Deposit credits addr with amount.
func (s *Store) Deposit(ctx context.Context, addr game.Address, amount game.Amount) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := credit(ctx, tx, addr, amount); err != nil {
		return err
	}
	return tx.Commit()
}

// Balance returns the balance of addr.
func (s *Store) Balance(ctx context.Context, addr game.Address) (game.Amount, error) {
	return balance(ctx, s.db, addr)
}

// Account returns the treasury view of a game account.
func (s *Store) Account(addr game.Address) *Account {
	return &Account{store: s, addr: addr}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func balance(ctx context.Context, q queryer, addr game.Address) (game.Amount, error) {
	var amount int64
	err := q.QueryRowContext(ctx, `SELECT amount FROM balances WHERE address = ?`, string(addr)).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance of %s: %w", addr, err)
	}
	return game.Amount(amount), nil
}

func credit(ctx context.Context, tx *sql.Tx, addr game.Address, amount game.Amount) error {
	current, err := balance(ctx, tx, addr)
	if err != nil {
		return err
	}
	next, err := toInt64(current + amount)
	if err != nil || current+amount < current {
		return fmt.Errorf("crediting %d to %s overflows", amount, addr)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO balances (address, amount) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET amount = excluded.amount`,
		string(addr), next)
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", addr, err)
	}
	return nil
}

func debit(ctx context.Context, tx *sql.Tx, addr game.Address, amount game.Amount) error {
	current, err := balance(ctx, tx, addr)
	if err != nil {
		return err
	}
	if current < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, addr, current, amount)
	}
	_, err = tx.ExecContext(ctx, `UPDATE balances SET amount = ? WHERE address = ?`, int64(current-amount), string(addr))
	if err != nil {
		return fmt.Errorf("failed to debit %s: %w", addr, err)
	}
	return nil
}

// Account is a game's view of the stored balances. It implements
// game.Treasury with one SQL transaction per settlement.
type Account struct {
	store *Store
	addr  game.Address
}

var _ game.Treasury = (*Account)(nil)

func (a *Account) Available(ctx context.Context) (game.Amount, error) {
	return a.store.Balance(ctx, a.addr)
}

func (a *Account) Settle(ctx context.Context, s game.Settlement) error {
	tx, err := a.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.Received > 0 {
		if err := debit(ctx, tx, s.From, s.Received); err != nil {
			return err
		}
		if err := credit(ctx, tx, a.addr, s.Received); err != nil {
			return err
		}
	}
	for _, t := range s.Payouts {
		if err := debit(ctx, tx, a.addr, t.Amount); err != nil {
			return err
		}
		if err := credit(ctx, tx, t.To, t.Amount); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}

	a.store.logger.Debug("Settled", "account", a.addr, "from", s.From, "received", s.Received, "payouts", len(s.Payouts))
	return nil
}
