package server

import (
	"context"

	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/ledger"
	"github.com/lox/rpsforbots/internal/store"
)

// Bank holds player balances and hands out game treasuries.
type Bank interface {
	Balance(ctx context.Context, addr game.Address) (game.Amount, error)
	Deposit(ctx context.Context, addr game.Address, amount game.Amount) error
	Treasury(account game.Address) game.Treasury
}

// MemoryBank adapts an in-memory ledger.
type MemoryBank struct {
	Ledger *ledger.Ledger
}

func (b MemoryBank) Balance(_ context.Context, addr game.Address) (game.Amount, error) {
	return b.Ledger.Balance(addr), nil
}

func (b MemoryBank) Deposit(_ context.Context, addr game.Address, amount game.Amount) error {
	return b.Ledger.Deposit(addr, amount)
}

func (b MemoryBank) Treasury(account game.Address) game.Treasury {
	return b.Ledger.Account(account)
}

// StoreBank adapts the SQLite store.
type StoreBank struct {
	Store *store.Store
}

func (b StoreBank) Balance(ctx context.Context, addr game.Address) (game.Amount, error) {
	return b.Store.Balance(ctx, addr)
}

func (b StoreBank) Deposit(ctx context.Context, addr game.Address, amount game.Amount) error {
	return b.Store.Deposit(ctx, addr, amount)
}

func (b StoreBank) Treasury(account game.Address) game.Treasury {
	return b.Store.Account(account)
}
