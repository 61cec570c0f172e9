package game

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
)

const testOwner Address = "owner"

// fakeTreasury tracks the game account balance and everything paid out.
type fakeTreasury struct {
	balance     Amount
	paid        map[Address]Amount
	received    Amount
	settlements []Settlement
	failSettle  error
}

func newFakeTreasury() *fakeTreasury {
	return &fakeTreasury{paid: make(map[Address]Amount)}
}

func (f *fakeTreasury) Available(context.Context) (Amount, error) {
	return f.balance, nil
}

func (f *fakeTreasury) Settle(_ context.Context, s Settlement) error {
	if f.failSettle != nil {
		return f.failSettle
	}
	total, err := s.Total()
	if err != nil {
		return err
	}
	if f.balance+s.Received < total {
		return errors.New("insufficient balance")
	}
	f.balance = f.balance + s.Received - total
	f.received += s.Received
	for _, p := range s.Payouts {
		f.paid[p.To] += p.Amount
	}
	f.settlements = append(f.settlements, s)
	return nil
}

func (f *fakeTreasury) totalPaid() Amount {
	var total Amount
	for _, a := range f.paid {
		total += a
	}
	return total
}

// TestEngineOption configures test engine creation
type TestEngineOption func(*testEngineBuilder)

type testEngineBuilder struct {
	config GameConfig
	lobby  []Address
}

func withConfig(cfg GameConfig) TestEngineOption {
	return func(b *testEngineBuilder) { b.config = cfg }
}

func withBet(bet Amount) TestEngineOption {
	return func(b *testEngineBuilder) { b.config.BetSize = bet }
}

func withPlayersLimit(n int) TestEngineOption {
	return func(b *testEngineBuilder) { b.config.PlayersCountLimit = n }
}

func withLobby(players ...Address) TestEngineOption {
	return func(b *testEngineBuilder) { b.lobby = players }
}

// harness drives an engine with a mock clock and a fake treasury.
type harness struct {
	t        *testing.T
	ctx      context.Context
	engine   *Engine
	clock    *quartz.Mock
	treasury *fakeTreasury
	moves    map[Address]Move
}

func newHarness(t *testing.T, opts ...TestEngineOption) *harness {
	t.Helper()
	b := &testEngineBuilder{config: DefaultGameConfig()}
	for _, opt := range opts {
		opt(b)
	}

	clock := quartz.NewMock(t)
	treasury := newFakeTreasury()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	engine, err := New(InitConfig{Owner: testOwner, Config: b.config, Lobby: b.lobby}, clock, treasury, logger)
	require.NoError(t, err)

	return &harness{
		t:        t,
		ctx:      context.Background(),
		engine:   engine,
		clock:    clock,
		treasury: treasury,
		moves:    make(map[Address]Move),
	}
}

func (h *harness) do(caller Address, value Amount, action Action) *Outcome {
	h.t.Helper()
	out, err := h.engine.Handle(h.ctx, Message{Caller: caller, Value: value, Action: action})
	require.NoError(h.t, err)
	require.NotNil(h.t, out)
	return out
}

func (h *harness) fail(caller Address, value Amount, action Action, want error) {
	h.t.Helper()
	before := h.engine.Snapshot().State
	balance := h.treasury.balance
	out, err := h.engine.Handle(h.ctx, Message{Caller: caller, Value: value, Action: action})
	require.ErrorIs(h.t, err, want)
	require.Nil(h.t, out)
	require.Equal(h.t, before, h.engine.Snapshot().State, "state changed by rejected action")
	require.Equal(h.t, balance, h.treasury.balance, "value moved by rejected action")
}

func (h *harness) register(players ...Address) {
	h.t.Helper()
	for _, p := range players {
		h.do(p, h.engine.Config().BetSize, Register{})
	}
}

func salt(p Address) string {
	return "salt-" + string(p)
}

func (h *harness) commit(p Address, m Move) *Outcome {
	h.t.Helper()
	h.moves[p] = m
	return h.do(p, 0, SubmitMove{Commitment: Commit(m, salt(p))})
}

func (h *harness) reveal(p Address) *Outcome {
	h.t.Helper()
	m, ok := h.moves[p]
	require.True(h.t, ok, "no move committed for %s", p)
	return h.do(p, 0, RevealMove{Move: m, Salt: salt(p)})
}

func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	defer cancel()
	h.clock.Advance(d).MustWait(ctx)
}

// requireConserved checks that every unit received is either held or paid.
func (h *harness) requireConserved() {
	h.t.Helper()
	require.Equal(h.t, h.treasury.received, h.treasury.balance+h.treasury.totalPaid())
	require.GreaterOrEqual(h.t, h.treasury.balance, h.engine.Pot())
}
