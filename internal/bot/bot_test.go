package bot

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/lox/rpsforbots/internal/client"
	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/ledger"
	"github.com/lox/rpsforbots/internal/randutil"
	"github.com/lox/rpsforbots/internal/server"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func newTestBot(addr game.Address, s Strategy) *Bot {
	return New(addr, s, randutil.New(1), quietLogger())
}

func TestStrategies(t *testing.T) {
	fixed := NewFixedBot(game.Lizard)
	assert.Equal(t, "lizard", fixed.Name())
	assert.Equal(t, game.Lizard, fixed.ChooseMove(7))

	cycle := NewCycleBot(game.Lizard)
	var got []game.Move
	for round := 1; round <= 6; round++ {
		got = append(got, cycle.ChooseMove(round))
	}
	assert.Equal(t, []game.Move{game.Lizard, game.Spock, game.Rock, game.Paper, game.Scissors, game.Lizard}, got)

	r := NewRandBot(randutil.New(3))
	for range 50 {
		assert.True(t, r.ChooseMove(1).Valid())
	}
}

func TestNewStrategy(t *testing.T) {
	rng := randutil.New(1)
	for name, want := range map[string]string{"random": "random", "cycle": "cycle", "spock": "spock", "2": "scissors"} {
		s, err := NewStrategy(name, rng)
		require.NoError(t, err, name)
		assert.Equal(t, want, s.Name())
	}
	_, err := NewStrategy("fire", rng)
	assert.Error(t, err)
}

func TestDecidePreparation(t *testing.T) {
	b := newTestBot("alice", NewFixedBot(game.Rock))
	view := View{Stage: game.Stage{Kind: game.Preparation}, BetSize: 5, PlayersCountLimit: 2}

	d, ok := b.Decide(view)
	require.True(t, ok)
	assert.Equal(t, game.Register{}, d.Action)
	assert.Equal(t, game.Amount(5), d.Value)

	view.Lobby = []game.Address{"bob", "carol"}
	_, ok = b.Decide(view)
	assert.False(t, ok, "lobby is full")

	view.Lobby = []game.Address{"alice"}
	_, ok = b.Decide(view)
	assert.False(t, ok, "waits for an opponent")

	view.Lobby = []game.Address{"alice", "bob"}
	d, ok = b.Decide(view)
	require.True(t, ok)
	require.IsType(t, game.SubmitMove{}, d.Action)
	assert.Equal(t, game.Amount(5), d.Value)
}

func TestDecideCommitThenReveal(t *testing.T) {
	b := newTestBot("alice", NewFixedBot(game.Paper))
	players := game.NewAddressSet("alice", "bob")

	_, ok := b.Decide(View{Stage: game.Stage{Kind: game.Reveal, Description: game.StageDescription{Anticipated: players}}})
	assert.False(t, ok, "nothing to reveal yet")

	d, ok := b.Decide(View{Stage: game.Stage{Kind: game.InProgress, Description: game.StageDescription{Anticipated: players}}})
	require.True(t, ok)
	commitment := d.Action.(game.SubmitMove).Commitment

	d, ok = b.Decide(View{Stage: game.Stage{Kind: game.Reveal, Description: game.StageDescription{Anticipated: players}}})
	require.True(t, ok)
	reveal := d.Action.(game.RevealMove)
	assert.Equal(t, game.Paper, reveal.Move)
	assert.True(t, game.VerifyCommitment(commitment, reveal.Move, reveal.Salt))

	_, ok = b.Decide(View{Stage: game.Stage{Kind: game.Reveal, Description: game.StageDescription{
		Anticipated: game.NewAddressSet("bob"),
		Finished:    game.NewAddressSet("alice"),
	}}})
	assert.False(t, ok, "already revealed")

	// a new game forgets the old secret
	_, ok = b.Decide(View{GameNumber: 1, Stage: game.Stage{Kind: game.Reveal, Description: game.StageDescription{Anticipated: players}}})
	assert.False(t, ok)
}

func TestDecideSitsOutOnceEliminated(t *testing.T) {
	b := newTestBot("carol", NewFixedBot(game.Rock))
	players := game.NewAddressSet("alice", "bob")

	_, ok := b.Decide(View{Stage: game.Stage{Kind: game.InProgress, Description: game.StageDescription{Anticipated: players}}})
	assert.False(t, ok)
	_, ok = b.Decide(View{Stage: game.Stage{Kind: game.Reveal, Description: game.StageDescription{Finished: players}}})
	assert.False(t, ok)
}

func TestRunnersPlayOverWebSocket(t *testing.T) {
	logger := quietLogger()
	l := ledger.New(logger)
	bank := server.MemoryBank{Ledger: l}
	srv := server.NewServer("", bank, 1000, logger)
	gm := server.NewGameManager(srv, bank, nil, quartz.NewReal(), logger)
	srv.SetGameManager(gm)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Stop(context.Background())
		ts.Close()
	})

	cfg := game.DefaultGameConfig()
	cfg.BetSize = 10
	gs, err := gm.CreateGame(context.Background(), "arena", game.InitConfig{Owner: "house", Config: cfg})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	// paper beats rock in the first round of every game
	bots := []*Bot{
		newTestBot("rocky", NewFixedBot(game.Rock)),
		newTestBot("cycler", NewCycleBot(game.Paper)),
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range bots {
		c := client.NewClient(ts.URL, logger)
		require.NoError(t, c.Connect(ctx))
		t.Cleanup(func() { _ = c.Disconnect() })
		_, err := c.Hello(ctx, b.Address())
		require.NoError(t, err)

		r := NewRunner(c, b, gs.ID(), 2, quartz.NewReal(), logger)
		g.Go(func() error { return r.Run(gctx) })
	}
	require.NoError(t, g.Wait())

	assert.GreaterOrEqual(t, gs.Query().GameNumber, uint64(2))
	assert.Equal(t, game.Amount(1020), l.Balance("cycler"))
	assert.Equal(t, game.Amount(980), l.Balance("rocky"))
}
