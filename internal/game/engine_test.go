package game

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultGameConfig()
	cfg.MoveTimeout = time.Second
	_, err := New(InitConfig{Owner: testOwner, Config: cfg}, nil, newFakeTreasury(), nil)
	assert.ErrorIs(t, err, ErrTimeoutTooLow)

	cfg = DefaultGameConfig()
	cfg.PlayersCountLimit = 1
	_, err = New(InitConfig{Owner: testOwner, Config: cfg}, nil, newFakeTreasury(), nil)
	assert.ErrorIs(t, err, ErrPlayersLimitTooLow)
	assert.Equal(t, CategoryConfig, CategoryOf(err))
}

func TestRegister(t *testing.T) {
	t.Run("pays bet and returns change", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		out := h.do("alice", 150, Register{})

		assert.Equal(t, PlayerRegistered{Player: "alice"}, out.Event)
		assert.Equal(t, []Transfer{{To: "alice", Amount: 50, Reason: ReasonChange}}, out.Transfers)
		assert.Equal(t, Amount(100), h.engine.Pot())
		assert.Equal(t, []Address{"alice"}, h.engine.Lobby())
		h.requireConserved()
	})

	t.Run("rejects insufficient value", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.fail("alice", 99, Register{}, ErrInsufficientBet)
		assert.Empty(t, h.engine.Lobby())
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.register("alice")
		h.fail("alice", 100, Register{}, ErrAlreadyInLobby)
	})

	t.Run("respects capacity", func(t *testing.T) {
		h := newHarness(t, withBet(100), withPlayersLimit(2))
		h.register("alice", "bob")
		h.fail("carol", 100, Register{}, ErrLobbyFull)
	})

	t.Run("rejected while a game runs", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.register("alice", "bob")
		h.commit("alice", Rock)
		h.fail("carol", 100, Register{}, ErrGameInProgress)
		assert.Equal(t, CategoryAdmission, CategoryOf(ErrGameInProgress))
	})
}

func TestOwnerActions(t *testing.T) {
	t.Run("non owner is rejected", func(t *testing.T) {
		h := newHarness(t)
		actions := []Action{
			AddPlayer{Player: "bob"},
			RemovePlayer{Player: "bob"},
			SetLobby{Players: []Address{"bob"}},
			SetBetSize{BetSize: 5},
			ChangeNextConfig{Config: DefaultGameConfig()},
			StopGame{},
		}
		for _, a := range actions {
			h.fail("mallory", 0, a, ErrNotOwner)
		}
	})

	t.Run("add and remove players", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.do(testOwner, 0, AddPlayer{Player: "bob"})
		h.fail(testOwner, 0, AddPlayer{Player: "bob"}, ErrAlreadyInLobby)
		h.register("alice")
		assert.Equal(t, []Address{"alice", "bob"}, h.engine.Lobby())

		out := h.do(testOwner, 0, RemovePlayer{Player: "alice"})
		assert.Equal(t, PlayerWasRemoved{Player: "alice"}, out.Event)
		assert.Equal(t, []Transfer{{To: "alice", Amount: 100, Reason: ReasonRefund}}, out.Transfers)
		assert.Equal(t, Amount(0), h.engine.Pot())

		h.fail(testOwner, 0, RemovePlayer{Player: "alice"}, ErrNotInLobby)
		h.requireConserved()
	})

	t.Run("set lobby refunds dropped bettors", func(t *testing.T) {
		h := newHarness(t, withBet(100), withPlayersLimit(3))
		h.register("alice", "bob")

		out := h.do(testOwner, 0, SetLobby{Players: []Address{"carol", "bob", "carol"}})
		assert.Equal(t, LobbyPlayersListUpdated{Players: []Address{"bob", "carol"}}, out.Event)
		assert.Equal(t, []Transfer{{To: "alice", Amount: 100, Reason: ReasonRefund}}, out.Transfers)
		assert.Equal(t, Amount(100), h.engine.Pot())

		h.fail(testOwner, 0, SetLobby{Players: []Address{"a", "b", "c", "d"}}, ErrLobbyFull)
		h.requireConserved()
	})

	t.Run("lobby is frozen during a game", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.register("alice", "bob", "carol")
		h.commit("alice", Rock)
		h.commit("bob", Rock)
		h.commit("carol", Scissors)
		h.reveal("alice")
		h.reveal("bob")
		out := h.reveal("carol")
		require.Equal(t, NextRoundStarted, out.Event.(SuccessfulReveal).Result.Kind)

		// carol is eliminated but still in the lobby
		h.fail(testOwner, 0, RemovePlayer{Player: "carol"}, ErrGameInProgress)
		h.fail(testOwner, 0, AddPlayer{Player: "dave"}, ErrGameInProgress)
		h.fail(testOwner, 0, SetLobby{Players: []Address{"alice"}}, ErrGameInProgress)
		h.fail(testOwner, 0, SetBetSize{BetSize: 1}, ErrGameInProgress)
	})

	t.Run("bet size applies to new registrations", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		out := h.do(testOwner, 0, SetBetSize{BetSize: 250})
		assert.Equal(t, BetSizeWasChanged{BetSize: 250}, out.Event)
		h.fail("alice", 100, Register{}, ErrInsufficientBet)
		h.do("alice", 250, Register{})
		assert.Equal(t, Amount(250), h.engine.Pot())
	})

	t.Run("owner value is returned", func(t *testing.T) {
		h := newHarness(t)
		out := h.do(testOwner, 42, AddPlayer{Player: "bob"})
		assert.Equal(t, []Transfer{{To: testOwner, Amount: 42, Reason: ReasonChange}}, out.Transfers)
		h.requireConserved()
	})
}

func TestTwoPlayerGame(t *testing.T) {
	h := newHarness(t, withBet(100))
	assert.Equal(t, uint64(0), h.engine.GameNumber())
	h.register("alice", "bob")

	out := h.commit("alice", Rock)
	assert.Equal(t, InProgress, out.Stage.Kind)
	assert.Equal(t, []Address{"bob"}, out.Stage.Description.Anticipated.Slice())
	assert.Equal(t, []Address{"alice"}, out.Stage.Description.Finished.Slice())

	h.fail("alice", 0, SubmitMove{Commitment: Commit(Paper, "x")}, ErrNotEligibleToMove)
	h.fail("alice", 0, RevealMove{Move: Rock, Salt: salt("alice")}, ErrNotRevealStage)

	out = h.commit("bob", Scissors)
	assert.Equal(t, Reveal, out.Stage.Kind)
	assert.Equal(t, []Address{"alice", "bob"}, out.Stage.Description.Anticipated.Slice())
	h.fail("carol", 0, SubmitMove{Commitment: Commit(Paper, "x")}, ErrRevealStage)

	out = h.reveal("bob")
	assert.Equal(t, SuccessfulReveal{Player: "bob", Result: RevealResult{Kind: Continue}}, out.Event)
	h.fail("bob", 0, RevealMove{Move: Scissors, Salt: salt("bob")}, ErrAlreadyRevealed)

	out = h.reveal("alice")
	assert.Equal(t, SuccessfulReveal{Player: "alice", Result: RevealResult{Kind: GameOver, Winner: "alice"}}, out.Event)
	assert.Equal(t, []Transfer{{To: "alice", Amount: 200, Reason: ReasonPrize}}, out.Transfers)

	assert.Equal(t, Preparation, h.engine.Stage().Kind)
	assert.Empty(t, h.engine.Lobby())
	assert.Equal(t, Amount(0), h.engine.Pot())
	assert.Equal(t, uint64(1), h.engine.GameNumber())
	assert.Equal(t, Amount(200), h.treasury.paid["alice"])
	h.requireConserved()
}

func TestThreeWayCycleEveryoneAdvances(t *testing.T) {
	h := newHarness(t, withBet(10))
	h.register("alice", "bob", "carol")
	h.commit("alice", Rock)
	h.commit("bob", Paper)
	h.commit("carol", Lizard)
	h.reveal("alice")
	h.reveal("bob")
	out := h.reveal("carol")

	result := out.Event.(SuccessfulReveal).Result
	assert.Equal(t, NextRoundStarted, result.Kind)
	assert.Equal(t, []Address{"alice", "bob", "carol"}, result.Players)
	assert.Equal(t, InProgress, out.Stage.Kind)
	assert.Equal(t, Amount(30), h.engine.Pot())

	// moves are cleared for the next round
	h.moves = map[Address]Move{}
	h.commit("alice", Spock)
	h.commit("bob", Rock)
	h.commit("carol", Scissors)
	h.reveal("alice")
	h.reveal("bob")
	out = h.reveal("carol")
	assert.Equal(t, RevealResult{Kind: GameOver, Winner: "alice"}, out.Event.(SuccessfulReveal).Result)
	assert.Equal(t, Amount(30), h.treasury.paid["alice"])
	h.requireConserved()
}

func TestEliminatedPlayerCannotMove(t *testing.T) {
	h := newHarness(t, withBet(10))
	h.register("alice", "bob", "carol")
	h.commit("alice", Paper)
	h.commit("bob", Paper)
	h.commit("carol", Rock)
	h.reveal("alice")
	h.reveal("bob")
	out := h.reveal("carol")
	require.Equal(t, []Address{"alice", "bob"}, out.Event.(SuccessfulReveal).Result.Players)

	h.fail("carol", 0, SubmitMove{Commitment: Commit(Rock, "x")}, ErrNotEligibleToMove)
	h.fail("dave", 0, SubmitMove{Commitment: Commit(Rock, "x")}, ErrNotEligibleToMove)
}

func TestCheatingRevealIsRejected(t *testing.T) {
	h := newHarness(t, withBet(10))
	h.register("alice", "bob")
	h.commit("alice", Rock)
	h.commit("bob", Paper)

	h.fail("alice", 0, RevealMove{Move: Paper, Salt: salt("alice")}, ErrCheating)
	h.fail("alice", 0, RevealMove{Move: Rock, Salt: "wrong"}, ErrCheating)
	h.fail("alice", 0, RevealMove{Move: Move(7), Salt: salt("alice")}, ErrUnknownMove)
	h.fail("carol", 0, RevealMove{Move: Rock, Salt: "x"}, ErrNotInRevealStage)
	assert.Equal(t, CategoryCheating, CategoryOf(ErrCheating))

	out := h.reveal("alice")
	assert.Equal(t, Continue, out.Event.(SuccessfulReveal).Result.Kind)
}

func TestMalformedCommitmentIsRejected(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "bob")
	h.fail("alice", 0, SubmitMove{Commitment: "abc"}, ErrMalformedCommitment)
}

func TestSubmitMoveStartsGameFromPreparation(t *testing.T) {
	t.Run("needs two players", func(t *testing.T) {
		h := newHarness(t, withBet(10))
		h.register("alice")
		h.fail("alice", 0, SubmitMove{Commitment: Commit(Rock, "s")}, ErrNotEnoughPlayers)
		h.fail("bob", 10, SubmitMove{Commitment: Commit(Rock, "s")}, ErrNotEligibleToMove)
	})

	t.Run("unpaid lobby members pay on first move", func(t *testing.T) {
		h := newHarness(t, withBet(10), withLobby("alice", "bob"))
		h.fail("alice", 5, SubmitMove{Commitment: Commit(Rock, "s")}, ErrInsufficientBet)

		out := h.do("alice", 15, SubmitMove{Commitment: Commit(Rock, salt("alice"))})
		assert.Equal(t, InProgress, out.Stage.Kind)
		assert.Equal(t, []Transfer{{To: "alice", Amount: 5, Reason: ReasonChange}}, out.Transfers)
		assert.Equal(t, Amount(10), h.engine.Pot())
		h.requireConserved()
	})

	t.Run("existing bettor gets value back", func(t *testing.T) {
		h := newHarness(t, withBet(10))
		h.register("alice", "bob")
		out := h.do("alice", 7, SubmitMove{Commitment: Commit(Rock, "s")})
		assert.Equal(t, []Transfer{{To: "alice", Amount: 7, Reason: ReasonChange}}, out.Transfers)
		assert.Equal(t, Amount(20), h.engine.Pot())
	})
}

func TestMoveTimeout(t *testing.T) {
	t.Run("single committer wins", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.register("alice", "bob")
		h.commit("alice", Rock)
		h.advance(h.engine.Config().MoveTimeout + time.Millisecond)

		out := h.do("carol", 100, Register{})
		require.Len(t, out.Transitions, 1)
		assert.Equal(t, StageTimedOut{Expired: InProgress, Next: Preparation, Winner: "alice"}, out.Transitions[0])
		assert.Equal(t, []Transfer{{To: "alice", Amount: 200, Reason: ReasonPrize}}, out.Transfers)
		assert.Equal(t, []Address{"carol"}, h.engine.Lobby())
		assert.Equal(t, Amount(100), h.engine.Pot())
		h.requireConserved()
	})

	t.Run("deadline is exclusive", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.register("alice", "bob")
		h.commit("alice", Rock)
		h.advance(h.engine.Config().MoveTimeout)

		out := h.commit("bob", Paper)
		assert.Empty(t, out.Transitions)
		assert.Equal(t, Reveal, out.Stage.Kind)
	})

	t.Run("no commits restarts the clock", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.register("alice", "bob")
		h.advance(h.engine.Config().EntryTimeout + time.Millisecond)

		// entry timeout starts the game, then the move clock runs out
		out := h.do(testOwner, 0, ChangeNextConfig{Config: DefaultGameConfig()})
		require.Len(t, out.Transitions, 1)
		assert.Equal(t, StageTimedOut{Expired: Preparation, Next: InProgress, Players: []Address{"alice", "bob"}}, out.Transitions[0])

		h.advance(h.engine.Config().MoveTimeout + time.Millisecond)
		now := h.clock.Now()
		out = h.commit("bob", Paper)
		require.Len(t, out.Transitions, 1)
		assert.Equal(t, StageTimedOut{Expired: InProgress, Next: InProgress}, out.Transitions[0])
		assert.Equal(t, now, h.engine.StageStartedAt())
	})

	t.Run("several committers go to reveal", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.register("alice", "bob", "carol")
		h.commit("alice", Rock)
		h.commit("bob", Paper)
		h.advance(h.engine.Config().MoveTimeout + time.Millisecond)

		out := h.reveal("bob")
		require.Len(t, out.Transitions, 1)
		assert.Equal(t, StageTimedOut{Expired: InProgress, Next: Reveal, Players: []Address{"alice", "bob"}}, out.Transitions[0])
		assert.Equal(t, Continue, out.Event.(SuccessfulReveal).Result.Kind)

		out = h.reveal("alice")
		assert.Equal(t, RevealResult{Kind: GameOver, Winner: "bob"}, out.Event.(SuccessfulReveal).Result)
		assert.Equal(t, Amount(300), h.treasury.paid["bob"])
		h.requireConserved()
	})

	t.Run("failed action discards the transition", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.register("alice", "bob")
		h.commit("alice", Rock)
		h.advance(h.engine.Config().MoveTimeout + time.Millisecond)

		// bob is no longer eligible once the timeout has run, so the whole
		// action is rejected and nothing is paid
		h.fail("bob", 0, SubmitMove{Commitment: Commit(Paper, "s")}, ErrNotEligibleToMove)
		assert.Equal(t, InProgress, h.engine.Stage().Kind)
		assert.Equal(t, Amount(200), h.engine.Pot())
	})
}

func TestEntryTimeout(t *testing.T) {
	t.Run("restarts with too few players", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.register("alice")
		h.advance(h.engine.Config().EntryTimeout + time.Millisecond)

		out := h.do("bob", 100, Register{})
		require.Len(t, out.Transitions, 1)
		assert.Equal(t, StageTimedOut{Expired: Preparation, Next: Preparation}, out.Transitions[0])
		assert.Equal(t, Preparation, out.Stage.Kind)
		assert.Equal(t, h.clock.Now(), h.engine.StageStartedAt())
	})

	t.Run("starts the game with the lobby", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.register("alice", "bob")
		h.advance(h.engine.Config().EntryTimeout + time.Millisecond)

		h.fail("carol", 100, Register{}, ErrGameInProgress)
		out := h.commit("bob", Lizard)
		require.Len(t, out.Transitions, 1)
		assert.Equal(t, InProgress, out.Stage.Kind)
		assert.Equal(t, []Address{"alice"}, out.Stage.Description.Anticipated.Slice())
	})
}

func TestRevealTimeout(t *testing.T) {
	t.Run("resolves among revealers", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.register("alice", "bob", "carol")
		h.commit("alice", Rock)
		h.commit("bob", Scissors)
		h.commit("carol", Paper)
		h.reveal("alice")
		h.reveal("bob")
		h.advance(h.engine.Config().RevealTimeout + time.Millisecond)

		out := h.do("dave", 100, Register{})
		require.Len(t, out.Transitions, 1)
		assert.Equal(t, StageTimedOut{Expired: Reveal, Next: Preparation, Winner: "alice"}, out.Transitions[0])
		assert.Equal(t, Amount(300), h.treasury.paid["alice"])
		h.requireConserved()
	})

	t.Run("survivors start the next round", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.register("alice", "bob", "carol")
		h.commit("alice", Rock)
		h.commit("bob", Rock)
		h.commit("carol", Paper)
		h.reveal("alice")
		h.reveal("bob")
		h.advance(h.engine.Config().RevealTimeout + time.Millisecond)

		h.moves = map[Address]Move{}
		out := h.commit("alice", Paper)
		require.Len(t, out.Transitions, 1)
		assert.Equal(t, StageTimedOut{Expired: Reveal, Next: InProgress, Players: []Address{"alice", "bob"}}, out.Transitions[0])
		assert.Equal(t, []Address{"bob"}, out.Stage.Description.Anticipated.Slice())
	})

	t.Run("no reveals restarts the clock", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.register("alice", "bob")
		h.commit("alice", Rock)
		h.commit("bob", Paper)
		h.advance(h.engine.Config().RevealTimeout + time.Millisecond)

		out := h.reveal("alice")
		require.Len(t, out.Transitions, 1)
		assert.Equal(t, StageTimedOut{Expired: Reveal, Next: Reveal}, out.Transitions[0])
		assert.Equal(t, Reveal, out.Stage.Kind)
	})
}

func TestNextConfigIsStaged(t *testing.T) {
	h := newHarness(t, withBet(100))
	h.register("alice", "bob")
	h.commit("alice", Rock)

	next := DefaultGameConfig()
	next.BetSize = 500
	next.MoveTimeout = 2 * time.Minute
	out := h.do(testOwner, 0, ChangeNextConfig{Config: next})
	assert.Equal(t, NextConfigChanged{Config: next}, out.Event)
	assert.Equal(t, Amount(100), h.engine.Config().BetSize)
	staged, ok := h.engine.NextConfig()
	require.True(t, ok)
	assert.Equal(t, next, staged)

	bad := next
	bad.RevealTimeout = time.Second
	h.fail(testOwner, 0, ChangeNextConfig{Config: bad}, ErrTimeoutTooLow)

	h.commit("bob", Scissors)
	h.reveal("alice")
	h.reveal("bob")

	assert.Equal(t, next, h.engine.Config())
	_, ok = h.engine.NextConfig()
	assert.False(t, ok)
	h.fail("carol", 100, Register{}, ErrInsufficientBet)
	h.do("carol", 500, Register{})
}

func TestStopGame(t *testing.T) {
	t.Run("requires a running game", func(t *testing.T) {
		h := newHarness(t)
		h.fail(testOwner, 0, StopGame{}, ErrGameNotInProgress)
	})

	t.Run("splits the pot when everyone paid", func(t *testing.T) {
		h := newHarness(t, withBet(100))
		h.register("alice", "bob", "carol")
		h.commit("alice", Rock)
		h.commit("bob", Rock)
		h.commit("carol", Scissors)
		h.reveal("alice")
		h.reveal("bob")
		h.reveal("carol")

		out := h.do(testOwner, 0, StopGame{})
		assert.Equal(t, GameWasStopped{Players: []Address{"alice", "bob"}}, out.Event)
		assert.Equal(t, []Transfer{
			{To: "alice", Amount: 150, Reason: ReasonShare},
			{To: "bob", Amount: 150, Reason: ReasonShare},
		}, out.Transfers)
		assert.Equal(t, Preparation, out.Stage.Kind)
		assert.Empty(t, h.engine.Lobby())
		h.requireConserved()
	})

	t.Run("remainder goes to the first players", func(t *testing.T) {
		h := newHarness(t, withBet(1))
		h.register("alice", "bob", "carol", "dave")
		h.commit("alice", Rock)
		h.commit("bob", Rock)
		h.commit("carol", Rock)
		h.commit("dave", Scissors)
		h.reveal("alice")
		h.reveal("bob")
		h.reveal("carol")
		out := h.reveal("dave")
		require.Equal(t, []Address{"alice", "bob", "carol"}, out.Event.(SuccessfulReveal).Result.Players)

		out = h.do(testOwner, 0, StopGame{})
		assert.Equal(t, []Transfer{
			{To: "alice", Amount: 2, Reason: ReasonShare},
			{To: "bob", Amount: 1, Reason: ReasonShare},
			{To: "carol", Amount: 1, Reason: ReasonShare},
		}, out.Transfers)
		h.requireConserved()
	})

	t.Run("refunds bettors when someone never paid", func(t *testing.T) {
		h := newHarness(t, withBet(100), withLobby("alice", "bob", "carol", "dave"))
		h.do("alice", 100, SubmitMove{Commitment: Commit(Rock, "s")})
		h.do("carol", 100, SubmitMove{Commitment: Commit(Paper, "s")})

		out := h.do(testOwner, 0, StopGame{})
		assert.Equal(t, GameWasStopped{Players: []Address{"alice", "carol"}}, out.Event)
		assert.Equal(t, []Transfer{
			{To: "alice", Amount: 100, Reason: ReasonRefund},
			{To: "carol", Amount: 100, Reason: ReasonRefund},
		}, out.Transfers)
		assert.Equal(t, Amount(0), h.engine.Pot())
		h.requireConserved()
	})
}

func TestSplitEqually(t *testing.T) {
	assert.Nil(t, SplitEqually(10, 0))
	assert.Equal(t, []Amount{4, 3, 3}, SplitEqually(10, 3))
	assert.Equal(t, []Amount{0, 0}, SplitEqually(0, 2))
	assert.Equal(t, []Amount{1, 1, 0}, SplitEqually(2, 3))
}

func TestFailedSettlementLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, withBet(100))
	h.register("alice")
	h.treasury.failSettle = errors.New("ledger offline")

	h.fail("bob", 100, Register{}, ErrSettlement)
	assert.Equal(t, []Address{"alice"}, h.engine.Lobby())
	assert.Equal(t, Amount(100), h.engine.Pot())
}

func TestSnapshotRestore(t *testing.T) {
	h := newHarness(t, withBet(100))
	h.register("alice", "bob")
	h.commit("alice", Rock)

	snap := h.engine.Snapshot()
	restored, err := Restore(h.ctx, snap, h.clock, h.treasury, nil)
	require.NoError(t, err)
	assert.Equal(t, h.engine.Stage(), restored.Stage())
	assert.Equal(t, h.engine.Pot(), restored.Pot())
	assert.Equal(t, h.engine.Deadline(), restored.Deadline())

	// a snapshot written before the last settlement no longer matches
	h.treasury.balance += 50
	_, err = Restore(h.ctx, snap, h.clock, h.treasury, nil)
	assert.ErrorIs(t, err, ErrPotMismatch)
	h.treasury.balance -= 50

	snap.Version = 99
	_, err = Restore(h.ctx, snap, h.clock, h.treasury, nil)
	assert.ErrorIs(t, err, ErrInternal)
}

// TestRandomPlayKeepsInvariants drives engines with random, mostly invalid
// traffic and checks the stage and the account after every action.
func TestRandomPlayKeepsInvariants(t *testing.T) {
	players := []Address{"alice", "bob", "carol", "dave", "erin"}

	for seed := range uint64(100) {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, seed^0x5eed))
			h := newHarness(t, withBet(10), withPlayersLimit(4))
			committed := make(map[Address]Move)

			for step := range 200 {
				caller := players[rng.IntN(len(players))]
				var (
					value  Amount
					action Action
				)
				switch rng.IntN(10) {
				case 0, 1:
					value, action = Amount(rng.IntN(25)), Register{}
				case 2, 3:
					m := Move(rng.IntN(MoveCount))
					action = SubmitMove{Commitment: Commit(m, salt(caller))}
					committed[caller] = m
				case 4, 5:
					m, ok := committed[caller]
					if !ok || rng.IntN(10) == 0 {
						m = Move(rng.IntN(MoveCount))
					}
					action = RevealMove{Move: m, Salt: salt(caller)}
				case 6:
					limit := h.engine.Config().MoveTimeout
					h.advance(time.Duration(rng.Int64N(int64(2 * limit))))
					continue
				case 7:
					caller = testOwner
					p := players[rng.IntN(len(players))]
					if rng.IntN(2) == 0 {
						action = AddPlayer{Player: p}
					} else {
						action = RemovePlayer{Player: p}
					}
				case 8:
					caller = testOwner
					action = StopGame{}
				default:
					caller = testOwner
					var lobby []Address
					for _, p := range players {
						if rng.IntN(2) == 0 {
							lobby = append(lobby, p)
						}
					}
					action = SetLobby{Players: lobby}
				}

				_, err := h.engine.Handle(h.ctx, Message{Caller: caller, Value: value, Action: action})
				require.False(t, errors.Is(err, ErrInternal), "step %d %s: %v", step, action.Kind(), err)

				st := h.engine.Stage()
				d := st.Description
				require.False(t, d.Anticipated.Intersects(d.Finished), "step %d: %s", step, st)
				if st.Kind == Preparation {
					require.True(t, d.Anticipated.IsEmpty() && d.Finished.IsEmpty(), "step %d: %s", step, st)
				}
				current, inGame := st.CurrentPlayers()
				require.Equal(t, st.GameInProgress(), inGame)
				for _, p := range players {
					require.Equal(t, current.Contains(p), st.IsPlayerInGame(p), "step %d: %s", step, p)
				}
				require.Equal(t, h.engine.Pot(), h.treasury.balance, "step %d", step)
				h.requireConserved()
			}
		})
	}
}
