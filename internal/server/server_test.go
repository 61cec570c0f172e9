package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/rpsforbots/internal/auth"
	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/ledger"
	"github.com/lox/rpsforbots/internal/protocol"
	"github.com/lox/rpsforbots/internal/store"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

type testServer struct {
	srv    *Server
	games  *GameManager
	ledger *ledger.Ledger
	clock  *quartz.Mock
	url    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := quietLogger()
	l := ledger.New(logger)
	bank := MemoryBank{Ledger: l}
	clock := quartz.NewMock(t)

	srv := NewServer("", bank, 1000, logger)
	gm := NewGameManager(srv, bank, nil, clock, logger)
	srv.SetGameManager(gm)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Stop(context.Background())
		ts.Close()
	})

	return &testServer{
		srv:    srv,
		games:  gm,
		ledger: l,
		clock:  clock,
		url:    "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	seq  int
}

func (ts *testServer) dial(t *testing.T) *wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

// send writes a request and returns its request ID.
func (c *wsClient) send(typ protocol.MessageType, data any) string {
	c.t.Helper()
	c.seq++
	id := fmt.Sprintf("%s-%d-%s", typ, c.seq, uuid.NewString())
	msg, err := protocol.NewMessage(typ, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(msg.WithRequestID(id)))
	return id
}

// await reads until a message correlated with requestID arrives.
func (c *wsClient) await(requestID string) protocol.Message {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg protocol.Message
		require.NoError(c.t, c.conn.ReadJSON(&msg))
		if msg.RequestID == requestID {
			return msg
		}
	}
}

func (c *wsClient) request(typ protocol.MessageType, data any) protocol.Message {
	c.t.Helper()
	return c.await(c.send(typ, data))
}

func (c *wsClient) hello(addr game.Address) protocol.WelcomeData {
	c.t.Helper()
	msg := c.request(protocol.MessageTypeHello, protocol.HelloData{Address: addr})
	require.Equal(c.t, protocol.MessageTypeWelcome, msg.Type)
	var data protocol.WelcomeData
	require.NoError(c.t, msg.Decode(&data))
	return data
}

// act sends an action and returns the resulting event.
func (c *wsClient) act(gameID string, value game.Amount, action game.Action) protocol.EventData {
	c.t.Helper()
	msg := c.actRaw(gameID, value, action)
	require.Equal(c.t, protocol.MessageTypeEvent, msg.Type, "unexpected reply: %s", msg.Data)
	var data protocol.EventData
	require.NoError(c.t, msg.Decode(&data))
	return data
}

func (c *wsClient) actRaw(gameID string, value game.Amount, action game.Action) protocol.Message {
	c.t.Helper()
	data, err := protocol.EncodeAction(gameID, value, action)
	require.NoError(c.t, err)
	return c.request(protocol.MessageTypeAction, data)
}

func decodeError(t *testing.T, msg protocol.Message) protocol.ErrorData {
	t.Helper()
	require.Equal(t, protocol.MessageTypeError, msg.Type)
	var data protocol.ErrorData
	require.NoError(t, msg.Decode(&data))
	return data
}

func testConfig() protocol.ConfigData {
	return protocol.ConfigFromGame(game.GameConfig{
		BetSize:           100,
		PlayersCountLimit: 4,
		EntryTimeout:      time.Minute,
		MoveTimeout:       time.Minute,
		RevealTimeout:     time.Minute,
	})
}

func TestServerHealth(t *testing.T) {
	srv := NewServer("", MemoryBank{Ledger: ledger.New(quietLogger())}, 0, quietLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestHelloCreditsStartingBalanceOnce(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)

	welcome := c.hello("alice")
	assert.Equal(t, game.Address("alice"), welcome.Address)
	assert.Equal(t, game.Amount(1000), welcome.Balance)

	again := ts.dial(t).hello("alice")
	assert.Equal(t, game.Amount(1000), again.Balance)
	assert.Equal(t, game.Amount(1000), ts.ledger.Balance("alice"))

	errData := decodeError(t, c.request(protocol.MessageTypeHello, protocol.HelloData{}))
	assert.Equal(t, "invalid_hello", errData.Code)
}

func TestRequestsBeforeHello(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)

	msg := c.actRaw("missing", 0, game.Register{})
	assert.Equal(t, "not_authenticated", decodeError(t, msg).Code)

	msg = c.request(protocol.MessageTypeCreateGame, protocol.CreateGameData{Config: testConfig()})
	assert.Equal(t, "not_authenticated", decodeError(t, msg).Code)

	msg = c.request(protocol.MessageType("shuffle"), nil)
	assert.Equal(t, "unknown_message_type", decodeError(t, msg).Code)
}

func TestCreateAndListGames(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	c.hello("alice")

	msg := c.request(protocol.MessageTypeCreateGame, protocol.CreateGameData{Config: testConfig()})
	require.Equal(t, protocol.MessageTypeGameCreated, msg.Type)
	var created protocol.GameCreatedData
	require.NoError(t, msg.Decode(&created))
	assert.NotEmpty(t, created.Game.ID)
	assert.Equal(t, game.Address("alice"), created.Game.Owner)
	assert.Equal(t, game.Amount(100), created.Game.BetSize)
	assert.Equal(t, game.Preparation, created.Game.Stage)

	msg = c.request(protocol.MessageTypeListGames, nil)
	require.Equal(t, protocol.MessageTypeGameList, msg.Type)
	var list protocol.GameListData
	require.NoError(t, msg.Decode(&list))
	require.Len(t, list.Games, 1)
	assert.Equal(t, created.Game.ID, list.Games[0].ID)

	bad := testConfig()
	bad.PlayersCountLimit = 1
	msg = c.request(protocol.MessageTypeCreateGame, protocol.CreateGameData{Config: bad})
	assert.Equal(t, string(game.CategoryConfig), decodeError(t, msg).Code)

	msg = c.request(protocol.MessageTypeQuery, protocol.QueryData{Game: "nope"})
	assert.Equal(t, "game_not_found", decodeError(t, msg).Code)
}

func TestFullGameOverWebSocket(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t)
	bob := ts.dial(t)
	alice.hello("alice")
	bob.hello("bob")

	msg := alice.request(protocol.MessageTypeCreateGame, protocol.CreateGameData{Config: testConfig()})
	var created protocol.GameCreatedData
	require.NoError(t, msg.Decode(&created))
	id := created.Game.ID

	ev := alice.act(id, 100, game.Register{})
	assert.Equal(t, game.EventTypePlayerRegistered, ev.Event.Type)
	assert.Equal(t, game.Amount(100), ev.Pot)
	assert.Equal(t, uint64(0), ev.GameNumber)

	ev = bob.act(id, 150, game.Register{})
	require.Len(t, ev.Transfers, 1)
	assert.Equal(t, game.Transfer{To: "bob", Amount: 50, Reason: game.ReasonChange}, ev.Transfers[0])

	ev = alice.act(id, 0, game.SubmitMove{Commitment: game.Commit(game.Rock, "a-salt")})
	assert.Equal(t, game.InProgress, ev.Stage.Kind)
	ev = bob.act(id, 0, game.SubmitMove{Commitment: game.Commit(game.Scissors, "b-salt")})
	assert.Equal(t, game.Reveal, ev.Stage.Kind)

	// paper does not match bob's commitment
	msg = bob.actRaw(id, 0, game.RevealMove{Move: game.Paper, Salt: "b-salt"})
	assert.Equal(t, string(game.CategoryCheating), decodeError(t, msg).Code)

	alice.act(id, 0, game.RevealMove{Move: game.Rock, Salt: "a-salt"})
	ev = bob.act(id, 0, game.RevealMove{Move: game.Scissors, Salt: "b-salt"})

	got, err := protocol.DecodeEvent(ev.Event)
	require.NoError(t, err)
	reveal, ok := got.(game.SuccessfulReveal)
	require.True(t, ok)
	assert.Equal(t, game.GameOver, reveal.Result.Kind)
	assert.Equal(t, game.Address("alice"), reveal.Result.Winner)
	assert.Equal(t, game.Preparation, ev.Stage.Kind)

	assert.Equal(t, game.Amount(1100), ts.ledger.Balance("alice"))
	assert.Equal(t, game.Amount(900), ts.ledger.Balance("bob"))
	assert.Equal(t, game.Amount(0), ts.ledger.Balance(accountFor(id)))

	msg = alice.request(protocol.MessageTypeQuery, protocol.QueryData{Game: id})
	require.Equal(t, protocol.MessageTypeQueryResult, msg.Type)
	var q protocol.QueryResultData
	require.NoError(t, msg.Decode(&q))
	assert.Equal(t, uint64(1), q.GameNumber)
	assert.Equal(t, game.Amount(0), q.Pot)
}

func TestFollowersReceiveBroadcasts(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t)
	watcher := ts.dial(t)
	alice.hello("alice")

	msg := alice.request(protocol.MessageTypeCreateGame, protocol.CreateGameData{Config: testConfig()})
	var created protocol.GameCreatedData
	require.NoError(t, msg.Decode(&created))

	watcher.request(protocol.MessageTypeQuery, protocol.QueryData{Game: created.Game.ID})

	id := alice.send(protocol.MessageTypeAction, mustEncode(t, created.Game.ID, 100, game.Register{}))
	alice.await(id)

	// the watcher sees the event under the caller's request ID
	seen := watcher.await(id)
	require.Equal(t, protocol.MessageTypeEvent, seen.Type)
	var ev protocol.EventData
	require.NoError(t, seen.Decode(&ev))
	assert.Equal(t, game.Address("alice"), ev.Caller)
}

func mustEncode(t *testing.T, gameID string, value game.Amount, action game.Action) protocol.ActionData {
	t.Helper()
	data, err := protocol.EncodeAction(gameID, value, action)
	require.NoError(t, err)
	return data
}

func TestTimeoutsUseServerClock(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t)
	bob := ts.dial(t)
	carol := ts.dial(t)
	alice.hello("alice")
	bob.hello("bob")
	carol.hello("carol")

	msg := alice.request(protocol.MessageTypeCreateGame, protocol.CreateGameData{Config: testConfig()})
	var created protocol.GameCreatedData
	require.NoError(t, msg.Decode(&created))
	id := created.Game.ID

	alice.act(id, 100, game.Register{})
	bob.act(id, 100, game.Register{})
	alice.act(id, 0, game.SubmitMove{Commitment: game.Commit(game.Rock, "s")})

	// bob never moves; the next action lands after the deadline
	ts.clock.Advance(time.Minute + time.Second)
	ev := carol.act(id, 100, game.Register{})

	require.Len(t, ev.Transitions, 1)
	got, err := protocol.DecodeEvent(ev.Transitions[0])
	require.NoError(t, err)
	timedOut, ok := got.(game.StageTimedOut)
	require.True(t, ok)
	assert.Equal(t, game.InProgress, timedOut.Expired)
	assert.Equal(t, game.Address("alice"), timedOut.Winner)
	assert.Equal(t, game.Amount(1100), ts.ledger.Balance("alice"))
}

func TestGameManagerRestoresFromStore(t *testing.T) {
	ctx := context.Background()
	logger := quietLogger()
	st, err := store.Open(filepath.Join(t.TempDir(), "rps.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	bank := StoreBank{Store: st}
	require.NoError(t, bank.Deposit(ctx, "alice", 500))
	clock := quartz.NewMock(t)

	gm := NewGameManager(nil, bank, st, clock, logger)
	gs, err := gm.CreateGame(ctx, "table-1", game.InitConfig{
		Owner:  "alice",
		Config: testConfig().ToGame(),
	})
	require.NoError(t, err)
	_, err = gs.Handle(ctx, "", "alice", 100, game.Register{})
	require.NoError(t, err)

	_, err = gm.CreateGame(ctx, "table-1", game.InitConfig{Owner: "alice", Config: testConfig().ToGame()})
	assert.ErrorIs(t, err, ErrGameExists)

	entries, err := st.Actions(ctx, "table-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, game.ActionRegister, entries[0].Kind)

	restored := NewGameManager(nil, bank, st, clock, logger)
	n, err := restored.RestoreGames(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	again, ok := restored.GetGame("table-1")
	require.True(t, ok)
	q := again.Query()
	assert.Equal(t, []game.Address{"alice"}, q.Lobby)
	assert.Equal(t, game.Amount(100), q.Pot)

	balance, err := bank.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, game.Amount(400), balance)
}

type tokenValidator map[string]game.Address

func (v tokenValidator) Validate(_ context.Context, token string) (*auth.Identity, error) {
	switch token {
	case "down":
		return nil, auth.ErrUnavailable
	}
	addr, ok := v[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Identity{Address: addr}, nil
}

func TestHelloValidatesTokens(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.SetValidator(tokenValidator{"alice-token": "alice"})

	tests := []struct {
		name    string
		hello   protocol.HelloData
		code    string
		welcome bool
	}{
		{"matching token", protocol.HelloData{Address: "alice", Token: "alice-token"}, "", true},
		{"missing token", protocol.HelloData{Address: "alice"}, "unauthorized", false},
		{"someone else's token", protocol.HelloData{Address: "mallory", Token: "alice-token"}, "unauthorized", false},
		{"service down", protocol.HelloData{Address: "alice", Token: "down"}, "auth_unavailable", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ts.dial(t)
			msg := c.request(protocol.MessageTypeHello, tt.hello)
			if tt.welcome {
				assert.Equal(t, protocol.MessageTypeWelcome, msg.Type)
				return
			}
			assert.Equal(t, tt.code, decodeError(t, msg).Code)
		})
	}

	assert.Equal(t, game.Amount(0), ts.ledger.Balance("mallory"), "rejected hellos are not credited")
}
