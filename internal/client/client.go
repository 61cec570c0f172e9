package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/protocol"
)

var ErrNotConnected = errors.New("not connected")

// ServerError is an error reply from the server.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client represents a WebSocket client for the rpsforbots server
type Client struct {
	serverURL string
	conn      *websocket.Conn
	send      chan *protocol.Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	connected bool
	address   game.Address
	token     string
	closeOnce sync.Once

	// Replies awaited by request ID
	pending map[string]chan *protocol.Message

	// Event handlers
	eventHandlers []EventHandler
}

// EventHandler receives every game event the client observes.
type EventHandler func(protocol.EventData)

// NewClient creates a new WebSocket client
func NewClient(serverURL string, logger *log.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		serverURL: serverURL,
		send:      make(chan *protocol.Message, 256),
		logger:    logger.WithPrefix("client"),
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[string]chan *protocol.Message),
	}
}

// websocketURL converts http(s) URLs to ws(s) and points them at /ws.
func websocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	return u.String(), nil
}

// Connect establishes a WebSocket connection to the server
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("Connecting to server", "url", c.serverURL)

	wsURL, err := websocketURL(c.serverURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readPump()
	go c.writePump()

	c.logger.Info("Connected to server")
	return nil
}

// Disconnect closes the WebSocket connection
func (c *Client) Disconnect() error {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.conn != nil {
			_ = c.conn.Close() // Ignore close errors during shutdown
			c.connected = false
		}

		c.logger.Info("Disconnected from server")
	})
	return nil
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Done is closed once the client disconnects.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// SendMessage queues a message for the server
func (c *Client) SendMessage(msg *protocol.Message) error {
	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrNotConnected
	default:
		return fmt.Errorf("send buffer full")
	}
}

// readPump handles incoming messages from the server
func (c *Client) readPump() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.cancel()
	}()

	for {
		var msg protocol.Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.logger.Debug("Received message", "type", msg.Type, "requestId", msg.RequestID)
		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the server
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second) // Ping interval
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handleMessage resolves a pending request and fans events out to handlers.
func (c *Client) handleMessage(msg *protocol.Message) {
	if msg.RequestID != "" {
		c.mu.Lock()
		ch, ok := c.pending[msg.RequestID]
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}

	if msg.Type != protocol.MessageTypeEvent {
		return
	}
	var data protocol.EventData
	if err := msg.Decode(&data); err != nil {
		c.logger.Error("Failed to decode event", "error", err)
		return
	}

	c.mu.RLock()
	handlers := c.eventHandlers
	c.mu.RUnlock()
	for _, handler := range handlers {
		handler(data)
	}
}

// AddEventHandler registers a handler for game events. Handlers run on the
// read goroutine and must not block.
func (c *Client) AddEventHandler(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventHandlers = append(c.eventHandlers, handler)
}

// request sends a message and waits for the reply carrying its request ID.
// Error replies are returned as *ServerError.
func (c *Client) request(ctx context.Context, typ protocol.MessageType, data any, want protocol.MessageType, out any) error {
	msg, err := protocol.NewMessage(typ, data)
	if err != nil {
		return err
	}
	id := uuid.NewString()
	ch := make(chan *protocol.Message, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.SendMessage(msg.WithRequestID(id)); err != nil {
		return err
	}

	select {
	case reply := <-ch:
		if reply.Type == protocol.MessageTypeError {
			var e protocol.ErrorData
			if err := reply.Decode(&e); err != nil {
				return err
			}
			return &ServerError{Code: e.Code, Message: e.Message}
		}
		if reply.Type != want {
			return fmt.Errorf("unexpected reply %s to %s", reply.Type, typ)
		}
		if out == nil {
			return nil
		}
		return reply.Decode(out)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrNotConnected
	}
}

// SetToken sets the token sent with Hello to servers that validate
// identities.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Hello identifies the client and returns its balance.
func (c *Client) Hello(ctx context.Context, addr game.Address) (protocol.WelcomeData, error) {
	c.mu.RLock()
	hello := protocol.HelloData{Address: addr, Token: c.token}
	c.mu.RUnlock()

	var welcome protocol.WelcomeData
	err := c.request(ctx, protocol.MessageTypeHello, hello, protocol.MessageTypeWelcome, &welcome)
	if err != nil {
		return welcome, err
	}

	c.mu.Lock()
	c.address = addr
	c.mu.Unlock()
	return welcome, nil
}

// Act submits an action with value attached and returns the resulting event.
func (c *Client) Act(ctx context.Context, gameID string, value game.Amount, action game.Action) (protocol.EventData, error) {
	var ev protocol.EventData
	data, err := protocol.EncodeAction(gameID, value, action)
	if err != nil {
		return ev, err
	}
	err = c.request(ctx, protocol.MessageTypeAction, data, protocol.MessageTypeEvent, &ev)
	return ev, err
}

// Query fetches a game's state and follows its events.
func (c *Client) Query(ctx context.Context, gameID string) (protocol.QueryResultData, error) {
	var result protocol.QueryResultData
	err := c.request(ctx, protocol.MessageTypeQuery, protocol.QueryData{Game: gameID}, protocol.MessageTypeQueryResult, &result)
	return result, err
}

// CreateGame creates a game owned by this client.
func (c *Client) CreateGame(ctx context.Context, cfg game.GameConfig, lobby []game.Address) (protocol.GameSummary, error) {
	var created protocol.GameCreatedData
	data := protocol.CreateGameData{Config: protocol.ConfigFromGame(cfg), Lobby: lobby}
	err := c.request(ctx, protocol.MessageTypeCreateGame, data, protocol.MessageTypeGameCreated, &created)
	return created.Game, err
}

// ListGames requests a list of games
func (c *Client) ListGames(ctx context.Context) ([]protocol.GameSummary, error) {
	var list protocol.GameListData
	err := c.request(ctx, protocol.MessageTypeListGames, struct{}{}, protocol.MessageTypeGameList, &list)
	return list.Games, err
}

// GetAddress returns the address sent in Hello
func (c *Client) GetAddress() game.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address
}
