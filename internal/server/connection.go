package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/rpsforbots/internal/auth"
	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/protocol"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	send      chan *protocol.Message
	address   game.Address
	following map[string]bool
	server    *Server
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, server *Server, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:      conn,
		send:      make(chan *protocol.Message, 256),
		following: make(map[string]bool),
		server:    server,
		logger:    logger.WithPrefix("conn"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client. A full buffer closes the
// connection.
func (c *Connection) SendMessage(msg *protocol.Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close() // Ignore close errors
		return ErrConnectionClosed
	}
}

// SetAddress associates this connection with a player address
func (c *Connection) SetAddress(addr game.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = addr
}

// GetAddress returns the associated address
func (c *Connection) GetAddress() game.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address
}

// Follow subscribes the connection to a game's events.
func (c *Connection) Follow(gameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.following[gameID] = true
}

// Follows reports whether the connection receives gameID's events.
func (c *Connection) Follows(gameID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.following[gameID]
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Time allowed for a single request to reach the engine and storage
	requestTimeout = 10 * time.Second
)

var (
	ErrConnectionClosed = errors.New("connection closed")
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }() // Ignore close errors during cleanup

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *protocol.Message) {
	c.logger.Debug("Received message", "type", msg.Type, "address", c.GetAddress())

	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()

	switch msg.Type {
	case protocol.MessageTypeHello:
		var data protocol.HelloData
		if err := msg.Decode(&data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse hello data")
			return
		}
		c.handleHello(ctx, msg, data)

	case protocol.MessageTypeAction:
		var data protocol.ActionData
		if err := msg.Decode(&data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse action data")
			return
		}
		c.handleAction(ctx, msg, data)

	case protocol.MessageTypeQuery:
		var data protocol.QueryData
		if err := msg.Decode(&data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse query data")
			return
		}
		c.handleQuery(msg, data)

	case protocol.MessageTypeCreateGame:
		var data protocol.CreateGameData
		if err := msg.Decode(&data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse create game data")
			return
		}
		c.handleCreateGame(ctx, msg, data)

	case protocol.MessageTypeListGames:
		c.handleListGames(msg)

	default:
		c.sendError(msg, "unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

// reply sends a response correlated with req.
func (c *Connection) reply(req *protocol.Message, messageType protocol.MessageType, data any) {
	response, err := protocol.NewMessage(messageType, data)
	if err != nil {
		c.logger.Error("Failed to create response", "type", messageType, "error", err)
		return
	}
	_ = c.SendMessage(response.WithRequestID(req.RequestID)) // Ignore send errors
}

// sendError sends an error message to the client
func (c *Connection) sendError(req *protocol.Message, code, message string) {
	c.reply(req, protocol.MessageTypeError, protocol.ErrorData{
		Code:    code,
		Message: message,
	})
}

func (c *Connection) requireAddress(req *protocol.Message) (game.Address, bool) {
	addr := c.GetAddress()
	if addr == "" {
		c.sendError(req, "not_authenticated", "Must say hello first")
		return "", false
	}
	return addr, true
}

func (c *Connection) requireGame(req *protocol.Message, id string) (*GameService, bool) {
	if c.server.games == nil {
		c.sendError(req, "service_unavailable", "Game service not available")
		return nil, false
	}
	gs, ok := c.server.games.GetGame(id)
	if !ok {
		c.sendError(req, "game_not_found", "Unknown game: "+id)
		return nil, false
	}
	return gs, true
}

func (c *Connection) handleHello(ctx context.Context, req *protocol.Message, data protocol.HelloData) {
	c.logger.Info("Hello", "address", data.Address)

	if data.Address == "" {
		c.sendError(req, "invalid_hello", "Address required")
		return
	}

	if err := auth.Check(ctx, c.server.validator, data.Address, data.Token); err != nil {
		c.logger.Warn("Hello rejected", "address", data.Address, "error", err)
		if errors.Is(err, auth.ErrUnavailable) {
			c.sendError(req, "auth_unavailable", "Authentication service unavailable")
		} else {
			c.sendError(req, string(game.CategoryUnauthorized), "Invalid token")
		}
		return
	}

	balance, err := c.server.welcome(ctx, data.Address)
	if err != nil {
		c.logger.Error("Failed to load balance", "address", data.Address, "error", err)
		c.sendError(req, "internal", err.Error())
		return
	}

	c.SetAddress(data.Address)
	c.reply(req, protocol.MessageTypeWelcome, protocol.WelcomeData{
		Address: data.Address,
		Balance: balance,
	})
}

func (c *Connection) handleAction(ctx context.Context, req *protocol.Message, data protocol.ActionData) {
	addr, ok := c.requireAddress(req)
	if !ok {
		return
	}
	gs, ok := c.requireGame(req, data.Game)
	if !ok {
		return
	}

	action, err := protocol.DecodeAction(data)
	if err != nil {
		c.sendError(req, protocol.ErrorCode(err), err.Error())
		return
	}

	c.logger.Info("Action", "address", addr, "game", data.Game, "kind", data.Kind, "value", data.Value)
	c.Follow(data.Game)

	if _, err := gs.Handle(ctx, req.RequestID, addr, data.Value, action); err != nil {
		c.sendError(req, protocol.ErrorCode(err), err.Error())
	}
}

func (c *Connection) handleQuery(req *protocol.Message, data protocol.QueryData) {
	gs, ok := c.requireGame(req, data.Game)
	if !ok {
		return
	}
	c.Follow(data.Game)
	c.reply(req, protocol.MessageTypeQueryResult, gs.Query())
}

func (c *Connection) handleCreateGame(ctx context.Context, req *protocol.Message, data protocol.CreateGameData) {
	addr, ok := c.requireAddress(req)
	if !ok {
		return
	}
	if c.server.games == nil {
		c.sendError(req, "service_unavailable", "Game service not available")
		return
	}

	init := game.InitConfig{
		Owner:  addr,
		Config: data.Config.ToGame(),
		Lobby:  data.Lobby,
	}
	gs, err := c.server.games.CreateGame(ctx, "", init)
	if err != nil {
		c.sendError(req, protocol.ErrorCode(err), err.Error())
		return
	}

	c.Follow(gs.ID())
	c.reply(req, protocol.MessageTypeGameCreated, protocol.GameCreatedData{Game: gs.Summary()})
}

func (c *Connection) handleListGames(req *protocol.Message) {
	if c.server.games == nil {
		c.sendError(req, "service_unavailable", "Game service not available")
		return
	}
	c.reply(req, protocol.MessageTypeGameList, protocol.GameListData{Games: c.server.games.ListGames()})
}
