package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/rpsforbots/internal/auth"
	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/protocol"
)

// Server represents the WebSocket server
type Server struct {
	addr            string
	upgrader        websocket.Upgrader
	connections     map[*Connection]bool
	logger          *log.Logger
	mu              sync.RWMutex
	httpServer      *http.Server
	bank            Bank
	startingBalance game.Amount
	games           *GameManager
	validator       auth.Validator
}

// NewServer creates a new WebSocket server. Addresses saying hello with an
// empty balance are credited startingBalance.
func NewServer(addr string, bank Bank, startingBalance game.Amount, logger *log.Logger) *Server {
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections:     make(map[*Connection]bool),
		logger:          logger.WithPrefix("server"),
		bank:            bank,
		startingBalance: startingBalance,
		validator:       auth.NoopValidator{},
	}
}

// SetValidator requires hellos to carry a token bound to their address.
func (s *Server) SetValidator(v auth.Validator) {
	s.validator = v
}

// SetGameManager sets the game manager for the server
func (s *Server) SetGameManager(gm *GameManager) {
	s.games = gm
}

// Handler returns the HTTP handler serving /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start listens on the configured address and blocks until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("Starting WebSocket server", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes every connection and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close() // Ignore close errors during shutdown
	}
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) register(conn *Connection) {
	s.mu.Lock()
	s.connections[conn] = true
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("Client connected", "total", total)
}

func (s *Server) unregister(conn *Connection) {
	s.mu.Lock()
	delete(s.connections, conn)
	total := len(s.connections)
	s.mu.Unlock()
	_ = conn.Close() // Ignore close errors during unregistration
	s.logger.Info("Client disconnected", "address", conn.GetAddress(), "total", total)
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s, s.logger)
	s.register(client)
	client.Start()

	go func() {
		<-client.ctx.Done()
		s.unregister(client)
	}()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK") // Ignore write errors for health check
}

// Broadcast sends a message to every connection following gameID.
func (s *Server) Broadcast(gameID string, msg *protocol.Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for conn := range s.connections {
		if !conn.Follows(gameID) {
			continue
		}
		if err := conn.SendMessage(msg); err != nil {
			s.logger.Error("Failed to send message to client", "error", err, "address", conn.GetAddress())
		} else {
			count++
		}
	}

	s.logger.Debug("Broadcasted message to game", "game", gameID, "type", msg.Type, "recipients", count)
}

// welcome credits the starting balance to empty accounts and returns the
// current balance.
func (s *Server) welcome(ctx context.Context, addr game.Address) (game.Amount, error) {
	balance, err := s.bank.Balance(ctx, addr)
	if err != nil {
		return 0, err
	}
	if balance == 0 && s.startingBalance > 0 {
		if err := s.bank.Deposit(ctx, addr, s.startingBalance); err != nil {
			return 0, err
		}
		s.logger.Info("Credited starting balance", "address", addr, "amount", s.startingBalance)
		balance = s.startingBalance
	}
	return balance, nil
}

// GetConnectedAddresses returns the addresses of identified connections.
func (s *Server) GetConnectedAddresses() []game.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var addrs []game.Address
	for conn := range s.connections {
		if addr := conn.GetAddress(); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}
