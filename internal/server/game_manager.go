package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/gameid"
	"github.com/lox/rpsforbots/internal/protocol"
	"github.com/lox/rpsforbots/internal/store"
)

var ErrGameExists = errors.New("game already exists")

// GameManager creates games and tracks the running ones.
type GameManager struct {
	logger      *log.Logger
	mu          sync.RWMutex
	games       map[string]*GameService
	order       []string
	bank        Bank
	store       *store.Store
	clock       quartz.Clock
	broadcaster Broadcaster
}

// NewGameManager constructs an empty game manager. st may be nil to run
// without persistence.
func NewGameManager(broadcaster Broadcaster, bank Bank, st *store.Store, clock quartz.Clock, logger *log.Logger) *GameManager {
	return &GameManager{
		logger:      logger.WithPrefix("games"),
		games:       make(map[string]*GameService),
		bank:        bank,
		store:       st,
		clock:       clock,
		broadcaster: broadcaster,
	}
}

func accountFor(id string) game.Address {
	return game.Address("game:" + id)
}

// CreateGame starts a new engine. An empty id gets a generated one.
func (gm *GameManager) CreateGame(ctx context.Context, id string, init game.InitConfig) (*GameService, error) {
	if id == "" {
		id = gameid.Generate()
	}

	gm.mu.Lock()
	defer gm.mu.Unlock()
	if _, ok := gm.games[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrGameExists, id)
	}

	account := accountFor(id)
	engine, err := game.New(init, gm.clock, gm.bank.Treasury(account), gm.logger.With("game", id))
	if err != nil {
		return nil, err
	}

	if gm.store != nil {
		rec := store.GameRecord{ID: id, Owner: init.Owner, Account: account, CreatedAt: gm.clock.Now()}
		if err := gm.store.SaveGame(ctx, rec); err != nil {
			return nil, err
		}
		if err := gm.store.SaveSnapshot(ctx, id, engine.Snapshot()); err != nil {
			return nil, err
		}
	}

	gs := gm.add(id, account, engine)
	gm.logger.Info("Created game",
		"id", id,
		"owner", init.Owner,
		"bet", init.Config.BetSize,
		"maxPlayers", init.Config.PlayersCountLimit)
	return gs, nil
}

// RestoreGames reloads every stored game from its latest snapshot.
func (gm *GameManager) RestoreGames(ctx context.Context) (int, error) {
	if gm.store == nil {
		return 0, nil
	}
	records, err := gm.store.ListGames(ctx)
	if err != nil {
		return 0, err
	}

	gm.mu.Lock()
	defer gm.mu.Unlock()

	restored := 0
	for _, rec := range records {
		if _, ok := gm.games[rec.ID]; ok {
			continue
		}
		snap, err := gm.store.LoadSnapshot(ctx, rec.ID)
		if err != nil {
			return restored, err
		}
		engine, err := game.Restore(ctx, snap, gm.clock, gm.bank.Treasury(rec.Account), gm.logger.With("game", rec.ID))
		if err != nil {
			return restored, fmt.Errorf("failed to restore game %s: %w", rec.ID, err)
		}
		gm.add(rec.ID, rec.Account, engine)
		restored++
	}
	gm.logger.Info("Restored games", "count", restored)
	return restored, nil
}

// add registers a game. Callers hold gm.mu.
func (gm *GameManager) add(id string, account game.Address, engine *game.Engine) *GameService {
	gs := &GameService{
		id:          id,
		account:     account,
		engine:      engine,
		store:       gm.store,
		broadcaster: gm.broadcaster,
		logger:      gm.logger.With("game", id),
	}
	gm.games[id] = gs
	gm.order = append(gm.order, id)
	return gs
}

// GetGame retrieves a game by ID.
func (gm *GameManager) GetGame(id string) (*GameService, bool) {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	gs, ok := gm.games[id]
	return gs, ok
}

// ListGames returns a summary of every game in creation order.
func (gm *GameManager) ListGames() []protocol.GameSummary {
	gm.mu.RLock()
	services := make([]*GameService, 0, len(gm.order))
	for _, id := range gm.order {
		services = append(services, gm.games[id])
	}
	gm.mu.RUnlock()

	summaries := make([]protocol.GameSummary, 0, len(services))
	for _, gs := range services {
		summaries = append(summaries, gs.Summary())
	}
	return summaries
}
