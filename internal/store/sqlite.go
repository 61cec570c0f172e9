// Package store persists games, their snapshots, an action journal and
// player balances in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/lox/rpsforbots/internal/game"
)

var ErrNotFound = errors.New("not found")

// Store is a SQLite-backed persistence layer.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string, logger *log.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers and keeps :memory: databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger.WithPrefix("store")}
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema.
func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			account TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			game_id TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			state TEXT NOT NULL,
			taken_at DATETIME NOT NULL,
			FOREIGN KEY (game_id) REFERENCES games(id)
		)`,
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			caller TEXT NOT NULL,
			value INTEGER NOT NULL,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			event TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (game_id) REFERENCES games(id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_actions_game_seq ON actions(game_id, seq)`,
		`CREATE TABLE IF NOT EXISTS balances (
			address TEXT PRIMARY KEY,
			amount INTEGER NOT NULL
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// GameRecord describes a stored game.
type GameRecord struct {
	ID        string
	Owner     game.Address
	Account   game.Address
	CreatedAt time.Time
}

// SaveGame records a newly created game.
func (s *Store) SaveGame(ctx context.Context, rec GameRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO games (id, owner, account, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, string(rec.Owner), string(rec.Account), rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", rec.ID, err)
	}
	return nil
}

// ListGames returns every stored game, oldest first.
func (s *Store) ListGames(ctx context.Context) ([]GameRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, owner, account, created_at FROM games ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []GameRecord
	for rows.Next() {
		var rec GameRecord
		var owner, account string
		if err := rows.Scan(&rec.ID, &owner, &account, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		rec.Owner = game.Address(owner)
		rec.Account = game.Address(account)
		games = append(games, rec)
	}
	return games, rows.Err()
}

// SaveSnapshot stores the latest snapshot of a game, replacing the previous.
func (s *Store) SaveSnapshot(ctx context.Context, gameID string, snap game.Snapshot) error {
	state, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (game_id, version, state, taken_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET version = excluded.version, state = excluded.state, taken_at = excluded.taken_at`,
		gameID, snap.Version, string(state), snap.TakenAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", gameID, err)
	}
	return nil
}

// LoadSnapshot returns the latest snapshot of a game.
func (s *Store) LoadSnapshot(ctx context.Context, gameID string) (game.Snapshot, error) {
	var (
		snap  game.Snapshot
		state string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, state, taken_at FROM snapshots WHERE game_id = ?`, gameID).
		Scan(&snap.Version, &state, &snap.TakenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Snapshot{}, fmt.Errorf("snapshot for %s: %w", gameID, ErrNotFound)
	}
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("failed to load snapshot for %s: %w", gameID, err)
	}
	snap.State = &game.State{}
	if err := json.Unmarshal([]byte(state), snap.State); err != nil {
		return game.Snapshot{}, fmt.Errorf("failed to decode snapshot for %s: %w", gameID, err)
	}
	return snap, nil
}

// JournalEntry is one accepted action.
type JournalEntry struct {
	ID        string
	GameID    string
	Seq       int64
	Caller    game.Address
	Value     game.Amount
	Kind      game.ActionKind
	Payload   json.RawMessage
	Event     game.EventType
	CreatedAt time.Time
}

// AppendAction adds an entry to a game's journal and returns its ID. The
// sequence number is assigned here.
func (s *Store) AppendAction(ctx context.Context, e JournalEntry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	value, err := toInt64(e.Value)
	if err != nil {
		return "", err
	}
	payload := string(e.Payload)
	if payload == "" {
		payload = "{}"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM actions WHERE game_id = ?`, e.GameID).Scan(&seq); err != nil {
		return "", fmt.Errorf("failed to allocate sequence: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO actions (id, game_id, seq, caller, value, kind, payload, event, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.GameID, seq, string(e.Caller), value, string(e.Kind), payload, string(e.Event), e.CreatedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to append action: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit action: %w", err)
	}
	return e.ID, nil
}

// Actions returns a game's journal in order.
func (s *Store) Actions(ctx context.Context, gameID string) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq, caller, value, kind, payload, event, created_at
		FROM actions WHERE game_id = ? ORDER BY seq`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var (
			e                            JournalEntry
			value                        int64
			caller, kind, payload, event string
		)
		if err := rows.Scan(&e.ID, &e.Seq, &caller, &value, &kind, &payload, &event, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		e.GameID = gameID
		e.Caller = game.Address(caller)
		e.Value = game.Amount(value)
		e.Kind = game.ActionKind(kind)
		e.Payload = json.RawMessage(payload)
		e.Event = game.EventType(event)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
