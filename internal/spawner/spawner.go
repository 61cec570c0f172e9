// Package spawner runs bots as child processes against a server.
package spawner

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Environment variables handed to every spawned bot.
const (
	EnvServer  = "RPSFORBOTS_SERVER"
	EnvGame    = "RPSFORBOTS_GAME"
	EnvAddress = "RPSFORBOTS_ADDRESS"
	EnvSeed    = "RPSFORBOTS_SEED"
)

// BotSpawner manages the lifecycle of bot processes.
type BotSpawner struct {
	serverURL string
	processes map[string]*Process
	mu        sync.RWMutex
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	seed      int64
	botSeq    int
}

// BotSpec defines a group of identical bots.
type BotSpec struct {
	Command string
	Args    []string
	Count   int
	GameID  string
	// Prefix names the bots' addresses, "<prefix>-<n>". Defaults to "bot".
	Prefix string
	Env    map[string]string
}

func New(serverURL string, logger *log.Logger) *BotSpawner {
	ctx, cancel := context.WithCancel(context.Background())
	return &BotSpawner{
		serverURL: serverURL,
		processes: make(map[string]*Process),
		logger:    logger.WithPrefix("spawner"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// NewWithSeed derives a distinct, reproducible seed for every bot from seed.
func NewWithSeed(serverURL string, logger *log.Logger, seed int64) *BotSpawner {
	s := New(serverURL, logger)
	s.seed = seed
	return s
}

// Spawn starts spec.Count bots. If any fails to start, every bot spawned so
// far is stopped.
func (s *BotSpawner) Spawn(spec BotSpec) error {
	if spec.Count <= 0 {
		spec.Count = 1
	}
	if spec.Prefix == "" {
		spec.Prefix = "bot"
	}

	s.logger.Info("Spawning bots", "command", spec.Command, "args", spec.Args, "count", spec.Count, "game", spec.GameID)

	for i := range spec.Count {
		proc, err := s.spawnOne(spec)
		if err != nil {
			s.logger.Error("Failed to spawn bot", "index", i, "error", err)
			_ = s.StopAll()
			return fmt.Errorf("failed to spawn bot %d: %w", i, err)
		}

		s.mu.Lock()
		s.processes[proc.ID] = proc
		s.mu.Unlock()
	}
	return nil
}

// StopAll stops every spawned bot.
func (s *BotSpawner) StopAll() error {
	s.logger.Info("Stopping all bots")
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for id, proc := range s.processes {
		if err := proc.Stop(); err != nil && !strings.Contains(err.Error(), "process already finished") {
			s.logger.Error("Failed to stop bot", "bot", id, "error", err)
			lastErr = err
		}
	}
	s.processes = make(map[string]*Process)
	return lastErr
}

// Wait blocks until every bot has exited and returns the first exit error.
func (s *BotSpawner) Wait() error {
	s.mu.RLock()
	procs := make([]*Process, 0, len(s.processes))
	for _, p := range s.processes {
		procs = append(procs, p)
	}
	s.mu.RUnlock()

	var first error
	for _, proc := range procs {
		if err := proc.Wait(); err != nil && first == nil {
			first = fmt.Errorf("bot %s: %w", proc.ID, err)
		}
	}
	return first
}

// ActiveCount returns the number of bots still running.
func (s *BotSpawner) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, proc := range s.processes {
		if proc.IsAlive() {
			count++
		}
	}
	return count
}

func (s *BotSpawner) spawnOne(spec BotSpec) (*Process, error) {
	env := s.buildEnv(spec)
	proc := NewProcess(s.ctx, env[EnvAddress], spec.Command, spec.Args, env, s.logger)
	if err := proc.Start(); err != nil {
		return nil, err
	}
	return proc, nil
}

func (s *BotSpawner) buildEnv(spec BotSpec) map[string]string {
	s.mu.Lock()
	s.botSeq++
	seq := s.botSeq
	s.mu.Unlock()

	env := map[string]string{
		EnvServer:  s.serverURL,
		EnvGame:    spec.GameID,
		EnvAddress: fmt.Sprintf("%s-%d", spec.Prefix, seq),
	}
	if s.seed != 0 {
		env[EnvSeed] = strconv.FormatInt(s.seed+int64(seq), 10)
	}
	for k, v := range spec.Env {
		env[k] = v
	}
	return env
}
