package spawner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// StopGrace is how long a bot has to exit after an interrupt before it is
// killed.
const StopGrace = time.Second

// Process is one managed bot process.
type Process struct {
	ID      string
	Command string
	Args    []string
	Env     map[string]string

	cmd       *exec.Cmd
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *log.Logger
	startTime time.Time
	mu        sync.Mutex
	done      chan struct{}
	exitErr   error
}

func NewProcess(ctx context.Context, id, command string, args []string, env map[string]string, logger *log.Logger) *Process {
	procCtx, cancel := context.WithCancel(ctx)
	return &Process{
		ID:      id,
		Command: command,
		Args:    args,
		Env:     env,
		ctx:     procCtx,
		cancel:  cancel,
		logger:  logger.With("bot", id),
		done:    make(chan struct{}),
	}
}

// Start launches the process with the parent's environment plus Env.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return errors.New("process already started")
	}

	p.cmd = exec.CommandContext(p.ctx, p.Command, p.Args...)
	p.cmd.Env = os.Environ()
	for k, v := range p.Env {
		p.cmd.Env = append(p.cmd.Env, k+"="+v)
	}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}
	p.startTime = time.Now()
	p.logger.Debug("Process started", "command", p.Command, "args", p.Args, "pid", p.cmd.Process.Pid)

	var pipes sync.WaitGroup
	pipes.Add(2)
	go p.readOutput(&pipes, "stdout", stdout)
	go p.readOutput(&pipes, "stderr", stderr)
	go p.monitor(&pipes)
	return nil
}

// Stop interrupts the process, killing it if it outlives StopGrace.
func (p *Process) Stop() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil || !p.IsAlive() {
		return nil
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil && p.IsAlive() {
		if err := cmd.Process.Kill(); err != nil && p.IsAlive() {
			return fmt.Errorf("failed to stop process: %w", err)
		}
	}

	select {
	case <-p.done:
	case <-time.After(StopGrace):
		p.logger.Debug("Force killing process")
		p.cancel()
		<-p.done
	}
	return nil
}

// Wait blocks until the process exits.
func (p *Process) Wait() error {
	<-p.done
	return p.exitErr
}

func (p *Process) IsAlive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Process) monitor(pipes *sync.WaitGroup) {
	defer close(p.done)

	// cmd.Wait closes the pipes, so drain them first.
	pipes.Wait()
	err := p.cmd.Wait()
	p.exitErr = err

	duration := time.Since(p.startTime).Round(time.Millisecond)
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		p.logger.Debug("Process exited", "duration", duration)
	case errors.As(err, &exitErr) && !exitErr.Exited():
		p.logger.Info("Process terminated by signal", "duration", duration)
	default:
		p.logger.Error("Process exited with error", "duration", duration, "error", err)
	}
}

// readOutput relays the bot's output into our log.
func (p *Process) readOutput(pipes *sync.WaitGroup, stream string, pipe io.Reader) {
	defer pipes.Done()
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			p.logger.Info(line, "stream", stream)
		}
	}
}
