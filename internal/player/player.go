// Package player drives mpv through its JSON IPC socket.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/csams/sterncast/internal/logging"
)

type PlayerState int

const (
	StateStopped PlayerState = iota
	StatePlaying
	StatePaused
)

func (s PlayerState) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

// Progress is a playback position sample in seconds.
type Progress struct {
	Position float64
	Duration float64
}

// Outcome describes how a playback session ended.
type Outcome struct {
	// Finished is true when mpv reached the end of the file.
	Finished bool
	Position float64
	Duration float64
}

// Player runs one mpv process at a time.
type Player struct {
	binary     string
	socketPath string
	logger     *slog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	exited   chan struct{}
	client   *Client
	state    PlayerState
	progress Progress
}

func New(binary string, logger *slog.Logger) *Player {
	return &Player{
		binary:     binary,
		socketPath: filepath.Join(os.TempDir(), fmt.Sprintf("sterncast-mpv-%d.sock", os.Getpid())),
		logger:     logging.NewComponentLogger(logger, "player"),
	}
}

// Play starts mpv on source, resuming at startAt seconds.
func (p *Player) Play(ctx context.Context, source string, startAt float64) error {
	p.mu.Lock()
	if p.cmd != nil {
		p.mu.Unlock()
		return errors.New("player already running")
	}
	p.mu.Unlock()

	// Clean up any stale socket from a previous run
	os.Remove(p.socketPath)

	args := []string{
		"--no-video",
		"--really-quiet",
		"--no-terminal",
		"--force-window=no",
		"--keep-open=no",
		fmt.Sprintf("--input-ipc-server=%s", p.socketPath),
	}
	if startAt > 0 {
		args = append(args, "--start="+strconv.FormatFloat(startAt, 'f', 1, 64))
	}
	args = append(args, "--", source)

	cmd := exec.Command(p.binary, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", p.binary, err)
	}
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	conn, err := p.dial(ctx, exited)
	if err != nil {
		_ = cmd.Process.Kill()
		<-exited
		return err
	}

	p.mu.Lock()
	p.cmd = cmd
	p.exited = exited
	p.mu.Unlock()

	p.Attach(conn)
	p.logger.Info("playback started",
		logging.String("source", source),
		logging.Float64("start", startAt),
	)
	return nil
}

// dial waits for mpv to create its socket.
func (p *Player) dial(ctx context.Context, exited <-chan struct{}) (net.Conn, error) {
	for i := 0; i < 50; i++ {
		if conn, err := net.Dial("unix", p.socketPath); err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-exited:
			return nil, errors.New("mpv exited before its IPC socket was ready")
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil, errors.New("mpv socket not created after timeout")
}

// Attach uses conn as the IPC connection of a running mpv.
func (p *Player) Attach(conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = NewClient(conn)
	p.state = StatePlaying
	p.progress = Progress{}
}

func (p *Player) currentClient() (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil, errors.New("player not running")
	}
	return p.client, nil
}

// Watch samples the position every interval and calls onProgress until the
// file ends, mpv goes away or ctx is cancelled.
func (p *Player) Watch(ctx context.Context, interval time.Duration, onProgress func(Progress)) (Outcome, error) {
	client, err := p.currentClient()
	if err != nil {
		return Outcome{}, err
	}

	p.mu.Lock()
	exited := p.exited
	p.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return p.outcome(false), nil

		case <-exited:
			p.logger.Debug("mpv process exited")
			return p.finish(false), nil

		case <-client.Done():
			return p.finish(false), nil

		case ev, ok := <-client.Events():
			if !ok {
				return p.finish(false), nil
			}
			switch ev.Name {
			case "end-file":
				p.logger.Debug("end of file", logging.String("reason", ev.Reason))
				return p.finish(ev.Reason == "eof"), nil
			case "pause":
				p.setState(StatePaused)
			case "unpause":
				p.setState(StatePlaying)
			}

		case <-ticker.C:
			prog, err := p.sample(ctx, client)
			if err != nil {
				p.logger.Debug("position sample failed", logging.Error(err))
				continue
			}
			if onProgress != nil {
				onProgress(prog)
			}
		}
	}
}

func (p *Player) sample(ctx context.Context, client *Client) (Progress, error) {
	pos, err := client.GetFloat(ctx, "time-pos")
	if err != nil {
		return Progress{}, err
	}
	dur, err := client.GetFloat(ctx, "duration")
	if err != nil {
		dur = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if pos >= 0 {
		p.progress.Position = pos
	}
	if dur > 0 {
		p.progress.Duration = dur
	}
	return p.progress, nil
}

func (p *Player) outcome(finished bool) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := Outcome{Finished: finished, Position: p.progress.Position, Duration: p.progress.Duration}
	if finished && out.Duration > 0 {
		out.Position = out.Duration
	}
	return out
}

func (p *Player) finish(finished bool) Outcome {
	out := p.outcome(finished)
	p.setState(StateStopped)
	return out
}

func (p *Player) setState(s PlayerState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Position returns the last sampled progress.
func (p *Player) Position() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

func (p *Player) Pause(ctx context.Context) error {
	client, err := p.currentClient()
	if err != nil {
		return err
	}
	if err := client.Set(ctx, "pause", true); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	p.setState(StatePaused)
	return nil
}

func (p *Player) Resume(ctx context.Context) error {
	client, err := p.currentClient()
	if err != nil {
		return err
	}
	if err := client.Set(ctx, "pause", false); err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	p.setState(StatePlaying)
	return nil
}

func (p *Player) TogglePause(ctx context.Context) error {
	if p.State() == StatePaused {
		return p.Resume(ctx)
	}
	return p.Pause(ctx)
}

// Seek moves relative to the current position.
func (p *Player) Seek(ctx context.Context, seconds float64) error {
	client, err := p.currentClient()
	if err != nil {
		return err
	}
	if _, err := client.Command(ctx, "seek", seconds, "relative"); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

// SeekAbsolute jumps to an absolute position.
func (p *Player) SeekAbsolute(ctx context.Context, seconds float64) error {
	client, err := p.currentClient()
	if err != nil {
		return err
	}
	if _, err := client.Command(ctx, "seek", seconds, "absolute"); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

// Stop asks mpv to quit and releases the process.
func (p *Player) Stop() error {
	p.mu.Lock()
	client := p.client
	cmd := p.cmd
	exited := p.exited
	p.client = nil
	p.cmd = nil
	p.exited = nil
	p.state = StateStopped
	p.mu.Unlock()

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, _ = client.Command(ctx, "quit")
		cancel()
		_ = client.Close()
	}

	if cmd != nil {
		select {
		case <-exited:
		case <-time.After(2 * time.Second):
			p.logger.Warn("mpv did not quit, killing it")
			_ = cmd.Process.Kill()
			<-exited
		}
		os.Remove(p.socketPath)
	}
	return nil
}
