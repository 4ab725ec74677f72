// Package devices adapts local audio programs and OpenAI speech endpoints to
// the playback and capture capabilities the session consumes.
package devices

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"gyani-interview/client/internal/playback"
)

// procHandle stops a running device process
type procHandle struct {
	once   sync.Once
	cancel context.CancelFunc
}

func (h *procHandle) Stop() {
	h.once.Do(h.cancel)
}

// lookup reports whether the program of a command line is on PATH
func lookup(command []string) bool {
	if len(command) == 0 {
		return false
	}
	_, err := exec.LookPath(command[0])
	return err == nil
}

// runProcess starts command with stdin and reports its completion through ev.
// Nothing is reported once the returned handle is stopped.
func runProcess(command []string, stdin io.Reader, ev playback.Events, logger *zap.Logger) (playback.Handle, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("no command configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Stdin = stdin
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start %s: %w", command[0], err)
	}

	handle := &procHandle{cancel: cancel}
	go func() {
		if ev.OnStart != nil {
			ev.OnStart()
		}
		err := cmd.Wait()
		if ctx.Err() != nil {
			logger.Debug("Device process stopped", zap.String("program", command[0]))
			return
		}
		cancel()
		if err != nil {
			if ev.OnError != nil {
				ev.OnError(fmt.Errorf("%s exited: %w", command[0], err))
			}
			return
		}
		if ev.OnEnd != nil {
			ev.OnEnd()
		}
	}()
	return handle, nil
}
