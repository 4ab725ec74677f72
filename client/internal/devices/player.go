package devices

import (
	"bytes"

	"go.uber.org/zap"

	"gyani-interview/client/internal/playback"
	"gyani-interview/client/pkg/config"
)

// ExecPlayer plays clips by piping them into a player program such as
// ffplay or mpg123
type ExecPlayer struct {
	command []string
	logger  *zap.Logger
}

// NewExecPlayer creates a player for the given command line
func NewExecPlayer(command string, logger *zap.Logger) *ExecPlayer {
	return &ExecPlayer{
		command: config.Fields(command),
		logger:  logger.With(zap.String("component", "player")),
	}
}

// Available reports whether the player program is installed
func (p *ExecPlayer) Available() bool {
	return lookup(p.command)
}

// Play implements playback.Player
func (p *ExecPlayer) Play(audio []byte, ev playback.Events) (playback.Handle, error) {
	p.logger.Debug("Playing clip", zap.Int("bytes", len(audio)))
	return runProcess(p.command, bytes.NewReader(audio), ev, p.logger)
}
