package session

import (
	"context"
	"log/slog"

	"med-reminder/internal/agent"
	"med-reminder/internal/calls"
)

// LogSession is an engine session for environments where no speech engine is
// attached to the room: instructions are logged instead of spoken and playout
// completes immediately. Dev and test deployments run on this.
type LogSession struct {
	log     *slog.Logger
	closing bool
}

func NewLogSession(log *slog.Logger) *LogSession {
	if log == nil {
		log = slog.Default()
	}
	return &LogSession{log: log}
}

func (s *LogSession) GenerateReply(ctx context.Context, instructions string) error {
	if s.closing {
		return agent.ErrSessionClosing
	}
	s.log.Info("engine reply requested", "instructions", instructions)
	return nil
}

func (s *LogSession) WaitForPlayout(ctx context.Context) error { return ctx.Err() }

// Close marks the session as draining; later replies report ErrSessionClosing.
func (s *LogSession) Close() { s.closing = true }

// LogFactory returns a Factory producing LogSessions.
func LogFactory(log *slog.Logger) Factory {
	if log == nil {
		log = slog.Default()
	}
	return func(call calls.Context, room string) (agent.Session, error) {
		return NewLogSession(log.With("room", room, "phone", call.PhoneNumber)), nil
	}
}
