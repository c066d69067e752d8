// Package session turns a dispatched job into a live agent call: it parses
// the job metadata, dials the patient over SIP, and applies the
// retry-or-escalate protocol when the call never connects.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"med-reminder/internal/agent"
	"med-reminder/internal/attempts"
	"med-reminder/internal/calls"
	"med-reminder/internal/dispatch"
	"med-reminder/internal/journal"
	"med-reminder/internal/media"
	"med-reminder/internal/prompts"
)

// Job is one scheduled call assignment from the platform.
type Job struct {
	Room     string `json:"room"`
	Metadata string `json:"metadata"`
}

// Factory builds the conversational engine session for one call.
type Factory func(call calls.Context, room string) (agent.Session, error)

// Guard reserves a patient's line for one live call at a time. Satisfied by
// *attempts.RedisGuard.
type Guard interface {
	Acquire(ctx context.Context, phone string) (bool, error)
	Release(ctx context.Context, phone string) error
}

type Runner struct {
	sip        media.SIPClient
	rooms      media.RoomClient
	dispatcher *dispatch.Dispatcher
	escalator  agent.Escalator
	attempts   attempts.Counter
	guard      Guard
	journal    *journal.Service
	trunkID    string
	newSession Factory
	log        *slog.Logger
}

type RunnerConfig struct {
	SIP        media.SIPClient
	Rooms      media.RoomClient
	Dispatcher *dispatch.Dispatcher
	Escalator  agent.Escalator
	Attempts   attempts.Counter
	TrunkID    string
	NewSession Factory

	// Guard is optional; when set, a line with a call already in flight is
	// not dialed again.
	Guard Guard

	// Journal is optional; connect-failure records are best-effort.
	Journal *journal.Service

	Log *slog.Logger
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.SIP == nil || cfg.Rooms == nil {
		return nil, errors.New("session: media clients are required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("session: dispatcher is required")
	}
	if cfg.Escalator == nil {
		return nil, errors.New("session: escalator is required")
	}
	if cfg.Attempts == nil {
		return nil, errors.New("session: attempt counter is required")
	}
	if cfg.TrunkID == "" {
		return nil, errors.New("session: outbound trunk id is required")
	}
	if cfg.NewSession == nil {
		return nil, errors.New("session: session factory is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		sip:        cfg.SIP,
		rooms:      cfg.Rooms,
		dispatcher: cfg.Dispatcher,
		escalator:  cfg.Escalator,
		attempts:   cfg.Attempts,
		guard:      cfg.Guard,
		journal:    cfg.Journal,
		trunkID:    cfg.TrunkID,
		newSession: cfg.NewSession,
		log:        log,
	}, nil
}

// Run dials the patient for one job. On answer it speaks the opening prompt
// and returns the live agent for the engine to drive. On connect failure it
// applies the retry protocol and returns nil with no error: a busy patient is
// an expected outcome, not a job failure.
func (r *Runner) Run(ctx context.Context, job Job) (*agent.Agent, error) {
	call, err := calls.ParseMetadata(job.Metadata)
	if err != nil {
		return nil, fmt.Errorf("session: bad job metadata: %w", err)
	}
	if call.Prompt == "" {
		call.Prompt = prompts.Default(call.UserName, call.MedicineName)
	}

	log := r.log.With("room", job.Room, "phone", call.PhoneNumber)

	if r.guard != nil {
		ok, gerr := r.guard.Acquire(ctx, call.PhoneNumber)
		if gerr != nil {
			// The guard is protection, not a dependency; dial anyway.
			log.Warn("line guard unavailable", "err", gerr)
		} else if !ok {
			log.Info("call already in flight for this line; skipping job")
			return nil, nil
		}
	}

	sess, err := r.newSession(call, job.Room)
	if err != nil {
		r.releaseLine(ctx, call.PhoneNumber, log)
		return nil, fmt.Errorf("session: start engine session: %w", err)
	}

	a, err := agent.New(agent.Config{
		Call:      call,
		Room:      job.Room,
		Session:   sess,
		Rooms:     r.rooms,
		SIP:       r.sip,
		Attempts:  r.attempts,
		Escalator: r.escalator,
		Journal:   r.journal,
		Log:       r.log,
	})
	if err != nil {
		r.releaseLine(ctx, call.PhoneNumber, log)
		return nil, err
	}

	log.Info("dialing patient", "retry_attempts", call.RetryAttempts)
	err = r.sip.CreateParticipant(ctx, media.SIPParticipantRequest{
		Room:              job.Room,
		TrunkID:           r.trunkID,
		CallTo:            call.PhoneNumber,
		Identity:          call.PhoneNumber,
		WaitUntilAnswered: true,
	})
	if err != nil {
		r.handleConnectFailure(ctx, job, call, err, log)
		return nil, nil
	}

	a.SetParticipant(call.PhoneNumber)
	log.Info("patient answered")
	if err := sess.GenerateReply(ctx, call.Prompt); err != nil && !errors.Is(err, agent.ErrSessionClosing) {
		return nil, fmt.Errorf("session: opening reply: %w", err)
	}
	return a, nil
}

// handleConnectFailure closes the dead room and moves the contact chain
// forward. Redispatch and escalation failures are logged and swallowed; the
// chain just ends there.
func (r *Runner) releaseLine(ctx context.Context, phone string, log *slog.Logger) {
	if r.guard == nil {
		return
	}
	if err := r.guard.Release(ctx, phone); err != nil {
		log.Warn("line guard release failed", "err", err)
	}
}

func (r *Runner) handleConnectFailure(ctx context.Context, job Job, call calls.Context, dialErr error, log *slog.Logger) {
	r.releaseLine(ctx, call.PhoneNumber, log)

	status := media.SIPStatusCode(dialErr)
	log.Warn("outbound call failed to connect", "sip_status", status, "err", dialErr)
	r.record(ctx, journal.EventFailed, job.Room, call, fmt.Sprintf("sip status %s", status))

	if err := r.rooms.DeleteRoom(ctx, job.Room); err != nil && !media.IsNotFound(err) {
		log.Warn("cleanup of dead room failed", "err", err)
	}

	switch Decide(status, call.RetryAttempts, len(call.HeadOfFamilyPhones)) {
	case DecisionRetry:
		retry := call.WithRetry()
		log.Info("line busy; retrying same number", "attempt", retry.RetryAttempts, "cap", maxDialRetries)
		if _, err := r.dispatcher.Dispatch(ctx, retry); err != nil {
			log.Error("retry dispatch failed", "err", err)
			return
		}
		r.record(ctx, journal.EventRetried, job.Room, call, fmt.Sprintf("retry %d of %d", retry.RetryAttempts, maxDialRetries))
	case DecisionEscalate:
		if _, err := r.escalator.Escalate(ctx, call, "could not reach patient by phone"); err != nil {
			log.Error("escalation after connect failure failed", "err", err)
			return
		}
		r.record(ctx, journal.EventEscalated, job.Room, call, "could not reach patient by phone")
	case DecisionStop:
		log.Info("no retries or backup contacts remain; ending chain")
	}
}

func (r *Runner) record(ctx context.Context, t journal.EventType, room string, call calls.Context, message string) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Record(ctx, t, room, call.PhoneNumber, call.MedicineName, message); err != nil {
		r.log.Warn("journal append failed", "err", err)
	}
}
