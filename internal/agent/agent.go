// Package agent owns one call's lifecycle: confirmation state, refusal
// tolerance, voicemail suspicion, and the single-use end-of-call gate. The
// conversational engine invokes agent actions when it recognizes the
// corresponding user intent; the agent decides what happens next.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"med-reminder/internal/attempts"
	"med-reminder/internal/calls"
	"med-reminder/internal/journal"
	"med-reminder/internal/media"
)

// maxRefusals is the refusal tolerance. The count is incremented before the
// comparison, so a single refusal already escalates; the tolerance means
// "zero persuasion retries", which is intended.
const maxRefusals = 1

// Escalator hands the chain to the next backup contact. Satisfied by
// *escalate.Coordinator.
type Escalator interface {
	Escalate(ctx context.Context, cur calls.Context, reason string) (calls.Context, error)
}

// Status tags the typed result of each agent action.
type Status string

const (
	StatusConfirmed            Status = "confirmed"
	StatusWillBuy              Status = "will_buy"
	StatusRefusedRetry         Status = "refused_retry"
	StatusRefusedEscalated     Status = "refused_escalated"
	StatusNotReady             Status = "not_ready"
	StatusEnded                Status = "ended"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusVoicemail            Status = "voicemail"
	StatusUnavailable          Status = "unavailable"
	StatusTransferred          Status = "transferred"
	StatusTransferFailed       Status = "transfer_failed"
	StatusNoTransferTarget     Status = "no_transfer_target"
)

// Result is the structured outcome returned to the conversational engine.
type Result struct {
	Status   Status `json:"status"`
	User     string `json:"user,omitempty"`
	Medicine string `json:"medicine,omitempty"`
	Count    int    `json:"count,omitempty"`
}

// Agent is the per-call state machine. It is driven by a single logical
// thread: the engine invokes at most one action at a time, so fields need
// no locking.
type Agent struct {
	call    calls.Context
	room    string
	session Session

	rooms media.RoomClient
	sip   media.SIPClient

	attempts  attempts.Counter
	escalator Escalator
	journal   *journal.Service
	log       *slog.Logger

	// participant is the connected remote party, set once the outbound call
	// connects; required for transfers.
	participant string

	refusalCount       int
	voicemailSuspected bool

	// canEndCall is a single-use permission: set immediately before a
	// legitimate termination, cleared immediately after. While false, any
	// termination request is rejected and the conversation continues.
	canEndCall bool
}

type Config struct {
	Call    calls.Context
	Room    string
	Session Session

	Rooms media.RoomClient
	SIP   media.SIPClient

	Attempts  attempts.Counter
	Escalator Escalator

	// Journal is optional; outcome records are best-effort.
	Journal *journal.Service

	Log *slog.Logger
}

func New(cfg Config) (*Agent, error) {
	if cfg.Session == nil {
		return nil, errors.New("agent: session is required")
	}
	if cfg.Rooms == nil || cfg.SIP == nil {
		return nil, errors.New("agent: media clients are required")
	}
	if cfg.Attempts == nil {
		return nil, errors.New("agent: attempt counter is required")
	}
	if cfg.Escalator == nil {
		return nil, errors.New("agent: escalator is required")
	}
	if cfg.Room == "" {
		return nil, errors.New("agent: room is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Agent{
		call:      cfg.Call,
		room:      cfg.Room,
		session:   cfg.Session,
		rooms:     cfg.Rooms,
		sip:       cfg.SIP,
		attempts:  cfg.Attempts,
		escalator: cfg.Escalator,
		journal:   cfg.Journal,
		log:       log.With("room", cfg.Room, "phone", cfg.Call.PhoneNumber),
	}, nil
}

// SetParticipant binds the connected remote party once the outbound call
// answers.
func (a *Agent) SetParticipant(identity string) {
	a.participant = identity
}

// Call returns the immutable context this agent was built from.
func (a *Agent) Call() calls.Context { return a.call }

// CanEndCall reports whether the termination gate is currently open.
func (a *Agent) CanEndCall() bool { return a.canEndCall }

// hangup ends the call by deleting the session room. A room that is already
// gone (e.g. the SIP call never connected) is a benign race.
func (a *Agent) hangup(ctx context.Context) error {
	if err := a.rooms.DeleteRoom(ctx, a.room); err != nil {
		if media.IsNotFound(err) {
			a.log.Debug("room already deleted")
			return nil
		}
		return fmt.Errorf("agent: hangup: %w", err)
	}
	return nil
}

// record journals an outcome; failures are logged, never propagated.
func (a *Agent) record(ctx context.Context, t journal.EventType, message string) {
	if a.journal == nil {
		return
	}
	if err := a.journal.Record(ctx, t, a.room, a.call.PhoneNumber, a.call.MedicineName, message); err != nil {
		a.log.Warn("journal append failed", "err", err)
	}
}

// finishCall speaks a closing reply, waits for playout, and hangs up. The
// end-call gate is opened for exactly this window and closed again after.
func (a *Agent) finishCall(ctx context.Context, reply string) error {
	a.canEndCall = true
	if reply != "" {
		if err := a.session.GenerateReply(ctx, reply); err != nil {
			return err
		}
	}
	if err := a.session.WaitForPlayout(ctx); err != nil {
		return err
	}
	if err := a.hangup(ctx); err != nil {
		return err
	}
	a.canEndCall = false
	return nil
}

// ConfirmTaken handles "user confirmed they took or will take the dose".
func (a *Agent) ConfirmTaken(ctx context.Context, confirmation string) (Result, error) {
	a.log.Info("medication confirmed", "user", a.call.UserName, "confirmation", confirmation)

	if err := a.finishCall(ctx, replyThanksTaken); err != nil {
		return Result{}, err
	}
	a.record(ctx, journal.EventConfirmed, confirmation)
	return Result{Status: StatusConfirmed, User: a.call.UserName, Medicine: a.call.MedicineName}, nil
}

// ConfirmWillBuy handles "user confirmed they will refill".
func (a *Agent) ConfirmWillBuy(ctx context.Context, confirmation string) (Result, error) {
	a.log.Info("refill confirmed", "user", a.call.UserName, "confirmation", confirmation)

	if err := a.finishCall(ctx, replyThanksWillBuy); err != nil {
		return Result{}, err
	}
	a.record(ctx, journal.EventWillBuy, confirmation)
	return Result{Status: StatusWillBuy, User: a.call.UserName, Medicine: a.call.MedicineName}, nil
}

// Decline handles a refusal. Within tolerance the agent persuades once and
// the call continues; past tolerance it announces escalation, hands the
// chain to the next backup contact, and ends the call.
func (a *Agent) Decline(ctx context.Context, reason string) (Result, error) {
	a.refusalCount++
	a.log.Info("medication declined",
		"user", a.call.UserName,
		"count", a.refusalCount,
		"tolerance", maxRefusals,
		"reason", reason,
	)

	if a.refusalCount < maxRefusals {
		if err := a.session.GenerateReply(ctx, replyPersuade); err != nil {
			return Result{}, err
		}
		return Result{Status: StatusRefusedRetry, Count: a.refusalCount}, nil
	}

	a.record(ctx, journal.EventRefused, reason)
	a.canEndCall = true
	if err := a.session.GenerateReply(ctx, replyEscalating); err != nil {
		return Result{}, err
	}
	if err := a.session.WaitForPlayout(ctx); err != nil {
		return Result{}, err
	}
	a.escalateIfPossible(ctx, "patient refused medication")
	if err := a.hangup(ctx); err != nil {
		return Result{}, err
	}
	a.canEndCall = false
	return Result{Status: StatusRefusedEscalated}, nil
}

// escalateIfPossible hands the chain on when backup contacts remain.
// Escalation failures end the chain; they never fail the current action.
func (a *Agent) escalateIfPossible(ctx context.Context, reason string) {
	if len(a.call.HeadOfFamilyPhones) == 0 {
		return
	}
	if _, err := a.escalator.Escalate(ctx, a.call, reason); err != nil {
		a.log.Error("escalation failed", "err", err)
		return
	}
	a.record(ctx, journal.EventEscalated, reason)
}

// Transfer connects the live party to the transfer target: the explicit
// override if set, otherwise the first backup contact. With no target the
// action is a silent no-op.
func (a *Agent) Transfer(ctx context.Context, reason string) (Result, error) {
	target := a.call.TransferTo
	if target == "" && len(a.call.HeadOfFamilyPhones) > 0 {
		target = a.call.HeadOfFamilyPhones[0]
	}
	if target == "" {
		return Result{Status: StatusNoTransferTarget}, nil
	}

	a.log.Info("transferring call", "target", target, "reason", reason)

	if err := a.session.GenerateReply(ctx, replyAnnounceTransfer); err != nil {
		if !errors.Is(err, ErrSessionClosing) {
			return Result{}, err
		}
		a.log.Info("session is closing; skipping transfer announcement")
	}

	err := a.sip.TransferParticipant(ctx, a.room, a.participant, "tel:"+target)
	if err != nil {
		if media.IsNotFound(err) {
			// The party already left; nothing to transfer.
			a.log.Warn("participant missing during transfer; likely already left call")
			return Result{Status: StatusTransferFailed}, nil
		}
		a.log.Error("transfer failed", "err", err)
		if rerr := a.session.GenerateReply(ctx, replyTransferFailed); rerr != nil {
			if errors.Is(rerr, ErrSessionClosing) {
				a.log.Info("session closing; unable to play transfer failure message")
			} else {
				a.log.Warn("transfer failure message not delivered", "err", rerr)
			}
		}
		return Result{Status: StatusTransferFailed}, nil
	}

	a.log.Info("transferred call", "target", target)
	return Result{Status: StatusTransferred}, nil
}

// EndCall is the single termination gate. Unless a terminal outcome has just
// opened the gate, the request is rejected and the conversation continues.
func (a *Agent) EndCall(ctx context.Context, reason string) (Result, error) {
	if !a.canEndCall {
		a.log.Info("end call requested before confirmation; continuing conversation")
		if err := a.session.GenerateReply(ctx, replyNotReady); err != nil {
			return Result{}, err
		}
		return Result{Status: StatusNotReady}, nil
	}

	a.log.Info("ending call", "participant", a.participant, "reason", reason)
	if err := a.session.WaitForPlayout(ctx); err != nil {
		return Result{}, err
	}
	if err := a.hangup(ctx); err != nil {
		return Result{}, err
	}
	a.canEndCall = false
	return Result{Status: StatusEnded}, nil
}

// DetectedAnsweringMachine handles a suspected voicemail greeting. The
// engine can be over-eager, so the first detection only asks the party to
// confirm presence. The second detection counts a failed-contact cycle in
// the attempt ledger and ends the call, escalating once the cap is reached.
func (a *Agent) DetectedAnsweringMachine(ctx context.Context, greeting string) (Result, error) {
	a.log.Info("detected answering machine", "greeting", greeting)

	if !a.voicemailSuspected {
		a.voicemailSuspected = true
		a.log.Info("voicemail not confirmed yet; asking party to confirm presence")
		if err := a.session.GenerateReply(ctx, replyVoicemailCheck); err != nil {
			return Result{}, err
		}
		return Result{Status: StatusAwaitingConfirmation}, nil
	}

	key := attempts.Key(a.call.PhoneNumber, a.call.MedicineName)
	count, err := a.attempts.Incr(ctx, key)
	if err != nil {
		// Ledger is best-effort; losing a count must not strand the call.
		a.log.Error("attempt ledger increment failed", "err", err)
	}

	a.record(ctx, journal.EventVoicemail, greeting)
	if count >= calls.MaxCallAttempts {
		a.log.Info("max attempts reached; calling head of family", "attempts", count)
		a.escalateIfPossible(ctx, fmt.Sprintf("patient did not answer after %d attempts", calls.MaxCallAttempts))
	} else {
		a.log.Info("voicemail attempt recorded", "attempt", count, "cap", calls.MaxCallAttempts)
	}

	if err := a.hangup(ctx); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusVoicemail}, nil
}

// PatientUnavailable handles "the patient cannot come to the phone".
func (a *Agent) PatientUnavailable(ctx context.Context, reason string) (Result, error) {
	a.log.Info("patient unavailable", "user", a.call.UserName, "reason", reason)

	a.record(ctx, journal.EventUnavailable, reason)
	a.escalateIfPossible(ctx, reason)
	if err := a.hangup(ctx); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusUnavailable}, nil
}
