// Package dispatch requests new call sessions from the media platform.
// Starting a fresh session is the only way a call chain continues; each hop
// is an independent session for fault isolation.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"med-reminder/internal/calls"
	"med-reminder/internal/journal"
	"med-reminder/internal/media"
)

var ErrNoDispatchID = errors.New("dispatch: response missing dispatch id")

// Dispatcher serializes a Call Context as session metadata and asks the
// platform to start an agent session for it.
type Dispatcher struct {
	client    media.DispatchClient
	agentName string

	// journal is optional; dispatch events are best-effort records.
	journal *journal.Service

	log   *slog.Logger
	clock func() time.Time
}

func New(client media.DispatchClient, agentName string, jrnl *journal.Service, log *slog.Logger) (*Dispatcher, error) {
	if client == nil {
		return nil, errors.New("dispatch: client is required")
	}
	if agentName == "" {
		return nil, errors.New("dispatch: agent name is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		client:    client,
		agentName: agentName,
		journal:   jrnl,
		log:       log,
		clock:     time.Now,
	}, nil
}

// Dispatch starts a new call session for call and returns the platform's
// dispatch id. Failures are returned to the caller; internal callers
// (escalation, retry) log and swallow them, the HTTP layer surfaces them.
func (d *Dispatcher) Dispatch(ctx context.Context, call calls.Context) (string, error) {
	if err := call.Validate(); err != nil {
		return "", err
	}

	metadata, err := call.Marshal()
	if err != nil {
		return "", err
	}

	room := roomName(call, d.clock().UTC())
	id, err := d.client.CreateDispatch(ctx, d.agentName, room, metadata)
	if err != nil {
		return "", fmt.Errorf("dispatch: create dispatch for %s: %w", room, err)
	}
	if id == "" {
		return "", ErrNoDispatchID
	}

	d.log.Info("call dispatched",
		"room", room,
		"phone", call.PhoneNumber,
		"call_type", string(call.CallType),
		"retry_attempts", call.RetryAttempts,
		"dispatch_id", id,
	)
	d.record(ctx, room, call, id)
	return id, nil
}

func (d *Dispatcher) record(ctx context.Context, room string, call calls.Context, dispatchID string) {
	if d.journal == nil {
		return
	}
	err := d.journal.Append(ctx, journal.Event{
		Type:       journal.EventDispatched,
		Room:       room,
		Phone:      call.PhoneNumber,
		Medicine:   call.MedicineName,
		DispatchID: dispatchID,
		Message:    string(call.CallType),
	})
	if err != nil {
		d.log.Warn("journal append failed", "err", err)
	}
}

// roomName derives a session identifier unique across retries and
// escalations: kind prefix, phone digits, current unix time.
func roomName(call calls.Context, now time.Time) string {
	prefix := "med-call"
	switch {
	case call.IsHeadOfFamilyCall:
		prefix = "med-hof"
	case call.RetryAttempts > 0:
		prefix = "med-retry"
	}
	digits := strings.ReplaceAll(call.PhoneNumber, "+", "")
	return fmt.Sprintf("%s-%s-%d", prefix, digits, now.Unix())
}
