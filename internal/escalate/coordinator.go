// Package escalate re-routes a reminder to the next backup contact when the
// primary recipient cannot be reached or refuses.
package escalate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"med-reminder/internal/calls"
	"med-reminder/internal/prompts"
)

// Dispatcher starts the successor call session. Satisfied by
// *dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, call calls.Context) (string, error)
}

// ErrNoContacts means the backup list is exhausted; the chain ends here.
var ErrNoContacts = errors.New("escalate: no backup contacts left")

// Coordinator performs at most one escalation hop per invocation. The chain
// continues only because the successor call's own agent may escalate again.
type Coordinator struct {
	dispatcher Dispatcher
	log        *slog.Logger
}

func NewCoordinator(dispatcher Dispatcher, log *slog.Logger) (*Coordinator, error) {
	if dispatcher == nil {
		return nil, errors.New("escalate: dispatcher is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{dispatcher: dispatcher, log: log}, nil
}

// Escalate pops the first backup contact off cur's list and dispatches a
// successor call targeting it. The successor carries the shrunken list, the
// original patient's name, and an escalation-specific script.
//
// Dispatch failures are logged and returned, never retried here.
func (c *Coordinator) Escalate(ctx context.Context, cur calls.Context, reason string) (calls.Context, error) {
	if len(cur.HeadOfFamilyPhones) == 0 {
		c.log.Info("no more head of family contacts to call", "phone", cur.PhoneNumber)
		return calls.Context{}, ErrNoContacts
	}

	next := cur.HeadOfFamilyPhones[0]
	c.log.Info("escalating to head of family", "next", next, "reason", reason)

	succ := cur
	succ.PhoneNumber = next
	succ.HeadOfFamilyPhones = slices.Clone(cur.HeadOfFamilyPhones[1:])
	succ.IsHeadOfFamilyCall = true
	succ.OriginalPatient = cur.UserName
	succ.CallReason = reason
	succ.Prompt = prompts.Escalation(next, cur.UserName, cur.MedicineName)

	id, err := c.dispatcher.Dispatch(ctx, succ)
	if err != nil {
		c.log.Error("failed to dispatch head of family call", "next", next, "err", err)
		return calls.Context{}, fmt.Errorf("escalate: dispatch to %s: %w", next, err)
	}

	c.log.Info("dispatched head of family call", "next", next, "dispatch_id", id)
	return succ, nil
}
