package journal

import "time"

// Event is an immutable, append-only record of something that happened in a
// call chain.
//
// Invariants:
// - Events are never updated or deleted.
// - Appends are best-effort; call flow must never block on journal failures.
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates what happened.
	Type EventType `json:"type" db:"type"`

	// Room identifies the call session the event belongs to.
	Room string `json:"room,omitempty" db:"room"`

	Phone    string `json:"phone" db:"phone"`
	Medicine string `json:"medicine,omitempty" db:"medicine"`

	// DispatchID is the platform-assigned id for dispatched events.
	DispatchID string `json:"dispatch_id,omitempty" db:"dispatch_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventDispatched  EventType = "dispatched"
	EventConfirmed   EventType = "confirmed"
	EventWillBuy     EventType = "will_buy"
	EventRefused     EventType = "refused"
	EventEscalated   EventType = "escalated"
	EventVoicemail   EventType = "voicemail"
	EventUnavailable EventType = "unavailable"
	EventRetried     EventType = "retried"
	EventFailed      EventType = "failed"
)
