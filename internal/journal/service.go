package journal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for journal events.
//
// It MUST be append-only. No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, from, to time.Time) ([]Event, error)
}

// Service records call-chain events and aggregates them for reporting.
//
// Callers should treat journal writes as best-effort: log failures and move
// on, never abort a live call over them.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("journal: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("journal: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.Phone == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record is the convenience form used from call flow.
func (s *Service) Record(ctx context.Context, t EventType, room, phone, medicine, message string) error {
	return s.Append(ctx, Event{
		Type:     t,
		Room:     room,
		Phone:    phone,
		Medicine: medicine,
		Message:  message,
	})
}

// Summary aggregates outcome counts over a time window.
type Summary struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	TotalEvents int `json:"total_events"`

	Dispatched  int `json:"dispatched"`
	Confirmed   int `json:"confirmed"`
	WillBuy     int `json:"will_buy"`
	Refused     int `json:"refused"`
	Escalated   int `json:"escalated"`
	Voicemail   int `json:"voicemail"`
	Unavailable int `json:"unavailable"`
	Retried     int `json:"retried"`
	Failed      int `json:"failed"`
}

func (s *Service) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	if s.repo == nil {
		return Summary{}, errors.New("journal: repository not configured")
	}
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return Summary{}, ErrInvalidEvent
	}

	events, err := s.repo.List(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{From: from, To: to}
	for _, e := range events {
		out.TotalEvents++
		switch e.Type {
		case EventDispatched:
			out.Dispatched++
		case EventConfirmed:
			out.Confirmed++
		case EventWillBuy:
			out.WillBuy++
		case EventRefused:
			out.Refused++
		case EventEscalated:
			out.Escalated++
		case EventVoicemail:
			out.Voicemail++
		case EventUnavailable:
			out.Unavailable++
		case EventRetried:
			out.Retried++
		case EventFailed:
			out.Failed++
		}
	}
	return out, nil
}
