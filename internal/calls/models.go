package calls

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// CallType selects the purpose of an outbound call.
type CallType string

const (
	CallTypeReminder CallType = "reminder"
	CallTypeBuy      CallType = "buy"
)

// UserType categorizes the patient for prompt selection and routing.
// Kids are never called directly; their head of family is.
type UserType string

const (
	UserTypeSenior UserType = "senior"
	UserTypeAdult  UserType = "adult"
	UserTypeKid    UserType = "kid"
)

// MaxCallAttempts bounds both connect-time retries to the same number and
// voicemail/no-answer cycles before the call chain escalates.
const MaxCallAttempts = 2

// Medicine describes the medication the call is about.
type Medicine struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	NextDoseTime string `json:"next_dose_time"`
	Instructions string `json:"instructions,omitempty"`
}

// Context is the immutable per-attempt call record. It is created once from
// dispatch metadata and never mutated for the duration of that call; every
// retry or escalation hop derives a new Context from the previous one.
//
// The JSON form of Context is the session-metadata contract between the
// dispatcher and the agent worker. It is the only channel by which
// dispatch-time context reaches the live agent.
type Context struct {
	PhoneNumber string   `json:"phone_number"`
	CallType    CallType `json:"call_type"`
	UserName    string   `json:"user_name"`
	UserType    UserType `json:"user_type,omitempty"`

	MedicineName string `json:"medicine_name"`
	Dosage       string `json:"dosage,omitempty"`
	NextDoseTime string `json:"next_dose_time,omitempty"`

	// Prompt is the instruction script for the conversational engine.
	Prompt string `json:"prompt,omitempty"`

	// HeadOfFamilyPhones is the ordered backup-contact list. Escalation pops
	// from the front; the remainder becomes the successor call's own list.
	HeadOfFamilyPhones []string `json:"head_of_family_phones,omitempty"`

	// TransferTo overrides the transfer target; empty means "first backup".
	TransferTo string `json:"transfer_to,omitempty"`

	RetryAttempts int `json:"retry_attempts"`

	IsHeadOfFamilyCall bool   `json:"is_head_of_family_call,omitempty"`
	OriginalPatient    string `json:"original_patient,omitempty"`
	CallReason         string `json:"call_reason,omitempty"`

	// Buy-call extras.
	RemainingCount int `json:"remaining_count,omitempty"`
	DaysSupplyLeft int `json:"days_supply_left,omitempty"`
}

var ErrInvalidContext = errors.New("calls: invalid context")

// Validate checks the fields every dispatched call must carry.
func (c Context) Validate() error {
	if strings.TrimSpace(c.PhoneNumber) == "" {
		return fmt.Errorf("%w: phone_number required", ErrInvalidContext)
	}
	if c.CallType != CallTypeReminder && c.CallType != CallTypeBuy {
		return fmt.Errorf("%w: unknown call_type %q", ErrInvalidContext, c.CallType)
	}
	if strings.TrimSpace(c.MedicineName) == "" {
		return fmt.Errorf("%w: medicine_name required", ErrInvalidContext)
	}
	return nil
}

// WithRetry derives the successor Context for a connect-failure retry to the
// same number.
func (c Context) WithRetry() Context {
	out := c
	out.HeadOfFamilyPhones = slices.Clone(c.HeadOfFamilyPhones)
	out.RetryAttempts = c.RetryAttempts + 1
	return out
}

// Marshal serializes the context for transport as session metadata.
func (c Context) Marshal() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("calls: marshal context: %w", err)
	}
	return string(b), nil
}

// ParseMetadata decodes session metadata back into a Context.
func ParseMetadata(metadata string) (Context, error) {
	var c Context
	if err := json.Unmarshal([]byte(metadata), &c); err != nil {
		return Context{}, fmt.Errorf("calls: parse metadata: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Context{}, err
	}
	return c, nil
}

func ValidUserType(t UserType) bool {
	switch t {
	case UserTypeSenior, UserTypeAdult, UserTypeKid:
		return true
	default:
		return false
	}
}
