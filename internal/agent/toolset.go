package agent

import (
	"context"
	"errors"
	"fmt"
)

// ToolName identifies an agent action the conversational engine may invoke.
// The set is fixed and enumerable; dispatch is a switch, not reflection.
type ToolName string

const (
	ToolConfirmTaken     ToolName = "confirm_medication_taken"
	ToolConfirmWillBuy   ToolName = "confirm_will_buy"
	ToolDecline          ToolName = "decline_medication"
	ToolTransfer         ToolName = "transfer_call"
	ToolEndCall          ToolName = "end_call"
	ToolAnsweringMachine ToolName = "detected_answering_machine"
	ToolUnavailable      ToolName = "patient_unavailable"
)

// ToolNames lists every action, in a stable order, for registering the
// toolset with the engine once per session.
func ToolNames() []ToolName {
	return []ToolName{
		ToolConfirmTaken,
		ToolConfirmWillBuy,
		ToolDecline,
		ToolTransfer,
		ToolEndCall,
		ToolAnsweringMachine,
		ToolUnavailable,
	}
}

var ErrUnknownTool = errors.New("agent: unknown tool")

// Invoke dispatches a recognized user intent to the matching action. The
// arg carries the engine's free-text summary (confirmation wording, refusal
// reason, voicemail greeting).
func (a *Agent) Invoke(ctx context.Context, name ToolName, arg string) (Result, error) {
	switch name {
	case ToolConfirmTaken:
		return a.ConfirmTaken(ctx, arg)
	case ToolConfirmWillBuy:
		return a.ConfirmWillBuy(ctx, arg)
	case ToolDecline:
		return a.Decline(ctx, arg)
	case ToolTransfer:
		return a.Transfer(ctx, arg)
	case ToolEndCall:
		return a.EndCall(ctx, arg)
	case ToolAnsweringMachine:
		return a.DetectedAnsweringMachine(ctx, arg)
	case ToolUnavailable:
		return a.PatientUnavailable(ctx, arg)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
}
