package agent

import (
	"context"
	"errors"
)

// Session is the conversational engine surface the state machine drives.
// The speech stack (recognition, synthesis, turn detection) lives behind it;
// the state machine only ever asks it to speak and to finish speaking.
type Session interface {
	// GenerateReply asks the engine to speak per the given instructions.
	// Returns ErrSessionClosing when the session is already draining.
	GenerateReply(ctx context.Context, instructions string) error

	// WaitForPlayout blocks until all pending outgoing speech has been heard
	// by the call party. Termination must never cut off an utterance.
	WaitForPlayout(ctx context.Context) error
}

// ErrSessionClosing is returned by Session implementations when the live
// session is shutting down and can no longer speak.
var ErrSessionClosing = errors.New("agent: session closing")

// Reply instructions handed to the conversational engine. The engine decides
// the exact wording; these state the intent.
const (
	replyThanksTaken = "Thank them warmly for confirming and wish them good health. Then end the call."

	replyThanksWillBuy = "Thank them for confirming they'll get the refill. Remind them not to wait too long. Then end the call."

	replyEscalating = "In one short sentence, tell them you'll inform their family so someone can help."

	replyPersuade = "Briefly explain why the dose matters and ask them once more to take it now."

	replyAnnounceTransfer = "Let the user know you'll transfer them to someone who can help."

	replyTransferFailed = "Apologize that you couldn't complete the transfer."

	replyNotReady = "We still need a clear confirmation or reason to end the call. " +
		"Please continue the conversation with the user."

	replyVoicemailCheck = "Say: 'I might be talking to a voicemail. " +
		"If you're there, please let me know so I can continue.' " +
		"Then pause to listen."
)
