package session

import "med-reminder/internal/calls"

// Decision says what to do after an outbound call failed to connect.
type Decision string

const (
	// DecisionRetry re-dispatches the same number with a bumped retry count.
	DecisionRetry Decision = "retry"
	// DecisionEscalate hands the chain to the next backup contact.
	DecisionEscalate Decision = "escalate"
	// DecisionStop ends the chain.
	DecisionStop Decision = "stop"
)

// Transient SIP setup failures worth retrying: busy here, temporarily
// unavailable on the far side.
const (
	sipStatusBusy        = "486"
	sipStatusUnavailable = "480"
)

// maxDialRetries shares the failed-contact cap: a number is dialed at most
// this many times before the chain moves on.
const maxDialRetries = calls.MaxCallAttempts

// Decide maps a connect failure to the next action. Decision only, no side
// effects; the Runner applies it.
//
// Busy and temporarily-unavailable below the retry cap mean the patient may
// simply be on another call, so the same number is tried again. Anything
// else, or a retried number still failing, moves to the backup contacts when
// there are any.
func Decide(sipStatus string, retryAttempts, backupContacts int) Decision {
	transient := sipStatus == sipStatusBusy || sipStatus == sipStatusUnavailable
	if transient && retryAttempts < maxDialRetries {
		return DecisionRetry
	}
	if backupContacts > 0 {
		return DecisionEscalate
	}
	return DecisionStop
}
