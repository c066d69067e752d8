package media

import "context"

// The media/SIP platform is an external collaborator. Core logic depends on
// these interfaces only; the concrete Client lives behind them.
//
// Rules:
// - No platform SDK calls outside this package.
// - Keep request types platform-agnostic; raw payloads stay internal to Client.

// DispatchClient starts a new, independently-scheduled agent call session.
type DispatchClient interface {
	// CreateDispatch returns the platform-assigned dispatch id.
	CreateDispatch(ctx context.Context, agentName, room, metadata string) (string, error)
}

// RoomClient controls session rooms. Deleting a room ends the call.
type RoomClient interface {
	DeleteRoom(ctx context.Context, room string) error
}

// SIPParticipantRequest asks the platform to dial a phone number into a room.
type SIPParticipantRequest struct {
	Room     string
	TrunkID  string
	CallTo   string
	Identity string

	// WaitUntilAnswered blocks the request until SIP setup resolves, so
	// connect-time failures surface here with a SIP status code.
	WaitUntilAnswered bool
}

// SIPClient places and transfers outbound SIP calls.
type SIPClient interface {
	CreateParticipant(ctx context.Context, req SIPParticipantRequest) error
	TransferParticipant(ctx context.Context, room, identity, transferTo string) error
}
