package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the platform's Twirp-style HTTP API with JSON bodies.
// It intentionally avoids any provider SDK dependency; only the endpoints
// this system needs are implemented.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string

	httpClient *http.Client
	now        func() time.Time
}

type ClientConfig struct {
	URL       string
	APIKey    string
	APISecret string

	// Timeout bounds each platform request. CreateParticipant with
	// WaitUntilAnswered rides the platform's own connection timeout, so the
	// default is generous.
	Timeout time.Duration
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("media: url required")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrMissingCredentials
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(httpURL(cfg.URL), "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}, nil
}

// httpURL maps ws(s) platform URLs onto their http(s) API origin.
func httpURL(u string) string {
	switch {
	case strings.HasPrefix(u, "ws://"):
		return "http://" + strings.TrimPrefix(u, "ws://")
	case strings.HasPrefix(u, "wss://"):
		return "https://" + strings.TrimPrefix(u, "wss://")
	default:
		return u
	}
}

const (
	pathCreateDispatch         = "/twirp/livekit.AgentDispatchService/CreateDispatch"
	pathDeleteRoom             = "/twirp/livekit.RoomService/DeleteRoom"
	pathCreateSIPParticipant   = "/twirp/livekit.SIP/CreateSIPParticipant"
	pathTransferSIPParticipant = "/twirp/livekit.SIP/TransferSIPParticipant"
)

type createDispatchRequest struct {
	AgentName string `json:"agent_name"`
	Room      string `json:"room"`
	Metadata  string `json:"metadata,omitempty"`
}

// createDispatchResponse tolerates the id living at several places across
// platform versions: top-level, dispatch_id, or nested under dispatch.
type createDispatchResponse struct {
	ID         string `json:"id"`
	DispatchID string `json:"dispatch_id"`
	Dispatch   *struct {
		ID         string `json:"id"`
		DispatchID string `json:"dispatch_id"`
	} `json:"dispatch"`
}

func (r createDispatchResponse) id() string {
	if r.DispatchID != "" {
		return r.DispatchID
	}
	if r.ID != "" {
		return r.ID
	}
	if r.Dispatch != nil {
		if r.Dispatch.DispatchID != "" {
			return r.Dispatch.DispatchID
		}
		return r.Dispatch.ID
	}
	return ""
}

func (c *Client) CreateDispatch(ctx context.Context, agentName, room, metadata string) (string, error) {
	var resp createDispatchResponse
	err := c.do(ctx, pathCreateDispatch, VideoGrant{RoomCreate: true, RoomAdmin: true},
		createDispatchRequest{AgentName: agentName, Room: room, Metadata: metadata}, &resp)
	if err != nil {
		return "", err
	}
	id := resp.id()
	if id == "" {
		return "", fmt.Errorf("media: dispatch response missing dispatch id")
	}
	return id, nil
}

type deleteRoomRequest struct {
	Room string `json:"room"`
}

func (c *Client) DeleteRoom(ctx context.Context, room string) error {
	return c.do(ctx, pathDeleteRoom, VideoGrant{RoomAdmin: true, Room: room},
		deleteRoomRequest{Room: room}, nil)
}

type createSIPParticipantRequest struct {
	SIPTrunkID          string `json:"sip_trunk_id"`
	SIPCallTo           string `json:"sip_call_to"`
	RoomName            string `json:"room_name"`
	ParticipantIdentity string `json:"participant_identity"`
	WaitUntilAnswered   bool   `json:"wait_until_answered,omitempty"`
}

func (c *Client) CreateParticipant(ctx context.Context, req SIPParticipantRequest) error {
	return c.do(ctx, pathCreateSIPParticipant, VideoGrant{RoomAdmin: true, Room: req.Room},
		createSIPParticipantRequest{
			SIPTrunkID:          req.TrunkID,
			SIPCallTo:           req.CallTo,
			RoomName:            req.Room,
			ParticipantIdentity: req.Identity,
			WaitUntilAnswered:   req.WaitUntilAnswered,
		}, nil)
}

type transferSIPParticipantRequest struct {
	RoomName            string `json:"room_name"`
	ParticipantIdentity string `json:"participant_identity"`
	TransferTo          string `json:"transfer_to"`
}

func (c *Client) TransferParticipant(ctx context.Context, room, identity, transferTo string) error {
	return c.do(ctx, pathTransferSIPParticipant, VideoGrant{RoomAdmin: true, Room: room},
		transferSIPParticipantRequest{
			RoomName:            room,
			ParticipantIdentity: identity,
			TransferTo:          transferTo,
		}, nil)
}

// do posts a JSON request to a Twirp path and decodes the response into out.
// Non-2xx responses are decoded into *PlatformError.
func (c *Client) do(ctx context.Context, path string, grant VideoGrant, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("media: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("media: build request: %w", err)
	}

	token, err := AccessToken(c.apiKey, c.apiSecret, c.apiKey, grant, c.now().UTC(), 10*time.Minute)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("media: %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("media: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		pe := &PlatformError{HTTPStatus: resp.StatusCode}
		if err := json.Unmarshal(data, pe); err != nil || pe.Code == "" {
			pe.Code = "internal"
			pe.Msg = strings.TrimSpace(string(data))
		}
		return pe
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("media: decode response: %w", err)
	}
	return nil
}
