package media

import (
	"errors"
	"fmt"
)

// PlatformError is the decoded Twirp-style error body the platform returns.
//
// Meta carries SIP setup details on connect failures, keyed the way the
// platform sends them ("sip_status_code", "sip_status").
type PlatformError struct {
	Code       string            `json:"code"`
	Msg        string            `json:"msg"`
	Meta       map[string]string `json:"meta,omitempty"`
	HTTPStatus int               `json:"-"`
}

func (e *PlatformError) Error() string {
	if len(e.Meta) > 0 {
		if sc, ok := e.Meta["sip_status_code"]; ok {
			return fmt.Sprintf("media: %s: %s (sip status %s)", e.Code, e.Msg, sc)
		}
	}
	return fmt.Sprintf("media: %s: %s", e.Code, e.Msg)
}

// IsNotFound reports whether err is the platform's not_found error. Rooms
// already deleted and participants already gone fall in this class; callers
// treat it as a benign race.
func IsNotFound(err error) bool {
	var pe *PlatformError
	return errors.As(err, &pe) && pe.Code == "not_found"
}

// SIPStatusCode extracts the SIP status code from a connect-time failure,
// or "" when the error carries none.
func SIPStatusCode(err error) string {
	var pe *PlatformError
	if !errors.As(err, &pe) {
		return ""
	}
	return pe.Meta["sip_status_code"]
}
