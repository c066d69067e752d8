package media

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// The platform authenticates server API calls with short-lived HS256 JWTs
// minted from the API key/secret pair. The key is the issuer; grants are
// embedded as a custom claim.

// VideoGrant enumerates the platform permissions a token carries.
type VideoGrant struct {
	RoomCreate bool   `json:"roomCreate,omitempty"`
	RoomAdmin  bool   `json:"roomAdmin,omitempty"`
	RoomList   bool   `json:"roomList,omitempty"`
	Room       string `json:"room,omitempty"`
}

type tokenClaims struct {
	Video VideoGrant `json:"video"`
	jwt.RegisteredClaims
}

var ErrMissingCredentials = errors.New("media: api key and secret required")

// AccessToken mints a signed platform API token valid for ttl from now.
func AccessToken(apiKey, apiSecret, identity string, grant VideoGrant, now time.Time, ttl time.Duration) (string, error) {
	if apiKey == "" || apiSecret == "" {
		return "", ErrMissingCredentials
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	claims := tokenClaims{
		Video: grant,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    apiKey,
			Subject:   identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(apiSecret))
}
