package types

import "fmt"

// AuthScheme is how the RPC client authenticates against a connector
type AuthScheme string

const (
	AuthNone   AuthScheme = "none"
	AuthBearer AuthScheme = "bearer"
	AuthAPIKey AuthScheme = "api_key"
	AuthOAuth2 AuthScheme = "oauth2"
)

// IsValid checks if the auth scheme is valid
func (a AuthScheme) IsValid() bool {
	switch a {
	case AuthNone, AuthBearer, AuthAPIKey, AuthOAuth2:
		return true
	default:
		return false
	}
}

// String returns the string representation of the auth scheme
func (a AuthScheme) String() string {
	return string(a)
}

// ParseAuthScheme parses a string into an AuthScheme
func ParseAuthScheme(s string) (AuthScheme, error) {
	a := AuthScheme(s)
	if !a.IsValid() {
		return "", fmt.Errorf("invalid auth scheme: %s", s)
	}
	return a, nil
}
