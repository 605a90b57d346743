package model

import (
	"time"

	"github.com/stationops/wrench/pkg/domain/types"
)

// OAuthFlow is the ephemeral state of one authorization-code flow, keyed by
// its random state token in a TTL cache. Losing it mid-flow forces the user
// to restart authorization; it is never a record of truth.
type OAuthFlow struct {
	State       string            `json:"state"`
	ConnectorID types.ConnectorID `json:"connector_id"`
	UserID      types.UserID      `json:"user_id"`

	RedirectURI  string `json:"redirect_uri"`
	CodeVerifier string `json:"code_verifier"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`

	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`

	Resource    string            `json:"resource,omitempty"`
	Audience    string            `json:"audience,omitempty"`
	Scopes      []string          `json:"scopes,omitempty"`
	TokenParams map[string]string `json:"token_params,omitempty"`

	Status         types.FlowStatus `json:"status"`
	Error          string           `json:"error,omitempty"`
	HasAccessToken bool             `json:"has_access_token"`
	CreatedAt      time.Time        `json:"created_at"`
}

// OAuth flow cache TTLs: generous while the user is off authorizing,
// short once the flow reaches a terminal state.
const (
	FlowPendingTTL = 15 * time.Minute
	FlowFinalTTL   = 5 * time.Minute
)
