package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/stationops/wrench/pkg/domain/types"
)

// Connector is a reachable external system spoken to over JSON-RPC.
// Connectors are created and edited by an external admin surface; this
// core only reads them, except for persisting OAuth tokens after a
// completed authorization flow.
type Connector struct {
	ID       types.ConnectorID `json:"id" firestore:"id"`
	Name     string            `json:"name" firestore:"name"`
	BaseURL  string            `json:"base_url" firestore:"base_url"`
	Enabled  bool              `json:"enabled" firestore:"enabled"`
	Auth     types.AuthScheme  `json:"auth" firestore:"auth"`
	AuthConf AuthConfig        `json:"auth_config" firestore:"auth_config"`

	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updated_at"`
}

// AuthConfig holds scheme-specific credentials and, for oauth2, the
// discovered endpoints and issued tokens.
type AuthConfig struct {
	// bearer
	Token string `json:"token,omitempty" firestore:"token"`

	// api_key
	HeaderName  string `json:"header_name,omitempty" firestore:"header_name"`
	HeaderValue string `json:"header_value,omitempty" firestore:"header_value"`

	// oauth2
	ClientID              string            `json:"client_id,omitempty" firestore:"client_id"`
	ClientSecret          string            `json:"client_secret,omitempty" firestore:"client_secret"`
	AccessToken           string            `json:"access_token,omitempty" firestore:"access_token"`
	RefreshToken          string            `json:"refresh_token,omitempty" firestore:"refresh_token"`
	TokenType             string            `json:"token_type,omitempty" firestore:"token_type"`
	Scope                 string            `json:"scope,omitempty" firestore:"scope"`
	Scopes                []string          `json:"scopes,omitempty" firestore:"scopes"`
	IssuerURL             string            `json:"issuer_url,omitempty" firestore:"issuer_url"`
	AuthorizationEndpoint string            `json:"authorization_endpoint,omitempty" firestore:"authorization_endpoint"`
	TokenEndpoint         string            `json:"token_endpoint,omitempty" firestore:"token_endpoint"`
	Resource              string            `json:"resource,omitempty" firestore:"resource"`
	Audience              string            `json:"audience,omitempty" firestore:"audience"`
	AuthorizationParams   map[string]string `json:"authorization_params,omitempty" firestore:"authorization_params,omitempty"`
	TokenParams           map[string]string `json:"token_params,omitempty" firestore:"token_params,omitempty"`
	TokenExpiresAt        *time.Time        `json:"token_expires_at,omitempty" firestore:"token_expires_at,omitempty"`
}

// Validate checks connector invariants
func (c *Connector) Validate() error {
	if c.ID == "" {
		return goerr.New("connector ID is required")
	}
	if c.Name == "" {
		return goerr.New("connector name is required", goerr.V("id", c.ID))
	}
	if c.BaseURL == "" {
		return goerr.New("connector base URL is required", goerr.V("id", c.ID))
	}
	if !c.Auth.IsValid() {
		return goerr.New("invalid connector auth scheme",
			goerr.V("id", c.ID), goerr.V("auth", c.Auth))
	}
	return nil
}
