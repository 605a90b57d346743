package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/stationops/wrench/pkg/domain/interfaces"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
	"github.com/stationops/wrench/pkg/utils/async"
	"github.com/stationops/wrench/pkg/utils/errutil"
	"github.com/stationops/wrench/pkg/utils/logging"
	"github.com/stationops/wrench/pkg/utils/safe"
)

const (
	stateBytes    = 24
	verifierBytes = 48

	tokenExchangeTimeout = 15 * time.Second
	maxTokenBody         = 1 << 20
)

// OAuthUseCase drives the Authorization Code + PKCE flow against a
// connector's authorization server. Nothing here throws for provider-side
// failures: every outcome lands in a structured result or a cached flow.
type OAuthUseCase struct {
	repo       interfaces.Repository
	flows      interfaces.FlowCache
	httpClient *http.Client
}

type OAuthOption func(*OAuthUseCase)

// WithOAuthHTTPClient sets the HTTP client used for discovery and exchange
func WithOAuthHTTPClient(hc *http.Client) OAuthOption {
	return func(uc *OAuthUseCase) {
		if hc != nil {
			uc.httpClient = hc
		}
	}
}

func NewOAuthUseCase(repo interfaces.Repository, flows interfaces.FlowCache, opts ...OAuthOption) *OAuthUseCase {
	uc := &OAuthUseCase{
		repo:       repo,
		flows:      flows,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// StartInput carries one authorization request
type StartInput struct {
	ConnectorID types.ConnectorID
	User        types.UserID
	RedirectURI string
}

// StartResult is the outcome of start: either a URL to redirect the user
// to, or a structured failure with a hint. Never both.
type StartResult struct {
	OK               bool   `json:"ok"`
	AuthorizationURL string `json:"authorization_url,omitempty"`
	State            string `json:"state,omitempty"`
	Error            string `json:"error,omitempty"`
	Hint             string `json:"hint,omitempty"`
}

// StatusResult reports where a flow stands
type StatusResult struct {
	Status         types.FlowStatus `json:"status"`
	Error          string           `json:"error,omitempty"`
	HasAccessToken bool             `json:"has_access_token"`
}

// CompleteResult is the outcome of the callback leg. Tokens are returned to
// the caller, which persists them into the connector's auth configuration.
type CompleteResult struct {
	OK          bool              `json:"ok"`
	ConnectorID types.ConnectorID `json:"connector_id,omitempty"`
	Error       string            `json:"error,omitempty"`

	AccessToken  string     `json:"access_token,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	Scope        string     `json:"scope,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Start discovers endpoints, builds the authorization URL with a fresh
// state and PKCE challenge, and caches the pending flow. Discovery or
// configuration problems come back as a structured failure with a hint.
func (uc *OAuthUseCase) Start(ctx context.Context, input *StartInput) (*StartResult, error) {
	connector, err := uc.repo.Connector().Get(ctx, input.ConnectorID)
	if err != nil {
		return nil, goerr.Wrap(ErrConnectorNotFound, "failed to load connector",
			goerr.V(ConnectorIDKey, input.ConnectorID), goerr.V("cause", err.Error()))
	}

	conf := connector.AuthConf
	if conf.ClientID == "" {
		return &StartResult{
			OK:    false,
			Error: "connector has no OAuth client_id configured",
			Hint:  "set client_id in the connector's auth configuration before starting authorization",
		}, nil
	}

	eps, err := uc.discoverEndpoints(ctx, connector.BaseURL,
		conf.AuthorizationEndpoint, conf.TokenEndpoint, conf.IssuerURL)
	if err != nil {
		errutil.Handle(ctx, err, "OAuth endpoint discovery failed")
		return &StartResult{
			OK:    false,
			Error: "could not discover authorization endpoints: " + err.Error(),
			Hint:  "supply authorization_endpoint and token_endpoint in the connector's auth configuration",
		}, nil
	}

	state, err := randomToken(stateBytes)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate state token")
	}
	verifier, err := randomToken(verifierBytes)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate code verifier")
	}
	challenge := pkceChallenge(verifier)

	// RFC 8707 resource indication: default to the connector URL itself
	resource := conf.Resource
	if resource == "" {
		resource = connector.BaseURL
	}

	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", conf.ClientID)
	query.Set("redirect_uri", input.RedirectURI)
	query.Set("state", state)
	query.Set("code_challenge", challenge)
	query.Set("code_challenge_method", "S256")
	if scope := scopeValue(conf); scope != "" {
		query.Set("scope", scope)
	}
	if resource != "" {
		query.Set("resource", resource)
	}
	if conf.Audience != "" {
		query.Set("audience", conf.Audience)
	}
	for k, v := range conf.AuthorizationParams {
		query.Set(k, v)
	}

	authURL := eps.Authorization
	if strings.Contains(authURL, "?") {
		authURL += "&" + query.Encode()
	} else {
		authURL += "?" + query.Encode()
	}

	flow := &model.OAuthFlow{
		State:                 state,
		ConnectorID:           connector.ID,
		UserID:                input.User,
		RedirectURI:           input.RedirectURI,
		CodeVerifier:          verifier,
		ClientID:              conf.ClientID,
		ClientSecret:          conf.ClientSecret,
		AuthorizationEndpoint: eps.Authorization,
		TokenEndpoint:         eps.Token,
		Resource:              resource,
		Audience:              conf.Audience,
		Scopes:                conf.Scopes,
		TokenParams:           conf.TokenParams,
		Status:                types.FlowPending,
		CreatedAt:             time.Now(),
	}
	uc.flows.Set(ctx, flow, model.FlowPendingTTL)

	uc.auditOAuth(ctx, input.User, connector.ID, "start")

	logging.From(ctx).Info("OAuth flow started",
		"connector_id", connector.ID,
		"authorization_endpoint", eps.Authorization,
	)

	return &StartResult{
		OK:               true,
		AuthorizationURL: authURL,
		State:            state,
	}, nil
}

// Status reports the flow's current state. An evicted or unknown state
// token reports expired, which is distinct from both error and pending; a
// connector or user mismatch is an error instead.
func (uc *OAuthUseCase) Status(ctx context.Context, state string, connectorID types.ConnectorID, user types.UserID) (*StatusResult, error) {
	flow, ok := uc.flows.Get(ctx, state)
	if !ok {
		return &StatusResult{Status: types.FlowExpired}, nil
	}

	if flow.ConnectorID != connectorID {
		return nil, goerr.New("flow belongs to a different connector",
			goerr.V(ConnectorIDKey, connectorID))
	}
	if flow.UserID != user {
		return nil, goerr.New("flow belongs to a different user")
	}

	return &StatusResult{
		Status:         flow.Status,
		Error:          flow.Error,
		HasAccessToken: flow.HasAccessToken,
	}, nil
}

// Complete finishes the flow from the provider callback. Provider errors,
// a missing code, and every exchange failure are recorded into the flow and
// returned as a failed result, never as a Go error.
func (uc *OAuthUseCase) Complete(ctx context.Context, state, code, providerErr, providerErrDesc string) (*CompleteResult, error) {
	flow, ok := uc.flows.Get(ctx, state)
	if !ok {
		return &CompleteResult{OK: false, Error: "authorization flow expired or unknown; restart authorization"}, nil
	}

	if providerErr != "" {
		msg := providerErr
		if providerErrDesc != "" {
			msg += ": " + providerErrDesc
		}
		return uc.failFlow(ctx, flow, msg), nil
	}
	if code == "" {
		return uc.failFlow(ctx, flow, "authorization callback carried no code"), nil
	}

	token, exchangeErr := uc.exchangeCode(ctx, flow, code)
	if exchangeErr != "" {
		return uc.failFlow(ctx, flow, exchangeErr), nil
	}

	flow.Status = types.FlowSuccess
	flow.Error = ""
	flow.HasAccessToken = true
	uc.flows.Set(ctx, flow, model.FlowFinalTTL)

	uc.auditOAuth(ctx, flow.UserID, flow.ConnectorID, "complete")

	result := &CompleteResult{
		OK:           true,
		ConnectorID:  flow.ConnectorID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Scope:        token.Scope,
	}
	if token.ExpiresIn > 0 {
		expiresAt := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
		result.ExpiresAt = &expiresAt
	}
	return result, nil
}

// PersistTokens writes exchanged tokens into the connector's auth
// configuration. Called by the HTTP callback handler after Complete.
func (uc *OAuthUseCase) PersistTokens(ctx context.Context, result *CompleteResult) error {
	connector, err := uc.repo.Connector().Get(ctx, result.ConnectorID)
	if err != nil {
		return goerr.Wrap(err, "failed to load connector for token persistence",
			goerr.V(ConnectorIDKey, result.ConnectorID))
	}

	connector.AuthConf.AccessToken = result.AccessToken
	connector.AuthConf.TokenType = result.TokenType
	connector.AuthConf.TokenExpiresAt = result.ExpiresAt
	if result.RefreshToken != "" {
		connector.AuthConf.RefreshToken = result.RefreshToken
	}
	if result.Scope != "" {
		connector.AuthConf.Scope = result.Scope
	}

	if _, err := uc.repo.Connector().Put(ctx, connector); err != nil {
		return goerr.Wrap(err, "failed to persist connector tokens",
			goerr.V(ConnectorIDKey, connector.ID))
	}
	return nil
}

func (uc *OAuthUseCase) failFlow(ctx context.Context, flow *model.OAuthFlow, msg string) *CompleteResult {
	flow.Status = types.FlowError
	flow.Error = msg
	flow.HasAccessToken = false
	uc.flows.Set(ctx, flow, model.FlowFinalTTL)

	logging.From(ctx).Warn("OAuth flow failed",
		"connector_id", flow.ConnectorID,
		"error", msg,
	)

	return &CompleteResult{OK: false, ConnectorID: flow.ConnectorID, Error: msg}
}

// tokenResponse is the subset of RFC 6749 §5.1 we read
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

// exchangeCode swaps the authorization code for tokens. The returned string
// is empty on success and a human-readable failure message otherwise.
func (uc *OAuthUseCase) exchangeCode(ctx context.Context, flow *model.OAuthFlow, code string) (*tokenResponse, string) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", flow.RedirectURI)
	form.Set("client_id", flow.ClientID)
	form.Set("code_verifier", flow.CodeVerifier)
	if flow.ClientSecret != "" {
		form.Set("client_secret", flow.ClientSecret)
	}
	if flow.Resource != "" {
		form.Set("resource", flow.Resource)
	}
	if flow.Audience != "" {
		form.Set("audience", flow.Audience)
	}
	for k, v := range flow.TokenParams {
		form.Set(k, v)
	}

	ctx, cancel := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, flow.TokenEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "failed to build token request: " + err.Error()
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := uc.httpClient.Do(req)
	if err != nil {
		return nil, "token exchange request failed: " + err.Error()
	}
	defer safe.Close(ctx, resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return nil, "failed to read token response: " + err.Error()
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, "token endpoint returned a non-JSON body (status " + resp.Status + ")"
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "token endpoint returned status " + resp.Status
	}
	if token.AccessToken == "" {
		return nil, "token response carried no access_token"
	}

	return &token, ""
}

func (uc *OAuthUseCase) auditOAuth(ctx context.Context, user types.UserID, connectorID types.ConnectorID, step string) {
	entry := &model.AuditEntry{
		Actor:  user,
		Action: model.AuditActionOAuth,
		Detail: map[string]any{
			"connector_id": connectorID.String(),
			"step":         step,
		},
	}
	async.Dispatch(ctx, func(ctx context.Context) error {
		return uc.repo.Audit().Append(ctx, entry)
	})
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func pkceChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func scopeValue(conf model.AuthConfig) string {
	if conf.Scope != "" {
		return conf.Scope
	}
	return strings.Join(conf.Scopes, " ")
}
