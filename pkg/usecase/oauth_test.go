package usecase_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
	"github.com/stationops/wrench/pkg/repository/memory"
	"github.com/stationops/wrench/pkg/usecase"
)

// discoveryServer serves openid-configuration pointing at itself and a
// token endpoint driven by the given handler.
func discoveryServer(t *testing.T, tokenHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]string{
			"authorization_endpoint": srv.URL + "/authorize",
			"token_endpoint":         srv.URL + "/token",
		}
		gt.NoError(t, json.NewEncoder(w).Encode(doc))
	})
	if tokenHandler != nil {
		mux.HandleFunc("/token", tokenHandler)
	}
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func oauthConnector(baseURL string) *model.Connector {
	return &model.Connector{
		ID:      "conn-oauth",
		Name:    "ticketing",
		BaseURL: baseURL,
		Enabled: true,
		Auth:    types.AuthOAuth2,
		AuthConf: model.AuthConfig{
			ClientID: "client-abc",
			Scopes:   []string{"tickets.read", "tickets.write"},
		},
	}
}

func TestOAuthStart(t *testing.T) {
	ctx := context.Background()

	t.Run("builds a PKCE authorization URL from discovered endpoints", func(t *testing.T) {
		srv := discoveryServer(t, nil)
		repo := memory.New()
		_, err := repo.Connector().Put(ctx, oauthConnector(srv.URL))
		gt.NoError(t, err).Required()

		flows := memory.NewFlowCache()
		uc := usecase.NewOAuthUseCase(repo, flows, usecase.WithOAuthHTTPClient(srv.Client()))

		result, err := uc.Start(ctx, &usecase.StartInput{
			ConnectorID: "conn-oauth",
			User:        "operator",
			RedirectURI: "http://localhost:8080/oauth/callback",
		})
		gt.NoError(t, err).Required()
		gt.True(t, result.OK)
		gt.Value(t, result.State).NotEqual("")

		parsed, err := url.Parse(result.AuthorizationURL)
		gt.NoError(t, err).Required()
		gt.Value(t, parsed.Path).Equal("/authorize")

		q := parsed.Query()
		gt.Value(t, q.Get("response_type")).Equal("code")
		gt.Value(t, q.Get("client_id")).Equal("client-abc")
		gt.Value(t, q.Get("redirect_uri")).Equal("http://localhost:8080/oauth/callback")
		gt.Value(t, q.Get("state")).Equal(result.State)
		gt.Value(t, q.Get("code_challenge_method")).Equal("S256")
		gt.Value(t, q.Get("scope")).Equal("tickets.read tickets.write")
		// resource defaults to the connector URL when not configured
		gt.Value(t, q.Get("resource")).Equal(srv.URL)

		// challenge must be the S256 transform of the cached verifier
		flow, ok := flows.Get(ctx, result.State)
		gt.Bool(t, ok).True()
		gt.Value(t, flow.CodeVerifier).NotEqual("")
		sum := sha256.Sum256([]byte(flow.CodeVerifier))
		gt.Value(t, q.Get("code_challenge")).Equal(base64.RawURLEncoding.EncodeToString(sum[:]))
		gt.Value(t, flow.Status).Equal(types.FlowPending)
	})

	t.Run("missing client_id is a structured failure with a hint", func(t *testing.T) {
		repo := memory.New()
		connector := oauthConnector("http://localhost:1")
		connector.AuthConf.ClientID = ""
		_, err := repo.Connector().Put(ctx, connector)
		gt.NoError(t, err).Required()

		uc := usecase.NewOAuthUseCase(repo, memory.NewFlowCache())
		result, err := uc.Start(ctx, &usecase.StartInput{ConnectorID: "conn-oauth", User: "operator"})
		gt.NoError(t, err).Required()
		gt.False(t, result.OK)
		gt.Value(t, result.Error).NotEqual("")
		gt.Value(t, result.Hint).NotEqual("")
		gt.Value(t, result.AuthorizationURL).Equal("")
	})

	t.Run("explicit endpoints skip discovery entirely", func(t *testing.T) {
		repo := memory.New()
		connector := oauthConnector("http://127.0.0.1:1") // unreachable, must not matter
		connector.AuthConf.AuthorizationEndpoint = "https://auth.example.com/authorize"
		connector.AuthConf.TokenEndpoint = "https://auth.example.com/token"
		_, err := repo.Connector().Put(ctx, connector)
		gt.NoError(t, err).Required()

		uc := usecase.NewOAuthUseCase(repo, memory.NewFlowCache())
		result, err := uc.Start(ctx, &usecase.StartInput{
			ConnectorID: "conn-oauth",
			User:        "operator",
			RedirectURI: "http://localhost:8080/oauth/callback",
		})
		gt.NoError(t, err).Required()
		gt.True(t, result.OK)
		gt.Bool(t, len(result.AuthorizationURL) > 0).True()
		parsed, err := url.Parse(result.AuthorizationURL)
		gt.NoError(t, err).Required()
		gt.Value(t, parsed.Host).Equal("auth.example.com")
	})

	t.Run("unknown connector is an error", func(t *testing.T) {
		uc := usecase.NewOAuthUseCase(memory.New(), memory.NewFlowCache())
		_, err := uc.Start(ctx, &usecase.StartInput{ConnectorID: "ghost", User: "operator"})
		gt.Error(t, err)
	})
}

func TestOAuthStatus(t *testing.T) {
	ctx := context.Background()

	startFlow := func(t *testing.T, flows *memory.FlowCache) (*usecase.OAuthUseCase, string) {
		t.Helper()
		srv := discoveryServer(t, nil)
		repo := memory.New()
		_, err := repo.Connector().Put(ctx, oauthConnector(srv.URL))
		gt.NoError(t, err).Required()

		uc := usecase.NewOAuthUseCase(repo, flows, usecase.WithOAuthHTTPClient(srv.Client()))
		result, err := uc.Start(ctx, &usecase.StartInput{
			ConnectorID: "conn-oauth",
			User:        "operator",
			RedirectURI: "http://localhost:8080/oauth/callback",
		})
		gt.NoError(t, err).Required()
		gt.True(t, result.OK)
		return uc, result.State
	}

	t.Run("pending flow reports pending", func(t *testing.T) {
		uc, state := startFlow(t, memory.NewFlowCache())
		status, err := uc.Status(ctx, state, "conn-oauth", "operator")
		gt.NoError(t, err).Required()
		gt.Value(t, status.Status).Equal(types.FlowPending)
		gt.Bool(t, status.HasAccessToken).False()
	})

	t.Run("unknown state reports expired, not an error", func(t *testing.T) {
		uc, _ := startFlow(t, memory.NewFlowCache())
		status, err := uc.Status(ctx, "no-such-state", "conn-oauth", "operator")
		gt.NoError(t, err).Required()
		gt.Value(t, status.Status).Equal(types.FlowExpired)
	})

	t.Run("evicted flow reports expired after the TTL lapses", func(t *testing.T) {
		flows := memory.NewFlowCache()
		uc, state := startFlow(t, flows)

		flows.SetClock(func() time.Time {
			return time.Now().Add(model.FlowPendingTTL + time.Minute)
		})

		status, err := uc.Status(ctx, state, "conn-oauth", "operator")
		gt.NoError(t, err).Required()
		gt.Value(t, status.Status).Equal(types.FlowExpired)
	})

	t.Run("mismatched connector or user is an error", func(t *testing.T) {
		uc, state := startFlow(t, memory.NewFlowCache())

		_, err := uc.Status(ctx, state, "some-other-connector", "operator")
		gt.Error(t, err)

		_, err = uc.Status(ctx, state, "conn-oauth", "someone-else")
		gt.Error(t, err)
	})
}

func TestOAuthComplete(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, tokenHandler http.HandlerFunc) (*usecase.OAuthUseCase, *memory.Memory, string) {
		t.Helper()
		srv := discoveryServer(t, tokenHandler)
		repo := memory.New()
		_, err := repo.Connector().Put(ctx, oauthConnector(srv.URL))
		gt.NoError(t, err).Required()

		uc := usecase.NewOAuthUseCase(repo, memory.NewFlowCache(), usecase.WithOAuthHTTPClient(srv.Client()))
		result, err := uc.Start(ctx, &usecase.StartInput{
			ConnectorID: "conn-oauth",
			User:        "operator",
			RedirectURI: "http://localhost:8080/oauth/callback",
		})
		gt.NoError(t, err).Required()
		gt.True(t, result.OK)
		return uc, repo, result.State
	}

	t.Run("successful exchange returns and persists tokens", func(t *testing.T) {
		var form url.Values
		uc, repo, state := setup(t, func(w http.ResponseWriter, r *http.Request) {
			gt.NoError(t, r.ParseForm())
			form = r.PostForm
			gt.NoError(t, json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "at-123",
				"refresh_token": "rt-456",
				"token_type":    "Bearer",
				"scope":         "tickets.read",
				"expires_in":    3600,
			}))
		})

		result, err := uc.Complete(ctx, state, "auth-code-1", "", "")
		gt.NoError(t, err).Required()
		gt.True(t, result.OK)
		gt.Value(t, result.AccessToken).Equal("at-123")
		gt.Value(t, result.RefreshToken).Equal("rt-456")
		gt.Value(t, result.ExpiresAt).NotNil()

		gt.Value(t, form.Get("grant_type")).Equal("authorization_code")
		gt.Value(t, form.Get("code")).Equal("auth-code-1")
		gt.Value(t, form.Get("client_id")).Equal("client-abc")
		gt.Value(t, form.Get("code_verifier")).NotEqual("")
		gt.Value(t, form.Get("redirect_uri")).Equal("http://localhost:8080/oauth/callback")
		gt.Value(t, form.Get("resource")).NotEqual("")

		status, err := uc.Status(ctx, state, "conn-oauth", "operator")
		gt.NoError(t, err).Required()
		gt.Value(t, status.Status).Equal(types.FlowSuccess)
		gt.Bool(t, status.HasAccessToken).True()

		gt.NoError(t, uc.PersistTokens(ctx, result)).Required()
		connector, err := repo.Connector().Get(ctx, "conn-oauth")
		gt.NoError(t, err).Required()
		gt.Value(t, connector.AuthConf.AccessToken).Equal("at-123")
		gt.Value(t, connector.AuthConf.RefreshToken).Equal("rt-456")
		gt.Value(t, connector.AuthConf.TokenType).Equal("Bearer")
		gt.Value(t, connector.AuthConf.TokenExpiresAt).NotNil()
	})

	t.Run("provider error lands in the flow, not a Go error", func(t *testing.T) {
		uc, _, state := setup(t, nil)

		result, err := uc.Complete(ctx, state, "", "access_denied", "user said no")
		gt.NoError(t, err).Required()
		gt.False(t, result.OK)
		gt.Value(t, result.Error).Equal("access_denied: user said no")

		status, err := uc.Status(ctx, state, "conn-oauth", "operator")
		gt.NoError(t, err).Required()
		gt.Value(t, status.Status).Equal(types.FlowError)
		gt.Bool(t, status.HasAccessToken).False()
	})

	t.Run("missing code fails the flow", func(t *testing.T) {
		uc, _, state := setup(t, nil)
		result, err := uc.Complete(ctx, state, "", "", "")
		gt.NoError(t, err).Required()
		gt.False(t, result.OK)
		gt.Value(t, result.Error).NotEqual("")
	})

	t.Run("non-JSON token response fails the flow", func(t *testing.T) {
		uc, _, state := setup(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>login page</html>")) //nolint:errcheck
		})
		result, err := uc.Complete(ctx, state, "auth-code-2", "", "")
		gt.NoError(t, err).Required()
		gt.False(t, result.OK)
		gt.Value(t, result.Error).NotEqual("")
	})

	t.Run("token response without access_token fails the flow", func(t *testing.T) {
		uc, _, state := setup(t, func(w http.ResponseWriter, r *http.Request) {
			gt.NoError(t, json.NewEncoder(w).Encode(map[string]any{"token_type": "Bearer"}))
		})
		result, err := uc.Complete(ctx, state, "auth-code-3", "", "")
		gt.NoError(t, err).Required()
		gt.False(t, result.OK)
		gt.Value(t, result.Error).NotEqual("")
	})

	t.Run("unknown state asks the caller to restart", func(t *testing.T) {
		uc, _, _ := setup(t, nil)
		result, err := uc.Complete(ctx, "never-issued", "code", "", "")
		gt.NoError(t, err).Required()
		gt.False(t, result.OK)
		gt.Value(t, result.Error).Equal("authorization flow expired or unknown; restart authorization")
	})
}
