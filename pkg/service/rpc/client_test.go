package rpc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
	"github.com/stationops/wrench/pkg/service/rpc"
)

func testConnector(baseURL string) *model.Connector {
	return &model.Connector{
		ID:      "conn-test",
		Name:    "test backend",
		BaseURL: baseURL,
		Enabled: true,
		Auth:    types.AuthNone,
	}
}

func TestCall(t *testing.T) {
	ctx := context.Background()

	t.Run("success returns parsed data", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var envelope map[string]any
			gt.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
			gt.Value(t, envelope["jsonrpc"]).Equal("2.0")
			gt.Value(t, envelope["method"]).Equal("tools/list")
			gt.Value(t, envelope["id"]).NotNil()

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`)) //nolint:errcheck
		}))
		defer srv.Close()

		res := rpc.New(testConnector(srv.URL)).ListTools(ctx)
		gt.True(t, res.OK)
		gt.Value(t, res.Error).Equal("")
		gt.Number(t, res.StatusCode).Equal(http.StatusOK)
		gt.Value(t, res.Data["result"]).NotNil()
	})

	t.Run("unreachable connector never panics or throws", func(t *testing.T) {
		res := rpc.New(testConnector("http://127.0.0.1:1"), rpc.WithTimeout(time.Second)).
			CallTool(ctx, "search_parts", map[string]any{"query": "filter"})
		gt.False(t, res.OK)
		gt.Value(t, res.Error).NotEqual("")
		gt.Number(t, res.StatusCode).Equal(0)
		gt.Bool(t, res.Duration >= 0).True()
	})

	t.Run("HTTP error status is captured", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)) //nolint:errcheck
		}))
		defer srv.Close()

		res := rpc.New(testConnector(srv.URL)).Call(ctx, "initialize", nil)
		gt.False(t, res.OK)
		gt.Number(t, res.StatusCode).Equal(http.StatusInternalServerError)
	})

	t.Run("non-JSON body is an error, not a panic", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>oops</html>")) //nolint:errcheck
		}))
		defer srv.Close()

		res := rpc.New(testConnector(srv.URL)).Call(ctx, "initialize", nil)
		gt.False(t, res.OK)
		gt.Value(t, res.Error).Equal("invalid JSON response")
	})

	t.Run("JSON-RPC error field fails the call", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"no such method"}}`)) //nolint:errcheck
		}))
		defer srv.Close()

		res := rpc.New(testConnector(srv.URL)).Call(ctx, "bogus", nil)
		gt.False(t, res.OK)
		gt.Value(t, res.Error).NotEqual("")
	})
}

func TestAuthHeaders(t *testing.T) {
	ctx := context.Background()

	capture := func(t *testing.T, connector *model.Connector) http.Header {
		t.Helper()
		var got http.Header
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Clone()
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)) //nolint:errcheck
		}))
		defer srv.Close()

		connector.BaseURL = srv.URL
		res := rpc.New(connector).Initialize(ctx)
		gt.True(t, res.OK)
		return got
	}

	t.Run("bearer token", func(t *testing.T) {
		h := capture(t, &model.Connector{
			ID: "c", Name: "c", Enabled: true,
			Auth:     types.AuthBearer,
			AuthConf: model.AuthConfig{Token: "secret-token"},
		})
		gt.Value(t, h.Get("Authorization")).Equal("Bearer secret-token")
	})

	t.Run("oauth2 access token", func(t *testing.T) {
		h := capture(t, &model.Connector{
			ID: "c", Name: "c", Enabled: true,
			Auth:     types.AuthOAuth2,
			AuthConf: model.AuthConfig{AccessToken: "issued-token"},
		})
		gt.Value(t, h.Get("Authorization")).Equal("Bearer issued-token")
	})

	t.Run("api key with default header name", func(t *testing.T) {
		h := capture(t, &model.Connector{
			ID: "c", Name: "c", Enabled: true,
			Auth:     types.AuthAPIKey,
			AuthConf: model.AuthConfig{HeaderValue: "k-123"},
		})
		gt.Value(t, h.Get("X-API-Key")).Equal("k-123")
	})

	t.Run("api key with custom header name", func(t *testing.T) {
		h := capture(t, &model.Connector{
			ID: "c", Name: "c", Enabled: true,
			Auth:     types.AuthAPIKey,
			AuthConf: model.AuthConfig{HeaderName: "X-Custom-Key", HeaderValue: "k-456"},
		})
		gt.Value(t, h.Get("X-Custom-Key")).Equal("k-456")
	})

	t.Run("none sends no credential header", func(t *testing.T) {
		h := capture(t, &model.Connector{
			ID: "c", Name: "c", Enabled: true,
			Auth: types.AuthNone,
		})
		gt.Value(t, h.Get("Authorization")).Equal("")
	})
}

func TestCoerceToolResult(t *testing.T) {
	t.Run("structuredContent wins", func(t *testing.T) {
		data := map[string]any{"result": map[string]any{
			"structuredContent": map[string]any{"parts": []any{"a"}},
			"content":           []any{map[string]any{"type": "text", "text": `{"ignored":true}`}},
		}}
		coerced := rpc.CoerceToolResult(data)
		gt.Value(t, coerced).Equal(map[string]any{"parts": []any{"a"}})
	})

	t.Run("text content parses as JSON", func(t *testing.T) {
		data := map[string]any{"result": map[string]any{
			"content": []any{map[string]any{"type": "text", "text": `{"count":2}`}},
		}}
		coerced := rpc.CoerceToolResult(data)
		gt.Value(t, coerced).Equal(map[string]any{"count": float64(2)})
	})

	t.Run("non-JSON text comes back verbatim", func(t *testing.T) {
		data := map[string]any{"result": map[string]any{
			"content": []any{map[string]any{"type": "text", "text": "two parts in stock"}},
		}}
		coerced := rpc.CoerceToolResult(data)
		gt.Value(t, coerced).Equal("two parts in stock")
	})

	t.Run("missing result yields nil", func(t *testing.T) {
		gt.Value(t, rpc.CoerceToolResult(map[string]any{})).Nil()
	})
}
