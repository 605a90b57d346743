// Package rpc is a small JSON-RPC-over-HTTP client for connector
// endpoints. Every call returns a CallResult; transport failures, HTTP
// error statuses, unparseable bodies and RPC-level errors are all folded
// into the result, never returned as a Go error.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
	"github.com/stationops/wrench/pkg/utils/metrics"
	"github.com/stationops/wrench/pkg/utils/safe"
)

const (
	// ProtocolVersion is sent in the initialize handshake
	ProtocolVersion = "2024-11-05"

	clientName    = "wrench"
	clientVersion = "0.1.0"

	// DefaultTimeout bounds one outbound call; there is no retry
	DefaultTimeout = 8 * time.Second
)

// CallResult is the outcome of one RPC call
type CallResult struct {
	OK         bool           `json:"ok"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	StatusCode int            `json:"status_code"`
	Duration   time.Duration  `json:"duration"`
}

// Client speaks JSON-RPC to one connector
type Client struct {
	connector  *model.Connector
	httpClient *http.Client
	timeout    time.Duration
}

// Option is a functional option for Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-call timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New creates a client for the given connector
func New(connector *model.Connector, opts ...Option) *Client {
	c := &Client{
		connector:  connector,
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connector returns the connector this client talks to
func (c *Client) Connector() *model.Connector {
	return c.connector
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json, text/event-stream, */*")
	h.Set("User-Agent", fmt.Sprintf("%s-rpc-client/%s", clientName, clientVersion))

	conf := c.connector.AuthConf
	switch c.connector.Auth {
	case types.AuthBearer:
		if conf.Token != "" {
			h.Set("Authorization", "Bearer "+conf.Token)
		}
	case types.AuthOAuth2:
		if conf.AccessToken != "" {
			h.Set("Authorization", "Bearer "+conf.AccessToken)
		}
	case types.AuthAPIKey:
		name := conf.HeaderName
		if name == "" {
			name = "X-API-Key"
		}
		if conf.HeaderValue != "" {
			h.Set(name, conf.HeaderValue)
		}
	}

	return h
}

// Call performs one JSON-RPC call. Success is any 2xx/3xx status with a
// parseable body and no error field in the response envelope.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) *CallResult {
	started := time.Now()
	result := c.call(ctx, method, params)
	result.Duration = time.Since(started)

	metrics.RPCCalls.WithLabelValues(c.connector.Name, method, strconv.FormatBool(result.OK)).Inc()
	metrics.RPCDuration.WithLabelValues(c.connector.Name, method).Observe(result.Duration.Seconds())

	return result
}

func (c *Client) call(ctx context.Context, method string, params map[string]any) *CallResult {
	if params == nil {
		params = map[string]any{}
	}
	envelope := map[string]any{
		"jsonrpc": "2.0",
		"id":      uuid.NewString(),
		"method":  method,
		"params":  params,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return &CallResult{Error: "failed to encode request: " + err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.connector.BaseURL, bytes.NewReader(body))
	if err != nil {
		return &CallResult{Error: "failed to create request: " + err.Error()}
	}
	req.Header = c.headers()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &CallResult{Error: err.Error()}
	}
	defer safe.Close(ctx, resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &CallResult{Error: "failed to read response: " + err.Error(), StatusCode: resp.StatusCode}
	}

	var parsed map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return &CallResult{Error: "invalid JSON response", StatusCode: resp.StatusCode}
		}
	} else {
		parsed = map[string]any{}
	}

	if rpcErr, ok := parsed["error"]; ok && rpcErr != nil {
		return &CallResult{
			Error:      fmt.Sprintf("%v", rpcErr),
			StatusCode: resp.StatusCode,
			Data:       parsed,
		}
	}

	return &CallResult{
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 400,
		Data:       parsed,
		StatusCode: resp.StatusCode,
	}
}

// Initialize performs the protocol handshake
func (c *Client) Initialize(ctx context.Context) *CallResult {
	return c.Call(ctx, "initialize", map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
	})
}

// ListTools lists the tools the connector exposes
func (c *Client) ListTools(ctx context.Context) *CallResult {
	return c.Call(ctx, "tools/list", map[string]any{})
}

// CallTool invokes a named tool with arguments
func (c *Client) CallTool(ctx context.Context, toolName string, arguments map[string]any) *CallResult {
	if arguments == nil {
		arguments = map[string]any{}
	}
	return c.Call(ctx, "tools/call", map[string]any{
		"name":      toolName,
		"arguments": arguments,
	})
}

// CoerceToolResult unwraps the useful payload out of a tool-call response:
// structuredContent when present, otherwise the first non-empty text
// content item (parsed as JSON when possible), otherwise the raw result.
func CoerceToolResult(data map[string]any) any {
	if data == nil {
		return nil
	}
	payload, ok := data["result"]
	if !ok {
		return nil
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return payload
	}

	if structured, ok := obj["structuredContent"]; ok {
		return structured
	}

	if content, ok := obj["content"].([]any); ok {
		for _, item := range content {
			entry, ok := item.(map[string]any)
			if !ok || entry["type"] != "text" {
				continue
			}
			text, _ := entry["text"].(string)
			if text == "" {
				continue
			}
			var decoded any
			if err := json.Unmarshal([]byte(text), &decoded); err == nil {
				return decoded
			}
			return text
		}
	}

	return obj
}
