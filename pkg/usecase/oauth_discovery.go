package usecase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/stationops/wrench/pkg/utils/logging"
	"github.com/stationops/wrench/pkg/utils/safe"
)

// endpoints is one discovered authorization/token endpoint pair
type endpoints struct {
	Authorization string
	Token         string
}

// discoveryDocument is the subset of RFC 8414 / OIDC discovery we read
type discoveryDocument struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
}

// protectedResourceMetadata is the subset of RFC 9728 we read
type protectedResourceMetadata struct {
	AuthorizationServers []string `json:"authorization_servers"`
}

const maxDiscoveryBody = 1 << 20

// discoverEndpoints resolves the authorization and token endpoints for a
// remote in priority order: explicit configuration, configured issuer, the
// remote's protected-resource metadata (with and then without the remote's
// path suffix), and finally the remote's origin itself. The first candidate
// server whose discovery document exposes both endpoints wins.
func (uc *OAuthUseCase) discoverEndpoints(ctx context.Context, remoteURL, explicitAuth, explicitToken, issuerURL string) (*endpoints, error) {
	if explicitAuth != "" && explicitToken != "" {
		return &endpoints{Authorization: explicitAuth, Token: explicitToken}, nil
	}

	remote, err := url.Parse(remoteURL)
	if err != nil || remote.Host == "" {
		return nil, goerr.New("remote URL is not absolute", goerr.V("url", remoteURL))
	}
	origin := remote.Scheme + "://" + remote.Host

	var candidates []string
	if issuerURL != "" {
		candidates = append(candidates, strings.TrimRight(issuerURL, "/"))
	}
	candidates = append(candidates, uc.authorizationServers(ctx, origin, remote.Path)...)
	candidates = append(candidates, origin)

	seen := map[string]bool{}
	for _, server := range candidates {
		server = strings.TrimRight(server, "/")
		if server == "" || seen[server] {
			continue
		}
		seen[server] = true

		if eps := uc.discoveryFrom(ctx, server); eps != nil {
			return eps, nil
		}
	}

	return nil, goerr.New("endpoint discovery failed for all candidate servers",
		goerr.V("url", remoteURL), goerr.V("candidates", len(seen)))
}

// authorizationServers fetches protected-resource metadata from the remote,
// trying the path-suffixed well-known location before the bare one.
func (uc *OAuthUseCase) authorizationServers(ctx context.Context, origin, path string) []string {
	locations := []string{}
	if p := strings.Trim(path, "/"); p != "" {
		locations = append(locations, origin+"/.well-known/oauth-protected-resource/"+p)
	}
	locations = append(locations, origin+"/.well-known/oauth-protected-resource")

	for _, location := range locations {
		var meta protectedResourceMetadata
		if err := uc.fetchJSON(ctx, location, &meta); err != nil {
			logging.From(ctx).Debug("protected-resource metadata fetch failed",
				"url", location, "error", err.Error())
			continue
		}
		if len(meta.AuthorizationServers) > 0 {
			return meta.AuthorizationServers
		}
	}
	return nil
}

// discoveryFrom tries the candidate server's OIDC discovery document first,
// then the plain OAuth one. Returns nil when neither exposes both endpoints.
func (uc *OAuthUseCase) discoveryFrom(ctx context.Context, server string) *endpoints {
	for _, wellKnown := range []string{
		server + "/.well-known/openid-configuration",
		server + "/.well-known/oauth-authorization-server",
	} {
		var doc discoveryDocument
		if err := uc.fetchJSON(ctx, wellKnown, &doc); err != nil {
			logging.From(ctx).Debug("discovery document fetch failed",
				"url", wellKnown, "error", err.Error())
			continue
		}
		if doc.AuthorizationEndpoint != "" && doc.TokenEndpoint != "" {
			return &endpoints{
				Authorization: doc.AuthorizationEndpoint,
				Token:         doc.TokenEndpoint,
			}
		}
	}
	return nil
}

func (uc *OAuthUseCase) fetchJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to build discovery request", goerr.V("url", rawURL))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := uc.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "discovery request failed", goerr.V("url", rawURL))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return goerr.New("discovery request returned non-success status",
			goerr.V("url", rawURL), goerr.V("status", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDiscoveryBody))
	if err != nil {
		return goerr.Wrap(err, "failed to read discovery response", goerr.V("url", rawURL))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return goerr.Wrap(err, "discovery response is not JSON", goerr.V("url", rawURL))
	}
	return nil
}
