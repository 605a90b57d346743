package http

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stationops/wrench/pkg/domain/types"
	"github.com/stationops/wrench/pkg/usecase"
	"github.com/stationops/wrench/pkg/utils/errutil"
)

type oauthStartRequest struct {
	User string `json:"user"`
}

func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	var req oauthStartRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
			return
		}
	}

	result, err := s.uc.OAuth.Start(r.Context(), &usecase.StartInput{
		ConnectorID: types.ConnectorID(chi.URLParam(r, "connectorID")),
		User:        types.UserID(req.User),
		RedirectURI: s.baseURL + "/oauth/callback",
	})
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusNotFound)
		return
	}

	// A discovery/config failure is a structured result, not a 5xx
	respondJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleOAuthStatus(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		http.Error(w, "state is required", http.StatusBadRequest)
		return
	}

	result, err := s.uc.OAuth.Status(r.Context(), state,
		types.ConnectorID(chi.URLParam(r, "connectorID")),
		types.UserID(r.URL.Query().Get("user")))
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusForbidden)
		return
	}

	respondJSON(w, r, http.StatusOK, result)
}

// handleOAuthCallback is the provider-facing leg: it completes the flow,
// persists tokens into the connector, and renders a terminal page telling
// the user to return to the application.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := q.Get("state")
	if state == "" {
		http.Error(w, "state is required", http.StatusBadRequest)
		return
	}

	result, err := s.uc.OAuth.Complete(r.Context(), state,
		q.Get("code"), q.Get("error"), q.Get("error_description"))
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}

	if result.OK {
		if err := s.uc.OAuth.PersistTokens(r.Context(), result); err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := callbackPage{Title: "Authorization complete", Message: "You can close this window and return to the application."}
	if !result.OK {
		w.WriteHeader(http.StatusOK) // terminal page, not an API error
		page = callbackPage{Title: "Authorization failed", Message: result.Error, Failed: true}
	}
	if err := callbackTmpl.Execute(w, page); err != nil {
		errutil.Handle(r.Context(), err, "failed to render callback page")
	}
}

type callbackPage struct {
	Title   string
	Message string
	Failed  bool
}

var callbackTmpl = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .Failed}}<p>Check the connector configuration and restart authorization.</p>{{end}}
</body>
</html>
`))
