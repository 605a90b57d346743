package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stationops/wrench/pkg/usecase"
	"github.com/stationops/wrench/pkg/utils/errutil"
	"github.com/stationops/wrench/pkg/utils/logging"
	"github.com/stationops/wrench/pkg/utils/safe"
)

type Server struct {
	router  *chi.Mux
	uc      *usecase.UseCases
	baseURL string
}

type Options func(*Server)

// WithBaseURL sets the externally reachable base URL, used to build the
// OAuth redirect URI. Defaults to http://localhost:8080.
func WithBaseURL(baseURL string) Options {
	return func(s *Server) {
		if baseURL != "" {
			s.baseURL = baseURL
		}
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:  r,
		uc:      uc,
		baseURL: "http://localhost:8080",
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/agent", func(r chi.Router) {
		r.Post("/plan", s.handlePlan)
		r.Route("/proposals", func(r chi.Router) {
			r.Get("/", s.handleListProposals)
			r.Route("/{proposalID}", func(r chi.Router) {
				r.Get("/", s.handleGetProposal)
				r.Post("/approve", s.handleApprove)
				r.Post("/reject", s.handleReject)
				r.Post("/execute", s.handleExecute)
				r.Get("/traces", s.handleListTraces)
			})
		})
	})

	r.Route("/api/connectors/{connectorID}/oauth", func(r chi.Router) {
		r.Post("/start", s.handleOAuthStart)
		r.Get("/status", s.handleOAuthStatus)
	})
	r.Get("/oauth/callback", s.handleOAuthCallback)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w,
			goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, data)
}

func decodeJSON(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return goerr.Wrap(err, "request body is not valid JSON")
	}
	return nil
}
