package usecase

import (
	"net/http"

	"github.com/stationops/wrench/pkg/domain/interfaces"
	"github.com/stationops/wrench/pkg/service/rpc"
)

// agentName tags proposals produced by this planner
const agentName = "wrench_planner"

type UseCases struct {
	repo       interfaces.Repository
	flows      interfaces.FlowCache
	httpClient *http.Client
	rpcOpts    []rpc.Option

	Plan  *PlanUseCase
	Exec  *ExecUseCase
	OAuth *OAuthUseCase
}

type Option func(*UseCases)

// WithFlowCache sets the OAuth flow cache
func WithFlowCache(flows interfaces.FlowCache) Option {
	return func(uc *UseCases) {
		uc.flows = flows
	}
}

// WithRPCOptions passes options to every RPC client the usecases build
func WithRPCOptions(opts ...rpc.Option) Option {
	return func(uc *UseCases) {
		uc.rpcOpts = opts
	}
}

// WithHTTPClient sets the HTTP client used by the OAuth connector
func WithHTTPClient(hc *http.Client) Option {
	return func(uc *UseCases) {
		uc.httpClient = hc
	}
}

// Repository exposes the backing store for read-only controller paths
func (uc *UseCases) Repository() interfaces.Repository {
	return uc.repo
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:       repo,
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Plan = NewPlanUseCase(repo, uc.rpcOpts...)
	uc.Exec = NewExecUseCase(repo, uc.rpcOpts...)
	uc.OAuth = NewOAuthUseCase(repo, uc.flows, WithOAuthHTTPClient(uc.httpClient))

	return uc
}
