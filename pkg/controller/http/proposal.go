package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/policy"
	"github.com/stationops/wrench/pkg/domain/types"
	"github.com/stationops/wrench/pkg/usecase"
	"github.com/stationops/wrench/pkg/utils/errutil"
)

// Policy gates and idempotent reuse are ordinary outcomes: the handlers
// below return 200 with the proposal representation for them. Only
// malformed input and unknown IDs produce 4xx.

type planRequest struct {
	Query        string              `json:"query"`
	User         string              `json:"user"`
	PolicyMode   string              `json:"policy_mode"`
	Intent       string              `json:"intent"`
	StationID    string              `json:"station_id"`
	ConnectorIDs []types.ConnectorID `json:"connector_ids"`
	PolicyRules  *policy.Rules       `json:"policy_rules"`
	Context      map[string]any      `json:"context"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeJSON(r, &req); err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	result, err := s.uc.Plan.PlanActions(r.Context(), &usecase.PlanInput{
		Query:        req.Query,
		User:         types.UserID(req.User),
		PolicyMode:   req.PolicyMode,
		Intent:       req.Intent,
		StationID:    req.StationID,
		ConnectorIDs: req.ConnectorIDs,
		PolicyRules:  req.PolicyRules,
		Context:      req.Context,
	})
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	var proposals []*model.Proposal
	var err error

	if workflowID := r.URL.Query().Get("workflow_id"); workflowID != "" {
		proposals, err = s.uc.Repository().Proposal().FindByWorkflow(
			r.Context(), types.WorkflowID(workflowID), "")
	} else {
		proposals, err = s.uc.Repository().Proposal().List(r.Context())
	}
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]any{"proposals": proposals})
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	id := types.ProposalID(chi.URLParam(r, "proposalID"))

	proposal, err := s.uc.Repository().Proposal().Get(r.Context(), id)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusNotFound)
		return
	}

	respondJSON(w, r, http.StatusOK, proposal)
}

type actionRequest struct {
	User           string            `json:"user"`
	Reason         string            `json:"reason"`
	IdempotencyKey string            `json:"idempotency_key"`
	Overrides      map[string]string `json:"overrides"`
}

// decodeAction reads the optional action body. An empty body is fine.
func decodeAction(r *http.Request) (*actionRequest, error) {
	var req actionRequest
	if r.ContentLength == 0 {
		return &req, nil
	}
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Server) execInput(r *http.Request, req *actionRequest) *usecase.ExecInput {
	return &usecase.ExecInput{
		ProposalID:     types.ProposalID(chi.URLParam(r, "proposalID")),
		User:           types.UserID(req.User),
		IdempotencyKey: req.IdempotencyKey,
		Overrides:      req.Overrides,
	}
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAction(r)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	proposal, err := s.uc.Exec.Approve(r.Context(), s.execInput(r, req))
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, proposalErrStatus(err))
		return
	}

	respondJSON(w, r, http.StatusOK, proposal)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAction(r)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	proposal, err := s.uc.Exec.Reject(r.Context(), s.execInput(r, req), req.Reason)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, proposalErrStatus(err))
		return
	}

	respondJSON(w, r, http.StatusOK, proposal)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAction(r)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	proposal, err := s.uc.Exec.Execute(r.Context(), s.execInput(r, req))
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, proposalErrStatus(err))
		return
	}

	respondJSON(w, r, http.StatusOK, proposal)
}

func (s *Server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	id := types.ProposalID(chi.URLParam(r, "proposalID"))

	traces, err := s.uc.Exec.ListTraces(r.Context(), id)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, proposalErrStatus(err))
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]any{"traces": traces})
}

func proposalErrStatus(err error) int {
	if errors.Is(err, usecase.ErrProposalNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
