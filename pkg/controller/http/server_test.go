package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/stationops/wrench/pkg/controller/http"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
	"github.com/stationops/wrench/pkg/repository/memory"
	"github.com/stationops/wrench/pkg/usecase"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Memory) {
	t.Helper()
	repo := memory.New()

	_, err := repo.Technician().Put(context.Background(), &model.Technician{
		Name:           "alice",
		Specialization: "engine",
		Status:         model.TechnicianAvailable,
		Rating:         4.8,
	})
	gt.NoError(t, err).Required()

	uc := usecase.New(repo, usecase.WithFlowCache(memory.NewFlowCache()))
	srv := httptest.NewServer(httpctrl.New(uc))
	t.Cleanup(srv.Close)
	return srv, repo
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	gt.NoError(t, err).Required()
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	gt.NoError(t, err).Required()
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	var out T
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&out)).Required()
	return out
}

func TestServer(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		srv, _ := newTestServer(t)
		resp, err := http.Get(srv.URL + "/health")
		gt.NoError(t, err).Required()
		gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
		body := decodeBody[map[string]string](t, resp)
		gt.Value(t, body["status"]).Equal("ok")
	})

	t.Run("plan requires a query", func(t *testing.T) {
		srv, _ := newTestServer(t)
		resp := postJSON(t, srv.URL+"/api/agent/plan", map[string]any{"user": "operator"})
		defer resp.Body.Close() //nolint:errcheck
		gt.Number(t, resp.StatusCode).Equal(http.StatusBadRequest)
	})

	t.Run("plan then approve then inspect", func(t *testing.T) {
		srv, _ := newTestServer(t)

		resp := postJSON(t, srv.URL+"/api/agent/plan", map[string]any{
			"query":       "Create a ticket for urgent brake issue on unit 7",
			"user":        "operator",
			"policy_mode": "semi_auto",
		})
		gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
		plan := decodeBody[usecase.PlanResult](t, resp)
		gt.Bool(t, len(plan.Proposals) >= 2).True()

		var ticket *model.Proposal
		for _, p := range plan.Proposals {
			if p.ActionType == types.ActionCreateTicket {
				ticket = p
			}
		}
		gt.Value(t, ticket).NotNil().Required()
		gt.Value(t, ticket.Status).Equal(types.ProposalStatusPending)

		// approve executes in the same call
		resp = postJSON(t, srv.URL+"/api/agent/proposals/"+ticket.ID.String()+"/approve",
			map[string]any{"user": "reviewer"})
		gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
		approved := decodeBody[model.Proposal](t, resp)
		gt.Value(t, approved.Status).Equal(types.ProposalStatusExecuted)
		gt.Value(t, approved.ApprovedBy).Equal(types.UserID("reviewer"))
		gt.Value(t, approved.Result).NotNil().Required()
		gt.Value(t, approved.Result.TicketRef).NotEqual("")

		// single proposal fetch reflects the stored state
		resp, err := http.Get(srv.URL + "/api/agent/proposals/" + ticket.ID.String())
		gt.NoError(t, err).Required()
		fetched := decodeBody[model.Proposal](t, resp)
		gt.Value(t, fetched.Status).Equal(types.ProposalStatusExecuted)

		// workflow filter returns the whole plan
		resp, err = http.Get(srv.URL + "/api/agent/proposals?workflow_id=" + string(plan.WorkflowID))
		gt.NoError(t, err).Required()
		listed := decodeBody[map[string][]*model.Proposal](t, resp)
		gt.Value(t, len(listed["proposals"])).Equal(len(plan.Proposals))

		// no connector was involved, so no traces were recorded
		resp, err = http.Get(srv.URL + "/api/agent/proposals/" + ticket.ID.String() + "/traces")
		gt.NoError(t, err).Required()
		traces := decodeBody[map[string][]*model.ExecutionTrace](t, resp)
		gt.Array(t, traces["traces"]).Length(0)
	})

	t.Run("reject reports the reason", func(t *testing.T) {
		srv, _ := newTestServer(t)

		resp := postJSON(t, srv.URL+"/api/agent/plan", map[string]any{
			"query": "Create a ticket for brake noise",
			"user":  "operator",
		})
		plan := decodeBody[usecase.PlanResult](t, resp)
		gt.Bool(t, len(plan.Proposals) > 0).True()
		target := plan.Proposals[0]

		resp = postJSON(t, srv.URL+"/api/agent/proposals/"+target.ID.String()+"/reject",
			map[string]any{"user": "reviewer", "reason": "duplicate of an open ticket"})
		gt.Number(t, resp.StatusCode).Equal(http.StatusOK)
		rejected := decodeBody[model.Proposal](t, resp)
		gt.Value(t, rejected.Status).Equal(types.ProposalStatusRejected)
		gt.Value(t, rejected.Error).Equal("duplicate of an open ticket")
	})

	t.Run("unknown proposal is a 404", func(t *testing.T) {
		srv, _ := newTestServer(t)
		resp := postJSON(t, srv.URL+"/api/agent/proposals/"+types.NewProposalID().String()+"/execute",
			map[string]any{"user": "operator"})
		defer resp.Body.Close() //nolint:errcheck
		gt.Number(t, resp.StatusCode).Equal(http.StatusNotFound)
	})

	t.Run("oauth start on a missing connector is a 404", func(t *testing.T) {
		srv, _ := newTestServer(t)
		resp := postJSON(t, srv.URL+"/api/connectors/ghost/oauth/start",
			map[string]any{"user": "operator"})
		defer resp.Body.Close() //nolint:errcheck
		gt.Number(t, resp.StatusCode).Equal(http.StatusNotFound)
	})

	t.Run("oauth status without state is a 400", func(t *testing.T) {
		srv, _ := newTestServer(t)
		resp, err := http.Get(srv.URL + "/api/connectors/ghost/oauth/status")
		gt.NoError(t, err).Required()
		defer resp.Body.Close() //nolint:errcheck
		gt.Number(t, resp.StatusCode).Equal(http.StatusBadRequest)
	})

	t.Run("callback with an unknown state renders the failure page", func(t *testing.T) {
		srv, _ := newTestServer(t)
		resp, err := http.Get(srv.URL + "/oauth/callback?state=never-issued&code=abc")
		gt.NoError(t, err).Required()
		defer resp.Body.Close() //nolint:errcheck
		gt.Number(t, resp.StatusCode).Equal(http.StatusOK)

		page, err := io.ReadAll(resp.Body)
		gt.NoError(t, err).Required()
		gt.Bool(t, strings.Contains(string(page), "Authorization failed")).True()
	})
}
