package usecase_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/types"
	"github.com/stationops/wrench/pkg/repository/memory"
	"github.com/stationops/wrench/pkg/service/rpc"
	"github.com/stationops/wrench/pkg/usecase"
)

func TestPlanActions(t *testing.T) {
	ctx := context.Background()

	t.Run("non-ticket text yields no proposals", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo, usecase.WithFlowCache(memory.NewFlowCache()))

		result, err := uc.Plan.PlanActions(ctx, &usecase.PlanInput{
			Query: "what is the weather today",
			User:  "operator",
		})
		gt.NoError(t, err).Required()
		gt.Array(t, result.Proposals).Length(0)
	})

	t.Run("urgent injector request plans a full workflow under semi_auto", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo, usecase.WithFlowCache(memory.NewFlowCache()))

		result, err := uc.Plan.PlanActions(ctx, &usecase.PlanInput{
			Query:      "Create a ticket for urgent injector issue",
			User:       "operator",
			PolicyMode: "semi_auto",
		})
		gt.NoError(t, err).Required()
		gt.Number(t, len(result.Proposals)).GreaterOrEqual(2)

		byType := map[types.ActionType]*model.Proposal{}
		for _, p := range result.Proposals {
			byType[p.ActionType] = p
			gt.Value(t, p.Status).Equal(types.ProposalStatusPending)
			gt.Value(t, p.Payload.WorkflowID).Equal(result.WorkflowID)
			gt.Value(t, p.Metadata.IdempotencyKey).NotEqual("")
		}

		ticket := byType[types.ActionCreateTicket]
		gt.Value(t, ticket).NotNil().Required()
		gt.Number(t, ticket.Payload.CreateTicket.Priority).Equal(4)
		gt.Value(t, ticket.Metadata.RiskLevel).Equal(types.RiskMedium)
		gt.True(t, ticket.Metadata.RequiresApproval)

		// No local parts directory entry matches, so an order is planned too
		order := byType[types.ActionOrderPart]
		gt.Value(t, order).NotNil().Required()
		gt.Value(t, order.Payload.OrderPart.PartName).Equal("Fuel Injector")
		gt.Value(t, order.Metadata.RiskLevel).Equal(types.RiskHigh)
		gt.True(t, order.Metadata.RequiresApproval)
	})

	t.Run("well-stocked part suppresses the order proposal", func(t *testing.T) {
		repo := memory.New()
		_, err := repo.Part().Put(ctx, &model.Part{
			ID:                "part-1",
			Name:              "Fuel Injector",
			QuantityAvailable: 10,
			ReorderThreshold:  2,
		})
		gt.NoError(t, err).Required()

		uc := usecase.New(repo, usecase.WithFlowCache(memory.NewFlowCache()))
		result, err := uc.Plan.PlanActions(ctx, &usecase.PlanInput{
			Query:      "Create a ticket for urgent injector issue",
			User:       "operator",
			PolicyMode: "semi_auto",
		})
		gt.NoError(t, err).Required()

		for _, p := range result.Proposals {
			gt.Value(t, p.ActionType).NotEqual(types.ActionOrderPart)
		}
	})

	t.Run("exploratory reads hit picked connectors and tolerate failure", func(t *testing.T) {
		var partCalls int
		partsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			partCalls++
			var req map[string]any
			gt.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			gt.Value(t, req["method"]).Equal("tools/call")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"structuredContent":{"parts":[]}}}`)) //nolint:errcheck
		}))
		defer partsSrv.Close()

		repo := memory.New()
		_, err := repo.Connector().Put(ctx, &model.Connector{
			ID:      "conn-parts",
			Name:    "acme parts supply",
			BaseURL: partsSrv.URL,
			Enabled: true,
			Auth:    types.AuthNone,
		})
		gt.NoError(t, err).Required()
		// Unreachable workforce connector: its read must fail non-fatally
		_, err = repo.Connector().Put(ctx, &model.Connector{
			ID:      "conn-workforce",
			Name:    "employee workforce directory",
			BaseURL: "http://127.0.0.1:1",
			Enabled: true,
			Auth:    types.AuthNone,
		})
		gt.NoError(t, err).Required()

		uc := usecase.New(repo,
			usecase.WithFlowCache(memory.NewFlowCache()),
			usecase.WithRPCOptions(rpc.WithHTTPClient(partsSrv.Client())),
		)

		result, err := uc.Plan.PlanActions(ctx, &usecase.PlanInput{
			Query:      "Assign someone to repair the injector",
			User:       "operator",
			PolicyMode: "manual",
		})
		gt.NoError(t, err).Required()
		gt.Number(t, partCalls).Equal(1)
		gt.Array(t, result.Reads).Length(2)

		okByConnector := map[string]bool{}
		for _, read := range result.Reads {
			okByConnector[read.Connector] = read.OK
		}
		gt.True(t, okByConnector["acme parts supply"])
		gt.False(t, okByConnector["employee workforce directory"])

		// Planning proceeded despite the failed read
		gt.Number(t, len(result.Proposals)).GreaterOrEqual(2)
	})

	t.Run("manual mode stamps approval on everything", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo, usecase.WithFlowCache(memory.NewFlowCache()))

		result, err := uc.Plan.PlanActions(ctx, &usecase.PlanInput{
			Query:      "minor filter issue, create a ticket",
			User:       "operator",
			PolicyMode: "manual",
		})
		gt.NoError(t, err).Required()
		gt.Number(t, len(result.Proposals)).GreaterOrEqual(2)
		for _, p := range result.Proposals {
			gt.True(t, p.Metadata.RequiresApproval)
		}
	})
}
