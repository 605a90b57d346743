package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/stationops/wrench/pkg/cli/config"
	"github.com/stationops/wrench/pkg/domain/model"
	"github.com/stationops/wrench/pkg/domain/policy"
	"github.com/stationops/wrench/pkg/domain/types"
	"github.com/stationops/wrench/pkg/repository/memory"
	"github.com/stationops/wrench/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// cmdPlan runs the planner once against an in-memory repository and prints
// the proposals it would create. Useful for tuning seed configs and policy
// rules without a running server.
func cmdPlan() *cli.Command {
	var query string
	var user string
	var policyMode string
	var stationID string
	var seedCfg config.Seed

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "query",
			Usage:       "Free-text request to plan for",
			Required:    true,
			Destination: &query,
		},
		&cli.StringFlag{
			Name:        "user",
			Usage:       "Acting user ID",
			Value:       "cli",
			Destination: &user,
		},
		&cli.StringFlag{
			Name:        "policy-mode",
			Usage:       "Approval policy mode (manual, semi_auto, auto)",
			Value:       "manual",
			Sources:     cli.EnvVars("WRENCH_POLICY_MODE"),
			Destination: &policyMode,
		},
		&cli.StringFlag{
			Name:        "station-id",
			Usage:       "Station hint attached to planned actions",
			Destination: &stationID,
		},
	}
	flags = append(flags, seedCfg.Flags()...)

	return &cli.Command{
		Name:    "plan",
		Aliases: []string{"p"},
		Usage:   "Run the planner once and print the proposals",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo := memory.New()
			defer repo.Close() //nolint:errcheck // in-memory close never fails

			seed, err := seedCfg.Load()
			if err != nil {
				return err
			}
			var rules *policy.Rules
			if seed != nil {
				if err := seed.Apply(ctx, repo); err != nil {
					return goerr.Wrap(err, "failed to apply seed config")
				}
				rules = seed.Rules()
				if policyMode == "manual" && seed.Policy.Mode != "" {
					policyMode = seed.Policy.Mode
				}
			}

			uc := usecase.New(repo, usecase.WithFlowCache(memory.NewFlowCache()))
			result, err := uc.Plan.PlanActions(ctx, &usecase.PlanInput{
				Query:       query,
				User:        types.UserID(user),
				PolicyMode:  policyMode,
				StationID:   stationID,
				PolicyRules: rules,
			})
			if err != nil {
				return goerr.Wrap(err, "planning failed")
			}

			printPlanResult(result)
			return nil
		},
	}
}

var (
	headColor = color.New(color.FgCyan, color.Bold)
	warnColor = color.New(color.FgYellow)
	okColor   = color.New(color.FgGreen)
)

func printPlanResult(result *usecase.PlanResult) {
	if len(result.Proposals) == 0 {
		warnColor.Println("No proposals: the request does not look ticket-worthy")
		return
	}

	headColor.Printf("Workflow %s: %d proposal(s)\n\n", result.WorkflowID, len(result.Proposals))

	for _, p := range result.Proposals {
		headColor.Printf("%s  [%s]\n", p.ActionType, p.ID)
		fmt.Printf("  risk: %s  approval required: %v  mode: %s\n",
			p.Metadata.RiskLevel, p.Metadata.RequiresApproval, p.Metadata.PolicyMode)
		fmt.Printf("  reason: %s\n", p.Metadata.Reason)
		printPayload(&p.Payload)
		fmt.Println()
	}

	for _, read := range result.Reads {
		if read.OK {
			okColor.Printf("read %s/%s ok (%s)\n", read.Connector, read.Tool, read.Duration)
		} else {
			warnColor.Printf("read %s/%s failed: %s\n", read.Connector, read.Tool, read.Error)
		}
	}
}

func printPayload(payload *model.Payload) {
	switch {
	case payload.CreateTicket != nil:
		fmt.Printf("  ticket: %q priority %d (%s)\n",
			payload.CreateTicket.Title, payload.CreateTicket.Priority, payload.CreateTicket.Specialization)
	case payload.AssignWorker != nil:
		fmt.Printf("  assign: specialization %s\n", payload.AssignWorker.Specialization)
	case payload.OrderPart != nil:
		fmt.Printf("  order: %d x %s\n", payload.OrderPart.Quantity, payload.OrderPart.PartName)
	}
	if payload.ConnectorID != "" {
		fmt.Printf("  connector: %s\n", payload.ConnectorID)
	}
}
