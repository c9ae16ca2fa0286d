package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stepforge/workflowdef"
)

// newDemoCommand runs the order-processing workflow end to end in-process:
// register the workflow, create a BusinessObject, start a run, and poll
// until it reaches a terminal status. It exists to exercise the full stack
// (planner, store, engine, actions) without requiring a separately running
// server.
func newDemoCommand() *cobra.Command {
	var amount float64

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the order-processing demo workflow end to end",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			def := workflowdef.Definition{
				Name: "order-processing",
				Steps: []workflowdef.Step{
					{ID: "validate", Type: "task", Config: workflowdef.Config{Action: "validate_order"}},
					{ID: "charge", Type: "task", DependsOn: []string{"validate"}, Config: workflowdef.Config{Action: "charge_payment"}},
					{ID: "ship", Type: "task", DependsOn: []string{"charge"}, Config: workflowdef.Config{Action: "ship_order"}},
					{ID: "notify", Type: "task", DependsOn: []string{"ship"}, Config: workflowdef.Config{Action: "send_notification"}},
				},
			}

			wfID, err := a.service.CreateWorkflow(ctx, def.Name, def)
			if err != nil {
				return fmt.Errorf("create workflow: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workflow created: %s\n", wfID)

			objID, err := a.service.CreateBusinessObject(ctx, amount)
			if err != nil {
				return fmt.Errorf("create business object: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "business object created: %s (amount=%.2f)\n", objID, amount)

			runID, err := a.service.StartRun(ctx, wfID, &objID)
			if err != nil {
				return fmt.Errorf("start run: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run started: %s\n", runID)

			for {
				snap, err := a.service.GetRun(ctx, runID)
				if err != nil {
					return fmt.Errorf("get run: %w", err)
				}
				if snap.Run.StartedAt != nil && snap.Run.CompletedAt != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "run %s finished: %s\n", runID, snap.Run.Status)
					for _, step := range snap.Steps {
						fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s: %s\n", step.StepIndex, step.StepID, step.Status)
					}
					break
				}
				time.Sleep(50 * time.Millisecond)
			}

			obj, err := a.service.GetBusinessObject(ctx, objID)
			if err != nil {
				return fmt.Errorf("get business object: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "business object %s final status: %s\n", objID, obj.Status)
			return nil
		},
	}

	cmd.Flags().Float64Var(&amount, "amount", 42.0, "order amount")
	return cmd
}
