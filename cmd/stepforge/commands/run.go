package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newStartCommand() *cobra.Command {
	var businessObjectIDFlag string

	cmd := &cobra.Command{
		Use:   "start <workflow-id>",
		Short: "Start a run of a registered workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wfID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid workflow id %q: %w", args[0], err)
			}

			var businessObjectID *uuid.UUID
			if businessObjectIDFlag != "" {
				id, err := uuid.Parse(businessObjectIDFlag)
				if err != nil {
					return fmt.Errorf("invalid --business-object id %q: %w", businessObjectIDFlag, err)
				}
				businessObjectID = &id
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			runID, err := a.service.StartRun(context.Background(), wfID, businessObjectID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run started: %s\n", runID)
			return nil
		},
	}

	cmd.Flags().StringVar(&businessObjectIDFlag, "business-object", "", "id of a BusinessObject this run's actions operate on")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show a run's status and step states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			snap, err := a.service.GetRun(context.Background(), runID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s\n", snap.Run.ID, snap.Run.Status)
			for _, step := range snap.Steps {
				errMsg := ""
				if step.ErrorMessage != nil {
					errMsg = fmt.Sprintf(" error=%q", *step.ErrorMessage)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s: %s (retries=%d/%d)%s\n",
					step.StepIndex, step.StepID, step.Status, step.RetryCount, step.MaxRetries, errMsg)
			}
			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows and runs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "workflows",
		Short: "List registered workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			wfs, err := a.service.ListWorkflows(context.Background())
			if err != nil {
				return err
			}
			for _, wf := range wfs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", wf.ID, wf.Name)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "runs",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			runs, err := a.service.ListRuns(context.Background())
			if err != nil {
				return err
			}
			for _, run := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  workflow=%s  %s\n", run.ID, run.WorkflowID, run.Status)
			}
			return nil
		},
	})
	return cmd
}
