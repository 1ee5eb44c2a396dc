package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/droverhq/drover/internal/task"
)

// NewTaskCommand constructs the `task` command group and subcommands.
func NewTaskCommand(apiURL func() string) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Task operations (create, claim, results, feedback)",
		Long: `Task operations against a running drover server.

Row Lifecycle:
  created → [fetch] STARTED → [save --final] COMPLETED
                                   ↓ (feedback)
                              FB_REQUESTED → claimable again

Commands:
  create      Insert a new work item
  get         Show one task row
  list        List rows (optional CEL --filter)
  status      Show lifecycle fields workers poll
  fetch       Claim pending rows for a consumer
  save        Save a draft or final result
  done        Show outputs and feedback for a process instance
  mark-done   Mark a submitted row DONE
  feedback    Attach feedback and reopen a row
  cancel      Cancel a row
  events      Show a row's lifecycle history`,
	}

	taskCmd.AddCommand(
		newTaskCreateCommand(apiURL),
		newTaskGetCommand(apiURL),
		newTaskListCommand(apiURL),
		newTaskStatusCommand(apiURL),
		newTaskFetchCommand(apiURL),
		newTaskSaveCommand(apiURL),
		newTaskDoneCommand(apiURL),
		newTaskMarkDoneCommand(apiURL),
		newTaskFeedbackCommand(apiURL),
		newTaskCancelCommand(apiURL),
		newTaskEventsCommand(apiURL),
	)
	return taskCmd
}

func newTaskCreateCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Insert a new work item",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("id")
			mode, _ := cmd.Flags().GetString("agent-mode")
			orch, _ := cmd.Flags().GetString("agent-orch")
			tenant, _ := cmd.Flags().GetString("tenant")
			procInst, _ := cmd.Flags().GetString("proc-inst-id")

			created, err := NewAPI(apiURL()).Create(cmd.Context(), &task.Task{
				ID:         id,
				AgentMode:  task.AgentMode(mode),
				AgentOrch:  orch,
				TenantID:   tenant,
				ProcInstID: procInst,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), created)
		},
	}
	cmd.Flags().String("id", "", "Task id (generated when empty)")
	cmd.Flags().String("agent-mode", "COMPLETE", "Agent mode: DRAFT|COMPLETE")
	cmd.Flags().String("agent-orch", "", "Orchestrator (server default when empty)")
	cmd.Flags().String("tenant", "", "Tenant id")
	cmd.Flags().String("proc-inst-id", "", "Process instance id")
	return cmd
}

func newTaskGetCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show one task row",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("id")
			t, err := NewAPI(apiURL()).Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), t)
		},
	}
	cmd.Flags().String("id", "", "Task id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newTaskListCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List task rows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			filter, _ := cmd.Flags().GetString("filter")
			rows, err := NewAPI(apiURL()).List(cmd.Context(), limit, filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().Int("limit", 100, "Max rows")
	cmd.Flags().String("filter", "", `CEL filter, e.g. 'status == "IN_PROGRESS" && !has_output'`)
	return cmd
}

func newTaskStatusCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show lifecycle fields workers poll",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("id")
			t, err := NewAPI(apiURL()).Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"task_id":      t.ID,
				"status":       t.Status,
				"draft_status": t.DraftStatus,
			})
		},
	}
	cmd.Flags().String("id", "", "Task id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newTaskFetchCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Claim pending rows for a consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			consumer, _ := cmd.Flags().GetString("consumer")
			tenant, _ := cmd.Flags().GetString("tenant")
			claimed, err := NewAPI(apiURL()).FetchPending(cmd.Context(), limit, consumer, tenant)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), claimed)
		},
	}
	cmd.Flags().Int("limit", 1, "Claim batch size")
	cmd.Flags().String("consumer", "", "Consumer id")
	cmd.Flags().String("tenant", "", "Restrict claims to one tenant")
	_ = cmd.MarkFlagRequired("consumer")
	return cmd
}

func newTaskSaveCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a draft or final result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("id")
			consumer, _ := cmd.Flags().GetString("consumer")
			data, _ := cmd.Flags().GetString("data")
			final, _ := cmd.Flags().GetBool("final")
			if !json.Valid([]byte(data)) {
				return fmt.Errorf("--data must be valid JSON")
			}
			if err := NewAPI(apiURL()).SaveResult(cmd.Context(), id, consumer, json.RawMessage(data), final); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	cmd.Flags().String("id", "", "Task id")
	cmd.Flags().String("consumer", "", "Consumer id")
	cmd.Flags().String("data", "", "Result payload (JSON)")
	cmd.Flags().Bool("final", false, "Mark the result final")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newTaskDoneCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "done",
		Short: "Show outputs and feedback for a process instance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			procInst, _ := cmd.Flags().GetString("proc-inst-id")
			data, err := NewAPI(apiURL()).FetchDone(cmd.Context(), procInst)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().String("proc-inst-id", "", "Process instance id")
	_ = cmd.MarkFlagRequired("proc-inst-id")
	return cmd
}

func newTaskMarkDoneCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark-done",
		Short: "Mark a submitted row DONE",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("id")
			if err := NewAPI(apiURL()).MarkDone(cmd.Context(), id); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	cmd.Flags().String("id", "", "Task id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newTaskFeedbackCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Attach feedback and reopen a row",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("id")
			data, _ := cmd.Flags().GetString("data")
			if !json.Valid([]byte(data)) {
				return fmt.Errorf("--data must be valid JSON")
			}
			if err := NewAPI(apiURL()).Feedback(cmd.Context(), id, json.RawMessage(data)); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	cmd.Flags().String("id", "", "Task id")
	cmd.Flags().String("data", "", "Feedback document (JSON)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newTaskCancelCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a row",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("id")
			if err := NewAPI(apiURL()).Cancel(cmd.Context(), id); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	cmd.Flags().String("id", "", "Task id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newTaskEventsCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show a row's lifecycle history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("id")
			limit, _ := cmd.Flags().GetInt("limit")
			evs, err := NewAPI(apiURL()).Events(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			var pretty any
			if err := json.Unmarshal(evs, &pretty); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), pretty)
		},
	}
	cmd.Flags().String("id", "", "Task id")
	cmd.Flags().Int("limit", 100, "Max events")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
