package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/repo"
)

// NewInvocationCmd создаёт группу команд для просмотра invocations.
func NewInvocationCmd(envFn func() *Env, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invocation",
		Short: "Inspect activity invocations",
	}

	cmd.AddCommand(newInvocationListCmd(envFn, outputFn))
	return cmd
}

func newInvocationListCmd(envFn func() *Env, outputFn func() *Output) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invocations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			filter := repo.InvocationFilter{Limit: limit}
			if status != "" {
				filter.Status = domain.ParseInvocationStatus(status)
				if filter.Status == "" {
					return fmt.Errorf("invalid --status %q", status)
				}
			}

			invocations, err := envFn().Invocations(cmd.Context())
			if err != nil {
				return err
			}
			list, err := invocations.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			headers := []string{"ID", "BINDING_ID", "RECORD", "DEPTH", "STATUS", "ATTEMPT", "ERROR", "CREATED"}
			rows := make([][]string, len(list))
			for i, inv := range list {
				rows[i] = []string{
					inv.ID.String(),
					inv.BindingID.String(),
					inv.EntityName + ":" + inv.RecordID.String(),
					strconv.Itoa(inv.Depth),
					string(inv.Status),
					strconv.Itoa(inv.Attempt),
					inv.Error,
					inv.CreatedAt.Format(time.RFC3339),
				}
			}

			out.Print(headers, rows, list)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (QUEUED, RUNNING, SUCCEEDED, SKIPPED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}
