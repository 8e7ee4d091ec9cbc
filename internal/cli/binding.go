package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewBindingCmd создаёт группу команд для просмотра bindings.
func NewBindingCmd(envFn func() *Env, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "binding",
		Short: "Inspect activity bindings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			bindings, err := envFn().Bindings(cmd.Context())
			if err != nil {
				return err
			}
			list, err := bindings.List(cmd.Context())
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "ENTITY", "MESSAGES", "ACTIVITY", "ENABLED"}
			rows := make([][]string, len(list))
			for i, b := range list {
				rows[i] = []string{
					b.ID.String(),
					b.Name,
					b.EntityName,
					strings.Join(b.Messages, ","),
					b.ActivityType,
					strconv.FormatBool(b.Enabled),
				}
			}

			out.Print(headers, rows, list)
			return nil
		},
	})

	return cmd
}
