package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/rollup"
)

// NewRunCmd создаёт команду однократного запуска rollup для записи.
func NewRunCmd(envFn func() *Env, outputFn func() *Output) *cobra.Command {
	var (
		entity   string
		recordID string
		userID   string
		depth    int
		cfg      domain.RollupConfig
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a rollup for one child record",
		Example: `  rollup run --entity order --id 6f1c... \
    --rollup-field amount --lookup-field customerId \
    --parent-entity customer --result-field lifetimeTotal --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			id, err := uuid.Parse(recordID)
			if err != nil {
				return fmt.Errorf("invalid --id %q: %w", recordID, err)
			}
			user := uuid.Nil
			if userID != "" {
				if user, err = uuid.Parse(userID); err != nil {
					return fmt.Errorf("invalid --user %q: %w", userID, err)
				}
			}

			factory, err := envFn().RecordFactory(cmd.Context())
			if err != nil {
				return err
			}

			activity := rollup.New(rollup.Config{Factory: factory})
			outcome, err := activity.Run(cmd.Context(), cfg, rollup.FixedContext{
				EntityName: entity,
				RecordID:   id,
				CallDepth:  depth,
				UserID:     user,
			})
			if err != nil {
				return err
			}

			total := "(null)"
			if outcome.Total.Valid {
				total = outcome.Total.Decimal.String()
			}
			parent := ""
			if outcome.ParentID != uuid.Nil {
				parent = outcome.ParentID.String()
			}

			out.Print(
				[]string{"STATE", "RESULT", "PARENT", "TOTAL"},
				[][]string{{string(outcome.State), outcome.Result(), parent, total}},
				outcome.Outputs(),
			)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&entity, "entity", "", "Child entity name (e.g. order)")
	f.StringVar(&recordID, "id", "", "Child record ID")
	f.StringVar(&cfg.ChildRollupField, "rollup-field", "", "Child field to sum")
	f.StringVar(&cfg.ChildLookupField, "lookup-field", "", "Child lookup field referencing the parent")
	f.StringVar(&cfg.ParentEntityName, "parent-entity", "", "Parent entity name")
	f.StringVar(&cfg.ParentResultField, "result-field", "", "Parent field receiving the sum")
	f.BoolVar(&cfg.DebugMode, "debug", false, "Surface errors and bypass the depth guard")
	f.IntVar(&cfg.MaxDepth, "max-depth", 0, "Depth above which the run is skipped (default 1)")
	f.IntVar(&depth, "depth", 1, "Call depth of this invocation")
	f.StringVar(&userID, "user", "", "Initiating user ID")

	for _, name := range []string{"entity", "id", "rollup-field", "lookup-field", "parent-entity", "result-field"} {
		cmd.MarkFlagRequired(name)
	}

	return cmd
}
