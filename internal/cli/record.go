package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/rollup/internal/domain"
)

// NewRecordCmd создаёт группу команд для записей хранилища.
func NewRecordCmd(envFn func() *Env, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Manage records in the record store",
	}

	var (
		entity   string
		recordID string
		state    string
	)
	setState := &cobra.Command{
		Use:   "set-state",
		Short: "Activate or deactivate a record",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			id, err := uuid.Parse(recordID)
			if err != nil {
				return fmt.Errorf("invalid --id %q: %w", recordID, err)
			}
			code, err := parseState(state)
			if err != nil {
				return err
			}

			records, err := envFn().RecordFactory(cmd.Context())
			if err != nil {
				return err
			}
			if err := records.SetState(cmd.Context(), entity, id, code); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("%s %s is now %s", entity, id, state))
			return nil
		},
	}
	setState.Flags().StringVar(&entity, "entity", "", "Entity name")
	setState.Flags().StringVar(&recordID, "id", "", "Record ID")
	setState.Flags().StringVar(&state, "state", "", "active or inactive")
	for _, name := range []string{"entity", "id", "state"} {
		setState.MarkFlagRequired(name)
	}

	cmd.AddCommand(setState)
	return cmd
}

func parseState(s string) (domain.StateCode, error) {
	switch s {
	case "active":
		return domain.StateActive, nil
	case "inactive":
		return domain.StateInactive, nil
	default:
		return 0, fmt.Errorf("invalid --state %q (want active or inactive)", s)
	}
}
