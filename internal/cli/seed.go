package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/shaiso/rollup/internal/seed"
)

// NewSeedCmd создаёт команду загрузки fixture.
func NewSeedCmd(envFn func() *Env, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Load attributes, records and bindings from a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			env := envFn()

			fixture, err := seed.Load(args[0])
			if err != nil {
				return err
			}

			records, err := env.RecordFactory(cmd.Context())
			if err != nil {
				return err
			}
			var bindings seed.BindingWriter
			if len(fixture.Bindings) > 0 {
				bindingRepo, err := env.Bindings(cmd.Context())
				if err != nil {
					return err
				}
				bindings = bindingRepo
			}

			res, err := seed.Apply(cmd.Context(), fixture, records, bindings, env.logger)
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(res.Records))
			for k := range res.Records {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			rows := make([][]string, 0, len(keys)+len(res.Bindings))
			for _, k := range keys {
				ref := res.Records[k]
				rows = append(rows, []string{"record", k, ref.EntityName, ref.ID.String()})
			}
			for _, b := range res.Bindings {
				rows = append(rows, []string{"binding", b.Name, b.EntityName, b.ID.String()})
			}

			out.Success(fmt.Sprintf("Seeded %d attributes, %d records, %d bindings",
				res.Attributes, len(fixture.Records), len(res.Bindings)))
			out.Print([]string{"KIND", "KEY", "ENTITY", "ID"}, rows, res)
			return nil
		},
	}
}
