// Rollup CLI — запуск rollup для отдельных записей и просмотр состояния хоста.
//
// Использование:
//
//	rollup [--config DIR] [--json] <command> [flags]
//
// Команды:
//
//	run         Однократный rollup для записи
//	trigger     Публикация события record.changed
//	seed        Загрузка схемы, записей и bindings из YAML
//	record      Активация и деактивация записей
//	binding     Просмотр bindings
//	invocation  Просмотр invocations
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/rollup/internal/cli"
	"github.com/shaiso/rollup/internal/config"
	"github.com/shaiso/rollup/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var configDir string
	var jsonOutput bool
	var env *cli.Env

	rootCmd := &cobra.Command{
		Use:           "rollup",
		Short:         "Rollup CLI — sum child records onto their parent",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			// Логи CLI — в stderr, чтобы не смешивать с выводом данных
			logger := telemetry.SetupLogger(telemetry.LogOptions{
				Level:  cfg.Log.Level,
				Format: "text",
				Output: os.Stderr,
			})
			env = cli.NewEnv(cfg, logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "Directory containing config.yaml")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	envFn := func() *cli.Env { return env }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(envFn, outputFn),
		cli.NewTriggerCmd(envFn, outputFn),
		cli.NewSeedCmd(envFn, outputFn),
		cli.NewRecordCmd(envFn, outputFn),
		cli.NewBindingCmd(envFn, outputFn),
		cli.NewInvocationCmd(envFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if env != nil {
		env.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
