// flowrunner CLI: локальный запуск графов и управление
// flows и schedules через HTTP API.
//
// Использование:
//
//	flowrunner [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	run       Локальный запуск графа из файла
//	validate  Проверка описания графа
//	flow      Управление flows
//	schedule  Управление schedules
//	events    Чтение шины событий
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowrunner/internal/cli"
	"github.com/shaiso/flowrunner/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "flowrunner",
		Short:         "flowrunner CLI: run and manage graph descriptions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for local runs (debug, info, warn, error)")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }
	loggerFn := func() *slog.Logger { return telemetry.NewLogger(os.Stderr, logLevel, "text") }

	rootCmd.AddCommand(
		cli.NewRunCmd(outputFn, loggerFn),
		cli.NewValidateCmd(clientFn, outputFn),
		cli.NewFlowCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
		cli.NewEventsCmd(outputFn, loggerFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
