package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowrunner/internal/engine"
	"github.com/shaiso/flowrunner/internal/orchestrator"
)

// ErrRunFailed: хотя бы один http_request завершился fail (с --strict).
var ErrRunFailed = errors.New("run finished with failures")

// runFlags: флаги обхода, общие для локального и удалённого запуска.
type runFlags struct {
	entry           []string
	prev            []string
	stopOnTerminate bool
	skipOnFailure   bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.entry, "entry", nil, "Entry node ID (repeatable, default: nodes without incoming edges)")
	cmd.Flags().StringSliceVar(&f.prev, "prev", nil, "Previous-runs context as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&f.stopOnTerminate, "stop-on-terminate", false, "Stop traversal after a terminate node")
	cmd.Flags().BoolVar(&f.skipOnFailure, "skip-on-failure", false, "Do not visit children of a failed http_request")
}

func (f *runFlags) engineOptions() []engine.Option {
	var opts []engine.Option
	if f.stopOnTerminate {
		opts = append(opts, engine.WithStopOnTerminate())
	}
	if f.skipOnFailure {
		opts = append(opts, engine.WithSkipOnFailure())
	}
	return opts
}

// NewRunCmd создаёт команду локального запуска графа.
//
// Граф выполняется в процессе CLI, API не нужен.
func NewRunCmd(outputFn func() *Output, loggerFn func() *slog.Logger) *cobra.Command {
	var file string
	var opts runFlags
	var validate bool
	var strict bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a graph description locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			graph, err := ReadGraph(file)
			if err != nil {
				return err
			}

			if validate {
				if err := engine.Validate(graph.Nodes); err != nil {
					printIssues(out, localIssues(err))
					return ErrInvalidGraph
				}
			}

			previousRuns, err := parseKeyValues(opts.prev)
			if err != nil {
				return err
			}

			entry := opts.entry
			if len(entry) == 0 {
				entry = graph.Entry
			}

			o := orchestrator.New(orchestrator.Config{Logger: loggerFn()})
			report, err := o.Execute(cmd.Context(), orchestrator.Request{
				Nodes:        graph.Nodes,
				Entry:        entry,
				PreviousRuns: previousRuns,
				Options:      opts.engineOptions(),
			})
			if err != nil {
				return err
			}

			result, err := toRunReport(report)
			if err != nil {
				return err
			}

			out.Print(eventHeaders, eventRows(result.Events), result)
			out.Success(formatSummary(result.Summary))

			if strict && report.Summary.HasFailures() {
				return ErrRunFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Graph description file, - for stdin (required)")
	opts.register(cmd)
	cmd.Flags().BoolVar(&validate, "validate", false, "Validate the graph before running")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error if any http_request failed")
	cmd.MarkFlagRequired("file")

	return cmd
}

// toRunReport приводит отчёт к форме, которую отдаёт API.
func toRunReport(report *orchestrator.Report) (*RunReport, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	var out RunReport
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &out, nil
}
