package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowrunner/internal/engine"
)

// ErrInvalidGraph: описание графа не прошло проверку.
var ErrInvalidGraph = errors.New("graph description is invalid")

// NewValidateCmd создаёт команду проверки описания графа.
func NewValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string
	var remote bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a graph description for structural problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			graph, err := ReadGraph(file)
			if err != nil {
				return err
			}

			var res *ValidateResponse
			if remote {
				res, err = clientFn().Validate(graph.Raw)
				if err != nil {
					return err
				}
			} else {
				res = &ValidateResponse{Valid: true}
				if err := engine.Validate(graph.Nodes); err != nil {
					res = &ValidateResponse{Issues: localIssues(err)}
				}
			}

			if out.IsJSON() {
				out.JSON(res)
			} else if !res.Valid {
				printIssues(out, res.Issues)
			}

			if !res.Valid {
				return ErrInvalidGraph
			}

			out.Success("Graph is valid")
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Graph description file, - for stdin (required)")
	cmd.Flags().BoolVar(&remote, "remote", false, "Validate on the API server")
	cmd.MarkFlagRequired("file")

	return cmd
}

func localIssues(err error) []ValidationIssue {
	errs := engine.ValidationErrors(err)
	if len(errs) == 0 {
		return []ValidationIssue{{Message: err.Error()}}
	}

	issues := make([]ValidationIssue, len(errs))
	for i, ve := range errs {
		issues[i] = ValidationIssue{NodeID: ve.NodeID, Field: ve.Field, Message: ve.Message}
	}
	return issues
}

func printIssues(out *Output, issues []ValidationIssue) {
	rows := make([][]string, len(issues))
	for i, issue := range issues {
		rows[i] = []string{issue.NodeID, issue.Field, issue.Message}
	}
	out.Table([]string{"NODE", "FIELD", "PROBLEM"}, rows)
}
