package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewFlowCmd создаёт группу команд для управления flows.
func NewFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Manage stored graph descriptions",
	}

	cmd.AddCommand(
		newFlowListCmd(clientFn, outputFn),
		newFlowCreateCmd(clientFn, outputFn),
		newFlowShowCmd(clientFn, outputFn),
		newFlowUpdateCmd(clientFn, outputFn),
		newFlowDeleteCmd(clientFn, outputFn),
		newFlowRunCmd(clientFn, outputFn),
	)

	return cmd
}

var flowHeaders = []string{"ID", "NAME", "ACTIVE", "ENTRY", "UPDATED"}

func flowRow(f FlowResponse) []string {
	return []string{f.ID, f.Name, strconv.FormatBool(f.IsActive), strings.Join(f.Entry, ","), f.UpdatedAt}
}

func newFlowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flows, err := client.ListFlows()
			if err != nil {
				return err
			}

			rows := make([][]string, len(flows))
			for i, f := range flows {
				rows[i] = flowRow(f)
			}

			out.Print(flowHeaders, rows, flows)
			return nil
		},
	}
}

func newFlowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var file string
	var entry []string
	var inactive bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store a graph description",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			graph, err := ReadGraph(file)
			if err != nil {
				return err
			}

			req := CreateFlowRequest{
				Name:  name,
				Nodes: graph.Raw,
				Entry: graph.Entry,
			}
			if len(entry) > 0 {
				req.Entry = entry
			}
			if inactive {
				active := false
				req.IsActive = &active
			}

			flow, err := client.CreateFlow(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow created: %s", flow.ID))
			out.Print(flowHeaders, [][]string{flowRow(*flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Flow name (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Graph description file, - for stdin (required)")
	cmd.Flags().StringSliceVar(&entry, "entry", nil, "Entry node ID (repeatable)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the flow inactive")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newFlowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show flow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.GetFlow(args[0])
			if err != nil {
				return err
			}

			if out.IsJSON() {
				out.JSON(flow)
				return nil
			}

			out.Table(flowHeaders, [][]string{flowRow(*flow)})

			graph, err := ParseGraph(flow.Nodes)
			if err != nil {
				return err
			}

			rows := make([][]string, len(graph.Nodes))
			for i, n := range graph.Nodes {
				rows[i] = []string{n.ID, string(n.Type), n.Name, strings.Join(n.Outputs, ",")}
			}
			out.Newline()
			out.Table([]string{"NODE", "TYPE", "NAME", "OUTPUTS"}, rows)
			return nil
		},
	}
}

func newFlowUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var active string
	var file string
	var entry []string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateFlowRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("active") {
				b, err := strconv.ParseBool(active)
				if err != nil {
					return fmt.Errorf("invalid value for --active: %s", active)
				}
				req.IsActive = &b
			}
			if cmd.Flags().Changed("file") {
				graph, err := ReadGraph(file)
				if err != nil {
					return err
				}
				req.Nodes = &graph.Raw
				if graph.Entry != nil {
					req.Entry = &graph.Entry
				}
			}
			if cmd.Flags().Changed("entry") {
				req.Entry = &entry
			}

			flow, err := client.UpdateFlow(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Flow updated")
			out.Print(flowHeaders, [][]string{flowRow(*flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New flow name")
	cmd.Flags().StringVar(&active, "active", "", "Set active status (true/false)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Replace the graph description")
	cmd.Flags().StringSliceVar(&entry, "entry", nil, "Replace entry node IDs")

	return cmd
}

func newFlowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteFlow(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow deleted: %s", args[0]))
			return nil
		},
	}
}

func newFlowRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts runFlags
	var async bool

	cmd := &cobra.Command{
		Use:   "run ID",
		Short: "Run a stored flow on the API server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			previousRuns, err := parseKeyValues(opts.prev)
			if err != nil {
				return err
			}

			req := RunFlowRequest{
				Entry:           opts.entry,
				PreviousRuns:    previousRuns,
				StopOnTerminate: opts.stopOnTerminate,
				SkipOnFailure:   opts.skipOnFailure,
			}

			if async {
				started, err := client.StartFlow(args[0], req)
				if err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Run started: %s", started.RunID))
				if out.IsJSON() {
					out.JSON(started)
				}
				return nil
			}

			report, err := client.RunFlow(args[0], req)
			if err != nil {
				return err
			}

			out.Print(eventHeaders, eventRows(report.Events), report)
			out.Success(formatSummary(report.Summary))
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&async, "async", false, "Return the run ID without waiting")

	return cmd
}

func formatSummary(s RunSummary) string {
	return fmt.Sprintf("Run %s: visited %d, failed %d", s.RunID, s.Visited, s.Failed)
}
