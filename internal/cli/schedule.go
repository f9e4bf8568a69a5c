package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewScheduleCmd создаёт группу команд для управления schedules.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage schedules of stored flows",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleShowCmd(clientFn, outputFn),
		newScheduleUpdateCmd(clientFn, outputFn),
		newScheduleDeleteCmd(clientFn, outputFn),
		newScheduleToggleCmd(clientFn, outputFn, true),
		newScheduleToggleCmd(clientFn, outputFn, false),
	)

	return cmd
}

var scheduleHeaders = []string{"ID", "FLOW_ID", "NAME", "TRIGGER", "TIMEZONE", "ENABLED", "NEXT_DUE", "LAST_RUN"}

func scheduleRow(s ScheduleResponse) []string {
	return []string{
		s.ID, s.FlowID, s.Name, formatTrigger(s), s.Timezone,
		strconv.FormatBool(s.Enabled), s.NextDueAt, s.LastRunID,
	}
}

// formatTrigger показывает cron или интервал в одной колонке.
func formatTrigger(s ScheduleResponse) string {
	if s.CronExpr != "" {
		return "cron " + s.CronExpr
	}
	if s.IntervalSec > 0 {
		return "every " + strconv.Itoa(s.IntervalSec) + "s"
	}
	return ""
}

// triggerFlags: флаги расписания, общие для create и update.
type triggerFlags struct {
	name        string
	cronExpr    string
	intervalSec int
	timezone    string
	prev        []string
}

func (f *triggerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Schedule name")
	cmd.Flags().StringVar(&f.cronExpr, "cron", "", "Cron expression, five fields (e.g. '*/5 * * * *')")
	cmd.Flags().IntVar(&f.intervalSec, "interval", 0, "Interval in seconds")
	cmd.Flags().StringVar(&f.timezone, "timezone", "", "IANA timezone for cron (default UTC)")
	cmd.Flags().StringSliceVar(&f.prev, "prev", nil, "Previous-runs context passed to every run, KEY=VALUE (repeatable)")
}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flowID string
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled *bool
			if enabledOnly {
				enabled = &enabledOnly
			}

			schedules, err := clientFn().ListSchedules(flowID, enabled)
			if err != nil {
				return err
			}

			rows := make([][]string, len(schedules))
			for i, s := range schedules {
				rows[i] = scheduleRow(s)
			}

			outputFn().Print(scheduleHeaders, rows, schedules)
			return nil
		},
	}

	cmd.Flags().StringVar(&flowID, "flow-id", "", "Only schedules of this flow")
	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "Only enabled schedules")

	return cmd
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flags triggerFlags
	var disabled bool

	cmd := &cobra.Command{
		Use:   "create FLOW_ID",
		Short: "Create a schedule for a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.cronExpr == "" && flags.intervalSec <= 0 {
				return errors.New("either --cron or --interval is required")
			}

			previousRuns, err := parseKeyValues(flags.prev)
			if err != nil {
				return err
			}

			schedule, err := clientFn().CreateSchedule(args[0], CreateScheduleRequest{
				Name:         flags.name,
				CronExpr:     flags.cronExpr,
				IntervalSec:  flags.intervalSec,
				Timezone:     flags.timezone,
				Enabled:      !disabled,
				PreviousRuns: previousRuns,
			})
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Schedule created: %s", schedule.ID))
			out.Print(scheduleHeaders, [][]string{scheduleRow(*schedule)}, schedule)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the schedule disabled")

	return cmd
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show schedule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := clientFn().GetSchedule(args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			out.Print(
				append(scheduleHeaders, "LAST_RUN_AT", "PREV"),
				[][]string{append(scheduleRow(*schedule), schedule.LastRunAt, formatPreviousRuns(schedule.PreviousRuns))},
				schedule,
			)
			return nil
		},
	}
}

func newScheduleUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flags triggerFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a schedule (only changed flags are sent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed

			var req UpdateScheduleRequest
			if changed("name") {
				req.Name = &flags.name
			}
			if changed("cron") {
				req.CronExpr = &flags.cronExpr
			}
			if changed("interval") {
				req.IntervalSec = &flags.intervalSec
			}
			if changed("timezone") {
				req.Timezone = &flags.timezone
			}
			if changed("prev") {
				previousRuns, err := parseKeyValues(flags.prev)
				if err != nil {
					return err
				}
				req.PreviousRuns = &previousRuns
			}

			schedule, err := clientFn().UpdateSchedule(args[0], req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success("Schedule updated")
			out.Print(scheduleHeaders, [][]string{scheduleRow(*schedule)}, schedule)
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func newScheduleDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().DeleteSchedule(args[0]); err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Schedule deleted: %s", args[0]))
			return nil
		},
	}
}

// newScheduleToggleCmd создаёт enable или disable.
func newScheduleToggleCmd(clientFn func() *Client, outputFn func() *Output, enabled bool) *cobra.Command {
	use, short, done := "disable", "Disable a schedule", "disabled"
	if enabled {
		use, short, done = "enable", "Enable a schedule", "enabled"
	}

	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := clientFn().SetScheduleEnabled(args[0], enabled)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Schedule %s: %s", done, schedule.ID))
			if out.IsJSON() {
				out.JSON(schedule)
			}
			return nil
		},
	}
}
