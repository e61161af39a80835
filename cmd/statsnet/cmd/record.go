package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nikiz24/statsnet"
)

func newCountCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "count <name> [value]",
		Short: "Send a counter",
		Long:  "Send a counter increment. The value defaults to 1.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := int64(1)
			if len(args) == 2 {
				v, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("statsnet count: invalid value %q: %w", args[1], err)
				}
				value = v
			}
			if err := send(gf, func(c *statsnet.Client) { c.Count(args[0], value) }); err != nil {
				return fmt.Errorf("statsnet count: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s:%d|c\n", args[0], value)
			return nil
		},
	}
}

func newGaugeCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "gauge <name> <value>",
		Short: "Send a gauge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("statsnet gauge: invalid value %q: %w", args[1], err)
			}
			if err := send(gf, func(c *statsnet.Client) { c.Gauge(args[0], value) }); err != nil {
				return fmt.Errorf("statsnet gauge: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s:%s|g\n", args[0], args[1])
			return nil
		},
	}
}

func newTimingCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "timing <name> <milliseconds>",
		Short: "Send a timing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("statsnet timing: invalid value %q: %w", args[1], err)
			}
			if err := send(gf, func(c *statsnet.Client) { c.Timing(args[0], ms) }); err != nil {
				return fmt.Errorf("statsnet timing: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s:%d|ms\n", args[0], ms)
			return nil
		},
	}
}
