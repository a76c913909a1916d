package main

import (
	"fmt"

	"github.com/SolidHal/pwnagotchi-flipper/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// newRootCmd creates the root pwnlinkctl command with all subcommands attached.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pwnlinkctl",
		Short:         "Mirror the pwnagotchi UI onto a Flipper Zero over serial",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.ConfigureRuntime()
			if opts.logLevel != "" && !logging.SetLevel(opts.logLevel) {
				return fmt.Errorf("unknown log level %q", opts.logLevel)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a TOML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace, frames, debug, info, warn, error)")

	cmd.AddCommand(
		newRunCmd(opts),
		newProbeCmd(opts),
	)
	return cmd
}
