// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/proxmate/cmd/proxmate/handlers"
)

// Root returns the root command for the proxmate CLI.
//
// The global flags are shared by every subcommand through opts.
func Root() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:           "proxmate",
		Short:         "Provision and manage virtual machines on Proxmox VE",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "proxmate.yaml", "Path to configuration file")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "Log every API request and show all events")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	// Machine lifecycle
	cmd.AddCommand(Up(opts))
	cmd.AddCommand(Provision(opts))
	cmd.AddCommand(Status(opts))
	cmd.AddCommand(Halt(opts))
	cmd.AddCommand(Destroy(opts))
	cmd.AddCommand(IP(opts))

	// Cluster utilities
	cmd.AddCommand(Upload(opts))
	cmd.AddCommand(Files(opts))
	cmd.AddCommand(Nodes(opts))
	cmd.AddCommand(Version())

	return cmd
}
