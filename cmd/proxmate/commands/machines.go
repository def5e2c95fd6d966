package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/proxmate/cmd/proxmate/handlers"
)

// Up returns the up command.
func Up(opts *handlers.Options) *cobra.Command {
	var provision, dashboard bool

	cmd := &cobra.Command{
		Use:   "up [machine...]",
		Short: "Create and start machines",
		Long: `Up clones missing machines from the configured template, starts them
and waits until they accept SSH connections. Provisioners run for newly
created machines; pass --provision to run them on existing machines too.

All machines are handled in parallel when no names are given. With
--dashboard the progress of every machine is shown in a live view.

Example:
  proxmate up
  proxmate up web1 --provision
  proxmate up --dashboard`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := *opts
			o.Dashboard = dashboard
			return handlers.Up(cmd.Context(), o, args, provision)
		},
	}

	cmd.Flags().BoolVar(&provision, "provision", false, "Run provisioners on machines that already exist")
	cmd.Flags().BoolVar(&dashboard, "dashboard", false, "Show a live progress dashboard (terminal only)")

	return cmd
}

// Provision returns the provision command.
func Provision(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "provision [machine...]",
		Short: "Run provisioners on running machines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Provision(cmd.Context(), *opts, args)
		},
	}
}

// Status returns the status command.
func Status(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status [machine...]",
		Short: "Show the state of machines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Status(cmd.Context(), *opts, args, cmd.OutOrStdout())
		},
	}
}

// Halt returns the halt command.
func Halt(opts *handlers.Options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "halt [machine...]",
		Short: "Shut machines down",
		Long: `Halt asks running machines to shut down through ACPI. With --force the
machines are powered off immediately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Halt(cmd.Context(), *opts, args, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Power off instead of shutting down")

	return cmd
}

// Destroy returns the destroy command.
func Destroy(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy [machine...]",
		Short: "Delete machines and their local data",
		Long: `Destroy stops running machines, deletes them from the cluster and
removes their local data.

WARNING: This operation is irreversible. All data on the machines will be lost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Destroy(cmd.Context(), *opts, args)
		},
	}
}

// IP returns the ip command.
func IP(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "ip <machine>",
		Short: "Print the IPv4 address of a running machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.IP(cmd.Context(), *opts, args[0], cmd.OutOrStdout())
		},
	}
}
