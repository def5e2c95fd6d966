package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imamik/proxmate/cmd/proxmate/handlers"
)

// Upload returns the upload command.
func Upload(opts *handlers.Options) *cobra.Command {
	args := handlers.UploadArgs{}

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an ISO image or container template to node storage",
		Long: `Upload copies a local file to the storage of a node. The upload is
skipped when a file of the same name is already present, unless --replace
is given.

Example:
  proxmate upload debian-12.iso --storage local --content iso`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			if args.ContentType != "iso" && args.ContentType != "vztmpl" {
				return fmt.Errorf("invalid content type %q: must be iso or vztmpl", args.ContentType)
			}
			args.Path = positional[0]
			return handlers.Upload(cmd.Context(), *opts, args)
		},
	}

	cmd.Flags().StringVar(&args.Node, "node", "", "Target node (defaults to selected_node)")
	cmd.Flags().StringVar(&args.Storage, "storage", "local", "Target storage")
	cmd.Flags().StringVar(&args.ContentType, "content", "iso", "Content type: iso or vztmpl")
	cmd.Flags().BoolVar(&args.Replace, "replace", false, "Replace an existing file of the same name")

	return cmd
}

// Nodes returns the nodes command.
func Nodes(opts *handlers.Options) *cobra.Command {
	var iface string

	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List cluster nodes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Nodes(cmd.Context(), *opts, iface, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&iface, "interface", "vmbr0", "Node interface whose address is shown")

	return cmd
}

// Files returns the files command.
func Files(opts *handlers.Options) *cobra.Command {
	var node, storage, content string

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List files in node storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Files(cmd.Context(), *opts, node, storage, content, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&node, "node", "", "Node to list (defaults to selected_node)")
	cmd.Flags().StringVar(&storage, "storage", "local", "Storage to list")
	cmd.Flags().StringVar(&content, "content", "", "Only show this content type (iso, vztmpl, images, ...)")

	return cmd
}
