package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/imamik/proxmate/internal/platform/proxmox"
)

// UploadArgs are the arguments of the upload command.
type UploadArgs struct {
	Path        string
	Node        string
	Storage     string
	ContentType string
	Replace     bool
}

// Upload copies a local ISO image or container template to node storage.
func Upload(ctx context.Context, opts Options, args UploadArgs) error {
	return run(opts, func(rt *runtime) error {
		if _, err := os.Stat(args.Path); err != nil {
			return fmt.Errorf("cannot upload %s: %w", args.Path, err)
		}
		node := args.Node
		if node == "" {
			node = rt.cfg.SelectedNode
		}
		if node == "" {
			return fmt.Errorf("no node given and selected_node is not configured")
		}

		rt.observer.Info("Uploading %s to %s:%s...", args.Path, node, args.Storage)
		_, err := rt.client.UploadFile(ctx, proxmox.UploadOptions{
			Node:        node,
			Storage:     args.Storage,
			ContentType: args.ContentType,
			Path:        args.Path,
			Replace:     args.Replace,
		})
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		return nil
	})
}
