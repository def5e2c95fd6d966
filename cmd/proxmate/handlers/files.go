package handlers

import (
	"context"
	"fmt"
	"io"
)

// Files lists the volumes of a node storage, optionally limited to one content type.
func Files(ctx context.Context, opts Options, node, storage, contentType string, out io.Writer) error {
	return run(opts, func(rt *runtime) error {
		if node == "" {
			node = rt.cfg.SelectedNode
		}
		if node == "" {
			return fmt.Errorf("no node given and selected_node is not configured")
		}

		items, err := rt.client.StorageContent(ctx, node, storage)
		if err != nil {
			return fmt.Errorf("failed to list %s:%s: %w", node, storage, err)
		}

		_, _ = fmt.Fprintf(out, "%-40s %-8s %s\n", "NAME", "CONTENT", "SIZE")
		for _, item := range items {
			if contentType != "" && item.Content != contentType {
				continue
			}
			_, _ = fmt.Fprintf(out, "%-40s %-8s %d\n", item.Basename(), item.Content, item.Size)
		}
		return nil
	})
}
