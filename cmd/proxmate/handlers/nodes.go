package handlers

import (
	"context"
	"fmt"
	"io"
)

// Nodes lists the cluster nodes with their status and the address of iface.
func Nodes(ctx context.Context, opts Options, iface string, out io.Writer) error {
	return run(opts, func(rt *runtime) error {
		nodes, err := rt.client.Nodes(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "%-16s %-10s %s\n", "NODE", "STATUS", "ADDRESS")
		for _, n := range nodes {
			address, err := rt.client.NodeAddress(ctx, n.Name, iface)
			if err != nil {
				return err
			}
			if address == "" {
				address = "-"
			}
			_, _ = fmt.Fprintf(out, "%-16s %-10s %s\n", n.Name, n.Status, address)
		}
		return nil
	})
}
