package handlers

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/imamik/proxmate/internal/provisioning"
	"github.com/imamik/proxmate/internal/provisioning/compute"
)

// Status prints the state of each selected machine.
func Status(ctx context.Context, opts Options, machines []string, out io.Writer) error {
	return run(opts, func(rt *runtime) error {
		var mu sync.Mutex
		_, _ = fmt.Fprintf(out, "%-20s %-12s %s\n", "MACHINE", "STATE", "ID")
		return rt.forEachMachine(ctx, machines, 1, func(pctx *provisioning.Context) error {
			state, err := compute.ReadState(pctx)
			if err != nil {
				return err
			}
			id := pctx.Machine.ID
			if id == "" {
				id = "-"
			}
			mu.Lock()
			defer mu.Unlock()
			_, _ = fmt.Fprintf(out, "%-20s %-12s %s\n", pctx.Machine.Name, state, id)
			return nil
		})
	})
}
