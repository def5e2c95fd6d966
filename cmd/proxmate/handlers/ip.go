package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/provisioning"
	"github.com/imamik/proxmate/internal/provisioning/compute"
)

// IP prints the IPv4 address the guest agent reports for a running machine.
func IP(ctx context.Context, opts Options, machine string, out io.Writer) error {
	return run(opts, func(rt *runtime) error {
		return rt.forEachMachine(ctx, []string{machine}, 1, func(pctx *provisioning.Context) error {
			state, err := compute.ReadState(pctx)
			if err != nil {
				return err
			}
			if state != proxmox.StateRunning {
				return fmt.Errorf("machine %s is %s", machine, state)
			}
			address, err := guestAddress(pctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(out, address)
			return nil
		})
	})
}
