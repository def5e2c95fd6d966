package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/provisioning"
	"github.com/imamik/proxmate/internal/provisioning/compute"
)

// Provision runs the provisioners of running machines.
func Provision(ctx context.Context, opts Options, machines []string) error {
	return run(opts, func(rt *runtime) error {
		return rt.forEachMachine(ctx, machines, 0, func(pctx *provisioning.Context) error {
			state, err := compute.ReadState(pctx)
			if err != nil {
				return err
			}
			if state != proxmox.StateRunning {
				return fmt.Errorf("machine %s is %s, run up first", pctx.Machine.Name, state)
			}
			return runProvisioners(pctx)
		})
	})
}
