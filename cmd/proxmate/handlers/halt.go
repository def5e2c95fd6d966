package handlers

import (
	"context"

	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/provisioning"
	"github.com/imamik/proxmate/internal/provisioning/compute"
)

// Halt shuts running machines down, or powers them off when force is set.
func Halt(ctx context.Context, opts Options, machines []string, force bool) error {
	return run(opts, func(rt *runtime) error {
		return rt.forEachMachine(ctx, machines, 0, func(pctx *provisioning.Context) error {
			state, err := compute.ReadState(pctx)
			if err != nil {
				return err
			}
			switch {
			case state == proxmox.StateNotCreated:
				pctx.Observer.Info("VM is not created")
				return nil
			case compute.IsStopped(pctx):
				pctx.Observer.Info("VM is not running")
				return nil
			}
			var phase provisioning.Phase = compute.NewShutdownPhase()
			if force {
				phase = compute.NewStopPhase()
			}
			return provisioning.RunPhases(pctx, []provisioning.Phase{phase})
		})
	})
}
