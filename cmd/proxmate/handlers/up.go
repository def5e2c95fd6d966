package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/proxmate/internal/config"
	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/provisioning"
	"github.com/imamik/proxmate/internal/provisioning/compute"
)

// Up creates missing machines and starts stopped ones. Provisioners run for
// newly created machines, and for existing ones when provision is set.
// Machines are handled in parallel.
func Up(ctx context.Context, opts Options, machines []string, provision bool) error {
	body := func(ctx context.Context, opts Options) error {
		return run(opts, func(rt *runtime) error {
			return rt.forEachMachine(ctx, machines, 0, func(pctx *provisioning.Context) error {
				return up(pctx, provision)
			})
		})
	}
	if !opts.Dashboard || !isTerminal() {
		return body(ctx, opts)
	}
	return runDashboard(ctx, "up", func(ctx context.Context, observer provisioning.Observer) error {
		opts.observer = observer
		return body(ctx, opts)
	})
}

func up(ctx *provisioning.Context, provision bool) error {
	if err := provisioning.RunPhases(ctx, []provisioning.Phase{
		provisioning.NewValidationPhase(),
		compute.NewReadStatePhase(),
	}); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	created := false
	switch ctx.State.VMState {
	case proxmox.StateNotCreated:
		created = true
		if err := provisioning.RunPhases(ctx, []provisioning.Phase{
			compute.NewTemplatePhase(),
			compute.NewAllocatePhase(),
			compute.NewClonePhase(),
			compute.NewStartPhase(),
		}); err != nil {
			return err
		}
	case proxmox.StateStopped:
		if err := provisioning.RunPhases(ctx, []provisioning.Phase{compute.NewStartPhase()}); err != nil {
			return err
		}
	default:
		ctx.Observer.Info("VM is already running")
	}

	if ctx.Err() != nil || !(created || provision) {
		return nil
	}
	return runProvisioners(ctx)
}

// runProvisioners runs the machine's provisioners in order. The network
// phase runs after the last one, or right away when there are none.
func runProvisioners(ctx *provisioning.Context) error {
	m, ok := ctx.Config.Machine(ctx.Machine.Name)
	if !ok {
		return &config.UnknownMachineError{Name: ctx.Machine.Name}
	}
	if len(m.Provisioners) == 0 {
		return compute.NewNetworkPhase().Provision(ctx)
	}
	if ctx.Session.Runners == nil {
		return fmt.Errorf("no provisioner runner configured")
	}

	address, err := guestAddress(ctx)
	if err != nil {
		return err
	}
	runner, err := ctx.Session.Runners(ctx, address)
	if err != nil {
		return err
	}

	for _, prov := range m.Provisioners {
		if ctx.Err() != nil {
			return nil
		}
		ctx.Observer.Info("Running provisioner: %s...", prov.Name)
		out := &detailWriter{observer: ctx.Observer}
		err := runner.Run(ctx, prov, out)
		out.Flush()
		if err != nil {
			return err
		}
		if err := compute.FinishProvisioner(ctx); err != nil {
			return err
		}
	}
	return nil
}

// guestAddress returns the address found while starting, or asks the agent.
func guestAddress(ctx *provisioning.Context) (string, error) {
	if ctx.State.Address != "" {
		return ctx.State.Address, nil
	}
	node, vmid, err := ctx.Machine.VMID()
	if err != nil {
		return "", err
	}
	address, err := ctx.Client.GuestIPv4(ctx, node, vmid)
	if err != nil {
		return "", err
	}
	ctx.State.Address = address
	return address, nil
}
