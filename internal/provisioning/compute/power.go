package compute

import (
	"context"
	"fmt"

	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/provisioning"
)

// StopPhase powers the machine off immediately.
type StopPhase struct{}

// NewStopPhase creates a new stop phase.
func NewStopPhase() *StopPhase {
	return &StopPhase{}
}

// Name implements provisioning.Phase.
func (p *StopPhase) Name() string {
	return "stop"
}

// Provision implements provisioning.Phase.
func (p *StopPhase) Provision(ctx *provisioning.Context) error {
	ctx.Observer.Info("Stopping VM...")
	return powerOff(ctx, ctx.Client.StopVM)
}

// ShutdownPhase asks the guest to shut down cleanly.
type ShutdownPhase struct{}

// NewShutdownPhase creates a new shutdown phase.
func NewShutdownPhase() *ShutdownPhase {
	return &ShutdownPhase{}
}

// Name implements provisioning.Phase.
func (p *ShutdownPhase) Name() string {
	return "shutdown"
}

// Provision implements provisioning.Phase.
func (p *ShutdownPhase) Provision(ctx *provisioning.Context) error {
	ctx.Observer.Info("Shutting down VM...")
	return powerOff(ctx, ctx.Client.ShutdownVM)
}

func powerOff(ctx *provisioning.Context, action func(context.Context, int) (string, error)) error {
	_, vmid, err := ctx.Machine.VMID()
	if err != nil {
		return err
	}
	status, err := action(ctx, vmid)
	ctx.MarkDirty()
	if err == nil && status != proxmox.ExitOK {
		err = &proxmox.TaskFailedError{ExitStatus: status}
	}
	if err != nil {
		return fmt.Errorf("failed to power off %s: %w", ctx.Machine.Name, err)
	}
	return nil
}
