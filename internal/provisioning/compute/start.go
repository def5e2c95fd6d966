package compute

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/provisioning"
	"github.com/imamik/proxmate/internal/util/retry"
)

// StartPhase powers the machine on and waits until it accepts remote commands.
type StartPhase struct{}

// NewStartPhase creates a new start phase.
func NewStartPhase() *StartPhase {
	return &StartPhase{}
}

// Name implements provisioning.Phase.
func (p *StartPhase) Name() string {
	return "start"
}

// Provision implements provisioning.Phase.
func (p *StartPhase) Provision(ctx *provisioning.Context) error {
	node, vmid, err := ctx.Machine.VMID()
	if err != nil {
		return provisioning.NewStepError(provisioning.ErrVMStart, ctx.Machine.Name, err)
	}

	ctx.Observer.Info("Starting VM...")
	status, err := ctx.Client.StartVM(ctx, vmid)
	ctx.MarkDirty()
	if err == nil && status != proxmox.ExitOK {
		err = &proxmox.TaskFailedError{ExitStatus: status}
	}
	if err != nil {
		return provisioning.NewStepError(provisioning.ErrVMStart, ctx.Machine.Name, err)
	}

	if err := waitForAgent(ctx, node, vmid); err != nil {
		if interrupted(ctx, err) {
			return nil
		}
		return provisioning.NewStepError(provisioning.ErrVMStart, ctx.Machine.Name, err)
	}

	ctx.Observer.Info("Waiting for the machine to accept remote commands...")
	if err := waitForReadiness(ctx, node, vmid); err != nil {
		return provisioning.NewStepError(provisioning.ErrSSH, ctx.Machine.Name, err)
	}

	ctx.MarkDirty()
	return nil
}

// waitForAgent polls the guest agent for up to the task budget.
func waitForAgent(ctx *provisioning.Context, node string, vmid int) error {
	t := ctx.Timeouts
	first := true
	return retry.Do(ctx, func() error {
		if !first {
			ctx.Observer.Detail("ping to %d on %s timed out, retrying...", vmid, node)
		}
		first = false
		err := ctx.Client.AgentPing(ctx, node, vmid)
		if errors.Is(err, proxmox.ErrVMNotPingable) {
			return retry.Again(err)
		}
		return err
	},
		retry.WithMaxAttempts(retry.Attempts(t.Task, t.TaskCheckInterval)),
		retry.WithDelay(t.TaskCheckInterval),
		retry.WithTerminal(func(last error) error {
			return fmt.Errorf("guest agent of vm %d not reachable within %v: %w", vmid, t.Task, last)
		}))
}

// waitForReadiness resolves the guest address and probes it until it
// accepts remote commands. An interruption ends the wait without error.
func waitForReadiness(ctx *provisioning.Context, node string, vmid int) error {
	if ctx.Session.Probes == nil {
		return nil
	}

	address, err := ctx.Client.GuestIPv4(ctx, node, vmid)
	if err != nil {
		if interrupted(ctx, err) {
			return nil
		}
		return err
	}
	ctx.State.Address = address

	probe, err := ctx.Session.Probes(ctx, address)
	if err != nil {
		return err
	}

	t := ctx.Timeouts
	err = retry.Do(ctx, func() error {
		ctx.Observer.Detail("Waiting for %d on %s to become ready for communication...", vmid, node)
		if ctx.Err() != nil {
			return nil
		}
		if err := probe.Ready(ctx); err != nil {
			return retry.Again(err)
		}
		return nil
	},
		retry.WithMaxAttempts(retry.Attempts(t.SSH, t.SSHCheckInterval)+1),
		retry.WithDelay(t.SSHCheckInterval),
		retry.WithTerminal(func(last error) error {
			return fmt.Errorf("%s not ready within %v: %w", address, t.SSH, last)
		}))
	if err != nil && interrupted(ctx, err) {
		return nil
	}
	return err
}

func interrupted(ctx *provisioning.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
