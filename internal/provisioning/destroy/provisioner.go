package destroy

import (
	"fmt"

	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/provisioning"
	"github.com/imamik/proxmate/internal/provisioning/compute"
	"github.com/imamik/proxmate/internal/util/naming"
)

// Provisioner deletes a machine's VM.
type Provisioner struct{}

// NewProvisioner creates a new destroy provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string {
	return "destroy"
}

// Provision stops the VM when it runs, deletes it and waits for the task.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	state, err := compute.ReadState(ctx)
	if err != nil {
		return err
	}
	if state == proxmox.StateNotCreated {
		ctx.Observer.Info("VM is not created")
		return nil
	}

	_, vmid, err := ctx.Machine.VMID()
	if err != nil {
		return err
	}
	name := naming.VMName(ctx.Config.VMNamePrefix, ctx.Machine.Hostname, ctx.Machine.Name)

	if state == proxmox.StateRunning {
		if err := compute.NewStopPhase().Provision(ctx); err != nil {
			return err
		}
	}

	ctx.Observer.Info("Destroying VM...")
	ctx.Observer.Event(provisioning.Event{
		Type:     provisioning.EventResourceDeleting,
		Phase:    p.Name(),
		Resource: name,
		Message:  fmt.Sprintf("deleting vm %d", vmid),
	})
	status, err := ctx.Client.DeleteVM(ctx, vmid)
	ctx.MarkDirty()
	if err == nil && status != proxmox.ExitOK {
		err = &proxmox.TaskFailedError{ExitStatus: status}
	}
	if err != nil {
		return fmt.Errorf("failed to destroy %s: %w", ctx.Machine.Name, err)
	}

	provisioning.LogResourceDeleted(ctx.Observer, p.Name(), "vm", name)
	return nil
}

// Cleanup removes the machine's local data, keeping the cwd marker.
type Cleanup struct{}

// NewCleanup creates a new local cleanup phase.
func NewCleanup() *Cleanup {
	return &Cleanup{}
}

// Name implements provisioning.Phase.
func (c *Cleanup) Name() string {
	return "cleanup"
}

// Provision implements provisioning.Phase.
func (c *Cleanup) Provision(ctx *provisioning.Context) error {
	if err := ctx.Session.Machines.Cleanup(ctx.Machine.Name); err != nil {
		return fmt.Errorf("failed to clean up %s: %w", ctx.Machine.Name, err)
	}
	ctx.Machine.ID = ""
	return nil
}
