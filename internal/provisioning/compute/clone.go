package compute

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/provisioning"
	"github.com/imamik/proxmate/internal/util/naming"
)

// ClonePhase clones the template into the allocated id on the selected node.
type ClonePhase struct{}

// NewClonePhase creates a new clone phase.
func NewClonePhase() *ClonePhase {
	return &ClonePhase{}
}

// Name implements provisioning.Phase.
func (p *ClonePhase) Name() string {
	return "clone"
}

// Provision implements provisioning.Phase.
func (p *ClonePhase) Provision(ctx *provisioning.Context) error {
	cfg := ctx.Config
	tmpl := ctx.State.Template
	vmid := ctx.State.VMID
	name := naming.VMName(cfg.VMNamePrefix, ctx.Machine.Hostname, ctx.Machine.Name)

	ctx.Observer.Info("Cloning VM...")
	ctx.Observer.Event(provisioning.Event{
		Type:     provisioning.EventResourceCreating,
		Phase:    p.Name(),
		Resource: name,
		Message:  fmt.Sprintf("cloning template %d into %d", tmpl.VMID, vmid),
	})

	params := url.Values{}
	params.Set("newid", strconv.Itoa(vmid))
	params.Set("name", name)
	params.Set("target", cfg.SelectedNode)
	params.Set("description", naming.DiscoveryName(cfg.VMNamePrefix, ctx.Machine.Name))
	params.Set("full", boolParam(cfg.FullClone))
	if cfg.Pool != "" {
		params.Set("pool", cfg.Pool)
	}

	status, err := ctx.Client.CloneVM(ctx, tmpl.Node, cfg.VMType, tmpl.VMID, params)
	if err == nil && status != proxmox.ExitOK {
		err = &proxmox.TaskFailedError{ExitStatus: status}
	}
	if err != nil {
		return provisioning.NewStepError(provisioning.ErrVMClone, ctx.Machine.Name, err)
	}

	if err := ctx.SetMachineID(cfg.SelectedNode, vmid); err != nil {
		return provisioning.NewStepError(provisioning.ErrVMClone, ctx.Machine.Name,
			fmt.Errorf("failed to store machine id: %w", err))
	}
	ctx.MarkDirty()

	provisioning.LogResourceCreated(ctx.Observer, p.Name(), "vm", name, ctx.Machine.ID)
	return nil
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
