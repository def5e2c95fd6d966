package compute

import (
	"fmt"

	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/provisioning"
)

// TemplatePhase looks up the configured template and the node it resides on.
type TemplatePhase struct{}

// NewTemplatePhase creates a new template lookup phase.
func NewTemplatePhase() *TemplatePhase {
	return &TemplatePhase{}
}

// Name implements provisioning.Phase.
func (p *TemplatePhase) Name() string {
	return "template"
}

// Provision implements provisioning.Phase.
func (p *TemplatePhase) Provision(ctx *provisioning.Context) error {
	vms, err := ctx.Client.ClusterVMs(ctx)
	if err != nil {
		return provisioning.NewStepError(provisioning.ErrVMClone, ctx.Machine.Name, err)
	}

	tmpl, err := proxmox.ResolveTemplate(vms, ctx.Config.QemuTemplate)
	if err != nil {
		return provisioning.NewStepError(provisioning.ErrVMClone, ctx.Machine.Name,
			fmt.Errorf("template %q: %w", ctx.Config.QemuTemplate, err))
	}

	ctx.State.Template = tmpl
	ctx.Observer.Detail("Using template %s (%d) on %s", ctx.Config.QemuTemplate, tmpl.VMID, tmpl.Node)
	return nil
}
