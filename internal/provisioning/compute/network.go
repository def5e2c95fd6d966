package compute

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"

	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/provisioning"
)

var vlanTag = regexp.MustCompile(`tag=(\d+)`)

// NetworkPhase applies the configured VLAN tags to the machine's interfaces.
//
// Only the tag value is compared. An interface whose tag already matches is
// left alone even when its model or bridge differ.
type NetworkPhase struct{}

// NewNetworkPhase creates a new post-provision network phase.
func NewNetworkPhase() *NetworkPhase {
	return &NetworkPhase{}
}

// Name implements provisioning.Phase.
func (p *NetworkPhase) Name() string {
	return "network"
}

// Provision implements provisioning.Phase.
func (p *NetworkPhase) Provision(ctx *provisioning.Context) error {
	cfg := ctx.Config
	if len(cfg.QemuVLAN) == 0 {
		return nil
	}
	fail := func(err error) error {
		return provisioning.NewStepError(provisioning.ErrVMConfig, ctx.Machine.Name, err)
	}

	_, vmid, err := ctx.Machine.VMID()
	if err != nil {
		return fail(err)
	}
	vms, err := ctx.Client.ClusterVMs(ctx)
	if err != nil {
		return fail(err)
	}
	node, err := proxmox.ResidingNode(vms, vmid)
	if err != nil {
		return fail(err)
	}
	current, err := ctx.Client.VMConfig(ctx, node, cfg.VMType, vmid)
	if err != nil {
		return fail(err)
	}

	interfaces := make([]string, 0, len(cfg.QemuVLAN))
	for iface := range cfg.QemuVLAN {
		interfaces = append(interfaces, iface)
	}
	sort.Strings(interfaces)

	params := url.Values{}
	for _, iface := range interfaces {
		vlan := cfg.QemuVLAN[iface]
		if currentTag(current[iface]) == strconv.Itoa(vlan) {
			ctx.Observer.Detail("VLAN %d is already set for interface %s!", vlan, iface)
			provisioning.LogResourceUnchanged(ctx.Observer, p.Name(), "interface", iface)
			continue
		}
		ctx.Observer.Detail("Changing VLAN of %s --> %d", iface, vlan)
		params.Set(iface, fmt.Sprintf("%s,bridge=%s,tag=%d", cfg.QemuNICModel, cfg.QemuBridge, vlan))
	}
	if len(params) == 0 {
		return nil
	}

	status, err := ctx.Client.ConfigureVM(ctx, node, cfg.VMType, vmid, params)
	ctx.MarkDirty()
	if err == nil && status != proxmox.ExitOK {
		err = &proxmox.TaskFailedError{ExitStatus: status}
	}
	if err != nil {
		return fail(err)
	}
	return nil
}

func currentTag(netConfig string) string {
	m := vlanTag.FindStringSubmatch(netConfig)
	if m == nil {
		return ""
	}
	return m[1]
}

// FinishProvisioner records that one provisioner of the machine has completed
// and runs the network phase after the last one.
func FinishProvisioner(ctx *provisioning.Context) error {
	if !ctx.Session.Registry.FinishProvisioner(ctx.Machine.Name, ctx.Machine.Provisioners) {
		return nil
	}
	return NewNetworkPhase().Provision(ctx)
}
