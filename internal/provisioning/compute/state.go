package compute

import (
	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/provisioning"
	"github.com/imamik/proxmate/internal/util/naming"
)

// ReadState returns the machine state, querying the cluster only when nothing
// is cached for the machine or a mutation marked the cache stale.
//
// A machine without a stored identity is looked up by name. When found, its
// identity is adopted and persisted.
func ReadState(ctx *provisioning.Context) (proxmox.State, error) {
	state, err := ctx.Session.Registry.Resolve(ctx.Machine.Name, func() (proxmox.State, error) {
		return fetchState(ctx)
	})
	if err != nil {
		return "", provisioning.NewStepError(provisioning.ErrCommunication, ctx.Machine.Name, err)
	}
	ctx.State.VMState = state
	return state, nil
}

func fetchState(ctx *provisioning.Context) (proxmox.State, error) {
	if ctx.Machine.ID == "" {
		id, err := ctx.Client.FindVM(ctx, naming.DiscoveryName(ctx.Config.VMNamePrefix, ctx.Machine.Name))
		if err != nil {
			return "", err
		}
		if id == "" {
			return proxmox.StateNotCreated, nil
		}
		node, vmid, err := naming.ParseMachineID(id)
		if err != nil {
			return "", err
		}
		if err := ctx.SetMachineID(node, vmid); err != nil {
			return "", err
		}
		ctx.Observer.Detail("Adopted existing VM %s", id)
	}

	_, vmid, err := ctx.Machine.VMID()
	if err != nil {
		return "", err
	}
	return ctx.Client.VMState(ctx, vmid)
}

// IsStopped reports whether the last known state of the machine is stopped.
// It never queries the cluster. A state cached before a mutation is stale
// and does not count.
func IsStopped(ctx *provisioning.Context) bool {
	reg := ctx.Session.Registry
	state, ok := reg.Cached(ctx.Machine.Name)
	return ok && !reg.Dirty(ctx.Machine.Name) && state == proxmox.StateStopped
}

// ReadStatePhase reads the machine state into the run state.
type ReadStatePhase struct{}

// NewReadStatePhase creates a new state reading phase.
func NewReadStatePhase() *ReadStatePhase {
	return &ReadStatePhase{}
}

// Name implements provisioning.Phase.
func (p *ReadStatePhase) Name() string {
	return "state"
}

// Provision implements provisioning.Phase.
func (p *ReadStatePhase) Provision(ctx *provisioning.Context) error {
	_, err := ReadState(ctx)
	return err
}
