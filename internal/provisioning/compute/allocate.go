package compute

import (
	"time"

	"github.com/imamik/proxmate/internal/provisioning"
	"github.com/imamik/proxmate/internal/util/naming"
)

// AllocatePhase picks the lowest free VM id in the configured range.
//
// The id is computed from a fresh cluster listing. Concurrent runs can still
// pick the same id between the listing and the clone request; the optional
// jitter only makes that less likely.
type AllocatePhase struct{}

// NewAllocatePhase creates a new id allocation phase.
func NewAllocatePhase() *AllocatePhase {
	return &AllocatePhase{}
}

// Name implements provisioning.Phase.
func (p *AllocatePhase) Name() string {
	return "allocate"
}

// Provision implements provisioning.Phase.
func (p *AllocatePhase) Provision(ctx *provisioning.Context) error {
	if jitter := ctx.Session.Jitter; jitter != nil {
		if err := pause(ctx, jitter()); err != nil {
			return err
		}
	}

	vmid, err := ctx.Client.FreeVMID(ctx, ctx.Config.VMIDRange)
	if err != nil {
		return provisioning.NewStepError(provisioning.ErrVMClone, ctx.Machine.Name, err)
	}
	ctx.State.VMID = vmid

	if ctx.Config.HostnameAppendID && ctx.Machine.Hostname != "" {
		ctx.Machine.Hostname = naming.HostnameWithID(ctx.Machine.Hostname, vmid)
	}

	ctx.Observer.Detail("Allocated VM id %d", vmid)
	return nil
}

func pause(ctx *provisioning.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
