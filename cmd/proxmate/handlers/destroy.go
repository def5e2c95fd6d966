package handlers

import (
	"context"

	"github.com/imamik/proxmate/internal/provisioning"
	"github.com/imamik/proxmate/internal/provisioning/destroy"
)

// Provisioner interface for testing - matches provisioning.Phase.
type Provisioner interface {
	Name() string
	Provision(ctx *provisioning.Context) error
}

// Factory function variables for destroy - can be replaced in tests.
var (
	newDestroyProvisioner = func() Provisioner { return destroy.NewProvisioner() }
	newCleanupProvisioner = func() Provisioner { return destroy.NewCleanup() }
)

// Destroy deletes the selected machines and clears their local data.
func Destroy(ctx context.Context, opts Options, machines []string) error {
	return run(opts, func(rt *runtime) error {
		return rt.forEachMachine(ctx, machines, 0, func(pctx *provisioning.Context) error {
			return provisioning.RunPhases(pctx, []provisioning.Phase{
				newDestroyProvisioner(),
				newCleanupProvisioner(),
			})
		})
	})
}
