package provisioning

import (
	"context"
	"io"

	"github.com/imamik/proxmate/internal/config"
)

// Phase defines the interface for a provisioning phase.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the provisioning logic for this phase.
	Provision(ctx *Context) error
}

// ReadinessProbe checks whether a guest accepts remote commands.
// Implemented by internal/platform/ssh.Probe.
type ReadinessProbe interface {
	Ready(ctx context.Context) error
}

// ProbeFactory builds a readiness probe for the guest reachable at address.
type ProbeFactory func(ctx *Context, address string) (ReadinessProbe, error)

// ProvisionerRunner runs one configured provisioner on a guest.
// Implemented by internal/platform/ssh.InlineProvisioner.
type ProvisionerRunner interface {
	Run(ctx context.Context, prov config.Provisioner, out io.Writer) error
}

// RunnerFactory builds a provisioner runner for the guest reachable at address.
type RunnerFactory func(ctx *Context, address string) (ProvisionerRunner, error)
