package provisioning

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/imamik/proxmate/internal/config"
	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/util/naming"
)

// Session is shared by every machine handled in one invocation.
type Session struct {
	Client   proxmox.API
	Registry *Registry
	Config   *config.Config
	Timeouts config.Timeouts
	Observer Observer
	Machines *MachineStore
	Probes   ProbeFactory
	Runners  RunnerFactory

	// RunID identifies this invocation in logs and metrics.
	RunID string

	// Jitter returns the pause taken before allocating an id. Nil means none.
	Jitter func() time.Duration
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithProbeFactory sets how readiness probes are built.
func WithProbeFactory(f ProbeFactory) SessionOption {
	return func(s *Session) {
		s.Probes = f
	}
}

// WithRunnerFactory sets how provisioner runners are built.
func WithRunnerFactory(f RunnerFactory) SessionOption {
	return func(s *Session) {
		s.Runners = f
	}
}

// WithMachineStore overrides the machine store.
func WithMachineStore(store *MachineStore) SessionOption {
	return func(s *Session) {
		s.Machines = store
	}
}

// WithJitter sets the allocation pause function.
func WithJitter(f func() time.Duration) SessionOption {
	return func(s *Session) {
		s.Jitter = f
	}
}

// WithAllocationJitter enables the randomized allocation pause when several
// machines are brought up at once and the configuration allows it.
func WithAllocationJitter(parallel bool) SessionOption {
	return func(s *Session) {
		if parallel && s.Config.AllocationJitter {
			s.Jitter = RandomJitter(s.Timeouts.AllocationJitterMax)
		}
	}
}

// RandomJitter returns pauses between one second and max in 100ms steps.
func RandomJitter(maxPause time.Duration) func() time.Duration {
	return func() time.Duration {
		if maxPause <= time.Second {
			return maxPause
		}
		steps := int((maxPause - time.Second) / (100 * time.Millisecond))
		if steps <= 0 {
			return time.Second
		}
		// #nosec G404 -- scheduling jitter, not security relevant
		return time.Second + time.Duration(rand.IntN(steps))*100*time.Millisecond
	}
}

// NewSession creates a session for one invocation.
func NewSession(client proxmox.API, cfg *config.Config, observer Observer, opts ...SessionOption) *Session {
	s := &Session{
		Client:   client,
		Registry: NewRegistry(),
		Config:   cfg,
		Timeouts: cfg.Timeouts,
		Observer: observer,
		Machines: NewMachineStore(cfg.ProjectDir),
		RunID:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Machine is one guest as the pipeline tracks it.
type Machine struct {
	Name     string
	Hostname string

	// ID is the persistent identity "{node}/{vmid}", empty when unknown.
	ID string

	// Provisioners is the number of provisioners that must finish before
	// post-provision network reconfiguration runs.
	Provisioners int
}

// VMID splits the identity into node and numeric id.
func (m *Machine) VMID() (string, int, error) {
	if m.ID == "" {
		return "", 0, fmt.Errorf("machine %s has no identity", m.Name)
	}
	return naming.ParseMachineID(m.ID)
}

// State holds results produced by earlier phases of one run.
type State struct {
	Template proxmox.Template
	VMID     int
	VMState  proxmox.State
	Address  string
}

// Context wraps everything a phase needs for one machine.
type Context struct {
	context.Context
	Session  *Session
	Config   *config.Config
	Client   proxmox.API
	Observer Observer
	Timeouts config.Timeouts
	Machine  *Machine
	State    *State
}

// NewContext creates the context for machine m, loading its stored identity.
func NewContext(ctx context.Context, session *Session, m config.Machine) (*Context, error) {
	id, err := session.Machines.ID(m.Name)
	if err != nil {
		return nil, err
	}
	return &Context{
		Context:  ctx,
		Session:  session,
		Config:   session.Config,
		Client:   session.Client,
		Observer: session.Observer.WithFields(map[string]string{"machine": m.Name, "run": session.RunID}),
		Timeouts: session.Timeouts,
		Machine: &Machine{
			Name:         m.Name,
			Hostname:     m.Hostname,
			ID:           id,
			Provisioners: len(m.Provisioners),
		},
		State: &State{},
	}, nil
}

// SetMachineID records and persists the machine identity.
func (c *Context) SetMachineID(node string, vmid int) error {
	id := naming.MachineID(node, vmid)
	if err := c.Session.Machines.SetID(c.Machine.Name, id); err != nil {
		return err
	}
	c.Machine.ID = id
	return nil
}

// MarkDirty marks the machine state stale after a mutation.
func (c *Context) MarkDirty() {
	c.Session.Registry.MarkDirty(c.Machine.Name)
}
