package compute

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/proxmate/internal/config"
	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/provisioning"
)

func notPingable(vmid int) error {
	return fmt.Errorf("%w: vm %d: %w", proxmox.ErrVMNotPingable, vmid,
		&proxmox.APIError{Kind: proxmox.ErrServer, Message: "QEMU guest agent is not running"})
}

func TestStartPhase_Success(t *testing.T) {
	t.Parallel()
	var pings atomic.Int32
	var started int
	client := &proxmox.MockClient{
		StartVMFunc: func(_ context.Context, vmid int) (string, error) {
			started = vmid
			return proxmox.ExitOK, nil
		},
		AgentPingFunc: func(_ context.Context, _ string, vmid int) error {
			if pings.Add(1) < 3 {
				return notPingable(vmid)
			}
			return nil
		},
	}
	probe := &fakeProbe{failures: 2, err: errors.New("connection refused")}
	var addresses []string
	ctx, obs := newContext(t, client, testConfig(t), config.Machine{Name: "web1"},
		provisioning.WithProbeFactory(probeFactory(probe, &addresses)))
	require.NoError(t, ctx.SetMachineID("pve1", 900))

	require.NoError(t, NewStartPhase().Provision(ctx))

	assert.Equal(t, 900, started)
	assert.Equal(t, int32(3), pings.Load())
	assert.Equal(t, int32(3), probe.calls.Load())
	assert.Equal(t, []string{"192.0.2.10"}, addresses)
	assert.Equal(t, "192.0.2.10", ctx.State.Address)
	assert.True(t, ctx.Session.Registry.Dirty("web1"))
	assert.True(t, obs.Contains("ping to 900 on pve1 timed out, retrying..."))
}

func TestStartPhase_StartFails(t *testing.T) {
	t.Parallel()
	client := &proxmox.MockClient{
		StartVMFunc: func(_ context.Context, _ int) (string, error) {
			return "", &proxmox.APIError{Kind: proxmox.ErrServer, Message: "start failed"}
		},
	}
	ctx, _ := newContext(t, client, testConfig(t), config.Machine{Name: "web1"})
	require.NoError(t, ctx.SetMachineID("pve1", 900))

	err := NewStartPhase().Provision(ctx)
	assert.ErrorIs(t, err, provisioning.ErrVMStart)
	assert.ErrorIs(t, err, proxmox.ErrServer)
	assert.True(t, ctx.Session.Registry.Dirty("web1"))
}

func TestStartPhase_AgentNeverAnswers(t *testing.T) {
	t.Parallel()
	var pings atomic.Int32
	client := &proxmox.MockClient{
		AgentPingFunc: func(_ context.Context, _ string, vmid int) error {
			pings.Add(1)
			return notPingable(vmid)
		},
	}
	cfg := testConfig(t)
	ctx, _ := newContext(t, client, cfg, config.Machine{Name: "web1"})
	require.NoError(t, ctx.SetMachineID("pve1", 900))

	err := NewStartPhase().Provision(ctx)
	assert.ErrorIs(t, err, provisioning.ErrVMStart)
	assert.ErrorIs(t, err, proxmox.ErrVMNotPingable)
	assert.Equal(t, int32(cfg.Timeouts.Task/cfg.Timeouts.TaskCheckInterval), pings.Load())
}

func TestStartPhase_AgentErrorAbortsWait(t *testing.T) {
	t.Parallel()
	var pings atomic.Int32
	client := &proxmox.MockClient{
		AgentPingFunc: func(_ context.Context, _ string, _ int) error {
			pings.Add(1)
			return &proxmox.APIError{Kind: proxmox.ErrNotImplemented, Message: "Method 'POST /agent' not implemented"}
		},
	}
	ctx, _ := newContext(t, client, testConfig(t), config.Machine{Name: "web1"})
	require.NoError(t, ctx.SetMachineID("pve1", 900))

	err := NewStartPhase().Provision(ctx)
	assert.ErrorIs(t, err, provisioning.ErrVMStart)
	assert.ErrorIs(t, err, proxmox.ErrNotImplemented)
	assert.Equal(t, int32(1), pings.Load())
}

func TestStartPhase_NotReady(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	probe := &fakeProbe{failures: 1000, err: errors.New("connection refused")}
	ctx, _ := newContext(t, &proxmox.MockClient{}, cfg, config.Machine{Name: "web1"},
		provisioning.WithProbeFactory(probeFactory(probe, nil)))
	require.NoError(t, ctx.SetMachineID("pve1", 900))

	err := NewStartPhase().Provision(ctx)
	assert.ErrorIs(t, err, provisioning.ErrSSH)
	assert.Equal(t, int32(cfg.Timeouts.SSH/cfg.Timeouts.SSHCheckInterval+1), probe.calls.Load())
}

func TestStartPhase_NoIPv4(t *testing.T) {
	t.Parallel()
	client := &proxmox.MockClient{
		GuestIPv4Func: func(_ context.Context, _ string, _ int) (string, error) {
			return "", &proxmox.NoValidIPv4Error{Interfaces: map[string][]string{"eth0": {"fe80::1"}}}
		},
	}
	ctx, _ := newContext(t, client, testConfig(t), config.Machine{Name: "web1"},
		provisioning.WithProbeFactory(probeFactory(&fakeProbe{}, nil)))
	require.NoError(t, ctx.SetMachineID("pve1", 900))

	err := NewStartPhase().Provision(ctx)
	assert.ErrorIs(t, err, provisioning.ErrSSH)
	var noIP *proxmox.NoValidIPv4Error
	assert.True(t, errors.As(err, &noIP))
}

type cancelProbe struct {
	cancel context.CancelFunc
	calls  atomic.Int32
}

func (p *cancelProbe) Ready(_ context.Context) error {
	p.calls.Add(1)
	p.cancel()
	return errors.New("connection refused")
}

func TestStartPhase_InterruptedReadinessIsNotAnError(t *testing.T) {
	t.Parallel()
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	probe := &cancelProbe{cancel: cancel}
	ctx, _ := newContextWith(t, parent, &proxmox.MockClient{}, testConfig(t), config.Machine{Name: "web1"},
		provisioning.WithProbeFactory(func(_ *provisioning.Context, _ string) (provisioning.ReadinessProbe, error) {
			return probe, nil
		}))
	require.NoError(t, ctx.SetMachineID("pve1", 900))

	assert.NoError(t, NewStartPhase().Provision(ctx))
	assert.Equal(t, int32(1), probe.calls.Load())
}

func TestStartPhase_RequiresIdentity(t *testing.T) {
	t.Parallel()
	ctx, _ := newContext(t, &proxmox.MockClient{}, testConfig(t), config.Machine{Name: "web1"})
	assert.ErrorIs(t, NewStartPhase().Provision(ctx), provisioning.ErrVMStart)
}
