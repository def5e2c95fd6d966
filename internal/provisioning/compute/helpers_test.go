package compute

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imamik/proxmate/internal/config"
	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/provisioning"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ProjectDir = t.TempDir()
	cfg.SelectedNode = "pve1"
	cfg.QemuTemplate = "base"
	cfg.VMNamePrefix = "dev-"
	cfg.Timeouts = config.Timeouts{
		Task:               50 * time.Millisecond,
		TaskCheckInterval:  5 * time.Millisecond,
		ImgCopy:            100 * time.Millisecond,
		SSH:                20 * time.Millisecond,
		SSHCheckInterval:   5 * time.Millisecond,
		AgentRetryDelay:    time.Millisecond,
		AgentRetryAttempts: 3,
	}
	return cfg
}

func newContext(t *testing.T, client proxmox.API, cfg *config.Config, m config.Machine, opts ...provisioning.SessionOption) (*provisioning.Context, *provisioning.RecordingObserver) {
	t.Helper()
	return newContextWith(t, context.Background(), client, cfg, m, opts...)
}

func newContextWith(t *testing.T, parent context.Context, client proxmox.API, cfg *config.Config, m config.Machine, opts ...provisioning.SessionOption) (*provisioning.Context, *provisioning.RecordingObserver) {
	t.Helper()
	obs := provisioning.NewRecordingObserver()
	session := provisioning.NewSession(client, cfg, obs, opts...)
	ctx, err := provisioning.NewContext(parent, session, m)
	require.NoError(t, err)
	return ctx, obs
}

// fakeProbe becomes ready after a number of failed checks.
type fakeProbe struct {
	failures int
	calls    atomic.Int32
	err      error
}

func (p *fakeProbe) Ready(_ context.Context) error {
	n := int(p.calls.Add(1))
	if n <= p.failures {
		return p.err
	}
	return nil
}

func probeFactory(p *fakeProbe, addresses *[]string) provisioning.ProbeFactory {
	return func(_ *provisioning.Context, address string) (provisioning.ReadinessProbe, error) {
		if addresses != nil {
			*addresses = append(*addresses, address)
		}
		return p, nil
	}
}

func templateSet() proxmox.VMSet {
	return proxmox.VMSet{
		{ID: "qemu/9001", VMID: 9001, Node: "pve1", Type: "qemu", Name: "base", Template: 1},
	}
}
