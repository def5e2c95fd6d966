package handlers

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/proxmate/internal/config"
	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/provisioning"
)

// Handler tests replace package-level factories and must not run in parallel.

func testConfig(t *testing.T, machines ...config.Machine) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ProjectDir = t.TempDir()
	cfg.SelectedNode = "pve1"
	cfg.QemuTemplate = "base"
	cfg.VMNamePrefix = "dev-"
	cfg.SSH.PrivateKeyPath = "/dev/null"
	cfg.VerifySSL = true
	cfg.AllocationJitter = false
	cfg.Timeouts = config.Timeouts{
		Task:               50 * time.Millisecond,
		TaskCheckInterval:  5 * time.Millisecond,
		SSH:                20 * time.Millisecond,
		SSHCheckInterval:   5 * time.Millisecond,
		AgentRetryDelay:    time.Millisecond,
		AgentRetryAttempts: 3,
	}
	cfg.Machines = machines
	return cfg
}

type readyProbe struct{}

func (readyProbe) Ready(_ context.Context) error { return nil }

// fakeRunner records the provisioners it ran and prints their script.
type fakeRunner struct {
	mu  sync.Mutex
	ran []string
	err error
}

func (r *fakeRunner) Run(_ context.Context, prov config.Provisioner, out io.Writer) error {
	r.mu.Lock()
	r.ran = append(r.ran, prov.Name)
	r.mu.Unlock()
	_, _ = io.WriteString(out, prov.Inline+"\n")
	return r.err
}

func (r *fakeRunner) Ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

func stubRuntime(t *testing.T, cfg *config.Config, client proxmox.API, runner *fakeRunner) *provisioning.RecordingObserver {
	t.Helper()
	origDotEnv, origLoad, origObs := loadDotEnv, loadConfig, newObserver
	origClient, origProbe, origRunner := newAPIClient, newProbeFactory, newRunnerFactory
	t.Cleanup(func() {
		loadDotEnv, loadConfig, newObserver = origDotEnv, origLoad, origObs
		newAPIClient, newProbeFactory, newRunnerFactory = origClient, origProbe, origRunner
	})

	obs := provisioning.NewRecordingObserver()
	loadDotEnv = func() {}
	loadConfig = func(_ string) (*config.Config, error) { return cfg, nil }
	newObserver = func(_ Options) provisioning.Observer { return obs }
	newAPIClient = func(_ *config.Config, _ Options, _ provisioning.Observer, _ prometheus.Registerer) proxmox.API {
		return client
	}
	newProbeFactory = func(_ *config.Config) provisioning.ProbeFactory {
		return func(_ *provisioning.Context, _ string) (provisioning.ReadinessProbe, error) {
			return readyProbe{}, nil
		}
	}
	newRunnerFactory = func(_ *config.Config) provisioning.RunnerFactory {
		return func(_ *provisioning.Context, _ string) (provisioning.ProvisionerRunner, error) {
			return runner, nil
		}
	}
	return obs
}
