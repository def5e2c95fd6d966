package proxmox

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/imamik/proxmate/internal/config"
	"github.com/imamik/proxmate/internal/platform/proxmox/proxmoxtest"
)

// recordingReporter captures task log lines and warnings.
type recordingReporter struct {
	mu       sync.Mutex
	details  []string
	warnings []string
}

func (r *recordingReporter) Detail(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.details = append(r.details, fmt.Sprintf(format, args...))
}

func (r *recordingReporter) Warn(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

func (r *recordingReporter) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}

func (r *recordingReporter) Details() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.details...)
}

func fastTimeouts() *config.Timeouts {
	return &config.Timeouts{
		Task:               200 * time.Millisecond,
		TaskCheckInterval:  5 * time.Millisecond,
		ImgCopy:            400 * time.Millisecond,
		SSH:                100 * time.Millisecond,
		SSHCheckInterval:   5 * time.Millisecond,
		AgentRetryDelay:    5 * time.Millisecond,
		AgentRetryAttempts: 3,
	}
}

// newTestServer starts a fake cluster with one template (id 100, "ubuntu-tmpl")
// on pve1 and shuts it down with the test.
func newTestServer(t *testing.T) *proxmoxtest.Server {
	t.Helper()
	srv := proxmoxtest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddVM(proxmoxtest.VM{
		VMID:     100,
		Node:     "pve1",
		Name:     "ubuntu-tmpl",
		Template: true,
		Config:   map[string]string{"memory": "2048", "cores": "2", "net0": "virtio=AA:BB:CC:DD:EE:FF,bridge=vmbr0"},
	})
	return srv
}

func newTestClient(t *testing.T, srv *proxmoxtest.Server, opts ...ClientOption) *Client {
	t.Helper()
	base := []ClientOption{
		WithPasswordSource(StaticPassword(srv.Password)),
		WithTimeouts(fastTimeouts()),
	}
	return NewClient(srv.URL(), srv.Username, append(base, opts...)...)
}
