//go:build integration

// Integration tests run the compute phases against the in-memory Proxmox API.
//
// Run these tests with:
//
//	go test -v -tags=integration ./internal/provisioning/compute/...
package compute

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/proxmate/internal/config"
	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/platform/proxmox/proxmoxtest"
	"github.com/imamik/proxmate/internal/provisioning"
)

func TestComputeIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Compute Integration Suite")
}

type readyProbe struct{}

func (readyProbe) Ready(_ context.Context) error { return nil }

var _ = Describe("Machine lifecycle", func() {
	var (
		srv     *proxmoxtest.Server
		client  *proxmox.Client
		cfg     *config.Config
		session *provisioning.Session
	)

	newMachineContext := func(name string) *provisioning.Context {
		m, ok := cfg.Machine(name)
		Expect(ok).To(BeTrue())
		ctx, err := provisioning.NewContext(context.Background(), session, m)
		Expect(err).NotTo(HaveOccurred())
		return ctx
	}

	BeforeEach(func() {
		srv = proxmoxtest.NewServer()
		DeferCleanup(srv.Close)
		// Clones inherit the interfaces the agent reports.
		srv.AddVM(proxmoxtest.VM{
			VMID:     9001,
			Node:     "pve1",
			Name:     "base",
			Template: true,
			Config:   map[string]string{"net0": "virtio=AA:BB:CC:DD:EE:01,bridge=vmbr0"},
			Interfaces: []proxmoxtest.Interface{
				{Name: "lo", IPv4: []string{"127.0.0.1"}},
				{Name: "eth0", IPv4: []string{"192.0.2.50"}},
			},
		})

		cfg = config.Default()
		cfg.ProjectDir = GinkgoT().TempDir()
		cfg.SelectedNode = "pve1"
		cfg.QemuTemplate = "base"
		cfg.VMNamePrefix = "dev-"
		cfg.QemuVLAN = map[string]int{"net0": 20}
		cfg.Timeouts = config.Timeouts{
			Task:               2 * time.Second,
			TaskCheckInterval:  5 * time.Millisecond,
			ImgCopy:            2 * time.Second,
			SSH:                50 * time.Millisecond,
			SSHCheckInterval:   5 * time.Millisecond,
			AgentRetryDelay:    5 * time.Millisecond,
			AgentRetryAttempts: 3,
		}
		cfg.Machines = []config.Machine{{Name: "web1"}, {Name: "web2"}}

		client = proxmox.NewClient(srv.URL(), srv.Username,
			proxmox.WithPasswordSource(proxmox.StaticPassword(srv.Password)),
			proxmox.WithTimeouts(&cfg.Timeouts))
		session = provisioning.NewSession(client, cfg, provisioning.NewRecordingObserver(),
			provisioning.WithProbeFactory(func(_ *provisioning.Context, _ string) (provisioning.ReadinessProbe, error) {
				return readyProbe{}, nil
			}))
	})

	It("clones, starts and reconfigures a machine", func() {
		ctx := newMachineContext("web1")

		Expect(provisioning.RunPhases(ctx, []provisioning.Phase{
			NewReadStatePhase(),
			NewTemplatePhase(),
			NewAllocatePhase(),
			NewClonePhase(),
			NewStartPhase(),
		})).To(Succeed())

		Expect(ctx.Machine.ID).To(Equal("pve1/900"))
		Expect(ctx.State.Address).To(Equal("192.0.2.50"))

		state, err := ReadState(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(Equal(proxmox.StateRunning))

		Expect(NewNetworkPhase().Provision(ctx)).To(Succeed())
		vm, ok := srv.VM(900)
		Expect(ok).To(BeTrue())
		Expect(vm.Config["net0"]).To(Equal("virtio,bridge=vmbr0,tag=20"))
		Expect(vm.Name).To(Equal("dev-web1"))

		Expect(NewNetworkPhase().Provision(ctx)).To(Succeed())
		Expect(srv.RequestsTo("POST", "/qemu/900/config")).To(HaveLen(1))
	})

	It("allocates distinct ids for consecutive machines", func() {
		for _, name := range []string{"web1", "web2"} {
			ctx := newMachineContext(name)
			Expect(provisioning.RunPhases(ctx, []provisioning.Phase{
				NewTemplatePhase(),
				NewAllocatePhase(),
				NewClonePhase(),
			})).To(Succeed())
		}
		Expect(srv.VMIDs()).To(Equal([]int{900, 901, 9001}))
	})

	It("discovers a machine created by an earlier run", func() {
		srv.AddVM(proxmoxtest.VM{VMID: 950, Node: "pve1", Name: "dev-web2", Status: "stopped"})
		ctx := newMachineContext("web2")

		state, err := ReadState(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(Equal(proxmox.StateStopped))
		Expect(ctx.Machine.ID).To(Equal("pve1/950"))
		Expect(IsStopped(ctx)).To(BeTrue())
	})

	It("fails the clone when ids are exhausted", func() {
		cfg.VMIDRange = config.IDRange{Min: 900, Max: 901}
		srv.AddVM(proxmoxtest.VM{VMID: 900, Node: "pve1", Name: "other-a"})
		srv.AddVM(proxmoxtest.VM{VMID: 901, Node: "pve1", Name: "other-b"})
		ctx := newMachineContext("web1")

		err := provisioning.RunPhases(ctx, []provisioning.Phase{
			NewTemplatePhase(),
			NewAllocatePhase(),
			NewClonePhase(),
		})
		Expect(err).To(MatchError(proxmox.ErrNoIDAvailable))
		Expect(srv.RequestsTo("POST", "/clone")).To(BeEmpty())
	})
})
