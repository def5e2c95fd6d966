package config

import (
	"time"
)

// DefaultFileName is the configuration file looked up when no path is given.
const DefaultFileName = "proxmate.yaml"

// Config holds the provider configuration shared by every machine.
type Config struct {
	APIURL    string `yaml:"api_url"`
	Username  string `yaml:"username"`
	VerifySSL bool   `yaml:"verify_ssl"`

	// SelectedNode is the node new clones are placed on.
	SelectedNode string `yaml:"selected_node"`
	VMType       string `yaml:"vm_type"`

	QemuTemplate     string  `yaml:"qemu_template"`
	VMIDRange        IDRange `yaml:"vm_id_range"`
	VMNamePrefix     string  `yaml:"vm_name_prefix"`
	FullClone        bool    `yaml:"full_clone"`
	HostnameAppendID bool    `yaml:"hostname_append_id"`
	Pool             string  `yaml:"pool"`

	// Network desired state applied after provisioning.
	QemuNICModel string         `yaml:"qemu_nic_model"`
	QemuBridge   string         `yaml:"qemu_bridge"`
	QemuVLAN     map[string]int `yaml:"qemu_vlan"` // interface (net0, net1, ...) -> VLAN tag

	// AllocationJitter desynchronizes concurrent id allocation in multi-machine runs.
	AllocationJitter bool `yaml:"allocation_jitter"`

	Timeouts Timeouts  `yaml:"timeouts"`
	SSH      SSHConfig `yaml:"ssh"`

	Machines []Machine `yaml:"machines"`

	// ProjectDir holds the token cache and the machine data directory.
	// Defaults to the directory of the configuration file.
	ProjectDir string `yaml:"-"`
}

// IDRange is the inclusive range of VM ids eligible for allocation.
type IDRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Contains reports whether id falls inside the range.
func (r IDRange) Contains(id int) bool {
	return id >= r.Min && id <= r.Max
}

// SSHConfig configures the remote-command readiness probe and inline provisioners.
type SSHConfig struct {
	User           string `yaml:"user"`
	Port           int    `yaml:"port"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

// Machine describes one guest managed by proxmate.
type Machine struct {
	Name         string        `yaml:"name"`
	Hostname     string        `yaml:"hostname"`
	Provisioners []Provisioner `yaml:"provisioners"`
}

// Provisioner is an inline shell snippet run over SSH once the machine is reachable.
type Provisioner struct {
	Name   string `yaml:"name"`
	Inline string `yaml:"inline"`
}

// Machine returns the machine with the given name.
func (c *Config) Machine(name string) (Machine, bool) {
	for _, m := range c.Machines {
		if m.Name == name {
			return m, true
		}
	}
	return Machine{}, false
}

// SelectMachines returns the machines named in names, or all machines when
// names is empty.
func (c *Config) SelectMachines(names []string) ([]Machine, error) {
	if len(names) == 0 {
		return c.Machines, nil
	}
	selected := make([]Machine, 0, len(names))
	for _, name := range names {
		m, ok := c.Machine(name)
		if !ok {
			return nil, &UnknownMachineError{Name: name}
		}
		selected = append(selected, m)
	}
	return selected, nil
}

// UnknownMachineError is returned when a machine name is not configured.
type UnknownMachineError struct {
	Name string
}

func (e *UnknownMachineError) Error() string {
	return "machine " + e.Name + " is not defined in the configuration"
}

// Timeouts holds all configurable wait budgets and poll intervals.
type Timeouts struct {
	Task                time.Duration `yaml:"task"`                  // Budget for an ordinary task
	TaskCheckInterval   time.Duration `yaml:"task_check_interval"`   // Poll interval for task status
	ImgCopy             time.Duration `yaml:"imgcopy"`               // Budget for storage-image copy tasks
	SSH                 time.Duration `yaml:"ssh"`                   // Budget for remote-command readiness
	SSHCheckInterval    time.Duration `yaml:"ssh_check_interval"`    // Poll interval for readiness
	AgentRetryDelay     time.Duration `yaml:"agent_retry_delay"`     // Delay between guest IPv4 lookups
	AgentRetryAttempts  int           `yaml:"agent_retry_attempts"`  // Attempts for guest IPv4 lookups
	AllocationJitterMax time.Duration `yaml:"allocation_jitter_max"` // Upper bound of the allocation pre-delay
}
