package config

import (
	"fmt"
	"net/url"
	"regexp"
)

// ValidVMTypes lists the guest types proxmate can drive.
var ValidVMTypes = map[string]bool{
	"qemu": true,
}

// interfaceRegex matches Proxmox network device keys (net0 .. net31).
var interfaceRegex = regexp.MustCompile(`^net([0-9]|[12][0-9]|3[01])$`)

// Validate checks the configuration for common errors and returns a detailed error if validation fails.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_url %q is not an absolute URL", c.APIURL)
	}
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	if c.SelectedNode == "" {
		return fmt.Errorf("selected_node is required")
	}
	if c.QemuTemplate == "" {
		return fmt.Errorf("qemu_template is required")
	}
	if !ValidVMTypes[c.VMType] {
		return fmt.Errorf("vm_type %q is not supported", c.VMType)
	}

	if err := c.validateIDRange(); err != nil {
		return fmt.Errorf("vm_id_range validation failed: %w", err)
	}
	if err := c.validateNetwork(); err != nil {
		return fmt.Errorf("network validation failed: %w", err)
	}
	if err := c.validateTimeouts(); err != nil {
		return fmt.Errorf("timeouts validation failed: %w", err)
	}
	if err := c.validateMachines(); err != nil {
		return fmt.Errorf("machines validation failed: %w", err)
	}

	return nil
}

func (c *Config) validateIDRange() error {
	// Proxmox reserves ids below 100.
	if c.VMIDRange.Min < 100 {
		return fmt.Errorf("min must be at least 100, got %d", c.VMIDRange.Min)
	}
	if c.VMIDRange.Max < c.VMIDRange.Min {
		return fmt.Errorf("max (%d) must not be lower than min (%d)", c.VMIDRange.Max, c.VMIDRange.Min)
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if len(c.QemuVLAN) == 0 {
		return nil
	}
	if c.QemuBridge == "" {
		return fmt.Errorf("qemu_bridge is required when qemu_vlan is set")
	}
	if c.QemuNICModel == "" {
		return fmt.Errorf("qemu_nic_model is required when qemu_vlan is set")
	}
	for iface, tag := range c.QemuVLAN {
		if !interfaceRegex.MatchString(iface) {
			return fmt.Errorf("invalid interface %q: expected net0..net31", iface)
		}
		if tag < 1 || tag > 4094 {
			return fmt.Errorf("invalid VLAN tag %d for %s: must be between 1 and 4094", tag, iface)
		}
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	t := c.Timeouts
	if t.TaskCheckInterval <= 0 {
		return fmt.Errorf("task_check_interval must be positive")
	}
	if t.SSHCheckInterval <= 0 {
		return fmt.Errorf("ssh_check_interval must be positive")
	}
	if t.Task < t.TaskCheckInterval {
		return fmt.Errorf("task (%v) must not be shorter than task_check_interval (%v)", t.Task, t.TaskCheckInterval)
	}
	if t.AgentRetryAttempts < 1 {
		return fmt.Errorf("agent_retry_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateMachines() error {
	if len(c.Machines) == 0 {
		return fmt.Errorf("at least one machine is required")
	}
	seen := make(map[string]bool, len(c.Machines))
	for _, m := range c.Machines {
		if m.Name == "" {
			return fmt.Errorf("machine name is required")
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate machine name %q", m.Name)
		}
		seen[m.Name] = true
		for i, p := range m.Provisioners {
			if p.Inline == "" {
				return fmt.Errorf("machine %s: provisioner %d has no inline script", m.Name, i)
			}
		}
	}
	return nil
}
