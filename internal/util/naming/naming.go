package naming

import (
	"fmt"
	"strconv"
	"strings"
)

// VMName returns the guest name used for clones and for discovery.
//
// Precedence: prefix+hostname, prefix+machine name, hostname, machine name.
func VMName(prefix, hostname, machine string) string {
	base := hostname
	if base == "" {
		base = machine
	}
	return prefix + base
}

// DiscoveryName returns the guest name a machine without a stored identity is
// looked up by.
func DiscoveryName(prefix, machine string) string {
	return prefix + machine
}

// HostnameWithID appends the allocated VM id to a hostname.
func HostnameWithID(hostname string, vmID int) string {
	return hostname + strconv.Itoa(vmID)
}

// MachineID formats the persistent identity of a provisioned machine.
func MachineID(node string, vmID int) string {
	return fmt.Sprintf("%s/%d", node, vmID)
}

// ParseMachineID splits a "{node}/{vmid}" identity.
func ParseMachineID(id string) (string, int, error) {
	node, rawID, ok := strings.Cut(id, "/")
	if !ok || node == "" || rawID == "" {
		return "", 0, fmt.Errorf("invalid machine id %q: expected {node}/{vmid}", id)
	}
	vmID, err := strconv.Atoi(rawID)
	if err != nil {
		return "", 0, fmt.Errorf("invalid vmid in machine id %q: %w", id, err)
	}
	return node, vmID, nil
}
