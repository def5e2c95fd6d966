// Package compute brings a single Proxmox guest from template to a running,
// reachable machine.
//
// The phases run in a fixed order: resolve the template, allocate a free VM
// id, clone, start and wait for the guest agent and remote-command readiness.
// Network reconfiguration runs after the last provisioner of the machine has
// finished. ReadState, Stop and Shutdown serve the status and halt commands.
package compute
