// Package handlers implements the business logic for CLI commands.
//
// Each handler loads the configuration, builds a provisioning session around
// the Proxmox client and runs the phases of the command for every selected
// machine. Collaborators are created through package-level factory variables
// so tests can replace them.
package handlers
