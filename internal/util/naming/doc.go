// Package naming provides the naming rules for Proxmox guests created by proxmate.
//
// Guest names are built from an optional prefix plus the machine hostname (or
// the machine name when no hostname is set). A provisioned machine is identified
// by "{node}/{vmid}", the form persisted in the machine data directory.
package naming
