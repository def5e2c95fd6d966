// Package ui renders provisioning progress on the terminal and asks for the
// Proxmox password when it is not supplied through the environment.
package ui
