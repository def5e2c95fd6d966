// Package config defines the proxmate configuration model.
//
// [Config] is read from a YAML file (proxmate.yaml by default) and describes
// how to reach the Proxmox API, which template to clone, the VM id allocation
// range, naming and network preferences, and the machines to manage.
//
// Wait budgets and poll intervals live in [Timeouts]. Their defaults come from
// PROXMATE_* environment variables (see [LoadTimeouts]); values set in the YAML
// file take precedence.
package config
