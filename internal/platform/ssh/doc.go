// Package ssh runs commands on provisioned guests.
//
// A [Client] dials once per command with key-based authentication. Callers
// that wait for a guest to come up retry on their own schedule; the client
// itself makes a single attempt. [Probe] reports guest readiness and
// [InlineProvisioner] runs inline shell provisioners over the same client.
//
// Host key verification is disabled by default: guests are freshly cloned and
// their keys are not known in advance.
package ssh
