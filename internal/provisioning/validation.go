package provisioning

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/imamik/proxmate/internal/util/naming"
)

// ValidationError represents a pre-flight validation error or warning.
type ValidationError struct {
	Field    string // Configuration field that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

// IsError returns true if this is an error (not a warning).
func (ve ValidationError) IsError() bool {
	return ve.Severity == "error"
}

// ValidationPhase checks that a machine can be brought up before anything is
// created on the cluster.
type ValidationPhase struct{}

// NewValidationPhase creates a new validation phase.
func NewValidationPhase() *ValidationPhase {
	return &ValidationPhase{}
}

// Name implements the Phase interface.
func (vp *ValidationPhase) Name() string {
	return "validation"
}

// Provision implements the Phase interface.
func (vp *ValidationPhase) Provision(ctx *Context) error {
	var errs []string
	for _, ve := range validateMachine(ctx) {
		if !ve.IsError() {
			ctx.Observer.Event(Event{Type: EventValidationWarning, Phase: vp.Name(), Message: ve.Message,
				Fields: map[string]string{"field": ve.Field}})
			ctx.Observer.Warn("%s", ve.Message)
			continue
		}
		ctx.Observer.Event(Event{Type: EventValidationError, Phase: vp.Name(), Message: ve.Message,
			Fields: map[string]string{"field": ve.Field}})
		errs = append(errs, ve.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("pre-flight validation failed for %s:\n  %s", ctx.Machine.Name, strings.Join(errs, "\n  "))
	}
	return nil
}

// dnsLabel matches a single RFC 1123 label.
var dnsLabel = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

func validateMachine(ctx *Context) []ValidationError {
	var errs []ValidationError
	cfg := ctx.Config
	m := ctx.Machine

	if m.Hostname != "" && !dnsLabel.MatchString(m.Hostname) {
		errs = append(errs, ValidationError{
			Field:    "machines." + m.Name + ".hostname",
			Message:  fmt.Sprintf("hostname %q is not a valid DNS label", m.Hostname),
			Severity: "error",
		})
	}

	name := naming.VMName(cfg.VMNamePrefix, m.Hostname, m.Name)
	if cfg.HostnameAppendID {
		name = naming.HostnameWithID(name, cfg.VMIDRange.Max)
	}
	for _, label := range strings.Split(name, ".") {
		if !dnsLabel.MatchString(strings.ToLower(label)) {
			errs = append(errs, ValidationError{
				Field:    "vm_name_prefix",
				Message:  fmt.Sprintf("VM name %q is not a valid DNS name", name),
				Severity: "error",
			})
			break
		}
	}

	switch {
	case cfg.SSH.PrivateKeyPath == "":
		errs = append(errs, ValidationError{
			Field:    "ssh.private_key_path",
			Message:  "a private key is required to wait for remote-command readiness",
			Severity: "error",
		})
	default:
		if _, err := os.Stat(cfg.SSH.PrivateKeyPath); err != nil {
			errs = append(errs, ValidationError{
				Field:    "ssh.private_key_path",
				Message:  fmt.Sprintf("private key is not readable: %v", err),
				Severity: "error",
			})
		}
	}

	if len(cfg.QemuVLAN) > 0 && m.Provisioners == 0 {
		errs = append(errs, ValidationError{
			Field:    "qemu_vlan",
			Message:  "no provisioners configured; network reconfiguration runs right after start",
			Severity: "warning",
		})
	}

	if !cfg.VerifySSL {
		errs = append(errs, ValidationError{
			Field:    "verify_ssl",
			Message:  "TLS certificate verification is disabled",
			Severity: "warning",
		})
	}

	return errs
}
