package provisioning

import (
	"errors"
	"fmt"
)

// Step error kinds. A StepError matches its kind with errors.Is and still
// unwraps to the underlying failure.
var (
	ErrVMClone       = errors.New("vm clone failed")
	ErrVMConfig      = errors.New("vm configuration failed")
	ErrVMStart       = errors.New("vm start failed")
	ErrSSH           = errors.New("ssh not ready")
	ErrCommunication = errors.New("communication with proxmox failed")
)

// StepError reports which step failed for which machine.
type StepError struct {
	Kind    error
	Machine string
	Err     error
}

// NewStepError wraps err as a failure of kind for machine. A nil err stays nil.
func NewStepError(kind error, machine string, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Kind: kind, Machine: machine, Err: err}
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Machine, e.Kind, e.Err)
}

// Is matches the step kind.
func (e *StepError) Is(target error) bool {
	return target == e.Kind
}

func (e *StepError) Unwrap() error {
	return e.Err
}
