package proxmox

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors. API failures are *APIError values that match one of the
// first five with errors.Is.
var (
	ErrConnection         = errors.New("connection error")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotImplemented     = errors.New("not implemented")
	ErrServer             = errors.New("server error")

	ErrNoTemplateAvailable = errors.New("no template available")
	ErrNoIDAvailable       = errors.New("no free vm id available")
	ErrVMNotFound          = errors.New("vm not found")
	ErrVMNotPingable       = errors.New("vm not pingable")
)

// APIError is a classified failure of a single API request.
type APIError struct {
	Kind       error
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Method != "" {
		fmt.Fprintf(&b, ": %s %s", e.Method, e.Path)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is matches the error kind.
func (e *APIError) Is(target error) bool {
	return target == e.Kind
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned when a bounded wait exceeds its budget.
// Message is the caller-supplied message key.
type TimeoutError struct {
	Message string
	UPID    string
	Budget  time.Duration
}

func (e *TimeoutError) Error() string {
	if e.UPID == "" {
		return fmt.Sprintf("timeout after %v: %s", e.Budget, e.Message)
	}
	return fmt.Sprintf("timeout after %v waiting for task %s: %s", e.Budget, e.UPID, e.Message)
}

// TaskFailedError is returned when a task ends with an exit status other than "OK".
type TaskFailedError struct {
	UPID       string
	ExitStatus string
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s failed: %s", e.UPID, e.ExitStatus)
}

// NoValidIPv4Error is returned when the guest agent answers but reports no
// usable IPv4 address. Interfaces maps interface names to every address seen.
type NoValidIPv4Error struct {
	Interfaces map[string][]string
}

func (e *NoValidIPv4Error) Error() string {
	if len(e.Interfaces) == 0 {
		return "no valid IPv4 address found (no interfaces reported)"
	}
	names := make([]string, 0, len(e.Interfaces))
	for name := range e.Interfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=[%s]", name, strings.Join(e.Interfaces[name], ", ")))
	}
	return "no valid IPv4 address found: " + strings.Join(parts, " ")
}

// UnknownStateError is returned when the platform reports a VM status that has
// no proxmate equivalent.
type UnknownStateError struct {
	VMID   int
	Status string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("vm %d reported unknown status %q", e.VMID, e.Status)
}

// classifyStatus maps a non-2xx HTTP response to an APIError.
func classifyStatus(method, path string, resp *http.Response, body []byte) error {
	apiErr := &APIError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Message:    statusMessage(resp, body),
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		apiErr.Kind = ErrUnauthorized
	case http.StatusNotImplemented:
		apiErr.Kind = ErrNotImplemented
	case http.StatusInternalServerError:
		apiErr.Kind = ErrServer
	default:
		apiErr.Kind = ErrConnection
	}
	return apiErr
}

// statusMessage extracts the human readable reason. Proxmox puts it in the
// status line and, for parameter errors, in an "errors" object.
func statusMessage(resp *http.Response, body []byte) string {
	msg := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if detail := errorDetails(body); detail != "" {
		if msg == "" {
			return detail
		}
		return msg + ": " + detail
	}
	return msg
}

// connectionError wraps a transport failure.
func connectionError(method, path string, err error) error {
	return &APIError{Kind: ErrConnection, Method: method, Path: path, Message: err.Error(), Err: err}
}
