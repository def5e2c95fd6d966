package proxmox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// State is the lifecycle state of a machine as proxmate sees it.
type State string

// Machine states.
const (
	StateNotCreated State = "not_created"
	StateRunning    State = "running"
	StateStopped    State = "stopped"
)

// VMConfig is the current configuration of a VM, keyed by option name.
type VMConfig map[string]string

// UnmarshalJSON accepts numbers and strings as values.
func (c *VMConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(VMConfig, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		case nil:
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	*c = out
	return nil
}

func vmPath(node, vmType string, vmid int) string {
	return fmt.Sprintf("/nodes/%s/%s/%d", url.PathEscape(node), vmType, vmid)
}

// VMState reports whether vmid is running, stopped or absent. A VM missing
// from the cluster listing, or one the platform answers a 500 for, is not
// created.
func (c *Client) VMState(ctx context.Context, vmid int) (State, error) {
	vms, err := c.ClusterVMs(ctx)
	if err != nil {
		return "", err
	}
	r, ok := vms.Find(vmid)
	if !ok {
		return StateNotCreated, nil
	}

	var st struct {
		Status string `json:"status"`
	}
	err = c.do(ctx, http.MethodGet, vmPath(r.Node, r.Type, vmid)+"/status/current", nil, &st)
	if errors.Is(err, ErrServer) {
		return StateNotCreated, nil
	}
	if err != nil {
		return "", err
	}

	switch st.Status {
	case "running":
		return StateRunning, nil
	case "stopped":
		return StateStopped, nil
	default:
		return "", &UnknownStateError{VMID: vmid, Status: st.Status}
	}
}

// VMConfig returns the current configuration of a VM.
func (c *Client) VMConfig(ctx context.Context, node, vmType string, vmid int) (VMConfig, error) {
	var cfg VMConfig
	if err := c.do(ctx, http.MethodGet, vmPath(node, vmType, vmid)+"/config", nil, &cfg); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = VMConfig{}
	}
	return cfg, nil
}

// CloneVM clones templateID into params["newid"] and waits for the task.
// Options the clone endpoint rejects are stripped from params.
func (c *Client) CloneVM(ctx context.Context, node, vmType string, templateID int, params url.Values) (string, error) {
	return c.runTask(ctx, http.MethodPost, vmPath(node, vmType, templateID)+"/clone", params, cloneDenied, MsgCreateVMTimeout)
}

// ConfigureVM applies params to the VM configuration and waits for the task.
func (c *Client) ConfigureVM(ctx context.Context, node, vmType string, vmid int, params url.Values) (string, error) {
	return c.runTask(ctx, http.MethodPost, vmPath(node, vmType, vmid)+"/config", params, configDenied, MsgConfigVMTimeout)
}

// StartVM powers the VM on and waits for the task.
func (c *Client) StartVM(ctx context.Context, vmid int) (string, error) {
	return c.powerAction(ctx, vmid, "start", MsgStartVMTimeout)
}

// StopVM powers the VM off immediately and waits for the task.
func (c *Client) StopVM(ctx context.Context, vmid int) (string, error) {
	return c.powerAction(ctx, vmid, "stop", MsgStopVMTimeout)
}

// ShutdownVM asks the guest to shut down and waits for the task.
func (c *Client) ShutdownVM(ctx context.Context, vmid int) (string, error) {
	return c.powerAction(ctx, vmid, "shutdown", MsgShutdownVMTimeout)
}

// DeleteVM destroys the VM and waits for the task.
func (c *Client) DeleteVM(ctx context.Context, vmid int) (string, error) {
	node, err := c.NodeOf(ctx, vmid)
	if err != nil {
		return "", err
	}
	return c.runTask(ctx, http.MethodDelete, vmPath(node, VMTypeQemu, vmid), nil, nil, MsgDestroyVMTimeout)
}

func (c *Client) powerAction(ctx context.Context, vmid int, action, timeoutMessage string) (string, error) {
	node, err := c.NodeOf(ctx, vmid)
	if err != nil {
		return "", err
	}
	return c.runTask(ctx, http.MethodPost, vmPath(node, VMTypeQemu, vmid)+"/status/"+action, nil, nil, timeoutMessage)
}
