package proxmox

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imamik/proxmate/internal/util/retry"
)

// Task types with special handling.
const (
	TaskTypeImgCopy = "imgcopy"

	// ExitOK is the exit status of a successful task.
	ExitOK = "OK"

	noContentLine = "no content"
	taskLogLimit  = "500"
)

// Message keys carried by TimeoutError.
const (
	MsgCreateVMTimeout   = "create_vm_timeout"
	MsgConfigVMTimeout   = "config_vm_timeout"
	MsgStartVMTimeout    = "start_vm_timeout"
	MsgStopVMTimeout     = "stop_vm_timeout"
	MsgShutdownVMTimeout = "shutdown_vm_timeout"
	MsgDestroyVMTimeout  = "destroy_vm_timeout"
	MsgUploadTimeout     = "upload_timeout"
)

// Deny lists strip parameters the platform must not receive on a call.
var (
	cloneDenied  = []string{"vmid", "ostype", "ide2", "sata0", "sockets", "cores", "description", "memory", "net0"}
	configDenied = []string{"vmid"}
)

// UPID identifies an asynchronous task:
// UPID:node:pid:pstart:starttime:type:id:user:
type UPID struct {
	Raw  string
	Node string
	Type string
	ID   string
	User string
}

// ParseUPID splits a task identifier into its fields.
func ParseUPID(s string) (UPID, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 8 || parts[0] != "UPID" || parts[1] == "" {
		return UPID{}, fmt.Errorf("malformed task id %q", s)
	}
	return UPID{Raw: s, Node: parts[1], Type: parts[5], ID: parts[6], User: parts[7]}, nil
}

func (u UPID) String() string {
	return u.Raw
}

type taskStatus struct {
	Status     string `json:"status"`
	ExitStatus string `json:"exitstatus"`
}

type taskLogLine struct {
	N int    `json:"n"`
	T string `json:"t"`
}

// AwaitCompletion polls the task until it reports an exit status and returns
// it. The budget is the task timeout, or the image copy timeout for imgcopy
// tasks. Running out of budget yields a TimeoutError carrying timeoutMessage.
// An exit status other than "OK" is returned together with a TaskFailedError.
func (c *Client) AwaitCompletion(ctx context.Context, upid, timeoutMessage string) (string, error) {
	task, err := ParseUPID(upid)
	if err != nil {
		return "", err
	}

	budget := c.timeouts.Task
	if task.Type == TaskTypeImgCopy {
		budget = c.timeouts.ImgCopy
	}
	interval := c.timeouts.TaskCheckInterval
	attempts := retry.Attempts(budget, interval) + 1

	start := c.now()
	var exitStatus, lastLine string

	err = retry.Do(ctx, func() error {
		line, err := c.lastTaskLogLine(ctx, task)
		if err != nil {
			return err
		}
		if line != "" && line != lastLine {
			c.reporter.Detail("%s", line)
			lastLine = line
		}

		var st taskStatus
		if err := c.do(ctx, http.MethodGet, taskPath(task)+"/status", nil, &st); err != nil {
			return err
		}
		if st.ExitStatus == "" {
			return retry.Again(nil)
		}
		exitStatus = st.ExitStatus
		return nil
	},
		retry.WithMaxAttempts(attempts),
		retry.WithDelay(interval),
		retry.WithTerminal(func(error) error {
			return &TimeoutError{Message: timeoutMessage, UPID: upid, Budget: budget}
		}),
	)

	elapsed := c.now().Sub(start)
	switch {
	case err != nil:
		c.metrics.observeTask(task.Type, "error", elapsed)
		return "", err
	case exitStatus != ExitOK:
		c.metrics.observeTask(task.Type, "failed", elapsed)
		return exitStatus, &TaskFailedError{UPID: upid, ExitStatus: exitStatus}
	}
	c.metrics.observeTask(task.Type, "ok", elapsed)
	c.logger.V(1).Info("task finished", "upid", upid, "elapsed", elapsed.Round(time.Millisecond))
	return exitStatus, nil
}

// lastTaskLogLine returns the newest task log line, or "" when the log is
// empty or only holds the placeholder line.
func (c *Client) lastTaskLogLine(ctx context.Context, task UPID) (string, error) {
	params := url.Values{}
	params.Set("limit", taskLogLimit)
	var lines []taskLogLine
	if err := c.do(ctx, http.MethodGet, taskPath(task)+"/log", params, &lines); err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", nil
	}
	last := strings.TrimSpace(lines[len(lines)-1].T)
	if last == noContentLine {
		return "", nil
	}
	return last, nil
}

func taskPath(task UPID) string {
	return fmt.Sprintf("/nodes/%s/tasks/%s", url.PathEscape(task.Node), url.PathEscape(task.Raw))
}

// submitTask issues a mutating request and returns the task id from the
// response. Denied parameters are dropped first. An empty id means the
// platform completed the call synchronously.
func (c *Client) submitTask(ctx context.Context, method, path string, params url.Values, denied []string) (string, error) {
	filtered := url.Values{}
	for k, v := range params {
		filtered[k] = v
	}
	for _, k := range denied {
		filtered.Del(k)
	}

	var upid string
	if err := c.do(ctx, method, path, filtered, &upid); err != nil {
		return "", err
	}
	return upid, nil
}

// runTask submits a task and waits for it to finish.
func (c *Client) runTask(ctx context.Context, method, path string, params url.Values, denied []string, timeoutMessage string) (string, error) {
	upid, err := c.submitTask(ctx, method, path, params, denied)
	if err != nil {
		return "", err
	}
	if upid == "" {
		return ExitOK, nil
	}
	return c.AwaitCompletion(ctx, upid, timeoutMessage)
}
