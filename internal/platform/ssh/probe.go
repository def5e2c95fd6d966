package ssh

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/imamik/proxmate/internal/config"
)

// ReadinessCommand is run to decide whether a guest accepts remote commands.
const ReadinessCommand = "date > /dev/null"

// Probe checks whether a guest accepts remote commands.
type Probe struct {
	client *Client
}

// NewProbe returns a probe running over client.
func NewProbe(client *Client) *Probe {
	return &Probe{client: client}
}

// Ready returns nil once the readiness command succeeds on the guest.
func (p *Probe) Ready(ctx context.Context) error {
	_, err := p.client.Execute(ctx, ReadinessCommand)
	return err
}

// InlineProvisioner runs inline shell provisioners on a guest.
type InlineProvisioner struct {
	client *Client
	shell  string
}

// Guests may restart sshd while the first provisioners run.
const (
	provisionerConnectAttempts = 3
	provisionerConnectDelay    = 2 * time.Second
)

// NewInlineProvisioner returns a provisioner feeding scripts to "sh -s" over client.
func NewInlineProvisioner(client *Client) *InlineProvisioner {
	return &InlineProvisioner{
		client: client.WithConnectRetry(provisionerConnectAttempts, provisionerConnectDelay),
		shell:  "sh -s",
	}
}

// Run executes the provisioner script and streams its output to out.
func (p *InlineProvisioner) Run(ctx context.Context, prov config.Provisioner, out io.Writer) error {
	script := prov.Inline
	if !strings.HasSuffix(script, "\n") {
		script += "\n"
	}
	if err := p.client.Stream(ctx, p.shell, strings.NewReader(script), out); err != nil {
		return fmt.Errorf("provisioner %s: %w", prov.Name, err)
	}
	return nil
}
