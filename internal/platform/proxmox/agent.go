package proxmox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/imamik/proxmate/internal/util/retry"
)

type agentInterface struct {
	Name        string           `json:"name"`
	IPAddresses []agentIPAddress `json:"ip-addresses"`
}

type agentIPAddress struct {
	Type    string `json:"ip-address-type"`
	Address string `json:"ip-address"`
}

type agentResult struct {
	Result []agentInterface `json:"result"`
}

func (c *Client) agentCommand(ctx context.Context, node string, vmid int, command string, out any) error {
	params := url.Values{}
	params.Set("command", command)
	return c.do(ctx, http.MethodPost, vmPath(node, VMTypeQemu, vmid)+"/agent", params, out)
}

// AgentPing checks that the guest agent answers. A server error means the
// agent is not up yet and matches ErrVMNotPingable; other errors are
// returned unchanged.
func (c *Client) AgentPing(ctx context.Context, node string, vmid int) error {
	if err := c.agentCommand(ctx, node, vmid, "ping", nil); err != nil {
		if !errors.Is(err, ErrServer) {
			return err
		}
		return fmt.Errorf("%w: vm %d: %w", ErrVMNotPingable, vmid, err)
	}
	return nil
}

// GuestIPv4 returns the first IPv4 address the guest agent reports on a
// non-loopback interface. The lookup is repeated a few times while the guest
// configures its network. When the agent answers but never reports an
// address, the result is a NoValidIPv4Error listing what it did report.
func (c *Client) GuestIPv4(ctx context.Context, node string, vmid int) (string, error) {
	if err := c.AgentPing(ctx, node, vmid); err != nil {
		return "", err
	}

	var (
		address    string
		interfaces = map[string][]string{}
	)

	err := retry.Do(ctx, func() error {
		var raw json.RawMessage
		if err := c.agentCommand(ctx, node, vmid, "network-get-interfaces", &raw); err != nil {
			return err
		}
		var res agentResult
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &res); err != nil {
				return &NoValidIPv4Error{Interfaces: interfaces}
			}
		}

		interfaces = collectAddresses(res.Result)
		if ip := firstIPv4(res.Result); ip != "" {
			address = ip
			return nil
		}
		return retry.Again(nil)
	},
		retry.WithMaxAttempts(c.timeouts.AgentRetryAttempts),
		retry.WithDelay(c.timeouts.AgentRetryDelay),
		retry.WithTerminal(func(error) error {
			return &NoValidIPv4Error{Interfaces: interfaces}
		}),
	)
	if err != nil {
		return "", err
	}
	return address, nil
}

func firstIPv4(ifaces []agentInterface) string {
	for _, iface := range ifaces {
		if iface.Name == "lo" {
			continue
		}
		for _, addr := range iface.IPAddresses {
			if addr.Type == "ipv4" && addr.Address != "" {
				return addr.Address
			}
		}
	}
	return ""
}

func collectAddresses(ifaces []agentInterface) map[string][]string {
	out := make(map[string][]string, len(ifaces))
	for _, iface := range ifaces {
		addrs := make([]string, 0, len(iface.IPAddresses))
		for _, addr := range iface.IPAddresses {
			addrs = append(addrs, addr.Address)
		}
		out[iface.Name] = addrs
	}
	return out
}
