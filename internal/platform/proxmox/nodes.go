package proxmox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
)

// Node is a cluster member.
type Node struct {
	Name   string `json:"node"`
	Status string `json:"status"`
}

// Nodes lists the cluster nodes sorted by name.
func (c *Client) Nodes(ctx context.Context) ([]Node, error) {
	var nodes []Node
	if err := c.do(ctx, http.MethodGet, "/nodes", nil, &nodes); err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

// NodeAddress returns the address configured on iface of node, or "" when the
// interface has none or the platform cannot resolve it.
func (c *Client) NodeAddress(ctx context.Context, node, iface string) (string, error) {
	var netCfg struct {
		Address string `json:"address"`
	}
	path := fmt.Sprintf("/nodes/%s/network/%s", url.PathEscape(node), url.PathEscape(iface))
	err := c.do(ctx, http.MethodGet, path, nil, &netCfg)
	if errors.Is(err, ErrServer) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return netCfg.Address, nil
}
