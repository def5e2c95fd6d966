package proxmox

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/imamik/proxmate/internal/config"
	"github.com/imamik/proxmate/internal/util/naming"
)

// VMTypeQemu is the only guest type proxmate creates.
const VMTypeQemu = "qemu"

// VMResource is one entry of the cluster-wide VM listing.
type VMResource struct {
	ID       string `json:"id"` // "<type>/<vmid>"
	VMID     int    `json:"vmid"`
	Node     string `json:"node"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Template int    `json:"template"`
}

// IsTemplate reports whether the resource is a template.
func (r VMResource) IsTemplate() bool {
	return r.Template == 1
}

// VMSet is a snapshot of every VM of any type in the cluster.
type VMSet []VMResource

// Find returns the entry whose id ends in /vmid, of any type.
func (s VMSet) Find(vmid int) (VMResource, bool) {
	suffix := "/" + strconv.Itoa(vmid)
	for _, r := range s {
		if strings.HasSuffix(r.ID, suffix) || (r.ID == "" && r.VMID == vmid) {
			return r, true
		}
	}
	return VMResource{}, false
}

// Template identifies the template a clone is made from.
type Template struct {
	VMID int
	Node string
}

// ResolveTemplate finds the single qemu template named name. No match, or
// more than one, yields ErrNoTemplateAvailable.
func ResolveTemplate(vms VMSet, name string) (Template, error) {
	var matches []VMResource
	for _, r := range vms {
		if r.Type == VMTypeQemu && r.IsTemplate() && r.Name == name {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return Template{}, fmt.Errorf("%w: no template named %q", ErrNoTemplateAvailable, name)
	case 1:
		return Template{VMID: matches[0].VMID, Node: matches[0].Node}, nil
	default:
		return Template{}, fmt.Errorf("%w: %d templates named %q", ErrNoTemplateAvailable, len(matches), name)
	}
}

// AllocateFreeID returns the smallest id in r that no VM of any type uses.
func AllocateFreeID(vms VMSet, r config.IDRange) (int, error) {
	used := make(map[int]struct{}, len(vms))
	for _, vm := range vms {
		used[vm.VMID] = struct{}{}
	}
	for id := r.Min; id <= r.Max; id++ {
		if _, taken := used[id]; !taken {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: range %d-%d exhausted", ErrNoIDAvailable, r.Min, r.Max)
}

// ResidingNode returns the node hosting the qemu VM vmid.
func ResidingNode(vms VMSet, vmid int) (string, error) {
	r, ok := vms.Find(vmid)
	if !ok || r.Type != VMTypeQemu {
		return "", fmt.Errorf("%w: %d", ErrVMNotFound, vmid)
	}
	return r.Node, nil
}

// ClusterVMs returns a fresh listing of every VM in the cluster.
func (c *Client) ClusterVMs(ctx context.Context) (VMSet, error) {
	params := url.Values{}
	params.Set("type", "vm")
	var vms VMSet
	if err := c.do(ctx, http.MethodGet, "/cluster/resources", params, &vms); err != nil {
		return nil, err
	}
	return vms, nil
}

// FreeVMID scans the cluster and returns the smallest unused id in r.
func (c *Client) FreeVMID(ctx context.Context, r config.IDRange) (int, error) {
	vms, err := c.ClusterVMs(ctx)
	if err != nil {
		return 0, err
	}
	return AllocateFreeID(vms, r)
}

// NodeOf returns the node hosting the qemu VM vmid.
func (c *Client) NodeOf(ctx context.Context, vmid int) (string, error) {
	vms, err := c.ClusterVMs(ctx)
	if err != nil {
		return "", err
	}
	return ResidingNode(vms, vmid)
}

// FindVM looks up a non-template qemu VM by exact name and returns its
// machine id ("node/vmid"), or "" when there is none.
func (c *Client) FindVM(ctx context.Context, name string) (string, error) {
	vms, err := c.ClusterVMs(ctx)
	if err != nil {
		return "", err
	}
	for _, r := range vms {
		if r.Type == VMTypeQemu && !r.IsTemplate() && r.Name == name {
			return naming.MachineID(r.Node, r.VMID), nil
		}
	}
	return "", nil
}
