package proxmox

import (
	"context"
	"net/url"

	"github.com/imamik/proxmate/internal/config"
)

// Authenticator establishes a session.
type Authenticator interface {
	Login(ctx context.Context) error
}

// Inventory answers questions about the VMs in the cluster.
type Inventory interface {
	// ClusterVMs returns a fresh listing of every VM of any type.
	ClusterVMs(ctx context.Context) (VMSet, error)
	// FreeVMID returns the smallest id in r no VM uses, from a fresh listing.
	FreeVMID(ctx context.Context, r config.IDRange) (int, error)
	// FindVM returns the machine id of the qemu VM named name, or "".
	FindVM(ctx context.Context, name string) (string, error)
	VMState(ctx context.Context, vmid int) (State, error)
	VMConfig(ctx context.Context, node, vmType string, vmid int) (VMConfig, error)
}

// VMManager performs task-backed VM operations. Each call returns the exit
// status of the task once it has finished.
type VMManager interface {
	CloneVM(ctx context.Context, node, vmType string, templateID int, params url.Values) (string, error)
	ConfigureVM(ctx context.Context, node, vmType string, vmid int, params url.Values) (string, error)
	StartVM(ctx context.Context, vmid int) (string, error)
	StopVM(ctx context.Context, vmid int) (string, error)
	ShutdownVM(ctx context.Context, vmid int) (string, error)
	DeleteVM(ctx context.Context, vmid int) (string, error)
}

// GuestAgent talks to the QEMU guest agent inside a VM.
type GuestAgent interface {
	AgentPing(ctx context.Context, node string, vmid int) error
	GuestIPv4(ctx context.Context, node string, vmid int) (string, error)
}

// StorageManager manages files on node storage.
type StorageManager interface {
	StorageContent(ctx context.Context, node, storage string) ([]StorageItem, error)
	UploadFile(ctx context.Context, opts UploadOptions) (string, error)
	DeleteFile(ctx context.Context, node, storage, contentType, name string) error
}

// NodeReader reads node information.
type NodeReader interface {
	Nodes(ctx context.Context) ([]Node, error)
	NodeAddress(ctx context.Context, node, iface string) (string, error)
}

// API is everything proxmate uses from the platform.
type API interface {
	Authenticator
	Inventory
	VMManager
	GuestAgent
	StorageManager
	NodeReader
}

var _ API = (*Client)(nil)
