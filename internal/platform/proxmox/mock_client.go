package proxmox

import (
	"context"
	"net/url"

	"github.com/imamik/proxmate/internal/config"
)

// MockClient is a mock implementation of API. Unset functions succeed with
// zero values, and task-backed operations report "OK".
type MockClient struct {
	LoginFunc func(ctx context.Context) error

	ClusterVMsFunc func(ctx context.Context) (VMSet, error)
	FreeVMIDFunc   func(ctx context.Context, r config.IDRange) (int, error)
	FindVMFunc     func(ctx context.Context, name string) (string, error)
	VMStateFunc    func(ctx context.Context, vmid int) (State, error)
	VMConfigFunc   func(ctx context.Context, node, vmType string, vmid int) (VMConfig, error)

	CloneVMFunc     func(ctx context.Context, node, vmType string, templateID int, params url.Values) (string, error)
	ConfigureVMFunc func(ctx context.Context, node, vmType string, vmid int, params url.Values) (string, error)
	StartVMFunc     func(ctx context.Context, vmid int) (string, error)
	StopVMFunc      func(ctx context.Context, vmid int) (string, error)
	ShutdownVMFunc  func(ctx context.Context, vmid int) (string, error)
	DeleteVMFunc    func(ctx context.Context, vmid int) (string, error)

	AgentPingFunc func(ctx context.Context, node string, vmid int) error
	GuestIPv4Func func(ctx context.Context, node string, vmid int) (string, error)

	StorageContentFunc func(ctx context.Context, node, storage string) ([]StorageItem, error)
	UploadFileFunc     func(ctx context.Context, opts UploadOptions) (string, error)
	DeleteFileFunc     func(ctx context.Context, node, storage, contentType, name string) error

	NodesFunc       func(ctx context.Context) ([]Node, error)
	NodeAddressFunc func(ctx context.Context, node, iface string) (string, error)
}

var _ API = (*MockClient)(nil)

// Login mocks session establishment.
func (m *MockClient) Login(ctx context.Context) error {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx)
	}
	return nil
}

// ClusterVMs mocks the cluster listing.
func (m *MockClient) ClusterVMs(ctx context.Context) (VMSet, error) {
	if m.ClusterVMsFunc != nil {
		return m.ClusterVMsFunc(ctx)
	}
	return VMSet{}, nil
}

// FreeVMID mocks id allocation.
func (m *MockClient) FreeVMID(ctx context.Context, r config.IDRange) (int, error) {
	if m.FreeVMIDFunc != nil {
		return m.FreeVMIDFunc(ctx, r)
	}
	return r.Min, nil
}

// FindVM mocks lookup by name.
func (m *MockClient) FindVM(ctx context.Context, name string) (string, error) {
	if m.FindVMFunc != nil {
		return m.FindVMFunc(ctx, name)
	}
	return "", nil
}

// VMState mocks the state query.
func (m *MockClient) VMState(ctx context.Context, vmid int) (State, error) {
	if m.VMStateFunc != nil {
		return m.VMStateFunc(ctx, vmid)
	}
	return StateNotCreated, nil
}

// VMConfig mocks the configuration read.
func (m *MockClient) VMConfig(ctx context.Context, node, vmType string, vmid int) (VMConfig, error) {
	if m.VMConfigFunc != nil {
		return m.VMConfigFunc(ctx, node, vmType, vmid)
	}
	return VMConfig{}, nil
}

// CloneVM mocks cloning.
func (m *MockClient) CloneVM(ctx context.Context, node, vmType string, templateID int, params url.Values) (string, error) {
	if m.CloneVMFunc != nil {
		return m.CloneVMFunc(ctx, node, vmType, templateID, params)
	}
	return ExitOK, nil
}

// ConfigureVM mocks configuration updates.
func (m *MockClient) ConfigureVM(ctx context.Context, node, vmType string, vmid int, params url.Values) (string, error) {
	if m.ConfigureVMFunc != nil {
		return m.ConfigureVMFunc(ctx, node, vmType, vmid, params)
	}
	return ExitOK, nil
}

// StartVM mocks power on.
func (m *MockClient) StartVM(ctx context.Context, vmid int) (string, error) {
	if m.StartVMFunc != nil {
		return m.StartVMFunc(ctx, vmid)
	}
	return ExitOK, nil
}

// StopVM mocks power off.
func (m *MockClient) StopVM(ctx context.Context, vmid int) (string, error) {
	if m.StopVMFunc != nil {
		return m.StopVMFunc(ctx, vmid)
	}
	return ExitOK, nil
}

// ShutdownVM mocks guest shutdown.
func (m *MockClient) ShutdownVM(ctx context.Context, vmid int) (string, error) {
	if m.ShutdownVMFunc != nil {
		return m.ShutdownVMFunc(ctx, vmid)
	}
	return ExitOK, nil
}

// DeleteVM mocks deletion.
func (m *MockClient) DeleteVM(ctx context.Context, vmid int) (string, error) {
	if m.DeleteVMFunc != nil {
		return m.DeleteVMFunc(ctx, vmid)
	}
	return ExitOK, nil
}

// AgentPing mocks the guest agent ping.
func (m *MockClient) AgentPing(ctx context.Context, node string, vmid int) error {
	if m.AgentPingFunc != nil {
		return m.AgentPingFunc(ctx, node, vmid)
	}
	return nil
}

// GuestIPv4 mocks address discovery.
func (m *MockClient) GuestIPv4(ctx context.Context, node string, vmid int) (string, error) {
	if m.GuestIPv4Func != nil {
		return m.GuestIPv4Func(ctx, node, vmid)
	}
	return "192.0.2.10", nil
}

// StorageContent mocks the storage listing.
func (m *MockClient) StorageContent(ctx context.Context, node, storage string) ([]StorageItem, error) {
	if m.StorageContentFunc != nil {
		return m.StorageContentFunc(ctx, node, storage)
	}
	return nil, nil
}

// UploadFile mocks uploads.
func (m *MockClient) UploadFile(ctx context.Context, opts UploadOptions) (string, error) {
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, opts)
	}
	return ExitOK, nil
}

// DeleteFile mocks file removal.
func (m *MockClient) DeleteFile(ctx context.Context, node, storage, contentType, name string) error {
	if m.DeleteFileFunc != nil {
		return m.DeleteFileFunc(ctx, node, storage, contentType, name)
	}
	return nil
}

// Nodes mocks the node listing.
func (m *MockClient) Nodes(ctx context.Context) ([]Node, error) {
	if m.NodesFunc != nil {
		return m.NodesFunc(ctx)
	}
	return nil, nil
}

// NodeAddress mocks the node address lookup.
func (m *MockClient) NodeAddress(ctx context.Context, node, iface string) (string, error) {
	if m.NodeAddressFunc != nil {
		return m.NodeAddressFunc(ctx, node, iface)
	}
	return "", nil
}
