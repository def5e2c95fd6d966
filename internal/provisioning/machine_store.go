package provisioning

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DataDirName is the per-project directory holding machine data.
	DataDirName = ".proxmate"
	// IDFileName holds the machine identity ("{node}/{vmid}").
	IDFileName = "id"
	// CwdMarkerName records the project directory and survives cleanup.
	CwdMarkerName = "cwd"

	providerDirName = "proxmox"
)

// MachineStore persists machine identities under
// <project>/.proxmate/machines/<name>/proxmox/.
type MachineStore struct {
	projectDir string
	root       string
}

// NewMachineStore returns the store of the project at projectDir.
func NewMachineStore(projectDir string) *MachineStore {
	return &MachineStore{
		projectDir: projectDir,
		root:       filepath.Join(projectDir, DataDirName, "machines"),
	}
}

// Dir returns the data directory of machine name.
func (s *MachineStore) Dir(name string) string {
	return filepath.Join(s.root, name, providerDirName)
}

// ID returns the stored identity of name, or "" when there is none.
func (s *MachineStore) ID(name string) (string, error) {
	// #nosec G304 -- path is built from the project directory and machine name
	data, err := os.ReadFile(filepath.Join(s.Dir(name), IDFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read identity of %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SetID stores the identity of name and writes the cwd marker.
func (s *MachineStore) SetID(name, id string) error {
	dir := s.Dir(name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create machine directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, IDFileName), []byte(id), 0o600); err != nil {
		return fmt.Errorf("failed to write identity of %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, CwdMarkerName), []byte(s.projectDir), 0o600); err != nil {
		return fmt.Errorf("failed to write cwd marker of %s: %w", name, err)
	}
	return nil
}

// Cleanup removes every file of name except the cwd marker. A missing
// directory is not an error.
func (s *MachineStore) Cleanup(name string) error {
	dir := s.Dir(name)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list machine directory: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		if entry.Name() == CwdMarkerName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
