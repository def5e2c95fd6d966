package provisioning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineStore_IDRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewMachineStore(dir)

	id, err := store.ID("web")
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, store.SetID("web", "pve1/900"))
	id, err = store.ID("web")
	require.NoError(t, err)
	assert.Equal(t, "pve1/900", id)

	assert.Equal(t, filepath.Join(dir, ".proxmate", "machines", "web", "proxmox"), store.Dir("web"))
	marker, err := os.ReadFile(filepath.Join(store.Dir("web"), CwdMarkerName))
	require.NoError(t, err)
	assert.Equal(t, dir, string(marker))
}

func TestMachineStore_CleanupKeepsCwdMarker(t *testing.T) {
	t.Parallel()
	store := NewMachineStore(t.TempDir())
	require.NoError(t, store.SetID("web", "pve1/900"))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir("web"), "action_provision"), []byte("x"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(store.Dir("web"), "synced_folders"), 0o750))

	require.NoError(t, store.Cleanup("web"))

	entries, err := os.ReadDir(store.Dir("web"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CwdMarkerName, entries[0].Name())

	id, err := store.ID("web")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestMachineStore_CleanupMissingDir(t *testing.T) {
	t.Parallel()
	store := NewMachineStore(t.TempDir())
	assert.NoError(t, store.Cleanup("never-created"))
}
