package provisioning

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/proxmate/internal/platform/proxmox"
)

func TestRegistry_ResolveCachesUntilDirty(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	var fetches int

	fetch := func() (proxmox.State, error) {
		fetches++
		return proxmox.StateRunning, nil
	}

	for range 3 {
		state, err := r.Resolve("web", fetch)
		require.NoError(t, err)
		assert.Equal(t, proxmox.StateRunning, state)
	}
	assert.Equal(t, 1, fetches)

	r.MarkDirty("web")
	assert.True(t, r.Dirty("web"))
	_, err := r.Resolve("web", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, fetches)
	assert.False(t, r.Dirty("web"))
}

func TestRegistry_DirtyIsPerMachine(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	fetches := map[string]int{}
	fetch := func(name string) func() (proxmox.State, error) {
		return func() (proxmox.State, error) {
			fetches[name]++
			return proxmox.StateStopped, nil
		}
	}

	_, _ = r.Resolve("web", fetch("web"))
	_, _ = r.Resolve("db", fetch("db"))
	r.MarkDirty("web")
	_, _ = r.Resolve("web", fetch("web"))
	_, _ = r.Resolve("db", fetch("db"))

	assert.Equal(t, 2, fetches["web"])
	assert.Equal(t, 1, fetches["db"], "marking one machine dirty leaves the others cached")
}

func TestRegistry_FailedFetchKeepsEntry(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	_, err := r.Resolve("web", func() (proxmox.State, error) { return "", errors.New("boom") })
	require.Error(t, err)

	_, known := r.Cached("web")
	assert.False(t, known)
}

func TestRegistry_Cached(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	_, known := r.Cached("web")
	assert.False(t, known)

	_, _ = r.Resolve("web", func() (proxmox.State, error) { return proxmox.StateStopped, nil })
	r.MarkDirty("web")

	state, known := r.Cached("web")
	assert.True(t, known)
	assert.Equal(t, proxmox.StateStopped, state, "a dirty entry still reports the last known state")
}

func TestRegistry_ConcurrentResolveFetchesOnce(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	var fetches atomic.Int32

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Resolve("web", func() (proxmox.State, error) {
				fetches.Add(1)
				return proxmox.StateRunning, nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load())
}

func TestRegistry_FinishProvisionerFiresOnce(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	assert.False(t, r.FinishProvisioner("web", 3))
	assert.False(t, r.FinishProvisioner("web", 3))
	assert.True(t, r.FinishProvisioner("web", 3))
	assert.False(t, r.FinishProvisioner("web", 3), "fires only once")

	assert.True(t, r.FinishProvisioner("db", 1), "counters are per machine")
}

func TestRegistry_FinishProvisionerConcurrent(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	var fired atomic.Int32

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.FinishProvisioner("web", 10) {
				fired.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fired.Load())
}
