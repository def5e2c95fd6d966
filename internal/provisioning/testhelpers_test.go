package provisioning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imamik/proxmate/internal/config"
	"github.com/imamik/proxmate/internal/platform/proxmox"
)

func newTestContext(t *testing.T, ctx context.Context, m config.Machine) (*Context, *RecordingObserver) {
	t.Helper()
	cfg := config.Default()
	cfg.ProjectDir = t.TempDir()
	cfg.Machines = []config.Machine{m}
	obs := NewRecordingObserver()
	session := NewSession(&proxmox.MockClient{}, cfg, obs)
	pctx, err := NewContext(ctx, session, m)
	require.NoError(t, err)
	return pctx, obs
}
