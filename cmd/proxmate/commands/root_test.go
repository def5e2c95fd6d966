package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	t.Parallel()
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "proxmate", cmd.Use)
	assert.Equal(t, "Provision and manage virtual machines on Proxmox VE", cmd.Short)
}

func TestRoot_HasSubcommands(t *testing.T) {
	t.Parallel()
	cmd := Root()

	expectedSubcommands := []string{
		"up",
		"provision",
		"status",
		"halt",
		"destroy",
		"ip",
		"upload",
		"nodes",
		"files",
		"version",
	}

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}

	for _, expected := range expectedSubcommands {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
}

func TestRoot_GlobalFlags(t *testing.T) {
	t.Parallel()
	cmd := Root()

	for _, name := range []string{"config", "debug", "metrics-file"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing flag %s", name)
	}
	assert.Equal(t, "proxmate.yaml", cmd.PersistentFlags().Lookup("config").DefValue)
}

func TestHalt_Flags(t *testing.T) {
	t.Parallel()
	cmd := Halt(nil)

	f := cmd.Flags().Lookup("force")
	require.NotNil(t, f)
	assert.Equal(t, "f", f.Shorthand)
	assert.Equal(t, "false", f.DefValue)
}

func TestIP_RequiresMachine(t *testing.T) {
	t.Parallel()
	cmd := Root()
	cmd.SetArgs([]string{"ip"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	assert.Error(t, cmd.Execute())
}

func TestUpload_RejectsContentType(t *testing.T) {
	t.Parallel()
	cmd := Root()
	cmd.SetArgs([]string{"upload", "image.raw", "--content", "images"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid content type")
}

func TestVersion(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	cmd := Version()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "proxmate "+version)
	assert.Contains(t, buf.String(), "commit:")
}
