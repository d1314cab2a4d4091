package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paimy-ai/paimy/internal/config"
)

// setup points the globals at a throwaway data directory.
func setup(t *testing.T) {
	t.Helper()
	logger = zap.NewNop()
	cfg = config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.MemoryDB = filepath.Join(cfg.Paths.DataDir, "paimy.db")
	cfg.Sweep.BatchDelay = 0
	t.Cleanup(func() {
		cfg = nil
		personFlags.aliases = nil
		personFlags.storeID = ""
		personFlags.storeName = ""
		briefingDryRun = false
		toolsFormat = "anthropic"
	})
}

func newCmd() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func TestPeopleCommands(t *testing.T) {
	setup(t)

	personFlags.storeID = "u-jimin"
	personFlags.storeName = "박지민"
	personFlags.aliases = []string{"지민"}
	cmd, out := newCmd()
	require.NoError(t, runPeopleAdd(cmd, []string{"U1"}))
	assert.Contains(t, out.String(), "saved U1 (박지민)")

	cmd, out = newCmd()
	require.NoError(t, runAlias(cmd, []string{"U1", "JM"}, true))
	assert.Equal(t, "U1: [지민, JM]\n", out.String())

	cmd, out = newCmd()
	require.NoError(t, runAlias(cmd, []string{"U1", "지민"}, false))
	assert.Equal(t, "U1: [JM]\n", out.String())

	cmd, out = newCmd()
	require.NoError(t, runPeopleList(cmd, nil))
	assert.Contains(t, out.String(), "u-jimin")
	assert.Contains(t, out.String(), "박지민")
}

func TestToolsCatalog(t *testing.T) {
	setup(t)

	for _, format := range []string{"anthropic", "openai"} {
		toolsFormat = format
		cmd, out := newCmd()
		require.NoError(t, runTools(cmd, nil), format)

		var catalog []map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &catalog))
		assert.Len(t, catalog, 8, format)
	}

	toolsFormat = "yaml"
	cmd, _ := newCmd()
	assert.Error(t, runTools(cmd, nil))
}

func TestBriefingDryRunWithEmptyDirectory(t *testing.T) {
	setup(t)
	briefingDryRun = true

	cmd, out := newCmd()
	require.NoError(t, runBriefing(cmd, nil))
	assert.Contains(t, out.String(), "sent 0, previewed 0")
}

func TestAskRequiresConfiguredStore(t *testing.T) {
	setup(t)
	askFlags.user = "U1"
	defer func() { askFlags.user = "" }()

	cmd, _ := newCmd()
	assert.Error(t, runAsk(cmd, []string{"안녕"}))
}

func TestConfigInitWritesLoadableFile(t *testing.T) {
	setup(t)
	configPath = filepath.Join(t.TempDir(), "config.toml")
	defer func() { configPath = config.DefaultPath() }()

	cmd, out := newCmd()
	require.NoError(t, configInitCmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), configPath)

	loaded, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "Paimy", loaded.Assistant.Name)
}
