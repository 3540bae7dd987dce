package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoReason-AI/coreason-etl-epar/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"run", "download", "transform", "status"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "coreason-etl", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestTransformCommand_RequiredFlags(t *testing.T) {
	for _, flagName := range []string{"epar", "spor"} {
		flag := transformCmd.Flags().Lookup(flagName)
		require.NotNil(t, flag, "transform command should have --%s flag", flagName)
	}
}

func TestStatusCommand_Flags(t *testing.T) {
	flag := statusCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "status command should have --limit flag")
	assert.Equal(t, "20", flag.DefValue)
}

func TestFormatRuns(t *testing.T) {
	started := time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC)
	runs := []model.RunLog{
		{
			ID: "0f2c7b1a-9d40-4c0f-8e57-2f8a3e9a1b22", StartedAt: started,
			FinishedAt: started.Add(3 * time.Minute), Status: model.RunSucceeded,
			SnapshotRows: 1500, HistoryRows: 4200, UpdatedRows: 37, SporMatchRate: 0.94,
		},
		{
			ID: "ab34cd56-0000-4c0f-8e57-2f8a3e9a1b22", StartedAt: started.Add(-24 * time.Hour),
			FinishedAt: started.Add(-24*time.Hour + time.Minute), Status: model.RunFailed,
			Error: "fetch: index download failed",
		},
	}

	var buf bytes.Buffer
	formatRuns(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "0f2c7b1a")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "0.94")
	assert.Contains(t, out, "fetch: index download failed")
	assert.NotContains(t, out, "0f2c7b1a-9d40")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 4) // header, separator, two runs
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "0f2c7b1a", truncateID("0f2c7b1a-9d40-4c0f"))
	assert.Equal(t, "short", truncateID("short"))
}
