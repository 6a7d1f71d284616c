package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sleroq/minote-sync/internal/app/syncer"
)

func TestRenderSummary(t *testing.T) {
	out := renderSummary(syncer.Stats{Listed: 3, Synced: 2, Skipped: 1, Assets: 4}, "/vault", 1500*time.Millisecond, false)

	require.Contains(t, out, "Sync finished")
	require.Contains(t, out, "/vault")
	for _, label := range []string{"listed", "synced", "skipped", "attachments", "failed", "cancelled"} {
		require.Contains(t, out, label)
	}
}

func TestRenderSummaryHeadings(t *testing.T) {
	require.True(t, strings.Contains(renderSummary(syncer.Stats{}, "/v", 0, false), "Nothing synced"))
	require.True(t, strings.Contains(renderSummary(syncer.Stats{Listed: 1}, "/v", 0, true), "Sync interrupted"))
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Equal(t, version+"\n", out.String())
}

func TestSyncRequiresCookie(t *testing.T) {
	t.Setenv("MINOTE_COOKIE", "")
	root := newRootCmd()
	root.SetArgs([]string{"sync", "--config", "", "--vault", t.TempDir()})

	err := root.Execute()
	require.ErrorContains(t, err, "cookie is required")
}
