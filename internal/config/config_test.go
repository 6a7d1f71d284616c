package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsDesktopConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cookie":"userId=1;\nserviceToken=abc","path":"/tmp/vault"}`), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "userId=1;serviceToken=abc", cfg.Cookie)
	require.Equal(t, "/tmp/vault", cfg.VaultPath)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, 500*time.Millisecond, cfg.PageDelay)
	require.NoError(t, cfg.Validate())
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cookie: from-file\nworkers: 3\npage_delay: 1s\n"), 0o644))
	t.Setenv("MINOTE_WORKERS", "5")
	t.Setenv("MINOTE_AUTHOR", "Ning")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("cookie", "", "")
	flags.Int("workers", 0, "")
	require.NoError(t, flags.Parse([]string{"--cookie", "from-flag"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	require.Equal(t, "from-flag", cfg.Cookie)
	require.Equal(t, 5, cfg.Workers)
	require.Equal(t, "Ning", cfg.Author)
	require.Equal(t, time.Second, cfg.PageDelay)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.ErrorContains(t, cfg.Validate(), "cookie")

	cfg.Cookie = "x"
	require.NoError(t, cfg.Validate())

	cfg.Workers = 0
	require.ErrorContains(t, cfg.Validate(), "workers")

	cfg.Workers = 1
	cfg.LogFormat = "xml"
	require.ErrorContains(t, cfg.Validate(), "log format")
}

func TestTransportUsesCustomOrigin(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "https://i.mi.com", cfg.Transport().Origin)

	cfg.BaseURL = "http://localhost:9000/"
	tc := cfg.Transport()
	require.Equal(t, "http://localhost:9000", tc.Origin)
	require.Equal(t, "http://localhost:9000/note/h5", tc.Referer)
}
