// Package config loads run settings from defaults, an optional config file,
// MINOTE_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sleroq/minote-sync/internal/infra/minoteapi"
	"github.com/sleroq/minote-sync/internal/infra/transport"
)

const EnvPrefix = "MINOTE"

// Config keys. "cookie" and "path" match the config.json written by the
// desktop app.
const (
	KeyCookie         = "cookie"
	KeyVaultPath      = "path"
	KeyWorkers        = "workers"
	KeyBaseURL        = "base_url"
	KeyMaxAttempts    = "max_attempts"
	KeyBackoffBase    = "backoff_base"
	KeyRequestTimeout = "request_timeout"
	KeyPageLimit      = "page_limit"
	KeyMaxPages       = "max_pages"
	KeyPageDelay      = "page_delay"
	KeyDatePrefix     = "date_prefix"
	KeyAuthor         = "author"
	KeyLogFormat      = "log_format"
	KeyLogFile        = "log_file"
	KeyVerbose        = "verbose"
)

type Config struct {
	Cookie         string
	VaultPath      string
	Workers        int
	BaseURL        string
	MaxAttempts    int
	BackoffBase    time.Duration
	RequestTimeout time.Duration
	PageLimit      int
	MaxPages       int
	PageDelay      time.Duration
	DatePrefix     bool
	Author         string
	LogFormat      string
	LogFile        string
	Verbose        bool
}

func DefaultConfig() Config {
	return Config{
		VaultPath:      filepath.Join("Data", "Notes"),
		Workers:        8,
		BaseURL:        minoteapi.DefaultBaseURL,
		MaxAttempts:    transport.DefaultMaxAttempts,
		BackoffBase:    transport.DefaultBackoffBase,
		RequestTimeout: transport.DefaultRequestTimeout,
		PageLimit:      minoteapi.DefaultPageLimit,
		MaxPages:       minoteapi.DefaultMaxPages,
		PageDelay:      minoteapi.DefaultPageDelay,
		LogFormat:      "text",
	}
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"cookie":          KeyCookie,
	"vault":           KeyVaultPath,
	"workers":         KeyWorkers,
	"base-url":        KeyBaseURL,
	"max-attempts":    KeyMaxAttempts,
	"backoff-base":    KeyBackoffBase,
	"request-timeout": KeyRequestTimeout,
	"page-limit":      KeyPageLimit,
	"max-pages":       KeyMaxPages,
	"page-delay":      KeyPageDelay,
	"date-prefix":     KeyDatePrefix,
	"author":          KeyAuthor,
	"log-format":      KeyLogFormat,
	"log-file":        KeyLogFile,
	"verbose":         KeyVerbose,
}

// Load resolves the configuration. configFile may be empty, in which case a
// file named config.{json,yaml,toml} is looked up in the working directory
// and the user config directory; a missing file is not an error.
func Load(configFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "minote-sync"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return Config{
		Cookie:         transport.SanitizeCredential(v.GetString(KeyCookie)),
		VaultPath:      strings.TrimSpace(v.GetString(KeyVaultPath)),
		Workers:        v.GetInt(KeyWorkers),
		BaseURL:        strings.TrimSpace(v.GetString(KeyBaseURL)),
		MaxAttempts:    v.GetInt(KeyMaxAttempts),
		BackoffBase:    v.GetDuration(KeyBackoffBase),
		RequestTimeout: v.GetDuration(KeyRequestTimeout),
		PageLimit:      v.GetInt(KeyPageLimit),
		MaxPages:       v.GetInt(KeyMaxPages),
		PageDelay:      v.GetDuration(KeyPageDelay),
		DatePrefix:     v.GetBool(KeyDatePrefix),
		Author:         strings.TrimSpace(v.GetString(KeyAuthor)),
		LogFormat:      strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
		LogFile:        strings.TrimSpace(v.GetString(KeyLogFile)),
		Verbose:        v.GetBool(KeyVerbose),
	}, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault(KeyCookie, d.Cookie)
	v.SetDefault(KeyVaultPath, d.VaultPath)
	v.SetDefault(KeyWorkers, d.Workers)
	v.SetDefault(KeyBaseURL, d.BaseURL)
	v.SetDefault(KeyMaxAttempts, d.MaxAttempts)
	v.SetDefault(KeyBackoffBase, d.BackoffBase)
	v.SetDefault(KeyRequestTimeout, d.RequestTimeout)
	v.SetDefault(KeyPageLimit, d.PageLimit)
	v.SetDefault(KeyMaxPages, d.MaxPages)
	v.SetDefault(KeyPageDelay, d.PageDelay)
	v.SetDefault(KeyDatePrefix, d.DatePrefix)
	v.SetDefault(KeyAuthor, d.Author)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeyLogFile, d.LogFile)
	v.SetDefault(KeyVerbose, d.Verbose)
}

// Validate reports the first setting that makes a run impossible.
func (c Config) Validate() error {
	switch {
	case c.Cookie == "":
		return fmt.Errorf("cookie is required (flag --cookie, env %s_COOKIE or config key %q)", EnvPrefix, KeyCookie)
	case c.VaultPath == "":
		return fmt.Errorf("vault path is required (flag --vault, env %s_PATH or config key %q)", EnvPrefix, KeyVaultPath)
	case c.Workers <= 0:
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	case c.MaxAttempts <= 0:
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	case c.PageLimit <= 0:
		return fmt.Errorf("page limit must be positive, got %d", c.PageLimit)
	case c.MaxPages <= 0:
		return fmt.Errorf("max pages must be positive, got %d", c.MaxPages)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("log format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func (c Config) Transport() transport.Config {
	tc := transport.DefaultConfig()
	tc.Cookie = c.Cookie
	tc.MaxAttempts = c.MaxAttempts
	tc.BackoffBase = c.BackoffBase
	tc.RequestTimeout = c.RequestTimeout
	if c.BaseURL != "" && c.BaseURL != minoteapi.DefaultBaseURL {
		tc.Origin = strings.TrimRight(c.BaseURL, "/")
		tc.Referer = tc.Origin + "/note/h5"
	}
	return tc
}

func (c Config) API() minoteapi.Options {
	return minoteapi.Options{
		BaseURL:   c.BaseURL,
		PageLimit: c.PageLimit,
		MaxPages:  c.MaxPages,
		PageDelay: c.PageDelay,
	}
}
