package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sleroq/minote-sync/internal/app/syncer"
	"github.com/sleroq/minote-sync/internal/config"
	minotedomain "github.com/sleroq/minote-sync/internal/domain/minote"
	"github.com/sleroq/minote-sync/internal/infra/minoteapi"
	"github.com/sleroq/minote-sync/internal/infra/resources"
	"github.com/sleroq/minote-sync/internal/infra/transport"
	"github.com/sleroq/minote-sync/internal/logging"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "minote-sync: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "minote-sync",
		Short: "Mirror Xiaomi Cloud notes into an Obsidian vault",
		Long: `minote-sync downloads every note from i.mi.com, converts it to Markdown
and writes it into <vault>/<folder>/. Images and recordings are stored in
<vault>/assets/ and embedded with Obsidian links.

Notes that already exist in the vault are skipped, so repeated runs only
fetch what is new.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, configFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (json, yaml or toml)")
	addSyncFlags(flags)

	root.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Sync notes into the vault (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, configFile)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

func addSyncFlags(flags *pflag.FlagSet) {
	d := config.DefaultConfig()
	flags.String("cookie", "", "browser cookie copied from https://i.mi.com/note/h5")
	flags.String("vault", d.VaultPath, "path to the Obsidian vault")
	flags.Int("workers", d.Workers, "notes processed in parallel")
	flags.String("base-url", d.BaseURL, "notes service base URL")
	flags.Int("max-attempts", d.MaxAttempts, "attempts per request before giving up")
	flags.Duration("backoff-base", d.BackoffBase, "base wait between retries, doubled per attempt")
	flags.Duration("request-timeout", d.RequestTimeout, "timeout of a single request")
	flags.Int("page-limit", d.PageLimit, "notes requested per listing page")
	flags.Int("max-pages", d.MaxPages, "listing page ceiling")
	flags.Duration("page-delay", d.PageDelay, "pause between listing pages")
	flags.Bool("date-prefix", d.DatePrefix, "prefix file names with the creation date (YYYYMMDD_)")
	flags.String("author", d.Author, "author written into frontmatter")
	flags.String("log-format", d.LogFormat, "log format: text or json")
	flags.String("log-file", "", "also write logs to this rotating file")
	flags.BoolP("verbose", "v", false, "debug logging")
}

func runSync(cmd *cobra.Command, configFile string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	bar := syncer.NewProgressBar(os.Stderr)
	logger, closer, err := logging.New(logging.Options{
		Format:  cfg.LogFormat,
		Verbose: cfg.Verbose,
		Quiet:   bar.Enabled() && cfg.LogFile == "",
		File:    cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer closer.Close()
	logger = logger.With("run", logging.NewRunID())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := minoteapi.New(transport.New(cfg.Transport(), logger), cfg.API(), logger)
	s := &syncer.Syncer{
		Lister:     api,
		Fetcher:    api,
		Resolver:   resources.New(minotedomain.AssetsDir(cfg.VaultPath), api, logger),
		VaultPath:  cfg.VaultPath,
		Workers:    cfg.Workers,
		DatePrefix: cfg.DatePrefix,
		Author:     cfg.Author,
		Logger:     logger,
		Progress:   bar,
	}

	logger.Info("sync started", "vault", cfg.VaultPath, "workers", cfg.Workers)
	started := time.Now()
	stats, err := s.Run(ctx)
	elapsed := time.Since(started)
	interrupted := ctx.Err() != nil

	logger.Info("sync finished",
		"vault", cfg.VaultPath,
		"listed", stats.Listed,
		"synced", stats.Synced,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"cancelled", stats.Cancelled,
		"attachments", stats.Assets,
		"elapsed", elapsed.Round(time.Millisecond),
	)
	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(stats, cfg.VaultPath, elapsed, interrupted))

	if err != nil {
		if errors.Is(err, transport.ErrUnauthorized) {
			return fmt.Errorf("cookie rejected, copy a fresh one from https://i.mi.com/note/h5: %w", err)
		}
		return err
	}
	return nil
}
