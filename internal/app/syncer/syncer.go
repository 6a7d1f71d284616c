// Package syncer mirrors cloud notes into a local vault.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	minotedomain "github.com/sleroq/minote-sync/internal/domain/minote"
	"github.com/sleroq/minote-sync/internal/infra/exportfs"
	"github.com/sleroq/minote-sync/internal/infra/transport"
)

const DefaultWorkers = 8

type Lister interface {
	List(ctx context.Context) ([]minotedomain.NoteEntry, minotedomain.FolderMap, error)
}

type Fetcher interface {
	Detail(ctx context.Context, id string) (minotedomain.NoteDetail, bool, error)
}

type Resolver interface {
	Resolve(ctx context.Context, id string) (minotedomain.LocalArtifact, bool, error)
}

// State is the lifecycle phase of a run.
type State int32

const (
	StateIdle State = iota
	StateListing
	StateProcessing
	StateDraining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListing:
		return "listing"
	case StateProcessing:
		return "processing"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

type Syncer struct {
	Lister     Lister
	Fetcher    Fetcher
	Resolver   Resolver
	VaultPath  string
	Workers    int
	DatePrefix bool
	Author     string
	Location   *time.Location
	Logger     *slog.Logger
	Progress   Progress

	state atomic.Int32
}

type Stats struct {
	Listed    int
	Synced    int
	Skipped   int
	Failed    int
	Cancelled int
	Assets    int
}

type counters struct {
	synced    atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
	assets    atomic.Int64
}

func (c *counters) snapshot(listed int) Stats {
	return Stats{
		Listed:    listed,
		Synced:    int(c.synced.Load()),
		Skipped:   int(c.skipped.Load()),
		Failed:    int(c.failed.Load()),
		Cancelled: int(c.cancelled.Load()),
		Assets:    int(c.assets.Load()),
	}
}

type outcome int

const (
	outcomeSynced outcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeCancelled
)

func (o outcome) String() string {
	switch o {
	case outcomeSynced:
		return "synced"
	case outcomeSkipped:
		return "skipped"
	case outcomeFailed:
		return "failed"
	default:
		return "cancelled"
	}
}

func (s *Syncer) State() State {
	return State(s.state.Load())
}

func (s *Syncer) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Syncer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

func (s *Syncer) progress() Progress {
	if s.Progress == nil {
		return noopProgress{}
	}
	return s.Progress
}

func (s *Syncer) gate() Gate {
	return Gate{VaultPath: s.VaultPath, DatePrefix: s.DatePrefix, Location: s.Location}
}

// Run lists every note once and processes the entries on a bounded pool of
// workers. Per-note failures are logged and counted; the returned error is
// non-nil only when the service rejects the credential.
//
// Cancelling ctx stops dispatch. Tasks that have not started yet return
// immediately, running tasks stop at their next checkpoint, and Run returns
// once every dispatched task has finished.
func (s *Syncer) Run(ctx context.Context) (Stats, error) {
	if s.VaultPath == "" {
		return Stats{}, fmt.Errorf("vault path is required")
	}
	if s.Lister == nil || s.Fetcher == nil || s.Resolver == nil {
		return Stats{}, fmt.Errorf("lister, fetcher and resolver are required")
	}
	logger := s.logger()
	defer s.setState(StateDone)

	s.setState(StateListing)
	entries, folders, err := s.Lister.List(ctx)
	if err != nil {
		logger.Error("listing failed", "error", err)
		return Stats{}, fmt.Errorf("list notes: %w", err)
	}
	if len(entries) == 0 {
		logger.Info("nothing synced", "reason", "no notes listed")
		return Stats{}, nil
	}
	logger.Info("notes listed", "count", len(entries), "folders", len(folders))

	workers := s.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var c counters
	bar := s.progress()
	bar.Start(len(entries))

	s.setState(StateProcessing)
	var g errgroup.Group
	g.SetLimit(workers)
	for _, entry := range entries {
		if runCtx.Err() != nil {
			c.cancelled.Add(1)
			bar.Advance("cancelled")
			continue
		}
		g.Go(func() error {
			res, assets := s.processNote(runCtx, cancel, entry, folders)
			switch res {
			case outcomeSynced:
				c.synced.Add(1)
				c.assets.Add(int64(assets))
			case outcomeSkipped:
				c.skipped.Add(1)
			case outcomeFailed:
				c.failed.Add(1)
			case outcomeCancelled:
				c.cancelled.Add(1)
			}
			bar.Advance(res.String())
			return nil
		})
	}

	s.setState(StateDraining)
	_ = g.Wait()

	stats := c.snapshot(len(entries))
	bar.Finish("done")

	if cause := context.Cause(runCtx); errors.Is(cause, transport.ErrUnauthorized) {
		logger.Error("credential rejected, run aborted", "synced", stats.Synced)
		return stats, cause
	}
	return stats, nil
}

// processNote runs one note end to end: gate, fetch, resolve attachments,
// render and write. It never returns an error; unauthorized outcomes cancel
// the whole run through cancel.
func (s *Syncer) processNote(ctx context.Context, cancel context.CancelCauseFunc, entry minotedomain.NoteEntry, folders minotedomain.FolderMap) (res outcome, assets int) {
	logger := s.logger().With("id", entry.ID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("note processing panicked", "panic", r, "stack", string(debug.Stack()))
			res, assets = outcomeFailed, 0
		}
	}()

	if ctx.Err() != nil {
		return outcomeCancelled, 0
	}

	target, skip := s.gate().ShouldSkip(entry, folders)
	if skip {
		logger.Debug("note skipped", "path", target.Path)
		return outcomeSkipped, 0
	}

	detail, ok, err := s.Fetcher.Detail(ctx, entry.ID)
	if err != nil {
		return s.failure(cancel, logger, "fetch detail", err), 0
	}
	if !ok {
		logger.Warn("note skipped", "reason", "detail unavailable")
		return outcomeFailed, 0
	}

	extra := entry.ExtraInfo()
	ids := minotedomain.ExtractAttachmentIDs(detail.Content, extra, detail.Setting())
	links := make(map[string]string, len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			logger.Debug("note cancelled", "stage", "attachments")
			return outcomeCancelled, 0
		}
		art, ok, err := s.Resolver.Resolve(ctx, id)
		if err != nil {
			return s.failure(cancel, logger, "resolve attachment", err), 0
		}
		if !ok {
			logger.Debug("attachment unresolved", "attachment", id)
			continue
		}
		links[id] = minotedomain.EmbedLink(art.Filename)
	}

	doc := exportfs.Document{
		ID:      entry.ID,
		Title:   target.Title,
		Folder:  target.Folder,
		Author:  s.Author,
		Created: minotedomain.FirstTime(detail.CreatedAtMs, entry.CreatedAtMs),
		Updated: minotedomain.FirstTime(detail.ModifiedAtMs, entry.ModifiedAtMs),
		Body:    minotedomain.Render(detail.Content, links, extra.VoiceIDs()),
	}
	if err := exportfs.WriteDocument(target.Path, doc); err != nil {
		logger.Warn("note failed", "stage", "write", "path", target.Path, "error", err)
		return outcomeFailed, 0
	}

	logger.Info("note synced", "folder", target.Folder, "title", target.Title, "attachments", len(links))
	return outcomeSynced, len(links)
}

func (s *Syncer) failure(cancel context.CancelCauseFunc, logger *slog.Logger, stage string, err error) outcome {
	switch {
	case errors.Is(err, transport.ErrUnauthorized):
		logger.Error("note failed", "stage", stage, "error", err)
		cancel(err)
		return outcomeFailed
	case errors.Is(err, transport.ErrCancelled):
		logger.Debug("note cancelled", "stage", stage)
		return outcomeCancelled
	default:
		logger.Warn("note failed", "stage", stage, "error", err)
		return outcomeFailed
	}
}
