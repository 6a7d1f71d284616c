// Package resources turns attachment ids into files in the vault's assets
// directory, reusing earlier downloads when present.
package resources

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	minotedomain "github.com/sleroq/minote-sync/internal/domain/minote"
	"github.com/sleroq/minote-sync/internal/infra/transport"
)

// MinSize is the smallest payload accepted as a real attachment. Smaller
// responses are error pages or placeholders.
const MinSize = 1000

// Kinds are the download endpoint types probed in order.
var Kinds = []string{"note_img", "file", "note_voice", "note_audio"}

// KnownExtensions are checked when looking for an earlier download.
var KnownExtensions = []string{".jpg", ".png", ".gif", ".mp3", ".amr", ".wav", ".m4a", ".webp"}

// Opener streams one attachment through one endpoint kind.
type Opener interface {
	OpenResource(ctx context.Context, kind, id string) (*http.Response, error)
}

type Resolver struct {
	dir    string
	opener Opener
	logger *slog.Logger
}

func New(dir string, opener Opener, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{dir: dir, opener: opener, logger: logger}
}

func (r *Resolver) Dir() string {
	return r.dir
}

// Existing reports an earlier download of id larger than MinSize.
func (r *Resolver) Existing(id string) (minotedomain.LocalArtifact, bool) {
	if !validID(id) {
		return minotedomain.LocalArtifact{}, false
	}
	for _, ext := range KnownExtensions {
		name := id + ext
		info, err := os.Stat(filepath.Join(r.dir, name))
		if err != nil || !info.Mode().IsRegular() || info.Size() <= MinSize {
			continue
		}
		return minotedomain.LocalArtifact{ID: id, Filename: name, Ext: ext}, true
	}
	return minotedomain.LocalArtifact{}, false
}

// Resolve returns the local file for id, downloading it when needed. An
// attachment no endpoint could deliver yields ok=false with a nil error.
// Unauthorized and cancelled outcomes are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, id string) (minotedomain.LocalArtifact, bool, error) {
	id = strings.TrimSpace(id)
	if !validID(id) {
		r.logger.Warn("rejected attachment id", "id", id)
		return minotedomain.LocalArtifact{}, false, nil
	}
	if art, ok := r.Existing(id); ok {
		return art, true, nil
	}

	for _, kind := range Kinds {
		if ctx.Err() != nil {
			return minotedomain.LocalArtifact{}, false, transport.ErrCancelled
		}
		resp, err := r.opener.OpenResource(ctx, kind, id)
		if err != nil {
			if errors.Is(err, transport.ErrUnauthorized) || errors.Is(err, transport.ErrCancelled) {
				return minotedomain.LocalArtifact{}, false, err
			}
			r.logger.Debug("attachment probe failed", "id", id, "kind", kind, "error", err)
			continue
		}
		if resp.StatusCode != http.StatusOK || resp.ContentLength <= MinSize {
			r.logger.Debug("attachment probe rejected", "id", id, "kind", kind, "status", resp.StatusCode, "length", resp.ContentLength)
			_ = resp.Body.Close()
			continue
		}

		art, err := r.store(id, resp)
		if err != nil {
			r.logger.Warn("attachment download failed", "id", id, "kind", kind, "error", err)
			return minotedomain.LocalArtifact{}, false, nil
		}
		r.logger.Debug("attachment downloaded", "id", id, "kind", kind, "file", art.Filename)
		return art, true, nil
	}

	r.logger.Debug("attachment unresolved", "id", id)
	return minotedomain.LocalArtifact{}, false, nil
}

// store streams the body into a temporary file and renames it into place so
// a partial download is never visible under its final name.
func (r *Resolver) store(id string, resp *http.Response) (minotedomain.LocalArtifact, error) {
	defer resp.Body.Close()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return minotedomain.LocalArtifact{}, fmt.Errorf("create assets dir: %w", err)
	}

	br := bufio.NewReaderSize(resp.Body, 4096)
	head, _ := br.Peek(sniffLen)
	ext := ExtensionFor(resp.Header.Get("Content-Type"), head)
	name := id + ext

	tmp, err := os.CreateTemp(r.dir, "."+id+"-*.part")
	if err != nil {
		return minotedomain.LocalArtifact{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, br); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return minotedomain.LocalArtifact{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return minotedomain.LocalArtifact{}, fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(r.dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return minotedomain.LocalArtifact{}, fmt.Errorf("rename %s: %w", name, err)
	}
	return minotedomain.LocalArtifact{ID: id, Filename: name, Ext: ext}, nil
}

func validID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}
