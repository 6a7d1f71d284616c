package syncer

import (
	"time"

	minotedomain "github.com/sleroq/minote-sync/internal/domain/minote"
	"github.com/sleroq/minote-sync/internal/infra/exportfs"
)

// Gate derives where a note lands in the vault. A non-empty file at that
// path means the note was already synced.
type Gate struct {
	VaultPath  string
	DatePrefix bool
	Location   *time.Location
}

// Target is the deterministic destination of one note.
type Target struct {
	Path   string
	Title  string
	Folder string
}

func (g Gate) Target(entry minotedomain.NoteEntry, folders minotedomain.FolderMap) Target {
	title := minotedomain.DeriveTitle(entry.ExtraInfo().Title, entry.Snippet)
	folder := folders.Name(entry.FolderID)
	filename := minotedomain.DeriveFilename(entry, title, g.DatePrefix, g.Location)
	return Target{
		Path:   minotedomain.DocumentPath(g.VaultPath, folder, filename),
		Title:  title,
		Folder: folder,
	}
}

// ShouldSkip reports the note's destination and whether a file with content
// already exists there. It touches only the local filesystem.
func (g Gate) ShouldSkip(entry minotedomain.NoteEntry, folders minotedomain.FolderMap) (Target, bool) {
	target := g.Target(entry, folders)
	return target, exportfs.NonEmptyFile(target.Path)
}
