package exportfs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TimestampLayout formats frontmatter timestamps in local time.
const TimestampLayout = "2006-01-02 15:04:05"

// Document is a fully assembled note ready to be written.
type Document struct {
	ID      string
	Title   string
	Folder  string
	Author  string
	Created time.Time
	Updated time.Time
	Body    string
}

type frontmatter struct {
	ID      string `yaml:"id"`
	Created string `yaml:"created"`
	Updated string `yaml:"updated"`
	Title   string `yaml:"title"`
	Folder  string `yaml:"folder"`
	Author  string `yaml:"author,omitempty"`
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(TimestampLayout)
}

// RenderDocument produces the YAML frontmatter, a title heading and the body.
func RenderDocument(doc Document) ([]byte, error) {
	meta, err := yaml.Marshal(frontmatter{
		ID:      doc.ID,
		Created: formatTimestamp(doc.Created),
		Updated: formatTimestamp(doc.Updated),
		Title:   doc.Title,
		Folder:  doc.Folder,
		Author:  doc.Author,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(meta)
	b.WriteString("---\n\n")
	b.WriteString("# ")
	b.WriteString(doc.Title)
	b.WriteString("\n\n")
	if body := strings.TrimSpace(doc.Body); body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}
	return b.Bytes(), nil
}

// WriteDocument renders doc and writes it to path atomically. The file times
// are then set to the note's own timestamps; failing to do so is ignored.
func WriteDocument(path string, doc Document) error {
	content, err := RenderDocument(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create folder: %w", err)
	}
	if err := WriteFileAtomic(path, content); err != nil {
		return err
	}
	_ = StampFileTimes(path, doc.Created, doc.Updated)
	return nil
}

// WriteFileAtomic writes data to a temporary sibling and renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// StampFileTimes sets atime to created and mtime to modified. Either may be
// zero, in which case the other is used.
func StampFileTimes(path string, created, modified time.Time) error {
	if modified.IsZero() {
		modified = created
	}
	if modified.IsZero() {
		return nil
	}
	atime := created
	if atime.IsZero() {
		atime = modified
	}
	if err := os.Chtimes(path, atime, modified); err != nil {
		return err
	}
	return setFileCreationTime(path, created)
}

// NonEmptyFile reports whether path is a regular file with content.
func NonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
