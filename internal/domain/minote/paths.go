package minote

import (
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// MaxNameRunes bounds sanitized titles and folder names.
const MaxNameRunes = 50

// UntitledName replaces titles that sanitize to nothing.
const UntitledName = "无标题"

// AssetsDirName is the vault subdirectory holding downloaded attachments.
const AssetsDirName = "assets"

// SanitizeName makes s safe to use as a single path component. Style
// fragments are scrubbed first since raw titles can carry layout markup.
func SanitizeName(s string) string {
	s = ScrubStyle(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(' ')
		case isForbiddenFileNameRune(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if runes := []rune(out); len(runes) > MaxNameRunes {
		out = strings.TrimSpace(string(runes[:MaxNameRunes]))
	}
	out = strings.TrimRight(out, ". ")
	if out == "." || out == ".." {
		out = ""
	}
	if isWindowsReservedName(out) {
		out += "-file"
	}
	return out
}

// DeriveTitle picks the first non-empty line of the title, or the snippet
// when the title is blank, and sanitizes it.
func DeriveTitle(title, snippet string) string {
	for _, candidate := range []string{title, snippet} {
		for _, line := range strings.Split(Clean(candidate), "\n") {
			if name := SanitizeName(line); name != "" {
				return name
			}
		}
	}
	return UntitledName
}

// IDSuffix returns the last four characters of id.
func IDSuffix(id string) string {
	r := []rune(strings.TrimSpace(id))
	if len(r) <= 4 {
		return string(r)
	}
	return string(r[len(r)-4:])
}

// DeriveFilename builds "[YYYYMMDD_]<title>_<suffix>.md". The date comes from
// the entry's creation time in loc.
func DeriveFilename(entry NoteEntry, title string, datePrefix bool, loc *time.Location) string {
	if title == "" {
		title = UntitledName
	}
	name := title + "_" + IDSuffix(entry.ID) + ".md"
	if !datePrefix {
		return name
	}
	created := MillisTime(entry.CreatedAtMs)
	if created.IsZero() {
		return name
	}
	if loc == nil {
		loc = time.Local
	}
	return created.In(loc).Format("20060102") + "_" + name
}

// FolderDirName sanitizes a folder display name, falling back to the
// unclassified folder name.
func FolderDirName(name string) string {
	if out := SanitizeName(name); out != "" {
		return out
	}
	return DefaultFolderName
}

func DocumentPath(root, folderName, filename string) string {
	return filepath.Join(root, FolderDirName(folderName), filename)
}

func AssetsDir(root string) string {
	return filepath.Join(root, AssetsDirName)
}

func isForbiddenFileNameRune(r rune) bool {
	if r == 0 || unicode.IsControl(r) {
		return true
	}
	switch r {
	case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
		return true
	default:
		return false
	}
}

func isWindowsReservedName(name string) bool {
	if name == "" {
		return false
	}
	upper := strings.ToUpper(strings.TrimSpace(name))
	if idx := strings.IndexRune(upper, '.'); idx >= 0 {
		upper = upper[:idx]
	}
	switch upper {
	case "CON", "PRN", "AUX", "NUL",
		"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
		"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9":
		return true
	default:
		return false
	}
}
