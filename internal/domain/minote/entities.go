package minote

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DefaultFolderID is the folder id the service uses for unclassified notes.
const DefaultFolderID = "0"

// DefaultFolderName is the display name of the unclassified folder.
const DefaultFolderName = "未分类"

// NoteEntry is a note stub returned by the listing endpoint.
type NoteEntry struct {
	ID           string
	FolderID     string
	Snippet      string
	ExtraInfoRaw string
	CreatedAtMs  int64
	ModifiedAtMs int64
}

// ExtraInfo decodes the entry's extra info blob. A missing or malformed blob
// yields an empty ExtraInfo.
func (e NoteEntry) ExtraInfo() ExtraInfo {
	return DecodeExtraInfo(e.ExtraInfoRaw)
}

// NoteDetail is the full payload of a single note.
type NoteDetail struct {
	Content      string
	SettingRaw   string
	CreatedAtMs  int64
	ModifiedAtMs int64
}

// Setting decodes the detail's setting blob. A missing or malformed blob
// yields an empty Setting.
func (d NoteDetail) Setting() Setting {
	return DecodeSetting(d.SettingRaw)
}

type ExtraInfo struct {
	Title     string
	VoiceList []VoiceRef
	AudioList []VoiceRef
}

type VoiceRef struct {
	FileID string
}

// VoiceIDs returns the ids of recorded audio attached to the note. The voice
// list wins over the audio list when both are present.
func (x ExtraInfo) VoiceIDs() []string {
	refs := x.VoiceList
	if len(refs) == 0 {
		refs = x.AudioList
	}
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if id := strings.TrimSpace(ref.FileID); id != "" {
			out = append(out, id)
		}
	}
	return out
}

type Setting struct {
	Data []ResourceDescriptor
}

type ResourceDescriptor struct {
	FileID   string
	MimeType string
	Digest   string
}

// FolderMap maps folder ids to display names.
type FolderMap map[string]string

// NewFolderMap returns a map holding only the unclassified folder.
func NewFolderMap() FolderMap {
	return FolderMap{DefaultFolderID: DefaultFolderName}
}

// Merge adds or overwrites a folder definition. Empty ids are ignored.
func (m FolderMap) Merge(id, name string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	m[id] = name
}

// Name returns the display name for id, falling back to the unclassified folder.
func (m FolderMap) Name(id string) string {
	if name := strings.TrimSpace(m[strings.TrimSpace(id)]); name != "" {
		return name
	}
	return DefaultFolderName
}

// LocalArtifact is an attachment that lives in the vault's assets directory.
type LocalArtifact struct {
	ID       string
	Filename string
	Ext      string
}

// EmbedLink renders the Obsidian embed for an asset file name.
func EmbedLink(filename string) string {
	return "![[" + filename + "]]"
}

func DecodeExtraInfo(raw string) ExtraInfo {
	obj := decodeObject(raw)
	if obj == nil {
		return ExtraInfo{}
	}
	return ExtraInfo{
		Title:     strings.TrimSpace(AsString(obj["title"])),
		VoiceList: decodeVoiceRefs(obj["voice_list"]),
		AudioList: decodeVoiceRefs(obj["audio_list"]),
	}
}

func DecodeSetting(raw string) Setting {
	obj := decodeObject(raw)
	if obj == nil {
		return Setting{}
	}
	var out Setting
	for _, item := range AsAnySlice(obj["data"]) {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := strings.TrimSpace(AsString(m["fileId"]))
		if id == "" {
			continue
		}
		out.Data = append(out.Data, ResourceDescriptor{
			FileID:   id,
			MimeType: AsString(m["mimeType"]),
			Digest:   AsString(m["digest"]),
		})
	}
	return out
}

func decodeVoiceRefs(v any) []VoiceRef {
	var out []VoiceRef
	for _, item := range AsAnySlice(v) {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := strings.TrimSpace(AsString(m["fileId"]))
		if id == "" {
			continue
		}
		out = append(out, VoiceRef{FileID: id})
	}
	return out
}

// decodeObject parses a JSON object, unwrapping one level of string encoding
// since the service sometimes ships blobs as stringified JSON.
func decodeObject(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case map[string]any:
		return t
	case string:
		return decodeObject(t)
	default:
		return nil
	}
}
