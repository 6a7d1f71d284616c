package resources

import (
	"net/http"
	"strings"
)

const sniffLen = 512

// ExtensionFor picks the file extension from the declared content type,
// falling back to sniffing the leading bytes and finally to .jpg.
func ExtensionFor(contentType string, head []byte) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "amr"):
		return ".amr"
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "mp4"), strings.Contains(ct, "m4a"):
		return ".m4a"
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"), strings.Contains(ct, "audio"):
		return ".mp3"
	case strings.Contains(ct, "png"):
		return ".png"
	case strings.Contains(ct, "gif"):
		return ".gif"
	case strings.Contains(ct, "webp"):
		return ".webp"
	}
	if ext := sniffExtension(head); ext != "" {
		return ext
	}
	return ".jpg"
}

// sniffExtension only maps to extensions that a later run will recognise as
// an existing download.
func sniffExtension(head []byte) string {
	if len(head) == 0 {
		return ""
	}
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	mimeType := strings.TrimSpace(http.DetectContentType(head))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	preferredExt := map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
		"audio/wave": ".wav",
		"audio/mpeg": ".mp3",
		"video/mp4":  ".m4a",
	}
	return preferredExt[strings.ToLower(mimeType)]
}
