package minote

import (
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Attachment reference encodings found in note markup. The query form also
// matches sound tags; extraction unions every pattern so the overlap is harmless.
var (
	queryIDPattern    = regexp.MustCompile(`(?i)fileid=["']?([\w.\-]+)["']?`)
	sentinelIDPattern = regexp.MustCompile(`☺\s*([\w.\-]+)`)
	fileIDTagPattern  = regexp.MustCompile(`<fileId:(\d+)`)
	soundTagPattern   = regexp.MustCompile(`(?i)<sound[^>]+fileid=["']?([\w.\-]+)["']?`)
)

var (
	lineBreakPattern  = regexp.MustCompile(`(?i)<br\s*/?>`)
	horizontalPattern = regexp.MustCompile(`(?i)<hr\s*/?>`)
	checkboxPattern   = regexp.MustCompile(`(?i)<input\b[^<>]*type=["']?checkbox["']?[^<>]*>`)
	checkedPattern    = regexp.MustCompile(`(?i)\bchecked=["']?true`)
	bulletPattern     = regexp.MustCompile(`(?i)<bullet\b[^<>]*>`)
	orderPattern      = regexp.MustCompile(`(?i)<order\b[^<>]*>`)
	cosmeticPattern   = regexp.MustCompile(`(?i)</?(?:text|background|b|i|u|delete|size|mid-size|h-size|center|left|right|quote|bullet|order)(?:\s[^<>]*)?/?>`)
	styleAttrPattern  = regexp.MustCompile(`(?i)[ \t]*\b(?:class|style)\s*=\s*(?:"[^"\n]*"|'[^'\n]*')/?>?`)
	indentAttrPattern = regexp.MustCompile(`(?i)[ \t]*\bindent\s*=\s*["']?\d*["']?/?>?`)
	blankRunPattern   = regexp.MustCompile(`\n{3,}`)
)

// VoiceSectionHeading introduces voice recordings that were not embedded inline.
const VoiceSectionHeading = "**🎙️ 附件录音：**"

var stripPolicy = bluemonday.StrictPolicy()

// ExtractAttachmentIDs collects every attachment identifier referenced by the
// note's markup, its voice lists and its setting descriptors. The result is
// deduplicated and sorted.
func ExtractAttachmentIDs(content string, extra ExtraInfo, setting Setting) []string {
	seen := map[string]struct{}{}
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		seen[id] = struct{}{}
	}

	for _, p := range []*regexp.Regexp{queryIDPattern, sentinelIDPattern, fileIDTagPattern, soundTagPattern} {
		for _, m := range p.FindAllStringSubmatch(content, -1) {
			add(m[1])
		}
	}
	for _, id := range extra.VoiceIDs() {
		add(id)
	}
	for _, res := range setting.Data {
		add(res.FileID)
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clean converts note markup to plain text without embedding attachments.
func Clean(content string) string {
	return Render(content, nil, nil)
}

// Render converts note markup to plain text and replaces every recognised
// reference to an identifier in links with its embed text. Voice ids that
// resolved to a link but never appeared inline are appended in a trailing section.
func Render(content string, links map[string]string, voiceIDs []string) string {
	if content == "" && len(voiceIDs) == 0 {
		return ""
	}

	s := strings.ReplaceAll(content, "\r\n", "\n")
	s = lineBreakPattern.ReplaceAllString(s, "\n")
	s = horizontalPattern.ReplaceAllString(s, "\n---\n")
	s = checkboxPattern.ReplaceAllStringFunc(s, func(tag string) string {
		if checkedPattern.MatchString(tag) {
			return "- [x] "
		}
		return "- [ ] "
	})
	s = bulletPattern.ReplaceAllString(s, "- ")
	s = orderPattern.ReplaceAllString(s, "1. ")
	s = cosmeticPattern.ReplaceAllString(s, "")

	ids := make([]string, 0, len(links))
	for id := range links {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s = substituteLink(s, id, links[id])
	}

	s = stripTags(s)
	s = ScrubStyle(s)
	s = blankRunPattern.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	appended := false
	for _, id := range voiceIDs {
		link, ok := links[id]
		if !ok || strings.Contains(s, id) {
			continue
		}
		if !appended {
			if s != "" {
				s += "\n\n"
			}
			s += "---\n" + VoiceSectionHeading + "\n"
			appended = true
		}
		s += link + "\n"
	}
	return s
}

// ScrubStyle removes CSS attribute fragments that survive tag stripping,
// such as class="...", style="..." and orphaned indent= tokens.
func ScrubStyle(s string) string {
	s = styleAttrPattern.ReplaceAllString(s, "")
	return indentAttrPattern.ReplaceAllString(s, "")
}

// substituteLink replaces each encoding of id with link. Patterns run in a
// fixed order: sound tag, any tag mentioning the id, sentinel line, then the
// literal fileId forms.
func substituteLink(s, id, link string) string {
	if id == "" || link == "" {
		return s
	}
	q := regexp.QuoteMeta(id)
	repl := "\n" + link + "\n"
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)<sound\b[^<>]*[^\w.\-<>]` + q + `(?:[^\w.\-<>][^<>]*)?>`),
		regexp.MustCompile(`<[^<>]*[^\w.\-<>]` + q + `(?:[^\w.\-<>][^<>]*)?>`),
		regexp.MustCompile(`(?m)☺\s*` + q + `(?:[^\w.\-\n][^\n]*)?$`),
	}
	for _, p := range patterns {
		s = p.ReplaceAllLiteralString(s, repl)
	}
	s = strings.ReplaceAll(s, "<fileId:"+id+"/>", repl)
	s = strings.ReplaceAll(s, "<fileId:"+id+">", repl)
	return s
}

func stripTags(s string) string {
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.ReplaceAll(s, "\u00a0", " ")
}
