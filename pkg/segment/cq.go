package segment

import (
	"regexp"
	"sort"
	"strings"
)

var cqSegmentPattern = regexp.MustCompile(`\[CQ:([a-zA-Z0-9_.-]+)((?:,[^,\]]*)*)\]`)

func escapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "[", "&#91;")
	s = strings.ReplaceAll(s, "]", "&#93;")
	return s
}

func escapeParam(s string) string {
	return strings.ReplaceAll(escapeText(s), ",", "&#44;")
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, "&#44;", ",")
	s = strings.ReplaceAll(s, "&#91;", "[")
	s = strings.ReplaceAll(s, "&#93;", "]")
	return strings.ReplaceAll(s, "&amp;", "&")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToCQString re-emits segs as the bracketed CQ encoding, used whenever the
// downstream API expects string content (notably in custom forward nodes).
func ToCQString(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Kind == KindText {
			b.WriteString(escapeText(s.Str("text")))
			continue
		}
		b.WriteString("[CQ:")
		b.WriteString(string(s.Kind))
		for _, k := range sortedKeys(s.Attrs) {
			b.WriteString(",")
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(escapeParam(s.Str(k)))
		}
		b.WriteString("]")
	}
	return b.String()
}

// ParseCQString decodes a CQ-encoded string into segments, the inverse of
// ToCQString. Text runs between bracketed segments are unescaped and kept
// verbatim; a malformed parameter list degrades that single param to being
// dropped rather than failing the whole parse.
func ParseCQString(raw string) []Segment {
	var out []Segment
	last := 0
	for _, loc := range cqSegmentPattern.FindAllStringSubmatchIndex(raw, -1) {
		start, end := loc[0], loc[1]
		if start > last {
			if text := unescape(raw[last:start]); text != "" {
				out = append(out, Text(text))
			}
		}

		kind := raw[loc[2]:loc[3]]
		paramsRaw := strings.TrimPrefix(raw[loc[4]:loc[5]], ",")
		attrs := map[string]any{}
		if paramsRaw != "" {
			for _, part := range strings.Split(paramsRaw, ",") {
				kv := strings.SplitN(part, "=", 2)
				if len(kv) != 2 {
					continue
				}
				attrs[kv[0]] = unescape(kv[1])
			}
		}
		out = append(out, New(Kind(kind), attrs))
		last = end
	}
	if last < len(raw) {
		if text := unescape(raw[last:]); text != "" {
			out = append(out, Text(text))
		}
	}
	return out
}
