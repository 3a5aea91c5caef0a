package segment

import "strings"

const emptyContentText = "（空内容）"

// NormalizeContent implements the polymorphic `normalize_content` contract
// from 4.4: it accepts a CQ-encoded string, an already-typed Message, a
// single Segment, a segment-shaped map (OneBot V11's {"type":..,"data":..}
// array form), a list of such maps, or arbitrary JSON (wrapped as a text
// segment containing its JSON encoding). Empty input becomes a single
// placeholder text segment.
func NormalizeContent(v any) []Segment {
	switch t := v.(type) {
	case nil:
		return []Segment{Text(emptyContentText)}
	case string:
		if strings.TrimSpace(t) == "" {
			return []Segment{Text(emptyContentText)}
		}
		return ParseCQString(t)
	case Segment:
		return []Segment{t.Copy()}
	case Message:
		return normalizeOrEmpty(ToSegments(t))
	case []Segment:
		return normalizeOrEmpty(ToSegments(t))
	case map[string]any:
		if seg, ok := segmentFromMap(t); ok {
			return []Segment{seg}
		}
		return jsonFallback(t)
	case []any:
		out := make([]Segment, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				if seg, ok := segmentFromMap(m); ok {
					out = append(out, seg)
					continue
				}
			}
			out = append(out, NormalizeContent(item)...)
		}
		return normalizeOrEmpty(out)
	default:
		return jsonFallback(v)
	}
}

func normalizeOrEmpty(segs []Segment) []Segment {
	if len(segs) == 0 {
		return []Segment{Text(emptyContentText)}
	}
	return segs
}

func segmentFromMap(m map[string]any) (Segment, bool) {
	kindVal, ok := m["type"]
	if !ok {
		kindVal, ok = m["kind"]
	}
	kind, isStr := kindVal.(string)
	if !ok || !isStr || kind == "" {
		return Segment{}, false
	}

	attrs := map[string]any{}
	switch {
	case isMap(m["data"]):
		for k, v := range m["data"].(map[string]any) {
			attrs[k] = v
		}
	case isMap(m["attributes"]):
		for k, v := range m["attributes"].(map[string]any) {
			attrs[k] = v
		}
	default:
		for k, v := range m {
			if k == "type" || k == "kind" {
				continue
			}
			attrs[k] = v
		}
	}
	return New(Kind(kind), attrs), true
}

func isMap(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func jsonFallback(v any) []Segment {
	buf, err := json.Marshal(v)
	if err != nil {
		return []Segment{Text(emptyContentText)}
	}
	return []Segment{Text(string(buf))}
}

// NormalizeSendable copies `url` into `file` for image|video|file segments
// that carry a url but no file, since gateway implementations differ on
// which key is accepted on send.
func NormalizeSendable(segs []Segment) []Segment {
	out := make([]Segment, len(segs))
	for i, s := range segs {
		cp := s.Copy()
		switch cp.Kind {
		case KindImage, KindVideo, KindFile:
			if cp.Str("file") == "" {
				if url := cp.Str("url"); url != "" {
					cp.Attrs["file"] = url
				}
			}
		}
		out[i] = cp
	}
	return out
}
