// Package segment implements the message model and segment utilities (C4):
// typed segment normalization, CQ-string <-> segment-array conversion, and
// reply summarization.
package segment

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind tags a Segment's shape. Kinds this package does not specifically
// interpret are preserved as-is (the Kind string round-trips through the CQ
// encoding whether or not it's one of the named constants below), which is
// the Go equivalent of a catch-all "Unknown{kind, attrs}" variant.
type Kind string

const (
	KindText    Kind = "text"
	KindImage   Kind = "image"
	KindVoice   Kind = "voice"
	KindReply   Kind = "reply"
	KindForward Kind = "forward"
	KindAt      Kind = "at"
	KindVideo   Kind = "video"
	KindFile    Kind = "file"
)

// Segment is the universal interchange form: a tagged record of a kind and
// a string-keyed attribute map. Attribute values are kept as `any` because
// gateway payloads mix CQ-string attributes (always strings) with
// message-array attributes (native JSON types).
type Segment struct {
	Kind  Kind
	Attrs map[string]any
}

// Message is an ordered sequence of Segments.
type Message []Segment

func New(kind Kind, attrs map[string]any) Segment {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return Segment{Kind: kind, Attrs: attrs}
}

// Text builds a plain text segment.
func Text(text string) Segment {
	return New(KindText, map[string]any{"text": text})
}

// Copy returns a Segment whose attribute map never aliases s.Attrs.
func (s Segment) Copy() Segment {
	cp := make(map[string]any, len(s.Attrs))
	for k, v := range s.Attrs {
		cp[k] = v
	}
	return Segment{Kind: s.Kind, Attrs: cp}
}

// Str returns the attribute at key formatted as a string, or "" if absent.
func (s Segment) Str(key string) string {
	v, ok := s.Attrs[key]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

// ToSegments copies msg's segments, guaranteeing the result's attribute maps
// are independent of msg's (the `to_segments` operation from 4.4).
func ToSegments(msg []Segment) []Segment {
	out := make([]Segment, len(msg))
	for i, s := range msg {
		out[i] = s.Copy()
	}
	return out
}
