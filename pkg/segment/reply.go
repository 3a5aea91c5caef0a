package segment

import (
	"strconv"
	"strings"
)

const (
	unknownSenderName = "未知"
	unresolvedSummary  = "无法获取"
	replySeparator     = "\n────────────\n"
)

// Resolver looks up a previously-seen message for reply-expansion,
// abstracting over the recall cache and/or a gateway get_msg fallback so
// this package never has to import either. Implementations compose through
// ChainResolver to encode the priority order from 4.4: local lookup, then
// cache, then gateway API.
type Resolver interface {
	// Resolve returns the quoted message's sender display name and
	// segments for quotedID, the relative offset from currentID (0 if the
	// resolver can't compute one), and whether the lookup succeeded.
	Resolve(currentID, quotedID int64) (senderName string, segs []Segment, offset int, ok bool)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(currentID, quotedID int64) (string, []Segment, int, bool)

func (f ResolverFunc) Resolve(currentID, quotedID int64) (string, []Segment, int, bool) {
	return f(currentID, quotedID)
}

// ChainResolver tries each Resolver in order, first hit wins.
type ChainResolver []Resolver

func (c ChainResolver) Resolve(currentID, quotedID int64) (string, []Segment, int, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if name, segs, offset, ok := r.Resolve(currentID, quotedID); ok {
			return name, segs, offset, true
		}
	}
	return "", nil, 0, false
}

// SummarizeReply resolves a `reply` segment's quoted content via resolver
// and builds the prefix line documented in 4.4: a header naming the
// original sender, followed by a plain-text summary of the quoted content.
// currentID is this event's own message id, used as the offset basis for
// pure-image replies.
func SummarizeReply(resolver Resolver, currentID int64, replySeg Segment) Segment {
	quotedID, _ := toInt64(replySeg.Attrs["id"])
	name, quoted, offset, ok := resolver.Resolve(currentID, quotedID)

	summary := unresolvedSummary
	if ok {
		summary = summarizeSegments(quoted, offset)
	}
	return buildReplyPrefix(name, summary)
}

// SummarizeReplyDirect builds the same prefix line as SummarizeReply from
// already-resolved sender/content, used when the inbound event itself
// carries a pre-resolved reply descriptor — more reliable than any post-hoc
// lookup, so callers should prefer it when the gateway supplies one.
func SummarizeReplyDirect(senderName string, quotedSegs []Segment, offset int) Segment {
	return buildReplyPrefix(senderName, summarizeSegments(quotedSegs, offset))
}

func buildReplyPrefix(senderName, summary string) Segment {
	name := strings.TrimSpace(senderName)
	if name == "" {
		name = unknownSenderName
	}
	return Text("回复(用户：" + name + ")：" + summary + replySeparator)
}

func summarizeSegments(segs []Segment, offset int) string {
	var hasText, hasImage, hasOther bool
	var textParts []string
	for _, s := range segs {
		switch s.Kind {
		case KindText:
			if t := strings.TrimSpace(s.Str("text")); t != "" {
				hasText = true
				textParts = append(textParts, t)
			}
		case KindImage:
			hasImage = true
		default:
			hasOther = true
		}
	}

	switch {
	case hasOther:
		return unresolvedSummary
	case hasText && !hasImage:
		return strings.Join(textParts, "")
	case hasImage && !hasText:
		if offset > 0 {
			return "[图片：往上第" + strconv.Itoa(offset) + "条]"
		}
		return "[图片：往上第?条]"
	case hasImage && hasText:
		var b strings.Builder
		for _, s := range segs {
			switch s.Kind {
			case KindText:
				if t := strings.TrimSpace(s.Str("text")); t != "" {
					b.WriteString(t)
				}
			case KindImage:
				b.WriteString("[图片]")
			}
		}
		return b.String()
	default:
		return unresolvedSummary
	}
}

// ExpandReplySegments replaces every `reply` segment in segs with its
// summarized prefix text, leaving every other segment (the message's own
// content) untouched and in order. Idempotent: since no reply segments
// survive the first pass, applying it again is a no-op.
func ExpandReplySegments(resolver Resolver, currentID int64, segs []Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if s.Kind == KindReply {
			out = append(out, SummarizeReply(resolver, currentID, s))
			continue
		}
		out = append(out, s.Copy())
	}
	return out
}
