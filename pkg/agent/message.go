package agent

import (
	"strings"

	"wardkeeper/pkg/llm"
	"wardkeeper/pkg/segment"
)

// ExtractTurn structures an inbound private message's segments into the
// Content list for one user turn: text segments become text content,
// image segments become image content keyed by URL/filename, voice
// segments become audio content via audioBase64 (resolved by the caller
// through the platform adapter, since extraction itself is adapter-specific).
func ExtractTurn(segs []segment.Segment, audioBase64 func(file string) string) []llm.Content {
	var out []llm.Content
	var textParts []string

	flushText := func() {
		if len(textParts) == 0 {
			return
		}
		if text := strings.TrimSpace(strings.Join(textParts, "")); text != "" {
			out = append(out, llm.TextContent(text))
		}
		textParts = nil
	}

	for _, s := range segs {
		switch s.Kind {
		case segment.KindText:
			textParts = append(textParts, s.Str("text"))
		case segment.KindImage:
			flushText()
			url := s.Str("url")
			if url == "" {
				url = s.Str("file")
			}
			out = append(out, llm.ImageContent(url, s.Str("file")))
		case segment.KindVoice:
			flushText()
			file := s.Str("file")
			if file == "" {
				continue
			}
			if audioBase64 == nil {
				continue
			}
			if b64 := audioBase64(file); b64 != "" {
				out = append(out, llm.AudioContent(b64))
			}
		}
	}
	flushText()
	return out
}
