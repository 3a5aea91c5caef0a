package gemini

import (
	"encoding/base64"
	"errors"
	"testing"

	"wardkeeper/pkg/llm"
)

func TestConvertTurnsMapsRolesAndContent(t *testing.T) {
	turns := []llm.ChatMessage{
		{Role: llm.RoleUser, Content: []llm.Content{llm.TextContent("hello")}},
		{Role: llm.RoleAssistant, Content: []llm.Content{llm.TextContent("hi there")}},
	}

	contents := convertTurns(turns)
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	if contents[0].Role != "user" {
		t.Fatalf("expected first turn role 'user', got %q", contents[0].Role)
	}
	if contents[1].Role != "model" {
		t.Fatalf("expected assistant role mapped to 'model', got %q", contents[1].Role)
	}
}

func TestConvertTurnsSkipsEmptyContent(t *testing.T) {
	turns := []llm.ChatMessage{
		{Role: llm.RoleUser, Content: []llm.Content{{Kind: llm.ContentImage, URL: ""}}},
	}
	contents := convertTurns(turns)
	if len(contents) != 0 {
		t.Fatalf("expected empty-URL image turn to be dropped, got %d contents", len(contents))
	}
}

func TestConvertTurnsDecodesAudio(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte("fake-mp3-bytes"))
	turns := []llm.ChatMessage{
		{Role: llm.RoleUser, Content: []llm.Content{llm.AudioContent(raw)}},
	}
	contents := convertTurns(turns)
	if len(contents) != 1 || len(contents[0].Parts) != 1 {
		t.Fatalf("expected a single decoded audio part")
	}
	if contents[0].Parts[0].InlineData == nil {
		t.Fatalf("expected inline audio data")
	}
}

func TestImageMIMEType(t *testing.T) {
	cases := map[string]string{
		"photo.png":    "image/png",
		"anim.gif":     "image/gif",
		"pic.webp":     "image/webp",
		"photo.jpeg":   "image/jpeg",
		"noextension":  "image/jpeg",
	}
	for filename, want := range cases {
		if got := imageMIMEType(filename); got != want {
			t.Errorf("imageMIMEType(%q) = %q, want %q", filename, got, want)
		}
	}
}

func TestIsTransientErrorClassification(t *testing.T) {
	c := &Client{}
	transient := []error{
		errors.New("503 Service Unavailable"),
		errors.New("model overloaded, try again"),
		errors.New("429 too many requests"),
		errors.New("RESOURCE_EXHAUSTED"),
		errors.New("connection refused"),
		errors.New("context deadline exceeded"),
	}
	for _, err := range transient {
		if !c.IsTransientError(err) {
			t.Errorf("expected %q to be classified transient", err)
		}
	}

	if c.IsTransientError(nil) {
		t.Errorf("expected nil error to be non-transient")
	}
	if c.IsTransientError(errors.New("invalid api key")) {
		t.Errorf("expected an auth error to be non-transient")
	}
}
