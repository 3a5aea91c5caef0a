package openailm

import (
	"errors"
	"testing"

	"wardkeeper/pkg/llm"
)

func TestTextOfJoinsOnlyTextContent(t *testing.T) {
	turn := llm.ChatMessage{
		Role: llm.RoleUser,
		Content: []llm.Content{
			llm.TextContent("part one "),
			llm.ImageContent("http://x/y.png", "y.png"),
			llm.TextContent("part two"),
		},
	}
	if got := textOf(turn); got != "part one part two" {
		t.Fatalf("unexpected textOf result: %q", got)
	}
}

func TestHasImage(t *testing.T) {
	withImage := llm.ChatMessage{Content: []llm.Content{llm.ImageContent("u", "f")}}
	withoutImage := llm.ChatMessage{Content: []llm.Content{llm.TextContent("hi")}}
	if !hasImage(withImage) {
		t.Errorf("expected hasImage true")
	}
	if hasImage(withoutImage) {
		t.Errorf("expected hasImage false")
	}
}

func TestConvertTurnsPrependsSystemMessage(t *testing.T) {
	turns := []llm.ChatMessage{
		{Role: llm.RoleUser, Content: []llm.Content{llm.TextContent("hello")}},
	}
	items := convertTurns(turns)
	if len(items) != 2 {
		t.Fatalf("expected system + 1 turn, got %d", len(items))
	}
	if items[0].OfSystem == nil {
		t.Fatalf("expected first message to be the system role")
	}
	if items[1].OfUser == nil {
		t.Fatalf("expected second message to be a plain user message")
	}
}

func TestConvertTurnsUsesContentPartsWhenImagePresent(t *testing.T) {
	turns := []llm.ChatMessage{
		{Role: llm.RoleUser, Content: []llm.Content{
			llm.TextContent("look at this"),
			llm.ImageContent("http://x/y.png", "y.png"),
		}},
	}
	items := convertTurns(turns)
	user := items[1].OfUser
	if user == nil {
		t.Fatalf("expected a user message")
	}
	if len(user.Content.OfArrayOfContentParts) != 2 {
		t.Fatalf("expected 2 content parts (text + image), got %d", len(user.Content.OfArrayOfContentParts))
	}
}

func TestConvertTurnsRoutesAssistantTurns(t *testing.T) {
	turns := []llm.ChatMessage{
		{Role: llm.RoleAssistant, Content: []llm.Content{llm.TextContent("reply")}},
	}
	items := convertTurns(turns)
	if items[1].OfAssistant == nil {
		t.Fatalf("expected assistant turn routed to OfAssistant")
	}
}

func TestIsTransientErrorClassification(t *testing.T) {
	c := &Client{}
	if !c.IsTransientError(errors.New("context deadline exceeded")) {
		t.Errorf("expected deadline exceeded to be transient")
	}
	if !c.IsTransientError(errors.New("dial: connection refused")) {
		t.Errorf("expected connection refused to be transient")
	}
	if c.IsTransientError(nil) {
		t.Errorf("expected nil to be non-transient")
	}
	if c.IsTransientError(errors.New("401 unauthorized")) {
		t.Errorf("expected auth error to be non-transient")
	}
}
