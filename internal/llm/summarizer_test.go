package llm

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
)

func TestSummarizerReturnsSummary(t *testing.T) {
	t.Parallel()

	chat := &fakeChatService{response: completionWith("User wants a quick pasta recipe.\n", "stop", "")}

	summarizer, err := NewSummarizer(SummarizerOptions{Client: newFakeClient(chat), Model: "summary-model"})
	if err != nil {
		t.Fatalf("NewSummarizer returned error: %v", err)
	}

	summary, err := summarizer.Summarize(context.Background(), "How do I make pasta?", "Boil water...")
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}

	if summary != "User wants a quick pasta recipe." {
		t.Fatalf("expected trimmed summary, got %q", summary)
	}

	if chat.lastParams.Model != "summary-model" {
		t.Fatalf("expected model summary-model, got %s", chat.lastParams.Model)
	}
}

func TestSummarizerRejectsEmptyTurn(t *testing.T) {
	t.Parallel()

	chat := &fakeChatService{}
	summarizer, err := NewSummarizer(SummarizerOptions{Client: newFakeClient(chat), Model: "summary-model"})
	if err != nil {
		t.Fatalf("NewSummarizer returned error: %v", err)
	}

	if _, err := summarizer.Summarize(context.Background(), " ", ""); err == nil {
		t.Fatalf("expected error for empty turn")
	}

	if chat.calls != 0 {
		t.Fatalf("expected no completion request, got %d", chat.calls)
	}
}

func TestSummarizerPropagatesAPIError(t *testing.T) {
	t.Parallel()

	chat := &fakeChatService{err: eris.New("quota exceeded")}
	summarizer, err := NewSummarizer(SummarizerOptions{Client: newFakeClient(chat), Model: "summary-model"})
	if err != nil {
		t.Fatalf("NewSummarizer returned error: %v", err)
	}

	if _, err := summarizer.Summarize(context.Background(), "hi", "hello"); err == nil {
		t.Fatalf("expected error from chat service to propagate")
	}
}

func TestBuildSummaryPromptFormatsTurn(t *testing.T) {
	t.Parallel()

	prompt := buildSummaryPrompt(" ok ", " Goodbye! ")

	expected := "New lines of conversation:\nHuman: ok\nAI: Goodbye!\n\nNew summary:"
	if prompt != expected {
		t.Fatalf("expected prompt %q, got %q", expected, prompt)
	}
}
