package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Summarizer condenses one conversation turn into memory text.
type Summarizer interface {
	Summarize(ctx context.Context, input, reply string) (string, error)
}

// SummarizerOptions configures the chat-completion backed summarizer.
type SummarizerOptions struct {
	Client *Client
	Model  string
}

type chatSummarizer struct {
	client *Client
	model  string
}

const (
	summarizerTemperature = 0.2

	summarizerSystemPrompt = "You keep a running memory of a conversation between a user and DineBot, a food assistant. " +
		"Summarize the new lines of conversation in a few sentences, keeping user preferences, " +
		"dietary needs, places and dishes mentioned. Return only the summary."
)

// NewSummarizer constructs a Summarizer backed by the chat-completion client.
func NewSummarizer(opts SummarizerOptions) (Summarizer, error) {
	if opts.Client == nil {
		return nil, eris.New("llm client is required")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, eris.New("summarizer model is required")
	}

	return &chatSummarizer{client: opts.Client, model: model}, nil
}

func (s *chatSummarizer) Summarize(ctx context.Context, input, reply string) (string, error) {
	if strings.TrimSpace(input) == "" && strings.TrimSpace(reply) == "" {
		return "", eris.New("nothing to summarize")
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summarizerSystemPrompt),
			openai.UserMessage(buildSummaryPrompt(input, reply)),
		},
		Temperature: openai.Float(summarizerTemperature),
	}

	summary, err := s.client.complete(ctx, params, logrus.Fields{"component": "llm.summarizer", "model": s.model})
	if err != nil {
		return "", eris.Wrap(err, "summarizing turn")
	}

	return summary, nil
}

func buildSummaryPrompt(input, reply string) string {
	return fmt.Sprintf("New lines of conversation:\nHuman: %s\nAI: %s\n\nNew summary:", strings.TrimSpace(input), strings.TrimSpace(reply))
}
