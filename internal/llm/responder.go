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

// Responder produces the assistant's reply for one user message.
type Responder interface {
	Respond(ctx context.Context, memory, input string) (string, error)
}

// ResponderOptions configures the chat-completion backed responder.
type ResponderOptions struct {
	Client       *Client
	Model        string
	Temperature  float64
	SystemPrompt string
}

type chatResponder struct {
	client       *Client
	model        string
	temperature  float64
	systemPrompt string
}

const defaultResponderTemperature = 0.7

// DefaultSystemPrompt is the DineBot persona and answering guidelines.
const DefaultSystemPrompt = `You are DineBot, a restaurant and food assistant. Give accurate, concise, mobile-friendly answers about restaurant recommendations, dish suggestions, recipes and nutrition.

Restaurant recommendations:
- Recommend a restaurant in Lahore, Pakistan straight away, even when the request is vague such as "recommend a restaurant".
- Ask at most one clarifying question.

Dish suggestions and recipes:
- When asked what to eat, suggest one dish and say why it is popular.
- When asked how to cook something, give a short recipe with the key ingredients and numbered steps.

Nutrition:
- Give a brief breakdown of calories, protein, fat and carbohydrates, with dietary tags such as vegan or gluten-free where they apply.

General:
- Stay concise; recipes and detailed recommendations may run longer than a few lines when needed.
- Do not repeat earlier answers and do not pile on questions.
- Greet the user only at the start of a conversation.
- When the user closes the chat (for example with "ok"), say goodbye politely and offer further help.
- Steer unrelated questions back to food.`

// NewResponder constructs a Responder backed by the chat-completion client.
func NewResponder(opts ResponderOptions) (Responder, error) {
	if opts.Client == nil {
		return nil, eris.New("llm client is required")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, eris.New("responder model is required")
	}

	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultResponderTemperature
	}

	systemPrompt := strings.TrimSpace(opts.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	return &chatResponder{
		client:       opts.Client,
		model:        model,
		temperature:  temperature,
		systemPrompt: systemPrompt,
	}, nil
}

func (r *chatResponder) Respond(ctx context.Context, memory, input string) (string, error) {
	trimmedInput := strings.TrimSpace(input)
	if trimmedInput == "" {
		return "", eris.New("user input is required")
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(r.systemPrompt),
			openai.UserMessage(buildTurnPrompt(memory, trimmedInput)),
		},
		Temperature: openai.Float(r.temperature),
	}

	reply, err := r.client.complete(ctx, params, logrus.Fields{"component": "llm.responder", "model": r.model})
	if err != nil {
		return "", eris.Wrap(err, "generating reply")
	}

	return reply, nil
}

func buildTurnPrompt(memory, input string) string {
	return fmt.Sprintf("Combined Context:\n%s\n\nUser Input:\n%s\n\nResponse:", strings.TrimSpace(memory), input)
}
