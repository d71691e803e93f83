package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// geminiBaseURL is Google's OpenAI-compatible Gemini endpoint.
const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// ClientOptions controls how the chat-completion client is initialised.
type ClientOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// Client wraps the OpenAI SDK chat-completion service used by DineBot.
type Client struct {
	chat    chatCompletionClient
	logger  *logrus.Logger
	baseURL string
}

type chatCompletionClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// NewClient constructs a Client for any OpenAI-compatible endpoint, Gemini by default.
func NewClient(opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, eris.New("llm api key is required")
	}

	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = geminiBaseURL
	}

	requestOptions := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(baseURL),
	}

	if opts.HTTPClient != nil {
		requestOptions = append(requestOptions, option.WithHTTPClient(opts.HTTPClient))
	}

	apiClient := openai.NewClient(requestOptions...)

	return &Client{
		chat:    &apiClient.Chat.Completions,
		logger:  opts.Logger,
		baseURL: baseURL,
	}, nil
}

// BaseURL returns the configured base URL for outbound requests.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// complete sends the request and returns the trimmed text of the first choice.
func (c *Client) complete(ctx context.Context, params openai.ChatCompletionNewParams, fields logrus.Fields) (string, error) {
	completion, err := c.chat.New(ctx, params)
	if err != nil {
		c.logWarn(fields, err, "requesting chat completion")
		return "", eris.Wrap(err, "requesting chat completion")
	}

	if len(completion.Choices) == 0 {
		err := eris.New("llm completion returned no choices")
		c.logWarn(fields, err, "processing chat completion")
		return "", err
	}

	choice := completion.Choices[0]
	if reason := strings.TrimSpace(choice.FinishReason); strings.EqualFold(reason, "content_filter") {
		err := eris.New("llm blocked the request via content filter")
		c.logWarn(fields, err, "completion blocked")
		return "", err
	}

	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		err := eris.Errorf("llm refused to answer: %s", refusal)
		c.logWarn(fields, err, "completion refused")
		return "", err
	}

	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		err := eris.New("llm response content is empty")
		c.logWarn(fields, err, "processing chat completion")
		return "", err
	}

	if c.logger != nil {
		c.logger.WithFields(fields).WithFields(logrus.Fields{
			"model":             completion.Model,
			"prompt_tokens":     completion.Usage.PromptTokens,
			"completion_tokens": completion.Usage.CompletionTokens,
		}).Debug("chat completion received")
	}

	return content, nil
}

func (c *Client) logWarn(fields logrus.Fields, err error, message string) {
	if c.logger == nil || err == nil {
		return
	}

	entry := c.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Warn(message)
}
