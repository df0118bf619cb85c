package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/pkg/utils"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, Ollama's /v1, LM Studio, llama.cpp server).
type OpenAIClient struct {
	client *openai.Client
	opts   Options
	logger *zap.Logger
}

// NewOpenAIClient returns an OpenAI-compatible client. An empty API key is replaced with a
// placeholder since local servers ignore it.
func NewOpenAIClient(opts Options, logger *zap.Logger) *OpenAIClient {
	opts = withDefaults(opts)
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = "ollama"
	}
	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
		logger: utils.OrNop(logger),
	}
}

// Model returns the default model.
func (c *OpenAIClient) Model() string {
	return c.opts.Model
}

// Generate sends a chat completion with an optional system message.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.opts.Model
	}
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", c.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", eris.Wrap(ErrMalformedResponse, "no response choices")
	}
	return StripReasoning(resp.Choices[0].Message.Content), nil
}

// Available lists models within the probe timeout.
func (c *OpenAIClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()
	if _, err := c.client.ListModels(ctx); err != nil {
		c.logger.Debug("openai endpoint not available", zap.Error(err))
		return false
	}
	return true
}

// Models lists the models served by the endpoint.
func (c *OpenAIClient) Models(ctx context.Context) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, c.classify(err)
	}
	out := make([]ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		out = append(out, ModelInfo{Name: m.ID})
	}
	return out, nil
}

// Status reports reachability and served models. The OpenAI API has no version endpoint.
func (c *OpenAIClient) Status(ctx context.Context) Status {
	st := Status{Models: []ModelInfo{}}
	ctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()
	models, err := c.Models(ctx)
	if err != nil {
		st.Error = fmt.Sprintf("Error checking endpoint status: %v", err)
		return st
	}
	st.Installed = true
	st.Models = models
	return st
}

func (c *OpenAIClient) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := reqErr.HTTPStatus
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &UpstreamError{StatusCode: reqErr.HTTPStatusCode, Body: body}
	}
	return eris.Wrapf(ErrServiceUnavailable, "chat completion: %v", err)
}
