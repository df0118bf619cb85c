package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/pkg/utils"
)

// OllamaClient uses Ollama's native API.
type OllamaClient struct {
	opts   Options
	http   *http.Client
	logger *zap.Logger
}

// NewOllamaClient returns a client for the Ollama server at opts.BaseURL.
func NewOllamaClient(opts Options, logger *zap.Logger) *OllamaClient {
	return &OllamaClient{
		opts:   withDefaults(opts),
		http:   &http.Client{},
		logger: utils.OrNop(logger),
	}
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Model returns the default model.
func (c *OllamaClient) Model() string {
	return c.opts.Model
}

// Generate posts to /api/generate with streaming disabled.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.opts.Model
	}
	payload := ollamaGenerateRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: req.System,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", eris.Wrap(err, "marshal generate request")
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	data, status, err := c.do(ctx, http.MethodPost, "/api/generate", body)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		c.logger.Error("ollama generate failed", zap.Int("status", status), zap.String("body", utils.Truncate(string(data), 500)))
		return "", &UpstreamError{StatusCode: status, Body: string(data)}
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", eris.Wrapf(ErrMalformedResponse, "decode generate response: %v", err)
	}
	if out.Error != "" {
		return "", &UpstreamError{StatusCode: status, Body: out.Error}
	}
	c.logger.Debug("ollama generate",
		zap.String("model", model),
		zap.Duration("took", time.Since(start)),
		zap.Int("response_len", len(out.Response)))
	return StripReasoning(out.Response), nil
}

// Available probes /api/tags within the probe timeout.
func (c *OllamaClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()
	_, status, err := c.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		c.logger.Debug("ollama not available", zap.Error(err))
		return false
	}
	return status == http.StatusOK
}

// Models lists the installed models.
func (c *OllamaClient) Models(ctx context.Context) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	return c.tags(ctx)
}

func (c *OllamaClient) tags(ctx context.Context) ([]ModelInfo, error) {
	data, status, err := c.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &UpstreamError{StatusCode: status, Body: string(data)}
	}
	var out struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrapf(ErrMalformedResponse, "decode tags: %v", err)
	}
	if out.Models == nil {
		out.Models = []ModelInfo{}
	}
	return out.Models, nil
}

// Status reports installation state, version and models. Errors are described in Status.Error.
func (c *OllamaClient) Status(ctx context.Context) Status {
	st := Status{Models: []ModelInfo{}}
	probeCtx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()

	models, err := c.tags(probeCtx)
	if err != nil {
		var upstream *UpstreamError
		switch {
		case errors.As(err, &upstream):
			st.Error = fmt.Sprintf("Ollama responded with status %d", upstream.StatusCode)
		case errors.Is(err, ErrServiceUnavailable):
			st.Error = "Cannot connect to Ollama. Please ensure Ollama is installed and running."
		default:
			st.Error = fmt.Sprintf("Error checking Ollama status: %v", err)
		}
		return st
	}
	st.Installed = true
	st.Models = models

	versionCtx, cancelVersion := context.WithTimeout(ctx, 3*time.Second)
	defer cancelVersion()
	if data, status, err := c.do(versionCtx, http.MethodGet, "/api/version", nil); err == nil && status == http.StatusOK {
		var v struct {
			Version string `json:"version"`
		}
		if json.Unmarshal(data, &v) == nil {
			st.Version = v.Version
		}
	}
	if st.Version == "" {
		st.Version = "unknown"
	}
	return st
}

// do performs the request. Transport failures and timeouts wrap ErrServiceUnavailable.
func (c *OllamaClient) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, reader)
	if err != nil {
		return nil, 0, eris.Wrap(err, "build request")
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, eris.Wrapf(ErrServiceUnavailable, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrapf(ErrServiceUnavailable, "read %s: %v", path, err)
	}
	return data, resp.StatusCode, nil
}
