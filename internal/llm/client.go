// Package llm talks to the inference endpoint. Every provider returns text with
// reasoning blocks already stripped.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/config"
	"github.com/hyperjump/taxdesk/pkg/utils"
)

// ErrServiceUnavailable is returned when the endpoint cannot be reached or times out.
var ErrServiceUnavailable = eris.New("inference endpoint unavailable")

// ErrMalformedResponse is returned when the model output cannot be decoded.
var ErrMalformedResponse = eris.New("unparseable response")

// UpstreamError is a non-success answer from the endpoint. Body carries the endpoint's message.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("inference endpoint error: %d - %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Request is one completion call.
type Request struct {
	// Model overrides the client's default model when non-empty.
	Model       string
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
}

// Completer generates text completions.
type Completer interface {
	Generate(ctx context.Context, req Request) (string, error)
	// Available is a cheap reachability probe bounded by the probe timeout.
	Available(ctx context.Context) bool
	// Model returns the default model name.
	Model() string
}

// ModelInfo describes one installed model.
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size,omitempty"`
	Digest     string `json:"digest,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

// Status summarizes the endpoint for the status routes.
type Status struct {
	Installed bool        `json:"installed"`
	Version   string      `json:"version,omitempty"`
	Models    []ModelInfo `json:"models"`
	Error     string      `json:"error,omitempty"`
}

// Inspector reports endpoint status and installed models.
type Inspector interface {
	Status(ctx context.Context) Status
	Models(ctx context.Context) ([]ModelInfo, error)
}

// Client is a Completer that can also report status.
type Client interface {
	Completer
	Inspector
}

// Options holds the settings shared by all providers.
type Options struct {
	BaseURL      string
	Model        string
	APIKey       string
	Timeout      time.Duration
	ProbeTimeout time.Duration
}

// NewClient builds the provider selected in cfg.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	opts := Options{
		BaseURL:      cfg.BaseURL,
		Model:        cfg.Model,
		APIKey:       cfg.APIKey,
		Timeout:      cfg.Timeout,
		ProbeTimeout: cfg.ProbeTimeout,
	}
	logger = utils.OrNop(logger)
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		return NewOllamaClient(opts, logger), nil
	case "openai":
		return NewOpenAIClient(opts, logger), nil
	default:
		return nil, eris.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

func withDefaults(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return opts
}

// imageModelKeywords mark vision models by name.
var imageModelKeywords = []string{"llava", "vision", "clip", "bakllava", "moondream", "vl"}

// CategorizeModels splits models into text and vision models by name.
func CategorizeModels(models []ModelInfo) (text, image []ModelInfo) {
	text, image = []ModelInfo{}, []ModelInfo{}
	for _, m := range models {
		name := strings.ToLower(m.Name)
		isImage := false
		for _, kw := range imageModelKeywords {
			if strings.Contains(name, kw) {
				isImage = true
				break
			}
		}
		if isImage {
			image = append(image, m)
		} else {
			text = append(text, m)
		}
	}
	return text, image
}
