// Package llmtest provides a scripted completion client for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/hyperjump/taxdesk/internal/llm"
)

// Fake is a scripted llm.Client. Responses are returned in order and the last one repeats.
// Handler, when set, takes precedence over Responses.
type Fake struct {
	Responses []string
	Err       error
	Down      bool
	Handler   func(req llm.Request) (string, error)
	ModelName string

	mu    sync.Mutex
	calls []llm.Request
	next  int
}

// Generate records req and returns the next scripted answer with reasoning stripped.
func (f *Fake) Generate(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.Down {
		return "", llm.ErrServiceUnavailable
	}
	if f.Handler != nil {
		out, err := f.Handler(req)
		return llm.StripReasoning(out), err
	}
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Responses) == 0 {
		return "", nil
	}
	i := f.next
	if i >= len(f.Responses) {
		i = len(f.Responses) - 1
	} else {
		f.next++
	}
	return llm.StripReasoning(f.Responses[i]), nil
}

// Available reports !Down.
func (f *Fake) Available(context.Context) bool {
	return !f.Down
}

// Model returns ModelName or "fake".
func (f *Fake) Model() string {
	if f.ModelName == "" {
		return "fake"
	}
	return f.ModelName
}

// Status reports a single fake model.
func (f *Fake) Status(context.Context) llm.Status {
	if f.Down {
		return llm.Status{Models: []llm.ModelInfo{}, Error: "unavailable"}
	}
	return llm.Status{Installed: true, Version: "test", Models: []llm.ModelInfo{{Name: f.Model()}}}
}

// Models returns the fake model.
func (f *Fake) Models(context.Context) ([]llm.ModelInfo, error) {
	if f.Down {
		return nil, llm.ErrServiceUnavailable
	}
	return []llm.ModelInfo{{Name: f.Model()}}, nil
}

// Calls returns a copy of the recorded requests.
func (f *Fake) Calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.calls...)
}
