package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockResponse is a canned response for the MockProvider.
type MockResponse struct {
	Text  string
	Usage Usage
	Err   error
}

// MockProvider is a deterministic Provider for tests and offline runs.
// It returns canned responses in FIFO order and records all requests. With
// an empty queue it echoes the last user message, so a server configured
// with the mock provider still answers.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request
	// Strict makes an empty queue an ErrProviderUnavailable.
	Strict bool
}

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// Generate returns the next canned response.
func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if len(m.responses) == 0 {
		if m.Strict {
			return nil, &ErrProviderUnavailable{Err: nil}
		}
		return m.echo(req), nil
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]

	if resp.Err != nil {
		return nil, resp.Err
	}

	return &Response{
		Text:       resp.Text,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

func (m *MockProvider) echo(req Request) *Response {
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	in := 0
	for _, msg := range req.Messages {
		in += len(msg.Content) / 4
	}
	text := fmt.Sprintf("You asked: %q. Let's work through it together.", last)
	return &Response{
		Text:       text,
		Usage:      Usage{InputTokens: in, OutputTokens: len(text) / 4, TotalTokens: in + len(text)/4},
		Model:      "mock",
		StopReason: "end",
	}
}

// ModelID returns "mock".
func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Generate calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
