package llm

import (
	"context"
	"sync"
)

// MockResponse is a canned response for the MockProvider.
type MockResponse struct {
	Text string
	Err  error
}

// MockProvider is a deterministic Provider for testing. It returns canned
// responses in FIFO order and records all requests. Schema handling matches
// the real provider: extraction plus validation over the canned text.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request

	// GenerateFunc, when set, chooses the response per request instead of
	// FIFO order. Needed when concurrent callers make arrival order
	// nondeterministic.
	GenerateFunc func(req Request) MockResponse
}

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// Generate returns the next canned response or ErrProviderUnavailable when
// the queue is empty.
func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	var resp MockResponse
	if m.GenerateFunc != nil {
		resp = m.GenerateFunc(req)
	} else {
		if len(m.responses) == 0 {
			m.mu.Unlock()
			return nil, &ErrProviderUnavailable{}
		}
		resp = m.responses[0]
		m.responses = m.responses[1:]
	}
	m.mu.Unlock()

	if resp.Err != nil {
		return nil, resp.Err
	}

	out := &Response{Text: resp.Text, Model: "mock"}
	if req.Schema != nil {
		extracted, err := ExtractJSONObject(resp.Text)
		if err != nil {
			return nil, &ErrInvalidResponse{Content: resp.Text, Err: err}
		}
		raw := []byte(extracted)
		if err := validateJSON(req.Schema, raw); err != nil {
			return nil, err
		}
		out.JSON = raw
	}
	return out, nil
}

// ModelID returns "mock".
func (m *MockProvider) ModelID() string { return "mock" }

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
