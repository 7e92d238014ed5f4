package exec

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MockResponse is the canned result of a mocked command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

// MockCall records one command invocation.
type MockCall struct {
	Dir  string
	Name string
	Args []string
}

type mockRule struct {
	name     string
	args     []string
	prefix   bool
	response MockResponse
}

// MockExecutor returns canned responses for matching commands and records
// every call. Exact matches are tried before prefix matches; within each
// group the first registered rule wins.
type MockExecutor struct {
	mu       sync.Mutex
	rules    []mockRule
	calls    []MockCall
	fallback CommandExecutor
	// Hook, when set, runs before each response is returned.
	Hook func(ctx context.Context, call MockCall) error
}

// NewMockExecutor returns a mock. Unmatched commands go to fallback, or fail
// when fallback is nil.
func NewMockExecutor(fallback CommandExecutor) *MockExecutor {
	return &MockExecutor{fallback: fallback}
}

// AddExactMatch registers a response for name with exactly args.
func (m *MockExecutor) AddExactMatch(name string, args []string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{name: name, args: args, response: resp})
}

// AddPrefixMatch registers a response for name whose args start with args.
func (m *MockExecutor) AddPrefixMatch(name string, args []string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{name: name, args: args, prefix: true, response: resp})
}

// GetCalls returns a copy of the recorded calls.
func (m *MockExecutor) GetCalls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

func (m *MockExecutor) match(name string, args []string) (MockResponse, bool) {
	for _, r := range m.rules {
		if !r.prefix && r.name == name && slices.Equal(r.args, args) {
			return r.response, true
		}
	}
	for _, r := range m.rules {
		if r.prefix && r.name == name && len(args) >= len(r.args) && slices.Equal(r.args, args[:len(r.args)]) {
			return r.response, true
		}
	}
	return MockResponse{}, false
}

// Run implements CommandExecutor.
func (m *MockExecutor) Run(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	call := MockCall{Dir: dir, Name: name, Args: slices.Clone(args)}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	resp, ok := m.match(name, args)
	hook := m.Hook
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, call); err != nil {
			return nil, nil, err
		}
	}
	if !ok {
		if m.fallback != nil {
			return m.fallback.Run(ctx, dir, name, args...)
		}
		return nil, nil, fmt.Errorf("mock: no response for %s %v", name, args)
	}
	return resp.Stdout, resp.Stderr, resp.Err
}

// Output implements CommandExecutor.
func (m *MockExecutor) Output(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	stdout, _, err := m.Run(ctx, dir, name, args...)
	return stdout, err
}
