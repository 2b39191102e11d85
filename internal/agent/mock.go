package agent

import (
	"context"
	"fmt"
	"sync"
)

// MockInvoker is a scripted Invoker for tests. Results are returned in
// order; invocations beyond the script fail.
type MockInvoker struct {
	mu      sync.Mutex
	script  []*Result
	errs    []error
	Prompts []string
	Configs []InvokeConfig
}

// NewMockInvoker creates an empty MockInvoker.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{}
}

// Script appends a result (or error) to the invocation script.
func (m *MockInvoker) Script(result *Result, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, result)
	m.errs = append(m.errs, err)
}

// Invoke pops the next scripted result.
func (m *MockInvoker) Invoke(ctx context.Context, cfg InvokeConfig, prompt string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.Prompts)
	if n >= len(m.script) {
		return nil, fmt.Errorf("unscripted invocation %d", n+1)
	}

	m.Prompts = append(m.Prompts, prompt)
	m.Configs = append(m.Configs, cfg)
	return m.script[n], m.errs[n]
}

// Calls returns the number of invocations made.
func (m *MockInvoker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
