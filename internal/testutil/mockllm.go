// Package testutil provides shared test doubles: a scriptable mock model,
// a deterministic mock embedder, and a pgvector-enabled PostgreSQL
// container.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockModelName is the provider-qualified name the mock model registers
// under.
const MockModelName = "mock/test-model"

// MockLLM provides deterministic model responses for testing. It matches
// the last user message against registered patterns and returns the
// corresponding response; a rule with tool requests returns them on the
// first call and its text once tool results arrive.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu       sync.Mutex
	rules    []mockRule
	greedy   []*ai.ToolRequest
	fallback string
	genErr   error
	calls    []MockCall
}

type mockRule struct {
	pattern  string            // substring match on the last user message
	response string            // final text response
	tools    []*ai.ToolRequest // tool calls to request before the text (nil = text only)
}

// MockCall records one call to the mock model.
type MockCall struct {
	UserText       string // last user message text
	ToolsOffered   int    // number of tool definitions in the request
	HadToolMessage bool   // request contained tool results
	Response       string // text returned
}

// NewMockLLM creates a mock model with the given fallback response,
// returned when no pattern matches.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// AddResponse registers a pattern-response pair. Patterns match
// case-insensitively as substrings, in registration order.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// AddToolResponse registers a pattern whose first call requests the given
// tools. Once the conversation contains tool results, the rule returns
// finalResponse instead.
func (m *MockLLM) AddToolResponse(pattern string, requests []*ai.ToolRequest, finalResponse string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{
		pattern:  strings.ToLower(pattern),
		response: finalResponse,
		tools:    requests,
	})
}

// AlwaysRequestTools makes every call request the given tools, even when
// the conversation already contains tool results. It models a runaway
// caller that never settles on a text answer.
func (m *MockLLM) AlwaysRequestTools(requests []*ai.ToolRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.greedy = requests
}

// FailWith makes every subsequent call return err.
func (m *MockLLM) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.genErr = err
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Reset clears recorded calls and any configured error, keeping the rules.
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.genErr = nil
}

// RegisterModel registers the mock as a Genkit model under MockModelName.
func (m *MockLLM) RegisterModel(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, MockModelName, &ai.ModelOptions{
		Label: "Mock Test Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
		},
	}, m.generate)
}

func (m *MockLLM) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var userText string
	hadToolMessage := false
	for i := len(req.Messages) - 1; i >= 0; i-- {
		msg := req.Messages[i]
		if msg.Role == ai.RoleTool {
			hadToolMessage = true
		}
		if msg.Role == ai.RoleUser && userText == "" {
			userText = msg.Text()
		}
	}

	m.mu.Lock()
	if m.genErr != nil {
		err := m.genErr
		m.mu.Unlock()
		return nil, err
	}

	var matched *mockRule
	lower := strings.ToLower(userText)
	for i := range m.rules {
		if strings.Contains(lower, m.rules[i].pattern) {
			matched = &m.rules[i]
			break
		}
	}

	var toolRequests []*ai.ToolRequest
	switch {
	case m.greedy != nil:
		toolRequests = m.greedy
	case matched != nil && len(matched.tools) > 0 && !hadToolMessage:
		toolRequests = matched.tools
	}

	wantTools := len(toolRequests) > 0
	responseText := m.fallback
	if matched != nil {
		responseText = matched.response
	}
	if wantTools {
		responseText = ""
	}

	m.calls = append(m.calls, MockCall{
		UserText:       userText,
		ToolsOffered:   len(req.Tools),
		HadToolMessage: hadToolMessage,
		Response:       responseText,
	})
	m.mu.Unlock()

	var parts []*ai.Part
	if wantTools {
		for _, tr := range toolRequests {
			parts = append(parts, &ai.Part{
				Kind:        ai.PartToolRequest,
				ToolRequest: tr,
			})
		}
	} else {
		if cb != nil {
			_ = cb(ctx, &ai.ModelResponseChunk{
				Content: []*ai.Part{ai.NewTextPart(responseText)},
			})
		}
		parts = append(parts, ai.NewTextPart(responseText))
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: parts,
		},
	}, nil
}
