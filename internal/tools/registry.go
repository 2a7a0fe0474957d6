package tools

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"coursechat/internal/log"
)

// Tool is one model-callable operation. Define declares the tool and its
// input schema to Genkit so the model sees it; Execute runs a request the
// model made, with the raw JSON-decoded arguments.
type Tool interface {
	Name() string
	Description() string
	Define(g *genkit.Genkit) ai.Tool
	Execute(ctx context.Context, input map[string]any) (Result, error)
}

// Registry holds the registered tools and their Genkit declarations.
// Register all tools before calling Attach; the registry is read-only
// afterwards and safe for concurrent use.
type Registry struct {
	tools   map[string]Tool
	order   []string
	defined []ai.Tool
	logger  log.Logger
}

// NewRegistry creates an empty Registry. logger may be nil.
func NewRegistry(logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool. Registering two tools under the same name returns
// ErrDuplicateTool.
func (r *Registry) Register(tool Tool) error {
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	r.logger.Debug("registered tool", "name", name)
	return nil
}

// Attach declares every registered tool to Genkit. Call once after all
// Register calls.
func (r *Registry) Attach(g *genkit.Genkit) {
	r.defined = make([]ai.Tool, 0, len(r.order))
	for _, name := range r.order {
		r.defined = append(r.defined, r.tools[name].Define(g))
	}
}

// Refs returns tool references for ai.WithTools, in registration order.
// Attach must have been called first.
func (r *Registry) Refs() []ai.ToolRef {
	refs := make([]ai.ToolRef, len(r.defined))
	for i, tool := range r.defined {
		refs[i] = tool
	}
	return refs
}

// Execute runs the named tool with the given arguments. An unregistered
// name returns ErrUnknownTool.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]any) (Result, error) {
	tool, ok := r.tools[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	result, err := tool.Execute(ctx, input)
	if err != nil {
		return Result{}, fmt.Errorf("executing tool %q: %w", name, err)
	}
	return result, nil
}
