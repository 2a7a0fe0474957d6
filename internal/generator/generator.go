// Package generator coordinates LLM calls for answering a query.
//
// Generation runs a bounded two-phase protocol: the first model call offers
// the registered tools and returns any tool requests unexecuted; when the
// model requests tools, they are executed and a second call, made without
// tools, produces the final answer from their results. The model therefore
// gets at most one tool round per query.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"coursechat/internal/log"
	"coursechat/internal/tools"
)

// DefaultCallTimeout bounds each individual model call.
const DefaultCallTimeout = 60 * time.Second

// fallbackAnswer is returned when the model produces no usable text.
const fallbackAnswer = "I'm sorry, I couldn't generate a response. Please try again."

// ToolExecutor is the tool surface the generator depends on. The registry
// in the tools package implements it.
type ToolExecutor interface {
	Refs() []ai.ToolRef
	Execute(ctx context.Context, name string, input map[string]any) (tools.Result, error)
}

// Turn is one prior exchange handed to the model as conversation context.
type Turn struct {
	Query  string
	Answer string
}

// Answer is the outcome of one generation: the final text and the sources
// contributed by any tools that ran.
type Answer struct {
	Text    string
	Sources []tools.Source
}

// Config holds Generator dependencies.
type Config struct {
	Genkit    *genkit.Genkit
	ModelName string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	Tools     ToolExecutor
	Logger    log.Logger
	// CallTimeout bounds each model call; zero means DefaultCallTimeout.
	CallTimeout time.Duration
}

// Generator answers queries through the two-phase tool protocol.
//
// Generator is stateless across queries and safe for concurrent use.
type Generator struct {
	g         *genkit.Genkit
	modelName string
	tools     ToolExecutor
	logger    log.Logger
	timeout   time.Duration
}

// New creates a Generator.
func New(cfg Config) (*Generator, error) {
	if cfg.Genkit == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Generator{
		g:         cfg.Genkit,
		modelName: cfg.ModelName,
		tools:     cfg.Tools,
		logger:    logger,
		timeout:   timeout,
	}, nil
}

// Generate answers a query given prior conversation turns. Tool failures
// degrade the answer rather than failing the query; only model call errors
// propagate to the caller.
func (gen *Generator) Generate(ctx context.Context, query string, history []Turn) (*Answer, error) {
	messages := buildMessages(query, history)

	// Phase one: offer tools, keep their execution to ourselves.
	first, err := gen.call(ctx,
		ai.WithMessages(messages...),
		ai.WithTools(gen.tools.Refs()...),
		ai.WithReturnToolRequests(true),
	)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	requests := first.ToolRequests()
	if len(requests) == 0 {
		return &Answer{Text: textOrFallback(first, gen.logger)}, nil
	}

	gen.logger.Debug("model requested tools", "count", len(requests))

	parts, sources, ok := gen.executeRequests(ctx, requests)
	if !ok {
		// A request named a tool that was never registered. That is a
		// defect in the tool declarations; degrade to whatever the model
		// said without tools rather than failing the user's query.
		return &Answer{Text: textOrFallback(first, gen.logger)}, nil
	}

	// Phase two: hand the tool results back and generate the final answer.
	// No tools are offered, and any requests the model emits anyway come
	// back unexecuted, which bounds the protocol at one round.
	withResults := append(first.History(), ai.NewMessage(ai.RoleTool, nil, parts...))
	second, err := gen.call(ctx,
		ai.WithMessages(withResults...),
		ai.WithReturnToolRequests(true),
	)
	if err != nil {
		return nil, fmt.Errorf("model call failed after tool round: %w", err)
	}

	if extra := second.ToolRequests(); len(extra) > 0 {
		gen.logger.Warn("model requested tools after its tool round, ignoring",
			"count", len(extra))
	}

	return &Answer{
		Text:    textOrFallback(second, gen.logger),
		Sources: sources,
	}, nil
}

// executeRequests runs every tool request from the first call. Execution
// errors are folded into the tool response so the model can explain the
// failure; an unknown tool name aborts the round (ok == false).
func (gen *Generator) executeRequests(ctx context.Context, requests []*ai.ToolRequest) ([]*ai.Part, []tools.Source, bool) {
	parts := make([]*ai.Part, 0, len(requests))
	var sources []tools.Source

	for _, req := range requests {
		input, _ := req.Input.(map[string]any)

		result, err := gen.tools.Execute(ctx, req.Name, input)
		switch {
		case errors.Is(err, tools.ErrUnknownTool):
			gen.logger.Error("model requested unregistered tool",
				"tool", req.Name, "error", err)
			return nil, nil, false
		case err != nil:
			gen.logger.Warn("tool execution failed", "tool", req.Name, "error", err)
			result = tools.Result{
				Content: fmt.Sprintf("Tool execution failed: %v", err),
			}
		}

		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   req.Name,
			Ref:    req.Ref,
			Output: result.Content,
		}))
		sources = append(sources, result.Sources...)
	}

	return parts, sources, true
}

// call makes one model call with the shared options and a per-call timeout.
func (gen *Generator) call(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, gen.timeout)
	defer cancel()

	all := append([]ai.GenerateOption{
		ai.WithSystem(systemPrompt),
		ai.WithModelName(gen.modelName),
	}, opts...)

	return genkit.Generate(callCtx, gen.g, all...)
}

// buildMessages converts prior turns and the current query into the model
// message list, oldest first.
func buildMessages(query string, history []Turn) []*ai.Message {
	messages := make([]*ai.Message, 0, len(history)*2+1)
	for _, turn := range history {
		messages = append(messages,
			ai.NewUserMessage(ai.NewTextPart(turn.Query)),
			ai.NewModelMessage(ai.NewTextPart(turn.Answer)),
		)
	}
	return append(messages, ai.NewUserMessage(ai.NewTextPart(query)))
}

func textOrFallback(resp *ai.ModelResponse, logger log.Logger) string {
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		logger.Warn("model returned empty response text")
		return fallbackAnswer
	}
	return text
}
