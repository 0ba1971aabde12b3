// Package llmprovider wraps a langchaingo llms.Model behind the spec's
// narrow "consumed" LLM interface: a single bounded Generate call plus the
// JSON/SQL extraction helpers every agent needs. Keeping this as a fixed
// interface (rather than exposing langchaingo's agents.Executor/tools.Tool
// registry to the rest of the core) is deliberate: §9 of the spec calls
// for the three agents to be tagged variants with fixed interfaces, not a
// dynamic tool-calling registry.
package llmprovider

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// DefaultTimeout is the LLM call timeout the spec mandates (§5).
const DefaultTimeout = 30 * time.Second

// Usage is best-effort token accounting, when the underlying model
// reports it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the result of one Generate call.
type Response struct {
	Content string
	Success bool
	Error   string
	Usage   *Usage
}

// Provider is the core's narrow view of an LLM backend.
type Provider interface {
	// Generate issues one bounded completion call. timeout <= 0 uses
	// DefaultTimeout.
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int, timeout time.Duration) (*Response, error)
}

// langchainProvider adapts a langchaingo llms.Model to Provider.
type langchainProvider struct {
	model llms.Model
}

// New wraps an already-constructed langchaingo llms.Model (e.g. from
// llms/openai.New, pointed at an OpenAI-compatible endpoint, matching the
// teacher's internal/llm/config.go convention of a configurable base URL).
func New(model llms.Model) Provider {
	return &langchainProvider{model: model}
}

func (p *langchainProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := []llms.MessageContent{}
	if systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, userPrompt))

	opts := []llms.CallOption{}
	if temperature > 0 {
		opts = append(opts, llms.WithTemperature(temperature))
	}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}

	completion, err := p.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return &Response{Success: false, Error: err.Error()}, err
	}
	if len(completion.Choices) == 0 {
		return &Response{Success: false, Error: "no choices returned"}, nil
	}

	choice := completion.Choices[0]
	resp := &Response{Content: choice.Content, Success: true}
	if choice.GenerationInfo != nil {
		usage := &Usage{}
		if v, ok := choice.GenerationInfo["PromptTokens"].(int); ok {
			usage.PromptTokens = v
		}
		if v, ok := choice.GenerationInfo["CompletionTokens"].(int); ok {
			usage.CompletionTokens = v
		}
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		resp.Usage = usage
	}
	return resp, nil
}
