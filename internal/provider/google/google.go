// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package google adapts the Gemini API to provider.Provider.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/switchyard-dev/switchyard/internal/provider"
	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

const name = "google"

// Config holds Google provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, for a mock server
}

// Provider implements provider.Provider using the Google Gemini API.
type Provider struct {
	client *genai.Client
	health *provider.HealthTracker
}

var _ provider.Provider = (*Provider)(nil)

// New creates a new Google provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, syerr.New(syerr.CodeProviderRequestInvalid, "google: missing api_key in config",
			syerr.FieldProvider(name))
	}

	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, syerr.Wrapf(err, syerr.CodeProviderUpstreamFailure, "google: creating client")
	}

	return &Provider{
		client: client,
		health: provider.MustHealthTracker(provider.DefaultHealthCooldown),
	}, nil
}

func (p *Provider) Name() string { return name }

func (p *Provider) Available(_ context.Context) bool { return p.health.IsHealthy() }

func knownModels() []provider.ModelInfo {
	return []provider.ModelInfo{
		{
			ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: name,
			Capabilities: provider.ModelCapabilities{
				SupportsTools: true, SupportsVision: true, SupportsStreaming: true, SupportsThinking: true,
				MaxContextTokens: 1000000, MaxOutputTokens: 65536,
			},
		},
		{
			ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: name,
			Capabilities: provider.ModelCapabilities{
				SupportsTools: true, SupportsVision: true, SupportsStreaming: true, SupportsThinking: true,
				MaxContextTokens: 1000000, MaxOutputTokens: 65536,
			},
		},
	}
}

func (p *Provider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return knownModels(), nil
}

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	config := buildConfig(req)

	eventCh := make(chan provider.ChatEvent, 100)
	go func() {
		defer close(eventCh)
		p.streamChat(ctx, req.Model, contents, config, eventCh)
	}()
	return eventCh, nil
}

func (p *Provider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{
		Available: p.Available(ctx),
		Provider:  name,
		Message:   "ok",
		Health:    p.health.Snapshot(),
	}, nil
}

func (p *Provider) Close() error { return nil }

func buildConfig(req provider.ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Options.Temperature != nil {
		cfg.Temperature = genai.Ptr(*req.Options.Temperature)
	}
	if req.Options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	}
	if len(req.Options.StopSequences) > 0 {
		cfg.StopSequences = req.Options.StopSequences
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if len(req.Tools) > 0 {
		cfg.Tools = convertTools(req.Tools)
	}
	return cfg
}

// convertMessages maps the transcript onto Gemini contents. Assistant tool
// calls become FunctionCall parts on the model turn and consecutive tool
// results share a single user turn of FunctionResponse parts.
func convertMessages(msgs []provider.Message) ([]*genai.Content, error) {
	var result []*genai.Content
	var responses []*genai.Part

	flush := func() {
		if len(responses) > 0 {
			result = append(result, &genai.Content{Role: "user", Parts: responses})
			responses = nil
		}
	}

	for _, msg := range msgs {
		switch msg.Role {
		case store.MessageRoleTool:
			responses = append(responses, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolCallID,
					Name:     msg.ToolName,
					Response: map[string]any{"result": msg.Content},
				},
			})
			continue
		case store.MessageRoleSystem:
			// carried by SystemInstruction
			continue
		}
		flush()

		switch msg.Role {
		case store.MessageRoleUser:
			result = append(result, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: msg.Content}}})
		case store.MessageRoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args := map[string]any{}
				if tc.Arguments != "" {
					// Unparseable arguments replay as an empty object.
					_ = json.Unmarshal([]byte(tc.Arguments), &args)
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args},
				})
			}
			if len(parts) == 0 {
				continue
			}
			result = append(result, &genai.Content{Role: "model", Parts: parts})
		default:
			return nil, syerr.Errorf(syerr.CodeProviderRequestInvalid,
				"google: unsupported message role %q", msg.Role)
		}
	}
	flush()
	return result, nil
}

func convertTools(tools []provider.ToolDefinition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.InputSchema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func (p *Provider) streamChat(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	ch chan<- provider.ChatEvent,
) {
	var usage *provider.Usage
	calls := 0

	for result, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			p.health.RecordFailure()
			ch <- provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()}
			return
		}

		for _, candidate := range result.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: part.Text}
				}
				if part.FunctionCall == nil {
					continue
				}
				args, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					p.health.RecordFailure()
					slog.Error("failed to marshal tool call arguments",
						"function", part.FunctionCall.Name, "error", err)
					ch <- provider.ChatEvent{
						Type: provider.EventTypeError,
						Error: syerr.Wrapf(err, syerr.CodeProviderResponseInvalid,
							"google: marshaling tool call arguments for %q", part.FunctionCall.Name).Error(),
					}
					return
				}
				calls++
				id := part.FunctionCall.ID
				if id == "" {
					// Gemini may omit call ids; transcripts need one to pair results.
					id = fmt.Sprintf("gemini-call-%d", calls)
				}
				ch <- provider.ChatEvent{
					Type:     provider.EventTypeToolCall,
					ToolCall: &provider.ToolCall{ID: id, Name: part.FunctionCall.Name, Arguments: string(args)},
				}
			}
		}

		// Usage metadata is cumulative across chunks; keep the latest.
		if um := result.UsageMetadata; um != nil {
			usage = &provider.Usage{
				InputTokens:     int(um.PromptTokenCount),
				OutputTokens:    int(um.CandidatesTokenCount),
				CacheReadTokens: int(um.CachedContentTokenCount),
			}
		}
	}

	if usage != nil {
		ch <- provider.ChatEvent{Type: provider.EventTypeUsage, Usage: usage}
	}
	p.health.RecordSuccess()
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
}
