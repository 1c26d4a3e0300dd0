package gemini_provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/conflictcast/models"
	"google.golang.org/genai"
)

// client wraps the native Gemini API.
type client struct {
	name      string
	genai     *genai.Client
	maxTokens int
}

// NewGeminiClient creates a Gemini client. baseURL is optional.
func NewGeminiClient(ctx context.Context, name, apiKey, baseURL string, maxTokens int, timeout time.Duration) (*client, error) {
	cfg := &genai.ClientConfig{
		Backend:    genai.BackendGeminiAPI,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	gc, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &client{name: name, genai: gc, maxTokens: maxTokens}, nil
}

func (c *client) Name() string { return c.name }

// Complete sends one GenerateContent round trip.
func (c *client) Complete(ctx context.Context, in models.CompletionRequest) (models.CompletionResponse, error) {
	contents, err := toContents(in.Messages)
	if err != nil {
		return models.CompletionResponse{}, err
	}

	config := &genai.GenerateContentConfig{}
	if in.System != "" {
		config.SystemInstruction = genai.NewContentFromText(in.System, genai.RoleUser)
	}
	if in.Temperature != nil {
		t := float32(*in.Temperature)
		config.Temperature = &t
	}
	maxTokens := in.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}
	if len(in.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(in.Tools))
		for _, t := range in.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  SchemaFromJSON(t.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := c.genai.Models.GenerateContent(ctx, in.Model, contents, config)
	if err != nil {
		return models.CompletionResponse{}, fmt.Errorf("gemini generate content: %w", err)
	}
	return fromResponse(resp), nil
}

func fromResponse(resp *genai.GenerateContentResponse) models.CompletionResponse {
	var out models.CompletionResponse
	if resp == nil || len(resp.Candidates) == 0 {
		return out
	}
	candidate := resp.Candidates[0]
	out.FinishReason = string(candidate.FinishReason)
	if candidate.Content == nil {
		return out
	}
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			out.Content += part.Text
		}
		if fc := part.FunctionCall; fc != nil {
			args, _ := json.Marshal(fc.Args)
			id := fc.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{ID: id, Name: fc.Name, Arguments: string(args)})
		}
	}
	return out
}

// toContents maps chat turns onto Gemini contents. Consecutive tool results
// are folded into a single user turn of function responses.
func toContents(msgs []models.Message) ([]*genai.Content, error) {
	var out []*genai.Content
	var pending []*genai.Part
	flush := func() {
		if len(pending) > 0 {
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: pending})
			pending = nil
		}
	}
	for _, m := range msgs {
		switch m.Role {
		case models.RoleTool:
			part := genai.NewPartFromFunctionResponse(m.Name, map[string]any{"output": m.Content})
			part.FunctionResponse.ID = m.ToolCallID
			pending = append(pending, part)
		case models.RoleAssistant:
			flush()
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				args := map[string]any{}
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
						return nil, fmt.Errorf("decode arguments of %s: %w", tc.Name, err)
					}
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args}})
			}
			if len(parts) == 0 {
				parts = append(parts, genai.NewPartFromText(" "))
			}
			out = append(out, &genai.Content{Role: genai.RoleModel, Parts: parts})
		default:
			flush()
			text := m.Content
			if text == "" {
				text = " "
			}
			out = append(out, genai.NewContentFromText(text, genai.RoleUser))
		}
	}
	flush()
	return out, nil
}

// SchemaFromJSON converts the JSON-schema subset used by tool parameters.
func SchemaFromJSON(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		switch t {
		case "object":
			s.Type = genai.TypeObject
		case "string":
			s.Type = genai.TypeString
		case "integer":
			s.Type = genai.TypeInteger
		case "number":
			s.Type = genai.TypeNumber
		case "boolean":
			s.Type = genai.TypeBoolean
		case "array":
			s.Type = genai.TypeArray
		}
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for k, v := range props {
			if pm, ok := v.(map[string]any); ok {
				s.Properties[k] = SchemaFromJSON(pm)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = SchemaFromJSON(items)
	}
	switch req := m["required"].(type) {
	case []string:
		s.Required = append(s.Required, req...)
	case []any:
		for _, r := range req {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	switch enum := m["enum"].(type) {
	case []string:
		s.Enum = append(s.Enum, enum...)
	case []any:
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}
	return s
}
