package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/conflictcast/models"
)

const defaultBaseURL = "https://api.openai.com/v1"

// client speaks the OpenAI chat-completions wire format. Any compatible
// endpoint works through base_url.
type client struct {
	name       string
	apiKey     string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
}

type toolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function toolCallFunction `json:"function"`
}

// request represents a request to the chat-completions API
type request struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []tool        `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// response represents a response from the chat-completions API
type response struct {
	Choices []struct {
		FinishReason string      `json:"finish_reason"`
		Message      chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIClient creates a new OpenAI-compatible client
func NewOpenAIClient(name, apiKey, baseURL string, maxTokens int, timeout time.Duration) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &client{
		name:       name,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *client) Name() string { return c.name }

// Complete sends one chat-completions round trip.
func (c *client) Complete(ctx context.Context, in models.CompletionRequest) (models.CompletionResponse, error) {
	body := request{
		Model:       in.Model,
		Messages:    toWireMessages(in.System, in.Messages),
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = c.maxTokens
	}
	for _, t := range in.Tools {
		body.Tools = append(body.Tools, tool{
			Type:     "function",
			Function: toolFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return models.CompletionResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return models.CompletionResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.CompletionResponse{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.CompletionResponse{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.CompletionResponse{}, fmt.Errorf("%s API returned status %d: %s", c.name, resp.StatusCode, truncate(string(raw), 512))
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.CompletionResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != nil {
		return models.CompletionResponse{}, fmt.Errorf("%s API error: %s", c.name, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return models.CompletionResponse{}, fmt.Errorf("no choices in response")
	}

	choice := out.Choices[0]
	result := models.CompletionResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, nil
}

func toWireMessages(system string, msgs []models.Message) []chatMessage {
	out := make([]chatMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, chatMessage{Role: string(models.RoleSystem), Content: system})
	}
	for _, m := range msgs {
		wm := chatMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
		if m.Role == models.RoleTool {
			wm.Name = m.Name
		}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, toolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: toolCallFunction{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		out = append(out, wm)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
