package gemini_provider

import (
	"testing"

	"github.com/mohammad-safakhou/conflictcast/models"
	"google.golang.org/genai"
)

func TestSchemaFromJSON(t *testing.T) {
	s := SchemaFromJSON(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"country1": map[string]any{"type": "string", "description": "first"},
			"tags":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"country1"},
	})
	if s.Type != genai.TypeObject {
		t.Fatalf("expected object, got %v", s.Type)
	}
	if s.Properties["country1"].Type != genai.TypeString || s.Properties["country1"].Description != "first" {
		t.Fatalf("unexpected country1 schema: %+v", s.Properties["country1"])
	}
	if s.Properties["tags"].Items == nil || s.Properties["tags"].Items.Type != genai.TypeString {
		t.Fatalf("array items not converted")
	}
	if len(s.Required) != 1 || s.Required[0] != "country1" {
		t.Fatalf("unexpected required: %v", s.Required)
	}
}

func TestToContentsFoldsToolResults(t *testing.T) {
	contents, err := toContents([]models.Message{
		{Role: models.RoleUser, Content: "compare"},
		{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{
			{ID: "a", Name: "military_data_agent", Arguments: `{"input":"India"}`},
			{ID: "b", Name: "economic_data_agent", Arguments: `{"input":"India"}`},
		}},
		{Role: models.RoleTool, ToolCallID: "a", Name: "military_data_agent", Content: "m"},
		{Role: models.RoleTool, ToolCallID: "b", Name: "economic_data_agent", Content: "e"},
	})
	if err != nil {
		t.Fatalf("toContents: %v", err)
	}
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	if contents[1].Parts[0].FunctionCall.Args["input"] != "India" {
		t.Fatalf("function call args not decoded")
	}
	if len(contents[2].Parts) != 2 || contents[2].Parts[1].FunctionResponse.ID != "b" {
		t.Fatalf("tool results not folded: %+v", contents[2].Parts)
	}
}

func TestToContentsRejectsBadArguments(t *testing.T) {
	_, err := toContents([]models.Message{
		{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{ID: "a", Name: "x", Arguments: "{"}}},
	})
	if err == nil {
		t.Fatalf("expected error for malformed arguments")
	}
}

func TestFromResponseAssignsCallIDs(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "checking"},
				{FunctionCall: &genai.FunctionCall{Name: "web_search", Args: map[string]any{"query": "India army"}}},
			}},
		}},
	}
	out := fromResponse(resp)
	if out.Content != "checking" || len(out.ToolCalls) != 1 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if out.ToolCalls[0].ID == "" || out.ToolCalls[0].Arguments != `{"query":"India army"}` {
		t.Fatalf("unexpected tool call: %+v", out.ToolCalls[0])
	}
}
