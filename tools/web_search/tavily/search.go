package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mohammad-safakhou/conflictcast/tools/web_search/models"
)

const defaultEndpoint = "https://api.tavily.com/search"

type Search struct {
	ApiKey   string
	Client   *http.Client
	Endpoint string
}

func (s Search) Discover(ctx context.Context, q string, k int) (models.Response, error) {
	// https://docs.tavily.com/documentation/api-reference/endpoint/search
	payload := map[string]any{"query": q, "search_depth": "basic"}
	if k > 0 {
		payload["max_results"] = k
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.Response{}, err
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return models.Response{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return models.Response{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Response{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Response{}, fmt.Errorf("tavily search returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.Response{}, fmt.Errorf("decode tavily response: %w", err)
	}
	out := models.Response{Provider: "tavily", Query: q, Raw: raw}
	for _, r := range parsed.Results {
		out.Results = append(out.Results, models.Result{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return out, nil
}
