package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mohammad-safakhou/conflictcast/tools/web_search/models"
)

const defaultEndpoint = "https://google.serper.dev/search"

type Search struct {
	ApiKey   string
	Client   *http.Client
	Endpoint string
}

func (s Search) Discover(ctx context.Context, q string, k int) (models.Response, error) {
	// https://serper.dev/ docs
	payload := map[string]any{"q": q}
	if k > 0 {
		payload["num"] = k
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
	req.Header.Set("X-API-KEY", s.ApiKey)
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
		return models.Response{}, fmt.Errorf("serper search returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.Response{}, fmt.Errorf("decode serper response: %w", err)
	}
	out := models.Response{Provider: "serper", Query: q, Raw: raw}
	for i, it := range parsed.Organic {
		if k > 0 && i >= k {
			break
		}
		out.Results = append(out.Results, models.Result{Title: it.Title, URL: it.Link, Snippet: it.Snippet})
	}
	return out, nil
}
