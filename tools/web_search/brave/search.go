package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mohammad-safakhou/conflictcast/tools/web_search/models"
)

const defaultEndpoint = "https://api.search.brave.com/res/v1/web/search"

type Search struct {
	ApiKey   string
	Client   *http.Client
	Endpoint string
}

func (s Search) Discover(ctx context.Context, q string, k int) (models.Response, error) {
	// https://api.search.brave.com/app/documentation/web-search
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	params := url.Values{"q": {q}}
	if k > 0 {
		params.Set("count", strconv.Itoa(k))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return models.Response{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.ApiKey)

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
		return models.Response{}, fmt.Errorf("brave search returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.Response{}, fmt.Errorf("decode brave response: %w", err)
	}
	out := models.Response{Provider: "brave", Query: q, Raw: raw}
	for i, r := range parsed.Web.Results {
		if k > 0 && i >= k {
			break
		}
		out.Results = append(out.Results, models.Result{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return out, nil
}
