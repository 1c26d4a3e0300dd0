package models

import "encoding/json"

// Result is one organic hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Response keeps the provider body verbatim next to the parsed hits.
type Response struct {
	Provider string          `json:"provider"`
	Query    string          `json:"query"`
	Raw      json.RawMessage `json:"raw"`
	Results  []Result        `json:"results"`
}
