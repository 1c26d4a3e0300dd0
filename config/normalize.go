package config

import (
	"fmt"
	"strings"
	"time"
)

// Default routes mirror the original deployment: conversation and the final
// synthesis on GPT, planning and the research tools on Gemini.
const (
	DefaultOpenAIRoute = "openai:gpt-4.1"
	DefaultGeminiRoute = "gemini:gemini-2.5-flash"
)

// Normalize applies defaults for unset values.
func (c Config) Normalize() Config {
	c.General.LogLevel = strings.ToLower(strings.TrimSpace(c.General.LogLevel))
	if c.General.LogLevel == "" {
		c.General.LogLevel = "warn"
	}
	c.LLM = c.LLM.Normalize()
	if c.Agents.MaxTurns <= 0 {
		c.Agents.MaxTurns = 12
	}
	c.Search.Provider = strings.ToLower(strings.TrimSpace(c.Search.Provider))
	if c.Search.Provider == "" {
		c.Search.Provider = "tavily"
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 5
	}
	if c.Search.Timeout <= 0 {
		c.Search.Timeout = 20 * time.Second
	}
	c.Fetch.Type = strings.ToLower(strings.TrimSpace(c.Fetch.Type))
	if c.Fetch.Type == "" {
		c.Fetch.Type = "http"
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 15 * time.Second
	}
	if c.Fetch.MaxChars <= 0 {
		c.Fetch.MaxChars = 20000
	}
	c.Fetch.Policy = c.Fetch.Policy.Normalize()
	c.Session.Store = strings.ToLower(strings.TrimSpace(c.Session.Store))
	if c.Session.Store == "" {
		c.Session.Store = "inmemory"
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = 24 * time.Hour
	}
	if strings.TrimSpace(c.Reports.Dir) == "" {
		c.Reports.Dir = "reports"
	}
	if strings.TrimSpace(c.Server.Address) == "" {
		c.Server.Address = ":10001"
	}
	return c
}

// Normalize fills provider types and per-role routes.
func (l LLMConfig) Normalize() LLMConfig {
	providers := make(map[string]LLMProvider, len(l.Providers))
	for name, p := range l.Providers {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if p.Type == "" {
			p.Type = key
		}
		if p.Timeout <= 0 {
			p.Timeout = 60 * time.Second
		}
		providers[key] = p
	}
	l.Providers = providers

	r := &l.Routing
	for _, route := range []*string{&r.Requirement, &r.Prediction} {
		if strings.TrimSpace(*route) == "" {
			*route = DefaultOpenAIRoute
		}
	}
	for _, route := range []*string{&r.Planning, &r.Military, &r.Economic, &r.Sentiment, &r.Reflection, &r.Citations} {
		if strings.TrimSpace(*route) == "" {
			*route = DefaultGeminiRoute
		}
	}
	return l
}

// Validate ensures configuration is internally consistent.
func (c Config) Validate() error {
	switch c.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("general.log_level must be debug, info, warn or error, got %q", c.General.LogLevel)
	}
	for _, route := range c.LLM.Routing.All() {
		provider, _, err := ParseRoute(route)
		if err != nil {
			return err
		}
		if _, ok := c.LLM.Providers[provider]; !ok {
			return fmt.Errorf("llm.routing references unknown provider %q", provider)
		}
	}
	switch c.Search.Provider {
	case "tavily", "serper", "brave":
	default:
		return fmt.Errorf("search.provider must be tavily, serper or brave, got %q", c.Search.Provider)
	}
	if c.Search.RatePerSec < 0 {
		return fmt.Errorf("search.rate_per_sec cannot be negative")
	}
	switch c.Fetch.Type {
	case "http", "chromedp":
	default:
		return fmt.Errorf("fetch.type must be http or chromedp, got %q", c.Fetch.Type)
	}
	if err := c.Fetch.Policy.Validate(); err != nil {
		return err
	}
	switch c.Session.Store {
	case "inmemory":
	case "redis":
		if strings.TrimSpace(c.Storage.Redis.Host) == "" || strings.TrimSpace(c.Storage.Redis.Port) == "" {
			return fmt.Errorf("storage.redis.host and storage.redis.port required for the redis session store")
		}
	default:
		return fmt.Errorf("session.store must be inmemory or redis, got %q", c.Session.Store)
	}
	if c.Reports.Archive {
		p := c.Storage.Postgres
		if strings.TrimSpace(p.URL) == "" && (strings.TrimSpace(p.Host) == "" || strings.TrimSpace(p.DBName) == "") {
			return fmt.Errorf("reports.archive needs storage.postgres.url or host/dbname")
		}
	}
	return nil
}

// All returns every configured route.
func (r LLMRoutingConfig) All() []string {
	return []string{r.Requirement, r.Planning, r.Prediction, r.Military, r.Economic, r.Sentiment, r.Reflection, r.Citations}
}

// ParseRoute splits "provider:model".
func ParseRoute(route string) (provider, model string, err error) {
	provider, model, ok := strings.Cut(strings.TrimSpace(route), ":")
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.TrimSpace(model)
	if !ok || provider == "" || model == "" {
		return "", "", fmt.Errorf("invalid llm route %q, want provider:model", route)
	}
	return provider, model, nil
}
