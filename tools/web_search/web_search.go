package web_search

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/conflictcast/tools/web_search/brave"
	"github.com/mohammad-safakhou/conflictcast/tools/web_search/models"
	"github.com/mohammad-safakhou/conflictcast/tools/web_search/serper"
	"github.com/mohammad-safakhou/conflictcast/tools/web_search/tavily"
	"golang.org/x/time/rate"
)

type WebSearcher interface {
	Discover(ctx context.Context, q string, k int) (models.Response, error)
}

type Provider string

const (
	TavilyProvider Provider = "tavily"
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported search provider")
	ErrMissingAPIKey       = errors.New("search api key not set")
)

func NewWebSearcher(provider Provider, apiKey string, timeout time.Duration) (WebSearcher, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	client := &http.Client{Timeout: timeout}
	switch Provider(strings.ToLower(string(provider))) {
	case TavilyProvider:
		return tavily.Search{ApiKey: apiKey, Client: client}, nil
	case SerperProvider:
		return serper.Search{ApiKey: apiKey, Client: client}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey, Client: client}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

// Limited throttles Discover calls process-wide.
type Limited struct {
	next    WebSearcher
	limiter *rate.Limiter
}

// WithRateLimit wraps s so at most perSec searches start each second.
// A non-positive rate disables throttling.
func WithRateLimit(s WebSearcher, perSec float64) WebSearcher {
	if perSec <= 0 {
		return s
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: s, limiter: rate.NewLimiter(rate.Limit(perSec), burst)}
}

func (l *Limited) Discover(ctx context.Context, q string, k int) (models.Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return models.Response{}, err
	}
	return l.next.Discover(ctx, q, k)
}
