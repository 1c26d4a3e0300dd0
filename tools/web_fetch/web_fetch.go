package web_fetch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/conflictcast/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/conflictcast/tools/web_fetch/httpfetch"
	"github.com/mohammad-safakhou/conflictcast/tools/web_fetch/models"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 20000
)

type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

var ErrUnsupportedFetcher = errors.New("unsupported fetcher type")

func NewWebFetcher(fetcherType FetcherType, timeout time.Duration, maxChars int) (WebFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	switch fetcherType {
	case HTTPFetcherType, "":
		return httpfetch.Fetch{Timeout: timeout, MaxChars: maxChars, Client: &http.Client{Timeout: timeout}}, nil
	case ChromedpFetcherType:
		return chromedp.Fetch{Timeout: timeout, MaxChars: maxChars}, nil
	default:
		return nil, ErrUnsupportedFetcher
	}
}
