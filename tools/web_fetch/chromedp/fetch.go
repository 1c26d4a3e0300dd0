package chromedp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/mohammad-safakhou/conflictcast/tools/web_fetch/models"
	"github.com/mohammad-safakhou/conflictcast/tools/web_fetch/readable"
)

type Fetch struct {
	Timeout  time.Duration
	MaxChars int
}

func (f Fetch) Exec(ctx context.Context, url string) (models.Result, error) {
	if strings.TrimSpace(url) == "" {
		return models.Result{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	html, err := fetchHTML(ctx, url)
	if err != nil {
		return models.Result{URL: url, Status: 599, RenderMS: int(time.Since(t0) / time.Millisecond)}, fmt.Errorf("render %s: %w", url, err)
	}

	res, _ := readable.Extract(html, url, f.MaxChars)
	res.Status = 200
	res.RenderMS = int(time.Since(t0) / time.Millisecond)
	return res, nil
}

func fetchHTML(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("conflictcast/1.0"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
