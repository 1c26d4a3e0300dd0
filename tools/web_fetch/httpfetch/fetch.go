package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/conflictcast/tools/web_fetch/models"
	"github.com/mohammad-safakhou/conflictcast/tools/web_fetch/readable"
)

const userAgent = "conflictcast/1.0 (+https://github.com/mohammad-safakhou/conflictcast)"

// maxBody bounds how much HTML is read before extraction.
const maxBody = 5 << 20

type Fetch struct {
	Timeout  time.Duration
	MaxChars int
	Client   *http.Client
}

func (f Fetch) Exec(ctx context.Context, url string) (models.Result, error) {
	if strings.TrimSpace(url) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return models.Result{URL: url, Status: 599, RenderMS: elapsedMS(t0)}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return models.Result{URL: url, Status: resp.StatusCode, RenderMS: elapsedMS(t0)}, nil
	}
	if resp.StatusCode >= 400 {
		return models.Result{URL: url, Status: resp.StatusCode, RenderMS: elapsedMS(t0)}, nil
	}

	// an unreadable page still reports status and hash
	res, _ := readable.Extract(string(body), url, f.MaxChars)
	res.Status = resp.StatusCode
	res.RenderMS = elapsedMS(t0)
	return res, nil
}

func elapsedMS(t0 time.Time) int { return int(time.Since(t0) / time.Millisecond) }
