// Package readable turns raw HTML into article text.
package readable

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/mohammad-safakhou/conflictcast/tools/web_fetch/models"
)

// Extract runs readability over html and truncates the text to maxChars runes.
func Extract(html, rawURL string, maxChars int) (models.Result, error) {
	sum := sha1.Sum([]byte(html))
	res := models.Result{URL: rawURL, HTMLHash: hex.EncodeToString(sum[:])}

	article, err := readability.FromReader(strings.NewReader(html), parseURL(rawURL))
	if err != nil {
		return res, err
	}
	res.Title = strings.TrimSpace(article.Title)
	res.Byline = strings.TrimSpace(article.Byline)
	res.SiteName = strings.TrimSpace(article.SiteName)
	res.TopImage = article.Image
	if article.PublishedTime != nil {
		res.PublishedAt = article.PublishedTime.UTC().Format("2006-01-02T15:04:05Z")
	}
	res.Text = Truncate(strings.TrimSpace(article.TextContent), maxChars)
	return res, nil
}

// Truncate cuts s to at most n runes. n <= 0 leaves s whole.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func parseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
