package sources

import (
	"fmt"
	"net/url"
	"strings"
)

const citeSnippet = 180

// Cite renders hits as numbered citation lines the agents can copy into
// their answers:
//
//	[1] Title: "snippet" (example.org) <https://example.org/page>
func Cite(hits []Hit) string {
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteByte('\n')
		}
		rank := h.Rank
		if rank <= 0 {
			rank = i + 1
		}
		fmt.Fprintf(&b, "[%d]", rank)
		if t := strings.TrimSpace(h.Title); t != "" {
			b.WriteString(" " + t)
		}
		if s := quote(h.Snippet); s != "" {
			b.WriteString(": " + s)
		}
		if d := domain(h.URL); d != "" {
			b.WriteString(" (" + d + ")")
		}
		if u := strings.TrimSpace(h.URL); u != "" {
			b.WriteString(" <" + u + ">")
		}
	}
	return b.String()
}

func quote(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	if r := []rune(s); len(r) > citeSnippet {
		s = string(r[:citeSnippet]) + "…"
	}
	return `"` + strings.Trim(s, `"`) + `"`
}

func domain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
