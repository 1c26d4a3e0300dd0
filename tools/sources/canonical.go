package sources

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"path"
	"sort"
	"strings"
)

// trackingParams never change the page a search hit points at.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"utm_id":       {},
	"gclid":        {},
	"fbclid":       {},
	"msclkid":      {},
	"igshid":       {},
}

// Canonical normalises a hit URL so the same article reported by two
// providers, or twice with different tracking parameters, collapses to one
// document. Schemeless input defaults to https.
func Canonical(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" && u.Host == "" {
		if strings.HasPrefix(raw, "//") {
			raw = "https:" + raw
		} else {
			raw = "https://" + raw
		}
		if u, err = url.Parse(raw); err != nil {
			return "", err
		}
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if host == "" {
		return "", errors.New("url missing host")
	}
	if h, port, ok := strings.Cut(host, ":"); ok {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			host = h
		}
	}
	u.Host = host

	p := path.Clean("/" + u.Path)
	if p != "/" && strings.HasSuffix(u.Path, "/") {
		p += "/"
	}
	u.Path = p
	u.RawPath = ""
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		if _, drop := trackingParams[strings.ToLower(k)]; drop {
			q.Del(k)
		}
	}
	for k := range q {
		sort.Strings(q[k])
	}
	// Encode sorts by key.
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fingerprint is the document ID of a hit URL. Unparseable URLs fall back
// to a digest of the trimmed input.
func Fingerprint(raw string) string {
	c, err := Canonical(raw)
	if err != nil {
		c = strings.TrimSpace(raw)
	}
	sum := sha256.Sum256([]byte(c))
	return hex.EncodeToString(sum[:])
}
