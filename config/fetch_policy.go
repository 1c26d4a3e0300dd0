package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// FetchPolicy limits which hosts fetch_page may visit. An empty Allow list
// permits every host not listed in Disallow. Entries match subdomains.
type FetchPolicy struct {
	Allow    []string `mapstructure:"allow"`
	Disallow []string `mapstructure:"disallow"`
}

// Normalize lowercases hosts, strips schemes and www, and dedupes.
func (p FetchPolicy) Normalize() FetchPolicy {
	p.Allow = hostList(p.Allow)
	p.Disallow = hostList(p.Disallow)
	return p
}

// Validate rejects a host that is both allowed and disallowed.
func (p FetchPolicy) Validate() error {
	norm := p.Normalize()
	allow := make(map[string]struct{}, len(norm.Allow))
	for _, h := range norm.Allow {
		allow[h] = struct{}{}
	}
	for _, h := range norm.Disallow {
		if _, ok := allow[h]; ok {
			return fmt.Errorf("fetch.policy: host %q is both allowed and disallowed", h)
		}
	}
	return nil
}

// Permits reports whether rawURL may be fetched.
func (p FetchPolicy) Permits(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := hostOf(u.Hostname())
	for _, d := range p.Disallow {
		if matchesHost(host, d) {
			return false
		}
	}
	if len(p.Allow) == 0 {
		return true
	}
	for _, a := range p.Allow {
		if matchesHost(host, a) {
			return true
		}
	}
	return false
}

func matchesHost(host, entry string) bool {
	return host == entry || strings.HasSuffix(host, "."+entry)
}

func hostList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if h := hostOf(v); h != "" {
			seen[h] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func hostOf(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		if u, err := url.Parse(value); err == nil && u.Hostname() != "" {
			value = u.Hostname()
		}
	}
	return strings.TrimPrefix(value, "www.")
}
