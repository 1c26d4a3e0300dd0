// Package sources keeps the search hits seen during one run in an
// in-memory full-text index so later agents can cite them.
package sources

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/mohammad-safakhou/conflictcast/tools/web_search/models"
)

// Doc is one indexed search hit.
type Doc struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Snippet   string    `json:"snippet"`
	Query     string    `json:"query"`
	Provider  string    `json:"provider"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Hit is a ranked match.
type Hit struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Query   string  `json:"query"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

type Index struct {
	bleve bleve.Index
	docs  map[string]Doc
	order []string
	mu    sync.RWMutex
}

func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create sources index: %w", err)
	}
	return &Index{bleve: idx, docs: make(map[string]Doc)}, nil
}

// Add indexes every hit of resp. Hits whose canonical URL was already
// seen are skipped.
// It returns the number of new documents.
func (x *Index) Add(resp models.Response) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	added := 0
	for _, r := range resp.Results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		id := Fingerprint(r.URL)
		if _, ok := x.docs[id]; ok {
			continue
		}
		doc := Doc{
			URL:       r.URL,
			Title:     r.Title,
			Snippet:   r.Snippet,
			Query:     resp.Query,
			Provider:  resp.Provider,
			IndexedAt: time.Now().UTC(),
		}
		if err := x.bleve.Index(id, doc); err != nil {
			return added, fmt.Errorf("index %s: %w", r.URL, err)
		}
		x.docs[id] = doc
		x.order = append(x.order, id)
		added++
	}
	return added, nil
}

// Query returns up to k documents matching q, best first.
func (x *Index) Query(q string, k int) ([]Hit, error) {
	if k <= 0 || k > 50 {
		k = 10
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	query := bleve.NewMatchQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := x.bleve.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search sources: %w", err)
	}
	out := make([]Hit, 0, len(res.Hits))
	for i, h := range res.Hits {
		doc, ok := x.docs[h.ID]
		if !ok {
			continue
		}
		out = append(out, Hit{
			URL: doc.URL, Title: doc.Title, Snippet: snippet(doc.Snippet),
			Query: doc.Query, Score: h.Score, Rank: i + 1,
		})
	}
	return out, nil
}

// All returns every document in insertion order.
func (x *Index) All() []Doc {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]Doc, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, x.docs[id])
	}
	return out
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

func (x *Index) Close() error { return x.bleve.Close() }

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= 300 {
		return s
	}
	return string(r[:300]) + "…"
}
