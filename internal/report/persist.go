package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const fileStampLayout = "20060102_150405"

// DefaultName derives a report base name from now.
func DefaultName(now time.Time) string {
	return "country_comparison_report_" + now.Format(fileStampLayout)
}

// Persist writes <dir>/<name>.json and <dir>/<name>.txt, creating dir when
// missing. An empty name falls back to DefaultName. A failure on either file
// fails the call; a file already written is left in place.
func Persist(r Report, dir, name string) (jsonPath, textPath string, err error) {
	if name == "" {
		name = DefaultName(time.Now())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create report dir: %w", err)
	}

	body, err := MarshalJSON(r)
	if err != nil {
		return "", "", err
	}
	jsonPath = filepath.Join(dir, name+".json")
	if err := os.WriteFile(jsonPath, body, 0o644); err != nil {
		return "", "", fmt.Errorf("write json report: %w", err)
	}

	textPath = filepath.Join(dir, name+".txt")
	if err := os.WriteFile(textPath, []byte(RenderText(r)), 0o644); err != nil {
		return "", "", fmt.Errorf("write text report: %w", err)
	}
	return jsonPath, textPath, nil
}

// MarshalJSON encodes r with two-space indentation and no HTML escaping.
func MarshalJSON(r Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderText lays the report out for reading.
func RenderText(r Report) string {
	banner := strings.Repeat("=", 60)
	rule := strings.Repeat("-", 30)

	var b strings.Builder
	b.WriteString(banner + "\n")
	b.WriteString("COUNTRY COMPARISON ANALYSIS REPORT\n")
	b.WriteString(banner + "\n\n")

	fmt.Fprintf(&b, "Generated: %s\n", r.Metadata.Timestamp)
	fmt.Fprintf(&b, "User Query: %s\n\n", r.Metadata.UserQuery)

	b.WriteString("ANALYSIS RESULT:\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "%s\n\n", r.AnalysisResult)

	if len(r.ConversationHistory) > 0 {
		b.WriteString("CONVERSATION HISTORY:\n")
		b.WriteString(rule + "\n")
		for i, turn := range r.ConversationHistory {
			fmt.Fprintf(&b, "%d. %s\n", i+1, turn)
		}
	}

	b.WriteString("\n" + banner + "\n")
	b.WriteString("End of Report\n")
	return b.String()
}

// WriteFallback saves the bare query and result when Persist failed.
func WriteFallback(dir, query, result string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, "analysis_result_"+now.Format(fileStampLayout)+".txt")

	var b strings.Builder
	fmt.Fprintf(&b, "Analysis Result - %s\n", now.Format(TimestampLayout))
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "User Query: %s\n\n", query)
	fmt.Fprintf(&b, "Result:\n%s", result)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write fallback report: %w", err)
	}
	return path, nil
}

// Load reads a report previously written by Persist.
func Load(path string) (Report, error) {
	var r Report
	body, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("read report: %w", err)
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return r, fmt.Errorf("decode report %s: %w", filepath.Base(path), err)
	}
	return r, nil
}

// Entry is a listing row for a persisted report.
type Entry struct {
	Name      string    `json:"name"`
	UserQuery string    `json:"user_query"`
	CreatedAt time.Time `json:"created_at"`
}

// ListDir returns the JSON reports in dir, newest first. A missing dir is
// an empty listing.
func ListDir(dir string) ([]Entry, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		r, err := Load(m)
		if err != nil {
			continue
		}
		created, err := time.ParseInLocation(TimestampLayout, r.Metadata.Timestamp, time.Local)
		if err != nil {
			if fi, statErr := os.Stat(m); statErr == nil {
				created = fi.ModTime()
			}
		}
		entries = append(entries, Entry{
			Name:      strings.TrimSuffix(filepath.Base(m), ".json"),
			UserQuery: r.Metadata.UserQuery,
			CreatedAt: created,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}
