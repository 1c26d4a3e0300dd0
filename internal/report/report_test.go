package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)

func newTestAssembler() *Assembler {
	return NewAssembler(WithClock(func() time.Time { return fixedNow }))
}

type staticHistory []string

func (h staticHistory) History(context.Context) ([]string, error) { return h, nil }

type brokenHistory struct{}

func (brokenHistory) History(context.Context) ([]string, error) {
	return nil, errors.New("store unavailable")
}

func TestAssembleEmptyHistory(t *testing.T) {
	r := newTestAssembler().Assemble(context.Background(), []string{}, "Country1: 70%\nCountry2: 30%", "India vs Pakistan")
	if r.Summary.TotalInteractions != 0 {
		t.Fatalf("expected 0 interactions, got %d", r.Summary.TotalInteractions)
	}
	if r.Metadata.ReportType != "Country Comparison Analysis" {
		t.Fatalf("unexpected report type %q", r.Metadata.ReportType)
	}
	if r.Metadata.Timestamp != "2025-03-14 09:26:53" || r.Summary.GeneratedAt != r.Metadata.Timestamp {
		t.Fatalf("unexpected timestamps: %q / %q", r.Metadata.Timestamp, r.Summary.GeneratedAt)
	}
}

func TestAssembleHistorySources(t *testing.T) {
	cases := []struct {
		name   string
		source any
		want   int
	}{
		{"nil", nil, 0},
		{"provider", staticHistory{"user: India vs Pakistan", "assistant(Planning Agent): plan"}, 2},
		{"failing provider", brokenHistory{}, 0},
		{"no capability", struct{}{}, 0},
	}
	for _, tc := range cases {
		r := newTestAssembler().Assemble(context.Background(), tc.source, "r", "q")
		if r.Summary.TotalInteractions != tc.want || len(r.ConversationHistory) != tc.want {
			t.Fatalf("%s: expected %d interactions, got %d", tc.name, tc.want, r.Summary.TotalInteractions)
		}
		if r.ConversationHistory == nil {
			t.Fatalf("%s: history must encode as an empty list, not null", tc.name)
		}
	}
}

func TestAssembleCopiesProviderHistory(t *testing.T) {
	h := staticHistory{"user: India vs Pakistan"}
	r := newTestAssembler().Assemble(context.Background(), h, "r", "q")
	h[0] = "user: changed"
	if r.ConversationHistory[0] != "user: India vs Pakistan" {
		t.Fatalf("report shares the provider's slice: %q", r.ConversationHistory[0])
	}
}

func TestPersistRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	result := "Country1: 70%\nCountry2: 30% <weighted> & \"sourced\" – Ελλάδα"
	query := "India vs Pakistan"
	r := newTestAssembler().Assemble(context.Background(), staticHistory{"user: hi"}, result, query)

	jsonPath, textPath, err := Persist(r, dir, "")
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(jsonPath), "country_comparison_report_") {
		t.Fatalf("unexpected default name %s", jsonPath)
	}
	if strings.TrimSuffix(jsonPath, ".json") != strings.TrimSuffix(textPath, ".txt") {
		t.Fatalf("json and text paths differ: %s %s", jsonPath, textPath)
	}

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	if !strings.Contains(string(raw), "Ελλάδα") || !strings.Contains(string(raw), "<weighted>") {
		t.Fatalf("expected unescaped characters in json, got %s", raw)
	}
	if !strings.Contains(string(raw), "\n  \"metadata\"") {
		t.Fatalf("expected two-space indentation")
	}
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, k := range []string{"metadata", "analysis_result", "conversation_history", "summary"} {
		if _, ok := parsed[k]; !ok {
			t.Fatalf("missing field %q", k)
		}
	}

	back, err := Load(jsonPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.AnalysisResult != result || back.Metadata.UserQuery != query {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestPersistExistingDir(t *testing.T) {
	dir := t.TempDir()
	r := newTestAssembler().Assemble(context.Background(), nil, "r", "q")
	if _, _, err := Persist(r, dir, "first"); err != nil {
		t.Fatalf("first persist: %v", err)
	}
	if _, _, err := Persist(r, dir, "second"); err != nil {
		t.Fatalf("second persist: %v", err)
	}
}

func TestPersistFailsOnUnwritableDir(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	r := newTestAssembler().Assemble(context.Background(), nil, "r", "q")
	if _, _, err := Persist(r, filepath.Join(blocker, "reports"), "x"); err == nil {
		t.Fatalf("expected error when dir cannot be created")
	}
}

func TestRenderTextLayout(t *testing.T) {
	r := newTestAssembler().Assemble(context.Background(), staticHistory{"user: a", "assistant: b"}, "Country1: 55%", "France vs Spain")
	got := RenderText(r)
	banner := strings.Repeat("=", 60)
	want := banner + "\n" +
		"COUNTRY COMPARISON ANALYSIS REPORT\n" +
		banner + "\n\n" +
		"Generated: 2025-03-14 09:26:53\n" +
		"User Query: France vs Spain\n\n" +
		"ANALYSIS RESULT:\n" +
		strings.Repeat("-", 30) + "\n" +
		"Country1: 55%\n\n" +
		"CONVERSATION HISTORY:\n" +
		strings.Repeat("-", 30) + "\n" +
		"1. user: a\n" +
		"2. assistant: b\n" +
		"\n" + banner + "\n" +
		"End of Report\n"
	if got != want {
		t.Fatalf("unexpected layout:\n%s\nwant:\n%s", got, want)
	}

	empty := RenderText(newTestAssembler().Assemble(context.Background(), nil, "x", "y"))
	if strings.Contains(empty, "CONVERSATION HISTORY") {
		t.Fatalf("history section must be omitted when empty")
	}
}

func TestWriteFallback(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := WriteFallback(dir, "India vs Pakistan", "Country1: 70%", fixedNow)
	if err != nil {
		t.Fatalf("WriteFallback: %v", err)
	}
	if filepath.Base(path) != "analysis_result_20250314_092653.txt" {
		t.Fatalf("unexpected fallback name %s", path)
	}
	body, _ := os.ReadFile(path)
	want := "Analysis Result - 2025-03-14 09:26:53\n" + strings.Repeat("=", 50) + "\n\nUser Query: India vs Pakistan\n\nResult:\nCountry1: 70%"
	if string(body) != want {
		t.Fatalf("unexpected fallback body:\n%s", body)
	}
}

func TestListDir(t *testing.T) {
	dir := t.TempDir()
	older := NewAssembler(WithClock(func() time.Time { return fixedNow.Add(-time.Hour) })).Assemble(context.Background(), nil, "a", "older")
	newer := newTestAssembler().Assemble(context.Background(), nil, "b", "newer")
	if _, _, err := Persist(older, dir, "older"); err != nil {
		t.Fatalf("persist older: %v", err)
	}
	if _, _, err := Persist(newer, dir, "newer"); err != nil {
		t.Fatalf("persist newer: %v", err)
	}
	entries, err := ListDir(dir)
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "newer" || entries[1].UserQuery != "older" {
		t.Fatalf("unexpected listing: %+v", entries)
	}

	missing, err := ListDir(filepath.Join(dir, "nope"))
	if err != nil || len(missing) != 0 {
		t.Fatalf("expected empty listing for missing dir, got %v %v", missing, err)
	}
}

func TestDirCatalog(t *testing.T) {
	dir := t.TempDir()
	r := newTestAssembler().Assemble(context.Background(), nil, "India: 60%", "India vs Pakistan")
	if _, _, err := Persist(r, dir, "r1"); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	cat := DirCatalog{Dir: dir}

	got, err := cat.GetReport(context.Background(), "r1")
	if err != nil || got.AnalysisResult != "India: 60%" {
		t.Fatalf("GetReport: %+v %v", got, err)
	}
	for _, name := range []string{"missing", "../r1", ".hidden", ""} {
		if _, err := cat.GetReport(context.Background(), name); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetReport(%q): expected ErrNotFound, got %v", name, err)
		}
	}
	entries, err := cat.ListReports(context.Background(), 1)
	if err != nil || len(entries) != 1 || entries[0].Name != "r1" {
		t.Fatalf("ListReports: %+v %v", entries, err)
	}
}
