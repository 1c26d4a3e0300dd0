package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/conflictcast/internal/metrics"
	"github.com/mohammad-safakhou/conflictcast/internal/orchestrator"
	"github.com/mohammad-safakhou/conflictcast/internal/report"
)

type memCatalog map[string]report.Report

func (m memCatalog) ListReports(_ context.Context, limit int) ([]report.Entry, error) {
	var out []report.Entry
	for name, r := range m {
		out = append(out, report.Entry{Name: name, UserQuery: r.Metadata.UserQuery})
	}
	return out, nil
}

func (m memCatalog) GetReport(_ context.Context, name string) (report.Report, error) {
	r, ok := m[name]
	if !ok {
		return report.Report{}, report.ErrNotFound
	}
	return r, nil
}

type fakePredictor struct {
	got []string
	err error
}

func (f *fakePredictor) Turn(_ context.Context, sessionID, message string) (orchestrator.Reply, error) {
	f.got = append(f.got, sessionID+"|"+message)
	if message == "" {
		return orchestrator.Reply{}, orchestrator.ErrEmptyMessage
	}
	if f.err != nil {
		return orchestrator.Reply{SessionID: "s1"}, f.err
	}
	return orchestrator.Reply{SessionID: "s1", Reply: "Which second country?"}, nil
}

func newTestServer(secret string, p Predictor) http.Handler {
	return New(Options{
		Catalog: memCatalog{"r1": {
			Metadata:       report.Metadata{UserQuery: "India vs Pakistan", ReportType: report.ReportType},
			AnalysisResult: "India: 60%\nPakistan: 40%",
		}},
		Predictor: p,
		Metrics:   metrics.New().Handler(),
		JWTSecret: secret,
	})
}

func do(h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer("", &fakePredictor{})
	if rec := do(h, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
	rec := do(h, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func TestReportsRoutes(t *testing.T) {
	h := newTestServer("", &fakePredictor{})

	rec := do(h, http.MethodGet, "/api/reports", "", "")
	var entries []report.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil || len(entries) != 1 || entries[0].Name != "r1" {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(h, http.MethodGet, "/api/reports/r1", "", "")
	var r report.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil || r.AnalysisResult != "India: 60%\nPakistan: 40%" {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(h, http.MethodGet, "/api/reports/nope", "", "")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "report not found") {
		t.Fatalf("missing report: %d %s", rec.Code, rec.Body.String())
	}

	if rec := do(h, http.MethodGet, "/api/reports?limit=x", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", rec.Code)
	}
}

func TestPredictionRoute(t *testing.T) {
	p := &fakePredictor{}
	h := newTestServer("", p)

	rec := do(h, http.MethodPost, "/api/predictions", `{"message":"India"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("predict: %d %s", rec.Code, rec.Body.String())
	}
	var reply orchestrator.Reply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil || reply.SessionID != "s1" || reply.Done {
		t.Fatalf("unexpected reply %s", rec.Body.String())
	}

	if rec := do(h, http.MethodPost, "/api/predictions", `{"session_id":"s1"}`, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty message: %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/api/predictions", `{`, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body: %d", rec.Code)
	}

	p.err = errors.New("model down")
	if rec := do(h, http.MethodPost, "/api/predictions", `{"message":"India"}`, ""); rec.Code != http.StatusBadGateway {
		t.Fatalf("failing run: %d", rec.Code)
	}
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	h := newTestServer("s3cret", &fakePredictor{})

	if rec := do(h, http.MethodGet, "/api/reports", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	bad, _ := SignToken("ops", []byte("other"), time.Minute)
	if rec := do(h, http.MethodGet, "/api/reports", "", bad); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with foreign token, got %d", rec.Code)
	}
	expired, _ := SignToken("ops", []byte("s3cret"), -time.Minute)
	if rec := do(h, http.MethodGet, "/api/reports", "", expired); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with expired token, got %d", rec.Code)
	}
	good, err := SignToken("ops", []byte("s3cret"), time.Minute)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	if rec := do(h, http.MethodGet, "/api/reports", "", good); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz must stay public, got %d", rec.Code)
	}
}
