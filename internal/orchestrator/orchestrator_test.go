package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/conflictcast/internal/agent"
	"github.com/mohammad-safakhou/conflictcast/internal/metrics"
	"github.com/mohammad-safakhou/conflictcast/internal/progress"
	"github.com/mohammad-safakhou/conflictcast/internal/report"
	"github.com/mohammad-safakhou/conflictcast/internal/roles"
	"github.com/mohammad-safakhou/conflictcast/session"
	"github.com/mohammad-safakhou/conflictcast/session/inmemory"
)

// fakeRunner replays one scripted event list per Run call and records the
// user input in the session.
type fakeRunner struct {
	turns  [][]agent.Event
	err    error
	inputs []string
}

func (f *fakeRunner) Run(ctx context.Context, start *agent.Agent, sess session.Session, input string, emit agent.Emit) (agent.Result, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return agent.Result{}, f.err
	}
	if len(f.turns) == 0 {
		return agent.Result{}, errors.New("unexpected turn")
	}
	events := f.turns[0]
	f.turns = f.turns[1:]
	items := []session.Item{{Role: session.RoleUser, Type: session.TypeMessage, Content: input}}
	for _, e := range events {
		emit(e)
		if e.Type == agent.EventMessageOutput {
			items = append(items, session.Item{Role: session.RoleAssistant, Agent: e.Agent, Type: session.TypeMessage, Content: e.Content})
		}
	}
	if sess != nil {
		_ = sess.AddItems(ctx, items...)
	}
	return agent.Result{}, nil
}

type fakeArchive struct {
	names []string
	err   error
}

func (f *fakeArchive) SaveReport(_ context.Context, name string, _ report.Report) error {
	if f.err != nil {
		return f.err
	}
	f.names = append(f.names, name)
	return nil
}

func testTeam() *roles.Team {
	return &roles.Team{
		Requirement: &agent.Agent{Name: roles.RequirementAgentName},
		Planning:    &agent.Agent{Name: roles.PlanningAgentName},
		Prediction:  &agent.Agent{Name: roles.PredictionAgentName},
	}
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)
}

func askTurn() []agent.Event {
	return []agent.Event{
		{Type: agent.EventAgentUpdated, Agent: roles.RequirementAgentName},
		{Type: agent.EventMessageOutput, Agent: roles.RequirementAgentName, Content: "Which second country?"},
	}
}

func predictTurn() []agent.Event {
	return []agent.Event{
		{Type: agent.EventAgentUpdated, Agent: roles.RequirementAgentName},
		{Type: agent.EventAgentUpdated, Agent: roles.PlanningAgentName},
		{Type: agent.EventAgentUpdated, Agent: roles.PredictionAgentName},
		{Type: agent.EventToolCalled, Agent: roles.PredictionAgentName, Tool: roles.MilitaryTool},
		{Type: agent.EventToolCalled, Agent: roles.PredictionAgentName, Tool: roles.ReflectionTool},
		{Type: agent.EventMessageOutput, Agent: roles.PredictionAgentName, Content: "India: 60%\nPakistan: 40%"},
	}
}

func TestPhaseStep(t *testing.T) {
	cases := map[string]string{
		roles.RequirementAgentName: progress.StepRequirementGathering,
		roles.PlanningAgentName:    progress.StepPlanning,
		roles.PredictionAgentName:  progress.StepPrediction,
		"military_data_agent":      "military_data_agent",
	}
	for in, want := range cases {
		if got := PhaseStep(in); got != want {
			t.Fatalf("PhaseStep(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConversationWritesReport(t *testing.T) {
	dir := t.TempDir()
	sess, _ := inmemory.NewInMemorySessionStore().EnsureSession(context.Background(), "", 0)
	runner := &fakeRunner{turns: [][]agent.Event{askTurn(), predictTurn()}}
	archive := &fakeArchive{}
	var out bytes.Buffer

	o, err := New(Options{
		Runner:     runner,
		Team:       testTeam(),
		Session:    sess,
		ReportsDir: dir,
		Archive:    archive,
		Console:    NewConsole(&out, false),
		Metrics:    metrics.New(),
		Now:        fixedClock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := o.Conversation(context.Background(), strings.NewReader("India\n\nPakistan\n")); err != nil {
		t.Fatalf("Conversation: %v", err)
	}

	if len(runner.inputs) != 2 || runner.inputs[1] != "Pakistan" {
		t.Fatalf("unexpected inputs %v", runner.inputs)
	}
	text := out.String()
	for _, want := range []string{
		"Welcome! Which two countries do you want to compare?",
		"Which second country?",
		"\rProgress: 45.0% - Gathering military strength and weapons data...",
		"\rProgress: 47.0% - Checking consistency and refining reasoning...",
		"Generating report...",
		"Report generated successfully!",
		"Thank you for using the country comparison tool!",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	if o.Progress() != 100 {
		t.Fatalf("expected completed progress, got %v", o.Progress())
	}

	name := report.DefaultName(fixedClock())
	r, err := report.Load(filepath.Join(dir, name+".json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.Metadata.UserQuery != "Pakistan" || r.AnalysisResult != "India: 60%\nPakistan: 40%" {
		t.Fatalf("unexpected report: %+v", r)
	}
	if r.Summary.TotalInteractions != 4 || len(r.ConversationHistory) != 4 {
		t.Fatalf("expected 4 history turns, got %+v", r.ConversationHistory)
	}
	if _, err := os.Stat(filepath.Join(dir, name+".txt")); err != nil {
		t.Fatalf("text report missing: %v", err)
	}
	if len(archive.names) != 1 || archive.names[0] != name {
		t.Fatalf("report not archived: %v", archive.names)
	}
}

func TestTurnReportsReply(t *testing.T) {
	o, _ := New(Options{Runner: &fakeRunner{turns: [][]agent.Event{askTurn()}}, Team: testTeam()})
	res, err := o.Turn(context.Background(), "India")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if res.Done || res.Reply != "Which second country?" || res.Agent != roles.RequirementAgentName {
		t.Fatalf("unexpected turn result %+v", res)
	}
	if o.Progress() != 10 {
		t.Fatalf("expected requirement progress 10, got %v", o.Progress())
	}
}

func TestTurnErrorIsTerminal(t *testing.T) {
	var out bytes.Buffer
	o, _ := New(Options{Runner: &fakeRunner{err: errors.New("model down")}, Team: testTeam(), Console: NewConsole(&out, false)})
	err := o.Conversation(context.Background(), strings.NewReader("India and Pakistan\n"))
	if err == nil || !strings.Contains(err.Error(), "model down") {
		t.Fatalf("expected run error, got %v", err)
	}
	if !strings.Contains(out.String(), "Analysis failed: model down") {
		t.Fatalf("error not shown to the user:\n%s", out.String())
	}
}

func TestWriteReportFallsBack(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "reports")
	// a regular file where the directory should be makes Persist fail
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	o, _ := New(Options{Runner: &fakeRunner{}, Team: testTeam(), ReportsDir: blocker, Now: fixedClock})
	_, err := o.WriteReport(context.Background(), "India: 60%", "India vs Pakistan")
	if !errors.Is(err, ErrReportNotWritten) {
		t.Fatalf("expected ErrReportNotWritten when both writes fail, got %v", err)
	}
}

func TestWriteReportArchiveFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	o, _ := New(Options{Runner: &fakeRunner{}, Team: testTeam(), ReportsDir: dir, Archive: &fakeArchive{err: errors.New("db down")}, Now: fixedClock})
	outcome, err := o.WriteReport(context.Background(), "India: 60%", "India vs Pakistan")
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if outcome.JSONPath == "" || outcome.Fallback != "" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if outcome.Report.Summary.TotalInteractions != 0 {
		t.Fatalf("no session means no history, got %d", outcome.Report.Summary.TotalInteractions)
	}
}

func TestConversationEOF(t *testing.T) {
	var out bytes.Buffer
	o, _ := New(Options{Runner: &fakeRunner{}, Team: testTeam(), Console: NewConsole(&out, false)})
	if err := o.Conversation(context.Background(), strings.NewReader("")); err != nil {
		t.Fatalf("Conversation: %v", err)
	}
	if !strings.Contains(out.String(), "Thank you for using") {
		t.Fatalf("missing farewell:\n%s", out.String())
	}
}

func TestConversationStopsOnCancel(t *testing.T) {
	var out bytes.Buffer
	o, _ := New(Options{Runner: &fakeRunner{}, Team: testTeam(), Console: NewConsole(&out, false)})
	// nothing is ever written, so every read blocks
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Conversation(ctx, r) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Conversation did not return after cancel")
	}
	if !strings.Contains(out.String(), "Thank you for using") {
		t.Fatalf("missing farewell:\n%s", out.String())
	}
}
