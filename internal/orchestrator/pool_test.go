package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/conflictcast/internal/agent"
	"github.com/mohammad-safakhou/conflictcast/session"
	"github.com/mohammad-safakhou/conflictcast/session/inmemory"
)

func TestPoolCarriesConversationAcrossTurns(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{turns: [][]agent.Event{askTurn(), predictTurn()}}
	built := 0
	pool := NewPool(inmemory.NewInMemorySessionStore(), 0, func(_ context.Context, sess session.Session) (*Orchestrator, error) {
		built++
		return New(Options{Runner: runner, Team: testTeam(), Session: sess, ReportsDir: dir, Now: fixedClock})
	}, nil)

	first, err := pool.Turn(context.Background(), "", "India")
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if first.Done || first.SessionID == "" || first.Reply != "Which second country?" {
		t.Fatalf("unexpected first reply %+v", first)
	}
	if pool.Active() != 1 {
		t.Fatalf("expected one active conversation")
	}

	second, err := pool.Turn(context.Background(), first.SessionID, "Pakistan")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if !second.Done || second.Result != "India: 60%\nPakistan: 40%" || second.JSONPath == "" || second.TextPath == "" {
		t.Fatalf("unexpected second reply %+v", second)
	}
	if built != 1 {
		t.Fatalf("expected one orchestrator for the session, built %d", built)
	}
	if pool.Active() != 0 {
		t.Fatalf("finished conversation should be retired")
	}
}

func TestPoolRetiresFailedConversation(t *testing.T) {
	pool := NewPool(inmemory.NewInMemorySessionStore(), 0, func(_ context.Context, sess session.Session) (*Orchestrator, error) {
		return New(Options{Runner: &fakeRunner{err: errors.New("model down")}, Team: testTeam(), Session: sess})
	}, nil)
	if _, err := pool.Turn(context.Background(), "s1", "India"); err == nil {
		t.Fatalf("expected error")
	}
	if pool.Active() != 0 {
		t.Fatalf("failed conversation should be retired")
	}
	if _, err := pool.Turn(context.Background(), "s1", ""); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

// gateRunner holds its first Run until release is closed and answers it with
// a prediction. Later runs ask a question.
type gateRunner struct {
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (g *gateRunner) Run(ctx context.Context, start *agent.Agent, sess session.Session, input string, emit agent.Emit) (agent.Result, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()

	events := askTurn()
	if first {
		close(g.started)
		<-g.release
		events = predictTurn()
	}
	for _, e := range events {
		emit(e)
	}
	return agent.Result{}, nil
}

// ensureSignal reports every EnsureSession call on ensured.
type ensureSignal struct {
	session.Store
	ensured chan struct{}
}

func (s ensureSignal) EnsureSession(ctx context.Context, id string, ttl time.Duration) (session.Session, error) {
	sess, err := s.Store.EnsureSession(ctx, id, ttl)
	s.ensured <- struct{}{}
	return sess, err
}

func TestPoolQueuedTurnSkipsRetiredConversation(t *testing.T) {
	dir := t.TempDir()
	runner := &gateRunner{started: make(chan struct{}), release: make(chan struct{})}
	store := ensureSignal{Store: inmemory.NewInMemorySessionStore(), ensured: make(chan struct{}, 2)}

	var mu sync.Mutex
	var built []*Orchestrator
	pool := NewPool(store, 0, func(_ context.Context, sess session.Session) (*Orchestrator, error) {
		o, err := New(Options{Runner: runner, Team: testTeam(), Session: sess, ReportsDir: dir, Now: fixedClock})
		mu.Lock()
		built = append(built, o)
		mu.Unlock()
		return o, err
	}, nil)

	first := make(chan error, 1)
	var done Reply
	go func() {
		r, err := pool.Turn(context.Background(), "s1", "India and Pakistan")
		done = r
		first <- err
	}()
	<-runner.started
	<-store.ensured

	second := make(chan error, 1)
	var queued Reply
	go func() {
		r, err := pool.Turn(context.Background(), "s1", "Iran and Iraq")
		queued = r
		second <- err
	}()
	<-store.ensured
	// let the second turn reach the conversation lock
	time.Sleep(20 * time.Millisecond)
	close(runner.release)

	if err := <-first; err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("queued turn: %v", err)
	}
	if !done.Done || done.JSONPath == "" {
		t.Fatalf("first turn should finish the prediction, got %+v", done)
	}
	if queued.Done || queued.Reply != "Which second country?" {
		t.Fatalf("queued turn should start a new conversation, got %+v", queued)
	}
	mu.Lock()
	n := len(built)
	mu.Unlock()
	if n != 2 {
		t.Fatalf("queued turn ran on the retired orchestrator, built %d", n)
	}
	if pool.Active() != 1 {
		t.Fatalf("expected the new conversation to stay active, got %d", pool.Active())
	}
}
