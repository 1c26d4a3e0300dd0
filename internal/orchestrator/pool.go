package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mohammad-safakhou/conflictcast/session"
	"go.uber.org/zap"
)

// Factory builds an orchestrator bound to sess.
type Factory func(ctx context.Context, sess session.Session) (*Orchestrator, error)

// Reply is the outcome of one turn driven through a Pool.
type Reply struct {
	SessionID string `json:"session_id"`
	Done      bool   `json:"done"`
	Reply     string `json:"reply,omitempty"`
	Result    string `json:"result,omitempty"`
	JSONPath  string `json:"json_path,omitempty"`
	TextPath  string `json:"text_path,omitempty"`
	Fallback  string `json:"fallback_path,omitempty"`
}

// ErrEmptyMessage is returned by Turn for a blank message.
var ErrEmptyMessage = errors.New("message is empty")

// Pool keeps one orchestrator per live session so turns of a conversation
// may arrive in separate requests. Turns of the same session are serialized.
type Pool struct {
	sessions session.Store
	ttl      time.Duration
	factory  Factory
	logger   *zap.Logger

	mu     sync.Mutex
	active map[string]*poolEntry
}

type poolEntry struct {
	mu sync.Mutex
	o  *Orchestrator
	// retired is set under mu once o is closed.
	retired bool
}

// NewPool returns a pool that builds orchestrators with factory and keeps
// sessions alive for ttl.
func NewPool(sessions session.Store, ttl time.Duration, factory Factory, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		sessions: sessions,
		ttl:      ttl,
		factory:  factory,
		logger:   logger.Named("pool"),
		active:   make(map[string]*poolEntry),
	}
}

// Turn runs message on sessionID, creating the session when it is empty or
// unknown. A finished prediction writes its report and retires the
// orchestrator.
func (p *Pool) Turn(ctx context.Context, sessionID, message string) (Reply, error) {
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}
	sess, err := p.sessions.EnsureSession(ctx, sessionID, p.ttl)
	if err != nil {
		return Reply{}, err
	}
	entry, err := p.lock(ctx, sess)
	if err != nil {
		return Reply{}, err
	}
	defer entry.mu.Unlock()

	out := Reply{SessionID: sess.ID()}
	res, err := entry.o.Turn(ctx, message)
	if err != nil {
		p.retire(sess.ID(), entry)
		return out, err
	}
	if !res.Done {
		out.Reply = res.Reply
		return out, nil
	}

	out.Done, out.Result = true, res.Result
	outcome, err := entry.o.WriteReport(ctx, res.Result, message)
	p.retire(sess.ID(), entry)
	if err != nil {
		return out, err
	}
	out.JSONPath, out.TextPath, out.Fallback = outcome.JSONPath, outcome.TextPath, outcome.Fallback
	return out, nil
}

// Active returns the number of conversations in flight.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// lock returns the live entry of sess with its mutex held. An entry retired
// while the caller waited is skipped and a fresh one is built.
func (p *Pool) lock(ctx context.Context, sess session.Session) (*poolEntry, error) {
	for {
		e, err := p.entry(ctx, sess)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		if !e.retired {
			return e, nil
		}
		e.mu.Unlock()
	}
}

func (p *Pool) entry(ctx context.Context, sess session.Session) (*poolEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.active[sess.ID()]; ok {
		return e, nil
	}
	o, err := p.factory(ctx, sess)
	if err != nil {
		return nil, err
	}
	e := &poolEntry{o: o}
	p.active[sess.ID()] = e
	return e, nil
}

// retire must be called with e.mu held.
func (p *Pool) retire(id string, e *poolEntry) {
	e.retired = true
	p.mu.Lock()
	if p.active[id] == e {
		delete(p.active, id)
	}
	p.mu.Unlock()
	if err := e.o.Close(); err != nil {
		p.logger.Warn("close orchestrator", zap.String("session", id), zap.Error(err))
	}
}
