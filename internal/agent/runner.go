package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/conflictcast/config"
	"github.com/mohammad-safakhou/conflictcast/internal/metrics"
	"github.com/mohammad-safakhou/conflictcast/models"
	"github.com/mohammad-safakhou/conflictcast/provider"
	"github.com/mohammad-safakhou/conflictcast/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrMaxTurns is returned when an agent keeps calling tools past the turn
// budget.
var ErrMaxTurns = errors.New("agent exceeded max turns")

// DefaultMaxTurns bounds model round trips per Run.
const DefaultMaxTurns = 12

var runnerTracer trace.Tracer = otel.Tracer("conflictcast/internal/agent")

// EventType names what happened during a run.
type EventType string

const (
	EventAgentUpdated  EventType = "agent_updated"
	EventToolCalled    EventType = "tool_called"
	EventMessageOutput EventType = "message_output"
)

// Event is streamed to the caller while a run progresses.
type Event struct {
	Type      EventType
	Agent     string
	Tool      string
	Arguments string
	Content   string
}

// Emit receives run events. It may be nil.
type Emit func(Event)

// ModelResolver maps a route to a provider and model name.
type ModelResolver interface {
	Resolve(ctx context.Context, route string) (provider.Provider, string, error)
}

// RouteResolver resolves "provider:model" routes against a registry.
type RouteResolver struct {
	Registry *provider.Registry
}

func (r RouteResolver) Resolve(ctx context.Context, route string) (provider.Provider, string, error) {
	name, model, err := config.ParseRoute(route)
	if err != nil {
		return nil, "", err
	}
	p, err := r.Registry.Get(ctx, name)
	if err != nil {
		return nil, "", err
	}
	return p, model, nil
}

// Result is the outcome of a completed run.
type Result struct {
	LastAgent   *Agent
	FinalOutput string
	NewItems    []session.Item
}

// Runner drives the model/tool loop.
type Runner struct {
	models   ModelResolver
	maxTurns int
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxTurns caps model calls per Run. Non-positive n keeps the default.
func WithMaxTurns(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// WithLogger sets the runner logger. Nil is ignored.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records model requests and tool calls on m.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner returns a Runner that resolves agent routes through resolver.
func NewRunner(resolver ModelResolver, opts ...RunnerOption) *Runner {
	r := &Runner{models: resolver, maxTurns: DefaultMaxTurns, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run feeds input to start with the session's prior turns, follows hand-offs
// and tool calls, and appends every new turn to the session.
func (r *Runner) Run(ctx context.Context, start *Agent, sess session.Session, input string, emit Emit) (Result, error) {
	ctx, span := runnerTracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.start", start.Name),
	))
	defer span.End()
	if sess != nil {
		span.SetAttributes(attribute.String("session.id", sess.ID()))
	}

	var msgs []models.Message
	if sess != nil {
		prior, err := sess.Items(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return Result{}, fmt.Errorf("load session: %w", err)
		}
		msgs = ItemsToMessages(prior)
	}

	userItem := session.Item{Role: session.RoleUser, Type: session.TypeMessage, Content: input, CreatedAt: r.now()}
	msgs = append(msgs, models.Message{Role: models.RoleUser, Content: input})

	st := &loopState{current: start, msgs: msgs, items: []session.Item{userItem}, emit: emit, handoffs: true}
	st.emitEvent(Event{Type: EventAgentUpdated, Agent: start.Name})

	runErr := r.loop(ctx, st)

	if sess != nil {
		if err := sess.AddItems(ctx, st.items...); err != nil {
			r.logger.Warn("persist session items", zap.String("session", sess.ID()), zap.Error(err))
			if runErr == nil {
				runErr = fmt.Errorf("save session: %w", err)
			}
		}
	}
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return Result{LastAgent: st.current, NewItems: st.items}, runErr
	}
	span.SetAttributes(attribute.String("agent.last", st.current.Name))
	return Result{LastAgent: st.current, FinalOutput: st.final, NewItems: st.items}, nil
}

type loopState struct {
	current  *Agent
	msgs     []models.Message
	items    []session.Item
	final    string
	emit     Emit
	handoffs bool
}

func (s *loopState) emitEvent(e Event) {
	if s.emit != nil {
		s.emit(e)
	}
}

func (r *Runner) loop(ctx context.Context, st *loopState) error {
	for turn := 0; turn < r.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		agent := st.current
		prov, model, err := r.models.Resolve(ctx, agent.Route)
		if err != nil {
			return fmt.Errorf("%s: resolve model: %w", agent.Name, err)
		}

		req := models.CompletionRequest{
			Model:       model,
			System:      agent.Instructions,
			Messages:    st.msgs,
			Tools:       toolSpecs(agent, st.handoffs),
			Temperature: agent.Temperature,
		}
		resp, err := prov.Complete(ctx, req)
		r.metrics.LLMRequest(prov.Name(), err)
		if err != nil {
			return fmt.Errorf("%s: model call: %w", agent.Name, err)
		}
		r.logger.Debug("model responded",
			zap.String("agent", agent.Name),
			zap.String("model", model),
			zap.Int("tool_calls", len(resp.ToolCalls)),
		)

		if len(resp.ToolCalls) == 0 {
			st.msgs = append(st.msgs, models.Message{Role: models.RoleAssistant, Content: resp.Content})
			st.items = append(st.items, session.Item{
				Role: session.RoleAssistant, Agent: agent.Name, Type: session.TypeMessage,
				Content: resp.Content, CreatedAt: r.now(),
			})
			st.final = resp.Content
			st.emitEvent(Event{Type: EventMessageOutput, Agent: agent.Name, Content: resp.Content})
			return nil
		}

		st.msgs = append(st.msgs, models.Message{Role: models.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		if resp.Content != "" {
			st.items = append(st.items, session.Item{
				Role: session.RoleAssistant, Agent: agent.Name, Type: session.TypeMessage,
				Content: resp.Content, CreatedAt: r.now(),
			})
		}
		for _, tc := range resp.ToolCalls {
			st.items = append(st.items, session.Item{
				Role: session.RoleAssistant, Agent: agent.Name, Type: session.TypeToolCall,
				ToolName: tc.Name, ToolCallID: tc.ID, Arguments: tc.Arguments, CreatedAt: r.now(),
			})
		}

		var next *Agent
		for _, tc := range resp.ToolCalls {
			output, target, err := r.dispatch(ctx, st, agent, tc, next != nil)
			if err != nil {
				return err
			}
			if target != nil && next == nil {
				next = target
			}
			st.msgs = append(st.msgs, models.Message{Role: models.RoleTool, ToolCallID: tc.ID, Name: tc.Name, Content: output})
			st.items = append(st.items, session.Item{
				Role: session.RoleTool, Type: session.TypeToolResult,
				ToolName: tc.Name, ToolCallID: tc.ID, Content: output, CreatedAt: r.now(),
			})
		}
		if next != nil {
			st.current = next
			st.emitEvent(Event{Type: EventAgentUpdated, Agent: next.Name})
		}
	}
	return fmt.Errorf("%s: %w (%d)", st.current.Name, ErrMaxTurns, r.maxTurns)
}

// dispatch executes one tool call. A hand-off returns its target agent; only
// the first hand-off of a response is honoured.
func (r *Runner) dispatch(ctx context.Context, st *loopState, agent *Agent, tc models.ToolCall, handedOff bool) (string, *Agent, error) {
	if st.handoffs {
		for _, h := range agent.Handoffs {
			if HandoffToolName(h) != tc.Name {
				continue
			}
			if handedOff {
				return "Ignored: a transfer was already requested in this turn.", nil, nil
			}
			out, _ := json.Marshal(map[string]string{"assistant": h.Name})
			return string(out), h, nil
		}
	}

	for _, t := range agent.Tools {
		if t.Name() != tc.Name {
			continue
		}
		st.emitEvent(Event{Type: EventToolCalled, Agent: agent.Name, Tool: tc.Name, Arguments: tc.Arguments})
		r.metrics.ToolCalled(tc.Name)

		tctx, span := runnerTracer.Start(ctx, "agent.tool", trace.WithAttributes(
			attribute.String("agent.name", agent.Name),
			attribute.String("tool.name", tc.Name),
		))
		out, err := t.Call(tctx, json.RawMessage(tc.Arguments))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return "", nil, fmt.Errorf("%s: tool %s: %w", agent.Name, tc.Name, err)
		}
		span.End()
		return out, nil, nil
	}

	r.logger.Warn("model called unknown tool", zap.String("agent", agent.Name), zap.String("tool", tc.Name))
	return fmt.Sprintf("Error: tool %q is not available to %s.", tc.Name, agent.Name), nil, nil
}

// AsTool exposes a as a tool taking {"input": "..."}. Each call runs a
// fresh conversation with a: no session, no events and no hand-offs.
func AsTool(r *Runner, a *Agent, name, description string) Tool {
	return &FunctionTool{
		ToolName:        name,
		ToolDescription: description,
		Schema:          ObjectSchema(map[string]string{"input": "The request for the " + a.Name + "."}, "input"),
		Fn: func(ctx context.Context, arguments json.RawMessage) (string, error) {
			input, err := StringArg(arguments, "input")
			if err != nil {
				return "", err
			}
			st := &loopState{
				current: a,
				msgs:    []models.Message{{Role: models.RoleUser, Content: input}},
			}
			if err := r.loop(ctx, st); err != nil {
				return "", err
			}
			return st.final, nil
		},
	}
}

func toolSpecs(a *Agent, handoffs bool) []models.ToolSpec {
	var specs []models.ToolSpec
	for _, t := range a.Tools {
		specs = append(specs, models.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}
	if !handoffs {
		return specs
	}
	for _, h := range a.Handoffs {
		params := h.HandoffParameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		specs = append(specs, models.ToolSpec{
			Name:        HandoffToolName(h),
			Description: fmt.Sprintf("Handoff to the %s agent to handle the request.", h.Name),
			Parameters:  params,
		})
	}
	return specs
}

// ItemsToMessages rebuilds chat turns from persisted items. Consecutive tool
// calls from one response are merged into a single assistant message.
func ItemsToMessages(items []session.Item) []models.Message {
	var out []models.Message
	for _, it := range items {
		switch it.Type {
		case session.TypeToolCall:
			call := models.ToolCall{ID: it.ToolCallID, Name: it.ToolName, Arguments: it.Arguments}
			// calls join the assistant text or calls of the same response
			if n := len(out); n > 0 && out[n-1].Role == models.RoleAssistant {
				out[n-1].ToolCalls = append(out[n-1].ToolCalls, call)
				continue
			}
			out = append(out, models.Message{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{call}})
		case session.TypeToolResult:
			out = append(out, models.Message{Role: models.RoleTool, ToolCallID: it.ToolCallID, Name: it.ToolName, Content: it.Content})
		default:
			role := models.RoleUser
			if it.Role == session.RoleAssistant {
				role = models.RoleAssistant
			}
			out = append(out, models.Message{Role: role, Content: it.Content})
		}
	}
	return out
}
