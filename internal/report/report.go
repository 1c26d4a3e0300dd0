// Package report builds and persists the final analysis of a run.
package report

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ReportType is the fixed type recorded in every report's metadata.
const ReportType = "Country Comparison Analysis"

// TimestampLayout is the human-readable timestamp written into reports.
const TimestampLayout = "2006-01-02 15:04:05"

// Metadata describes when and why a report was produced.
type Metadata struct {
	Timestamp  string `json:"timestamp"`
	UserQuery  string `json:"user_query"`
	ReportType string `json:"report_type"`
}

// Summary carries derived counters.
type Summary struct {
	GeneratedAt       string `json:"generated_at"`
	TotalInteractions int    `json:"total_interactions"`
}

// Report is the persisted artifact of a completed run. It is never mutated
// after Assemble returns it.
type Report struct {
	Metadata            Metadata `json:"metadata"`
	AnalysisResult      string   `json:"analysis_result"`
	ConversationHistory []string `json:"conversation_history"`
	Summary             Summary  `json:"summary"`
}

// HistoryProvider is implemented by sessions that can render their turns.
type HistoryProvider interface {
	History(ctx context.Context) ([]string, error)
}

// Assembler turns a finished run into a Report.
type Assembler struct {
	now    func() time.Time
	logger *zap.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithLogger sets the logger used to record degraded history lookups.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assembler) { a.logger = l }
}

// NewAssembler returns an Assembler on the wall clock with a no-op logger.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble packages result and query with whatever history source exposes.
// A source without the history capability, or one whose accessor fails,
// yields an empty history.
func (a *Assembler) Assemble(ctx context.Context, source any, result, query string) Report {
	ts := a.now().Format(TimestampLayout)
	history := a.history(ctx, source)
	return Report{
		Metadata: Metadata{
			Timestamp:  ts,
			UserQuery:  query,
			ReportType: ReportType,
		},
		AnalysisResult:      result,
		ConversationHistory: history,
		Summary: Summary{
			GeneratedAt:       ts,
			TotalInteractions: len(history),
		},
	}
}

func (a *Assembler) history(ctx context.Context, source any) []string {
	switch src := source.(type) {
	case nil:
		return []string{}
	case []string:
		return append([]string{}, src...)
	case HistoryProvider:
		h, err := src.History(ctx)
		if err != nil {
			a.logger.Warn("conversation history unavailable", zap.Error(err))
			return []string{}
		}
		return append([]string{}, h...)
	default:
		a.logger.Debug("session has no history accessor")
		return []string{}
	}
}

// Assemble uses a default Assembler.
func Assemble(ctx context.Context, source any, result, query string) Report {
	return NewAssembler().Assemble(ctx, source, result, query)
}
