// Package orchestrator drives one conversation through the requirement,
// planning and prediction phases and turns the prediction into a report.
package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mohammad-safakhou/conflictcast/internal/agent"
	"github.com/mohammad-safakhou/conflictcast/internal/metrics"
	"github.com/mohammad-safakhou/conflictcast/internal/progress"
	"github.com/mohammad-safakhou/conflictcast/internal/report"
	"github.com/mohammad-safakhou/conflictcast/internal/roles"
	"github.com/mohammad-safakhou/conflictcast/session"
	"go.uber.org/zap"
)

// AgentRunner runs one user turn through the agent graph.
type AgentRunner interface {
	Run(ctx context.Context, start *agent.Agent, sess session.Session, input string, emit agent.Emit) (agent.Result, error)
}

// Archiver stores a copy of every persisted report.
type Archiver interface {
	SaveReport(ctx context.Context, name string, r report.Report) error
}

// phaseSteps maps phase agent names to progress step names.
var phaseSteps = map[string]string{
	roles.RequirementAgentName: progress.StepRequirementGathering,
	roles.PlanningAgentName:    progress.StepPlanning,
	roles.PredictionAgentName:  progress.StepPrediction,
}

// PhaseStep returns the progress step of a phase agent. Other names pass
// through unchanged.
func PhaseStep(agentName string) string {
	if step, ok := phaseSteps[agentName]; ok {
		return step
	}
	return agentName
}

// Options configures an Orchestrator.
type Options struct {
	Runner     AgentRunner
	Team       *roles.Team
	Session    session.Session
	ReportsDir string
	Archive    Archiver
	Console    *Console
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// Orchestrator owns one conversation. It is not safe for concurrent use.
type Orchestrator struct {
	runner    AgentRunner
	team      *roles.Team
	sess      session.Session
	dir       string
	archive   Archiver
	console   *Console
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
	assembler *report.Assembler
	tracker   progress.Tracker
	lastQuery string
}

// New builds an orchestrator from opts. Runner and Team are required.
func New(opts Options) (*Orchestrator, error) {
	if opts.Runner == nil || opts.Team == nil {
		return nil, errors.New("orchestrator: runner and team are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Console == nil {
		opts.Console = NewConsole(io.Discard, false)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReportsDir == "" {
		opts.ReportsDir = "reports"
	}
	logger := opts.Logger.Named("orchestrator")
	return &Orchestrator{
		runner:    opts.Runner,
		team:      opts.Team,
		sess:      opts.Session,
		dir:       opts.ReportsDir,
		archive:   opts.Archive,
		console:   opts.Console,
		metrics:   opts.Metrics,
		logger:    logger,
		now:       opts.Now,
		assembler: report.NewAssembler(report.WithClock(opts.Now), report.WithLogger(logger)),
	}, nil
}

// SessionID returns the id of the conversation session, or "" without one.
func (o *Orchestrator) SessionID() string {
	if o.sess == nil {
		return ""
	}
	return o.sess.ID()
}

// Progress returns the tracked percentage.
func (o *Orchestrator) Progress() float64 { return o.tracker.Percent() }

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	// Done is set once the Prediction Agent produced its answer.
	Done   bool
	Agent  string
	Reply  string
	Result string
}

// Turn feeds input to the Requirement Gathering Agent and follows the
// hand-off chain until an agent answers.
func (o *Orchestrator) Turn(ctx context.Context, input string) (TurnResult, error) {
	o.lastQuery = input
	var out TurnResult
	emit := func(e agent.Event) {
		switch e.Type {
		case agent.EventAgentUpdated:
			o.tracker.Advance(PhaseStep(e.Agent))
		case agent.EventToolCalled:
			pct, desc := o.tracker.Advance(e.Tool)
			o.console.Progress(pct, desc)
		case agent.EventMessageOutput:
			out.Agent = e.Agent
			if e.Agent == roles.PredictionAgentName {
				out.Done, out.Result = true, e.Content
				return
			}
			out.Reply = e.Content
			if e.Agent == roles.RequirementAgentName {
				o.console.AgentMessage(e.Content)
			}
		}
	}

	if _, err := o.runner.Run(ctx, o.team.Requirement, o.sess, input, emit); err != nil {
		o.metrics.RunFinished("failed")
		o.logger.Error("agent run failed", zap.String("session", o.SessionID()), zap.Error(err))
		return TurnResult{}, err
	}
	if out.Done {
		o.tracker.Complete()
	} else if out.Agent != "" && out.Agent != roles.RequirementAgentName {
		o.logger.Info("phase answered without handing off", zap.String("agent", out.Agent))
	}
	return out, nil
}

// Outcome describes the artifacts written for a prediction.
type Outcome struct {
	Report   report.Report
	JSONPath string
	TextPath string
	// Fallback is set when only the plain result could be written.
	Fallback string
}

// ErrReportNotWritten is returned when neither the report nor the fallback
// could be saved.
var ErrReportNotWritten = errors.New("report could not be written")

// WriteReport assembles the report from the session and saves it. When the
// pair cannot be written it saves the fallback artifact instead.
func (o *Orchestrator) WriteReport(ctx context.Context, result, query string) (Outcome, error) {
	r := o.assembler.Assemble(ctx, o.sess, result, query)
	name := report.DefaultName(o.now())
	jsonPath, textPath, err := report.Persist(r, o.dir, name)
	if err == nil {
		o.metrics.ReportWritten("json")
		o.metrics.ReportWritten("text")
		o.metrics.RunFinished("completed")
		if o.archive != nil {
			if aerr := o.archive.SaveReport(ctx, name, r); aerr != nil {
				o.logger.Warn("archive report", zap.String("name", name), zap.Error(aerr))
			} else {
				o.metrics.ReportWritten("archive")
			}
		}
		return Outcome{Report: r, JSONPath: jsonPath, TextPath: textPath}, nil
	}

	o.logger.Error("persist report", zap.String("dir", o.dir), zap.Error(err))
	o.console.Error("Error generating report", err)
	path, ferr := report.WriteFallback(o.dir, query, result, o.now())
	if ferr != nil {
		o.metrics.RunFinished("failed")
		o.logger.Error("write fallback report", zap.Error(ferr))
		return Outcome{Report: r}, fmt.Errorf("%w: %v; fallback: %v", ErrReportNotWritten, err, ferr)
	}
	o.metrics.ReportWritten("fallback")
	o.metrics.RunFinished("fallback")
	return Outcome{Report: r, Fallback: path}, nil
}

// Conversation runs the interactive loop on in until a prediction is
// reported or in is exhausted. Cancelling ctx ends the loop with ctx.Err()
// even while a read is blocked.
func (o *Orchestrator) Conversation(ctx context.Context, in io.Reader) error {
	o.console.Greet()
	lines, readErr, stop := readLines(in)
	defer close(stop)
	for {
		o.console.Prompt()
		var input string
		select {
		case <-ctx.Done():
			o.console.Farewell()
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				o.console.Farewell()
				return nil
			}
			input = strings.TrimSpace(line)
		}
		if input == "" {
			continue
		}
		res, err := o.Turn(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				o.console.Farewell()
				return ctx.Err()
			}
			o.console.Error("Analysis failed", err)
			return err
		}
		if !res.Done {
			continue
		}
		o.console.Result(res.Result)
		o.console.Generating()
		outcome, err := o.WriteReport(ctx, res.Result, o.lastQuery)
		switch {
		case err != nil:
			o.console.Error("Failed to save fallback report", err)
		case outcome.Fallback != "":
			o.console.Fallback(outcome.Fallback)
		default:
			o.console.Saved(outcome.Report, outcome.JSONPath, outcome.TextPath, o.dir)
		}
		o.console.Farewell()
		return nil
	}
}

// readLines scans in on its own goroutine. lines is closed at end of input,
// after the scan error (nil on EOF) is sent on errc. Closing stop releases
// a pending send.
func readLines(in io.Reader) (lines <-chan string, errc <-chan error, stop chan struct{}) {
	out := make(chan string)
	errs := make(chan error, 1)
	stop = make(chan struct{})
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-stop:
				return
			}
		}
		errs <- scanner.Err()
	}()
	return out, errs, stop
}

// Close releases the per-run resources of the team.
func (o *Orchestrator) Close() error {
	return o.team.Close()
}
