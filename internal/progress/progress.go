// Package progress maps pipeline phases and tool calls to a completion
// percentage for the console display.
package progress

import "fmt"

// Step is a named phase or tool invocation with a fixed percentage.
type Step struct {
	Name        string
	Description string
	Value       int
}

// Step names as emitted by the orchestrator.
const (
	StepRequirementGathering = "RequirementGatheringAgent"
	StepPlanning             = "PlanningAgent"
	StepPrediction           = "Prediction Agent"
	StepMilitary             = "military_data_agent"
	StepEconomic             = "economic_data_agent"
	StepSentiment            = "sentiment_data_agent"
	StepReflection           = "ReflectionAgent"
	StepCitations            = "CitationsAgent"
)

const (
	// RepeatIncrement is added per call of a repeatable step.
	RepeatIncrement = 2.0
	// RepeatCap bounds repeatable steps; only the final message reaches 100.
	RepeatCap = 95.0
)

var steps = []Step{
	{StepRequirementGathering, "Collecting the two countries for comparison...", 10},
	{StepPlanning, "Designing the research plan...", 20},
	{StepPrediction, "Starting the prediction process...", 30},
	{StepMilitary, "Gathering military strength and weapons data...", 45},
	{StepEconomic, "Collecting economic and resource information...", 60},
	{StepSentiment, "Analyzing public opinion and morale...", 75},
	{StepReflection, "Checking consistency and refining reasoning...", 80},
	{StepCitations, "Compiling and verifying sources...", 90},
}

var (
	byName     = make(map[string]Step, len(steps))
	repeatable = map[string]bool{StepReflection: true, StepCitations: true}
)

func init() {
	for _, s := range steps {
		byName[s.Name] = s
	}
}

// Steps returns a copy of the step table in pipeline order.
func Steps() []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

// Lookup returns the step registered under name.
func Lookup(name string) (Step, bool) {
	s, ok := byName[name]
	return s, ok
}

// IsRepeatable reports whether name may be invoked more than once per run.
func IsRepeatable(name string) bool { return repeatable[name] }

// Advance returns the percentage and description after step name completes,
// given the last known percentage. Unknown names leave the percentage as is.
func Advance(name string, previous float64) (float64, string) {
	if repeatable[name] {
		next := previous + RepeatIncrement
		if next > RepeatCap {
			next = RepeatCap
		}
		return next, byName[name].Description
	}
	if s, ok := byName[name]; ok {
		return float64(s.Value), s.Description
	}
	return previous, fmt.Sprintf("Running %s...", name)
}

// Tracker holds the current percentage for one run.
type Tracker struct {
	current     float64
	description string
}

// Advance moves the tracker and returns the new state.
func (t *Tracker) Advance(name string) (float64, string) {
	t.current, t.description = Advance(name, t.current)
	return t.current, t.description
}

// Percent returns the current percentage.
func (t *Tracker) Percent() float64 { return t.current }

// Description returns the description of the last advanced step.
func (t *Tracker) Description() string { return t.description }

// Complete marks the run finished.
func (t *Tracker) Complete() {
	t.current = 100
	t.description = "Prediction ready."
}
