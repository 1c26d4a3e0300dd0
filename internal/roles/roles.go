// Package roles defines the agents of a prediction run and the tools they
// share.
package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mohammad-safakhou/conflictcast/config"
	"github.com/mohammad-safakhou/conflictcast/internal/agent"
	"github.com/mohammad-safakhou/conflictcast/models"
	"github.com/mohammad-safakhou/conflictcast/tools/sources"
	"github.com/mohammad-safakhou/conflictcast/tools/web_fetch"
	"github.com/mohammad-safakhou/conflictcast/tools/web_search"
	"go.uber.org/zap"
)

// Agent names as shown to the models and reported in events.
const (
	RequirementAgentName = "Requirement Gathering Agent"
	PlanningAgentName    = "Planning Agent"
	PredictionAgentName  = "Prediction Agent"
	MilitaryAgentName    = "Military Data Agent"
	EconomicAgentName    = "Economic Data Agent"
	SentimentAgentName   = "Sentiment Data Agent"
	ReflectionAgentName  = "Reflection Agent"
	CitationsAgentName   = "Citations Agent"
)

// Tool names offered to the Prediction Agent.
const (
	MilitaryTool   = "military_data_agent"
	EconomicTool   = "economic_data_agent"
	SentimentTool  = "sentiment_data_agent"
	ReflectionTool = "ReflectionAgent"
	CitationsTool  = "CitationsAgent"

	SearchTool  = "web_search"
	LookupTool  = "lookup_sources"
	FetchTool   = "fetch_page"
	defaultHits = 5
)

// Temperature shared by every agent except Planning.
const Temperature = 0.2

// ErrNoSearcher is returned by NewTeam when Deps carries no web searcher.
var ErrNoSearcher = errors.New("no web searcher configured")

// Deps are the collaborators of one team.
type Deps struct {
	Runner      *agent.Runner
	Searcher    web_search.WebSearcher
	Fetcher     web_fetch.WebFetcher
	FetchPolicy config.FetchPolicy
	Routing     config.LLMRoutingConfig
	MaxResults  int
	Logger      *zap.Logger
}

// Team is the agent graph of one prediction run. Its sources index and the
// once-per-run guards live as long as the team.
type Team struct {
	Requirement *agent.Agent
	Planning    *agent.Agent
	Prediction  *agent.Agent
	Sources     *sources.Index
}

// NewTeam wires the phase agents and their tools.
func NewTeam(d Deps) (*Team, error) {
	if d.Searcher == nil {
		return nil, ErrNoSearcher
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.MaxResults <= 0 {
		d.MaxResults = defaultHits
	}
	idx, err := sources.NewIndex()
	if err != nil {
		return nil, err
	}
	logger := d.Logger.Named("roles")

	search := NewSearchTool(d.Searcher, idx, d.MaxResults, logger)
	lookup := NewLookupTool(idx)

	military := dataAgent(MilitaryAgentName, militaryPrompt, d.Routing.Military, search)
	economic := dataAgent(EconomicAgentName, economicPrompt, d.Routing.Economic, search)
	sentiment := dataAgent(SentimentAgentName, sentimentPrompt, d.Routing.Sentiment, search)
	reflection := dataAgent(ReflectionAgentName, reflectionPrompt, d.Routing.Reflection, lookup)
	citationTools := []agent.Tool{lookup}
	if d.Fetcher != nil {
		citationTools = append(citationTools, NewFetchTool(d.Fetcher, d.FetchPolicy))
	}
	citations := dataAgent(CitationsAgentName, citationsPrompt, d.Routing.Citations, citationTools...)

	prediction := &agent.Agent{
		Name:         PredictionAgentName,
		Instructions: predictionPrompt,
		Route:        d.Routing.Prediction,
		Temperature:  models.Float(Temperature),
		Tools: []agent.Tool{
			Once(agent.AsTool(d.Runner, military, MilitaryTool, "Gathers military strength figures for two countries.")),
			Once(agent.AsTool(d.Runner, economic, EconomicTool, "Fetches economic and resource capacity data for two countries.")),
			Once(agent.AsTool(d.Runner, sentiment, SentimentTool, "Fetches sentiment and social climate data for two countries.")),
			agent.AsTool(d.Runner, reflection, ReflectionTool, "Checks the gathered data for contradictions and balance."),
			agent.AsTool(d.Runner, citations, CitationsTool, "Compiles the sources behind the gathered data."),
		},
	}
	planning := &agent.Agent{
		Name:         PlanningAgentName,
		Instructions: planningPrompt,
		Route:        d.Routing.Planning,
		Handoffs:     []*agent.Agent{prediction},
	}
	planning.HandoffParameters = agent.ObjectSchema(map[string]string{
		"country1": "Name of the first country",
		"country2": "Name of the second country",
	}, "country1", "country2")
	requirement := &agent.Agent{
		Name:         RequirementAgentName,
		Instructions: requirementPrompt,
		Route:        d.Routing.Requirement,
		Temperature:  models.Float(Temperature),
		Handoffs:     []*agent.Agent{planning},
	}

	return &Team{Requirement: requirement, Planning: planning, Prediction: prediction, Sources: idx}, nil
}

// Close releases the sources index. It is safe on a nil Team.
func (t *Team) Close() error {
	if t == nil || t.Sources == nil {
		return nil
	}
	return t.Sources.Close()
}

func dataAgent(name, prompt, route string, tools ...agent.Tool) *agent.Agent {
	return &agent.Agent{
		Name:         name,
		Instructions: prompt,
		Route:        route,
		Temperature:  models.Float(Temperature),
		Tools:        tools,
	}
}

// NewSearchTool runs one web search, indexes the hits and returns the
// provider body verbatim.
func NewSearchTool(s web_search.WebSearcher, idx *sources.Index, k int, logger *zap.Logger) agent.Tool {
	return &agent.FunctionTool{
		ToolName:        SearchTool,
		ToolDescription: "Search the web and return the raw results.",
		Schema:          agent.ObjectSchema(map[string]string{"query": "The search query."}, "query"),
		Fn: func(ctx context.Context, arguments json.RawMessage) (string, error) {
			q, err := agent.StringArg(arguments, "query")
			if err != nil {
				return "", err
			}
			resp, err := s.Discover(ctx, q, k)
			if err != nil {
				return "", fmt.Errorf("web search: %w", err)
			}
			if idx != nil {
				if n, err := idx.Add(resp); err != nil {
					logger.Warn("index search hits", zap.String("query", q), zap.Error(err))
				} else {
					logger.Debug("indexed search hits", zap.String("query", q), zap.Int("added", n))
				}
			}
			if len(resp.Raw) > 0 {
				return string(resp.Raw), nil
			}
			out, err := json.Marshal(resp.Results)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

// NewLookupTool queries the sources found so far in the run.
func NewLookupTool(idx *sources.Index) agent.Tool {
	return &agent.FunctionTool{
		ToolName:        LookupTool,
		ToolDescription: "Look up web pages already found during this analysis.",
		Schema:          agent.ObjectSchema(map[string]string{"query": "Keywords to match against titles and snippets."}, "query"),
		Fn: func(ctx context.Context, arguments json.RawMessage) (string, error) {
			q, err := agent.StringArg(arguments, "query")
			if err != nil {
				return "", err
			}
			if idx.Len() == 0 {
				return "No sources have been found yet.", nil
			}
			hits, err := idx.Query(q, 10)
			if err != nil {
				return "", err
			}
			if len(hits) == 0 {
				return fmt.Sprintf("No sources match %q.", q), nil
			}
			return sources.Cite(hits), nil
		},
	}
}

// NewFetchTool fetches a page and returns its readable text. Hosts the
// policy rejects are reported to the model without a request.
func NewFetchTool(f web_fetch.WebFetcher, policy config.FetchPolicy) agent.Tool {
	return &agent.FunctionTool{
		ToolName:        FetchTool,
		ToolDescription: "Fetch a web page and return its main text.",
		Schema:          agent.ObjectSchema(map[string]string{"url": "Absolute http(s) URL of the page."}, "url"),
		Fn: func(ctx context.Context, arguments json.RawMessage) (string, error) {
			u, err := agent.StringArg(arguments, "url")
			if err != nil {
				return "", err
			}
			if !policy.Permits(u) {
				return fmt.Sprintf("Fetching %s is not permitted.", u), nil
			}
			res, err := f.Exec(ctx, u)
			if err != nil {
				// a dead link is information for the citations, not a failed run
				return fmt.Sprintf("Could not fetch %s: %v", u, err), nil
			}
			out, err := json.Marshal(map[string]any{
				"url":          res.URL,
				"title":        res.Title,
				"site_name":    res.SiteName,
				"published_at": res.PublishedAt,
				"status":       res.Status,
				"text":         res.Text,
			})
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

// onceTool answers every call after the first successful one with the first
// result.
type onceTool struct {
	agent.Tool
	mu     sync.Mutex
	done   bool
	result string
}

// Once limits t to one real invocation per team.
func Once(t agent.Tool) agent.Tool {
	return &onceTool{Tool: t}
}

func (o *onceTool) Call(ctx context.Context, arguments json.RawMessage) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return o.result, nil
	}
	out, err := o.Tool.Call(ctx, arguments)
	if err != nil {
		return "", err
	}
	o.done, o.result = true, out
	return out, nil
}
