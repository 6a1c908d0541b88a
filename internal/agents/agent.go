// Package agents defines the four specialized generation roles behind one
// contract, and the registry the orchestrator resolves them from.
package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/llm"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// jsonMaxRetries bounds structured-output regeneration attempts per call.
const jsonMaxRetries = 2

// Context carries everything an agent may need: the job, the persona
// resolved for the agent's role, and the outputs of earlier steps. Later
// agents read what earlier agents wrote.
type Context struct {
	Job       *types.Job
	Persona   *types.Persona
	Iteration int

	Research *types.ResearchBrief
	Draft    *types.ArticleDraft
	SEO      *types.SEOReport
	// PriorQA holds the previous iteration's verdict; the writer uses its
	// feedback as revision guidance on iterations after the first.
	PriorQA *types.QAReport
}

// Result is the outcome of one agent invocation. A returned error from
// Execute is a hard failure; a Result with ContinueToNext=false is a normal
// quality-gate branch, not an error.
type Result struct {
	Output           json.RawMessage
	Usage            types.TokenUsage
	EstimatedCostUSD float64
	ContinueToNext   bool
	Feedback         string
}

// Agent is one specialized generation role.
type Agent interface {
	// Type identifies the agent's role.
	Type() types.AgentType
	// ValidateInput reports whether the context carries what Execute needs.
	ValidateInput(ac *Context) error
	// OutputSchema returns the JSON Schema the agent's output satisfies.
	OutputSchema() string
	// Execute runs the agent. A non-nil error aborts the job.
	Execute(ctx context.Context, ac *Context) (*Result, error)
}

// Registry maps agent roles to implementations. An unregistered role is a
// fatal configuration error for the orchestrator.
type Registry struct {
	agents map[types.AgentType]Agent
}

// NewRegistry builds a registry with the four standard agents wired to the
// given provider client.
func NewRegistry(client llm.Client) *Registry {
	r := &Registry{agents: make(map[types.AgentType]Agent)}
	r.Register(NewResearchAgent(client))
	r.Register(NewWriterAgent(client))
	r.Register(NewSEOAgent(client))
	r.Register(NewQAAgent(client))
	return r
}

// Register adds or replaces an agent implementation.
func (r *Registry) Register(a Agent) {
	r.agents[a.Type()] = a
}

// Get returns the agent for a role, and whether one is registered.
func (r *Registry) Get(t types.AgentType) (Agent, bool) {
	a, ok := r.agents[t]
	return a, ok
}

// requestFromPersona builds the base completion request for a persona.
func requestFromPersona(p *types.Persona, prompt string) llm.CompletionRequest {
	return llm.CompletionRequest{
		Model:           p.Model,
		System:          p.SystemInstructions,
		Prompt:          prompt,
		Temperature:     p.Temperature,
		MaxOutputTokens: p.MaxTokens,
	}
}

// validateBase checks the fields every agent needs.
func validateBase(t types.AgentType, ac *Context) error {
	if ac == nil || ac.Job == nil {
		return fmt.Errorf("%s agent: job is required", t)
	}
	if ac.Job.Keyword == "" {
		return fmt.Errorf("%s agent: job keyword is empty", t)
	}
	if ac.Persona == nil {
		return fmt.Errorf("%s agent: persona is required", t)
	}
	return nil
}
