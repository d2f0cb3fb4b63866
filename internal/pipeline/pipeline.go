// Package pipeline orchestrates one retrieval-augmented turn: retrieve chunks
// for a query, read the conversation window, compose the prompt, generate
// the answer and persist the exchange.
//
// The orchestrator never panics or returns a bare error to its caller.
// Every failure is reported in Result.Response as a plain message, with the
// wrapped cause kept in Result.Err for verbose views.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/raglab-go/internal/budget"
	"github.com/54b3r/raglab-go/internal/logging"
	"github.com/54b3r/raglab-go/internal/memory"
	"github.com/54b3r/raglab-go/internal/prompt"
	"github.com/54b3r/raglab-go/internal/rag"
	"github.com/54b3r/raglab-go/internal/router"
)

var (
	// ErrTimeout marks a run that hit its deadline or was canceled.
	ErrTimeout = errors.New("pipeline: timed out")
	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("pipeline: query is empty")
	// ErrNoRoute is returned when the router produced no decision.
	ErrNoRoute = errors.New("pipeline: route not determined")
)

// Generator produces an answer for a composed prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Router chooses the dataset for a query. A nil decision means the route
// could not be determined.
type Router interface {
	Route(ctx context.Context, query string) (*router.RouteDecision, error)
}

// Request is one user turn.
type Request struct {
	// ConversationID keys the conversation history.
	ConversationID string
	// Query is the user's question as typed.
	Query string
	// Dataset is the collection to retrieve from. Empty selects the
	// configured default.
	Dataset string
}

// Result is what a run hands back for display and introspection.
type Result struct {
	// Response is the model answer, or a user-facing error message.
	Response string
	// Prompt is the composed prompt, empty if the run failed before
	// composition.
	Prompt string
	// Retrieval is the tagged retrieval outcome.
	Retrieval rag.RetrievalResult
	// Decision is the routing decision for RunRouted.
	Decision *router.RouteDecision
	// Warnings lists degraded-but-successful conditions such as fallback chunks.
	Warnings []string
	// PromptTokens is the estimated prompt size.
	PromptTokens int
	// Err is the wrapped cause when the run failed.
	Err error
}

// OK reports whether the run produced a model answer.
func (r Result) OK() bool { return r.Err == nil }

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	Retriever rag.Retriever
	Memory    memory.Store
	Generator Generator
	// Router is only required by RunRouted.
	Router Router
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithTemplate sets the prompt template.
func WithTemplate(t prompt.Template) Option {
	return func(p *Pipeline) { p.template = t }
}

// WithWindow sets the number of history turns placed in the prompt.
func WithWindow(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.window = n
		}
	}
}

// WithRegisterer registers the pipeline metrics into reg instead of a
// private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Pipeline) { p.reg = reg }
}

// Pipeline runs retrieval-augmented turns. It holds no per-run state and is
// safe for concurrent use; concurrent turns on one conversation race in the
// memory store as documented there.
type Pipeline struct {
	deps     Deps
	cfg      Config
	template prompt.Template
	window   int
	reg      prometheus.Registerer
	metrics  *pipelineMetrics
}

// New builds a Pipeline. Retriever, Memory and Generator are required.
func New(deps Deps, cfg Config, opts ...Option) (*Pipeline, error) {
	if deps.Retriever == nil || deps.Generator == nil {
		return nil, errors.New("pipeline: retriever and generator are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Memory == nil {
		deps.Memory = memory.Nop{}
	}
	p := &Pipeline{
		deps:     deps,
		cfg:      cfg,
		template: prompt.DefaultTemplate,
		window:   prompt.DefaultWindow,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.template.Validate(); err != nil {
		return nil, err
	}
	if p.reg == nil {
		p.reg = prometheus.NewRegistry()
	}
	p.metrics = newPipelineMetrics(p.reg)
	return p, nil
}

// Run executes one turn.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	ctx, cancel := p.withDeadline(ctx)
	defer cancel()
	return p.run(ctx, req, time.Now())
}

// RunRouted asks the Router for a dataset and runs the routed query against
// it. Retrieval is never attempted when the route is not determined.
func (p *Pipeline) RunRouted(ctx context.Context, req Request) Result {
	start := time.Now()
	ctx, cancel := p.withDeadline(ctx)
	defer cancel()
	log := logging.FromContext(ctx)

	if res, bad := p.validate(req); bad {
		p.observe(start, outcomeInvalid)
		return res
	}
	if p.deps.Router == nil {
		p.observe(start, outcomeNoRoute)
		return Result{Response: msgRouterUnconfigured, Err: fmt.Errorf("%w: no router configured", ErrNoRoute)}
	}

	decision, err := p.deps.Router.Route(ctx, req.Query)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return p.fail(start, Result{}, ctxErr)
	}
	if decision == nil {
		cause := ErrNoRoute
		if err != nil {
			cause = fmt.Errorf("%w: %w", ErrNoRoute, err)
		}
		log.Warn("pipeline: route not determined", slog.String("query", truncate(req.Query, 80)))
		p.observe(start, outcomeNoRoute)
		return Result{Response: msgRoutingFailed, Err: cause}
	}

	routed := req
	routed.Dataset = decision.Dataset
	if strings.TrimSpace(decision.Query) != "" {
		routed.Query = decision.Query
	}
	res := p.run(ctx, routed, start)
	res.Decision = decision
	return res
}

func (p *Pipeline) run(ctx context.Context, req Request, start time.Time) Result {
	ctx, log := logging.With(ctx, slog.String("conversation_id", req.ConversationID))

	if res, bad := p.validate(req); bad {
		p.observe(start, outcomeInvalid)
		return res
	}
	collection := req.Dataset
	if collection == "" {
		collection = p.cfg.Collection
	}

	var res Result

	retrieval := p.deps.Retriever.Retrieve(ctx, collection, req.Query, p.cfg.TopK)
	res.Retrieval = retrieval
	p.metrics.retrievalTotal.WithLabelValues(string(retrieval.Status)).Inc()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return p.fail(start, res, fmt.Errorf("pipeline: retrieve: %w", ctxErr))
	}

	var chunks []string
	switch retrieval.Status {
	case rag.RetrievalSuccess:
		chunks = retrieval.Contents()
	case rag.RetrievalEmpty:
		chunks = p.cfg.fallback()
		res.Warnings = append(res.Warnings, emptyRetrievalWarning(collection))
		p.metrics.fallbackTotal.Inc()
		log.Warn("pipeline: empty retrieval, using fallback chunks", slog.String("collection", collection))
	default:
		chunks = p.cfg.fallback()
		res.Warnings = append(res.Warnings, failedRetrievalWarning(collection, retrieval.Err))
		p.metrics.fallbackTotal.Inc()
		log.Warn("pipeline: retrieval failed, using fallback chunks",
			slog.String("collection", collection),
			slog.Any("error", retrieval.Err),
		)
	}

	history, err := p.deps.Memory.Read(ctx, req.ConversationID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.fail(start, res, fmt.Errorf("pipeline: read history: %w", ctxErr))
		}
		log.Warn("pipeline: history unavailable, continuing without it", slog.Any("error", err))
		history = nil
	}
	if len(history) > p.window {
		history = history[:p.window]
	}
	if p.cfg.MaxPromptTokens > 0 {
		fixed := budget.Estimate(p.template.Compose(req.Query, chunks, ""))
		history = budget.TrimHistory(fixed, history, p.cfg.MaxPromptTokens)
	}

	res.Prompt = p.template.Compose(req.Query, chunks, prompt.BuildWindow(history, p.window))
	res.PromptTokens = budget.Estimate(res.Prompt)
	p.metrics.promptTokens.Observe(float64(res.PromptTokens))
	if p.cfg.MaxPromptTokens > 0 && res.PromptTokens > p.cfg.MaxPromptTokens {
		log.Warn("pipeline: prompt exceeds token budget",
			slog.Int("estimated_tokens", res.PromptTokens),
			slog.Int("max_tokens", p.cfg.MaxPromptTokens),
		)
	}

	answer, err := p.deps.Generator.Generate(ctx, res.Prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return p.fail(start, res, fmt.Errorf("pipeline: generate: %w", err))
	}
	res.Response = answer

	// A failure here may leave an unanswered user turn; see persist.
	if err := p.persist(ctx, req.ConversationID, req.Query, answer); err != nil {
		log.Error("pipeline: failed to persist turn", slog.Any("error", err))
		res.Warnings = append(res.Warnings, persistWarning())
	}

	log.Info("pipeline: turn complete",
		slog.String("collection", collection),
		slog.String("retrieval", string(retrieval.Status)),
		slog.Int("chunks", len(chunks)),
		slog.Int("history_turns", len(history)),
		slog.Int("prompt_tokens", res.PromptTokens),
		slog.Duration("elapsed", time.Since(start)),
	)
	p.observe(start, outcomeOK)
	return res
}

// persist records the user query and then the answer. The second append is
// skipped if the first fails. The two appends are not atomic: when only the
// assistant append fails, the user turn stays in memory without an answer
// and later windows render it as an unanswered question. The store offers
// no single-turn removal, and deleting the whole conversation to undo one
// turn would lose more than it repairs.
func (p *Pipeline) persist(ctx context.Context, conversationID, query, answer string) error {
	if err := p.deps.Memory.Append(ctx, conversationID, memory.RoleUser, query); err != nil {
		return fmt.Errorf("append user turn: %w", err)
	}
	if err := p.deps.Memory.Append(ctx, conversationID, memory.RoleAssistant, answer); err != nil {
		return fmt.Errorf("append assistant turn: %w", err)
	}
	return nil
}

func (p *Pipeline) validate(req Request) (Result, bool) {
	if strings.TrimSpace(req.Query) == "" {
		return Result{Response: msgEmptyQuery, Err: ErrEmptyQuery}, true
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		return Result{Response: msgEmptyConversation, Err: memory.ErrEmptyConversationID}, true
	}
	return Result{}, false
}

// fail converts err into the user-facing form of res. Deadline and
// cancellation errors are wrapped with ErrTimeout.
func (p *Pipeline) fail(start time.Time, res Result, err error) Result {
	outcome := outcomeError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = outcomeTimeout
		res.Response = timeoutMessage(p.cfg.Timeout())
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		outcome = outcomeTimeout
		res.Response = msgCanceled
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		res.Response = msgGenerationFailed
	}
	res.Err = err
	p.observe(start, outcome)
	return res
}

func (p *Pipeline) observe(start time.Time, outcome string) {
	p.metrics.runsTotal.WithLabelValues(outcome).Inc()
	p.metrics.durationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func (p *Pipeline) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := p.cfg.Timeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
