package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/careagent/internal/domain/terminology"
	"github.com/ehr/careagent/internal/llm"
)

// Engine runs an ordered list of stages over one turn.
type Engine struct {
	mode           string
	stages         []stage
	codes          CodeTable
	policy         Policy
	logger         zerolog.Logger
	adapterTimeout time.Duration
	now            func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for stage failures. The default discards.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithPolicy replaces the HITL policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithCodeTable replaces the coding table.
func WithCodeTable(c CodeTable) Option {
	return func(e *Engine) {
		if c != nil {
			e.codes = c
		}
	}
}

// WithAdapterTimeout bounds each adapter call. Zero disables the bound.
func WithAdapterTimeout(d time.Duration) Option {
	return func(e *Engine) { e.adapterTimeout = d }
}

// WithClock sets the clock used for Meta.StartedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// DefaultAdapterTimeout is the per-call bound when none is configured.
const DefaultAdapterTimeout = 10 * time.Second

func newEngine(mode string, stages []stage, opts ...Option) *Engine {
	e := &Engine{
		mode:           mode,
		stages:         stages,
		codes:          terminology.DefaultTable(),
		policy:         DefaultPolicy(),
		logger:         zerolog.Nop(),
		adapterTimeout: DefaultAdapterTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stages lists the stage keys this engine fills, in run order.
func (e *Engine) Stages() []StageName {
	out := make([]StageName, 0, len(e.stages))
	for _, s := range e.stages {
		out = append(out, s.name)
	}
	return out
}

// HandleTurn runs every stage and always returns a complete output. The only
// error is ErrMissingContext.
func (e *Engine) HandleTurn(ctx context.Context, utterance string, tc *TurnContext, adapter llm.Adapter) (*AgentOutput, error) {
	if tc == nil {
		return nil, ErrMissingContext
	}
	if adapter == nil {
		adapter = llm.None
	}

	t := &Turn{
		Utterance: utterance,
		Context:   *tc,
		Meta: Meta{
			StartedAt: e.now().UTC(),
			Mode:      e.mode,
		},
		adapter: llm.Wrap(adapter, llm.Timeout(e.adapterTimeout)),
		codes:   e.codes,
		policy:  e.policy,
		logger:  e.logger.With().Str("mode", e.mode).Str("user_id", tc.UserID).Logger(),
		invalid: strings.TrimSpace(utterance) == "",
	}
	if !llm.IsNone(adapter) {
		t.Meta.Model = adapter.Name()
	}
	if t.invalid {
		t.Meta.InvalidInput = true
		t.logger.Warn().Err(ErrInvalidInput).Msg("answering with safe fallback")
	}

	for _, s := range e.stages {
		if t.invalid && !s.always {
			s.fallback(t)
			continue
		}
		e.runStage(ctx, t, s)
	}

	t.Meta.Confidence = t.confidence()
	t.Meta.Cancelled = ctx.Err() != nil

	out := &AgentOutput{Data: t.Results, Meta: t.Meta}
	out.Text, out.Avatar = compose(t)
	return out, nil
}

func (e *Engine) runStage(ctx context.Context, t *Turn, s stage) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return s.run(ctx, t)
	}()
	if err == nil && !t.Results.Has(s.name) {
		err = fmt.Errorf("stage %s produced no result", s.name)
	}
	if err == nil {
		return
	}

	t.logger.Warn().Err(err).Str("stage", string(s.name)).Msg("stage failed, using fallback")
	t.Meta.StageFailures = append(t.Meta.StageFailures, StageFailure{Stage: s.name, Error: err.Error()})
	if s.safety {
		t.ruleFailure = true
	}
	s.fallback(t)
}

// compose picks the reply text and avatar for the finished turn.
func compose(t *Turn) (string, string) {
	svc := servicesFor(t.Context.Region)
	band := t.band()

	if t.invalid {
		return svc.fill("Sorry, I did not receive a message I could read. Could you tell me how you are feeling? " +
			"If you feel very unwell, call {emergency} now."), AvatarFallback
	}

	avatar := AvatarTriageNurse
	if band == BandEmergency {
		avatar = AvatarEmergency
	}

	if t.Results.HITL != nil && t.Results.HITL.NeedsReview {
		if band == BandEmergency {
			return svc.fill("Your symptoms could be serious. Call {emergency} now or go to the nearest emergency department. " +
				"A clinician has also been asked to review your message."), avatar
		}
		return svc.fill("Thank you for your message. A clinician will review it and get back to you shortly. " +
			"If you feel worse in the meantime, contact {urgent}, or call {emergency} in an emergency."), avatar
	}

	if t.Results.Summary != nil && t.Results.Summary.PatientSummary != "" {
		return t.Results.Summary.PatientSummary, avatar
	}
	return PatientSummary(band, t.Context.Region, nil, false), avatar
}
