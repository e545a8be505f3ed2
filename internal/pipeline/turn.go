package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/careagent/internal/llm"
)

// Turn is the working state of one HandleTurn call. Stages read earlier results
// from it and write only their own field of Results.
type Turn struct {
	Utterance string
	Context   TurnContext
	Results   Results
	Meta      Meta

	adapter     llm.Adapter
	codes       CodeTable
	policy      Policy
	logger      zerolog.Logger
	invalid     bool
	degraded    bool
	ruleFailure bool
}

func (t *Turn) confidence() Confidence {
	switch {
	case llm.IsNone(t.adapter):
		return ConfidenceRulesOnly
	case t.degraded:
		return ConfidenceDegraded
	default:
		return ConfidenceFull
	}
}

// withoutModel reports whether the turn so far ran without a working language
// model, counting an absent adapter as the policy says.
func (t *Turn) withoutModel() bool {
	return t.policy.Degraded(t.confidence())
}

func (t *Turn) band() Band {
	if t.Results.Triage == nil {
		return BandUrgent
	}
	return t.Results.Triage.Band
}

func (t *Turn) knownCodes() []string {
	if t.Results.Coding == nil {
		return nil
	}
	return t.Results.Coding.AllCodes()
}

// acceptText is the sanity check applied to every adapter rendering.
func (t *Turn) acceptText(text string) bool {
	return !ContainsCode(text, t.knownCodes()...)
}

// render asks the adapter for text. It returns ok=false when there is no
// adapter, when the call fails, or when accept rejects the output. Failures
// mark the turn degraded.
func (t *Turn) render(ctx context.Context, stage StageName, messages []llm.Message, accept func(string) bool) (string, bool) {
	if llm.IsNone(t.adapter) {
		return "", false
	}

	start := time.Now()
	text, err := safeGenerate(ctx, t.adapter, messages)
	text = strings.TrimSpace(text)
	call := AdapterCall{Stage: stage, Latency: time.Since(start), Outcome: OutcomeOK}

	switch {
	case err != nil:
		t.degraded = true
		call.Outcome = OutcomeFailed
		if errors.Is(err, llm.ErrTimeout) {
			call.Outcome = OutcomeTimeout
		}
		call.Error = err.Error()
		t.logger.Debug().Err(err).Str("stage", string(stage)).Msg("adapter call failed, using template")
	case text == "":
		t.degraded = true
		call.Outcome = OutcomeFailed
		call.Error = "empty response"
	case accept != nil && !accept(text):
		call.Outcome = OutcomeRejected
		t.logger.Debug().Str("stage", string(stage)).Msg("adapter output rejected by sanity check")
	}
	t.Meta.AdapterCalls = append(t.Meta.AdapterCalls, call)
	return text, call.Outcome == OutcomeOK
}

func containsFold(text, sub string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(sub))
}

func safeGenerate(ctx context.Context, a llm.Adapter, messages []llm.Message) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: adapter panic: %v", llm.ErrFailure, r)
		}
	}()
	return a.Generate(ctx, messages)
}
