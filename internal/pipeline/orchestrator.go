package pipeline

import (
	"context"

	"github.com/ehr/careagent/internal/llm"
)

// Pipeline modes.
const (
	ModeBase     = "base"
	ModeExtended = "extended"
)

// TurnHandler is implemented by both orchestrators.
type TurnHandler interface {
	HandleTurn(ctx context.Context, utterance string, tc *TurnContext, adapter llm.Adapter) (*AgentOutput, error)
	Stages() []StageName
}

// Orchestrator runs the base stages: extraction, risk, history, triage,
// support and summary.
type Orchestrator struct {
	*Engine
}

// NewOrchestrator creates the base orchestrator.
func NewOrchestrator(opts ...Option) *Orchestrator {
	return &Orchestrator{Engine: newEngine(ModeBase, baseStages, opts...)}
}

// ExtendedOrchestrator adds reasoning, coding, the medical record and the HITL
// gate to the base stages.
type ExtendedOrchestrator struct {
	Orchestrator
}

// NewExtendedOrchestrator creates the extended orchestrator.
func NewExtendedOrchestrator(opts ...Option) *ExtendedOrchestrator {
	return &ExtendedOrchestrator{Orchestrator{Engine: newEngine(ModeExtended, extendedStages, opts...)}}
}

// New returns the orchestrator for mode.
func New(mode string, opts ...Option) TurnHandler {
	if mode == ModeBase {
		return NewOrchestrator(opts...)
	}
	return NewExtendedOrchestrator(opts...)
}
