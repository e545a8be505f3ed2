package pipeline

import (
	"fmt"
	"strings"

	"github.com/ehr/careagent/internal/llm"
)

// TraceSteps records the extraction, risk and triage decisions of a turn.
func TraceSteps(utterance string, ex *Extraction, risk *RiskAssessment, triage *TriageResult) []ReasoningStep {
	steps := make([]ReasoningStep, 0, 3)

	found := "no recognised clinical entities"
	if len(ex.Entities) > 0 {
		found = "recognised " + strings.Join(ex.Names(), ", ")
	}
	if len(ex.Modifiers) > 0 {
		found += "; modifiers " + strings.Join(ex.Modifiers, ", ")
	}
	steps = append(steps, ReasoningStep{
		Stage:        string(StageExtraction),
		InputSummary: fmt.Sprintf("utterance of %d words", len(strings.Fields(utterance))),
		Decision:     found,
	})

	fired := "no rules fired"
	if len(risk.Triggers) > 0 {
		ids := make([]string, 0, len(risk.Triggers))
		for _, tr := range risk.Triggers {
			ids = append(ids, tr.Rule)
		}
		fired = "rules " + strings.Join(ids, ", ")
	}
	steps = append(steps, ReasoningStep{
		Stage:        string(StageRisk),
		InputSummary: fmt.Sprintf("%d entities, %d modifiers", len(ex.Entities), len(ex.Modifiers)),
		Decision:     fmt.Sprintf("tier %s (%s)", risk.Tier, fired),
	})

	steps = append(steps, ReasoningStep{
		Stage:        string(StageTriage),
		InputSummary: "tier " + risk.Tier.String(),
		Decision:     "band " + triage.Band.String(),
	})
	return steps
}

// BulletNarrative renders steps without a language model.
func BulletNarrative(steps []ReasoningStep) string {
	lines := make([]string, 0, len(steps))
	for _, s := range steps {
		lines = append(lines, fmt.Sprintf("- %s: %s -> %s", s.Stage, s.InputSummary, s.Decision))
	}
	return strings.Join(lines, "\n")
}

func narrationMessages(steps []ReasoningStep) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: "Explain these triage reasoning steps to a clinician in two or three plain sentences. " +
			"Do not add findings, diagnoses or codes that are not in the steps."},
		{Role: llm.RoleUser, Content: BulletNarrative(steps)},
	}
}
