package pipeline

import (
	"context"
	"errors"
)

// stage is one step of the pipeline. run writes exactly the stage's own field of
// Results; fallback writes a safe default for that field and must not fail.
type stage struct {
	name StageName
	// safety marks stages whose failure forces human review.
	safety bool
	// always runs even for invalid input.
	always   bool
	run      func(ctx context.Context, t *Turn) error
	fallback func(t *Turn)
}

var errMissingInput = errors.New("required earlier result is missing")

var extractionStage = stage{
	name:   StageExtraction,
	safety: true,
	run: func(_ context.Context, t *Turn) error {
		t.Results.Extraction = Extract(t.Utterance)
		return nil
	},
	fallback: func(t *Turn) {
		t.Results.Extraction = &Extraction{Entities: []Entity{}, Modifiers: []string{}}
	},
}

var riskStage = stage{
	name:   StageRisk,
	safety: true,
	run: func(_ context.Context, t *Turn) error {
		if t.Results.Extraction == nil {
			return errMissingInput
		}
		t.Results.Risk = Assess(t.Results.Extraction)
		return nil
	},
	fallback: func(t *Turn) {
		t.Results.Risk = &RiskAssessment{
			Tier:         TierHigh,
			Triggers:     []Trigger{{Rule: "risk-unavailable", Reason: "risk could not be assessed"}},
			Inconclusive: true,
		}
	},
}

var historyStage = stage{
	name: StageHistory,
	run: func(_ context.Context, t *Turn) error {
		t.Results.History = BuildHistory(t.Utterance, t.Context, t.Results.Extraction)
		return nil
	},
	fallback: func(t *Turn) {
		t.Results.History = BuildHistory("", t.Context, nil)
	},
}

var triageStage = stage{
	name:   StageTriage,
	safety: true,
	run: func(_ context.Context, t *Turn) error {
		if t.Results.Risk == nil {
			return errMissingInput
		}
		t.Results.Triage = &TriageResult{Band: BandFor(t.Results.Risk.Tier)}
		return nil
	},
	fallback: func(t *Turn) {
		t.Results.Triage = &TriageResult{Band: BandUrgent}
	},
}

var supportStage = stage{
	name: StageSupport,
	run: func(ctx context.Context, t *Turn) error {
		band := t.band()
		g := GuidanceFor(band, t.Context.Region)
		if msg, ok := t.render(ctx, StageSupport, toneMessages(t.Utterance, band), t.acceptText); ok {
			g.Message = msg
		}
		t.Results.Support = g
		return nil
	},
	fallback: func(t *Turn) {
		t.Results.Support = GuidanceFor(t.band(), t.Context.Region)
	},
}

var reasoningStage = stage{
	name: StageReasoning,
	run: func(ctx context.Context, t *Turn) error {
		if t.Results.Extraction == nil || t.Results.Risk == nil || t.Results.Triage == nil {
			return errMissingInput
		}
		steps := TraceSteps(t.Utterance, t.Results.Extraction, t.Results.Risk, t.Results.Triage)
		narrative, ok := t.render(ctx, StageReasoning, narrationMessages(steps), t.acceptText)
		if !ok {
			narrative = BulletNarrative(steps)
		}
		t.Results.Reasoning = &ReasoningTrace{Steps: steps, Narrative: narrative}
		return nil
	},
	fallback: func(t *Turn) {
		t.Results.Reasoning = &ReasoningTrace{Steps: []ReasoningStep{}, Narrative: "reasoning unavailable"}
	},
}

var codingStage = stage{
	name: StageCoding,
	run: func(_ context.Context, t *Turn) error {
		if t.Results.Extraction == nil {
			return errMissingInput
		}
		t.Results.Coding = CodeEntities(t.codes, t.Results.Extraction)
		return nil
	},
	fallback: func(t *Turn) {
		t.Results.Coding = &Coding{ICD10: []string{}, SNOMEDCT: []string{}, Entries: []CodedEntity{}}
	},
}

var recordStage = stage{
	name: StageMedicalRecord,
	run: func(_ context.Context, t *Turn) error {
		if t.Results.History == nil || t.Results.Risk == nil || t.Results.Triage == nil {
			return errMissingInput
		}
		rec, err := BuildRecord(t.Context, t.Results.History, t.Results.Risk, t.Results.Triage, t.Results.Coding)
		if err != nil {
			return err
		}
		t.Results.MedicalRecord = rec
		return nil
	},
	fallback: func(t *Turn) {
		h := &HistoryRecord{Conditions: []string{}, Medications: []string{}, Narrative: []string{}}
		if t.Results.History != nil {
			h = t.Results.History
		}
		rec, err := BuildRecord(t.Context, h, &RiskAssessment{Tier: TierHigh}, &TriageResult{Band: t.band()}, nil)
		if err != nil {
			rec = &MedicalRecord{EHR: EHRRecord{PatientID: patientID(t.Context)}}
		}
		t.Results.MedicalRecord = rec
	},
}

var summaryStage = stage{
	name: StageSummary,
	run: func(ctx context.Context, t *Turn) error {
		if t.Results.Extraction == nil || t.Results.Risk == nil || t.Results.Triage == nil {
			return errMissingInput
		}
		band := t.band()
		svc := servicesFor(t.Context.Region)
		cautious := t.Results.Risk.Inconclusive && t.withoutModel()

		patient := PatientSummary(band, t.Context.Region, t.Results.Support, cautious)
		clinician := ClinicianSummary(t.Results.Extraction, t.Results.History, t.Context, t.Results.Risk, t.Results.Triage)

		acceptPatient := func(text string) bool {
			if !t.acceptText(text) {
				return false
			}
			return band != BandEmergency || containsFold(text, svc.Emergency)
		}
		if text, ok := t.render(ctx, StageSummary, patientRenderMessages(patient), acceptPatient); ok {
			patient = text
		}
		narrative := ""
		if t.Results.Reasoning != nil {
			narrative = t.Results.Reasoning.Narrative
		}
		if text, ok := t.render(ctx, StageSummary, clinicianRenderMessages(clinician, narrative), t.acceptText); ok {
			clinician = text
		}
		t.Results.Summary = &Summary{PatientSummary: patient, ClinicianSummary: clinician}
		return nil
	},
	fallback: func(t *Turn) {
		svc := servicesFor(t.Context.Region)
		t.Results.Summary = &Summary{
			PatientSummary: svc.fill("We could not fully assess your message. If you feel very unwell, call {emergency} now. " +
				"Otherwise please contact {urgent} for advice today."),
			ClinicianSummary: "Automated summary unavailable; review the structured data for this turn.",
		}
	},
}

var hitlStage = stage{
	name:   StageHITL,
	always: true,
	run: func(_ context.Context, t *Turn) error {
		s := Signals{
			InvalidInput:    t.invalid,
			Tier:            TierHigh,
			Band:            t.band(),
			RuleStageFailed: t.ruleFailure,
			Confidence:      t.confidence(),
		}
		if t.Results.Risk != nil {
			s.Tier = t.Results.Risk.Tier
			s.Inconclusive = t.Results.Risk.Inconclusive
		}
		t.Results.HITL = t.policy.Decide(s)
		return nil
	},
	fallback: func(t *Turn) {
		t.Results.HITL = review(HITLGateUnavailable, "the review gate could not be evaluated")
	},
}

var (
	baseStages = []stage{
		extractionStage, riskStage, historyStage, triageStage, supportStage, summaryStage,
	}
	extendedStages = []stage{
		extractionStage, riskStage, historyStage, triageStage, supportStage,
		reasoningStage, codingStage, recordStage, summaryStage, hitlStage,
	}
)
