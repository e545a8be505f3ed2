// Package pipeline turns one patient utterance into a patient-facing reply and a
// bundle of clinical artifacts. Rule stages are deterministic; an optional
// llm.Adapter only rewrites text and is never trusted for a safety decision.
package pipeline

import (
	"fmt"
	"time"

	"github.com/ehr/careagent/internal/platform/fhir"
)

// TurnContext is the caller-supplied state for one turn. It is never mutated.
type TurnContext struct {
	UserID string  `json:"user_id"`
	Region string  `json:"region,omitempty"`
	Memory *Memory `json:"memory,omitempty"`
}

// Memory carries history from earlier turns.
type Memory struct {
	Conditions  []string `json:"conditions,omitempty"`
	Medications []string `json:"medications,omitempty"`
	Narrative   []string `json:"narrative,omitempty"`
}

// EntityKind classifies a recognised entity.
type EntityKind string

const (
	KindSymptom    EntityKind = "symptom"
	KindCondition  EntityKind = "condition"
	KindMedication EntityKind = "medication"
)

// Entity is a normalised clinical concept found in the utterance.
type Entity struct {
	Name     string     `json:"name"`
	Kind     EntityKind `json:"kind"`
	Severity string     `json:"severity,omitempty"`
	Duration string     `json:"duration,omitempty"`
}

// Extraction is the output of the extraction stage.
type Extraction struct {
	Entities  []Entity `json:"entities"`
	Modifiers []string `json:"modifiers"`
}

// Names returns the entity names in encounter order.
func (e *Extraction) Names() []string {
	out := make([]string, 0, len(e.Entities))
	for _, ent := range e.Entities {
		out = append(out, ent.Name)
	}
	return out
}

// Tier is the ordered risk level.
type Tier int

const (
	TierLow Tier = iota
	TierModerate
	TierHigh
	TierEmergency
)

var tierNames = []string{"low", "moderate", "high", "emergency"}

func (t Tier) String() string {
	if t < TierLow || t > TierEmergency {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseTier parses a tier name.
func ParseTier(s string) (Tier, error) {
	for i, n := range tierNames {
		if n == s {
			return Tier(i), nil
		}
	}
	return TierLow, fmt.Errorf("unknown risk tier: %q", s)
}

// Trigger records one fired risk rule.
type Trigger struct {
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

// RiskAssessment is the output of the risk stage.
type RiskAssessment struct {
	Tier         Tier      `json:"tier"`
	Triggers     []Trigger `json:"triggers"`
	Inconclusive bool      `json:"inconclusive,omitempty"`
}

// HistoryRecord is the structured history for this turn, memory first.
type HistoryRecord struct {
	Conditions  []string `json:"conditions"`
	Medications []string `json:"medications"`
	Narrative   []string `json:"narrative"`
}

// Band is the ordered triage disposition.
type Band int

const (
	BandSelfCare Band = iota
	BandRoutine
	BandUrgent
	BandEmergency
)

var bandNames = []string{"self-care", "routine", "urgent", "emergency"}

func (b Band) String() string {
	if b < BandSelfCare || b > BandEmergency {
		return fmt.Sprintf("band(%d)", int(b))
	}
	return bandNames[b]
}

func (b Band) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Band) UnmarshalText(text []byte) error {
	for i, n := range bandNames {
		if n == string(text) {
			*b = Band(i)
			return nil
		}
	}
	return fmt.Errorf("unknown triage band: %q", string(text))
}

// TriageResult is the output of the triage stage.
type TriageResult struct {
	Band Band `json:"band"`
}

// SupportGuidance is canned advice for the band plus an optional tone line.
type SupportGuidance struct {
	Advice    []string `json:"advice"`
	SafetyNet string   `json:"safety_net"`
	Message   string   `json:"message,omitempty"`
}

// ReasoningStep is one recorded decision.
type ReasoningStep struct {
	Stage        string `json:"stage"`
	InputSummary string `json:"input_summary"`
	Decision     string `json:"decision"`
}

// ReasoningTrace explains how the triage decision was reached.
type ReasoningTrace struct {
	Steps     []ReasoningStep `json:"steps"`
	Narrative string          `json:"narrative,omitempty"`
}

// Summary holds the two audience-specific summaries.
type Summary struct {
	PatientSummary   string `json:"patient_summary"`
	ClinicianSummary string `json:"clinician_summary"`
}

// EHRRecord is a flat projection of the turn for EHR-style systems.
type EHRRecord struct {
	PatientID    string   `json:"patient_id"`
	Region       string   `json:"region,omitempty"`
	Conditions   []string `json:"conditions"`
	Medications  []string `json:"medications"`
	Narrative    []string `json:"narrative"`
	RiskTier     Tier     `json:"risk_tier"`
	RiskTriggers []string `json:"risk_triggers"`
	TriageBand   Band     `json:"triage_band"`
}

// MedicalRecord is the interoperable record of the turn.
type MedicalRecord struct {
	EHR  EHRRecord    `json:"ehr"`
	FHIR *fhir.Bundle `json:"fhir"`
}

// Code is a single terminology code with its display text.
type Code struct {
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

// CodedEntity ties an entity to the codes found for it.
type CodedEntity struct {
	Entity   string `json:"entity"`
	ICD10    []Code `json:"icd10,omitempty"`
	SNOMEDCT []Code `json:"snomed_ct,omitempty"`
}

// Coding is the output of the coding stage.
type Coding struct {
	ICD10    []string      `json:"icd10"`
	SNOMEDCT []string      `json:"snomed_ct"`
	Entries  []CodedEntity `json:"entries"`
}

// HITLDecision says whether a human must review the turn before release.
type HITLDecision struct {
	NeedsReview bool   `json:"needs_review"`
	Rule        string `json:"rule,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// StageName identifies a stage and its key in Results.
type StageName string

const (
	StageExtraction    StageName = "extraction"
	StageRisk          StageName = "risk"
	StageHistory       StageName = "history"
	StageTriage        StageName = "triage"
	StageSupport       StageName = "support"
	StageReasoning     StageName = "reasoning"
	StageCoding        StageName = "coding"
	StageMedicalRecord StageName = "medical_record"
	StageSummary       StageName = "summary"
	StageHITL          StageName = "hitl"
)

// Results is the composite record of every stage output. A nil field means
// the stage is not part of the configured pipeline.
type Results struct {
	Extraction    *Extraction      `json:"extraction,omitempty"`
	Risk          *RiskAssessment  `json:"risk,omitempty"`
	History       *HistoryRecord   `json:"history,omitempty"`
	Triage        *TriageResult    `json:"triage,omitempty"`
	Support       *SupportGuidance `json:"support,omitempty"`
	Reasoning     *ReasoningTrace  `json:"reasoning,omitempty"`
	Coding        *Coding          `json:"coding,omitempty"`
	MedicalRecord *MedicalRecord   `json:"medical_record,omitempty"`
	Summary       *Summary         `json:"summary,omitempty"`
	HITL          *HITLDecision    `json:"hitl,omitempty"`
}

// Has reports whether the stage's key is populated.
func (r *Results) Has(name StageName) bool {
	switch name {
	case StageExtraction:
		return r.Extraction != nil
	case StageRisk:
		return r.Risk != nil
	case StageHistory:
		return r.History != nil
	case StageTriage:
		return r.Triage != nil
	case StageSupport:
		return r.Support != nil
	case StageReasoning:
		return r.Reasoning != nil
	case StageCoding:
		return r.Coding != nil
	case StageMedicalRecord:
		return r.MedicalRecord != nil
	case StageSummary:
		return r.Summary != nil
	case StageHITL:
		return r.HITL != nil
	}
	return false
}

var allStages = []StageName{
	StageExtraction, StageRisk, StageHistory, StageTriage, StageSupport,
	StageReasoning, StageCoding, StageMedicalRecord, StageSummary, StageHITL,
}

// Keys lists the populated keys in canonical order.
func (r *Results) Keys() []StageName {
	var out []StageName
	for _, s := range allStages {
		if r.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// Confidence describes how much of the turn the adapter contributed to.
type Confidence string

const (
	ConfidenceFull      Confidence = "full"
	ConfidenceRulesOnly Confidence = "rules-only"
	ConfidenceDegraded  Confidence = "degraded"
)

// AdapterCall records one adapter invocation.
type AdapterCall struct {
	Stage   StageName     `json:"stage"`
	Outcome string        `json:"outcome"`
	Latency time.Duration `json:"latency_ns"`
	Error   string        `json:"error,omitempty"`
}

// Adapter call outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeTimeout  = "timeout"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// StageFailure records a stage that fell back after an error or panic.
type StageFailure struct {
	Stage StageName `json:"stage"`
	Error string    `json:"error"`
}

// Meta is turn bookkeeping kept apart from the deterministic stage data.
type Meta struct {
	StartedAt     time.Time      `json:"started_at"`
	Mode          string         `json:"mode"`
	Model         string         `json:"model,omitempty"`
	Confidence    Confidence     `json:"confidence"`
	AdapterCalls  []AdapterCall  `json:"adapter_calls,omitempty"`
	StageFailures []StageFailure `json:"stage_failures,omitempty"`
	InvalidInput  bool           `json:"invalid_input,omitempty"`
	Cancelled     bool           `json:"cancelled,omitempty"`
}

// Avatar identifiers.
const (
	AvatarTriageNurse = "triage-nurse"
	AvatarEmergency   = "emergency-escalation"
	AvatarFallback    = "safe-fallback"
)

// AgentOutput is the result of one turn.
type AgentOutput struct {
	Text   string  `json:"text"`
	Data   Results `json:"data"`
	Avatar string  `json:"avatar"`
	Meta   Meta    `json:"meta"`
}

// NeedsReview reports whether the HITL gate held the turn for review.
func (o *AgentOutput) NeedsReview() bool {
	return o.Data.HITL != nil && o.Data.HITL.NeedsReview
}
