package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ehr/careagent/internal/llm"
)

var (
	icd10Pattern  = regexp.MustCompile(`\b[A-TV-Z][0-9][0-9A-Z](?:\.[0-9A-Z]{1,4})?\b`)
	snomedPattern = regexp.MustCompile(`\b[0-9]{6,18}\b`)
)

// ContainsCode reports whether text carries something shaped like an ICD-10 or
// SNOMED CT code, or any of the given known codes.
func ContainsCode(text string, known ...string) bool {
	if icd10Pattern.MatchString(text) || snomedPattern.MatchString(text) {
		return true
	}
	for _, c := range known {
		if c != "" && strings.Contains(text, c) {
			return true
		}
	}
	return false
}

var patientLeads = map[Band]string{
	BandSelfCare:  "Thank you for your message. From what you describe, this sounds like something that can usually be looked after at home.",
	BandRoutine:   "Thank you for your message. Your symptoms should be checked by a doctor, but this does not sound like an emergency.",
	BandUrgent:    "Thank you for telling us. Your symptoms need to be checked by a clinician today.",
	BandEmergency: "Your symptoms could be serious and need emergency care now.",
}

// PatientSummary renders the plain-language reply for band. When the assessment
// was inconclusive and no working language model was available, the reply uses
// urgent-advice language regardless of a lower band.
func PatientSummary(band Band, region string, guidance *SupportGuidance, cautious bool) string {
	if cautious && band < BandUrgent {
		band = BandUrgent
		guidance = GuidanceFor(band, region)
	}
	if guidance == nil {
		guidance = GuidanceFor(band, region)
	}
	parts := []string{patientLeads[band]}
	parts = append(parts, guidance.Advice...)
	parts = append(parts, guidance.SafetyNet)
	return strings.Join(parts, " ")
}

// ClinicianSummary renders the structured handover note.
func ClinicianSummary(ex *Extraction, h *HistoryRecord, tc TurnContext, risk *RiskAssessment, triage *TriageResult) string {
	var b strings.Builder

	byKind := map[EntityKind][]string{}
	for _, e := range ex.Entities {
		label := e.Name
		var quals []string
		if e.Severity != "" {
			quals = append(quals, e.Severity)
		}
		if e.Duration != "" {
			quals = append(quals, e.Duration)
		}
		if len(quals) > 0 {
			label += " (" + strings.Join(quals, ", ") + ")"
		}
		byKind[e.Kind] = append(byKind[e.Kind], label)
	}

	if len(ex.Entities) == 0 {
		b.WriteString("No recognised clinical entities in the message. ")
	}
	for _, k := range []struct {
		kind  EntityKind
		title string
	}{{KindSymptom, "Symptoms"}, {KindCondition, "Conditions"}, {KindMedication, "Medications"}} {
		if items := byKind[k.kind]; len(items) > 0 {
			fmt.Fprintf(&b, "%s: %s. ", k.title, strings.Join(items, ", "))
		}
	}
	if len(ex.Modifiers) > 0 {
		fmt.Fprintf(&b, "Modifiers: %s. ", strings.Join(ex.Modifiers, ", "))
	}
	if tc.Memory != nil && len(tc.Memory.Conditions) > 0 {
		fmt.Fprintf(&b, "Known history: %s. ", strings.Join(tc.Memory.Conditions, ", "))
	}
	if h != nil && len(h.Medications) > 0 && len(byKind[KindMedication]) == 0 {
		fmt.Fprintf(&b, "Medications on record: %s. ", strings.Join(h.Medications, ", "))
	}

	fmt.Fprintf(&b, "Risk tier: %s", risk.Tier)
	if len(risk.Triggers) > 0 {
		reasons := make([]string, 0, len(risk.Triggers))
		for _, tr := range risk.Triggers {
			reasons = append(reasons, tr.Reason)
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(reasons, "; "))
	}
	fmt.Fprintf(&b, ". Triage band: %s.", triage.Band)
	return b.String()
}

func patientRenderMessages(draft string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: "Rewrite the following reply for a patient in plain, kind language. " +
			"Keep every instruction and every phone number or service name. Do not add diagnoses, medicines or codes."},
		{Role: llm.RoleUser, Content: draft},
	}
}

func clinicianRenderMessages(draft, narrative string) []llm.Message {
	content := draft
	if narrative != "" {
		content += "\n\nReasoning:\n" + narrative
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: "Write a concise clinician handover note from these facts. " +
			"Do not add findings and do not include terminology codes."},
		{Role: llm.RoleUser, Content: content},
	}
}
