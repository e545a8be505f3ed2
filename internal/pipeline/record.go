package pipeline

import (
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/careagent/internal/domain/terminology"
	"github.com/ehr/careagent/internal/platform/fhir"
	"github.com/ehr/careagent/pkg/fhirmodels"
)

const anonymousPatient = "anonymous"

var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:careagent:medical-record"))

func recordID(parts ...string) string {
	return uuid.NewSHA1(recordNamespace, []byte(strings.Join(parts, "|"))).String()
}

func patientID(tc TurnContext) string {
	if id := strings.TrimSpace(tc.UserID); id != "" {
		return id
	}
	return anonymousPatient
}

// BuildRecord projects history, risk, triage and coding into an EHR record and a
// FHIR collection Bundle. Identical input produces byte-identical output.
func BuildRecord(tc TurnContext, h *HistoryRecord, risk *RiskAssessment, triage *TriageResult, coding *Coding) (*MedicalRecord, error) {
	pid := patientID(tc)
	ehr := EHRRecord{
		PatientID:    pid,
		Region:       tc.Region,
		Conditions:   append([]string{}, h.Conditions...),
		Medications:  append([]string{}, h.Medications...),
		Narrative:    append([]string{}, h.Narrative...),
		RiskTier:     risk.Tier,
		RiskTriggers: make([]string, 0, len(risk.Triggers)),
		TriageBand:   triage.Band,
	}
	for _, tr := range risk.Triggers {
		ehr.RiskTriggers = append(ehr.RiskTriggers, tr.Rule)
	}

	subject := fhir.Reference{Reference: fhir.FormatReference("Patient", pid)}
	entries := make([]fhir.BundleEntry, 0, len(h.Conditions)+len(h.Medications))

	for _, name := range h.Conditions {
		id := recordID(pid, "Condition", name)
		cond := fhir.Condition{
			ResourceType: "Condition",
			ID:           id,
			ClinicalStatus: &fhir.CodeableConcept{Coding: []fhir.Coding{
				{System: fhirmodels.SystemConditionClinical, Code: fhirmodels.ConditionActive},
			}},
			VerificationStatus: &fhir.CodeableConcept{Coding: []fhir.Coding{
				{System: fhirmodels.SystemConditionVerification, Code: fhirmodels.VerificationUnconfirmed},
			}},
			Category: []fhir.CodeableConcept{{Coding: []fhir.Coding{
				{System: fhirmodels.SystemConditionCategory, Code: fhirmodels.ConditionCategoryProblemList},
			}}},
			Code:    conceptFor(name, coding),
			Subject: subject,
			Note:    []fhir.Annotation{{Text: "Patient-reported"}},
		}
		entry, err := fhir.NewEntry(id, cond)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	for _, name := range h.Medications {
		id := recordID(pid, "MedicationStatement", name)
		stmt := fhir.MedicationStatement{
			ResourceType:              "MedicationStatement",
			ID:                        id,
			Status:                    fhirmodels.MedStatementActive,
			MedicationCodeableConcept: conceptFor(name, coding),
			Subject:                   subject,
		}
		entry, err := fhir.NewEntry(id, stmt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	bundleID := recordID(append([]string{pid, "Bundle"}, h.Narrative...)...)
	return &MedicalRecord{EHR: ehr, FHIR: fhir.NewCollectionBundle(bundleID, entries)}, nil
}

// conceptFor builds a CodeableConcept from the coding stage's result for name.
func conceptFor(name string, coding *Coding) fhir.CodeableConcept {
	cc := fhir.CodeableConcept{Text: name}
	if coding == nil {
		return cc
	}
	ce, ok := coding.entry(name)
	if !ok {
		return cc
	}
	for _, c := range ce.ICD10 {
		cc.Coding = append(cc.Coding, fhir.Coding{System: terminology.SystemICD10, Code: c.Code, Display: c.Display})
	}
	for _, c := range ce.SNOMEDCT {
		cc.Coding = append(cc.Coding, fhir.Coding{System: terminology.SystemSNOMED, Code: c.Code, Display: c.Display})
	}
	return cc
}
