package fhirmodels

// Common FHIR value set constants used across the application.

// BundleType codes per FHIR R4.
const (
	BundleTypeCollection = "collection"
	BundleTypeDocument   = "document"
	BundleTypeSearchset  = "searchset"
)

// ConditionClinicalStatus codes.
const (
	ConditionActive     = "active"
	ConditionRecurrence = "recurrence"
	ConditionRelapse    = "relapse"
	ConditionInactive   = "inactive"
	ConditionRemission  = "remission"
	ConditionResolved   = "resolved"
)

// ConditionVerificationStatus codes.
const (
	VerificationUnconfirmed = "unconfirmed"
	VerificationProvisional = "provisional"
	VerificationConfirmed   = "confirmed"
	VerificationRefuted     = "refuted"
)

// ConditionCategory codes.
const (
	ConditionCategoryProblemList = "problem-list-item"
	ConditionCategoryEncounterDx = "encounter-diagnosis"
)

// MedicationStatementStatus codes.
const (
	MedStatementActive  = "active"
	MedStatementUnknown = "unknown"
)

// Code systems for the value sets above.
const (
	SystemConditionClinical     = "http://terminology.hl7.org/CodeSystem/condition-clinical"
	SystemConditionVerification = "http://terminology.hl7.org/CodeSystem/condition-ver-status"
	SystemConditionCategory     = "http://terminology.hl7.org/CodeSystem/condition-category"
)
