package fhir

// OperationOutcome severity levels per FHIR R4.
const (
	IssueSeverityFatal = "fatal"
	IssueSeverityError = "error"
)

// OperationOutcome issue type codes per FHIR R4.
const (
	IssueTypeProcessing = "processing"
	IssueTypeTimeout    = "timeout"
)

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics,omitempty"`
	Expression  []string `json:"expression,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    severity,
				Code:        code,
				Diagnostics: diagnostics,
			},
		},
	}
}

// ErrorOutcome creates an OperationOutcome for a request that could not be processed.
func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeProcessing, diagnostics)
}

// TimeoutOutcome creates an OperationOutcome for a request that ran out of time.
func TimeoutOutcome() *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeTimeout, "request timed out")
}

// HasErrors returns true if the outcome contains any error or fatal issues.
func (o *OperationOutcome) HasErrors() bool {
	for _, issue := range o.Issue {
		if issue.Severity == IssueSeverityError || issue.Severity == IssueSeverityFatal {
			return true
		}
	}
	return false
}
