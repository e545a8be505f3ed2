package terminology

// ICD10Code represents an ICD-10-CM diagnosis code.
type ICD10Code struct {
	Code      string `json:"code"`
	Display   string `json:"display"`
	Entity    string `json:"entity,omitempty"`
	SystemURI string `json:"system_uri"`
}

// SNOMEDCode represents a SNOMED CT code.
type SNOMEDCode struct {
	Code      string `json:"code"`
	Display   string `json:"display"`
	Entity    string `json:"entity,omitempty"`
	SystemURI string `json:"system_uri"`
}

// Concept is a single code with its display text as stored in the coding table.
type Concept struct {
	Code    string `yaml:"code" json:"code"`
	Display string `yaml:"display" json:"display"`
}

// Entry maps one canonical entity name to its codes.
type Entry struct {
	Entity string    `yaml:"entity" json:"entity"`
	ICD10  []Concept `yaml:"icd10" json:"icd10,omitempty"`
	SNOMED []Concept `yaml:"snomed" json:"snomed_ct,omitempty"`
}

// LookupRequest represents a FHIR CodeSystem $lookup request.
type LookupRequest struct {
	System string `json:"system"`
	Code   string `json:"code"`
}

// LookupResponse represents a FHIR CodeSystem $lookup response.
type LookupResponse struct {
	ResourceType string            `json:"resourceType"`
	Parameter    []LookupParameter `json:"parameter"`
}

// LookupParameter is a name/value pair in a FHIR Parameters resource.
type LookupParameter struct {
	Name        string `json:"name"`
	ValueString string `json:"valueString,omitempty"`
	ValueCode   string `json:"valueCode,omitempty"`
}

// ValidateCodeRequest represents a FHIR CodeSystem $validate-code request.
type ValidateCodeRequest struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

// ValidateCodeResponse represents a FHIR CodeSystem $validate-code response.
type ValidateCodeResponse struct {
	ResourceType string                  `json:"resourceType"`
	Parameter    []ValidateCodeParameter `json:"parameter"`
}

// ValidateCodeParameter is a name/value pair in a validate-code response.
type ValidateCodeParameter struct {
	Name         string `json:"name"`
	ValueBoolean *bool  `json:"valueBoolean,omitempty"`
	ValueString  string `json:"valueString,omitempty"`
}

// Code system URIs.
const (
	SystemICD10  = "http://hl7.org/fhir/sid/icd-10-cm"
	SystemSNOMED = "http://snomed.info/sct"
)
