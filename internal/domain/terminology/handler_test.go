package terminology

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	h := NewHandler(newTestService())
	e := echo.New()
	return h, e
}

// =========== Search Handler Tests ===========

func TestHandler_SearchICD10_Success(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/terminology/icd10?q=chest", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.SearchICD10(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var results []*ICD10Code
	json.Unmarshal(rec.Body.Bytes(), &results)
	if len(results) == 0 || results[0].Code != "R07.9" {
		t.Errorf("expected R07.9 first, got %+v", results)
	}
}

func TestHandler_SearchICD10_MissingQuery(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/terminology/icd10", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.SearchICD10(c); err == nil {
		t.Error("expected error for missing query parameter")
	}
}

func TestHandler_SearchSNOMED_Success(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/terminology/snomed?q=wheez", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.SearchSNOMED(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "56018004") {
		t.Errorf("expected wheezing code in body: %s", rec.Body.String())
	}
}

// =========== Entity Handler Tests ===========

func TestHandler_ListEntities(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/terminology/entities", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListEntities(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Version  string   `json:"version"`
		Entities []string `json:"entities"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Version == "" || len(body.Entities) == 0 {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_GetEntity(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("name")
	c.SetParamValues("asthma")

	if err := h.GetEntity(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var entry Entry
	json.Unmarshal(rec.Body.Bytes(), &entry)
	if entry.Entity != "asthma" || len(entry.SNOMED) == 0 {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestHandler_GetEntity_NotFound(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("name")
	c.SetParamValues("unicorn")

	err := h.GetEntity(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

// =========== FHIR Operation Handler Tests ===========

func TestHandler_FHIRLookup(t *testing.T) {
	h, e := newTestHandler()

	body := `{"system":"http://snomed.info/sct","code":"29857009"}`
	req := httptest.NewRequest(http.MethodPost, "/fhir/CodeSystem/$lookup", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.FHIRLookup(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var resp LookupResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.ResourceType != "Parameters" {
		t.Errorf("expected Parameters, got %s", resp.ResourceType)
	}
}

func TestHandler_FHIRLookup_NotFound(t *testing.T) {
	h, e := newTestHandler()

	body := `{"system":"http://hl7.org/fhir/sid/icd-10-cm","code":"Q99.99"}`
	req := httptest.NewRequest(http.MethodPost, "/fhir/CodeSystem/$lookup", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.FHIRLookup(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "OperationOutcome") {
		t.Error("expected OperationOutcome body")
	}
}

func TestHandler_FHIRValidateCode(t *testing.T) {
	h, e := newTestHandler()

	body := `{"system":"http://hl7.org/fhir/sid/icd-10-cm","code":"E11.9"}`
	req := httptest.NewRequest(http.MethodPost, "/fhir/CodeSystem/$validate-code", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.FHIRValidateCode(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp ValidateCodeResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Parameter) == 0 || !*resp.Parameter[0].ValueBoolean {
		t.Errorf("expected result=true, got %s", rec.Body.String())
	}
}

func TestHandler_FHIRValidateCode_MissingSystem(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/fhir/CodeSystem/$validate-code", strings.NewReader(`{"code":"E11.9"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.FHIRValidateCode(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
