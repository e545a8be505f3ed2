package terminology

import (
	"context"
	"fmt"
	"strings"
)

type icd10TableRepo struct {
	codes []*ICD10Code
	index map[string]*ICD10Code
}

// NewICD10TableRepo serves ICD-10 codes from a coding table.
func NewICD10TableRepo(t *Table) ICD10Repository {
	r := &icd10TableRepo{index: make(map[string]*ICD10Code)}
	for _, e := range t.Entries() {
		for _, c := range e.ICD10 {
			if _, seen := r.index[c.Code]; seen {
				continue
			}
			code := &ICD10Code{Code: c.Code, Display: c.Display, Entity: e.Entity, SystemURI: SystemICD10}
			r.codes = append(r.codes, code)
			r.index[c.Code] = code
		}
	}
	return r
}

func (r *icd10TableRepo) Search(_ context.Context, query string, limit int) ([]*ICD10Code, error) {
	q := strings.ToLower(query)
	var results []*ICD10Code
	for _, c := range r.codes {
		if matches(q, c.Code, c.Display, c.Entity) {
			results = append(results, c)
			if len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

func (r *icd10TableRepo) GetByCode(_ context.Context, code string) (*ICD10Code, error) {
	c, ok := r.index[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, fmt.Errorf("icd-10 code %s not found", code)
	}
	return c, nil
}

type snomedTableRepo struct {
	codes []*SNOMEDCode
	index map[string]*SNOMEDCode
}

// NewSNOMEDTableRepo serves SNOMED CT codes from a coding table.
func NewSNOMEDTableRepo(t *Table) SNOMEDRepository {
	r := &snomedTableRepo{index: make(map[string]*SNOMEDCode)}
	for _, e := range t.Entries() {
		for _, c := range e.SNOMED {
			if _, seen := r.index[c.Code]; seen {
				continue
			}
			code := &SNOMEDCode{Code: c.Code, Display: c.Display, Entity: e.Entity, SystemURI: SystemSNOMED}
			r.codes = append(r.codes, code)
			r.index[c.Code] = code
		}
	}
	return r
}

func (r *snomedTableRepo) Search(_ context.Context, query string, limit int) ([]*SNOMEDCode, error) {
	q := strings.ToLower(query)
	var results []*SNOMEDCode
	for _, c := range r.codes {
		if matches(q, c.Code, c.Display, c.Entity) {
			results = append(results, c)
			if len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

func (r *snomedTableRepo) GetByCode(_ context.Context, code string) (*SNOMEDCode, error) {
	c, ok := r.index[strings.TrimSpace(code)]
	if !ok {
		return nil, fmt.Errorf("snomed ct code %s not found", code)
	}
	return c, nil
}

func matches(q string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
