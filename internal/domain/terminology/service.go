package terminology

import (
	"context"
	"fmt"
)

// Service provides terminology search, entity coding and FHIR code operations.
type Service struct {
	table  *Table
	icd10  ICD10Repository
	snomed SNOMEDRepository
}

// NewService creates a new terminology service.
func NewService(table *Table, icd10 ICD10Repository, snomed SNOMEDRepository) *Service {
	return &Service{table: table, icd10: icd10, snomed: snomed}
}

// NewTableService creates a service whose repositories are backed by table.
func NewTableService(table *Table) *Service {
	return NewService(table, NewICD10TableRepo(table), NewSNOMEDTableRepo(table))
}

// Version returns the coding table version in use.
func (s *Service) Version() string { return s.table.Version() }

// Entities returns the mapped entity names.
func (s *Service) Entities() []string { return s.table.Entities() }

// -- Entities --

// CodesForEntity returns the table entry for a canonical entity name.
func (s *Service) CodesForEntity(_ context.Context, entity string) (*Entry, error) {
	if entity == "" {
		return nil, fmt.Errorf("entity is required")
	}
	e, ok := s.table.Lookup(entity)
	if !ok {
		return nil, fmt.Errorf("no codes mapped for entity: %s", entity)
	}
	return &e, nil
}

// -- ICD-10 --

// SearchICD10 searches ICD-10-CM codes by query text.
func (s *Service) SearchICD10(ctx context.Context, query string, limit int) ([]*ICD10Code, error) {
	if query == "" {
		return nil, fmt.Errorf("query parameter is required")
	}
	if limit <= 0 {
		limit = 20
	}
	return s.icd10.Search(ctx, query, limit)
}

// LookupICD10 looks up a single ICD-10 code.
func (s *Service) LookupICD10(ctx context.Context, code string) (*ICD10Code, error) {
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}
	return s.icd10.GetByCode(ctx, code)
}

// -- SNOMED --

// SearchSNOMED searches SNOMED CT codes by query text.
func (s *Service) SearchSNOMED(ctx context.Context, query string, limit int) ([]*SNOMEDCode, error) {
	if query == "" {
		return nil, fmt.Errorf("query parameter is required")
	}
	if limit <= 0 {
		limit = 20
	}
	return s.snomed.Search(ctx, query, limit)
}

// LookupSNOMED looks up a single SNOMED CT code.
func (s *Service) LookupSNOMED(ctx context.Context, code string) (*SNOMEDCode, error) {
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}
	return s.snomed.GetByCode(ctx, code)
}

// -- FHIR Operations --

func (s *Service) display(ctx context.Context, system, code string) (string, error) {
	switch system {
	case SystemICD10:
		c, err := s.icd10.GetByCode(ctx, code)
		if err != nil {
			return "", err
		}
		return c.Display, nil
	case SystemSNOMED:
		c, err := s.snomed.GetByCode(ctx, code)
		if err != nil {
			return "", err
		}
		return c.Display, nil
	default:
		return "", fmt.Errorf("unsupported code system: %s", system)
	}
}

// Lookup implements the FHIR CodeSystem $lookup operation.
func (s *Service) Lookup(ctx context.Context, req *LookupRequest) (*LookupResponse, error) {
	if req.System == "" {
		return nil, fmt.Errorf("system is required")
	}
	if req.Code == "" {
		return nil, fmt.Errorf("code is required")
	}
	if req.System != SystemICD10 && req.System != SystemSNOMED {
		return nil, fmt.Errorf("unsupported code system: %s", req.System)
	}

	display, err := s.display(ctx, req.System, req.Code)
	if err != nil {
		return nil, fmt.Errorf("code not found: %s", req.Code)
	}
	return &LookupResponse{
		ResourceType: "Parameters",
		Parameter: []LookupParameter{
			{Name: "name", ValueString: display},
			{Name: "display", ValueString: display},
			{Name: "version", ValueString: s.table.Version()},
		},
	}, nil
}

// ValidateCode implements the FHIR CodeSystem $validate-code operation.
func (s *Service) ValidateCode(ctx context.Context, req *ValidateCodeRequest) (*ValidateCodeResponse, error) {
	if req.System == "" {
		return nil, fmt.Errorf("system is required")
	}
	if req.Code == "" {
		return nil, fmt.Errorf("code is required")
	}
	if req.System != SystemICD10 && req.System != SystemSNOMED {
		return nil, fmt.Errorf("unsupported code system: %s", req.System)
	}

	display, err := s.display(ctx, req.System, req.Code)
	found := err == nil
	params := []ValidateCodeParameter{
		{Name: "result", ValueBoolean: &found},
	}
	if found {
		params = append(params, ValidateCodeParameter{Name: "display", ValueString: display})
	} else {
		params = append(params, ValidateCodeParameter{Name: "message", ValueString: fmt.Sprintf("code '%s' not found in system '%s'", req.Code, req.System)})
	}

	return &ValidateCodeResponse{
		ResourceType: "Parameters",
		Parameter:    params,
	}, nil
}
