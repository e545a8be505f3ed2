package terminology

import "context"

// ICD10Repository provides access to ICD-10-CM reference codes.
type ICD10Repository interface {
	Search(ctx context.Context, query string, limit int) ([]*ICD10Code, error)
	GetByCode(ctx context.Context, code string) (*ICD10Code, error)
}

// SNOMEDRepository provides access to SNOMED CT reference codes.
type SNOMEDRepository interface {
	Search(ctx context.Context, query string, limit int) ([]*SNOMEDCode, error)
	GetByCode(ctx context.Context, code string) (*SNOMEDCode, error)
}
