package pipeline

import "github.com/ehr/careagent/internal/domain/terminology"

// CodeTable resolves canonical entity names to codes.
type CodeTable interface {
	Lookup(entity string) (terminology.Entry, bool)
}

// CodeEntities maps entities to ICD-10 and SNOMED CT codes. Entities without a
// table entry get no codes; nothing is invented. Code lists are deduplicated in
// first-seen order.
func CodeEntities(table CodeTable, ex *Extraction) *Coding {
	c := &Coding{ICD10: []string{}, SNOMEDCT: []string{}, Entries: []CodedEntity{}}
	seenICD := make(map[string]bool)
	seenSCT := make(map[string]bool)

	for _, e := range ex.Entities {
		entry, ok := table.Lookup(e.Name)
		if !ok {
			continue
		}
		ce := CodedEntity{Entity: e.Name}
		for _, concept := range entry.ICD10 {
			ce.ICD10 = append(ce.ICD10, Code{Code: concept.Code, Display: concept.Display})
			if !seenICD[concept.Code] {
				seenICD[concept.Code] = true
				c.ICD10 = append(c.ICD10, concept.Code)
			}
		}
		for _, concept := range entry.SNOMED {
			ce.SNOMEDCT = append(ce.SNOMEDCT, Code{Code: concept.Code, Display: concept.Display})
			if !seenSCT[concept.Code] {
				seenSCT[concept.Code] = true
				c.SNOMEDCT = append(c.SNOMEDCT, concept.Code)
			}
		}
		c.Entries = append(c.Entries, ce)
	}
	return c
}

// AllCodes returns every code in c, both systems.
func (c *Coding) AllCodes() []string {
	out := make([]string, 0, len(c.ICD10)+len(c.SNOMEDCT))
	out = append(out, c.ICD10...)
	return append(out, c.SNOMEDCT...)
}

func (c *Coding) entry(entity string) (CodedEntity, bool) {
	for _, e := range c.Entries {
		if e.Entity == entity {
			return e, true
		}
	}
	return CodedEntity{}, false
}
