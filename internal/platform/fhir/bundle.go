package fhir

import (
	"encoding/json"
	"fmt"

	"github.com/ehr/careagent/pkg/fhirmodels"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// NewCollectionBundle creates a collection Bundle. Entries keep the given order
// and the Bundle carries no timestamp, so identical input yields identical JSON.
func NewCollectionBundle(id string, entries []BundleEntry) *Bundle {
	if entries == nil {
		entries = []BundleEntry{}
	}
	return &Bundle{
		ResourceType: "Bundle",
		ID:           id,
		Type:         fhirmodels.BundleTypeCollection,
		Entry:        entries,
	}
}

// NewEntry marshals a resource into an entry addressed by a urn:uuid fullUrl.
func NewEntry(id string, resource interface{}) (BundleEntry, error) {
	raw, err := json.Marshal(resource)
	if err != nil {
		return BundleEntry{}, fmt.Errorf("marshal bundle entry %s: %w", id, err)
	}
	return BundleEntry{FullURL: "urn:uuid:" + id, Resource: raw}, nil
}

// ResourceTypes lists the resourceType of every entry, in order.
func (b *Bundle) ResourceTypes() []string {
	out := make([]string, 0, len(b.Entry))
	for _, e := range b.Entry {
		var r struct {
			ResourceType string `json:"resourceType"`
		}
		_ = json.Unmarshal(e.Resource, &r)
		out = append(out, r.ResourceType)
	}
	return out
}

// FormatReference returns a relative FHIR reference such as "Patient/123".
func FormatReference(resourceType, id string) string {
	return resourceType + "/" + id
}
