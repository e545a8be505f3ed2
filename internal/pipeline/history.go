package pipeline

import "strings"

// BuildHistory folds caller memory with this turn's entities and statements.
// Memory entries come first; duplicates keep their first position.
func BuildHistory(utterance string, tc TurnContext, ex *Extraction) *HistoryRecord {
	h := &HistoryRecord{Conditions: []string{}, Medications: []string{}, Narrative: []string{}}
	conditions := newOrderedSet(&h.Conditions)
	medications := newOrderedSet(&h.Medications)

	if tc.Memory != nil {
		for _, c := range tc.Memory.Conditions {
			conditions.add(c)
		}
		for _, m := range tc.Memory.Medications {
			medications.add(m)
		}
		for _, n := range tc.Memory.Narrative {
			if n = strings.TrimSpace(n); n != "" {
				h.Narrative = append(h.Narrative, n)
			}
		}
	}
	if ex != nil {
		for _, e := range ex.Entities {
			if e.Kind == KindMedication {
				medications.add(e.Name)
			} else {
				conditions.add(e.Name)
			}
		}
	}
	h.Narrative = append(h.Narrative, SplitSentences(utterance)...)
	return h
}

type orderedSet struct {
	items *[]string
	seen  map[string]bool
}

func newOrderedSet(items *[]string) *orderedSet {
	return &orderedSet{items: items, seen: make(map[string]bool)}
}

func (s *orderedSet) add(v string) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" || s.seen[v] {
		return
	}
	s.seen[v] = true
	*s.items = append(*s.items, v)
}
