package pipeline

// facts is the view of an Extraction the risk rules evaluate.
type facts struct {
	entities  map[string]Entity
	modifiers map[string]bool
}

func newFacts(ex *Extraction) facts {
	f := facts{entities: make(map[string]Entity), modifiers: make(map[string]bool)}
	for _, e := range ex.Entities {
		f.entities[e.Name] = e
	}
	for _, m := range ex.Modifiers {
		f.modifiers[m] = true
	}
	return f
}

func (f facts) has(names ...string) bool {
	for _, n := range names {
		if _, ok := f.entities[n]; !ok {
			return false
		}
	}
	return true
}

func (f facts) any(names ...string) bool {
	for _, n := range names {
		if _, ok := f.entities[n]; ok {
			return true
		}
	}
	return false
}

func (f facts) hasKind(kind EntityKind) bool {
	for _, e := range f.entities {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func (f facts) severity(name string) string {
	return f.entities[name].Severity
}

type riskRule struct {
	id     string
	tier   Tier
	reason string
	when   func(facts) bool
}

// riskRules is evaluated top to bottom. Every predicate is monotone in the set of
// entities present, so recognising more never lowers the tier.
var riskRules = []riskRule{
	{"exertional-chest-pain", TierEmergency, "chest pain brought on by exertion", func(f facts) bool {
		return f.has("chest pain") && f.modifiers[ModifierExertional]
	}},
	{"chest-pain-breathlessness", TierEmergency, "chest pain with shortness of breath", func(f facts) bool {
		return f.has("chest pain", "shortness of breath")
	}},
	{"stroke-signs", TierEmergency, "possible stroke signs", func(f facts) bool {
		return f.any("slurred speech", "facial droop", "one-sided weakness")
	}},
	{"severe-bleeding", TierEmergency, "bleeding that is heavy or will not stop", func(f facts) bool {
		return f.has("severe bleeding")
	}},
	{"suicidal-ideation", TierEmergency, "thoughts of suicide or self-harm", func(f facts) bool {
		return f.has("suicidal thoughts")
	}},
	{"airway-swelling", TierEmergency, "swelling of the throat or tongue", func(f facts) bool {
		return f.has("throat swelling")
	}},
	{"thunderclap-headache", TierEmergency, "sudden or worst-ever headache", func(f facts) bool {
		return f.has("headache") && (f.severity("headache") == "worst" || f.modifiers[ModifierSuddenOnset])
	}},
	{"meningism", TierEmergency, "fever with a stiff neck", func(f facts) bool {
		return f.has("fever", "stiff neck")
	}},

	{"chest-pain", TierHigh, "chest pain", func(f facts) bool {
		return f.has("chest pain")
	}},
	{"breathlessness", TierHigh, "shortness of breath", func(f facts) bool {
		return f.has("shortness of breath")
	}},
	{"syncope", TierHigh, "fainting or collapse", func(f facts) bool {
		return f.has("fainting")
	}},
	{"acute-confusion", TierHigh, "new confusion", func(f facts) bool {
		return f.has("confusion")
	}},

	{"fever", TierModerate, "fever", func(f facts) bool {
		return f.has("fever")
	}},
	{"vomiting", TierModerate, "vomiting", func(f facts) bool {
		return f.has("vomiting")
	}},
	{"abdominal-pain", TierModerate, "abdominal pain", func(f facts) bool {
		return f.has("abdominal pain")
	}},
	{"palpitations", TierModerate, "palpitations", func(f facts) bool {
		return f.has("palpitations")
	}},
	{"dizziness", TierModerate, "dizziness", func(f facts) bool {
		return f.has("dizziness")
	}},
	{"wheeze", TierModerate, "wheezing", func(f facts) bool {
		return f.has("wheezing")
	}},
	{"severe-symptom", TierModerate, "a symptom described as severe", func(f facts) bool {
		for _, e := range f.entities {
			if e.Kind == KindSymptom && (e.Severity == "severe" || e.Severity == "worst") {
				return true
			}
		}
		return false
	}},
	{"comorbidity", TierModerate, "a long-term condition alongside new symptoms", func(f facts) bool {
		return f.hasKind(KindCondition) && f.hasKind(KindSymptom)
	}},
}

var redFlagRules = func() map[string]bool {
	m := make(map[string]bool)
	for _, r := range riskRules {
		if r.tier == TierEmergency {
			m[r.id] = true
		}
	}
	return m
}()

// IsRedFlag reports whether rule id belongs to the emergency red-flag set.
func IsRedFlag(rule string) bool { return redFlagRules[rule] }

// Assess applies the risk decision table. The highest tier among fired rules
// wins; triggers keep rule order.
func Assess(ex *Extraction) *RiskAssessment {
	f := newFacts(ex)
	ra := &RiskAssessment{Tier: TierLow, Triggers: []Trigger{}}
	for _, r := range riskRules {
		if !r.when(f) {
			continue
		}
		ra.Triggers = append(ra.Triggers, Trigger{Rule: r.id, Reason: r.reason})
		if r.tier > ra.Tier {
			ra.Tier = r.tier
		}
	}
	ra.Inconclusive = len(ex.Entities) == 0
	return ra
}
