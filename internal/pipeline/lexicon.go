package pipeline

import "sort"

type lexeme struct {
	phrase string
	name   string
	kind   EntityKind
}

// lexicon maps surface phrases to canonical entity names. Every canonical name
// must have a coding table entry.
var lexicon = []lexeme{
	{"chest pain", "chest pain", KindSymptom},
	{"pain in my chest", "chest pain", KindSymptom},
	{"chest tightness", "chest pain", KindSymptom},
	{"tight chest", "chest pain", KindSymptom},
	{"chest pressure", "chest pain", KindSymptom},
	{"shortness of breath", "shortness of breath", KindSymptom},
	{"short of breath", "shortness of breath", KindSymptom},
	{"breathless", "shortness of breath", KindSymptom},
	{"breathlessness", "shortness of breath", KindSymptom},
	{"can't breathe", "shortness of breath", KindSymptom},
	{"cannot breathe", "shortness of breath", KindSymptom},
	{"difficulty breathing", "shortness of breath", KindSymptom},
	{"headache", "headache", KindSymptom},
	{"migraine", "headache", KindSymptom},
	{"fever", "fever", KindSymptom},
	{"high temperature", "fever", KindSymptom},
	{"feverish", "fever", KindSymptom},
	{"cough", "cough", KindSymptom},
	{"coughing", "cough", KindSymptom},
	{"dizzy", "dizziness", KindSymptom},
	{"dizziness", "dizziness", KindSymptom},
	{"lightheaded", "dizziness", KindSymptom},
	{"light-headed", "dizziness", KindSymptom},
	{"nausea", "nausea", KindSymptom},
	{"nauseous", "nausea", KindSymptom},
	{"vomiting", "vomiting", KindSymptom},
	{"vomited", "vomiting", KindSymptom},
	{"throwing up", "vomiting", KindSymptom},
	{"abdominal pain", "abdominal pain", KindSymptom},
	{"stomach pain", "abdominal pain", KindSymptom},
	{"stomach ache", "abdominal pain", KindSymptom},
	{"stomachache", "abdominal pain", KindSymptom},
	{"tummy ache", "abdominal pain", KindSymptom},
	{"belly pain", "abdominal pain", KindSymptom},
	{"back pain", "back pain", KindSymptom},
	{"backache", "back pain", KindSymptom},
	{"sore throat", "sore throat", KindSymptom},
	{"rash", "rash", KindSymptom},
	{"fatigue", "fatigue", KindSymptom},
	{"exhausted", "fatigue", KindSymptom},
	{"tiredness", "fatigue", KindSymptom},
	{"palpitations", "palpitations", KindSymptom},
	{"heart racing", "palpitations", KindSymptom},
	{"racing heart", "palpitations", KindSymptom},
	{"heart is racing", "palpitations", KindSymptom},
	{"heart pounding", "palpitations", KindSymptom},
	{"fainted", "fainting", KindSymptom},
	{"fainting", "fainting", KindSymptom},
	{"passed out", "fainting", KindSymptom},
	{"blacked out", "fainting", KindSymptom},
	{"collapsed", "fainting", KindSymptom},
	{"confused", "confusion", KindSymptom},
	{"confusion", "confusion", KindSymptom},
	{"slurred speech", "slurred speech", KindSymptom},
	{"slurring my words", "slurred speech", KindSymptom},
	{"speech is slurred", "slurred speech", KindSymptom},
	{"facial droop", "facial droop", KindSymptom},
	{"face drooping", "facial droop", KindSymptom},
	{"face is drooping", "facial droop", KindSymptom},
	{"drooping face", "facial droop", KindSymptom},
	{"weakness on one side", "one-sided weakness", KindSymptom},
	{"one-sided weakness", "one-sided weakness", KindSymptom},
	{"can't lift my arm", "one-sided weakness", KindSymptom},
	{"severe bleeding", "severe bleeding", KindSymptom},
	{"heavy bleeding", "severe bleeding", KindSymptom},
	{"bleeding heavily", "severe bleeding", KindSymptom},
	{"won't stop bleeding", "severe bleeding", KindSymptom},
	{"bleeding won't stop", "severe bleeding", KindSymptom},
	{"suicidal", "suicidal thoughts", KindSymptom},
	{"suicidal thoughts", "suicidal thoughts", KindSymptom},
	{"kill myself", "suicidal thoughts", KindSymptom},
	{"end my life", "suicidal thoughts", KindSymptom},
	{"throat swelling", "throat swelling", KindSymptom},
	{"throat is swelling", "throat swelling", KindSymptom},
	{"swollen throat", "throat swelling", KindSymptom},
	{"throat is closing", "throat swelling", KindSymptom},
	{"tongue swelling", "throat swelling", KindSymptom},
	{"stiff neck", "stiff neck", KindSymptom},
	{"neck stiffness", "stiff neck", KindSymptom},
	{"neck is stiff", "stiff neck", KindSymptom},
	{"wheezing", "wheezing", KindSymptom},
	{"wheezy", "wheezing", KindSymptom},
	{"wheeze", "wheezing", KindSymptom},

	{"diabetes", "diabetes", KindCondition},
	{"diabetic", "diabetes", KindCondition},
	{"type 2 diabetes", "diabetes", KindCondition},
	{"type 1 diabetes", "diabetes", KindCondition},
	{"high blood pressure", "hypertension", KindCondition},
	{"hypertension", "hypertension", KindCondition},
	{"asthma", "asthma", KindCondition},
	{"asthmatic", "asthma", KindCondition},
	{"copd", "copd", KindCondition},
	{"emphysema", "copd", KindCondition},
	{"heart disease", "heart disease", KindCondition},
	{"heart condition", "heart disease", KindCondition},
	{"angina", "heart disease", KindCondition},
	{"coronary artery disease", "heart disease", KindCondition},
	{"anxiety", "anxiety", KindCondition},
	{"anxious", "anxiety", KindCondition},
	{"panic attack", "anxiety", KindCondition},
	{"depression", "depression", KindCondition},
	{"depressed", "depression", KindCondition},

	{"metformin", "metformin", KindMedication},
	{"insulin", "insulin", KindMedication},
	{"aspirin", "aspirin", KindMedication},
	{"ibuprofen", "ibuprofen", KindMedication},
	{"paracetamol", "paracetamol", KindMedication},
	{"acetaminophen", "paracetamol", KindMedication},
	{"tylenol", "paracetamol", KindMedication},
	{"salbutamol", "salbutamol", KindMedication},
	{"albuterol", "salbutamol", KindMedication},
	{"ventolin", "salbutamol", KindMedication},
	{"lisinopril", "lisinopril", KindMedication},
}

// matchOrder is the lexicon sorted longest phrase first so that
// "type 2 diabetes" wins over "diabetes".
var matchOrder = func() []lexeme {
	out := append([]lexeme(nil), lexicon...)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].phrase) > len(out[j].phrase)
	})
	return out
}()

// LexiconEntities returns every canonical entity name the extractor can emit.
func LexiconEntities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, lx := range lexicon {
		if !seen[lx.name] {
			seen[lx.name] = true
			out = append(out, lx.name)
		}
	}
	return out
}

var negationCues = map[string]bool{
	"no": true, "never": true, "not": true, "without": true,
	"denies": true, "deny": true, "don't": true, "dont": true,
	"didn't": true, "haven't": true, "hasn't": true,
}

var clauseBreakWords = map[string]bool{
	"but": true, "however": true, "although": true, "though": true, "except": true,
}

var severityWords = map[string]string{
	"mild":     "mild",
	"slight":   "mild",
	"moderate": "moderate",
	"severe":   "severe",
	"bad":      "severe",
	"terrible": "severe",
	"awful":    "severe",
	"crushing": "severe",
	"intense":  "severe",
	"worst":    "worst",
}

// negationWindow is how many words before a phrase are searched for a cue.
const negationWindow = 3
