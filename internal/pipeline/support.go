package pipeline

import (
	"fmt"

	"github.com/ehr/careagent/internal/llm"
)

type supportTemplate struct {
	advice    []string
	safetyNet string
}

var supportTemplates = map[Band]supportTemplate{
	BandSelfCare: {
		advice: []string{
			"Rest and keep well hydrated.",
			"Over-the-counter pain relief may help if it is suitable for you; follow the label.",
			"Keep an eye on how your symptoms change over the next few days.",
		},
		safetyNet: "If your symptoms get worse, or you notice anything new, contact {routine} or {urgent}.",
	},
	BandRoutine: {
		advice: []string{
			"Book an appointment with {routine} in the next few days.",
			"Keep a note of your symptoms, when they started and what makes them better or worse.",
			"Bring a list of any medicines you take.",
		},
		safetyNet: "If things get worse before your appointment, contact {urgent}. If you feel severely unwell, call {emergency}.",
	},
	BandUrgent: {
		advice: []string{
			"Please get medical advice today from {urgent}.",
			"Do not wait to see if the symptoms settle on their own.",
			"If possible, have someone stay with you.",
		},
		safetyNet: "If your symptoms become severe or you are getting rapidly worse, call {emergency} immediately.",
	},
	BandEmergency: {
		advice: []string{
			"Call {emergency} now.",
			"Stay where you are and do not drive yourself to hospital.",
			"If someone is with you, ask them to stay and to unlock the door for the emergency services.",
		},
		safetyNet: "Do not delay. This needs immediate medical attention.",
	},
}

// GuidanceFor returns the canned guidance for a band in a region.
func GuidanceFor(band Band, region string) *SupportGuidance {
	tpl, ok := supportTemplates[band]
	if !ok {
		tpl = supportTemplates[BandUrgent]
	}
	svc := servicesFor(region)
	g := &SupportGuidance{Advice: make([]string, 0, len(tpl.advice)), SafetyNet: svc.fill(tpl.safetyNet)}
	for _, a := range tpl.advice {
		g.Advice = append(g.Advice, svc.fill(a))
	}
	return g
}

func toneMessages(utterance string, band Band) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a calm, warm clinical assistant. Write one or two sentences " +
			"acknowledging the patient's message. Do not give advice, diagnoses, medicines, codes or instructions."},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Patient message: %q\nAgreed level of care: %s", utterance, band)},
	}
}
