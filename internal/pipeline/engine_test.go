package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ehr/careagent/internal/llm"
)

var fixedClock = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

func runTurn(t *testing.T, h TurnHandler, utterance string, tc *TurnContext, a llm.Adapter) *AgentOutput {
	t.Helper()
	out, err := h.HandleTurn(context.Background(), utterance, tc, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return out
}

// =========== Stage Keys ===========

func TestOrchestrator_BaseKeys(t *testing.T) {
	o := NewOrchestrator()
	out := runTurn(t, o, "I have a cough", &TurnContext{}, llm.None)

	want := []StageName{StageExtraction, StageRisk, StageHistory, StageTriage, StageSupport, StageSummary}
	if got := out.Data.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected keys %v, got %v", want, got)
	}
	if !reflect.DeepEqual(o.Stages(), want) {
		t.Errorf("Stages() = %v", o.Stages())
	}
	if out.NeedsReview() {
		t.Error("base mode has no review gate")
	}
}

func TestOrchestrator_ExtendedKeys(t *testing.T) {
	o := NewExtendedOrchestrator()
	for _, u := range []string{"I have a cough", "", "   ", "chest pain on exertion"} {
		out := runTurn(t, o, u, &TurnContext{}, llm.None)
		if got := out.Data.Keys(); !reflect.DeepEqual(got, allStages) {
			t.Errorf("%q: expected keys %v, got %v", u, allStages, got)
		}
	}
}

func TestNew_Mode(t *testing.T) {
	if _, ok := New(ModeBase).(*Orchestrator); !ok {
		t.Error("expected base orchestrator")
	}
	if _, ok := New(ModeExtended).(*ExtendedOrchestrator); !ok {
		t.Error("expected extended orchestrator")
	}
}

func TestHandleTurn_MissingContext(t *testing.T) {
	_, err := NewExtendedOrchestrator().HandleTurn(context.Background(), "hi", nil, llm.None)
	if !errors.Is(err, ErrMissingContext) {
		t.Errorf("expected ErrMissingContext, got %v", err)
	}
}

// =========== Scenarios ===========

func TestScenario_ExertionalChestPainWithDiabetes(t *testing.T) {
	o := NewExtendedOrchestrator(WithClock(fixedClock))
	tc := &TurnContext{UserID: "patient-7", Region: "uk"}
	out := runTurn(t, o, "I've had chest pain that gets worse when I climb the stairs, and I have diabetes.", tc, llm.None)

	if out.Data.Risk.Tier != TierEmergency {
		t.Fatalf("expected emergency, got %s", out.Data.Risk.Tier)
	}
	if !hasRule(out.Data.Risk, "exertional-chest-pain") {
		t.Errorf("expected exertional-chest-pain, got %v", ruleIDs(out.Data.Risk))
	}
	if out.Data.Triage.Band != BandEmergency {
		t.Errorf("expected emergency band, got %s", out.Data.Triage.Band)
	}
	if !out.NeedsReview() || out.Data.HITL.Rule != HITLEmergencyBand {
		t.Errorf("expected emergency review, got %+v", out.Data.HITL)
	}
	if out.Avatar != AvatarEmergency {
		t.Errorf("expected emergency avatar, got %s", out.Avatar)
	}
	if !strings.Contains(out.Text, "999") {
		t.Errorf("expected emergency number in %q", out.Text)
	}
	if !reflect.DeepEqual(out.Data.Coding.ICD10, []string{"R07.9", "E11.9"}) {
		t.Errorf("unexpected ICD-10 codes: %v", out.Data.Coding.ICD10)
	}
	if out.Data.Coding.SNOMEDCT[0] != "29857009" {
		t.Errorf("unexpected SNOMED CT codes: %v", out.Data.Coding.SNOMEDCT)
	}
	if got := len(out.Data.MedicalRecord.FHIR.Entry); got != 2 {
		t.Errorf("expected 2 bundle entries, got %d", got)
	}
	if out.Meta.Confidence != ConfidenceRulesOnly || !out.Meta.StartedAt.Equal(fixedClock()) {
		t.Errorf("unexpected meta: %+v", out.Meta)
	}
	if ContainsCode(out.Text) || ContainsCode(out.Data.Summary.PatientSummary) {
		t.Error("patient-facing text must not contain codes")
	}
}

func TestScenario_MildHeadache(t *testing.T) {
	out := runTurn(t, NewExtendedOrchestrator(), "I have a mild headache", &TurnContext{Region: "us"}, llm.None)

	if out.Data.Risk.Tier != TierLow || out.Data.Triage.Band != BandSelfCare {
		t.Errorf("expected low/self-care, got %s/%s", out.Data.Risk.Tier, out.Data.Triage.Band)
	}
	if out.NeedsReview() {
		t.Errorf("expected no review, got %+v", out.Data.HITL)
	}
	if out.Avatar != AvatarTriageNurse {
		t.Errorf("unexpected avatar %s", out.Avatar)
	}
	if out.Text != out.Data.Summary.PatientSummary {
		t.Errorf("expected patient summary as reply, got %q", out.Text)
	}
	if len(out.Data.Support.Advice) == 0 || out.Data.Support.Message != "" {
		t.Errorf("unexpected support: %+v", out.Data.Support)
	}
}

func TestScenario_FailingAdapter(t *testing.T) {
	a := llm.Failing(errors.New("connection refused"))
	out := runTurn(t, NewExtendedOrchestrator(), "I've had a fever for two days", &TurnContext{}, a)

	if got := out.Data.Keys(); !reflect.DeepEqual(got, allStages) {
		t.Fatalf("expected complete output, got %v", got)
	}
	if out.Meta.Confidence != ConfidenceDegraded {
		t.Errorf("expected degraded confidence, got %s", out.Meta.Confidence)
	}
	if out.Data.Risk.Tier != TierModerate {
		t.Errorf("expected moderate, got %s", out.Data.Risk.Tier)
	}
	if !out.NeedsReview() || out.Data.HITL.Rule != HITLDegradedConfidence {
		t.Errorf("expected degraded review, got %+v", out.Data.HITL)
	}
	if out.Data.Reasoning.Narrative != BulletNarrative(out.Data.Reasoning.Steps) {
		t.Errorf("expected bullet narrative, got %q", out.Data.Reasoning.Narrative)
	}
	if len(out.Meta.AdapterCalls) == 0 {
		t.Fatal("expected adapter calls to be recorded")
	}
	for _, c := range out.Meta.AdapterCalls {
		if c.Outcome != OutcomeFailed {
			t.Errorf("expected failed call, got %+v", c)
		}
	}
	if len(out.Meta.StageFailures) != 0 {
		t.Errorf("adapter failures are not stage failures: %+v", out.Meta.StageFailures)
	}
}

func TestScenario_UnrecognisedWithoutAdapter(t *testing.T) {
	const u = "I suddenly can't feel my left leg and my vision went blurry"

	out := runTurn(t, NewExtendedOrchestrator(), u, &TurnContext{Region: "uk"}, llm.None)
	if !out.Data.Risk.Inconclusive {
		t.Fatalf("expected inconclusive risk, got %+v", out.Data.Risk)
	}
	if !out.NeedsReview() || out.Data.HITL.Rule != HITLInconclusiveDegraded {
		t.Errorf("expected inconclusive-degraded review, got %+v", out.Data.HITL)
	}
	if strings.Contains(out.Data.Summary.PatientSummary, "looked after at home") {
		t.Errorf("expected urgent advice, got %q", out.Data.Summary.PatientSummary)
	}
	if !strings.Contains(out.Text, "NHS 111") {
		t.Errorf("expected urgent service in reply, got %q", out.Text)
	}

	base := runTurn(t, NewOrchestrator(), u, &TurnContext{Region: "uk"}, llm.None)
	if want := PatientSummary(BandUrgent, "uk", nil, false); base.Text != want {
		t.Errorf("expected urgent-advice reply in base mode, got %q", base.Text)
	}

	lenient := NewExtendedOrchestrator(WithPolicy(Policy{DegradedMinTier: TierModerate}))
	out = runTurn(t, lenient, u, &TurnContext{Region: "uk"}, llm.None)
	if out.NeedsReview() {
		t.Errorf("absent adapter is not degraded under this policy, got %+v", out.Data.HITL)
	}
	if !strings.Contains(out.Text, "looked after at home") {
		t.Errorf("expected self-care reply, got %q", out.Text)
	}
}

// =========== Properties ===========

func TestHandleTurn_ConcurrentCallsMatchSequential(t *testing.T) {
	o := NewExtendedOrchestrator()
	utterances := []string{
		"I've had chest pain that gets worse when I climb the stairs, and I have diabetes.",
		"I have a mild headache",
		"I've had a fever for two days",
		"Wheezing since last night and I'm breathless. I use ventolin",
		"My spleen feels philosophical",
	}
	tc := &TurnContext{UserID: "u-1", Region: "uk", Memory: &Memory{Conditions: []string{"asthma"}}}

	want := make([]string, len(utterances))
	for i, u := range utterances {
		data, _ := json.Marshal(runTurn(t, o, u, tc, llm.None).Data)
		want[i] = string(data)
	}

	const rounds = 8
	got := make([]string, rounds*len(utterances))
	var wg sync.WaitGroup
	for r := 0; r < rounds; r++ {
		for i, u := range utterances {
			wg.Add(1)
			go func(slot int, u string) {
				defer wg.Done()
				out, err := o.HandleTurn(context.Background(), u, tc, llm.None)
				if err != nil {
					return
				}
				data, _ := json.Marshal(out.Data)
				got[slot] = string(data)
			}(r*len(utterances)+i, u)
		}
	}
	wg.Wait()

	for slot, g := range got {
		if w := want[slot%len(utterances)]; g != w {
			t.Errorf("turn %d differs from sequential run:\n%s\n%s", slot, g, w)
		}
	}
}

func TestHandleTurn_Deterministic(t *testing.T) {
	o := NewExtendedOrchestrator()
	tc := &TurnContext{UserID: "u-1", Region: "ie", Memory: &Memory{Conditions: []string{"asthma"}}}
	u := "Wheezing since last night and I'm breathless. I use ventolin"

	a, _ := json.Marshal(runTurn(t, o, u, tc, llm.None).Data)
	b, _ := json.Marshal(runTurn(t, o, u, tc, llm.None).Data)
	if string(a) != string(b) {
		t.Errorf("expected identical data:\n%s\n%s", a, b)
	}
}

func TestHandleTurn_EmergencyAlwaysReviewed(t *testing.T) {
	o := NewExtendedOrchestrator()
	for _, u := range []string{
		"my face is drooping",
		"I want to end my life",
		"chest pain and difficulty breathing",
		"sudden headache",
	} {
		for _, a := range []llm.Adapter{llm.None, llm.Static("We are here to help."), llm.Failing(llm.ErrFailure)} {
			out := runTurn(t, o, u, &TurnContext{}, a)
			if out.Data.Triage.Band != BandEmergency {
				t.Fatalf("%q: expected emergency band", u)
			}
			if !out.NeedsReview() {
				t.Errorf("%q with %s: emergency not reviewed", u, a.Name())
			}
		}
	}
}

func TestHandleTurn_PatientTextNeverHasCodes(t *testing.T) {
	o := NewExtendedOrchestrator()
	for _, a := range []llm.Adapter{llm.None, llm.Static("Your code is R07.9")} {
		out := runTurn(t, o, "chest pain", &TurnContext{}, a)
		if ContainsCode(out.Text) || ContainsCode(out.Data.Summary.PatientSummary) {
			t.Errorf("%s: codes leaked into %q", a.Name(), out.Text)
		}
	}
}

func TestHandleTurn_InputNotMutated(t *testing.T) {
	tc := &TurnContext{UserID: "u", Memory: &Memory{Conditions: []string{"asthma"}}}
	before, _ := json.Marshal(tc)
	runTurn(t, NewExtendedOrchestrator(), "a cough and diabetes", tc, llm.None)
	after, _ := json.Marshal(tc)
	if string(before) != string(after) {
		t.Errorf("context mutated: %s -> %s", before, after)
	}
}

// =========== Adapter Handling ===========

func TestHandleTurn_AdapterTextAccepted(t *testing.T) {
	a := llm.Static("Thanks for letting us know, we hear you.")
	out := runTurn(t, NewExtendedOrchestrator(), "I have a cough", &TurnContext{}, a)

	if out.Meta.Confidence != ConfidenceFull || out.Meta.Model != "static" {
		t.Errorf("unexpected meta: %+v", out.Meta)
	}
	if out.Data.Support.Message != "Thanks for letting us know, we hear you." {
		t.Errorf("unexpected support message %q", out.Data.Support.Message)
	}
	if out.Data.Summary.PatientSummary != "Thanks for letting us know, we hear you." {
		t.Errorf("unexpected patient summary %q", out.Data.Summary.PatientSummary)
	}
}

func TestHandleTurn_AdapterCodeEchoRejected(t *testing.T) {
	a := llm.Static("This looks like R05.9 to me.")
	out := runTurn(t, NewExtendedOrchestrator(), "I've had a fever for two days", &TurnContext{}, a)

	if out.Data.Support.Message != "" {
		t.Errorf("expected rejected tone line, got %q", out.Data.Support.Message)
	}
	if out.Data.Summary.PatientSummary != PatientSummary(BandRoutine, "", out.Data.Support, false) {
		t.Errorf("expected template summary, got %q", out.Data.Summary.PatientSummary)
	}
	for _, c := range out.Meta.AdapterCalls {
		if c.Outcome != OutcomeRejected {
			t.Errorf("expected rejected call, got %+v", c)
		}
	}
	if out.Meta.Confidence != ConfidenceFull {
		t.Errorf("rejections are not degradation, got %s", out.Meta.Confidence)
	}
	if out.NeedsReview() {
		t.Errorf("unexpected review: %+v", out.Data.HITL)
	}
}

func TestHandleTurn_EmergencyRewriteMustKeepNumber(t *testing.T) {
	a := llm.Static("Please rest and see how you feel tomorrow.")
	out := runTurn(t, NewExtendedOrchestrator(), "chest pain on exertion", &TurnContext{Region: "us"}, a)
	if !strings.Contains(out.Data.Summary.PatientSummary, "911") {
		t.Errorf("emergency summary lost the emergency number: %q", out.Data.Summary.PatientSummary)
	}
}

func TestHandleTurn_AdapterTimeout(t *testing.T) {
	slow := llm.Func(func(ctx context.Context, _ []llm.Message) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	o := NewExtendedOrchestrator(WithAdapterTimeout(20 * time.Millisecond))
	out := runTurn(t, o, "I have a cough", &TurnContext{}, slow)

	if out.Meta.Confidence != ConfidenceDegraded {
		t.Errorf("expected degraded, got %s", out.Meta.Confidence)
	}
	for _, c := range out.Meta.AdapterCalls {
		if c.Outcome != OutcomeTimeout {
			t.Errorf("expected timeout outcome, got %+v", c)
		}
	}
	if out.Data.Summary.PatientSummary == "" {
		t.Error("expected template summary")
	}
}

func TestHandleTurn_AdapterPanic(t *testing.T) {
	boom := llm.Func(func(context.Context, []llm.Message) (string, error) {
		panic("adapter exploded")
	})
	out := runTurn(t, NewExtendedOrchestrator(), "I have a cough", &TurnContext{}, boom)
	if out.Meta.Confidence != ConfidenceDegraded {
		t.Errorf("expected degraded, got %s", out.Meta.Confidence)
	}
}

// =========== Fallbacks ===========

func TestHandleTurn_InvalidInput(t *testing.T) {
	out := runTurn(t, NewExtendedOrchestrator(), "  \n ", &TurnContext{Region: "uk"}, llm.Static("hello"))

	if !out.Meta.InvalidInput {
		t.Error("expected invalid input flag")
	}
	if !out.NeedsReview() || out.Data.HITL.Rule != HITLInvalidInput {
		t.Errorf("expected invalid-input review, got %+v", out.Data.HITL)
	}
	if out.Avatar != AvatarFallback {
		t.Errorf("expected fallback avatar, got %s", out.Avatar)
	}
	if !strings.Contains(out.Text, "999") {
		t.Errorf("expected emergency number in %q", out.Text)
	}
	if len(out.Meta.AdapterCalls) != 0 {
		t.Errorf("adapter must not be called for invalid input: %+v", out.Meta.AdapterCalls)
	}

	base := runTurn(t, NewOrchestrator(), "", &TurnContext{}, llm.None)
	if !base.Meta.InvalidInput || base.Avatar != AvatarFallback {
		t.Errorf("unexpected base output: %+v", base.Meta)
	}
}

func TestHandleTurn_StagePanicFallsBack(t *testing.T) {
	stages := append([]stage{}, extendedStages...)
	stages[1] = stage{
		name:     StageRisk,
		safety:   true,
		run:      func(context.Context, *Turn) error { panic("rules offline") },
		fallback: riskStage.fallback,
	}
	e := newEngine(ModeExtended, stages)
	out, err := e.HandleTurn(context.Background(), "I have a mild headache", &TurnContext{}, llm.None)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Data.Risk.Tier != TierHigh || out.Data.Triage.Band != BandUrgent {
		t.Errorf("expected conservative fallback, got %s/%s", out.Data.Risk.Tier, out.Data.Triage.Band)
	}
	if len(out.Meta.StageFailures) != 1 || out.Meta.StageFailures[0].Stage != StageRisk {
		t.Errorf("unexpected failures: %+v", out.Meta.StageFailures)
	}
	if !out.NeedsReview() || out.Data.HITL.Rule != HITLStageFailure {
		t.Errorf("expected stage-failure review, got %+v", out.Data.HITL)
	}
	if got := out.Data.Keys(); !reflect.DeepEqual(got, allStages) {
		t.Errorf("expected complete output, got %v", got)
	}
}

func TestHandleTurn_StageWithoutResultFallsBack(t *testing.T) {
	stages := append([]stage{}, baseStages...)
	stages[4] = stage{
		name:     StageSupport,
		run:      func(context.Context, *Turn) error { return nil },
		fallback: supportStage.fallback,
	}
	out, _ := newEngine(ModeBase, stages).HandleTurn(context.Background(), "a cough", &TurnContext{}, llm.None)
	if out.Data.Support == nil || len(out.Meta.StageFailures) != 1 {
		t.Errorf("expected support fallback, got %+v", out.Meta.StageFailures)
	}
}

func TestHandleTurn_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := NewExtendedOrchestrator().HandleTurn(ctx, "chest pain", &TurnContext{}, llm.Static("ok then"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Meta.Cancelled {
		t.Error("expected cancelled flag")
	}
	if got := out.Data.Keys(); !reflect.DeepEqual(got, allStages) {
		t.Errorf("expected complete output, got %v", got)
	}
	if out.Meta.Confidence != ConfidenceDegraded {
		t.Errorf("expected degraded confidence, got %s", out.Meta.Confidence)
	}
}
