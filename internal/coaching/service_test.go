package coaching

import (
	"context"
	"testing"
	"time"

	"github.com/mlahtinen/coachapp/internal/ptr"
	"github.com/mlahtinen/coachapp/internal/rules"
	"github.com/mlahtinen/coachapp/internal/testhelpers"
)

var serviceNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	now := func() time.Time { return serviceNow }
	engine := rules.NewWithClock(logger, now)
	if err := LoadDefaultRuleSets(engine); err != nil {
		t.Fatalf("LoadDefaultRuleSets() error: %v", err)
	}
	return NewServiceWithClock(logger, engine, nil, now)
}

// newDegradedService loads a rule that fails at evaluation time so every
// engine run reports failure.
func newDegradedService(t *testing.T) *Service {
	t.Helper()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	now := func() time.Time { return serviceNow }
	engine := rules.NewWithClock(logger, now)
	err := engine.LoadRuleSet(rules.RuleSet{Rules: []rules.Rule{
		{
			Name:       "broken",
			Conditions: rules.Condition{Fact: "hasProfile", Operator: "doesNotExist", Value: true},
			Event:      rules.Event{Type: rules.EventAlert, Params: rules.EventParams{}},
		},
	}})
	if err != nil {
		t.Fatalf("LoadRuleSet() error: %v", err)
	}
	return NewServiceWithClock(logger, engine, nil, now)
}

func testSessionOn(daysAgo int, feedback *Feedback) Session {
	date := serviceNow.AddDate(0, 0, -daysAgo)
	return Session{ID: "s", Date: date, PostWorkout: feedback, CompletedAt: date}
}

func TestEvaluateReadinessAppliesModifiers(t *testing.T) {
	service := newTestService(t)
	assessment := &Assessment{Energy: 2, Doms: 2, Stress: 3, Motivation: 4, Hydration: false}

	evaluation := service.EvaluateReadiness(context.Background(), nil, assessment, nil)

	if evaluation.EngineDegraded {
		t.Fatal("engine unexpectedly degraded")
	}
	if evaluation.Score >= evaluation.BaseScore {
		t.Errorf("low energy and dehydration did not lower the score: %d >= %d",
			evaluation.Score, evaluation.BaseScore)
	}
	if len(evaluation.Adjustments) != 2 {
		t.Errorf("Adjustments = %d, want 2 (%+v)", len(evaluation.Adjustments), evaluation.Adjustments)
	}
	if len(evaluation.Recommendations) == 0 {
		t.Error("expected recommendations for the fired rules")
	}
	for _, recommendation := range evaluation.Recommendations {
		if recommendation.Icon == "" || recommendation.Text == "" {
			t.Errorf("incomplete recommendation: %+v", recommendation)
		}
	}
	if evaluation.Label == "" || evaluation.Color == "" || evaluation.Summary == "" {
		t.Errorf("level metadata missing: %+v", evaluation)
	}
	if evaluation.IntensityModifier != CalculateIntensityModifier(evaluation.Score) {
		t.Errorf("IntensityModifier = %v inconsistent with score %d",
			evaluation.IntensityModifier, evaluation.Score)
	}
}

func TestEvaluateReadinessDegradesToBaseScore(t *testing.T) {
	service := newDegradedService(t)
	assessment := &Assessment{Energy: 2, Doms: 2, Stress: 3, Motivation: 4, Hydration: false}

	evaluation := service.EvaluateReadiness(context.Background(), nil, assessment, nil)

	if !evaluation.EngineDegraded {
		t.Fatal("expected a degraded evaluation")
	}
	if evaluation.Score != evaluation.BaseScore {
		t.Errorf("degraded score %d differs from base %d", evaluation.Score, evaluation.BaseScore)
	}
	if len(evaluation.Adjustments) != 0 || len(evaluation.Recommendations) != 0 {
		t.Error("degraded evaluation must not carry rule output")
	}
	if evaluation.Label == "" {
		t.Error("degraded evaluation still needs level metadata")
	}
}

func TestDetermineProgressionPainDominates(t *testing.T) {
	service := newTestService(t)
	feedback := &Feedback{RPE: 3, Completion: 95, Pain: true, PainIntensity: 3}

	evaluation := service.DetermineProgression(context.Background(), nil, nil, feedback, nil)

	if evaluation.Decision.Action != ActionDecrease {
		t.Errorf("Action = %q, want %q", evaluation.Decision.Action, ActionDecrease)
	}
	if evaluation.AdjustmentFactor != 0.9 {
		t.Errorf("AdjustmentFactor = %v, want 0.9", evaluation.AdjustmentFactor)
	}
}

func TestDetermineProgressionHighRPEStreakRests(t *testing.T) {
	service := newTestService(t)
	sessions := []Session{
		testSessionOn(3, &Feedback{RPE: 8, Completion: 90, Enjoyment: 4}),
		testSessionOn(2, &Feedback{RPE: 9, Completion: 85, Enjoyment: 4}),
		testSessionOn(1, &Feedback{RPE: 9, Completion: 85, Enjoyment: 4}),
	}
	feedback := &Feedback{RPE: 5, Completion: 90, Enjoyment: 4}

	evaluation := service.DetermineProgression(context.Background(), nil, nil, feedback, sessions)

	if evaluation.Decision.Action != ActionRest {
		t.Errorf("Action = %q, want %q (reason %q)",
			evaluation.Decision.Action, ActionRest, evaluation.Decision.Reason)
	}
	if !evaluation.FromRules {
		t.Error("rest decision should come from the rules")
	}
	if evaluation.AdjustmentFactor != 0 {
		t.Errorf("AdjustmentFactor = %v, want 0 for rest", evaluation.AdjustmentFactor)
	}
}

func TestDetermineProgressionDegradesToMatrix(t *testing.T) {
	service := newDegradedService(t)
	feedback := &Feedback{RPE: 9, Completion: 50}

	evaluation := service.DetermineProgression(context.Background(), nil, nil, feedback, nil)

	if !evaluation.EngineDegraded {
		t.Fatal("expected a degraded evaluation")
	}
	if evaluation.FromRules {
		t.Error("degraded decision cannot come from rules")
	}
	if evaluation.Decision.Action != ActionDecrease {
		t.Errorf("Action = %q, want %q from the decision matrix", evaluation.Decision.Action, ActionDecrease)
	}
}

func TestDetectAntiPatternsOvertraining(t *testing.T) {
	service := newTestService(t)
	sessions := []Session{
		testSessionOn(9, &Feedback{RPE: 8, Completion: 95, Enjoyment: 3}),
		testSessionOn(7, &Feedback{RPE: 8, Completion: 90, Enjoyment: 3}),
		testSessionOn(5, &Feedback{RPE: 9, Completion: 80, Enjoyment: 3}),
		testSessionOn(3, &Feedback{RPE: 9, Completion: 65, Enjoyment: 3}),
		testSessionOn(1, &Feedback{RPE: 9, Completion: 55, Enjoyment: 3}),
	}

	patterns := service.DetectAntiPatterns(context.Background(), nil, sessions)

	found := false
	for _, pattern := range patterns {
		if pattern.Type == PatternOvertraining {
			found = true
			if pattern.Label != antiPatternLabels[PatternOvertraining] || pattern.Icon == "" {
				t.Errorf("incomplete pattern: %+v", pattern)
			}
			if pattern.Severity != "high" {
				t.Errorf("Severity = %q, want high", pattern.Severity)
			}
		}
	}
	if !found {
		t.Errorf("overtraining not detected in %+v", patterns)
	}
}

func TestDetectAntiPatternsFallback(t *testing.T) {
	service := newDegradedService(t)
	sessions := []Session{
		testSessionOn(5, &Feedback{RPE: 9, Completion: 90, Pain: true}),
		testSessionOn(3, &Feedback{RPE: 9, Completion: 70, Pain: true}),
		testSessionOn(1, &Feedback{RPE: 9, Completion: 50}),
	}

	patterns := service.DetectAntiPatterns(context.Background(), nil, sessions)

	if len(patterns) == 0 {
		t.Fatal("fallback detection found nothing")
	}
	for _, pattern := range patterns {
		if pattern.Label == "" || pattern.Severity == "" {
			t.Errorf("incomplete fallback pattern: %+v", pattern)
		}
	}
}

func TestAdviseExerciseSelection(t *testing.T) {
	service := newTestService(t)
	profile := &UserProfile{
		BirthDate:  time.Date(1995, 1, 1, 0, 0, 0, 0, time.UTC),
		Gender:     GenderMale,
		WeightKg:   70,
		HeightCm:   175,
		Goal:       GoalToning,
		Experience: ExperienceIntermediate,
		Conditions: []HealthCondition{ConditionBackPain},
	}
	assessment := &Assessment{Energy: 4, Doms: 2, DomsAreas: []BodyArea{AreaShoulders}, Stress: 2, Motivation: 4, AvailableTime: 40, Hydration: true}

	advice := service.AdviseExerciseSelection(context.Background(), profile, assessment, nil, nil)

	if len(advice.Exclusions) != 1 || advice.Exclusions[0] != "spinal_loading" {
		t.Errorf("Exclusions = %v, want [spinal_loading]", advice.Exclusions)
	}
	foundLowerBody := false
	for _, recommendation := range advice.Recommendations {
		if recommendation.Text == "lower_body_focus" {
			foundLowerBody = true
		}
	}
	if !foundLowerBody {
		t.Errorf("lower_body_focus not recommended: %+v", advice.Recommendations)
	}
}

// newServiceWithRules builds a service around an engine loaded with just
// the given rules.
func newServiceWithRules(t *testing.T, ruleSet rules.RuleSet) *Service {
	t.Helper()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	now := func() time.Time { return serviceNow }
	engine := rules.NewWithClock(logger, now)
	if err := engine.LoadRuleSet(ruleSet); err != nil {
		t.Fatalf("LoadRuleSet() error: %v", err)
	}
	return NewServiceWithClock(logger, engine, nil, now)
}

func TestAdviseExerciseSelectionSortsByPriority(t *testing.T) {
	// serviceNow is a Saturday, so both rules fire; the one registered
	// first carries the lower priority.
	service := newServiceWithRules(t, rules.RuleSet{Rules: []rules.Rule{
		{
			Name:       "advice-low-priority",
			Conditions: rules.Condition{Fact: "isWeekend", Operator: "equal", Value: true},
			Event: rules.Event{Type: rules.EventRecommendExercise, Params: rules.EventParams{
				Recommendation: "stretching", Category: "general", Reason: "r", Priority: 1,
			}},
		},
		{
			Name:       "advice-high-priority",
			Conditions: rules.Condition{Fact: "isWeekend", Operator: "equal", Value: true},
			Event: rules.Event{Type: rules.EventRecommendExercise, Params: rules.EventParams{
				Recommendation: "mobility_work", Category: "recovery", Reason: "r", Priority: 5,
			}},
		},
	}})

	advice := service.AdviseExerciseSelection(context.Background(), nil, nil, nil, nil)

	if len(advice.Recommendations) != 2 {
		t.Fatalf("Recommendations = %d, want 2 (%+v)", len(advice.Recommendations), advice.Recommendations)
	}
	if advice.Recommendations[0].Text != "mobility_work" || advice.Recommendations[1].Text != "stretching" {
		t.Errorf("recommendations not sorted by priority descending: %+v", advice.Recommendations)
	}
}

func TestEvaluateReadinessRecommendationsSortedByPriority(t *testing.T) {
	service := newTestService(t)
	assessment := &Assessment{Energy: 1, Doms: 5, Stress: 3, Motivation: 3, Hydration: false}

	evaluation := service.EvaluateReadiness(context.Background(), nil, assessment, nil)

	if len(evaluation.Recommendations) != 3 {
		t.Fatalf("Recommendations = %d, want 3 (%+v)", len(evaluation.Recommendations), evaluation.Recommendations)
	}
	if evaluation.Recommendations[0].Category != "doms" {
		t.Errorf("first recommendation category = %q, want doms (the highest priority)",
			evaluation.Recommendations[0].Category)
	}
	for i := 1; i < len(evaluation.Recommendations); i++ {
		if evaluation.Recommendations[i].Priority > evaluation.Recommendations[i-1].Priority {
			t.Errorf("recommendations not sorted by priority descending: %+v", evaluation.Recommendations)
		}
	}
}

func TestDetermineProgressionReadsAssessment(t *testing.T) {
	service := newServiceWithRules(t, rules.RuleSet{Rules: []rules.Rule{
		{
			Name:       "progression-exhausted",
			Conditions: rules.Condition{Fact: "assessment", Path: "energy", Operator: "lessThanInclusive", Value: 2},
			Event: rules.Event{Type: rules.EventProgression, Params: rules.EventParams{
				Action: "rest", Reason: "Energia esaurita", Priority: 50,
			}},
		},
	}})
	feedback := &Feedback{RPE: 5, Completion: 90, CouldDoMore: true, Enjoyment: 4}

	exhausted := &Assessment{Energy: 1, Doms: 1, Stress: 3, Motivation: 3, Hydration: true}
	evaluation := service.DetermineProgression(context.Background(), nil, exhausted, feedback, nil)
	if evaluation.Decision.Action != ActionRest || !evaluation.FromRules {
		t.Errorf("assessment-conditioned rule did not decide: %+v", evaluation)
	}

	// Without the assessment the neutral default energy keeps the rule
	// silent and the decision matrix applies.
	evaluation = service.DetermineProgression(context.Background(), nil, nil, feedback, nil)
	if evaluation.FromRules {
		t.Errorf("rule fired without assessment facts: %+v", evaluation)
	}
}

func TestCollectAlertsSortedBySeverity(t *testing.T) {
	service := newTestService(t)
	assessment := &Assessment{Energy: 1, Doms: 1, Stress: 3, Motivation: 3, Hydration: true, ReadinessScore: ptr.Ref(20)}
	sessions := []Session{testSessionOn(8, &Feedback{RPE: 5, Completion: 90})}

	alerts := service.CollectAlerts(context.Background(), nil, assessment, nil, sessions)

	if len(alerts) < 2 {
		t.Fatalf("expected critical readiness and long absence alerts, got %+v", alerts)
	}
	if alerts[0].Severity != "high" {
		t.Errorf("first alert severity = %q, want high", alerts[0].Severity)
	}
	for i := 1; i < len(alerts); i++ {
		if severityRank(alerts[i].Severity) > severityRank(alerts[i-1].Severity) {
			t.Errorf("alerts not sorted by severity: %+v", alerts)
		}
	}
}

func TestEvaluateAll(t *testing.T) {
	service := newTestService(t)
	input := EvaluationInput{
		Profile: &UserProfile{
			Name:       "Marco",
			BirthDate:  time.Date(1988, 5, 10, 0, 0, 0, 0, time.UTC),
			Gender:     GenderMale,
			WeightKg:   80,
			HeightCm:   180,
			Goal:       GoalStrength,
			Experience: ExperienceIntermediate,
		},
		Assessment: &Assessment{Energy: 4, Doms: 2, Stress: 2, Motivation: 4, AvailableTime: 45, Hydration: true},
		Feedback:   &Feedback{RPE: 6, Completion: 85, Enjoyment: 4},
		Sessions: []Session{
			testSessionOn(4, &Feedback{RPE: 5, Completion: 95, Enjoyment: 4}),
			testSessionOn(2, &Feedback{RPE: 6, Completion: 90, Enjoyment: 4}),
		},
	}

	report, err := service.EvaluateAll(context.Background(), input)
	if err != nil {
		t.Fatalf("EvaluateAll() error: %v", err)
	}

	if !report.GeneratedAt.Equal(serviceNow) {
		t.Errorf("GeneratedAt = %v, want %v", report.GeneratedAt, serviceNow)
	}
	if report.Readiness.Score == 0 || report.Readiness.Label == "" {
		t.Errorf("readiness missing: %+v", report.Readiness)
	}
	if report.Progression.Decision.Action == "" || report.Progression.Label == "" {
		t.Errorf("progression missing: %+v", report.Progression)
	}
	if report.CoachNote == "" {
		t.Error("report carries no coach note")
	}
}

func TestEvaluateAllCancelledContext(t *testing.T) {
	service := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := service.EvaluateAll(ctx, EvaluationInput{}); err == nil {
		t.Error("expected an error from a cancelled context")
	}
}
