package rules_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mlahtinen/coachapp/internal/rules"
	"github.com/mlahtinen/coachapp/internal/testhelpers"
)

func newTestEngine(t *testing.T) *rules.Engine {
	t.Helper()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	now := func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	return rules.NewWithClock(logger, now)
}

func TestRunWithoutRules(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Run(context.Background(), rules.Facts{"anything": 1})
	if !result.Success {
		t.Fatalf("Run() failed: %s", result.Error)
	}
	if len(result.Events) != 0 {
		t.Errorf("expected no events from an empty engine, got %d", len(result.Events))
	}
}

func TestRunNestedConditions(t *testing.T) {
	ruleSetJSON := `{
	  "rules": [
	    {
	      "name": "tired-or-sore-beginner",
	      "conditions": {
	        "all": [
	          {"fact": "isBeginner", "operator": "equal", "value": true},
	          {
	            "any": [
	              {"fact": "assessment", "path": "energy", "operator": "lessThanInclusive", "value": 2},
	              {"fact": "assessment", "path": "doms", "operator": "greaterThanInclusive", "value": 4}
	            ]
	          }
	        ]
	      },
	      "event": {
	        "type": "readiness_modifier",
	        "params": {"modifier": -10, "reason": "tired beginner", "category": "energy"}
	      }
	    }
	  ]
	}`

	ruleSet, err := rules.ParseRuleSet([]byte(ruleSetJSON))
	if err != nil {
		t.Fatalf("ParseRuleSet() error: %v", err)
	}

	engine := newTestEngine(t)
	if err = engine.LoadRuleSet(ruleSet); err != nil {
		t.Fatalf("LoadRuleSet() error: %v", err)
	}

	tests := []struct {
		name      string
		facts     rules.Facts
		wantMatch bool
	}{
		{
			name: "matches through any branch",
			facts: rules.Facts{
				"isBeginner": true,
				"assessment": map[string]any{"energy": 2, "doms": 1},
			},
			wantMatch: true,
		},
		{
			name: "all branch fails",
			facts: rules.Facts{
				"isBeginner": false,
				"assessment": map[string]any{"energy": 1, "doms": 5},
			},
			wantMatch: false,
		},
		{
			name: "neither any branch matches",
			facts: rules.Facts{
				"isBeginner": true,
				"assessment": map[string]any{"energy": 4, "doms": 2},
			},
			wantMatch: false,
		},
		{
			name:      "missing nested fact fails to match without error",
			facts:     rules.Facts{"isBeginner": true},
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Run(context.Background(), tt.facts)
			if !result.Success {
				t.Fatalf("Run() failed: %s", result.Error)
			}
			if got := len(result.Events) == 1; got != tt.wantMatch {
				t.Errorf("matched = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}

func TestRunReportsUnknownOperator(t *testing.T) {
	engine := newTestEngine(t)
	err := engine.LoadRuleSet(rules.RuleSet{Rules: []rules.Rule{
		{
			Name:       "bad-operator",
			Conditions: rules.Condition{Fact: "age", Operator: "sometimesEquals", Value: 30},
			Event:      rules.Event{Type: rules.EventAlert, Params: rules.EventParams{Reason: "nope"}},
		},
	}})
	if err != nil {
		t.Fatalf("LoadRuleSet() error: %v", err)
	}

	result := engine.Run(context.Background(), rules.Facts{"age": 30})
	if result.Success {
		t.Fatal("expected Run() to fail on unknown operator")
	}
	if len(result.Events) != 0 {
		t.Errorf("failed run must carry no events, got %d", len(result.Events))
	}
	if result.Error == "" {
		t.Error("failed run must carry an error message")
	}
}

func TestLoadRuleSetValidation(t *testing.T) {
	tests := []struct {
		name string
		rule rules.Rule
	}{
		{
			name: "nameless rule",
			rule: rules.Rule{
				Name:       "",
				Conditions: rules.Condition{Fact: "age", Operator: "equal", Value: 1},
				Event:      rules.Event{Type: rules.EventAlert, Params: rules.EventParams{}},
			},
		},
		{
			name: "leaf without operator",
			rule: rules.Rule{
				Name:       "broken",
				Conditions: rules.Condition{Fact: "age"},
				Event:      rules.Event{Type: rules.EventAlert, Params: rules.EventParams{}},
			},
		},
		{
			name: "group with both all and any",
			rule: rules.Rule{
				Name: "broken-group",
				Conditions: rules.Condition{
					All: []rules.Condition{{Fact: "age", Operator: "equal", Value: 1}},
					Any: []rules.Condition{{Fact: "age", Operator: "equal", Value: 2}},
				},
				Event: rules.Event{Type: rules.EventAlert, Params: rules.EventParams{}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t)
			if err := engine.LoadRuleSet(rules.RuleSet{Rules: []rules.Rule{tt.rule}}); err == nil {
				t.Error("expected LoadRuleSet() to reject the rule")
			}
		})
	}
}

func TestLoadRuleSetReplacesByName(t *testing.T) {
	engine := newTestEngine(t)

	original := rules.RuleSet{Rules: []rules.Rule{
		{
			Name:       "low-energy",
			Conditions: rules.Condition{Fact: "energy", Operator: "lessThanInclusive", Value: 2},
			Event:      rules.Event{Type: rules.EventReadinessModifier, Params: rules.EventParams{Modifier: -5}},
		},
	}}
	if err := engine.LoadRuleSet(original); err != nil {
		t.Fatalf("LoadRuleSet() error: %v", err)
	}

	// Reloading the same set must not accumulate duplicates.
	replacement := rules.RuleSet{Rules: []rules.Rule{
		{
			Name:       "low-energy",
			Conditions: rules.Condition{Fact: "energy", Operator: "lessThanInclusive", Value: 2},
			Event:      rules.Event{Type: rules.EventReadinessModifier, Params: rules.EventParams{Modifier: -10}},
		},
	}}
	if err := engine.LoadRuleSet(replacement); err != nil {
		t.Fatalf("LoadRuleSet() error: %v", err)
	}

	if count := engine.RuleCount(); count != 1 {
		t.Fatalf("expected 1 rule after reload, got %d", count)
	}

	result := engine.Run(context.Background(), rules.Facts{"energy": 1})
	if !result.Success {
		t.Fatalf("Run() failed: %s", result.Error)
	}
	want := []rules.Event{
		{Type: rules.EventReadinessModifier, Params: rules.EventParams{Modifier: -10}},
	}
	if diff := cmp.Diff(want, result.Events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	engine := newTestEngine(t)
	err := engine.LoadRuleSet(rules.RuleSet{Rules: []rules.Rule{
		{
			Name:       "first",
			Conditions: rules.Condition{Fact: "flag", Operator: "equal", Value: true},
			Event:      rules.Event{Type: rules.EventAlert, Params: rules.EventParams{Reason: "first"}},
		},
		{
			Name:       "second",
			Conditions: rules.Condition{Fact: "flag", Operator: "equal", Value: true},
			Event:      rules.Event{Type: rules.EventAlert, Params: rules.EventParams{Reason: "second"}},
		},
	}})
	if err != nil {
		t.Fatalf("LoadRuleSet() error: %v", err)
	}

	facts := rules.Facts{"flag": true}
	first := engine.Run(context.Background(), facts)
	second := engine.Run(context.Background(), facts)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("identical runs diverged (-first +second):\n%s", diff)
	}

	// Events must be emitted in registration order.
	if first.Events[0].Params.Reason != "first" || first.Events[1].Params.Reason != "second" {
		t.Errorf("events out of registration order: %+v", first.Events)
	}
}

func TestHighestPriorityEvent(t *testing.T) {
	events := []rules.Event{
		{Type: rules.EventProgression, Params: rules.EventParams{Action: "maintain", Priority: 10}},
		{Type: rules.EventProgression, Params: rules.EventParams{Action: "decrease", Priority: 90}},
		{Type: rules.EventProgression, Params: rules.EventParams{Action: "rest", Priority: 90}},
		{Type: rules.EventAlert, Params: rules.EventParams{Priority: 100}},
	}

	got := rules.HighestPriorityEvent(events, rules.EventProgression)
	if got == nil {
		t.Fatal("expected a progression event")
	}
	// Ties keep the first-seen event.
	if got.Params.Action != "decrease" {
		t.Errorf("Action = %q, want %q", got.Params.Action, "decrease")
	}

	if event := rules.HighestPriorityEvent(events, rules.EventWarning); event != nil {
		t.Errorf("expected nil for absent event type, got %+v", event)
	}
}

func TestConditionJSONRoundTrip(t *testing.T) {
	document := []byte(`{"rules":[{"name":"r","conditions":{"all":[{"fact":"history","operator":"trendDirection","value":"decreasing","path":"recentCompletions"},{"any":[{"fact":"age","operator":"ageInCategory","value":"senior"},{"fact":"readinessScore","operator":"inRange","value":{"max":40,"min":0}}]}]},"event":{"type":"anti_pattern","params":{"severity":"high","pattern":"overtraining"}}}]}`)

	ruleSet, err := rules.ParseRuleSet(document)
	if err != nil {
		t.Fatalf("ParseRuleSet() error: %v", err)
	}

	encoded, err := json.Marshal(ruleSet)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !bytes.Equal(document, encoded) {
		t.Errorf("rule set did not round-trip:\n in: %s\nout: %s", document, encoded)
	}
}
