// Package rules implements a small forward-chaining rule engine.
//
// Rules are pure data: a named condition tree over a flat fact map plus
// the event to emit when the tree matches. The engine evaluates every
// loaded rule on each run; rules never short-circuit each other and the
// engine keeps no state between runs beyond the loaded rule set, so
// concurrent runs over separate fact maps are safe.
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// EventType classifies the actions rules can emit.
type EventType string

const (
	EventReadinessModifier EventType = "readiness_modifier"
	EventProgression       EventType = "progression"
	EventAntiPattern       EventType = "anti_pattern"
	EventAlert             EventType = "alert"
	EventWarning           EventType = "warning"
	EventExcludeExercise   EventType = "exclude_exercise"
	EventModifyExercise    EventType = "modify_exercise"
	EventRecommendExercise EventType = "recommend_exercise"
)

// EventParams carries the payload of an emitted event. Which fields are
// meaningful depends on the event type; unused fields stay zero.
type EventParams struct {
	Modifier       float64 `json:"modifier,omitempty"`
	Action         string  `json:"action,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	Priority       int     `json:"priority,omitempty"`
	Recommendation string  `json:"recommendation,omitempty"`
	Category       string  `json:"category,omitempty"`
	Severity       string  `json:"severity,omitempty"`
	Pattern        string  `json:"pattern,omitempty"`
}

// Event is emitted for every rule whose condition tree matched.
type Event struct {
	Type   EventType   `json:"type"`
	Params EventParams `json:"params"`
}

// Rule pairs a condition tree with the event it emits. Rules are
// identified by name and never mutated after loading.
type Rule struct {
	Name       string    `json:"name"`
	Conditions Condition `json:"conditions"`
	Event      Event     `json:"event"`
}

// RuleSet is the JSON-serializable rule-set document format.
type RuleSet struct {
	Rules []Rule `json:"rules"`
}

// ParseRuleSet decodes a rule-set document from its JSON form.
func ParseRuleSet(data []byte) (RuleSet, error) {
	var rs RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("unmarshal rule set: %w", err)
	}
	return rs, nil
}

// Result is the outcome of a single engine run. A failed run carries no
// events; callers are expected to fall back to their base calculators.
type Result struct {
	Success bool
	Events  []Event
	Error   string
}

// Engine evaluates loaded rules against fact maps. Construct it with New,
// load rule sets once at startup, then call Run any number of times.
type Engine struct {
	logger    *slog.Logger
	now       func() time.Time
	operators map[string]Operator
	rules     []Rule
	ruleIndex map[string]int
}

// New creates an engine with the builtin comparison operators and the
// domain operators registered.
func New(logger *slog.Logger) *Engine {
	return NewWithClock(logger, time.Now)
}

// NewWithClock creates an engine whose date-based operators evaluate
// against the given clock. Tests use this to pin "now".
func NewWithClock(logger *slog.Logger, now func() time.Time) *Engine {
	e := &Engine{
		logger:    logger,
		now:       now,
		operators: builtinOperators(),
		rules:     nil,
		ruleIndex: make(map[string]int),
	}
	for name, op := range customOperators(now) {
		e.operators[name] = op
	}
	return e
}

// AddOperator registers a named predicate, replacing any previous
// registration under the same name.
func (e *Engine) AddOperator(name string, op Operator) {
	e.operators[name] = op
}

// LoadRuleSet registers every rule of the set. Loading a rule whose name
// is already registered replaces the earlier entry instead of appending a
// duplicate, so reloading a rule set is idempotent.
func (e *Engine) LoadRuleSet(rs RuleSet) error {
	for _, rule := range rs.Rules {
		if rule.Name == "" {
			return fmt.Errorf("rule with event type %q has no name", rule.Event.Type)
		}
		if err := rule.Conditions.validate(); err != nil {
			return fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		if i, ok := e.ruleIndex[rule.Name]; ok {
			e.rules[i] = rule
			continue
		}
		e.ruleIndex[rule.Name] = len(e.rules)
		e.rules = append(e.rules, rule)
	}
	return nil
}

// RuleCount reports how many rules are loaded.
func (e *Engine) RuleCount() int {
	return len(e.rules)
}

// Run evaluates every loaded rule against the facts in registration order
// and returns the events of the matching rules.
//
// Run never panics or returns an error to the caller: a malformed rule
// surfaces as a Result with Success=false and no events, which callers
// treat as "no decision available".
func (e *Engine) Run(ctx context.Context, facts Facts) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.LogAttrs(ctx, slog.LevelError, "rule evaluation panicked", slog.Any("panic", r))
			result = Result{Success: false, Events: nil, Error: fmt.Sprintf("rule evaluation panicked: %v", r)}
		}
	}()

	events := make([]Event, 0, len(e.rules))
	for _, rule := range e.rules {
		matched, err := rule.Conditions.eval(facts, e.operators)
		if err != nil {
			e.logger.LogAttrs(ctx, slog.LevelWarn, "rule evaluation failed",
				slog.String("rule", rule.Name), slog.Any("error", err))
			return Result{Success: false, Events: nil, Error: fmt.Sprintf("rule %q: %v", rule.Name, err)}
		}
		if matched {
			events = append(events, rule.Event)
		}
	}
	return Result{Success: true, Events: events, Error: ""}
}

// FilterEvents returns the events of the given type in emission order.
func FilterEvents(events []Event, eventType EventType) []Event {
	var filtered []Event
	for _, event := range events {
		if event.Type == eventType {
			filtered = append(filtered, event)
		}
	}
	return filtered
}

// HighestPriorityEvent returns the event of the given type with the
// largest priority param, or nil when none fired. Ties keep the event
// that fired first.
func HighestPriorityEvent(events []Event, eventType EventType) *Event {
	var best *Event
	for i := range events {
		if events[i].Type != eventType {
			continue
		}
		if best == nil || events[i].Params.Priority > best.Params.Priority {
			best = &events[i]
		}
	}
	return best
}
