package rules

import (
	"errors"
	"fmt"
)

// Condition is one node of a rule's condition tree. Exactly one of the
// three shapes is populated:
//
//   - All: a group that matches when every child matches,
//   - Any: a group that matches when at least one child matches,
//   - a leaf {fact, operator, value, path?} resolved against the fact map.
//
// Groups nest arbitrarily. The JSON encoding matches the rule-set file
// format and round-trips unchanged.
type Condition struct {
	All []Condition `json:"all,omitempty"`
	Any []Condition `json:"any,omitempty"`

	Fact     string `json:"fact,omitempty"`
	Operator string `json:"operator,omitempty"`
	Value    any    `json:"value,omitempty"`
	Path     string `json:"path,omitempty"`
}

var errUnknownOperator = errors.New("unknown operator")

// validate checks the structural shape of the condition tree. Operator
// existence is checked at evaluation time because operators may be
// registered after rules are loaded.
func (c Condition) validate() error {
	if len(c.All) > 0 && len(c.Any) > 0 {
		return errors.New("condition group cannot combine all and any")
	}
	if len(c.All) > 0 || len(c.Any) > 0 {
		if c.Fact != "" || c.Operator != "" {
			return errors.New("condition group cannot carry a fact or operator")
		}
		for _, child := range append(c.All, c.Any...) {
			if err := child.validate(); err != nil {
				return err
			}
		}
		return nil
	}
	if c.Fact == "" {
		return errors.New("leaf condition is missing a fact")
	}
	if c.Operator == "" {
		return fmt.Errorf("leaf condition on fact %q is missing an operator", c.Fact)
	}
	return nil
}

// eval resolves the condition tree against the facts.
//
// A leaf whose fact or path does not resolve evaluates to false without
// error so that a single absent fact never aborts the whole run. An
// unknown operator is a malformed rule and aborts evaluation.
func (c Condition) eval(facts Facts, operators map[string]Operator) (bool, error) {
	if len(c.All) > 0 {
		for _, child := range c.All {
			matched, err := child.eval(facts, operators)
			if err != nil {
				return false, err
			}
			if !matched {
				return false, nil
			}
		}
		return true, nil
	}
	if len(c.Any) > 0 {
		for _, child := range c.Any {
			matched, err := child.eval(facts, operators)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	}

	op, ok := operators[c.Operator]
	if !ok {
		return false, fmt.Errorf("%w: %q", errUnknownOperator, c.Operator)
	}
	factValue, ok := facts.Resolve(c.Fact, c.Path)
	if !ok {
		return false, nil
	}
	return op(factValue, c.Value), nil
}
