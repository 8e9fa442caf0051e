package coaching

import (
	"embed"
	"fmt"

	"github.com/mlahtinen/coachapp/internal/rules"
)

// The default rule sets ship embedded in the binary. They are plain
// rule-set documents, so a deployment can also load replacements at
// runtime through Engine.LoadRuleSet.
//
//go:embed rulesets/*.json
var ruleSetFS embed.FS

// defaultRuleSetFiles in load order. Order matters only for event
// emission order within a run, not for matching.
var defaultRuleSetFiles = []string{
	"rulesets/readiness.json",
	"rulesets/progression.json",
	"rulesets/antipattern.json",
	"rulesets/specialcases.json",
	"rulesets/exerciseselection.json",
	"rulesets/alerts.json",
}

// LoadDefaultRuleSets loads every embedded rule set into the engine.
func LoadDefaultRuleSets(engine *rules.Engine) error {
	for _, name := range defaultRuleSetFiles {
		data, err := ruleSetFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read embedded rule set %s: %w", name, err)
		}
		ruleSet, err := rules.ParseRuleSet(data)
		if err != nil {
			return fmt.Errorf("parse rule set %s: %w", name, err)
		}
		if err := engine.LoadRuleSet(ruleSet); err != nil {
			return fmt.Errorf("load rule set %s: %w", name, err)
		}
	}
	return nil
}
