package coaching

import (
	"testing"
	"time"

	"github.com/mlahtinen/coachapp/internal/rules"
	"github.com/mlahtinen/coachapp/internal/testhelpers"
)

func TestLoadDefaultRuleSets(t *testing.T) {
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	engine := rules.NewWithClock(logger, time.Now)

	if err := LoadDefaultRuleSets(engine); err != nil {
		t.Fatalf("LoadDefaultRuleSets() error: %v", err)
	}
	count := engine.RuleCount()
	if count == 0 {
		t.Fatal("no rules loaded")
	}

	// Reloading must replace rules by name, not accumulate duplicates.
	if err := LoadDefaultRuleSets(engine); err != nil {
		t.Fatalf("second LoadDefaultRuleSets() error: %v", err)
	}
	if got := engine.RuleCount(); got != count {
		t.Errorf("RuleCount after reload = %d, want %d", got, count)
	}
}
