package rules

import (
	"time"
)

// Operator is a named binary predicate evaluated as operator(factValue, ruleValue).
//
// Operators must be total: any missing or badly typed input yields false
// instead of an error, with the single documented exception of daysSince
// which treats a missing date as infinitely long ago.
type Operator func(factValue, ruleValue any) bool

const (
	// trendSlopeThreshold is the least-squares slope sensitivity used by the
	// trendDirection operator. Slopes within ±threshold count as stable.
	trendSlopeThreshold = 0.1

	hoursPerDay = 24
)

// builtinOperators returns the basic comparison operators every engine
// understands without registration.
func builtinOperators() map[string]Operator {
	return map[string]Operator{
		"equal":                opEqual,
		"notEqual":             func(fv, rv any) bool { return !opEqual(fv, rv) },
		"lessThan":             numericOp(func(a, b float64) bool { return a < b }),
		"lessThanInclusive":    numericOp(func(a, b float64) bool { return a <= b }),
		"greaterThan":          numericOp(func(a, b float64) bool { return a > b }),
		"greaterThanInclusive": numericOp(func(a, b float64) bool { return a >= b }),
		"in":                   opIn,
		"notIn":                func(fv, rv any) bool { return !opIn(fv, rv) },
	}
}

// customOperators returns the domain-specific operators used by the
// coaching rule sets. The date-based operators are closed over now so that
// tests can evaluate against a fixed clock.
func customOperators(now func() time.Time) map[string]Operator {
	return map[string]Operator{
		"daysSince":             daysSinceOp(now),
		"daysSinceLessThan":     daysSinceLessThanOp(now),
		"containsAny":           opContainsAny,
		"containsAll":           opContainsAll,
		"notContains":           opNotContains,
		"averageLessThan":       opAverageLessThan,
		"averageGreaterThan":    opAverageGreaterThan,
		"averageBetween":        opAverageBetween,
		"trendDirection":        opTrendDirection,
		"countGreaterThan":      opCountGreaterThan,
		"percentageGreaterThan": opPercentageGreaterThan,
		"inRange":               opInRange,
		"ageInCategory":         opAgeInCategory,
		"consecutiveCount":      opConsecutiveCount,
	}
}

// toFloat coerces JSON numbers and Go numeric types to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// toFloatSlice coerces an array fact into a numeric series. Non-array and
// non-numeric input yields ok=false.
func toFloatSlice(v any) ([]float64, bool) {
	switch s := v.(type) {
	case []float64:
		return s, true
	case []int:
		out := make([]float64, len(s))
		for i, n := range s {
			out[i] = float64(n)
		}
		return out, true
	case []any:
		out := make([]float64, len(s))
		for i, item := range s {
			n, ok := toFloat(item)
			if !ok {
				return nil, false
			}
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}

// toAnySlice coerces the common array shapes into []any for membership tests.
func toAnySlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	case []bool:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}

// toBoolSlice coerces an array into truthiness flags for run counting.
func toBoolSlice(v any) ([]bool, bool) {
	switch s := v.(type) {
	case []bool:
		return s, true
	case []any:
		out := make([]bool, len(s))
		for i, item := range s {
			b, ok := item.(bool)
			if !ok {
				return nil, false
			}
			out[i] = b
		}
		return out, true
	default:
		return nil, false
	}
}

// toTime parses date facts given as time.Time, RFC 3339 strings or plain dates.
func toTime(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, !d.IsZero()
	case string:
		if d == "" {
			return time.Time{}, false
		}
		if t, err := time.Parse(time.RFC3339, d); err == nil {
			return t, true
		}
		if t, err := time.Parse(time.DateOnly, d); err == nil {
			return t, true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// minMax reads a {min, max} rule value.
func minMax(v any) (float64, float64, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return 0, 0, false
	}
	minValue, okMin := toFloat(m["min"])
	maxValue, okMax := toFloat(m["max"])
	return minValue, maxValue, okMin && okMax
}

func opEqual(factValue, ruleValue any) bool {
	if fn, ok := toFloat(factValue); ok {
		if rn, okRule := toFloat(ruleValue); okRule {
			return fn == rn
		}
		return false
	}
	return factValue == ruleValue
}

func numericOp(cmp func(a, b float64) bool) Operator {
	return func(factValue, ruleValue any) bool {
		fn, okFact := toFloat(factValue)
		rn, okRule := toFloat(ruleValue)
		return okFact && okRule && cmp(fn, rn)
	}
}

func opIn(factValue, ruleValue any) bool {
	list, ok := toAnySlice(ruleValue)
	if !ok {
		return false
	}
	for _, item := range list {
		if opEqual(factValue, item) {
			return true
		}
	}
	return false
}

// daysSinceOp is true when at least ruleValue whole days have elapsed since
// the date fact. A missing date counts as infinitely long ago and matches.
func daysSinceOp(now func() time.Time) Operator {
	return func(factValue, ruleValue any) bool {
		days, okRule := toFloat(ruleValue)
		if !okRule {
			return false
		}
		date, okDate := toTime(factValue)
		if !okDate {
			return true
		}
		elapsed := int(now().Sub(date).Hours() / hoursPerDay)
		return float64(elapsed) >= days
	}
}

// daysSinceLessThanOp is the strict counterpart: false on a missing date.
func daysSinceLessThanOp(now func() time.Time) Operator {
	return func(factValue, ruleValue any) bool {
		days, okRule := toFloat(ruleValue)
		if !okRule {
			return false
		}
		date, okDate := toTime(factValue)
		if !okDate {
			return false
		}
		elapsed := int(now().Sub(date).Hours() / hoursPerDay)
		return float64(elapsed) < days
	}
}

func opContainsAny(factValue, ruleValue any) bool {
	haystack, okFact := toAnySlice(factValue)
	needles, okRule := toAnySlice(ruleValue)
	if !okFact || !okRule {
		return false
	}
	for _, needle := range needles {
		for _, item := range haystack {
			if opEqual(item, needle) {
				return true
			}
		}
	}
	return false
}

func opContainsAll(factValue, ruleValue any) bool {
	haystack, okFact := toAnySlice(factValue)
	needles, okRule := toAnySlice(ruleValue)
	if !okFact || !okRule {
		return false
	}
	for _, needle := range needles {
		found := false
		for _, item := range haystack {
			if opEqual(item, needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// opNotContains is true when the array fact does not contain the single rule
// value. A missing or non-array fact trivially contains nothing.
func opNotContains(factValue, ruleValue any) bool {
	haystack, ok := toAnySlice(factValue)
	if !ok {
		return true
	}
	for _, item := range haystack {
		if opEqual(item, ruleValue) {
			return false
		}
	}
	return true
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func opAverageLessThan(factValue, ruleValue any) bool {
	values, okFact := toFloatSlice(factValue)
	threshold, okRule := toFloat(ruleValue)
	if !okFact || !okRule || len(values) == 0 {
		return false
	}
	return mean(values) < threshold
}

func opAverageGreaterThan(factValue, ruleValue any) bool {
	values, okFact := toFloatSlice(factValue)
	threshold, okRule := toFloat(ruleValue)
	if !okFact || !okRule || len(values) == 0 {
		return false
	}
	return mean(values) > threshold
}

func opAverageBetween(factValue, ruleValue any) bool {
	values, okFact := toFloatSlice(factValue)
	minValue, maxValue, okRule := minMax(ruleValue)
	if !okFact || !okRule || len(values) == 0 {
		return false
	}
	avg := mean(values)
	return avg >= minValue && avg <= maxValue
}

// leastSquaresSlope fits y = a + b·x over indices 0..n-1 and returns b.
func leastSquaresSlope(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	return (n*sumXY - sumX*sumY) / (n*sumX2 - sumX*sumX)
}

// opTrendDirection compares the least-squares slope sign of a numeric series
// against the requested label: "increasing", "decreasing" or "stable".
// Series shorter than three points are only ever stable.
func opTrendDirection(factValue, ruleValue any) bool {
	label, okRule := ruleValue.(string)
	if !okRule {
		return false
	}
	values, okFact := toFloatSlice(factValue)
	if !okFact || len(values) < 3 {
		return label == "stable"
	}
	slope := leastSquaresSlope(values)
	switch {
	case slope > trendSlopeThreshold:
		return label == "increasing"
	case slope < -trendSlopeThreshold:
		return label == "decreasing"
	default:
		return label == "stable"
	}
}

// opCountGreaterThan counts elements above value.threshold and requires at
// least value.count of them.
func opCountGreaterThan(factValue, ruleValue any) bool {
	values, okFact := toFloatSlice(factValue)
	params, okRule := ruleValue.(map[string]any)
	if !okFact || !okRule {
		return false
	}
	threshold, okThreshold := toFloat(params["threshold"])
	minCount, okCount := toFloat(params["count"])
	if !okThreshold || !okCount {
		return false
	}
	count := 0
	for _, v := range values {
		if v > threshold {
			count++
		}
	}
	return float64(count) >= minCount
}

// opPercentageGreaterThan requires at least value.percentage percent of the
// elements to exceed value.threshold.
func opPercentageGreaterThan(factValue, ruleValue any) bool {
	values, okFact := toFloatSlice(factValue)
	params, okRule := ruleValue.(map[string]any)
	if !okFact || !okRule || len(values) == 0 {
		return false
	}
	threshold, okThreshold := toFloat(params["threshold"])
	minPercentage, okPercentage := toFloat(params["percentage"])
	if !okThreshold || !okPercentage {
		return false
	}
	count := 0
	for _, v := range values {
		if v > threshold {
			count++
		}
	}
	percentage := float64(count) / float64(len(values)) * 100
	return percentage >= minPercentage
}

// opInRange is an inclusive scalar range check against {min, max}.
func opInRange(factValue, ruleValue any) bool {
	n, okFact := toFloat(factValue)
	minValue, maxValue, okRule := minMax(ruleValue)
	return okFact && okRule && n >= minValue && n <= maxValue
}

// ageCategoryBands are the fixed age bands shared with the metric
// calculators: young <30, adult <45, mature <60, senior ≥60.
var ageCategoryBands = map[string][2]float64{
	"young":  {0, 29},
	"adult":  {30, 44},
	"mature": {45, 59},
	"senior": {60, 150},
}

func opAgeInCategory(factValue, ruleValue any) bool {
	age, okFact := toFloat(factValue)
	label, okRule := ruleValue.(string)
	if !okFact || !okRule {
		return false
	}
	band, ok := ageCategoryBands[label]
	if !ok {
		return false
	}
	return age >= band[0] && age <= band[1]
}

// opConsecutiveCount is true when the longest run of true values in a
// boolean array reaches the rule value.
func opConsecutiveCount(factValue, ruleValue any) bool {
	flags, okFact := toBoolSlice(factValue)
	minRun, okRule := toFloat(ruleValue)
	if !okFact || !okRule {
		return false
	}
	longest, current := 0, 0
	for _, flag := range flags {
		if flag {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return float64(longest) >= minRun
}
