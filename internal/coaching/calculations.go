package coaching

import (
	"math"
	"time"
)

// AgeAt returns full years between birthDate and now, accounting for a
// birthday that has not yet happened this year.
func AgeAt(birthDate, now time.Time) int {
	age := now.Year() - birthDate.Year()
	if now.Month() < birthDate.Month() ||
		(now.Month() == birthDate.Month() && now.Day() < birthDate.Day()) {
		age--
	}
	return age
}

// CalculateAge returns the age in years as of today.
func CalculateAge(birthDate time.Time) int {
	return AgeAt(birthDate, time.Now())
}

// CalculateBMI returns weight / height² rounded to one decimal.
//
// Missing or zero height yields 0 rather than an error. Note that a zero
// BMI then classifies as underweight in BMICategoryFor; callers that care
// about the distinction must check the inputs themselves.
func CalculateBMI(weightKg, heightCm float64) float64 {
	if weightKg == 0 || heightCm == 0 {
		return 0
	}
	heightM := heightCm / 100
	return math.Round(weightKg/(heightM*heightM)*10) / 10
}

// BMICategoryFor maps a BMI value onto the fixed category table:
// underweight <18.5, normal <25, overweight <30, obese ≥30.
func BMICategoryFor(bmi float64) BMICategory {
	for _, category := range bmiCategories[:len(bmiCategories)-1] {
		if bmi < category.Max {
			return category
		}
	}
	return bmiCategories[len(bmiCategories)-1]
}

// AgeCategoryFor maps an age onto the fixed bands young <30, adult <45,
// mature <60, senior ≥60. Each band carries a recovery-time multiplier.
func AgeCategoryFor(age int) AgeCategory {
	for _, category := range ageCategories[:len(ageCategories)-1] {
		if age < category.Max {
			return category
		}
	}
	return ageCategories[len(ageCategories)-1]
}

// CalculateReadinessScore combines the 1–5 assessment scales into a 0–100
// readiness score.
//
// Weights: energy 30%, doms 30% (inverted), stress 15% (inverted),
// motivation 10%, menstrual phase 15%. When the profile is not female or
// no phase was reported, the phase weight is redistributed evenly across
// the other four; otherwise the weighted score is multiplied by the phase
// modifier. The hydration (×0.95) and fasting (×0.90) penalties apply
// after that, and the result is clamped to [0,100] and rounded. The order
// of these steps is part of the scoring contract.
func CalculateReadinessScore(assessment Assessment, profile *UserProfile) int {
	isFemale := profile != nil && profile.Gender == GenderFemale

	normalizedEnergy := float64(assessment.Energy) / 5 * 100
	normalizedDoms := float64(6-assessment.Doms) / 5 * 100
	normalizedStress := float64(6-assessment.Stress) / 5 * 100
	normalizedMotivation := float64(assessment.Motivation) / 5 * 100

	energyW := weightEnergy
	domsW := weightDoms
	stressW := weightStress
	motivationW := weightMotivation

	phaseApplies := isFemale && assessment.MenstrualPhase != nil
	if !phaseApplies {
		redistributed := weightMenstrualPhase / 4
		energyW += redistributed
		domsW += redistributed
		stressW += redistributed
		motivationW += redistributed
	}

	score := normalizedEnergy*energyW +
		normalizedDoms*domsW +
		normalizedStress*stressW +
		normalizedMotivation*motivationW

	if phaseApplies {
		if modifier, ok := menstrualPhaseModifiers[*assessment.MenstrualPhase]; ok {
			score *= modifier
		}
	}

	if !assessment.Hydration {
		score *= modifierNotHydrated
	}
	if assessment.Fasting {
		score *= modifierFasting
	}

	return int(math.Round(math.Max(0, math.Min(100, score))))
}

// ReadinessLevelFor buckets a score: ≤40 low, ≤70 medium, else high.
func ReadinessLevelFor(score int) ReadinessLevel {
	switch {
	case score <= readinessLowMax:
		return ReadinessLow
	case score <= readinessMediumMax:
		return ReadinessMedium
	default:
		return ReadinessHigh
	}
}

// ProgressionContext is the slice of history that the base decision
// matrix looks at.
type ProgressionContext struct {
	PainReported       bool
	ConsecutiveHighRPE int
}

// Decision is a progression decision with its human-readable reason and
// an informational confidence scalar.
type Decision struct {
	Action     ProgressionAction
	Reason     string
	Confidence float64
}

// CalculateProgressionDecision maps RPE and completion onto the decision
// matrix. The precedence is a correctness contract: reported pain always
// decides before any RPE/completion branch, then a 3+ high-RPE streak
// forces rest, then the matrix applies.
func CalculateProgressionDecision(rpe, completion int, history ProgressionContext) Decision {
	if history.PainReported {
		return Decision{
			Action:     ActionDecrease,
			Reason:     "Dolore riportato - riduci intensità per recuperare",
			Confidence: 0.9,
		}
	}

	if history.ConsecutiveHighRPE >= 3 {
		return Decision{
			Action:     ActionRest,
			Reason:     "RPE alto per 3+ sessioni consecutive - riposo consigliato",
			Confidence: 0.85,
		}
	}

	switch {
	case rpe <= 4 && completion >= 80:
		return Decision{
			Action:     ActionIncrease,
			Reason:     "Ottimo lavoro! Pronto per aumentare la difficoltà",
			Confidence: 0.8,
		}
	case rpe <= 5 && completion >= 90:
		return Decision{
			Action:     ActionIncrease,
			Reason:     "Completamento eccellente, puoi spingerti di più",
			Confidence: 0.7,
		}
	case rpe >= 8 && completion < 60:
		return Decision{
			Action:     ActionDecrease,
			Reason:     "Allenamento troppo intenso - riduci per la prossima sessione",
			Confidence: 0.85,
		}
	case rpe >= 7 && completion < 70:
		return Decision{
			Action:     ActionDecrease,
			Reason:     "Difficoltà elevata - considera una riduzione",
			Confidence: 0.7,
		}
	default:
		return Decision{
			Action:     ActionMaintain,
			Reason:     "Buon equilibrio tra sforzo e completamento",
			Confidence: 0.75,
		}
	}
}

// Trend labels the direction of a numeric series.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// average of a series; 0 for an empty one.
func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// AnalyzeTrend compares the mean of the last three values against the
// mean of the first three, using 10% of the older mean as the change
// threshold. Series shorter than three values are stable; a series of
// exactly three compares against itself and is therefore stable too.
// Values are expected oldest first.
func AnalyzeTrend(values []float64) Trend {
	if len(values) < 3 {
		return TrendStable
	}
	recentAvg := average(values[len(values)-3:])
	olderAvg := average(values[:3])
	diff := recentAvg - olderAvg
	threshold := olderAvg * 0.1

	switch {
	case diff > threshold:
		return TrendUp
	case diff < -threshold:
		return TrendDown
	default:
		return TrendStable
	}
}

// DaysSince returns whole days elapsed between date and now.
func DaysSince(date, now time.Time) int {
	return int(now.Sub(date).Hours() / 24)
}

// CalculateRecoveryTime estimates recommended recovery hours from the
// session RPE and the user's age band.
func CalculateRecoveryTime(rpe, age int) int {
	category := AgeCategoryFor(age)
	rpeMultiplier := 1 + float64(rpe-neutralRPE)*recoveryPerRPEFactor
	return int(math.Round(baseRecoveryHours * rpeMultiplier * category.RecoveryMultiplier))
}

// EstimateCaloriesBurned approximates calories from duration and RPE
// using MET buckets: RPE ≤3 → 3 MET, ≤6 → 5, ≤8 → 7, else 9.
func EstimateCaloriesBurned(durationMinutes, rpe int, weightKg float64) int {
	var met float64
	switch {
	case rpe <= 3:
		met = 3
	case rpe <= 6:
		met = 5
	case rpe <= 8:
		met = 7
	default:
		met = 9
	}
	hours := float64(durationMinutes) / 60
	return int(math.Round(met * weightKg * hours))
}

// CalculateIntensityModifier scales workout intensity by readiness.
func CalculateIntensityModifier(readinessScore int) float64 {
	switch {
	case readinessScore < 30:
		return 0.5
	case readinessScore < 50:
		return 0.7
	case readinessScore < 70:
		return 0.85
	case readinessScore < 85:
		return 1.0
	default:
		return 1.1
	}
}

// RPELabel returns the display label for a 1–10 RPE value.
func RPELabel(rpe int) string {
	return rpeScaleLabels[rpe]
}
