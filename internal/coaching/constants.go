package coaching

// The constants in this file are part of the engine's contract: tests
// assert on the exact boundaries, and the UI layer renders the labels and
// colors verbatim. The coaching copy is Italian like the rest of the app.

// Readiness score weights. The menstrual-phase weight is redistributed
// evenly across the other four when no phase applies.
const (
	weightEnergy         = 0.30
	weightDoms           = 0.30
	weightStress         = 0.15
	weightMotivation     = 0.10
	weightMenstrualPhase = 0.15
)

// Multiplicative readiness modifiers.
const (
	modifierNotHydrated = 0.95
	modifierFasting     = 0.90
)

// menstrualPhaseModifiers scale the weighted score for female users who
// reported a phase.
var menstrualPhaseModifiers = map[MenstrualPhase]float64{
	PhaseFollicular: 1.10,
	PhaseOvulation:  1.15,
	PhaseLuteal:     0.95,
	PhaseMenstrual:  0.85,
}

// ReadinessLevel buckets a 0–100 readiness score for display.
type ReadinessLevel string

const (
	ReadinessLow    ReadinessLevel = "low"
	ReadinessMedium ReadinessLevel = "medium"
	ReadinessHigh   ReadinessLevel = "high"
)

// Readiness level thresholds: score ≤40 is low, ≤70 medium, else high.
const (
	readinessLowMax    = 40
	readinessMediumMax = 70
)

// readinessLevelInfo carries the display metadata the UI collaborator
// consumes alongside the numeric score.
type readinessLevelInfo struct {
	Label   string
	Color   string
	Summary string
}

var readinessLevels = map[ReadinessLevel]readinessLevelInfo{
	ReadinessLow: {
		Label:   "Riposo consigliato",
		Color:   "#ef4444",
		Summary: "Il tuo corpo ha bisogno di recupero. Ascoltalo e vai piano.",
	},
	ReadinessMedium: {
		Label:   "Allenamento normale",
		Color:   "#eab308",
		Summary: "Sei in buona forma per un allenamento standard.",
	},
	ReadinessHigh: {
		Label:   "Pronto per spingerti!",
		Color:   "#22c55e",
		Summary: "Sei al top! Ottima giornata per dare il massimo.",
	},
}

// BMICategory is a fixed range lookup over BMI values.
type BMICategory struct {
	Key   string
	Label string
	Color string
	Max   float64
}

// bmiCategories in ascending order of Max; BMICategoryFor picks the first
// category whose Max exceeds the value.
var bmiCategories = []BMICategory{
	{Key: "underweight", Label: "Sottopeso", Color: "#3b82f6", Max: 18.5},
	{Key: "normal", Label: "Normopeso", Color: "#22c55e", Max: 25},
	{Key: "overweight", Label: "Sovrappeso", Color: "#eab308", Max: 30},
	{Key: "obese", Label: "Obesità", Color: "#ef4444", Max: 0}, // open-ended
}

// AgeCategory carries a display label and the recovery-time multiplier
// used by CalculateRecoveryTime.
type AgeCategory struct {
	Key                string
	Label              string
	RecoveryMultiplier float64
	Max                int
}

// ageCategories: young <30, adult <45, mature <60, senior ≥60.
var ageCategories = []AgeCategory{
	{Key: "young", Label: "Giovane", RecoveryMultiplier: 1.0, Max: 30},
	{Key: "adult", Label: "Adulto", RecoveryMultiplier: 1.1, Max: 45},
	{Key: "mature", Label: "Maturo", RecoveryMultiplier: 1.2, Max: 60},
	{Key: "senior", Label: "Senior", RecoveryMultiplier: 1.3, Max: 0}, // open-ended
}

// progressionInfo is the display metadata for each decision.
type progressionInfo struct {
	Label            string
	Icon             string
	AdjustmentFactor float64
}

var progressionDetails = map[ProgressionAction]progressionInfo{
	ActionIncrease: {Label: "Aumenta intensità", Icon: "📈", AdjustmentFactor: 1.1},
	ActionMaintain: {Label: "Mantieni il ritmo", Icon: "➡️", AdjustmentFactor: 1.0},
	ActionDecrease: {Label: "Riduci intensità", Icon: "📉", AdjustmentFactor: 0.9},
	ActionRest:     {Label: "Giorno di riposo", Icon: "🛌", AdjustmentFactor: 0.0},
}

// AntiPatternType labels a detected unhealthy training pattern.
type AntiPatternType string

const (
	PatternOvertraining      AntiPatternType = "overtraining"
	PatternUnderrecovery     AntiPatternType = "underrecovery"
	PatternPainIgnored       AntiPatternType = "pain_ignored"
	PatternLowCompletion     AntiPatternType = "low_completion"
	PatternInconsistent      AntiPatternType = "inconsistent"
	PatternHighRPEStreak     AntiPatternType = "high_rpe_streak"
	PatternMotivationDecline AntiPatternType = "motivation_decline"
)

var antiPatternLabels = map[AntiPatternType]string{
	PatternOvertraining:      "Possibile sovrallenamento",
	PatternUnderrecovery:     "Recupero insufficiente",
	PatternPainIgnored:       "Dolore ignorato ripetutamente",
	PatternLowCompletion:     "Completamento basso costante",
	PatternInconsistent:      "Allenamento irregolare",
	PatternHighRPEStreak:     "RPE alto consecutivo",
	PatternMotivationDecline: "Motivazione in calo",
}

var antiPatternIcons = map[AntiPatternType]string{
	PatternOvertraining:      "🔥",
	PatternUnderrecovery:     "😴",
	PatternPainIgnored:       "⚠️",
	PatternLowCompletion:     "❌",
	PatternInconsistent:      "📅",
	PatternHighRPEStreak:     "🔥",
	PatternMotivationDecline: "📉",
}

// categoryIcons map recommendation categories to the icon the UI renders.
var categoryIcons = map[string]string{
	"energy":     "⚡",
	"doms":       "💪",
	"stress":     "🧘",
	"motivation": "🎯",
	"hydration":  "💧",
	"nutrition":  "🍌",
	"menstrual":  "🌸",
	"recovery":   "🛌",
	"safety":     "⚠️",
	"general":    "✅",
}

// rpeScaleLabels describe the 1–10 perceived exertion scale.
var rpeScaleLabels = map[int]string{
	1:  "Molto leggero",
	2:  "Leggero",
	3:  "Moderato",
	4:  "Abbastanza impegnativo",
	5:  "Impegnativo",
	6:  "Difficile",
	7:  "Molto difficile",
	8:  "Estremamente difficile",
	9:  "Massimale",
	10: "Impossibile continuare",
}

// History analysis thresholds. The fact-derivation contract documents
// these; rule sets and tests rely on the exact values.
const (
	historyLookbackDays   = 14
	historyMaxSessions    = 20
	weeklySessionTarget   = 4
	monthlySessionTarget  = 16
	recentWindowSessions  = 3
	progressionMaxAvgRPE  = 6.0
	progressionMinAvgComp = 85.0
	regressionMinAvgRPE   = 9.0
	regressionMaxAvgComp  = 60.0
	overtrainingMinAvgRPE = 8.0
	lowEnjoymentMax       = 3.0
	highRPEThreshold      = 8
	lowRPEThreshold       = 5
)

// Recovery and calorie estimation parameters.
const (
	baseRecoveryHours    = 24
	neutralRPE           = 5
	recoveryPerRPEFactor = 0.1
)
