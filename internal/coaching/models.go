// Package coaching implements the adaptive training decision engine: it
// scores pre-workout readiness, turns post-workout feedback into a
// progression decision and detects unhealthy longitudinal training
// patterns from session history.
package coaching

import "time"

// Gender of the user, self-reported during onboarding.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Goal is the user's primary training goal.
type Goal string

const (
	GoalToning      Goal = "toning"
	GoalStrength    Goal = "strength"
	GoalEndurance   Goal = "endurance"
	GoalFlexibility Goal = "flexibility"
)

// Experience is the self-assessed training experience level.
type Experience string

const (
	ExperienceBeginner     Experience = "beginner"
	ExperienceIntermediate Experience = "intermediate"
	ExperienceAdvanced     Experience = "advanced"
)

// MenstrualPhase is only meaningful for female users and only when the
// user chose to report it in the pre-workout assessment.
type MenstrualPhase string

const (
	PhaseFollicular MenstrualPhase = "follicular"
	PhaseOvulation  MenstrualPhase = "ovulation"
	PhaseLuteal     MenstrualPhase = "luteal"
	PhaseMenstrual  MenstrualPhase = "menstrual"
)

// HealthCondition is a physical limitation tag chosen during onboarding.
type HealthCondition string

const (
	ConditionBackPain       HealthCondition = "back_pain"
	ConditionKneeIssues     HealthCondition = "knee_issues"
	ConditionShoulderIssues HealthCondition = "shoulder_issues"
	ConditionNeckPain       HealthCondition = "neck_pain"
	ConditionJointIssues    HealthCondition = "joint_issues"
	ConditionHeart          HealthCondition = "heart_condition"
	ConditionPregnancy      HealthCondition = "pregnancy"
	ConditionRecentSurgery  HealthCondition = "recent_surgery"
)

// BodyArea tags DOMS and pain locations.
type BodyArea string

const (
	AreaNeck      BodyArea = "neck"
	AreaShoulders BodyArea = "shoulders"
	AreaUpperBack BodyArea = "upper_back"
	AreaLowerBack BodyArea = "lower_back"
	AreaChest     BodyArea = "chest"
	AreaArms      BodyArea = "arms"
	AreaAbs       BodyArea = "abs"
	AreaGlutes    BodyArea = "glutes"
	AreaThighs    BodyArea = "thighs"
	AreaCalves    BodyArea = "calves"
	AreaKnees     BodyArea = "knees"
	AreaAnkles    BodyArea = "ankles"
)

// ProgressionAction is the engine's recommendation for the next session's
// relative intensity.
type ProgressionAction string

const (
	ActionIncrease ProgressionAction = "increase"
	ActionMaintain ProgressionAction = "maintain"
	ActionDecrease ProgressionAction = "decrease"
	ActionRest     ProgressionAction = "rest"
)

// UserProfile is the biometric and preference record created during
// onboarding. The engine only reads it; the profile store owns it.
type UserProfile struct {
	ID                  string
	Name                string
	BirthDate           time.Time
	Gender              Gender
	WeightKg            float64
	HeightCm            float64
	Goal                Goal
	Experience          Experience
	Conditions          []HealthCondition
	OnboardingCompleted bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Assessment is the pre-workout self-assessment. Energy, doms, stress and
// motivation are 1–5 scales. It is immutable once scored and lives only
// for the session it is attached to.
type Assessment struct {
	Energy         int
	Doms           int
	DomsAreas      []BodyArea
	Stress         int
	Motivation     int
	AvailableTime  int
	Hydration      bool
	Fasting        bool
	MenstrualPhase *MenstrualPhase
	ReadinessScore *int
}

// Feedback is the post-workout feedback. RPE is a 1–10 scale, completion
// a 0–100 percentage. Immutable once recorded.
type Feedback struct {
	RPE                 int
	Completion          int
	Pain                bool
	PainAreas           []BodyArea
	PainIntensity       int
	Enjoyment           int
	CouldDoMore         bool
	TechniqueConfidence int
	Notes               string
}

// Session is the durable, append-only history record of one completed
// workout. The engine receives a bounded window of recent sessions and
// never queries storage itself.
type Session struct {
	ID              string
	Date            time.Time
	WorkoutTitle    string
	DurationMinutes int
	PreWorkout      *Assessment
	PostWorkout     *Feedback
	CompletedAt     time.Time
}
