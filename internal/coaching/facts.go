package coaching

import (
	"sort"
	"time"

	"github.com/mlahtinen/coachapp/internal/rules"
)

// The fact derivation layer turns raw records into the flat fact map the
// rule engine evaluates against. All derivation functions are total: nil
// input yields a documented neutral fact set, never an error.

// UserFacts are derived from the user profile.
type UserFacts struct {
	HasProfile  bool
	Name        string
	Age         *int
	Gender      string
	WeightKg    float64
	HeightCm    float64
	BMI         float64
	BMICategory string
	AgeCategory string
	Goal        string
	Experience  string
	Conditions  []string

	IsFemale       bool
	IsMale         bool
	IsBeginner     bool
	IsIntermediate bool
	IsAdvanced     bool

	GoalIsToning      bool
	GoalIsStrength    bool
	GoalIsEndurance   bool
	GoalIsFlexibility bool

	HasMedicalConditions bool
	HasBackProblems      bool
	HasKneeProblems      bool
	HasShoulderProblems  bool
	HasHeartCondition    bool
	HasPregnancy         bool

	IsYoung  bool
	IsAdult  bool
	IsMature bool
	IsSenior bool

	IsUnderweight  bool
	IsNormalWeight bool
	IsOverweight   bool
	IsObese        bool
}

// DeriveUserFacts computes profile facts as of now. A nil profile yields
// the neutral set: no age, no conditions, every flag false.
func DeriveUserFacts(profile *UserProfile, now time.Time) UserFacts {
	if profile == nil {
		return UserFacts{Conditions: []string{}}
	}

	var age *int
	if !profile.BirthDate.IsZero() {
		years := AgeAt(profile.BirthDate, now)
		age = &years
	}
	bmi := CalculateBMI(profile.WeightKg, profile.HeightCm)
	bmiCategory := BMICategoryFor(bmi)

	conditions := make([]string, 0, len(profile.Conditions))
	hasCondition := func(c HealthCondition) bool {
		for _, condition := range profile.Conditions {
			if condition == c {
				return true
			}
		}
		return false
	}
	for _, condition := range profile.Conditions {
		conditions = append(conditions, string(condition))
	}

	facts := UserFacts{
		HasProfile:  true,
		Name:        profile.Name,
		Age:         age,
		Gender:      string(profile.Gender),
		WeightKg:    profile.WeightKg,
		HeightCm:    profile.HeightCm,
		BMI:         bmi,
		BMICategory: bmiCategory.Key,
		Goal:        string(profile.Goal),
		Experience:  string(profile.Experience),
		Conditions:  conditions,

		IsFemale:       profile.Gender == GenderFemale,
		IsMale:         profile.Gender == GenderMale,
		IsBeginner:     profile.Experience == ExperienceBeginner,
		IsIntermediate: profile.Experience == ExperienceIntermediate,
		IsAdvanced:     profile.Experience == ExperienceAdvanced,

		GoalIsToning:      profile.Goal == GoalToning,
		GoalIsStrength:    profile.Goal == GoalStrength,
		GoalIsEndurance:   profile.Goal == GoalEndurance,
		GoalIsFlexibility: profile.Goal == GoalFlexibility,

		HasMedicalConditions: len(profile.Conditions) > 0,
		HasBackProblems:      hasCondition(ConditionBackPain),
		HasKneeProblems:      hasCondition(ConditionKneeIssues),
		HasShoulderProblems:  hasCondition(ConditionShoulderIssues),
		HasHeartCondition:    hasCondition(ConditionHeart),
		HasPregnancy:         hasCondition(ConditionPregnancy),

		IsUnderweight:  bmiCategory.Key == "underweight",
		IsNormalWeight: bmiCategory.Key == "normal",
		IsOverweight:   bmiCategory.Key == "overweight",
		IsObese:        bmiCategory.Key == "obese",
	}

	if age != nil {
		ageCategory := AgeCategoryFor(*age)
		facts.AgeCategory = ageCategory.Key
		facts.IsYoung = ageCategory.Key == "young"
		facts.IsAdult = ageCategory.Key == "adult"
		facts.IsMature = ageCategory.Key == "mature"
		facts.IsSenior = ageCategory.Key == "senior"
	}

	return facts
}

// AssessmentFacts are derived from the pre-workout assessment.
type AssessmentFacts struct {
	HasAssessment  bool
	Energy         int
	Doms           int
	DomsAreas      []string
	Stress         int
	Motivation     int
	AvailableTime  int
	Hydration      bool
	Fasting        bool
	MenstrualPhase *string
	ReadinessScore *int

	HasLowEnergy       bool
	HasHighEnergy      bool
	HasSignificantDoms bool
	HasSevereDoms      bool
	HasHighStress      bool
	HasLowMotivation   bool
	HasHighMotivation  bool
	IsDehydrated       bool
	HasLimitedTime     bool
	HasExtendedTime    bool

	HasUpperBodyDoms bool
	HasLowerBodyDoms bool
	HasCoreDoms      bool
}

// DeriveAssessmentFacts computes assessment facts. A nil assessment
// yields the neutral defaults: mid-scale values, hydrated, not fasting.
func DeriveAssessmentFacts(assessment *Assessment) AssessmentFacts {
	if assessment == nil {
		return AssessmentFacts{
			Energy:        3,
			Doms:          1,
			DomsAreas:     []string{},
			Stress:        3,
			Motivation:    3,
			AvailableTime: 30,
			Hydration:     true,
		}
	}

	areas := make([]string, 0, len(assessment.DomsAreas))
	hasArea := func(candidates ...BodyArea) bool {
		for _, area := range assessment.DomsAreas {
			for _, candidate := range candidates {
				if area == candidate {
					return true
				}
			}
		}
		return false
	}
	for _, area := range assessment.DomsAreas {
		areas = append(areas, string(area))
	}

	var phase *string
	if assessment.MenstrualPhase != nil {
		p := string(*assessment.MenstrualPhase)
		phase = &p
	}

	return AssessmentFacts{
		HasAssessment:  true,
		Energy:         assessment.Energy,
		Doms:           assessment.Doms,
		DomsAreas:      areas,
		Stress:         assessment.Stress,
		Motivation:     assessment.Motivation,
		AvailableTime:  assessment.AvailableTime,
		Hydration:      assessment.Hydration,
		Fasting:        assessment.Fasting,
		MenstrualPhase: phase,
		ReadinessScore: assessment.ReadinessScore,

		HasLowEnergy:       assessment.Energy <= 2,
		HasHighEnergy:      assessment.Energy >= 4,
		HasSignificantDoms: assessment.Doms >= 3,
		HasSevereDoms:      assessment.Doms >= 4,
		HasHighStress:      assessment.Stress >= 4,
		HasLowMotivation:   assessment.Motivation <= 2,
		HasHighMotivation:  assessment.Motivation >= 4,
		IsDehydrated:       !assessment.Hydration,
		HasLimitedTime:     assessment.AvailableTime <= 20,
		HasExtendedTime:    assessment.AvailableTime >= 45,

		HasUpperBodyDoms: hasArea(AreaChest, AreaUpperBack, AreaShoulders, AreaArms, AreaNeck),
		HasLowerBodyDoms: hasArea(AreaThighs, AreaCalves, AreaGlutes, AreaKnees, AreaAnkles),
		HasCoreDoms:      hasArea(AreaAbs, AreaLowerBack),
	}
}

// FeedbackFacts are derived from the post-workout feedback.
type FeedbackFacts struct {
	HasFeedback         bool
	RPE                 *int
	Completion          *int
	Pain                bool
	PainAreas           []string
	PainIntensity       int
	Enjoyment           *int
	CouldDoMore         bool
	TechniqueConfidence *int

	WasEasy     bool
	WasModerate bool
	WasHard     bool
	WasVeryHard bool

	HadHighCompletion   bool
	HadMediumCompletion bool
	HadLowCompletion    bool

	HadSeverePain bool
	HadMildPain   bool

	EnjoyedWorkout   bool
	DidNotEnjoy      bool
	FeltConfident    bool
	LackedConfidence bool

	ShouldProgress bool
	ShouldMaintain bool
	ShouldRegress  bool
}

// DeriveFeedbackFacts computes feedback facts. A nil feedback yields the
// neutral set with nil metrics and every flag false.
func DeriveFeedbackFacts(feedback *Feedback) FeedbackFacts {
	if feedback == nil {
		return FeedbackFacts{PainAreas: []string{}}
	}

	areas := make([]string, 0, len(feedback.PainAreas))
	for _, area := range feedback.PainAreas {
		areas = append(areas, string(area))
	}

	rpe := feedback.RPE
	completion := feedback.Completion
	enjoyment := feedback.Enjoyment
	confidence := feedback.TechniqueConfidence

	return FeedbackFacts{
		HasFeedback:         true,
		RPE:                 &rpe,
		Completion:          &completion,
		Pain:                feedback.Pain,
		PainAreas:           areas,
		PainIntensity:       feedback.PainIntensity,
		Enjoyment:           &enjoyment,
		CouldDoMore:         feedback.CouldDoMore,
		TechniqueConfidence: &confidence,

		WasEasy:     rpe <= 4,
		WasModerate: rpe >= 5 && rpe <= 7,
		WasHard:     rpe >= 8,
		WasVeryHard: rpe >= 9,

		HadHighCompletion:   completion >= 90,
		HadMediumCompletion: completion >= 60 && completion < 90,
		HadLowCompletion:    completion < 60,

		HadSeverePain: feedback.PainIntensity >= 4,
		HadMildPain:   feedback.Pain && feedback.PainIntensity < 3,

		EnjoyedWorkout:   enjoyment >= 4,
		DidNotEnjoy:      enjoyment <= 2,
		FeltConfident:    confidence >= 4,
		LackedConfidence: confidence <= 2,

		ShouldProgress: rpe <= 6 && completion >= 90 && feedback.CouldDoMore,
		ShouldMaintain: rpe >= 5 && rpe <= 7 && completion >= 70,
		ShouldRegress:  rpe >= 9 || completion < 60 || feedback.Pain,
	}
}

// HistoryFacts are derived from the bounded session-history window.
//
// Thresholds are fixed contract values: 14-day lookback, 3-session
// analysis windows, weekly/monthly targets of 4/16 sessions, streaks
// anchored at today or yesterday, 85%/60% completion cutoffs. All series
// run oldest to newest.
type HistoryFacts struct {
	TotalSessions      int
	RecentSessionCount int
	SessionsThisWeek   int
	SessionsThisMonth  int

	HasSessionHistory     bool
	LastSessionDate       time.Time
	DaysSinceLastSession  *int
	LastSessionRPE        *int
	LastSessionCompletion *int
	LastReadinessScore    *int

	CurrentStreak      int
	MissedDaysThisWeek int
	MissedDaysInMonth  int
	IsOnStreak         bool
	HasLongStreak      bool
	StreakBroken       bool

	RecentRPEs             []float64
	AverageRPE             float64
	RPETrend               Trend
	HasConsistentlyHighRPE bool
	HasConsistentlyLowRPE  bool
	ConsecutiveHighRPE     int
	HighRPEFlags           []bool

	RecentCompletions     []float64
	AverageCompletion     float64
	CompletionTrend       Trend
	HasLowCompletionRate  bool
	HasHighCompletionRate bool

	RecentReadinessScores []float64
	AverageReadiness      float64
	ReadinessTrend        Trend

	RecentEnjoyments []float64
	AverageEnjoyment float64
	EnjoymentTrend   Trend
	HasLowEnjoyment  bool

	RecentPainCount   int
	HasPainHistory    bool
	HasRecurringPain  bool
	FrequentPainAreas []string
	PainFrequency     float64
	PainFlags         []bool

	ShouldConsiderProgression bool
	ShouldConsiderRegression  bool
	IsPerformingWell          bool

	ShowsOvertrainingSign  bool
	ShowsUndertrainingSign bool
	ShowsMotivationIssue   bool
	ShowsInconsistency     bool
}

// DeriveHistoryFacts computes longitudinal facts from the session window
// as of now. An empty or nil window yields the neutral set.
func DeriveHistoryFacts(sessions []Session, now time.Time) HistoryFacts {
	facts := HistoryFacts{
		TotalSessions:         len(sessions),
		RPETrend:              TrendStable,
		CompletionTrend:       TrendStable,
		ReadinessTrend:        TrendStable,
		EnjoymentTrend:        TrendStable,
		FrequentPainAreas:     []string{},
		RecentRPEs:            []float64{},
		RecentCompletions:     []float64{},
		RecentReadinessScores: []float64{},
		RecentEnjoyments:      []float64{},
		PainFlags:             []bool{},
		HighRPEFlags:          []bool{},
	}
	facts.SessionsThisWeek = countSessionsSince(sessions, now.AddDate(0, 0, -7))
	facts.SessionsThisMonth = countSessionsSince(sessions, now.AddDate(0, 0, -30))
	facts.MissedDaysThisWeek = max(0, weeklySessionTarget-facts.SessionsThisWeek)
	facts.MissedDaysInMonth = max(0, monthlySessionTarget-facts.SessionsThisMonth)

	if len(sessions) == 0 {
		return facts
	}
	facts.HasSessionHistory = true

	// Oldest first within the lookback window, capped to the most recent
	// records so a caller passing a generous window stays bounded.
	cutoff := now.AddDate(0, 0, -historyLookbackDays)
	recent := make([]Session, 0, len(sessions))
	for _, session := range sessions {
		if !session.Date.Before(cutoff) {
			recent = append(recent, session)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Date.Before(recent[j].Date) })
	if len(recent) > historyMaxSessions {
		recent = recent[len(recent)-historyMaxSessions:]
	}
	facts.RecentSessionCount = len(recent)

	var painAreas []string
	seenAreas := map[string]bool{}
	for _, session := range recent {
		if post := session.PostWorkout; post != nil {
			facts.RecentRPEs = append(facts.RecentRPEs, float64(post.RPE))
			facts.RecentCompletions = append(facts.RecentCompletions, float64(post.Completion))
			facts.RecentEnjoyments = append(facts.RecentEnjoyments, float64(post.Enjoyment))
			facts.PainFlags = append(facts.PainFlags, post.Pain)
			facts.HighRPEFlags = append(facts.HighRPEFlags, post.RPE >= highRPEThreshold)
			if post.Pain {
				facts.RecentPainCount++
				for _, area := range post.PainAreas {
					if !seenAreas[string(area)] {
						seenAreas[string(area)] = true
						painAreas = append(painAreas, string(area))
					}
				}
			}
		}
		if pre := session.PreWorkout; pre != nil && pre.ReadinessScore != nil {
			facts.RecentReadinessScores = append(facts.RecentReadinessScores, float64(*pre.ReadinessScore))
		}
	}
	if painAreas != nil {
		facts.FrequentPainAreas = painAreas
	}

	if last := latestSession(sessions); last != nil {
		facts.LastSessionDate = last.Date
		days := DaysSince(last.Date, now)
		facts.DaysSinceLastSession = &days
		if post := last.PostWorkout; post != nil {
			rpe, completion := post.RPE, post.Completion
			facts.LastSessionRPE = &rpe
			facts.LastSessionCompletion = &completion
		}
		if pre := last.PreWorkout; pre != nil && pre.ReadinessScore != nil {
			score := *pre.ReadinessScore
			facts.LastReadinessScore = &score
		}
		facts.StreakBroken = days > 2
	}

	facts.CurrentStreak = calculateStreak(sessions, now)
	facts.IsOnStreak = facts.CurrentStreak >= 3
	facts.HasLongStreak = facts.CurrentStreak >= 7

	facts.AverageRPE = average(facts.RecentRPEs)
	facts.RPETrend = AnalyzeTrend(facts.RecentRPEs)
	facts.AverageCompletion = average(facts.RecentCompletions)
	facts.CompletionTrend = AnalyzeTrend(facts.RecentCompletions)
	facts.AverageReadiness = average(facts.RecentReadinessScores)
	facts.ReadinessTrend = AnalyzeTrend(facts.RecentReadinessScores)
	facts.AverageEnjoyment = average(facts.RecentEnjoyments)
	facts.EnjoymentTrend = AnalyzeTrend(facts.RecentEnjoyments)

	lastRPEs := tail(facts.RecentRPEs, recentWindowSessions)
	lastCompletions := tail(facts.RecentCompletions, recentWindowSessions)
	lastEnjoyments := tail(facts.RecentEnjoyments, recentWindowSessions)

	if len(facts.RecentRPEs) >= recentWindowSessions {
		facts.HasConsistentlyHighRPE = allAtLeast(lastRPEs, float64(highRPEThreshold))
		facts.HasConsistentlyLowRPE = allAtMost(lastRPEs, float64(lowRPEThreshold))
	}
	facts.ConsecutiveHighRPE = trailingRun(facts.HighRPEFlags)

	if len(facts.RecentCompletions) >= recentWindowSessions {
		facts.HasLowCompletionRate = average(lastCompletions) < 70
		facts.HasHighCompletionRate = average(lastCompletions) >= 90
	}
	if len(facts.RecentEnjoyments) >= recentWindowSessions {
		facts.HasLowEnjoyment = average(lastEnjoyments) < lowEnjoymentMax
	}

	facts.HasPainHistory = facts.RecentPainCount > 0
	facts.HasRecurringPain = facts.RecentPainCount >= 2
	if facts.RecentSessionCount > 0 {
		facts.PainFrequency = float64(facts.RecentPainCount) / float64(facts.RecentSessionCount)
	}

	if len(facts.RecentRPEs) >= recentWindowSessions {
		avgRPE := average(lastRPEs)
		avgCompletion := average(lastCompletions)
		facts.ShouldConsiderProgression = avgRPE <= progressionMaxAvgRPE && avgCompletion >= progressionMinAvgComp
		facts.IsPerformingWell = avgRPE >= 5 && avgRPE <= 7 && avgCompletion >= 80
		facts.ShowsOvertrainingSign = avgRPE >= overtrainingMinAvgRPE && facts.CompletionTrend == TrendDown
		facts.ShowsUndertrainingSign = avgRPE <= 4 && allCouldDoMore(recent)
	}
	if len(facts.RecentRPEs) >= 2 {
		lastTwoRPEs := tail(facts.RecentRPEs, 2)
		lastTwoCompletions := tail(facts.RecentCompletions, 2)
		facts.ShouldConsiderRegression = average(lastTwoRPEs) >= regressionMinAvgRPE ||
			average(lastTwoCompletions) < regressionMaxAvgComp
	}
	if len(facts.RecentEnjoyments) >= recentWindowSessions {
		facts.ShowsMotivationIssue = facts.EnjoymentTrend == TrendDown && average(lastEnjoyments) < lowEnjoymentMax
	}
	daysSinceLast := 0
	if facts.DaysSinceLastSession != nil {
		daysSinceLast = *facts.DaysSinceLastSession
	}
	facts.ShowsInconsistency = facts.MissedDaysThisWeek >= 3 ||
		(facts.CurrentStreak < 2 && daysSinceLast > 3)

	return facts
}

func countSessionsSince(sessions []Session, cutoff time.Time) int {
	count := 0
	for _, session := range sessions {
		if !session.Date.Before(cutoff) {
			count++
		}
	}
	return count
}

func latestSession(sessions []Session) *Session {
	var latest *Session
	for i := range sessions {
		if latest == nil || sessions[i].Date.After(latest.Date) {
			latest = &sessions[i]
		}
	}
	return latest
}

// calculateStreak counts consecutive training days ending today or
// yesterday. Multiple sessions on the same day count once; any gap wider
// than one day breaks the streak.
func calculateStreak(sessions []Session, now time.Time) int {
	if len(sessions) == 0 {
		return 0
	}

	seen := map[string]bool{}
	var days []time.Time
	for _, session := range sessions {
		day := session.Date.Truncate(24 * time.Hour)
		key := day.Format(time.DateOnly)
		if !seen[key] {
			seen[key] = true
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	today := now.Truncate(24 * time.Hour)
	yesterday := today.AddDate(0, 0, -1)
	if !days[0].Equal(today) && !days[0].Equal(yesterday) {
		return 0
	}

	streak := 1
	for i := 0; i < len(days)-1; i++ {
		gap := int(days[i].Sub(days[i+1]).Hours() / 24)
		if gap <= 1 {
			streak++
		} else {
			break
		}
	}
	return streak
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func allAtLeast(values []float64, threshold float64) bool {
	for _, v := range values {
		if v < threshold {
			return false
		}
	}
	return len(values) > 0
}

func allAtMost(values []float64, threshold float64) bool {
	for _, v := range values {
		if v > threshold {
			return false
		}
	}
	return len(values) > 0
}

// trailingRun counts consecutive true values at the end of flags.
func trailingRun(flags []bool) int {
	run := 0
	for i := len(flags) - 1; i >= 0; i-- {
		if !flags[i] {
			break
		}
		run++
	}
	return run
}

func allCouldDoMore(sessions []Session) bool {
	for _, session := range sessions {
		if session.PostWorkout == nil || !session.PostWorkout.CouldDoMore {
			return false
		}
	}
	return len(sessions) > 0
}

// PrepareFacts assembles the complete fact map for one evaluation. User
// facts sit at the root; assessment, feedback and history facts nest
// under their own keys; wall-clock facts are derived from now.
func PrepareFacts(
	profile *UserProfile,
	assessment *Assessment,
	feedback *Feedback,
	sessions []Session,
	now time.Time,
) rules.Facts {
	facts := rules.Facts{}
	for key, value := range DeriveUserFacts(profile, now).factsMap() {
		facts[key] = value
	}
	facts["assessment"] = DeriveAssessmentFacts(assessment).factsMap()
	facts["feedback"] = DeriveFeedbackFacts(feedback).factsMap()
	facts["history"] = DeriveHistoryFacts(sessions, now).factsMap()

	// Direct access to the most commonly tested values.
	facts["readinessScore"] = nilOrInt(assessmentScore(assessment))
	if feedback != nil {
		facts["currentRpe"] = feedback.RPE
		facts["currentCompletion"] = feedback.Completion
	} else {
		facts["currentRpe"] = nil
		facts["currentCompletion"] = nil
	}

	hour := now.Hour()
	weekday := now.Weekday()
	facts["timestamp"] = now
	facts["hour"] = hour
	facts["dayOfWeek"] = int(weekday)
	facts["isWeekend"] = weekday == time.Saturday || weekday == time.Sunday
	facts["isMorning"] = hour >= 5 && hour < 12
	facts["isAfternoon"] = hour >= 12 && hour < 17
	facts["isEvening"] = hour >= 17 && hour < 21

	return facts
}

func assessmentScore(assessment *Assessment) *int {
	if assessment == nil {
		return nil
	}
	return assessment.ReadinessScore
}

func nilOrInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
