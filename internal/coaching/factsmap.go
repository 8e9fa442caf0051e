package coaching

// factsMap converters flatten the typed fact structs into the key/value
// shape the rule engine resolves against. Key names are part of the rule
// set contract; renaming one silently breaks every rule referencing it.

func (f UserFacts) factsMap() map[string]any {
	m := map[string]any{
		"hasProfile":  f.HasProfile,
		"name":        f.Name,
		"age":         nilOrInt(f.Age),
		"gender":      f.Gender,
		"weight":      f.WeightKg,
		"height":      f.HeightCm,
		"bmi":         f.BMI,
		"bmiCategory": f.BMICategory,
		"ageCategory": f.AgeCategory,
		"goal":        f.Goal,
		"experience":  f.Experience,
		"conditions":  f.Conditions,

		"isFemale":       f.IsFemale,
		"isMale":         f.IsMale,
		"isBeginner":     f.IsBeginner,
		"isIntermediate": f.IsIntermediate,
		"isAdvanced":     f.IsAdvanced,

		"goalIsToning":      f.GoalIsToning,
		"goalIsStrength":    f.GoalIsStrength,
		"goalIsEndurance":   f.GoalIsEndurance,
		"goalIsFlexibility": f.GoalIsFlexibility,

		"hasMedicalConditions": f.HasMedicalConditions,
		"hasBackProblems":      f.HasBackProblems,
		"hasKneeProblems":      f.HasKneeProblems,
		"hasShoulderProblems":  f.HasShoulderProblems,
		"hasHeartCondition":    f.HasHeartCondition,
		"hasPregnancy":         f.HasPregnancy,

		"isYoung":  f.IsYoung,
		"isAdult":  f.IsAdult,
		"isMature": f.IsMature,
		"isSenior": f.IsSenior,

		"isUnderweight":  f.IsUnderweight,
		"isNormalWeight": f.IsNormalWeight,
		"isOverweight":   f.IsOverweight,
		"isObese":        f.IsObese,
	}
	return m
}

func (f AssessmentFacts) factsMap() map[string]any {
	return map[string]any{
		"hasAssessment":  f.HasAssessment,
		"energy":         f.Energy,
		"doms":           f.Doms,
		"domsAreas":      f.DomsAreas,
		"stress":         f.Stress,
		"motivation":     f.Motivation,
		"availableTime":  f.AvailableTime,
		"hydration":      f.Hydration,
		"fasting":        f.Fasting,
		"menstrualPhase": nilOrString(f.MenstrualPhase),
		"readinessScore": nilOrInt(f.ReadinessScore),

		"hasLowEnergy":       f.HasLowEnergy,
		"hasHighEnergy":      f.HasHighEnergy,
		"hasSignificantDoms": f.HasSignificantDoms,
		"hasSevereDoms":      f.HasSevereDoms,
		"hasHighStress":      f.HasHighStress,
		"hasLowMotivation":   f.HasLowMotivation,
		"hasHighMotivation":  f.HasHighMotivation,
		"isDehydrated":       f.IsDehydrated,
		"hasLimitedTime":     f.HasLimitedTime,
		"hasExtendedTime":    f.HasExtendedTime,

		"hasUpperBodyDoms": f.HasUpperBodyDoms,
		"hasLowerBodyDoms": f.HasLowerBodyDoms,
		"hasCoreDoms":      f.HasCoreDoms,
	}
}

func (f FeedbackFacts) factsMap() map[string]any {
	return map[string]any{
		"hasFeedback":         f.HasFeedback,
		"rpe":                 nilOrInt(f.RPE),
		"completion":          nilOrInt(f.Completion),
		"pain":                f.Pain,
		"painAreas":           f.PainAreas,
		"painIntensity":       f.PainIntensity,
		"enjoyment":           nilOrInt(f.Enjoyment),
		"couldDoMore":         f.CouldDoMore,
		"techniqueConfidence": nilOrInt(f.TechniqueConfidence),

		"wasEasy":     f.WasEasy,
		"wasModerate": f.WasModerate,
		"wasHard":     f.WasHard,
		"wasVeryHard": f.WasVeryHard,

		"hadHighCompletion":   f.HadHighCompletion,
		"hadMediumCompletion": f.HadMediumCompletion,
		"hadLowCompletion":    f.HadLowCompletion,

		"hadSeverePain": f.HadSeverePain,
		"hadMildPain":   f.HadMildPain,

		"enjoyedWorkout":   f.EnjoyedWorkout,
		"didNotEnjoy":      f.DidNotEnjoy,
		"feltConfident":    f.FeltConfident,
		"lackedConfidence": f.LackedConfidence,

		"shouldProgress": f.ShouldProgress,
		"shouldMaintain": f.ShouldMaintain,
		"shouldRegress":  f.ShouldRegress,
	}
}

func (f HistoryFacts) factsMap() map[string]any {
	var lastSessionDate any
	if !f.LastSessionDate.IsZero() {
		lastSessionDate = f.LastSessionDate
	}
	return map[string]any{
		"totalSessions":      f.TotalSessions,
		"recentSessionCount": f.RecentSessionCount,
		"sessionsThisWeek":   f.SessionsThisWeek,
		"sessionsThisMonth":  f.SessionsThisMonth,

		"hasSessionHistory":     f.HasSessionHistory,
		"lastSessionDate":       lastSessionDate,
		"daysSinceLastSession":  nilOrInt(f.DaysSinceLastSession),
		"lastSessionRpe":        nilOrInt(f.LastSessionRPE),
		"lastSessionCompletion": nilOrInt(f.LastSessionCompletion),
		"lastReadinessScore":    nilOrInt(f.LastReadinessScore),

		"currentStreak":      f.CurrentStreak,
		"missedDaysThisWeek": f.MissedDaysThisWeek,
		"missedDaysInMonth":  f.MissedDaysInMonth,
		"isOnStreak":         f.IsOnStreak,
		"hasLongStreak":      f.HasLongStreak,
		"streakBroken":       f.StreakBroken,

		"recentRpes":             f.RecentRPEs,
		"averageRpe":             f.AverageRPE,
		"rpeTrend":               string(f.RPETrend),
		"hasConsistentlyHighRpe": f.HasConsistentlyHighRPE,
		"hasConsistentlyLowRpe":  f.HasConsistentlyLowRPE,
		"consecutiveHighRpe":     f.ConsecutiveHighRPE,
		"highRpeFlags":           f.HighRPEFlags,

		"recentCompletions":     f.RecentCompletions,
		"averageCompletion":     f.AverageCompletion,
		"completionTrend":       string(f.CompletionTrend),
		"hasLowCompletionRate":  f.HasLowCompletionRate,
		"hasHighCompletionRate": f.HasHighCompletionRate,

		"recentReadinessScores": f.RecentReadinessScores,
		"averageReadiness":      f.AverageReadiness,
		"readinessTrend":        string(f.ReadinessTrend),

		"recentEnjoyments": f.RecentEnjoyments,
		"averageEnjoyment": f.AverageEnjoyment,
		"enjoymentTrend":   string(f.EnjoymentTrend),
		"hasLowEnjoyment":  f.HasLowEnjoyment,

		"recentPainCount":   f.RecentPainCount,
		"hasPainHistory":    f.HasPainHistory,
		"hasRecurringPain":  f.HasRecurringPain,
		"frequentPainAreas": f.FrequentPainAreas,
		"painFrequency":     f.PainFrequency,
		"painFlags":         f.PainFlags,

		"shouldConsiderProgression": f.ShouldConsiderProgression,
		"shouldConsiderRegression":  f.ShouldConsiderRegression,
		"isPerformingWell":          f.IsPerformingWell,

		"showsOvertrainingSign":  f.ShowsOvertrainingSign,
		"showsUndertrainingSign": f.ShowsUndertrainingSign,
		"showsMotivationIssue":   f.ShowsMotivationIssue,
		"showsInconsistency":     f.ShowsInconsistency,
	}
}

func nilOrString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
