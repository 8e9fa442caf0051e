package coaching

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mlahtinen/coachapp/internal/rules"
)

// Service is the decision orchestrator. It prepares facts, runs the rule
// engine and merges the emitted events with the base calculators. When
// the engine fails, every operation degrades to its base calculator
// instead of returning an error, so a broken rule set never blocks the
// user from training.
type Service struct {
	logger *slog.Logger
	engine *rules.Engine
	notes  NoteGenerator
	now    func() time.Time
}

// NewService creates the orchestrator around a loaded rule engine. The
// note generator may be nil, in which case reports carry the fallback
// note.
func NewService(logger *slog.Logger, engine *rules.Engine, notes NoteGenerator) *Service {
	return NewServiceWithClock(logger, engine, notes, time.Now)
}

// NewServiceWithClock pins the clock used for fact preparation.
func NewServiceWithClock(logger *slog.Logger, engine *rules.Engine, notes NoteGenerator, now func() time.Time) *Service {
	return &Service{logger: logger, engine: engine, notes: notes, now: now}
}

// ScoreAdjustment records one readiness modifier applied by a rule.
type ScoreAdjustment struct {
	Reason   string
	Modifier float64
	Category string
}

// Recommendation is an actionable coaching suggestion for the user.
type Recommendation struct {
	Category string
	Icon     string
	Reason   string
	Text     string
	Severity string
	Priority int
}

// ReadinessEvaluation is the full pre-workout readiness verdict.
type ReadinessEvaluation struct {
	Score             int
	BaseScore         int
	Level             ReadinessLevel
	Label             string
	Color             string
	Summary           string
	IntensityModifier float64
	Adjustments       []ScoreAdjustment
	Recommendations   []Recommendation
	EngineDegraded    bool
}

// EvaluateReadiness scores the assessment, then lets the rules adjust the
// score and attach recommendations. A failed engine run keeps the base
// score and flags the evaluation as degraded.
func (s *Service) EvaluateReadiness(
	ctx context.Context,
	profile *UserProfile,
	assessment *Assessment,
	sessions []Session,
) ReadinessEvaluation {
	base := 0
	if assessment != nil {
		base = CalculateReadinessScore(*assessment, profile)
	}
	evaluation := ReadinessEvaluation{Score: base, BaseScore: base}

	facts := s.prepareFacts(profile, assessment, nil, sessions, withScore(assessment, base))
	result := s.engine.Run(ctx, facts)
	if !result.Success {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "readiness rules degraded to base score",
			slog.String("error", result.Error))
		evaluation.EngineDegraded = true
		s.finishReadiness(&evaluation)
		return evaluation
	}

	score := float64(base)
	for _, event := range rules.FilterEvents(result.Events, rules.EventReadinessModifier) {
		score += event.Params.Modifier
		evaluation.Adjustments = append(evaluation.Adjustments, ScoreAdjustment{
			Reason:   event.Params.Reason,
			Modifier: event.Params.Modifier,
			Category: event.Params.Category,
		})
		if event.Params.Recommendation != "" {
			evaluation.Recommendations = append(evaluation.Recommendations, Recommendation{
				Category: event.Params.Category,
				Icon:     categoryIcons[event.Params.Category],
				Reason:   event.Params.Reason,
				Text:     event.Params.Recommendation,
				Priority: event.Params.Priority,
			})
		}
	}
	sortRecommendations(evaluation.Recommendations)
	evaluation.Score = clampScore(score)
	s.finishReadiness(&evaluation)
	return evaluation
}

func (s *Service) finishReadiness(evaluation *ReadinessEvaluation) {
	level := ReadinessLevelFor(evaluation.Score)
	info := readinessLevels[level]
	evaluation.Level = level
	evaluation.Label = info.Label
	evaluation.Color = info.Color
	evaluation.Summary = info.Summary
	evaluation.IntensityModifier = CalculateIntensityModifier(evaluation.Score)
}

// ProgressionEvaluation is the post-workout progression verdict.
type ProgressionEvaluation struct {
	Decision         Decision
	Label            string
	Icon             string
	AdjustmentFactor float64
	FromRules        bool
	EngineDegraded   bool
}

// DetermineProgression decides the next session's intensity. The rules
// take precedence when they emit a progression event; otherwise, or when
// the engine fails, the decision matrix applies unchanged.
func (s *Service) DetermineProgression(
	ctx context.Context,
	profile *UserProfile,
	assessment *Assessment,
	feedback *Feedback,
	sessions []Session,
) ProgressionEvaluation {
	history := DeriveHistoryFacts(sessions, s.now())
	progressionContext := ProgressionContext{ConsecutiveHighRPE: history.ConsecutiveHighRPE}
	rpe, completion := 5, 80
	if feedback != nil {
		rpe, completion = feedback.RPE, feedback.Completion
		progressionContext.PainReported = feedback.Pain
	}
	base := CalculateProgressionDecision(rpe, completion, progressionContext)
	evaluation := ProgressionEvaluation{Decision: base}

	facts := s.prepareFacts(profile, assessment, feedback, sessions, nil)
	result := s.engine.Run(ctx, facts)
	switch {
	case !result.Success:
		s.logger.LogAttrs(ctx, slog.LevelWarn, "progression rules degraded to decision matrix",
			slog.String("error", result.Error))
		evaluation.EngineDegraded = true
	default:
		if event := rules.HighestPriorityEvent(result.Events, rules.EventProgression); event != nil {
			evaluation.Decision = Decision{
				Action:     ProgressionAction(event.Params.Action),
				Reason:     event.Params.Reason,
				Confidence: base.Confidence,
			}
			evaluation.FromRules = true
		}
	}

	// Pain dominates whatever the rules said.
	if progressionContext.PainReported && evaluation.Decision.Action != ActionDecrease {
		evaluation.Decision = base
		evaluation.FromRules = false
	}

	info := progressionDetails[evaluation.Decision.Action]
	evaluation.Label = info.Label
	evaluation.Icon = info.Icon
	evaluation.AdjustmentFactor = info.AdjustmentFactor
	return evaluation
}

// AntiPattern is a detected unhealthy training pattern.
type AntiPattern struct {
	Type           AntiPatternType
	Label          string
	Icon           string
	Severity       string
	Reason         string
	Recommendation string
}

// DetectAntiPatterns scans the session history for unhealthy patterns.
// When the engine fails it falls back to the derived history flags so the
// strongest signals still surface.
func (s *Service) DetectAntiPatterns(
	ctx context.Context,
	profile *UserProfile,
	sessions []Session,
) []AntiPattern {
	facts := s.prepareFacts(profile, nil, nil, sessions, nil)
	result := s.engine.Run(ctx, facts)
	if !result.Success {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "anti-pattern rules degraded to history flags",
			slog.String("error", result.Error))
		return fallbackAntiPatterns(DeriveHistoryFacts(sessions, s.now()))
	}

	var patterns []AntiPattern
	for _, event := range rules.FilterEvents(result.Events, rules.EventAntiPattern) {
		patternType := AntiPatternType(event.Params.Pattern)
		patterns = append(patterns, AntiPattern{
			Type:           patternType,
			Label:          antiPatternLabels[patternType],
			Icon:           antiPatternIcons[patternType],
			Severity:       event.Params.Severity,
			Reason:         event.Params.Reason,
			Recommendation: event.Params.Recommendation,
		})
	}
	return patterns
}

// fallbackAntiPatterns maps the derived history flags onto the pattern
// catalogue when the rules are unavailable.
func fallbackAntiPatterns(history HistoryFacts) []AntiPattern {
	var patterns []AntiPattern
	add := func(t AntiPatternType, severity, reason string) {
		patterns = append(patterns, AntiPattern{
			Type:     t,
			Label:    antiPatternLabels[t],
			Icon:     antiPatternIcons[t],
			Severity: severity,
			Reason:   reason,
		})
	}
	if history.ShowsOvertrainingSign {
		add(PatternOvertraining, "high", "RPE costantemente alto con completamento in calo")
	}
	if history.HasRecurringPain {
		add(PatternPainIgnored, "high", "Dolore ricorrente nelle sessioni recenti")
	}
	if history.HasLowCompletionRate {
		add(PatternLowCompletion, "medium", "Completamento medio basso")
	}
	if history.ShowsInconsistency {
		add(PatternInconsistent, "low", "Frequenza di allenamento irregolare")
	}
	if history.ShowsMotivationIssue {
		add(PatternMotivationDecline, "medium", "Il divertimento negli allenamenti sta calando")
	}
	return patterns
}

// ExerciseAdvice groups the exercise-level events of one run.
type ExerciseAdvice struct {
	Exclusions      []string
	Modifications   []Recommendation
	Recommendations []Recommendation
	Warnings        []Recommendation
	EngineDegraded  bool
}

// AdviseExerciseSelection collects exercise exclusions, modifications and
// suggestions for the next workout. There is no base calculator for
// these; a failed run yields empty degraded advice.
func (s *Service) AdviseExerciseSelection(
	ctx context.Context,
	profile *UserProfile,
	assessment *Assessment,
	feedback *Feedback,
	sessions []Session,
) ExerciseAdvice {
	facts := s.prepareFacts(profile, assessment, feedback, sessions, nil)
	result := s.engine.Run(ctx, facts)
	if !result.Success {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "exercise selection rules unavailable",
			slog.String("error", result.Error))
		return ExerciseAdvice{EngineDegraded: true}
	}

	var advice ExerciseAdvice
	for _, event := range result.Events {
		switch event.Type {
		case rules.EventExcludeExercise:
			advice.Exclusions = append(advice.Exclusions, event.Params.Action)
		case rules.EventModifyExercise:
			advice.Modifications = append(advice.Modifications, Recommendation{
				Category: "safety",
				Icon:     categoryIcons["safety"],
				Reason:   event.Params.Reason,
				Text:     event.Params.Recommendation,
			})
		case rules.EventRecommendExercise:
			advice.Recommendations = append(advice.Recommendations, Recommendation{
				Category: event.Params.Category,
				Icon:     categoryIcons[event.Params.Category],
				Reason:   event.Params.Reason,
				Text:     event.Params.Recommendation,
				Priority: event.Params.Priority,
			})
		case rules.EventWarning:
			advice.Warnings = append(advice.Warnings, Recommendation{
				Category: "safety",
				Icon:     categoryIcons["safety"],
				Reason:   event.Params.Reason,
				Text:     event.Params.Recommendation,
				Severity: event.Params.Severity,
			})
		}
	}
	sortRecommendations(advice.Recommendations)
	return advice
}

// sortRecommendations orders recommendations by priority descending. The
// sort is stable, so rules with equal priority keep their emission order.
func sortRecommendations(recommendations []Recommendation) {
	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Priority > recommendations[j].Priority
	})
}

// Alert is a standalone notification raised by the alert rules.
type Alert struct {
	Severity       string
	Reason         string
	Recommendation string
}

// CollectAlerts returns the alert events of one run, highest severity
// first.
func (s *Service) CollectAlerts(
	ctx context.Context,
	profile *UserProfile,
	assessment *Assessment,
	feedback *Feedback,
	sessions []Session,
) []Alert {
	base := 0
	if assessment != nil {
		base = CalculateReadinessScore(*assessment, profile)
	}
	facts := s.prepareFacts(profile, assessment, feedback, sessions, withScore(assessment, base))
	result := s.engine.Run(ctx, facts)
	if !result.Success {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "alert rules unavailable",
			slog.String("error", result.Error))
		return nil
	}

	var alerts []Alert
	for _, event := range rules.FilterEvents(result.Events, rules.EventAlert) {
		alerts = append(alerts, Alert{
			Severity:       event.Params.Severity,
			Reason:         event.Params.Reason,
			Recommendation: event.Params.Recommendation,
		})
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return severityRank(alerts[i].Severity) > severityRank(alerts[j].Severity)
	})
	return alerts
}

func severityRank(severity string) int {
	switch severity {
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	default:
		return 0
	}
}

// CoachingReport is the combined output of a full evaluation.
type CoachingReport struct {
	Readiness    ReadinessEvaluation
	Progression  ProgressionEvaluation
	AntiPatterns []AntiPattern
	Exercise     ExerciseAdvice
	Alerts       []Alert
	CoachNote    string
	GeneratedAt  time.Time
}

// EvaluationInput bundles everything one full evaluation needs. Sessions
// are the bounded recent-history window, oldest first or not; derivation
// sorts them itself.
type EvaluationInput struct {
	Profile    *UserProfile
	Assessment *Assessment
	Feedback   *Feedback
	Sessions   []Session
}

// EvaluateAll runs every evaluation concurrently and assembles the full
// report. The individual evaluations never fail, so the only error path
// is context cancellation.
func (s *Service) EvaluateAll(ctx context.Context, input EvaluationInput) (*CoachingReport, error) {
	report := &CoachingReport{GeneratedAt: s.now()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report.Readiness = s.EvaluateReadiness(gctx, input.Profile, input.Assessment, input.Sessions)
		return gctx.Err()
	})
	g.Go(func() error {
		report.Progression = s.DetermineProgression(gctx, input.Profile, input.Assessment, input.Feedback, input.Sessions)
		return gctx.Err()
	})
	g.Go(func() error {
		report.AntiPatterns = s.DetectAntiPatterns(gctx, input.Profile, input.Sessions)
		return gctx.Err()
	})
	g.Go(func() error {
		report.Exercise = s.AdviseExerciseSelection(gctx, input.Profile, input.Assessment, input.Feedback, input.Sessions)
		return gctx.Err()
	})
	g.Go(func() error {
		report.Alerts = s.CollectAlerts(gctx, input.Profile, input.Assessment, input.Feedback, input.Sessions)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.CoachNote = s.coachNote(ctx, input, report)
	return report, nil
}

func (s *Service) prepareFacts(
	profile *UserProfile,
	assessment *Assessment,
	feedback *Feedback,
	sessions []Session,
	score *int,
) rules.Facts {
	facts := PrepareFacts(profile, assessment, feedback, sessions, s.now())
	if score != nil {
		facts["readinessScore"] = *score
	}
	return facts
}

// withScore prefers the stored assessment score, falling back to the
// freshly computed one.
func withScore(assessment *Assessment, computed int) *int {
	if assessment == nil {
		return nil
	}
	if assessment.ReadinessScore != nil {
		return assessment.ReadinessScore
	}
	return &computed
}

func clampScore(score float64) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score + 0.5)
}
