// Command coach evaluates training readiness, progression and training
// patterns for a stored profile and prints the coaching report.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/mlahtinen/coachapp/internal/coaching"
	"github.com/mlahtinen/coachapp/internal/envstruct"
	"github.com/mlahtinen/coachapp/internal/errors"
	"github.com/mlahtinen/coachapp/internal/logging"
	"github.com/mlahtinen/coachapp/internal/rules"
	"github.com/mlahtinen/coachapp/internal/sqlite"
	"github.com/mlahtinen/coachapp/internal/store"
)

type config struct {
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"COACHAPP_SQLITE_URL" envDefault:"./coachapp.sqlite3"`
	// OpenAIAPIKey enables LLM-generated coach notes. Without it a canned note is used.
	OpenAIAPIKey string `env:"COACHAPP_OPENAI_API_KEY" envDefault:""`
	// ExportDir is where profile data exports are written.
	ExportDir string `env:"COACHAPP_EXPORT_DIR" envDefault:"."`
}

const usage = `usage: coach <command>

commands:
  demo                  seed a demo profile with history and print its report
  report <profile-id>   print the coaching report for a stored profile
  export <profile-id>   export all data of a profile to a SQLite file
`

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool), args []string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	var cfg config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "closing db", errors.SlogError(closeErr))
		}
	}()

	app := application{
		logger:   logger,
		db:       db,
		profiles: store.NewProfileRepository(db, logger),
		sessions: store.NewSessionRepository(db, logger),
		service:  newCoachingService(cfg, logger),
	}

	switch command := args[0]; command {
	case "demo":
		return app.demo(ctx)
	case "report":
		if len(args) != 2 {
			return errors.New("usage: coach report <profile-id>")
		}
		return app.report(ctx, args[1])
	case "export":
		if len(args) != 2 {
			return errors.New("usage: coach export <profile-id>")
		}
		return app.export(ctx, cfg.ExportDir, args[1])
	default:
		fmt.Fprint(os.Stderr, usage)
		return errors.New("unknown command: " + command)
	}
}

type application struct {
	logger   *slog.Logger
	db       *sqlite.Database
	profiles *store.ProfileRepository
	sessions *store.SessionRepository
	service  *coaching.Service
}

func newCoachingService(cfg config, logger *slog.Logger) *coaching.Service {
	engine := rules.New(logger)
	if err := coaching.LoadDefaultRuleSets(engine); err != nil {
		// The default rule sets are embedded, so this only happens when a
		// shipped rule set is broken. The service degrades to the base
		// calculators in that case.
		logger.LogAttrs(context.Background(), slog.LevelError, "loading default rule sets", errors.SlogError(err))
	}

	var notes coaching.NoteGenerator
	if cfg.OpenAIAPIKey != "" {
		notes = coaching.NewLLMNoteGenerator(cfg.OpenAIAPIKey, logger)
	}
	return coaching.NewService(logger, engine, notes)
}

// report evaluates the stored profile against its recent session history.
// The newest session provides the assessment and feedback under
// evaluation.
func (app *application) report(ctx context.Context, profileID string) error {
	profile, err := app.profiles.Get(ctx, profileID)
	if err != nil {
		return errors.Wrap(err, "get profile", slog.String("profileID", profileID))
	}

	sessions, err := app.sessions.RecentWindow(ctx, profileID, time.Now())
	if err != nil {
		return errors.Wrap(err, "load recent sessions")
	}

	input := coaching.EvaluationInput{
		Profile:  &profile,
		Sessions: sessions,
	}
	if len(sessions) > 0 {
		latest := sessions[len(sessions)-1]
		input.Assessment = latest.PreWorkout
		input.Feedback = latest.PostWorkout
	}

	report, err := app.service.EvaluateAll(ctx, input)
	if err != nil {
		return errors.Wrap(err, "evaluate profile")
	}

	return printJSON(report)
}

func (app *application) export(ctx context.Context, exportDir string, profileID string) error {
	if _, err := app.profiles.Get(ctx, profileID); err != nil {
		return errors.Wrap(err, "get profile", slog.String("profileID", profileID))
	}

	path, err := app.db.ExportProfileData(ctx, profileID, exportDir)
	if err != nil {
		return errors.Wrap(err, "export profile data")
	}
	app.logger.LogAttrs(ctx, slog.LevelInfo, "profile data exported", slog.String("path", path))
	return nil
}

// demo seeds a profile with two weeks of history and prints its report.
func (app *application) demo(ctx context.Context) error {
	profile, err := app.profiles.Create(ctx, coaching.UserProfile{
		Name:                "Demo",
		BirthDate:           time.Now().AddDate(-32, 0, 0),
		Gender:              coaching.GenderFemale,
		WeightKg:            62,
		HeightCm:            168,
		Goal:                coaching.GoalStrength,
		Experience:          coaching.ExperienceIntermediate,
		OnboardingCompleted: true,
	})
	if err != nil {
		return errors.Wrap(err, "create demo profile")
	}
	app.logger.LogAttrs(ctx, slog.LevelInfo, "created demo profile", slog.String("profileID", profile.ID))

	if err = app.seedDemoHistory(ctx, profile.ID); err != nil {
		return errors.Wrap(err, "seed demo history")
	}

	return app.report(ctx, profile.ID)
}

func (app *application) seedDemoHistory(ctx context.Context, profileID string) error {
	now := time.Now()
	rpes := []int{5, 6, 5, 7, 6, 5}
	completions := []int{95, 90, 100, 85, 95, 100}

	for i, rpe := range rpes {
		date := now.AddDate(0, 0, -2*(len(rpes)-i))
		_, err := app.sessions.Create(ctx, profileID, coaching.Session{
			Date:            date,
			WorkoutTitle:    fmt.Sprintf("Allenamento %d", i+1),
			DurationMinutes: 45,
			CompletedAt:     date.Add(18 * time.Hour),
			PreWorkout: &coaching.Assessment{
				Energy: 4, Doms: 1, Stress: 2, Motivation: 4, AvailableTime: 45, Hydration: true,
			},
			PostWorkout: &coaching.Feedback{
				RPE: rpe, Completion: completions[i], Enjoyment: 4,
				CouldDoMore: rpe <= 5, TechniqueConfidence: 4,
			},
		})
		if err != nil {
			return errors.Wrap(err, "create demo session", slog.Int("index", i))
		}
	}
	return nil
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal report")
	}
	fmt.Println(string(encoded))
	return nil
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelInfo,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv, os.Args[1:]); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure running coach", errors.SlogError(err))
		os.Exit(1)
	}
}
