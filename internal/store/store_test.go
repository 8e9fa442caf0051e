package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mlahtinen/coachapp/internal/coaching"
	"github.com/mlahtinen/coachapp/internal/ptr"
	"github.com/mlahtinen/coachapp/internal/sqlite"
	"github.com/mlahtinen/coachapp/internal/store"
	"github.com/mlahtinen/coachapp/internal/testhelpers"
)

func newTestDatabase(t *testing.T) *sqlite.Database {
	t.Helper()

	ctx := t.Context()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("new database: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Errorf("close database: %v", closeErr)
		}
	})
	return db
}

func createProfile(ctx context.Context, t *testing.T, profiles *store.ProfileRepository) coaching.UserProfile {
	t.Helper()

	profile, err := profiles.Create(ctx, coaching.UserProfile{
		Name:       "Giulia",
		BirthDate:  time.Date(1993, 2, 10, 0, 0, 0, 0, time.UTC),
		Gender:     coaching.GenderFemale,
		WeightKg:   62,
		HeightCm:   168,
		Goal:       coaching.GoalStrength,
		Experience: coaching.ExperienceIntermediate,
		Conditions: []coaching.HealthCondition{coaching.ConditionKneeIssues},
	})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return profile
}

func TestProfileRepository_roundTrip(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db := newTestDatabase(t)
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	profiles := store.NewProfileRepository(db, logger)

	created := createProfile(ctx, t, profiles)
	if created.ID == "" {
		t.Fatal("expected generated profile ID")
	}

	got, err := profiles.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}

	// Timestamps go through a second-resolution text column.
	created.CreatedAt = created.CreatedAt.Truncate(time.Second)
	created.UpdatedAt = created.UpdatedAt.Truncate(time.Second)
	if diff := cmp.Diff(created, got); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
}

func TestProfileRepository_GetNotFound(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db := newTestDatabase(t)
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	profiles := store.NewProfileRepository(db, logger)

	_, err := profiles.Get(ctx, "no-such-profile")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v, want store.ErrNotFound", err)
	}
}

func TestProfileRepository_Update(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db := newTestDatabase(t)
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	profiles := store.NewProfileRepository(db, logger)

	created := createProfile(ctx, t, profiles)

	err := profiles.Update(ctx, created.ID, func(profile *coaching.UserProfile) (bool, error) {
		profile.WeightKg = 64
		profile.OnboardingCompleted = true
		return true, nil
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}

	got, err := profiles.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if got.WeightKg != 64 {
		t.Errorf("weight: got %v, want 64", got.WeightKg)
	}
	if !got.OnboardingCompleted {
		t.Error("expected onboarding to be completed")
	}
}

func TestProfileRepository_UpdateNoChange(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db := newTestDatabase(t)
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	profiles := store.NewProfileRepository(db, logger)

	created := createProfile(ctx, t, profiles)

	err := profiles.Update(ctx, created.ID, func(profile *coaching.UserProfile) (bool, error) {
		profile.WeightKg = 99
		return false, nil
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}

	got, err := profiles.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if got.WeightKg != 62 {
		t.Errorf("weight: got %v, want unchanged 62", got.WeightKg)
	}
}

func TestProfileRepository_DeleteCascades(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db := newTestDatabase(t)
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	profiles := store.NewProfileRepository(db, logger)
	sessions := store.NewSessionRepository(db, logger)

	created := createProfile(ctx, t, profiles)
	sess, err := sessions.Create(ctx, created.ID, coaching.Session{
		Date:         time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		WorkoutTitle: "Full body A",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if err = profiles.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete profile: %v", err)
	}

	if _, err = profiles.Get(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("get deleted profile: got %v, want store.ErrNotFound", err)
	}
	if _, err = sessions.Get(ctx, sess.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("get cascaded session: got %v, want store.ErrNotFound", err)
	}
}

func TestSessionRepository_roundTrip(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db := newTestDatabase(t)
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	profiles := store.NewProfileRepository(db, logger)
	sessions := store.NewSessionRepository(db, logger)

	profile := createProfile(ctx, t, profiles)

	want := coaching.Session{
		Date:            time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		WorkoutTitle:    "Lower body",
		DurationMinutes: 45,
		CompletedAt:     time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC),
		PreWorkout: &coaching.Assessment{
			Energy:         4,
			Doms:           2,
			DomsAreas:      []coaching.BodyArea{coaching.AreaThighs},
			Stress:         2,
			Motivation:     5,
			AvailableTime:  45,
			Hydration:      true,
			MenstrualPhase: ptr.Ref(coaching.PhaseFollicular),
			ReadinessScore: ptr.Ref(78),
		},
		PostWorkout: &coaching.Feedback{
			RPE:                 6,
			Completion:          95,
			Pain:                true,
			PainAreas:           []coaching.BodyArea{coaching.AreaKnees},
			PainIntensity:       3,
			Enjoyment:           4,
			CouldDoMore:         true,
			TechniqueConfidence: 4,
			Notes:               "Ottima sessione",
		},
	}

	created, err := sessions.Create(ctx, profile.ID, want)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	want.ID = created.ID

	got, err := sessions.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionRepository_UpdateAttachesFeedback(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db := newTestDatabase(t)
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	profiles := store.NewProfileRepository(db, logger)
	sessions := store.NewSessionRepository(db, logger)

	profile := createProfile(ctx, t, profiles)
	created, err := sessions.Create(ctx, profile.ID, coaching.Session{
		Date:         time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		WorkoutTitle: "Upper body",
		PreWorkout:   &coaching.Assessment{Energy: 3, Doms: 1, Stress: 3, Motivation: 3, AvailableTime: 30},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	err = sessions.Update(ctx, created.ID, func(sess *coaching.Session) (bool, error) {
		sess.PostWorkout = &coaching.Feedback{RPE: 7, Completion: 100, Enjoyment: 4, TechniqueConfidence: 3}
		sess.CompletedAt = time.Date(2025, 3, 14, 19, 0, 0, 0, time.UTC)
		return true, nil
	})
	if err != nil {
		t.Fatalf("update session: %v", err)
	}

	got, err := sessions.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.PostWorkout == nil {
		t.Fatal("expected feedback to be attached")
	}
	if got.PostWorkout.RPE != 7 || got.PostWorkout.Completion != 100 {
		t.Errorf("feedback: got %+v", got.PostWorkout)
	}
	if got.PreWorkout == nil {
		t.Error("expected assessment to survive the update")
	}
	if got.CompletedAt.IsZero() {
		t.Error("expected completed_at to be set")
	}
}

func TestSessionRepository_RecentWindow(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db := newTestDatabase(t)
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	profiles := store.NewProfileRepository(db, logger)
	sessions := store.NewSessionRepository(db, logger)

	profile := createProfile(ctx, t, profiles)
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	// One stale session outside the two week window and 25 inside it.
	_, err := sessions.Create(ctx, profile.ID, coaching.Session{
		Date: now.AddDate(0, 0, -30), WorkoutTitle: "stale",
	})
	if err != nil {
		t.Fatalf("create stale session: %v", err)
	}
	for i := range 25 {
		_, err = sessions.Create(ctx, profile.ID, coaching.Session{
			Date:         now.AddDate(0, 0, -13),
			WorkoutTitle: "recent",
			PostWorkout:  &coaching.Feedback{RPE: 5 + i%2, Completion: 90},
		})
		if err != nil {
			t.Fatalf("create session %d: %v", i, err)
		}
	}

	window, err := sessions.RecentWindow(ctx, profile.ID, now)
	if err != nil {
		t.Fatalf("recent window: %v", err)
	}
	if len(window) != 20 {
		t.Errorf("window size: got %d, want 20", len(window))
	}
	for _, sess := range window {
		if sess.WorkoutTitle != "recent" {
			t.Errorf("stale session %q leaked into the window", sess.WorkoutTitle)
		}
	}
}
