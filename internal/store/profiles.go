package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mlahtinen/coachapp/internal/coaching"
	"github.com/mlahtinen/coachapp/internal/sqlite"
)

// ProfileRepository persists user profiles.
type ProfileRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

// NewProfileRepository creates a SQLite-backed profile repository.
func NewProfileRepository(db *sqlite.Database, logger *slog.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new profile. A missing ID is generated and the
// timestamps are set, so the stored profile is returned.
func (r *ProfileRepository) Create(ctx context.Context, profile coaching.UserProfile) (coaching.UserProfile, error) {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	conditions, err := marshalConditions(profile.Conditions)
	if err != nil {
		return coaching.UserProfile{}, err
	}

	_, err = r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO user_profiles (
			id, name, birth_date, gender, weight_kg, height_cm,
			goal, experience, conditions, onboarding_completed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.ID,
		profile.Name,
		formatBirthDate(profile.BirthDate),
		profile.Gender,
		profile.WeightKg,
		profile.HeightCm,
		profile.Goal,
		profile.Experience,
		conditions,
		profile.OnboardingCompleted,
		profile.CreatedAt.Format(timestampFormat),
		profile.UpdatedAt.Format(timestampFormat),
	)
	if err != nil {
		return coaching.UserProfile{}, fmt.Errorf("insert profile: %w", err)
	}

	return profile, nil
}

// Get retrieves a profile by ID.
func (r *ProfileRepository) Get(ctx context.Context, id string) (coaching.UserProfile, error) {
	var (
		profile      coaching.UserProfile
		birthDateStr sql.NullString
		conditions   string
		createdAtStr string
		updatedAtStr string
	)

	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, name, birth_date, gender, weight_kg, height_cm,
		       goal, experience, conditions, onboarding_completed, created_at, updated_at
		FROM user_profiles
		WHERE id = ?`, id).Scan(
		&profile.ID,
		&profile.Name,
		&birthDateStr,
		&profile.Gender,
		&profile.WeightKg,
		&profile.HeightCm,
		&profile.Goal,
		&profile.Experience,
		&conditions,
		&profile.OnboardingCompleted,
		&createdAtStr,
		&updatedAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return coaching.UserProfile{}, ErrNotFound
	}
	if err != nil {
		return coaching.UserProfile{}, fmt.Errorf("query profile: %w", err)
	}

	if birthDateStr.Valid {
		profile.BirthDate, err = time.Parse(dateFormat, birthDateStr.String)
		if err != nil {
			return coaching.UserProfile{}, fmt.Errorf("parse birth date: %w", err)
		}
	}
	if err = json.Unmarshal([]byte(conditions), &profile.Conditions); err != nil {
		return coaching.UserProfile{}, fmt.Errorf("unmarshal conditions: %w", err)
	}
	if len(profile.Conditions) == 0 {
		profile.Conditions = nil
	}
	if profile.CreatedAt, err = time.Parse(timestampFormat, createdAtStr); err != nil {
		return coaching.UserProfile{}, fmt.Errorf("parse created_at: %w", err)
	}
	if profile.UpdatedAt, err = time.Parse(timestampFormat, updatedAtStr); err != nil {
		return coaching.UserProfile{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return profile, nil
}

// Update loads the profile, applies updateFn and saves the result when the
// function reports a change.
func (r *ProfileRepository) Update(
	ctx context.Context,
	id string,
	updateFn func(profile *coaching.UserProfile) (bool, error),
) error {
	profile, err := r.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get profile for update: %w", err)
	}

	updated, err := updateFn(&profile)
	if err != nil {
		return fmt.Errorf("update function: %w", err)
	}
	if !updated {
		return nil
	}

	conditions, err := marshalConditions(profile.Conditions)
	if err != nil {
		return err
	}

	profile.UpdatedAt = time.Now().UTC()
	_, err = r.db.ReadWrite.ExecContext(ctx, `
		UPDATE user_profiles
		SET name = ?, birth_date = ?, gender = ?, weight_kg = ?, height_cm = ?,
		    goal = ?, experience = ?, conditions = ?, onboarding_completed = ?, updated_at = ?
		WHERE id = ?`,
		profile.Name,
		formatBirthDate(profile.BirthDate),
		profile.Gender,
		profile.WeightKg,
		profile.HeightCm,
		profile.Goal,
		profile.Experience,
		conditions,
		profile.OnboardingCompleted,
		profile.UpdatedAt.Format(timestampFormat),
		id,
	)
	if err != nil {
		return fmt.Errorf("save updated profile: %w", err)
	}

	return nil
}

// Delete removes a profile. Sessions, assessments and feedback cascade.
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ReadWrite.ExecContext(ctx, `DELETE FROM user_profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalConditions(conditions []coaching.HealthCondition) (string, error) {
	if conditions == nil {
		conditions = []coaching.HealthCondition{}
	}
	encoded, err := json.Marshal(conditions)
	if err != nil {
		return "", fmt.Errorf("marshal conditions: %w", err)
	}
	return string(encoded), nil
}

func formatBirthDate(birthDate time.Time) sql.NullString {
	if birthDate.IsZero() {
		return sql.NullString{String: "", Valid: false}
	}
	return sql.NullString{String: birthDate.Format(dateFormat), Valid: true}
}
