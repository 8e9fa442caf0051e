package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mlahtinen/coachapp/internal/coaching"
	"github.com/mlahtinen/coachapp/internal/sqlite"
)

// SessionRepository persists training session history together with the
// attached pre-workout assessments and post-workout feedback.
type SessionRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

// NewSessionRepository creates a SQLite-backed session repository.
func NewSessionRepository(db *sqlite.Database, logger *slog.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// Create adds a new training session for a profile. A missing session ID
// is generated and the stored session is returned.
func (r *SessionRepository) Create(
	ctx context.Context, profileID string, sess coaching.Session,
) (coaching.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if err := r.set(ctx, profileID, sess, false); err != nil {
		return coaching.Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Get retrieves a single session by ID.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (coaching.Session, error) {
	row := r.db.ReadOnly.QueryRowContext(ctx, sessionQuery+` WHERE s.id = ?`, sessionID)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return coaching.Session{}, ErrNotFound
	}
	if err != nil {
		return coaching.Session{}, err
	}
	return sess, nil
}

// List retrieves all sessions for a profile since a given date, oldest
// first.
func (r *SessionRepository) List(
	ctx context.Context, profileID string, sinceDate time.Time,
) (_ []coaching.Session, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx,
		sessionQuery+` WHERE s.profile_id = ? AND s.session_date >= ? ORDER BY s.session_date ASC, s.id ASC`,
		profileID, sinceDate.Format(dateFormat))
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var sessions []coaching.Session
	for rows.Next() {
		var sess coaching.Session
		if sess, err = scanSession(rows); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return sessions, nil
}

// RecentWindow loads the bounded history window the coaching engine
// analyzes: the sessions of the last two weeks, capped to the most recent
// ones.
func (r *SessionRepository) RecentWindow(
	ctx context.Context, profileID string, now time.Time,
) ([]coaching.Session, error) {
	since := now.AddDate(0, 0, -historyLookbackDays)
	sessions, err := r.List(ctx, profileID, since)
	if err != nil {
		return nil, fmt.Errorf("list recent sessions: %w", err)
	}
	if len(sessions) > historyMaxSessions {
		sessions = sessions[len(sessions)-historyMaxSessions:]
	}
	return sessions, nil
}

// Update modifies an existing session. This is how an assessment or
// feedback gets attached after the session row exists.
func (r *SessionRepository) Update(
	ctx context.Context,
	sessionID string,
	updateFn func(sess *coaching.Session) (bool, error),
) error {
	profileID, err := r.sessionProfile(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("resolve session profile: %w", err)
	}

	sess, err := r.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get session for update: %w", err)
	}

	updated, err := updateFn(&sess)
	if err != nil {
		return fmt.Errorf("update function: %w", err)
	}
	if updated {
		sess.ID = sessionID
		if err = r.set(ctx, profileID, sess, true); err != nil {
			return fmt.Errorf("save updated session: %w", err)
		}
	}

	return nil
}

const sessionQuery = `
	SELECT s.id, s.session_date, s.workout_title, s.duration_minutes, s.completed_at,
	       a.energy, a.doms, a.doms_areas, a.stress, a.motivation,
	       a.available_time, a.hydration, a.fasting, a.menstrual_phase, a.readiness_score,
	       f.rpe, f.completion, f.pain, f.pain_areas, f.pain_intensity,
	       f.enjoyment, f.could_do_more, f.technique_confidence, f.notes
	FROM training_sessions s
	LEFT JOIN pre_workout_assessments a ON a.session_id = s.id
	LEFT JOIN post_workout_feedback f ON f.session_id = s.id`

// set writes a session with optional upsert. Assessment and feedback rows
// are rewritten together with the session row inside one transaction.
func (r *SessionRepository) set(ctx context.Context, profileID string, sess coaching.Session, upsert bool) (err error) {
	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	// Delete and reinsert so that attached rows always match the session.
	if upsert {
		if _, err = tx.ExecContext(ctx, `DELETE FROM training_sessions WHERE id = ?`, sess.ID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO training_sessions (
			id, profile_id, session_date, workout_title, duration_minutes, completed_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, profileID, sess.Date.Format(dateFormat),
		sess.WorkoutTitle, sess.DurationMinutes, formatTimestamp(sess.CompletedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if sess.PreWorkout != nil {
		if err = insertAssessment(ctx, tx, sess.ID, *sess.PreWorkout); err != nil {
			return fmt.Errorf("save assessment: %w", err)
		}
	}
	if sess.PostWorkout != nil {
		if err = insertFeedback(ctx, tx, sess.ID, *sess.PostWorkout); err != nil {
			return fmt.Errorf("save feedback: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (r *SessionRepository) sessionProfile(ctx context.Context, sessionID string) (string, error) {
	var profileID string
	err := r.db.ReadOnly.QueryRowContext(ctx,
		`SELECT profile_id FROM training_sessions WHERE id = ?`, sessionID).Scan(&profileID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query session profile: %w", err)
	}
	return profileID, nil
}

func insertAssessment(ctx context.Context, tx *sql.Tx, sessionID string, assessment coaching.Assessment) error {
	domsAreas, err := marshalAreas(assessment.DomsAreas)
	if err != nil {
		return err
	}

	var phase sql.NullString
	if assessment.MenstrualPhase != nil {
		phase = sql.NullString{String: string(*assessment.MenstrualPhase), Valid: true}
	}
	var score sql.NullInt32
	if assessment.ReadinessScore != nil {
		score = sql.NullInt32{Int32: int32(*assessment.ReadinessScore), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pre_workout_assessments (
			session_id, energy, doms, doms_areas, stress, motivation,
			available_time, hydration, fasting, menstrual_phase, readiness_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, assessment.Energy, assessment.Doms, domsAreas, assessment.Stress, assessment.Motivation,
		assessment.AvailableTime, assessment.Hydration, assessment.Fasting, phase, score)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

func insertFeedback(ctx context.Context, tx *sql.Tx, sessionID string, feedback coaching.Feedback) error {
	painAreas, err := marshalAreas(feedback.PainAreas)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO post_workout_feedback (
			session_id, rpe, completion, pain, pain_areas, pain_intensity,
			enjoyment, could_do_more, technique_confidence, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, feedback.RPE, feedback.Completion, feedback.Pain, painAreas, feedback.PainIntensity,
		feedback.Enjoyment, feedback.CouldDoMore, feedback.TechniqueConfidence, feedback.Notes)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

//nolint:funlen // one column per line keeps the scan readable.
func scanSession(row rowScanner) (coaching.Session, error) {
	var (
		sess           coaching.Session
		dateStr        string
		completedAtStr sql.NullString

		energy         sql.NullInt32
		doms           sql.NullInt32
		domsAreas      sql.NullString
		stress         sql.NullInt32
		motivation     sql.NullInt32
		availableTime  sql.NullInt32
		hydration      sql.NullBool
		fasting        sql.NullBool
		menstrualPhase sql.NullString
		readinessScore sql.NullInt32

		rpe                 sql.NullInt32
		completion          sql.NullInt32
		pain                sql.NullBool
		painAreas           sql.NullString
		painIntensity       sql.NullInt32
		enjoyment           sql.NullInt32
		couldDoMore         sql.NullBool
		techniqueConfidence sql.NullInt32
		notes               sql.NullString
	)

	err := row.Scan(
		&sess.ID, &dateStr, &sess.WorkoutTitle, &sess.DurationMinutes, &completedAtStr,
		&energy, &doms, &domsAreas, &stress, &motivation,
		&availableTime, &hydration, &fasting, &menstrualPhase, &readinessScore,
		&rpe, &completion, &pain, &painAreas, &painIntensity,
		&enjoyment, &couldDoMore, &techniqueConfidence, &notes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return coaching.Session{}, err
		}
		return coaching.Session{}, fmt.Errorf("scan session row: %w", err)
	}

	if sess.Date, err = time.Parse(dateFormat, dateStr); err != nil {
		return coaching.Session{}, fmt.Errorf("parse session date: %w", err)
	}
	if sess.CompletedAt, err = parseTimestamp(completedAtStr); err != nil {
		return coaching.Session{}, fmt.Errorf("parse completed_at: %w", err)
	}

	// Energy is NOT NULL in the assessment table, so a NULL here means the
	// LEFT JOIN found no assessment row.
	if energy.Valid {
		assessment := coaching.Assessment{
			Energy:        int(energy.Int32),
			Doms:          int(doms.Int32),
			Stress:        int(stress.Int32),
			Motivation:    int(motivation.Int32),
			AvailableTime: int(availableTime.Int32),
			Hydration:     hydration.Bool,
			Fasting:       fasting.Bool,
		}
		if assessment.DomsAreas, err = unmarshalAreas(domsAreas.String); err != nil {
			return coaching.Session{}, err
		}
		if menstrualPhase.Valid {
			phase := coaching.MenstrualPhase(menstrualPhase.String)
			assessment.MenstrualPhase = &phase
		}
		if readinessScore.Valid {
			score := int(readinessScore.Int32)
			assessment.ReadinessScore = &score
		}
		sess.PreWorkout = &assessment
	}

	if rpe.Valid {
		feedback := coaching.Feedback{
			RPE:                 int(rpe.Int32),
			Completion:          int(completion.Int32),
			Pain:                pain.Bool,
			PainIntensity:       int(painIntensity.Int32),
			Enjoyment:           int(enjoyment.Int32),
			CouldDoMore:         couldDoMore.Bool,
			TechniqueConfidence: int(techniqueConfidence.Int32),
			Notes:               notes.String,
		}
		if feedback.PainAreas, err = unmarshalAreas(painAreas.String); err != nil {
			return coaching.Session{}, err
		}
		sess.PostWorkout = &feedback
	}

	return sess, nil
}
