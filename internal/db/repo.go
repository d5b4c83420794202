package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"carepath/internal/core"
	"carepath/pkg"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const fkViolation = "23503"

// validID reports whether id can be used against a UUID column.  Anything
// else cannot exist and is treated as not found.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isFKViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == fkViolation
}

func expectOne(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
	}
	return nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ProfileRepo stores profiles with their status logs and consultations in
// PostgreSQL.
type ProfileRepo struct {
	DB *sql.DB
}

// NewProfileRepo constructs a ProfileRepo from an existing sql.DB.  The
// caller is responsible for managing the DB connection lifecycle.
func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

var _ core.ProfileRepository = (*ProfileRepo)(nil)

const profileCols = `id, name, age, gender, vas_score, current_symptoms, duration_months,
	main_symptoms, pain_location, crps_type, wants_emotional_support, knowledge_level,
	medical_communication_satisfied, preferences, created_at, updated_at`

func scanProfile(row rowScanner) (*pkg.UserData, error) {
	var (
		u                  pkg.UserData
		symptoms           sql.NullString
		crps, knowledge    string
		prefs              []byte
		created, updated   time.Time
		mainSymptoms, locs []string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Age, &u.Gender, &u.VASScore, &symptoms, &u.DurationMonths,
		pq.Array(&mainSymptoms), pq.Array(&locs), &crps, &u.WantsEmotionalSupport, &knowledge,
		&u.MedicalCommunicationSatisfied, &prefs, &created, &updated)
	if err != nil {
		return nil, err
	}
	u.CurrentSymptoms = nullString(symptoms)
	u.MainSymptoms = nonNil(mainSymptoms)
	u.PainLocation = nonNil(locs)
	u.CRPSType = pkg.CRPSType(crps)
	u.KnowledgeLevel = pkg.KnowledgeLevel(knowledge)
	u.CreatedAt, u.UpdatedAt = &created, &updated
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	return &u, nil
}

// jsonParam encodes v for a JSONB column.  lib/pq sends []byte as bytea,
// so the document goes over the wire as text.
func jsonParam(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshalPreferences(prefs []pkg.Preference) (string, error) {
	if prefs == nil {
		prefs = []pkg.Preference{}
	}
	return jsonParam(prefs)
}

func timestamps(u *pkg.UserData) (time.Time, time.Time) {
	now := time.Now()
	created, updated := now, now
	if u.CreatedAt != nil {
		created = *u.CreatedAt
	}
	if u.UpdatedAt != nil {
		updated = *u.UpdatedAt
	}
	return created, updated
}

// Create inserts the profile row.  Logs and history are not written; new
// profiles start without them.
func (r *ProfileRepo) Create(ctx context.Context, u *pkg.UserData) error {
	prefs, err := marshalPreferences(u.Preferences)
	if err != nil {
		return err
	}
	created, updated := timestamps(u)
	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO profiles (`+profileCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		u.ID, u.Name, u.Age, u.Gender, u.VASScore, u.CurrentSymptoms, u.DurationMonths,
		pq.Array(nonNil(u.MainSymptoms)), pq.Array(nonNil(u.PainLocation)), string(u.CRPSType),
		u.WantsEmotionalSupport, string(u.KnowledgeLevel), u.MedicalCommunicationSatisfied,
		prefs, created, updated,
	)
	return err
}

// Get loads a profile with its logs in chronological order and its history
// in the order it was saved.
func (r *ProfileRepo) Get(ctx context.Context, id string) (*pkg.UserData, error) {
	if !validID(id) {
		return nil, fmt.Errorf("profile %s: %w", id, core.ErrNotFound)
	}
	u, err := scanProfile(r.DB.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	if u.StatusLogs, err = statusLogs(ctx, r.DB, id); err != nil {
		return nil, err
	}
	if u.History, err = consultations(ctx, r.DB, id); err != nil {
		return nil, err
	}
	return u, nil
}

func updateProfile(ctx context.Context, q querier, u *pkg.UserData) error {
	prefs, err := marshalPreferences(u.Preferences)
	if err != nil {
		return err
	}
	_, updated := timestamps(u)
	res, err := q.ExecContext(ctx, `
		UPDATE profiles SET
			name=$2, age=$3, gender=$4, vas_score=$5, current_symptoms=$6, duration_months=$7,
			main_symptoms=$8, pain_location=$9, crps_type=$10, wants_emotional_support=$11,
			knowledge_level=$12, medical_communication_satisfied=$13, preferences=$14, updated_at=$15
		WHERE id = $1`,
		u.ID, u.Name, u.Age, u.Gender, u.VASScore, u.CurrentSymptoms, u.DurationMonths,
		pq.Array(nonNil(u.MainSymptoms)), pq.Array(nonNil(u.PainLocation)), string(u.CRPSType),
		u.WantsEmotionalSupport, string(u.KnowledgeLevel), u.MedicalCommunicationSatisfied,
		prefs, updated,
	)
	if err != nil {
		return err
	}
	return expectOne(res, "profile", u.ID)
}

// Update writes the profile's own columns and preferences.
func (r *ProfileRepo) Update(ctx context.Context, u *pkg.UserData) error {
	if !validID(u.ID) {
		return fmt.Errorf("profile %s: %w", u.ID, core.ErrNotFound)
	}
	return updateProfile(ctx, r.DB, u)
}

// Replace overwrites the profile, its logs and its history in one
// transaction.
func (r *ProfileRepo) Replace(ctx context.Context, u *pkg.UserData) error {
	if !validID(u.ID) {
		return fmt.Errorf("profile %s: %w", u.ID, core.ErrNotFound)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := updateProfile(ctx, tx, u); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM status_logs WHERE profile_id = $1`, u.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM consultations WHERE profile_id = $1`, u.ID); err != nil {
		return err
	}
	for i := range u.StatusLogs {
		if err := insertStatusLog(ctx, tx, u.ID, &u.StatusLogs[i]); err != nil {
			return fmt.Errorf("status log %s: %w", u.StatusLogs[i].ID, err)
		}
	}
	for i := range u.History {
		if err := insertConsultation(ctx, tx, u.ID, &u.History[i]); err != nil {
			return fmt.Errorf("consultation %s: %w", u.History[i].ID, err)
		}
	}
	return tx.Commit()
}

// Delete removes the profile; logs, history and sessions cascade.
func (r *ProfileRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("profile %s: %w", id, core.ErrNotFound)
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res, "profile", id)
}

// List returns previews of the most recently updated profiles first.
func (r *ProfileRepo) List(ctx context.Context, limit, offset int) ([]*pkg.PatientPreview, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT p.id, p.name, p.age, p.gender, p.vas_score, p.crps_type, p.duration_months,
		       (SELECT COUNT(*) FROM status_logs l WHERE l.profile_id = p.id),
		       (SELECT COUNT(*) FROM consultations c WHERE c.profile_id = p.id),
		       p.updated_at
		FROM profiles p
		ORDER BY p.updated_at DESC, p.id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*pkg.PatientPreview{}
	for rows.Next() {
		var (
			p    pkg.PatientPreview
			crps string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.VASScore, &crps, &p.DurationMonths,
			&p.LogCount, &p.RecordCount, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		p.CRPSType = pkg.CRPSType(crps)
		out = append(out, &p)
	}
	return out, total, rows.Err()
}

// -- Status logs --

func insertStatusLog(ctx context.Context, q querier, profileID string, l *pkg.StatusLog) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO status_logs (id, profile_id, log_date, log_time, vas_score, symptoms, pain_location)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		l.ID, profileID, l.Date, l.Time, l.VASScore, l.Symptoms, pq.Array(nonNil(l.PainLocation)),
	)
	return err
}

func (r *ProfileRepo) AddStatusLog(ctx context.Context, profileID string, l *pkg.StatusLog) error {
	if !validID(profileID) {
		return fmt.Errorf("profile %s: %w", profileID, core.ErrNotFound)
	}
	err := insertStatusLog(ctx, r.DB, profileID, l)
	if isFKViolation(err) {
		return fmt.Errorf("profile %s: %w", profileID, core.ErrNotFound)
	}
	return err
}

func statusLogs(ctx context.Context, q querier, profileID string) ([]pkg.StatusLog, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, log_date, log_time, vas_score, symptoms, pain_location
		FROM status_logs
		WHERE profile_id = $1
		ORDER BY log_date, log_time, seq`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []pkg.StatusLog{}
	for rows.Next() {
		var (
			l    pkg.StatusLog
			locs []string
		)
		if err := rows.Scan(&l.ID, &l.Date, &l.Time, &l.VASScore, &l.Symptoms, pq.Array(&locs)); err != nil {
			return nil, err
		}
		l.PainLocation = nonNil(locs)
		out = append(out, l)
	}
	return out, rows.Err()
}

// -- Consultations --

func insertConsultation(ctx context.Context, q querier, profileID string, c *pkg.ConsultationRecord) error {
	chat := c.ChatHistory
	if chat == nil {
		chat = []pkg.ChatMessage{}
	}
	chatJSON, err := jsonParam(chat)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO consultations (id, profile_id, record_date, vas_score, selected_treatment_ids,
			custom_treatments, generated_questions, memo, chat_history)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, profileID, c.Date, c.VASScore, pq.Array(nonNil(c.SelectedTreatmentIDs)),
		pq.Array(nonNil(c.CustomTreatments)), pq.Array(nonNil(c.GeneratedQuestions)), c.Memo, chatJSON,
	)
	return err
}

func (r *ProfileRepo) AddConsultation(ctx context.Context, profileID string, c *pkg.ConsultationRecord) error {
	if !validID(profileID) {
		return fmt.Errorf("profile %s: %w", profileID, core.ErrNotFound)
	}
	err := insertConsultation(ctx, r.DB, profileID, c)
	if isFKViolation(err) {
		return fmt.Errorf("profile %s: %w", profileID, core.ErrNotFound)
	}
	return err
}

func consultations(ctx context.Context, q querier, profileID string) ([]pkg.ConsultationRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, record_date, vas_score, selected_treatment_ids, custom_treatments,
		       generated_questions, memo, chat_history
		FROM consultations
		WHERE profile_id = $1
		ORDER BY seq`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []pkg.ConsultationRecord{}
	for rows.Next() {
		var (
			c                pkg.ConsultationRecord
			selected, custom []string
			questions        []string
			memo             sql.NullString
			chat             []byte
		)
		if err := rows.Scan(&c.ID, &c.Date, &c.VASScore, pq.Array(&selected), pq.Array(&custom),
			pq.Array(&questions), &memo, &chat); err != nil {
			return nil, err
		}
		c.SelectedTreatmentIDs = nonNil(selected)
		c.GeneratedQuestions = nonNil(questions)
		if len(custom) > 0 {
			c.CustomTreatments = custom
		}
		c.Memo = nullString(memo)
		if len(chat) > 0 {
			if err := json.Unmarshal(chat, &c.ChatHistory); err != nil {
				return nil, fmt.Errorf("decode chat history: %w", err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
