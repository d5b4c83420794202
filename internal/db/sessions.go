package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"carepath/internal/core"
	"carepath/pkg"
)

// SessionRepo persists client sessions.
type SessionRepo struct {
	DB *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

var _ core.SessionRepository = (*SessionRepo)(nil)

const sessionCols = `id, profile_id, patient_id, view, medical_mode, selected_record_id,
	analysis, chat, created_at, updated_at`

// encodeSession returns the JSONB parameters of s.  analysis is nil when
// no report was generated.
func encodeSession(s *pkg.Session) (analysis any, chat string, err error) {
	if s.Analysis != nil {
		if analysis, err = jsonParam(s.Analysis); err != nil {
			return nil, "", err
		}
	}
	msgs := s.Chat
	if msgs == nil {
		msgs = []pkg.ChatMessage{}
	}
	chat, err = jsonParam(msgs)
	return analysis, chat, err
}

func scanSession(row rowScanner) (*pkg.Session, error) {
	var (
		s                  pkg.Session
		profileID, patient sql.NullString
		recordID           sql.NullString
		analysis, chat     []byte
	)
	if err := row.Scan(&s.ID, &profileID, &patient, &s.View, &s.MedicalMode, &recordID,
		&analysis, &chat, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.ProfileID = nullString(profileID)
	s.PatientID = nullString(patient)
	s.SelectedRecordID = nullString(recordID)
	if len(analysis) > 0 {
		s.Analysis = &pkg.Analysis{}
		if err := json.Unmarshal(analysis, s.Analysis); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
	}
	s.Chat = []pkg.ChatMessage{}
	if len(chat) > 0 {
		if err := json.Unmarshal(chat, &s.Chat); err != nil {
			return nil, fmt.Errorf("decode chat: %w", err)
		}
	}
	return &s, nil
}

func (r *SessionRepo) Create(ctx context.Context, s *pkg.Session) error {
	analysis, chat, err := encodeSession(s)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		s.ID, s.ProfileID, s.PatientID, s.View, s.MedicalMode, s.SelectedRecordID,
		analysis, chat, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*pkg.Session, error) {
	if !validID(id) {
		return nil, fmt.Errorf("session %s: %w", id, core.ErrNotFound)
	}
	s, err := scanSession(r.DB.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, core.ErrNotFound)
	}
	return s, err
}

func (r *SessionRepo) Update(ctx context.Context, s *pkg.Session) error {
	if !validID(s.ID) {
		return fmt.Errorf("session %s: %w", s.ID, core.ErrNotFound)
	}
	return updateSession(ctx, r.DB, s)
}

// Modify loads the session with its row locked, hands it to fn and writes
// it back in the same transaction.  Nothing is written when fn fails.
func (r *SessionRepo) Modify(ctx context.Context, id string, fn func(*pkg.Session) error) (*pkg.Session, error) {
	if !validID(id) {
		return nil, fmt.Errorf("session %s: %w", id, core.ErrNotFound)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	s, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := updateSession(ctx, tx, s); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s, nil
}

func updateSession(ctx context.Context, q querier, s *pkg.Session) error {
	analysis, chat, err := encodeSession(s)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE sessions SET
			profile_id=$2, patient_id=$3, view=$4, medical_mode=$5, selected_record_id=$6,
			analysis=$7, chat=$8, updated_at=$9
		WHERE id = $1`,
		s.ID, s.ProfileID, s.PatientID, s.View, s.MedicalMode, s.SelectedRecordID,
		analysis, chat, s.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return expectOne(res, "session", s.ID)
}

func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}
	_, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *SessionRepo) DeleteByProfile(ctx context.Context, profileID string) error {
	if !validID(profileID) {
		return nil
	}
	_, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE profile_id = $1`, profileID)
	return err
}
