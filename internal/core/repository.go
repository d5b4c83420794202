package core

import (
	"context"
	"errors"

	"carepath/pkg"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation failed")
	ErrRecordReadOnly = errors.New("saved consultations are read-only")
	ErrNoProfile      = errors.New("session has no profile")
	ErrNothingToSave  = errors.New("no briefing to save")
)

// ProfileRepository persists patient records.  Get returns the profile with
// its status logs and consultation history embedded; Update writes only the
// profile's own columns and preferences.
type ProfileRepository interface {
	Create(ctx context.Context, u *pkg.UserData) error
	Get(ctx context.Context, id string) (*pkg.UserData, error)
	Update(ctx context.Context, u *pkg.UserData) error
	// Replace overwrites the profile, its logs and its history.
	Replace(ctx context.Context, u *pkg.UserData) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*pkg.PatientPreview, int, error)

	AddStatusLog(ctx context.Context, profileID string, l *pkg.StatusLog) error
	AddConsultation(ctx context.Context, profileID string, r *pkg.ConsultationRecord) error
}

// SessionRepository persists per-client journey state, cached analysis and
// the running chat.
type SessionRepository interface {
	Create(ctx context.Context, s *pkg.Session) error
	Get(ctx context.Context, id string) (*pkg.Session, error)
	Update(ctx context.Context, s *pkg.Session) error
	// Modify applies fn to the stored session and saves the result
	// atomically with respect to other Modify calls on the same session.
	Modify(ctx context.Context, id string, fn func(*pkg.Session) error) (*pkg.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByProfile(ctx context.Context, profileID string) error
}

// ChangeNotifier tells listening clinicians that a profile changed.
type ChangeNotifier interface {
	Notify(ctx context.Context, profileID string) error
}
