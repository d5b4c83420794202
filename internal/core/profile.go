package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"carepath/internal/events"
	"carepath/internal/journey"
	"carepath/internal/trend"
	"carepath/pkg"
)

// normalizeProfile validates u in place and fills nil collections.
func normalizeProfile(u *pkg.UserData) error {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return validationError("name is required")
	}
	if u.DurationMonths < 0 {
		return validationError("durationMonths must not be negative")
	}
	if u.VASScore < 0 || u.VASScore > 10 {
		return validationError("vasScore must be between 0 and 10")
	}
	u.CRPSType = u.CRPSType.Normalize()
	u.KnowledgeLevel = u.KnowledgeLevel.Normalize()
	if u.MainSymptoms == nil {
		u.MainSymptoms = []string{}
	}
	if u.PainLocation == nil {
		u.PainLocation = []string{}
	}
	if u.History == nil {
		u.History = []pkg.ConsultationRecord{}
	}
	if u.StatusLogs == nil {
		u.StatusLogs = []pkg.StatusLog{}
	}
	if u.CurrentSymptoms != nil && strings.TrimSpace(*u.CurrentSymptoms) == "" {
		u.CurrentSymptoms = nil
	}
	return nil
}

// Onboard stores a new profile and opens a session on HOME.
func (s *Service) Onboard(ctx context.Context, u *pkg.UserData) (*pkg.UserData, *pkg.Session, error) {
	if err := s.createProfile(ctx, u); err != nil {
		return nil, nil, err
	}
	sess, err := s.newSession(ctx, &u.ID, journey.Start(false).CompleteOnboarding())
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info().Str("profile_id", u.ID).Msg("profile onboarded")
	s.changed(ctx, events.ProfileCreated, u.ID, nil)
	return u, sess, nil
}

// createProfile validates u and stores it under a new id, without logs or
// history.
func (s *Service) createProfile(ctx context.Context, u *pkg.UserData) error {
	if err := normalizeProfile(u); err != nil {
		return err
	}
	prefs, err := normalizePreferences(u.Preferences)
	if err != nil {
		return err
	}
	u.Preferences = prefs
	u.ID = newID()
	u.History = []pkg.ConsultationRecord{}
	u.StatusLogs = []pkg.StatusLog{}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = &now, &now

	if err := s.profiles.Create(ctx, u); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *Service) Profile(ctx context.Context, id string) (*pkg.UserData, error) {
	return s.profiles.Get(ctx, id)
}

// UpdateProfile replaces the editable fields of a profile.  Logs, history
// and preferences are kept.
func (s *Service) UpdateProfile(ctx context.Context, id string, in *pkg.UserData) (*pkg.UserData, error) {
	existing, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := normalizeProfile(in); err != nil {
		return nil, err
	}

	existing.Name = in.Name
	existing.Age = in.Age
	existing.Gender = in.Gender
	existing.VASScore = in.VASScore
	existing.CurrentSymptoms = in.CurrentSymptoms
	existing.DurationMonths = in.DurationMonths
	existing.MainSymptoms = in.MainSymptoms
	existing.PainLocation = in.PainLocation
	existing.CRPSType = in.CRPSType
	existing.WantsEmotionalSupport = in.WantsEmotionalSupport
	existing.KnowledgeLevel = in.KnowledgeLevel
	existing.MedicalCommunicationSatisfied = in.MedicalCommunicationSatisfied
	now := s.now()
	existing.UpdatedAt = &now

	if err := s.profiles.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.changed(ctx, events.ProfileUpdated, id, nil)
	return existing, nil
}

// localeDateLayout is the Korean locale date of older snapshots.
const localeDateLayout = "2006. 1. 2."

// importDate returns d as YYYY-MM-DD.  Locale dates are converted.
func importDate(d string) (string, bool) {
	d = strings.TrimSpace(d)
	for _, layout := range []string{trend.DateLayout, localeDateLayout} {
		if t, err := time.Parse(layout, d); err == nil {
			return t.Format(trend.DateLayout), true
		}
	}
	return "", false
}

// ImportProfile replaces a profile with a full snapshot, logs and history
// included.  Ids missing from the snapshot are generated.
func (s *Service) ImportProfile(ctx context.Context, id string, in *pkg.UserData) (*pkg.UserData, error) {
	existing, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := normalizeProfile(in); err != nil {
		return nil, err
	}
	prefs, err := normalizePreferences(in.Preferences)
	if err != nil {
		return nil, err
	}
	in.Preferences = prefs
	for i := range in.StatusLogs {
		l := &in.StatusLogs[i]
		if l.ID == "" {
			l.ID = newID()
		}
		if l.VASScore < 0 || l.VASScore > 10 {
			return nil, validationError(fmt.Sprintf("statusLogs[%d].vasScore must be between 0 and 10", i))
		}
		date, ok := importDate(l.Date)
		if !ok {
			return nil, validationError(fmt.Sprintf("statusLogs[%d].date must be YYYY-MM-DD", i))
		}
		l.Date = date
		if _, err := time.Parse(trend.TimeLayout, l.Time); err != nil {
			return nil, validationError(fmt.Sprintf("statusLogs[%d].time must be HH:mm", i))
		}
		if l.PainLocation == nil {
			l.PainLocation = []string{}
		}
	}
	for i := range in.History {
		r := &in.History[i]
		if r.ID == "" {
			r.ID = newID()
		}
		date, ok := importDate(r.Date)
		if !ok {
			return nil, validationError(fmt.Sprintf("history[%d].date must be YYYY-MM-DD", i))
		}
		r.Date = date
		if r.SelectedTreatmentIDs == nil {
			r.SelectedTreatmentIDs = []string{}
		}
		if r.GeneratedQuestions == nil {
			r.GeneratedQuestions = []string{}
		}
	}

	in.ID = id
	in.CreatedAt = existing.CreatedAt
	now := s.now()
	in.UpdatedAt = &now
	if err := s.profiles.Replace(ctx, in); err != nil {
		return nil, fmt.Errorf("import profile: %w", err)
	}
	s.changed(ctx, events.ProfileUpdated, id, map[string]int{
		"statusLogs": len(in.StatusLogs),
		"history":    len(in.History),
	})
	return in, nil
}

// Logout erases the profile with its logs, history and sessions.
func (s *Service) Logout(ctx context.Context, profileID string) error {
	if err := s.sessions.DeleteByProfile(ctx, profileID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	if err := s.profiles.Delete(ctx, profileID); err != nil {
		return err
	}
	s.logger.Info().Str("profile_id", profileID).Msg("profile erased")
	s.changed(ctx, events.ProfileDeleted, profileID, nil)
	return nil
}

// StatusInput is one entry of the daily pain log.
type StatusInput struct {
	Time         string   `json:"time"`
	VASScore     int      `json:"vasScore"`
	Symptoms     string   `json:"symptoms"`
	PainLocation []string `json:"painLocation"`
}

// RecordStatus appends a log dated today and makes its values the
// profile's latest state.
func (s *Service) RecordStatus(ctx context.Context, profileID string, in StatusInput) (*pkg.StatusLog, error) {
	if in.VASScore < 0 || in.VASScore > 10 {
		return nil, validationError("vasScore must be between 0 and 10")
	}
	now := s.now()
	clock := strings.TrimSpace(in.Time)
	if clock == "" {
		clock = now.Format(trend.TimeLayout)
	} else if _, err := time.Parse(trend.TimeLayout, clock); err != nil {
		return nil, validationError("time must be HH:mm")
	}

	u, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}

	locs := in.PainLocation
	if locs == nil {
		locs = []string{}
	}
	symptoms := strings.TrimSpace(in.Symptoms)
	l := &pkg.StatusLog{
		ID:           newID(),
		Date:         now.Format(trend.DateLayout),
		Time:         clock,
		VASScore:     in.VASScore,
		Symptoms:     symptoms,
		PainLocation: locs,
	}
	if err := s.profiles.AddStatusLog(ctx, profileID, l); err != nil {
		return nil, fmt.Errorf("add status log: %w", err)
	}

	u.VASScore = in.VASScore
	u.PainLocation = locs
	u.CurrentSymptoms = nil
	if symptoms != "" {
		u.CurrentSymptoms = &symptoms
	}
	u.UpdatedAt = &now
	if err := s.profiles.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.changed(ctx, events.StatusLogRecorded, profileID, l)
	return l, nil
}

// Logs returns the profile's status logs in chronological order.
func (s *Service) Logs(ctx context.Context, profileID string) ([]pkg.StatusLog, error) {
	u, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return u.StatusLogs, nil
}

// AnalyzeStatus produces the bridge analysis of the profile's latest state.
func (s *Service) AnalyzeStatus(ctx context.Context, profileID string) (string, error) {
	u, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return "", err
	}
	return s.persona.AnalyzeProfile(ctx, u), nil
}

// TrendView bundles every series the charts need.
type TrendView struct {
	Daily    []trend.DayPoint      `json:"daily"`
	Timeline []trend.TimelinePoint `json:"timeline"`
	Today    trend.TodaySummary    `json:"today"`
}

func (s *Service) Trend(ctx context.Context, profileID string) (*TrendView, error) {
	u, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return &TrendView{
		Daily:    trend.DailySeries(u.StatusLogs, u.History),
		Timeline: trend.Timeline(u.StatusLogs, u.History),
		Today:    trend.Today(u, s.now()),
	}, nil
}
