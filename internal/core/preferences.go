package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"carepath/internal/events"
	"carepath/pkg"
)

const customPrefix = "custom-"

// normalizePreference validates p and assigns an id to custom options typed
// without one.
func normalizePreference(p pkg.Preference) (pkg.Preference, error) {
	if !p.Type.Valid() {
		return p, validationError(fmt.Sprintf("invalid preference type %q", p.Type))
	}
	p.TreatmentID = strings.TrimSpace(p.TreatmentID)
	if p.CustomName != nil {
		name := strings.TrimSpace(*p.CustomName)
		p.CustomName = &name
		if name == "" {
			p.CustomName = nil
		}
	}
	if p.TreatmentID == "" {
		if !p.IsCustom() {
			return p, validationError("treatmentId or customName is required")
		}
		p.TreatmentID = customPrefix + newID()
	}
	if p.Reasons == nil {
		p.Reasons = []string{}
	}
	return p, nil
}

// normalizePreferences validates prefs, keeping the last entry for each
// treatment id.
func normalizePreferences(prefs []pkg.Preference) ([]pkg.Preference, error) {
	out := make([]pkg.Preference, 0, len(prefs))
	for _, p := range prefs {
		np, err := normalizePreference(p)
		if err != nil {
			return nil, err
		}
		out = upsertPreference(out, np)
	}
	return out, nil
}

func upsertPreference(prefs []pkg.Preference, p pkg.Preference) []pkg.Preference {
	_, idx, ok := lo.FindIndexOf(prefs, func(x pkg.Preference) bool { return x.TreatmentID == p.TreatmentID })
	if ok {
		prefs[idx] = p
		return prefs
	}
	return append(prefs, p)
}

func (s *Service) Preferences(ctx context.Context, profileID string) ([]pkg.Preference, error) {
	u, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if u.Preferences == nil {
		return []pkg.Preference{}, nil
	}
	return u.Preferences, nil
}

func (s *Service) storePreferences(ctx context.Context, u *pkg.UserData) error {
	now := s.now()
	u.UpdatedAt = &now
	if err := s.profiles.Update(ctx, u); err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	s.changed(ctx, events.PreferencesChanged, u.ID, map[string]int{"count": len(u.Preferences)})
	return nil
}

// SetPreference records the patient's reaction to one treatment, replacing
// any earlier reaction to it.
func (s *Service) SetPreference(ctx context.Context, profileID string, p pkg.Preference) ([]pkg.Preference, error) {
	np, err := normalizePreference(p)
	if err != nil {
		return nil, err
	}
	u, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	u.Preferences = upsertPreference(u.Preferences, np)
	if err := s.storePreferences(ctx, u); err != nil {
		return nil, err
	}
	return u.Preferences, nil
}

func (s *Service) RemovePreference(ctx context.Context, profileID, treatmentID string) ([]pkg.Preference, error) {
	u, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	kept := lo.Reject(u.Preferences, func(p pkg.Preference, _ int) bool { return p.TreatmentID == treatmentID })
	if len(kept) == len(u.Preferences) {
		return nil, fmt.Errorf("preference %s: %w", treatmentID, ErrNotFound)
	}
	u.Preferences = kept
	if err := s.storePreferences(ctx, u); err != nil {
		return nil, err
	}
	return u.Preferences, nil
}

// ReplacePreferences overwrites the whole preference list.
func (s *Service) ReplacePreferences(ctx context.Context, profileID string, prefs []pkg.Preference) ([]pkg.Preference, error) {
	np, err := normalizePreferences(prefs)
	if err != nil {
		return nil, err
	}
	u, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	u.Preferences = np
	if err := s.storePreferences(ctx, u); err != nil {
		return nil, err
	}
	return u.Preferences, nil
}

// ConfirmPreferences stores the list chosen on the options screen and moves
// the session on to the status log.
func (s *Service) ConfirmPreferences(ctx context.Context, sess *pkg.Session, prefs []pkg.Preference) ([]pkg.Preference, JourneyView, error) {
	if sess.ProfileID == nil {
		return nil, JourneyView{}, ErrNoProfile
	}
	out, err := s.ReplacePreferences(ctx, *sess.ProfileID, prefs)
	if err != nil {
		return nil, JourneyView{}, err
	}
	applyState(sess, stateOf(sess).OptionNext())
	if err := s.saveSession(ctx, sess); err != nil {
		return nil, JourneyView{}, err
	}
	return out, viewOf(sess), nil
}
