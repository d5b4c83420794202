package core

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"carepath/internal/events"
	"carepath/internal/trend"
	"carepath/pkg"
)

// Report is the consultation briefing: the persona's summary of the
// patient's state and the questions to bring to the doctor.
type Report struct {
	// Empty is set when there is not enough data to brief on yet.
	Empty          bool              `json:"empty"`
	WelcomeMessage string            `json:"welcomeMsg,omitempty"`
	Questions      []string          `json:"questions"`
	Chat           []pkg.ChatMessage `json:"chat"`
	Cached         bool              `json:"cached"`
}

// Report builds the briefing for the session's subject.  A briefing that was
// already generated for the session is returned as is.  Patients with
// neither preferences nor logs get the empty state unless force is set.
func (s *Service) Report(ctx context.Context, sess *pkg.Session, force bool) (*Report, error) {
	if sess.Analysis != nil {
		return &Report{
			WelcomeMessage: sess.Analysis.WelcomeMessage,
			Questions:      sess.Analysis.Questions,
			Chat:           sess.Chat,
			Cached:         true,
		}, nil
	}

	u, err := s.subject(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !sess.MedicalMode && !force && len(u.Preferences) == 0 && len(u.StatusLogs) == 0 {
		return &Report{Empty: true, Questions: []string{}, Chat: []pkg.ChatMessage{}}, nil
	}

	audience, opening := pkg.AudiencePatient, PatientChatOpening
	if sess.MedicalMode {
		audience, opening = pkg.AudienceDoctor, MedicalChatOpening
	}
	msg := s.persona.PersonaMessage(ctx, pkg.StageDecision, u, audience)
	questions := s.persona.SmartQuestions(ctx, u, u.Preferences)

	sess.Analysis = &pkg.Analysis{WelcomeMessage: msg, Questions: questions}
	sess.Chat = []pkg.ChatMessage{{Role: pkg.RoleAssistant, Content: opening}}
	applyState(sess, stateOf(sess).GenerateReport())
	if err := s.saveSession(ctx, sess); err != nil {
		return nil, err
	}
	return &Report{WelcomeMessage: msg, Questions: questions, Chat: sess.Chat}, nil
}

// Chat sends a message in the session's briefing chat.  The turn runs on
// the stored session under the repository lock; messages on one session
// are serialised.
func (s *Service) Chat(ctx context.Context, sess *pkg.Session, message string) (*pkg.ChatResponse, error) {
	var resp *pkg.ChatResponse
	updated, err := s.sessions.Modify(ctx, sess.ID, func(cur *pkg.Session) error {
		u, err := s.subject(ctx, cur)
		if err != nil {
			return err
		}
		if resp, err = s.chat.Reply(ctx, u, cur, message); err != nil {
			return err
		}
		cur.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	*sess = *updated
	return resp, nil
}

// SaveConsultation turns the session's briefing into a consultation record.
// Today's logs are averaged into the record's pain score; the profile's
// current symptoms become the memo and are then cleared.  Only a live
// briefing can be saved, not an opened record.
func (s *Service) SaveConsultation(ctx context.Context, sess *pkg.Session) (*pkg.ConsultationRecord, error) {
	if sess.ProfileID == nil || sess.MedicalMode {
		return nil, ErrNoProfile
	}
	if sess.SelectedRecordID != nil {
		return nil, ErrRecordReadOnly
	}
	if sess.Analysis == nil {
		return nil, ErrNothingToSave
	}
	u, err := s.profiles.Get(ctx, *sess.ProfileID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := trend.Today(u, now)
	rec := &pkg.ConsultationRecord{
		ID:       newID(),
		Date:     today.Date,
		VASScore: today.Average,
		SelectedTreatmentIDs: lo.FilterMap(u.Preferences, func(p pkg.Preference, _ int) (string, bool) {
			return p.TreatmentID, p.Type == pkg.PreferenceLike && !p.IsCustom()
		}),
		CustomTreatments: lo.FilterMap(u.Preferences, func(p pkg.Preference, _ int) (string, bool) {
			if !p.IsCustom() {
				return "", false
			}
			return *p.CustomName, true
		}),
		GeneratedQuestions: sess.Analysis.Questions,
		Memo:               u.CurrentSymptoms,
		ChatHistory:        append([]pkg.ChatMessage(nil), sess.Chat...),
	}

	if err := s.profiles.AddConsultation(ctx, u.ID, rec); err != nil {
		return nil, fmt.Errorf("add consultation: %w", err)
	}
	u.CurrentSymptoms = nil
	u.UpdatedAt = &now
	if err := s.profiles.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	applyState(sess, stateOf(sess).RecordSaved())
	sess.Analysis = nil
	sess.Chat = []pkg.ChatMessage{}
	if err := s.saveSession(ctx, sess); err != nil {
		return nil, err
	}

	if err := s.archive.PutConsultation(ctx, u.ID, rec); err != nil {
		s.logger.Warn().Err(err).Str("profile_id", u.ID).Str("record_id", rec.ID).Msg("archive failed")
	}
	s.changed(ctx, events.ConsultationSaved, u.ID, rec)
	return rec, nil
}

func (s *Service) Consultations(ctx context.Context, profileID string) ([]pkg.ConsultationRecord, error) {
	u, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return u.History, nil
}

// ConsultationView is a saved record opened for reading.
type ConsultationView struct {
	Record  pkg.ConsultationRecord `json:"record"`
	Message string                 `json:"message"`
	Journey JourneyView            `json:"journey"`
}

// ViewConsultation opens a saved record on the session.  The live briefing,
// if any, stays cached.
func (s *Service) ViewConsultation(ctx context.Context, sess *pkg.Session, recordID string) (*ConsultationView, error) {
	u, err := s.subject(ctx, sess)
	if err != nil {
		return nil, err
	}
	rec, ok := lo.Find(u.History, func(r pkg.ConsultationRecord) bool { return r.ID == recordID })
	if !ok {
		return nil, fmt.Errorf("consultation %s: %w", recordID, ErrNotFound)
	}

	applyState(sess, stateOf(sess).ViewHistory(recordID))
	if err := s.saveSession(ctx, sess); err != nil {
		return nil, err
	}
	return &ConsultationView{
		Record:  rec,
		Message: s.persona.PersonaMessage(ctx, pkg.StageHistoryView, u, pkg.AudiencePatient),
		Journey: viewOf(sess),
	}, nil
}
