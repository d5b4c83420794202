package core

import (
	"context"

	"carepath/internal/journey"
	"carepath/pkg"
)

// StartClinicianSession opens a session in medical mode on the patient list.
func (s *Service) StartClinicianSession(ctx context.Context) (*pkg.Session, error) {
	return s.newSession(ctx, nil, journey.Start(false).EnterMedical())
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*pkg.PatientPreview, int, error) {
	return s.profiles.List(ctx, limit, offset)
}

func (s *Service) Patient(ctx context.Context, id string) (*pkg.UserData, error) {
	return s.profiles.Get(ctx, id)
}

// SelectPatient binds a clinician session to a patient and opens a fresh
// briefing for them.
func (s *Service) SelectPatient(ctx context.Context, sess *pkg.Session, patientID string) (JourneyView, error) {
	st, err := stateOf(sess).SelectPatient()
	if err != nil {
		return JourneyView{}, err
	}
	if _, err := s.profiles.Get(ctx, patientID); err != nil {
		return JourneyView{}, err
	}
	sess.PatientID = &patientID
	applyState(sess, st)
	sess.Analysis = nil
	sess.Chat = []pkg.ChatMessage{}
	if err := s.saveSession(ctx, sess); err != nil {
		return JourneyView{}, err
	}
	s.logger.Info().Str("session_id", sess.ID).Str("patient_id", patientID).Msg("patient selected")
	return viewOf(sess), nil
}

// BoundToPatient reports whether a clinician session has selected patientID.
func BoundToPatient(sess *pkg.Session, patientID string) bool {
	return sess.MedicalMode && sess.PatientID != nil && *sess.PatientID == patientID
}
