// Package journey models which screen of the care pathway a session is on
// and which moves between screens are allowed.
package journey

import (
	"errors"
	"fmt"
)

// View is one screen of the application.
type View string

const (
	ViewOnboarding   View = "ONBOARDING"
	ViewHome         View = "HOME"
	ViewMedicalHome  View = "MEDICAL_HOME"
	ViewChoiceTalk   View = "CHOICE_TALK"
	ViewOptionTalk   View = "OPTION_TALK"
	ViewBridge       View = "BRIDGE"
	ViewDecisionTalk View = "DECISION_TALK"
	ViewProfile      View = "PROFILE"
)

var (
	ErrOnboardingRequired = errors.New("onboarding must be completed first")
	ErrMedicalOnly        = errors.New("view is only available in medical mode")
	ErrInvalidView        = errors.New("invalid view")
	ErrUnknownAction      = errors.New("unknown journey action")
)

// ParseView validates a view name received from a client.
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewOnboarding, ViewHome, ViewMedicalHome, ViewChoiceTalk, ViewOptionTalk,
		ViewBridge, ViewDecisionTalk, ViewProfile:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidView, s)
}

// State is the navigation state of a session.  Operations never mutate the
// receiver; they return the next state.
type State struct {
	View             View    `json:"view"`
	MedicalMode      bool    `json:"medicalMode"`
	SelectedRecordID *string `json:"selectedRecordId,omitempty"`
	HasAnalysis      bool    `json:"hasAnalysis"`
}

// Start picks the first screen for a visitor.
func Start(profileNamed bool) State {
	if profileNamed {
		return State{View: ViewHome}
	}
	return State{View: ViewOnboarding}
}

// CompleteOnboarding moves a freshly saved profile to HOME.  Saving the
// profile from any other screen leaves the view unchanged.
func (s State) CompleteOnboarding() State {
	if s.View == ViewOnboarding {
		s.View = ViewHome
	}
	return s
}

func (s State) EnterMedical() State {
	s.MedicalMode = true
	s.View = ViewMedicalHome
	return s
}

func (s State) Logout() State {
	return State{View: ViewOnboarding}
}

// Navigate jumps directly to target from the navigation menu.
func (s State) Navigate(target View) (State, error) {
	if s.View == ViewOnboarding {
		return s, ErrOnboardingRequired
	}
	if target == ViewOnboarding {
		return s, fmt.Errorf("%w: cannot navigate to %s", ErrInvalidView, target)
	}
	if target == ViewMedicalHome && !s.MedicalMode {
		return s, ErrMedicalOnly
	}
	if target != ViewDecisionTalk {
		s.SelectedRecordID = nil
	}
	s.View = target
	return s, nil
}

// Begin opens the guide and discards any record or analysis being viewed.
func (s State) Begin() State {
	s.SelectedRecordID = nil
	s.HasAnalysis = false
	s.View = ViewChoiceTalk
	return s
}

func (s State) Explore() State        { return s.to(ViewOptionTalk) }
func (s State) LogStatus() State      { return s.to(ViewBridge) }
func (s State) GenerateReport() State { return s.to(ViewDecisionTalk) }
func (s State) ChoiceNext() State     { return s.to(ViewOptionTalk) }
func (s State) OptionBack() State     { return s.to(ViewChoiceTalk) }
func (s State) OptionNext() State     { return s.to(ViewBridge) }
func (s State) BridgeBack() State     { return s.to(ViewOptionTalk) }
func (s State) LogSaved() State       { return s.to(ViewHome) }

func (s State) to(v View) State {
	s.View = v
	return s
}

// ViewHistory opens a saved consultation.  The live analysis is kept so
// returning to the briefing does not regenerate it.
func (s State) ViewHistory(recordID string) State {
	s.SelectedRecordID = &recordID
	s.View = ViewDecisionTalk
	return s
}

// SelectPatient opens a patient's briefing from the clinician dashboard.
func (s State) SelectPatient() (State, error) {
	if !s.MedicalMode {
		return s, ErrMedicalOnly
	}
	s.SelectedRecordID = nil
	s.HasAnalysis = false
	s.View = ViewDecisionTalk
	return s, nil
}

// DecisionBack leaves the briefing: clinicians return to the dashboard,
// patients to HOME.
func (s State) DecisionBack() State {
	if s.MedicalMode {
		s.View = ViewMedicalHome
		return s
	}
	s.SelectedRecordID = nil
	s.View = ViewHome
	return s
}

func (s State) RecordSaved() State {
	s.SelectedRecordID = nil
	s.HasAnalysis = false
	s.View = ViewHome
	return s
}

// WithAnalysis marks that a report has been generated for the session.
func (s State) WithAnalysis() State {
	s.HasAnalysis = true
	return s
}

// Apply runs a named flow action, as posted by thin clients.
func (s State) Apply(action, arg string) (State, error) {
	if s.View == ViewOnboarding {
		return s, ErrOnboardingRequired
	}
	switch action {
	case "begin":
		return s.Begin(), nil
	case "explore":
		return s.Explore(), nil
	case "log-status":
		return s.LogStatus(), nil
	case "generate-report":
		return s.GenerateReport(), nil
	case "choice-next":
		return s.ChoiceNext(), nil
	case "option-back":
		return s.OptionBack(), nil
	case "option-next":
		return s.OptionNext(), nil
	case "bridge-back":
		return s.BridgeBack(), nil
	case "log-saved":
		return s.LogSaved(), nil
	case "decision-back":
		return s.DecisionBack(), nil
	case "view-history":
		if arg == "" {
			return s, fmt.Errorf("%w: view-history needs a record id", ErrUnknownAction)
		}
		return s.ViewHistory(arg), nil
	case "navigate":
		v, err := ParseView(arg)
		if err != nil {
			return s, err
		}
		return s.Navigate(v)
	}
	return s, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

// Title is the page heading for the current view.
func (s State) Title() string {
	switch s.View {
	case ViewOnboarding:
		return "Duo 시작하기"
	case ViewMedicalHome:
		return "환자 목록"
	case ViewChoiceTalk:
		return "CRPS 가이드"
	case ViewOptionTalk:
		return "치료 솔루션"
	case ViewBridge:
		return "오늘의 기록"
	case ViewDecisionTalk:
		if s.MedicalMode {
			return "환자 리포트"
		}
		return "진료 브리핑"
	case ViewProfile:
		return "내 정보 관리"
	}
	return ""
}
