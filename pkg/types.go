package pkg

import "time"

// CRPSType is the diagnosed CRPS subtype of a patient.
type CRPSType string

const (
	CRPSType1       CRPSType = "TYPE_1"
	CRPSType2       CRPSType = "TYPE_2"
	CRPSTypeUnknown CRPSType = "UNKNOWN"
)

// Normalize maps anything that is not a known subtype to UNKNOWN.
func (t CRPSType) Normalize() CRPSType {
	switch t {
	case CRPSType1, CRPSType2:
		return t
	}
	return CRPSTypeUnknown
}

// KnowledgeLevel is the patient's self-assessed medical literacy.  It drives
// the tone of every generated message.
type KnowledgeLevel string

const (
	KnowledgeHigh   KnowledgeLevel = "HIGH"
	KnowledgeMedium KnowledgeLevel = "MEDIUM"
	KnowledgeLow    KnowledgeLevel = "LOW"
)

func (k KnowledgeLevel) Normalize() KnowledgeLevel {
	switch k {
	case KnowledgeHigh, KnowledgeLow:
		return k
	}
	return KnowledgeMedium
}

// PreferenceType is the patient's reaction to a treatment option.
type PreferenceType string

const (
	PreferenceLike    PreferenceType = "LIKE"
	PreferenceDislike PreferenceType = "DISLIKE"
	PreferenceWorry   PreferenceType = "WORRY"
)

func (p PreferenceType) Valid() bool {
	return p == PreferenceLike || p == PreferenceDislike || p == PreferenceWorry
}

type TreatmentCategory string

const (
	CategoryMedication     TreatmentCategory = "Medication"
	CategoryProcedure      TreatmentCategory = "Procedure"
	CategoryRehabilitation TreatmentCategory = "Rehabilitation"
	CategoryPsychotherapy  TreatmentCategory = "Psychotherapy"
)

type EvidenceLevel string

const (
	EvidenceHigh     EvidenceLevel = "High"
	EvidenceModerate EvidenceLevel = "Moderate"
	EvidenceLow      EvidenceLevel = "Low"
)

// ChatRole describes who authored a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// Audience selects who a generated report is written for.
type Audience string

const (
	AudiencePatient Audience = "patient"
	AudienceDoctor  Audience = "doctor"
)

// PersonaStage selects which persona message is produced.
type PersonaStage string

const (
	StageIntro       PersonaStage = "intro"
	StageDecision    PersonaStage = "decision"
	StageHistoryView PersonaStage = "history-view"
)

// ChatMessage is one turn of a conversation with the Decision-helper.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// StatusLog is a single timestamped pain entry.  Date is YYYY-MM-DD and
// Time is HH:mm, both in the service time zone.
type StatusLog struct {
	ID           string   `json:"id"`
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	VASScore     int      `json:"vasScore"`
	Symptoms     string   `json:"symptoms"`
	PainLocation []string `json:"painLocation"`
}

// ConsultationRecord is a saved consultation briefing.
type ConsultationRecord struct {
	ID                   string        `json:"id"`
	Date                 string        `json:"date"`
	VASScore             float64       `json:"vasScore"`
	SelectedTreatmentIDs []string      `json:"selectedTreatmentIds"`
	CustomTreatments     []string      `json:"customTreatments,omitempty"`
	GeneratedQuestions   []string      `json:"generatedQuestions"`
	Memo                 *string       `json:"memo,omitempty"`
	ChatHistory          []ChatMessage `json:"chatHistory,omitempty"`
}

// Preference records how a patient feels about one treatment option.
type Preference struct {
	TreatmentID string         `json:"treatmentId"`
	CustomName  *string        `json:"customName,omitempty"`
	Type        PreferenceType `json:"type"`
	Reasons     []string       `json:"reasons"`
}

// IsCustom reports whether the preference refers to a treatment the patient
// typed in rather than one from the catalog.
func (p Preference) IsCustom() bool {
	return p.CustomName != nil && *p.CustomName != ""
}

// TreatmentOption is an entry of the treatment catalog.
type TreatmentOption struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Category         TreatmentCategory `json:"category"`
	Pros             []string          `json:"pros"`
	Cons             []string          `json:"cons"`
	EvidenceLevel    EvidenceLevel     `json:"evidenceLevel"`
	ReferenceURL     string            `json:"referenceUrl,omitempty"`
	RecommendedTypes []CRPSType        `json:"recommendedTypes"`
}

// UserData is the full patient record.  Its JSON form is the record the
// browser client used to keep under the crps_carepath_user storage key, so
// field names must stay stable.
type UserData struct {
	ID                            string               `json:"id,omitempty"`
	Name                          string               `json:"name"`
	Age                           string               `json:"age"`
	Gender                        string               `json:"gender"`
	VASScore                      int                  `json:"vasScore"`
	CurrentSymptoms               *string              `json:"currentSymptoms,omitempty"`
	DurationMonths                int                  `json:"durationMonths"`
	MainSymptoms                  []string             `json:"mainSymptoms"`
	PainLocation                  []string             `json:"painLocation"`
	History                       []ConsultationRecord `json:"history"`
	StatusLogs                    []StatusLog          `json:"statusLogs"`
	CRPSType                      CRPSType             `json:"crpsType"`
	WantsEmotionalSupport         bool                 `json:"wantsEmotionalSupport"`
	KnowledgeLevel                KnowledgeLevel       `json:"knowledgeLevel"`
	MedicalCommunicationSatisfied bool                 `json:"medicalCommunicationSatisfied"`
	Preferences                   []Preference         `json:"preferences,omitempty"`
	CreatedAt                     *time.Time           `json:"createdAt,omitempty"`
	UpdatedAt                     *time.Time           `json:"updatedAt,omitempty"`
}

// NewUserData returns a record populated with the onboarding defaults.
func NewUserData() UserData {
	return UserData{
		VASScore:                      5,
		MainSymptoms:                  []string{},
		PainLocation:                  []string{},
		History:                       []ConsultationRecord{},
		StatusLogs:                    []StatusLog{},
		CRPSType:                      CRPSTypeUnknown,
		WantsEmotionalSupport:         true,
		KnowledgeLevel:                KnowledgeMedium,
		MedicalCommunicationSatisfied: true,
	}
}

// Symptoms returns the current symptom text or "" when unset.
func (u *UserData) Symptoms() string {
	if u.CurrentSymptoms == nil {
		return ""
	}
	return *u.CurrentSymptoms
}

// LastConsultation returns the most recent saved record, or nil.
func (u *UserData) LastConsultation() *ConsultationRecord {
	if len(u.History) == 0 {
		return nil
	}
	return &u.History[len(u.History)-1]
}

// Source is a web page an AI answer was grounded on.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Analysis is the generated decision report kept on a session so that
// moving between views does not regenerate it.
type Analysis struct {
	WelcomeMessage string   `json:"welcomeMsg"`
	Questions      []string `json:"questions"`
}

// Session tracks one client's journey through the application: the current
// view, the record being inspected and any generated analysis and chat.
type Session struct {
	ID               string        `json:"id"`
	ProfileID        *string       `json:"profile_id,omitempty"`
	PatientID        *string       `json:"patient_id,omitempty"`
	View             string        `json:"view"`
	MedicalMode      bool          `json:"medical_mode"`
	SelectedRecordID *string       `json:"selected_record_id,omitempty"`
	Analysis         *Analysis     `json:"analysis,omitempty"`
	Chat             []ChatMessage `json:"chat"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// UserMessageCount counts the user turns of the session chat.
func (s *Session) UserMessageCount() int {
	n := 0
	for _, m := range s.Chat {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// ChatRequest carries a message for the briefing chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is one turn of the briefing chat.  Capped reports that the
// session has used up its messages; History is the chat after the turn.
type ChatResponse struct {
	Reply   string        `json:"reply"`
	Capped  bool          `json:"capped"`
	History []ChatMessage `json:"history"`
}

// PatientPreview is returned in the clinician's patient list.
type PatientPreview struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Age            string    `json:"age"`
	Gender         string    `json:"gender"`
	VASScore       int       `json:"vasScore"`
	CRPSType       CRPSType  `json:"crpsType"`
	DurationMonths int       `json:"durationMonths"`
	LogCount       int       `json:"logCount"`
	RecordCount    int       `json:"recordCount"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
