package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/sashabaranov/go-openai/jsonschema"

	"carepath/internal/content"
	"carepath/internal/llm"
	"carepath/internal/trend"
	"carepath/pkg"
)

// DefaultLanguage is the language generated text is written in.
const DefaultLanguage = "Korean"

// Persona builds the prompts for the two assistants, Info-Mate and the
// Decision-helper, and turns every model failure into a static message.
// Nothing is retried.
type Persona struct {
	llm      llm.Client
	catalog  *content.Catalog
	logger   zerolog.Logger
	language string
	now      func() time.Time
}

// NewPersona returns a Persona.  now must return times in the service time
// zone; it decides which logs count as today's.
func NewPersona(client llm.Client, catalog *content.Catalog, logger zerolog.Logger, language string, now func() time.Time) *Persona {
	if language == "" {
		language = DefaultLanguage
	}
	if now == nil {
		now = time.Now
	}
	return &Persona{
		llm:      client,
		catalog:  catalog,
		logger:   logger.With().Str("component", "persona").Logger(),
		language: language,
		now:      now,
	}
}

// ToneInstructions adapts the voice of generated text to the patient's
// knowledge level and preferences.
func ToneInstructions(u *pkg.UserData) string {
	if u == nil {
		return ""
	}
	var knowledge string
	switch u.KnowledgeLevel.Normalize() {
	case pkg.KnowledgeHigh:
		knowledge = "Use professional medical terminology where appropriate and explain in depth."
	case pkg.KnowledgeLow:
		knowledge = "Use very simple words and analogies that even a child could understand."
	default:
		knowledge = "Use plain words an ordinary adult understands easily."
	}
	emotional := "Focus on objective, rational information to earn trust."
	if u.WantsEmotionalSupport {
		emotional = "Use a warm, supportive voice, but keep emotions understated."
	}
	comm := ""
	if !u.MedicalCommunicationSatisfied {
		comm = "Encourage the patient so they do not feel intimidated when asking their clinicians questions."
	}
	return knowledge + "\n" + emotional + "\n" + comm
}

func (p *Persona) generate(ctx context.Context, feature string, req llm.Request) (*llm.Response, error) {
	start := time.Now()
	resp, err := p.llm.Generate(ctx, req)
	if err != nil {
		p.logger.Error().Err(err).Str("feature", feature).Dur("elapsed", time.Since(start)).Msg("generation failed")
		return nil, err
	}
	p.logger.Debug().Str("feature", feature).Dur("elapsed", time.Since(start)).Int("sources", len(resp.Sources)).Msg("generation done")
	return resp, nil
}

// PersonaMessage produces the greeting for stage.  The history view message
// is static.
func (p *Persona) PersonaMessage(ctx context.Context, stage pkg.PersonaStage, u *pkg.UserData, audience pkg.Audience) string {
	var (
		prompt string
		err    error
	)
	switch stage {
	case pkg.StageHistoryView:
		return HistoryViewMessage
	case pkg.StageDecision:
		if u == nil {
			return DefaultWelcome
		}
		prompt, err = p.decisionPrompt(u, audience)
	default:
		prompt, err = p.introPrompt()
	}
	if err != nil {
		p.logger.Error().Err(err).Str("stage", string(stage)).Msg("render persona prompt")
		return ConnectionUnstable
	}

	resp, err := p.generate(ctx, "persona-"+string(stage), llm.Request{Prompt: prompt})
	if err != nil {
		return ConnectionUnstable
	}
	if strings.TrimSpace(resp.Text) == "" {
		return DefaultWelcome
	}
	return resp.Text
}

func (p *Persona) introPrompt() (string, error) {
	profile, insight := p.catalog.Representative()
	return render(introTmpl, map[string]any{
		"Profile":  profile,
		"Insight":  insight,
		"URLs":     p.catalog.RAGURLs,
		"FAQ":      p.catalog.FAQ,
		"Language": p.language,
	})
}

func (p *Persona) decisionPrompt(u *pkg.UserData, audience pkg.Audience) (string, error) {
	profile, insight := p.catalog.Representative()
	role, hint, roleName := patientAdvocateRole, patientAdvocateHint, "advocate"
	if audience == pkg.AudienceDoctor {
		role, hint, roleName = facilitatorRole, facilitatorHint, "communication facilitator"
	}
	today := trend.Today(u, p.now())
	return render(decisionTmpl, map[string]any{
		"Role":           role,
		"Instruction":    hint,
		"RoleName":       roleName,
		"Profile":        profile,
		"Insight":        insight,
		"URLs":           p.catalog.RAGURLs,
		"VAS":            u.VASScore,
		"Symptoms":       u.Symptoms(),
		"Fluctuation":    today.Fluctuation,
		"DurationMonths": u.DurationMonths,
		"CRPSType":       u.CRPSType,
		"Language":       p.language,
	})
}

// AnalyzeProfile writes the short analysis shown when the patient logs
// their state, comparing it with the last consultation.
func (p *Persona) AnalyzeProfile(ctx context.Context, u *pkg.UserData) string {
	change := trend.Trend(u.LastConsultation(), float64(u.VASScore))
	painLoc := "no information"
	if len(u.PainLocation) > 0 {
		painLoc = strings.Join(u.PainLocation, ", ")
	}
	prompt, err := render(analyzeTmpl, map[string]any{
		"Name":           u.Name,
		"DurationMonths": u.DurationMonths,
		"CRPSType":       u.CRPSType,
		"VAS":            u.VASScore,
		"PainLocations":  painLoc,
		"Symptoms":       u.Symptoms(),
		"Trend":          change.Sentence(),
		"Tone":           ToneInstructions(u),
		"Language":       p.language,
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("render analysis prompt")
		return AnalysisFailed
	}

	resp, err := p.generate(ctx, "analyze-profile", llm.Request{Prompt: prompt})
	if err != nil {
		return AnalysisFailed
	}
	if strings.TrimSpace(resp.Text) == "" {
		return DefaultAnalysis
	}
	return resp.Text
}

// Answer is generated text with the web pages it was grounded on.
type Answer struct {
	Text    string       `json:"text"`
	Sources []pkg.Source `json:"sources"`
}

// AnswerFAQ returns the stored answer for a known FAQ question without
// calling the model, and a grounded answer otherwise.
func (p *Persona) AnswerFAQ(ctx context.Context, question string) Answer {
	if a, ok := p.catalog.LookupFAQ(question); ok {
		return Answer{Text: a, Sources: []pkg.Source{}}
	}

	prompt, err := render(faqTmpl, map[string]any{
		"Question":     strings.TrimSpace(question),
		"URLs":         p.catalog.RAGURLs,
		"Instructions": content.CustomInstructions,
		"Language":     p.language,
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("render faq prompt")
		return Answer{Text: FAQFailed, Sources: []pkg.Source{}}
	}
	return p.grounded(ctx, "faq", prompt, FAQEmpty, FAQFailed)
}

// AnalyzeTreatment summarises current evidence on a treatment.  targetURL,
// when set, is added as a required reference.
func (p *Persona) AnalyzeTreatment(ctx context.Context, name, targetURL string) Answer {
	prompt, err := render(treatmentTmpl, map[string]any{
		"Name":         name,
		"TargetURL":    targetURL,
		"URLs":         p.catalog.RAGURLs,
		"Instructions": content.CustomInstructions,
		"Language":     p.language,
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("render treatment prompt")
		return Answer{Text: TreatmentFailed, Sources: []pkg.Source{}}
	}
	return p.grounded(ctx, "treatment", prompt, TreatmentEmpty, TreatmentFailed)
}

func (p *Persona) grounded(ctx context.Context, feature, prompt, empty, failed string) Answer {
	resp, err := p.generate(ctx, feature, llm.Request{Prompt: prompt, Grounded: true})
	if err != nil {
		return Answer{Text: failed, Sources: []pkg.Source{}}
	}
	a := Answer{Text: resp.Text, Sources: resp.Sources}
	if strings.TrimSpace(a.Text) == "" {
		a.Text = empty
	}
	if a.Sources == nil {
		a.Sources = []pkg.Source{}
	}
	return a
}

var questionsSchema = &jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"questions": {
			Type:  jsonschema.Array,
			Items: &jsonschema.Definition{Type: jsonschema.String},
		},
	},
	Required:             []string{"questions"},
	AdditionalProperties: false,
}

// PreferenceSummary renders one line per preference for prompts.
func PreferenceSummary(prefs []pkg.Preference) []string {
	if len(prefs) == 0 {
		return []string{noPreferences}
	}
	return lo.Map(prefs, func(pr pkg.Preference, _ int) string {
		title := otherTreatment
		if t, ok := content.FindTreatment(pr.TreatmentID); ok {
			title = t.Title
		} else if pr.IsCustom() {
			title = *pr.CustomName
		}
		return fmt.Sprintf("%s: reaction [%s], reasons [%s]", title, pr.Type, strings.Join(pr.Reasons, ", "))
	})
}

// SmartQuestions asks the model for the questions the patient should bring
// to the appointment.
func (p *Persona) SmartQuestions(ctx context.Context, u *pkg.UserData, prefs []pkg.Preference) []string {
	prompt, err := render(questionsTmpl, map[string]any{
		"VAS":            u.VASScore,
		"DurationMonths": u.DurationMonths,
		"CRPSType":       u.CRPSType,
		"PainLocations":  u.PainLocation,
		"Symptoms":       u.Symptoms(),
		"Satisfied":      u.MedicalCommunicationSatisfied,
		"KnowledgeLevel": u.KnowledgeLevel,
		"Preferences":    PreferenceSummary(prefs),
		"Tone":           ToneInstructions(u),
		"Language":       p.language,
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("render questions prompt")
		return append([]string(nil), FallbackQuestions...)
	}

	resp, err := p.generate(ctx, "smart-questions", llm.Request{
		Prompt:     prompt,
		Schema:     questionsSchema,
		SchemaName: "smart_questions",
	})
	if err != nil {
		return append([]string(nil), FallbackQuestions...)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return append([]string(nil), DefaultQuestions...)
	}

	var out struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(resp.Text), &out); err != nil {
		p.logger.Error().Err(err).Msg("decode smart questions")
		return append([]string(nil), FallbackQuestions...)
	}
	if len(out.Questions) == 0 {
		return append([]string(nil), DefaultQuestions...)
	}
	return out.Questions
}

type historyLine struct {
	Speaker string
	Content string
}

// Chat answers a message in the briefing chat, as the Decision-helper for
// patients or as the Medical Reporter for clinicians.
func (p *Persona) Chat(ctx context.Context, u *pkg.UserData, history []pkg.ChatMessage, message string, medical bool) string {
	role, err := p.chatRole(u, medical)
	if err != nil {
		p.logger.Error().Err(err).Msg("render chat role")
		return ChatFailed
	}

	userLabel, botLabel := "Patient", "Decision-helper"
	if medical {
		userLabel, botLabel = "Clinician", "Reporter"
	}
	lines := lo.Map(history, func(m pkg.ChatMessage, _ int) historyLine {
		if m.Role == pkg.RoleUser {
			return historyLine{Speaker: userLabel, Content: m.Content}
		}
		return historyLine{Speaker: botLabel, Content: m.Content}
	})

	prompt, err := render(chatTmpl, map[string]any{
		"Role":     role,
		"Name":     u.Name,
		"VAS":      u.VASScore,
		"CRPSType": u.CRPSType,
		"Symptoms": u.Symptoms(),
		"History":  lines,
		"Message":  message,
		"Language": p.language,
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("render chat prompt")
		return ChatFailed
	}

	resp, err := p.generate(ctx, "chat", llm.Request{Prompt: prompt})
	if err != nil {
		return ChatFailed
	}
	if strings.TrimSpace(resp.Text) == "" {
		return ChatEmpty
	}
	return resp.Text
}

func (p *Persona) chatRole(u *pkg.UserData, medical bool) (string, error) {
	if !medical {
		return render(patientRoleTmpl, ToneInstructions(u))
	}
	satisfied := "satisfied"
	if !u.MedicalCommunicationSatisfied {
		satisfied = "unsatisfied (needs help)"
	}
	details := fmt.Sprintf("%s, %d, %d, %s, %s, %s, %s",
		u.Symptoms(), u.VASScore, u.DurationMonths, u.CRPSType,
		strings.Join(u.PainLocation, ", "), satisfied, u.KnowledgeLevel)
	return render(medicalRoleTmpl, details)
}
