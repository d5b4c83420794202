package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"carepath/internal/archive"
	"carepath/internal/events"
	"carepath/internal/journey"
	"carepath/pkg"
)

// Service implements the patient and clinician operations on top of the
// repositories.  Side channels (events, archive, clinician notifications)
// never fail an operation; their errors are logged.
type Service struct {
	profiles ProfileRepository
	sessions SessionRepository
	persona  *Persona
	chat     *ChatService
	events   events.Publisher
	archive  archive.Store
	notifier ChangeNotifier
	logger   zerolog.Logger
	now      func() time.Time
	cap      int
}

// Option configures a Service.
type Option func(*Service)

// WithEvents publishes domain events to p.  The default drops them.
func WithEvents(p events.Publisher) Option { return func(s *Service) { s.events = p } }

// WithArchive copies saved consultation records to a.
func WithArchive(a archive.Store) Option { return func(s *Service) { s.archive = a } }

// WithNotifier pings clinician streams through n when a profile changes.
func WithNotifier(n ChangeNotifier) Option { return func(s *Service) { s.notifier = n } }

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithClock sets the time source.  Returned times must be in the service
// time zone since dates of logs and records are derived from them.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithMessageCap sets how many user messages a session may send.  Zero
// keeps DefaultMessageCap.
func WithMessageCap(n int) Option { return func(s *Service) { s.cap = n } }

// NewService constructs a Service over the repositories.  Without options
// events and archiving are no-ops and nothing is logged.
func NewService(profiles ProfileRepository, sessions SessionRepository, persona *Persona, opts ...Option) *Service {
	s := &Service{
		profiles: profiles,
		sessions: sessions,
		persona:  persona,
		events:   events.Nop{},
		archive:  archive.Nop{},
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.chat = NewChatService(persona, s.cap)
	return s
}

func (s *Service) Persona() *Persona { return s.persona }

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func newID() string { return uuid.New().String() }

// changed publishes a domain event and pings listening clinicians.
func (s *Service) changed(ctx context.Context, eventType, profileID string, data any) {
	err := s.events.Publish(ctx, events.Event{
		Type:       eventType,
		ProfileID:  profileID,
		OccurredAt: s.now().UTC(),
		Data:       data,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Str("profile_id", profileID).Msg("event not published")
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, profileID); err != nil {
		s.logger.Warn().Err(err).Str("profile_id", profileID).Msg("notify failed")
	}
}

// -- Sessions --

func stateOf(sess *pkg.Session) journey.State {
	return journey.State{
		View:             journey.View(sess.View),
		MedicalMode:      sess.MedicalMode,
		SelectedRecordID: sess.SelectedRecordID,
		HasAnalysis:      sess.Analysis != nil,
	}
}

func applyState(sess *pkg.Session, st journey.State) {
	sess.View = string(st.View)
	sess.MedicalMode = st.MedicalMode
	sess.SelectedRecordID = st.SelectedRecordID
	if !st.HasAnalysis && sess.Analysis != nil {
		// the chat belongs to the analysis it followed
		sess.Analysis = nil
		sess.Chat = []pkg.ChatMessage{}
	}
}

func (s *Service) newSession(ctx context.Context, profileID *string, st journey.State) (*pkg.Session, error) {
	now := s.now()
	sess := &pkg.Session{
		ID:        newID(),
		ProfileID: profileID,
		Chat:      []pkg.ChatMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyState(sess, st)
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *Service) saveSession(ctx context.Context, sess *pkg.Session) error {
	sess.UpdatedAt = s.now()
	if err := s.sessions.Update(ctx, sess); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// Session loads a session by id.
func (s *Service) Session(ctx context.Context, id string) (*pkg.Session, error) {
	return s.sessions.Get(ctx, id)
}

// subject is the profile a session is looking at: the patient's own, or
// the patient a clinician selected.
func (s *Service) subject(ctx context.Context, sess *pkg.Session) (*pkg.UserData, error) {
	id := sess.ProfileID
	if sess.MedicalMode {
		id = sess.PatientID
	}
	if id == nil {
		return nil, ErrNoProfile
	}
	return s.profiles.Get(ctx, *id)
}

// JourneyView is the navigation state with its page title.
type JourneyView struct {
	journey.State
	Title string `json:"title"`
}

func viewOf(sess *pkg.Session) JourneyView {
	st := stateOf(sess)
	return JourneyView{State: st, Title: st.Title()}
}

func (s *Service) Journey(sess *pkg.Session) JourneyView {
	return viewOf(sess)
}

// ApplyJourney runs a navigation action on the session and persists it.
func (s *Service) ApplyJourney(ctx context.Context, sess *pkg.Session, action, arg string) (JourneyView, error) {
	if action == "view-history" && arg != "" {
		if _, err := s.ViewConsultation(ctx, sess, arg); err != nil {
			return JourneyView{}, err
		}
		return viewOf(sess), nil
	}
	st, err := stateOf(sess).Apply(action, arg)
	if err != nil {
		return JourneyView{}, err
	}
	applyState(sess, st)
	if err := s.saveSession(ctx, sess); err != nil {
		return JourneyView{}, err
	}
	return viewOf(sess), nil
}
