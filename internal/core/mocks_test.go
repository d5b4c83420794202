package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"carepath/internal/content"
	"carepath/internal/events"
	"carepath/internal/llm"
	"carepath/pkg"

	"github.com/rs/zerolog"
)

// --- Mock ProfileRepository ---

type mockProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*pkg.UserData
	order    []string
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[string]*pkg.UserData)}
}

func cloneProfile(u *pkg.UserData) *pkg.UserData {
	c := *u
	c.StatusLogs = append([]pkg.StatusLog{}, u.StatusLogs...)
	c.History = append([]pkg.ConsultationRecord{}, u.History...)
	c.Preferences = append([]pkg.Preference(nil), u.Preferences...)
	c.MainSymptoms = append([]string{}, u.MainSymptoms...)
	c.PainLocation = append([]string{}, u.PainLocation...)
	return &c
}

func (m *mockProfileRepo) Create(_ context.Context, u *pkg.UserData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[u.ID] = cloneProfile(u)
	m.order = append(m.order, u.ID)
	return nil
}

func (m *mockProfileRepo) Get(_ context.Context, id string) (*pkg.UserData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneProfile(u), nil
}

func (m *mockProfileRepo) Update(_ context.Context, u *pkg.UserData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.profiles[u.ID]
	if !ok {
		return ErrNotFound
	}
	c := cloneProfile(u)
	c.StatusLogs, c.History = existing.StatusLogs, existing.History
	m.profiles[u.ID] = c
	return nil
}

func (m *mockProfileRepo) Replace(_ context.Context, u *pkg.UserData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[u.ID]; !ok {
		return ErrNotFound
	}
	m.profiles[u.ID] = cloneProfile(u)
	return nil
}

func (m *mockProfileRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		return ErrNotFound
	}
	delete(m.profiles, id)
	return nil
}

func (m *mockProfileRepo) List(_ context.Context, limit, offset int) ([]*pkg.PatientPreview, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*pkg.PatientPreview
	for _, id := range m.order {
		u, ok := m.profiles[id]
		if !ok {
			continue
		}
		all = append(all, &pkg.PatientPreview{
			ID: u.ID, Name: u.Name, VASScore: u.VASScore, CRPSType: u.CRPSType,
			LogCount: len(u.StatusLogs), RecordCount: len(u.History),
		})
	}
	total := len(all)
	if offset >= total {
		return []*pkg.PatientPreview{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockProfileRepo) AddStatusLog(_ context.Context, profileID string, l *pkg.StatusLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.profiles[profileID]
	if !ok {
		return ErrNotFound
	}
	u.StatusLogs = append(u.StatusLogs, *l)
	sort.SliceStable(u.StatusLogs, func(i, j int) bool {
		a, b := u.StatusLogs[i], u.StatusLogs[j]
		return a.Date+a.Time < b.Date+b.Time
	})
	return nil
}

func (m *mockProfileRepo) AddConsultation(_ context.Context, profileID string, r *pkg.ConsultationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.profiles[profileID]
	if !ok {
		return ErrNotFound
	}
	u.History = append(u.History, *r)
	return nil
}

// --- Mock SessionRepository ---

type mockSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*pkg.Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*pkg.Session)}
}

func (m *mockSessionRepo) Create(_ context.Context, s *pkg.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	m.sessions[s.ID] = &c
	return nil
}

func (m *mockSessionRepo) Get(_ context.Context, id string) (*pkg.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *s
	c.Chat = append([]pkg.ChatMessage{}, s.Chat...)
	return &c, nil
}

func (m *mockSessionRepo) Update(_ context.Context, s *pkg.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return ErrNotFound
	}
	c := *s
	c.Chat = append([]pkg.ChatMessage{}, s.Chat...)
	m.sessions[s.ID] = &c
	return nil
}

// Modify holds the repository lock while fn runs, like the row lock of the
// Postgres repository.
func (m *mockSessionRepo) Modify(_ context.Context, id string, fn func(*pkg.Session) error) (*pkg.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *s
	c.Chat = append([]pkg.ChatMessage{}, s.Chat...)
	if err := fn(&c); err != nil {
		return nil, err
	}
	stored := c
	stored.Chat = append([]pkg.ChatMessage{}, c.Chat...)
	m.sessions[id] = &stored
	return &c, nil
}

func (m *mockSessionRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *mockSessionRepo) DeleteByProfile(_ context.Context, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.ProfileID != nil && *s.ProfileID == profileID {
			delete(m.sessions, id)
		}
	}
	return nil
}

// --- Mock LLM ---

type mockLLM struct {
	mu       sync.Mutex
	text     string
	err      error
	sources  []pkg.Source
	requests []llm.Request
}

func (m *mockLLM) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &llm.Response{Text: m.text, Sources: m.sources}, nil
}

func (m *mockLLM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockLLM) last() llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

var errModelDown = errors.New("model down")

// --- Mock events / notifier ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingNotifier struct {
	mu  sync.Mutex
	ids []string
}

func (n *recordingNotifier) Notify(_ context.Context, profileID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, profileID)
	return nil
}

type recordingArchive struct {
	keys []string
	err  error
}

func (a *recordingArchive) PutConsultation(_ context.Context, profileID string, rec *pkg.ConsultationRecord) error {
	a.keys = append(a.keys, profileID+"/"+rec.ID)
	return a.err
}

// --- Fixture ---

var seoul = time.FixedZone("KST", 9*60*60)

func fixedNow() time.Time { return time.Date(2025, 2, 23, 14, 30, 0, 0, seoul) }

type fixture struct {
	svc      *Service
	profiles *mockProfileRepo
	sessions *mockSessionRepo
	model    *mockLLM
	events   *recordingPublisher
	notifier *recordingNotifier
	archive  *recordingArchive
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		profiles: newMockProfileRepo(),
		sessions: newMockSessionRepo(),
		model:    &mockLLM{text: "ok"},
		events:   &recordingPublisher{},
		notifier: &recordingNotifier{},
		archive:  &recordingArchive{},
	}
	persona := NewPersona(f.model, content.Default(), zerolog.Nop(), "", fixedNow)
	all := append([]Option{
		WithEvents(f.events),
		WithNotifier(f.notifier),
		WithArchive(f.archive),
		WithClock(fixedNow),
	}, opts...)
	f.svc = NewService(f.profiles, f.sessions, persona, all...)
	return f
}

func newPatient() *pkg.UserData {
	u := pkg.NewUserData()
	u.Name = "김하늘"
	u.Age = "45"
	u.Gender = "female"
	u.VASScore = 6
	u.DurationMonths = 23
	u.CRPSType = pkg.CRPSType1
	return &u
}

func (f *fixture) onboard(t *testing.T) (*pkg.UserData, *pkg.Session) {
	t.Helper()
	u, sess, err := f.svc.Onboard(context.Background(), newPatient())
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}
	return u, sess
}

// briefed generates the session's report so that it can be saved.
func (f *fixture) briefed(t *testing.T, sess *pkg.Session) {
	t.Helper()
	if _, err := f.svc.Report(context.Background(), sess, true); err != nil {
		t.Fatalf("report: %v", err)
	}
}
