package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"carepath/internal/events"
	"carepath/internal/journey"
	"carepath/pkg"
)

func strPtr(s string) *string { return &s }

func TestOnboard(t *testing.T) {
	f := newFixture()
	u, sess := f.onboard(t)

	if u.ID == "" {
		t.Fatal("expected generated profile id")
	}
	if sess.View != string(journey.ViewHome) {
		t.Errorf("expected session at HOME, got %s", sess.View)
	}
	if sess.ProfileID == nil || *sess.ProfileID != u.ID {
		t.Errorf("expected session bound to profile %s", u.ID)
	}
	if got := f.events.types(); len(got) != 1 || got[0] != events.ProfileCreated {
		t.Errorf("expected %s event, got %v", events.ProfileCreated, got)
	}
	if len(f.notifier.ids) != 1 || f.notifier.ids[0] != u.ID {
		t.Errorf("expected clinicians notified about %s, got %v", u.ID, f.notifier.ids)
	}
}

func TestOnboard_Validation(t *testing.T) {
	cases := map[string]func(u *pkg.UserData){
		"blank name":        func(u *pkg.UserData) { u.Name = "   " },
		"vas above range":   func(u *pkg.UserData) { u.VASScore = 11 },
		"negative duration": func(u *pkg.UserData) { u.DurationMonths = -1 },
		"bad preference":    func(u *pkg.UserData) { u.Preferences = []pkg.Preference{{TreatmentID: "t1", Type: "LOVE"}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			u := newPatient()
			mutate(u)
			if _, _, err := f.svc.Onboard(context.Background(), u); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestOnboard_NormalizesEnums(t *testing.T) {
	f := newFixture()
	u := newPatient()
	u.CRPSType = "TYPE_9"
	u.KnowledgeLevel = ""
	out, _, err := f.svc.Onboard(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	if out.CRPSType != pkg.CRPSTypeUnknown || out.KnowledgeLevel != pkg.KnowledgeMedium {
		t.Errorf("expected UNKNOWN/MEDIUM, got %s/%s", out.CRPSType, out.KnowledgeLevel)
	}
}

func TestUpdateProfile_KeepsLogs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u, _ := f.onboard(t)
	if _, err := f.svc.RecordStatus(ctx, u.ID, StatusInput{VASScore: 4}); err != nil {
		t.Fatal(err)
	}

	in := newPatient()
	in.Name = "김하늘2"
	in.VASScore = 3
	out, err := f.svc.UpdateProfile(ctx, u.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	if out.Name != "김하늘2" || out.VASScore != 3 {
		t.Errorf("fields not updated: %+v", out)
	}
	stored, _ := f.profiles.Get(ctx, u.ID)
	if len(stored.StatusLogs) != 1 {
		t.Errorf("expected logs kept, got %d", len(stored.StatusLogs))
	}

	if _, err := f.svc.UpdateProfile(ctx, "missing", newPatient()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u, _ := f.onboard(t)

	l, err := f.svc.RecordStatus(ctx, u.ID, StatusInput{
		VASScore:     8,
		Symptoms:     "  야간 통증  ",
		PainLocation: []string{"왼쪽 발목"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if l.Date != "2025-02-23" || l.Time != "14:30" {
		t.Errorf("expected log dated now, got %s %s", l.Date, l.Time)
	}
	if l.Symptoms != "야간 통증" {
		t.Errorf("expected trimmed symptoms, got %q", l.Symptoms)
	}

	stored, _ := f.profiles.Get(ctx, u.ID)
	if stored.VASScore != 8 || stored.Symptoms() != "야간 통증" || stored.PainLocation[0] != "왼쪽 발목" {
		t.Errorf("latest fields not updated: %+v", stored)
	}
	types := f.events.types()
	if types[len(types)-1] != events.StatusLogRecorded {
		t.Errorf("expected %s last, got %v", events.StatusLogRecorded, types)
	}
}

func TestImportProfile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u, _ := f.onboard(t)

	snap := newPatient()
	snap.StatusLogs = []pkg.StatusLog{
		{Date: "2024-05-02", Time: "08:00", VASScore: 5},
		{Date: "2024. 5. 3.", Time: "21:30", VASScore: 7},
	}
	snap.History = []pkg.ConsultationRecord{{Date: "2024. 5. 3.", VASScore: 7}}
	out, err := f.svc.ImportProfile(ctx, u.ID, snap)
	if err != nil {
		t.Fatal(err)
	}
	if out.StatusLogs[1].Date != "2024-05-03" || out.History[0].Date != "2024-05-03" {
		t.Errorf("expected locale dates converted, got %q and %q", out.StatusLogs[1].Date, out.History[0].Date)
	}
	if out.StatusLogs[0].ID == "" || out.History[0].ID == "" {
		t.Error("expected ids generated")
	}
	stored, _ := f.profiles.Get(ctx, u.ID)
	if len(stored.StatusLogs) != 2 || len(stored.History) != 1 {
		t.Errorf("expected snapshot stored, got %d logs %d records", len(stored.StatusLogs), len(stored.History))
	}
}

func TestImportProfile_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u, _ := f.onboard(t)
	tests := []struct {
		name string
		edit func(*pkg.UserData)
	}{
		{"log date", func(s *pkg.UserData) {
			s.StatusLogs = []pkg.StatusLog{{Date: "03/05/2024", Time: "08:00", VASScore: 5}}
		}},
		{"log time", func(s *pkg.UserData) {
			s.StatusLogs = []pkg.StatusLog{{Date: "2024-05-03", Time: "오후 2:30", VASScore: 5}}
		}},
		{"log score", func(s *pkg.UserData) {
			s.StatusLogs = []pkg.StatusLog{{Date: "2024-05-03", Time: "08:00", VASScore: 11}}
		}},
		{"record date", func(s *pkg.UserData) {
			s.History = []pkg.ConsultationRecord{{Date: "yesterday"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := newPatient()
			tt.edit(snap)
			if _, err := f.svc.ImportProfile(ctx, u.ID, snap); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
	stored, _ := f.profiles.Get(ctx, u.ID)
	if len(stored.StatusLogs) != 0 {
		t.Errorf("expected nothing imported, got %d logs", len(stored.StatusLogs))
	}
}

func TestRecordStatus_Validation(t *testing.T) {
	f := newFixture()
	u, _ := f.onboard(t)
	for _, in := range []StatusInput{
		{VASScore: -1},
		{VASScore: 11},
		{VASScore: 3, Time: "25:00"},
		{VASScore: 3, Time: "9pm"},
	} {
		if _, err := f.svc.RecordStatus(context.Background(), u.ID, in); !errors.Is(err, ErrValidation) {
			t.Errorf("%+v: expected ErrValidation, got %v", in, err)
		}
	}
}

func TestPreferences_Upsert(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u, _ := f.onboard(t)

	if _, err := f.svc.SetPreference(ctx, u.ID, pkg.Preference{TreatmentID: "t1", Type: pkg.PreferenceWorry}); err != nil {
		t.Fatal(err)
	}
	prefs, err := f.svc.SetPreference(ctx, u.ID, pkg.Preference{TreatmentID: "t1", Type: pkg.PreferenceLike, Reasons: []string{"효과"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(prefs) != 1 || prefs[0].Type != pkg.PreferenceLike {
		t.Fatalf("expected single LIKE entry, got %+v", prefs)
	}

	prefs, err = f.svc.SetPreference(ctx, u.ID, pkg.Preference{CustomName: strPtr(" 온열 요법 "), Type: pkg.PreferenceLike})
	if err != nil {
		t.Fatal(err)
	}
	custom := prefs[1]
	if !strings.HasPrefix(custom.TreatmentID, customPrefix) || *custom.CustomName != "온열 요법" {
		t.Errorf("unexpected custom preference %+v", custom)
	}
	if custom.Reasons == nil {
		t.Error("expected reasons to default to empty list")
	}

	prefs, err = f.svc.RemovePreference(ctx, u.ID, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(prefs) != 1 {
		t.Errorf("expected one preference left, got %d", len(prefs))
	}
	if _, err := f.svc.RemovePreference(ctx, u.ID, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := f.svc.SetPreference(ctx, u.ID, pkg.Preference{Type: pkg.PreferenceLike}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for nameless preference, got %v", err)
	}
}

func TestConfirmPreferences_MovesToBridge(t *testing.T) {
	f := newFixture()
	_, sess := f.onboard(t)

	prefs, view, err := f.svc.ConfirmPreferences(context.Background(), sess, []pkg.Preference{
		{TreatmentID: "t1", Type: pkg.PreferenceLike},
		{TreatmentID: "t1", Type: pkg.PreferenceDislike},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(prefs) != 1 || prefs[0].Type != pkg.PreferenceDislike {
		t.Errorf("expected last entry to win, got %+v", prefs)
	}
	if view.View != journey.ViewBridge {
		t.Errorf("expected BRIDGE, got %s", view.View)
	}
}

func TestReport_EmptyState(t *testing.T) {
	f := newFixture()
	_, sess := f.onboard(t)

	r, err := f.svc.Report(context.Background(), sess, false)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Empty {
		t.Error("expected empty report for patient without data")
	}
	if f.model.calls() != 0 {
		t.Errorf("expected no model calls, got %d", f.model.calls())
	}
}

func TestReport_GeneratesOnceAndCaches(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u, sess := f.onboard(t)
	if _, err := f.svc.SetPreference(ctx, u.ID, pkg.Preference{TreatmentID: "t1", Type: pkg.PreferenceLike}); err != nil {
		t.Fatal(err)
	}
	f.model.text = `{"questions":["첫 질문","둘째 질문"]}`

	r, err := f.svc.Report(ctx, sess, false)
	if err != nil {
		t.Fatal(err)
	}
	if r.Empty || r.Cached {
		t.Fatalf("expected fresh report, got %+v", r)
	}
	if len(r.Questions) != 2 || r.Questions[0] != "첫 질문" {
		t.Errorf("unexpected questions %v", r.Questions)
	}
	if len(r.Chat) != 1 || r.Chat[0].Content != PatientChatOpening {
		t.Errorf("expected patient opening line, got %+v", r.Chat)
	}
	if sess.View != string(journey.ViewDecisionTalk) {
		t.Errorf("expected DECISION_TALK, got %s", sess.View)
	}
	calls := f.model.calls()

	again, err := f.svc.Report(ctx, sess, false)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Cached || f.model.calls() != calls {
		t.Errorf("expected cached report without model calls")
	}
	stored, _ := f.sessions.Get(ctx, sess.ID)
	if stored.Analysis == nil {
		t.Error("expected analysis persisted on session")
	}
}

func TestReport_ModelFailureUsesStaticText(t *testing.T) {
	f := newFixture()
	_, sess := f.onboard(t)
	f.model.err = errModelDown

	r, err := f.svc.Report(context.Background(), sess, true)
	if err != nil {
		t.Fatal(err)
	}
	if r.WelcomeMessage != ConnectionUnstable {
		t.Errorf("expected connection message, got %q", r.WelcomeMessage)
	}
	if strings.Join(r.Questions, "|") != strings.Join(FallbackQuestions, "|") {
		t.Errorf("expected fallback questions, got %v", r.Questions)
	}
}

func TestChat_Cap(t *testing.T) {
	f := newFixture(WithMessageCap(1))
	ctx := context.Background()
	_, sess := f.onboard(t)
	if _, err := f.svc.Report(ctx, sess, true); err != nil {
		t.Fatal(err)
	}

	resp, err := f.svc.Chat(ctx, sess, "부작용이 걱정돼요")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Reply != "ok" || !resp.Capped {
		t.Errorf("expected reply and capped flag, got %+v", resp)
	}
	if len(resp.History) != 3 {
		t.Errorf("expected opening plus two turns, got %d", len(resp.History))
	}
	calls := f.model.calls()

	resp, err = f.svc.Chat(ctx, sess, "하나 더")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Reply != CapMessage || !resp.Capped {
		t.Errorf("expected cap message, got %+v", resp)
	}
	if f.model.calls() != calls {
		t.Error("model called after cap")
	}
	stored, _ := f.sessions.Get(ctx, sess.ID)
	if stored.UserMessageCount() != 1 {
		t.Errorf("expected one stored user message, got %d", stored.UserMessageCount())
	}
}

func TestChat_ConcurrentMessagesRespectCap(t *testing.T) {
	const msgCap, senders = 3, 8
	f := newFixture(WithMessageCap(msgCap))
	ctx := context.Background()
	_, sess := f.onboard(t)
	f.briefed(t, sess)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		answers int
	)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// each request works on its own copy of the session
			own, err := f.sessions.Get(ctx, sess.ID)
			if err != nil {
				t.Error(err)
				return
			}
			resp, err := f.svc.Chat(ctx, own, fmt.Sprintf("질문 %d", i))
			if err != nil {
				t.Error(err)
				return
			}
			if resp.Reply != CapMessage {
				mu.Lock()
				answers++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if answers != msgCap {
		t.Errorf("expected %d answered messages, got %d", msgCap, answers)
	}
	stored, _ := f.sessions.Get(ctx, sess.ID)
	if stored.UserMessageCount() != msgCap {
		t.Errorf("expected %d stored user messages, got %d", msgCap, stored.UserMessageCount())
	}
	if len(stored.Chat) != 1+2*msgCap {
		t.Errorf("expected opening plus %d turns, got %d messages", msgCap, len(stored.Chat))
	}
}

func TestChat_EmptyMessage(t *testing.T) {
	f := newFixture()
	_, sess := f.onboard(t)
	if _, err := f.svc.Chat(context.Background(), sess, "  "); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestChat_PromptCarriesHistory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, sess := f.onboard(t)
	if _, err := f.svc.Chat(ctx, sess, "첫 메시지"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Chat(ctx, sess, "두번째"); err != nil {
		t.Fatal(err)
	}
	prompt := f.model.last().Prompt
	if !strings.Contains(prompt, "Patient: 첫 메시지") || !strings.Contains(prompt, "두번째") {
		t.Errorf("expected history and message in prompt:\n%s", prompt)
	}
}

func TestSaveConsultation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u, sess := f.onboard(t)

	for _, in := range []StatusInput{
		{Time: "08:00", VASScore: 4},
		{Time: "12:00", VASScore: 7, Symptoms: "열감"},
	} {
		if _, err := f.svc.RecordStatus(ctx, u.ID, in); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range []pkg.Preference{
		{TreatmentID: "t1", Type: pkg.PreferenceLike},
		{TreatmentID: "t3", Type: pkg.PreferenceWorry},
		{CustomName: strPtr("온열 요법"), Type: pkg.PreferenceLike},
	} {
		if _, err := f.svc.SetPreference(ctx, u.ID, p); err != nil {
			t.Fatal(err)
		}
	}
	f.model.text = `{"questions":["질문"]}`
	if _, err := f.svc.Report(ctx, sess, false); err != nil {
		t.Fatal(err)
	}

	rec, err := f.svc.SaveConsultation(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	if rec.VASScore != 5.5 {
		t.Errorf("expected today's average 5.5, got %v", rec.VASScore)
	}
	if len(rec.SelectedTreatmentIDs) != 1 || rec.SelectedTreatmentIDs[0] != "t1" {
		t.Errorf("expected only liked catalog treatment, got %v", rec.SelectedTreatmentIDs)
	}
	if len(rec.CustomTreatments) != 1 || rec.CustomTreatments[0] != "온열 요법" {
		t.Errorf("unexpected custom treatments %v", rec.CustomTreatments)
	}
	if len(rec.GeneratedQuestions) != 1 || rec.GeneratedQuestions[0] != "질문" {
		t.Errorf("expected questions from analysis, got %v", rec.GeneratedQuestions)
	}
	if rec.Memo == nil || *rec.Memo != "열감" {
		t.Errorf("expected memo from current symptoms, got %v", rec.Memo)
	}
	if len(rec.ChatHistory) != 1 {
		t.Errorf("expected chat copied into record, got %d", len(rec.ChatHistory))
	}

	stored, _ := f.profiles.Get(ctx, u.ID)
	if len(stored.History) != 1 || stored.CurrentSymptoms != nil {
		t.Errorf("expected history appended and symptoms cleared, got %d %v", len(stored.History), stored.CurrentSymptoms)
	}
	if sess.Analysis != nil || len(sess.Chat) != 0 || sess.View != string(journey.ViewHome) {
		t.Errorf("expected session reset to HOME, got %+v", sess)
	}
	if len(f.archive.keys) != 1 {
		t.Errorf("expected record archived, got %v", f.archive.keys)
	}
	types := f.events.types()
	if types[len(types)-1] != events.ConsultationSaved {
		t.Errorf("expected %s last, got %v", events.ConsultationSaved, types)
	}
}

func TestSaveConsultation_FallsBackToCurrentScore(t *testing.T) {
	f := newFixture()
	_, sess := f.onboard(t)
	f.briefed(t, sess)
	rec, err := f.svc.SaveConsultation(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	if rec.VASScore != 6 {
		t.Errorf("expected profile score 6, got %v", rec.VASScore)
	}
}

func TestSaveConsultation_ArchiveFailureIgnored(t *testing.T) {
	f := newFixture()
	f.archive.err = errors.New("bucket gone")
	_, sess := f.onboard(t)
	f.briefed(t, sess)
	if _, err := f.svc.SaveConsultation(context.Background(), sess); err != nil {
		t.Fatalf("expected archive failure to be logged only, got %v", err)
	}
}

func TestViewConsultation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, sess := f.onboard(t)
	f.briefed(t, sess)
	rec, err := f.svc.SaveConsultation(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	calls := f.model.calls()

	v, err := f.svc.ViewConsultation(ctx, sess, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if v.Message != HistoryViewMessage || f.model.calls() != calls {
		t.Errorf("expected static history message without model call, got %q", v.Message)
	}
	if v.Journey.SelectedRecordID == nil || *v.Journey.SelectedRecordID != rec.ID {
		t.Errorf("expected record selected, got %+v", v.Journey)
	}
	if _, err := f.svc.Chat(ctx, sess, "질문"); !errors.Is(err, ErrRecordReadOnly) {
		t.Errorf("expected ErrRecordReadOnly, got %v", err)
	}
	if _, err := f.svc.ViewConsultation(ctx, sess, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveConsultation_RequiresLiveBriefing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u, sess := f.onboard(t)

	if _, err := f.svc.SaveConsultation(ctx, sess); !errors.Is(err, ErrNothingToSave) {
		t.Errorf("expected ErrNothingToSave before a report, got %v", err)
	}

	f.briefed(t, sess)
	rec, err := f.svc.SaveConsultation(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	f.briefed(t, sess)
	if _, err := f.svc.ViewConsultation(ctx, sess, rec.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SaveConsultation(ctx, sess); !errors.Is(err, ErrRecordReadOnly) {
		t.Errorf("expected ErrRecordReadOnly while a record is open, got %v", err)
	}
	stored, _ := f.profiles.Get(ctx, u.ID)
	if len(stored.History) != 1 {
		t.Errorf("expected one record, got %d", len(stored.History))
	}
}

func TestApplyJourney(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, sess := f.onboard(t)

	v, err := f.svc.ApplyJourney(ctx, sess, "explore", "")
	if err != nil {
		t.Fatal(err)
	}
	if v.View != journey.ViewOptionTalk {
		t.Errorf("expected OPTION_TALK, got %s", v.View)
	}
	if _, err := f.svc.ApplyJourney(ctx, sess, "dance", ""); !errors.Is(err, journey.ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
	if _, err := f.svc.ApplyJourney(ctx, sess, "navigate", "MEDICAL_HOME"); !errors.Is(err, journey.ErrMedicalOnly) {
		t.Errorf("expected ErrMedicalOnly, got %v", err)
	}
	stored, _ := f.sessions.Get(ctx, sess.ID)
	if stored.View != string(journey.ViewOptionTalk) {
		t.Errorf("expected persisted view, got %s", stored.View)
	}
}

func TestLogout(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u, sess := f.onboard(t)

	if err := f.svc.Logout(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.profiles.Get(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected profile erased, got %v", err)
	}
	if _, err := f.sessions.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected session erased, got %v", err)
	}
	types := f.events.types()
	if types[len(types)-1] != events.ProfileDeleted {
		t.Errorf("expected %s last, got %v", events.ProfileDeleted, types)
	}
}

func TestClinician_SelectPatientAndReport(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u, patientSess := f.onboard(t)

	sess, err := f.svc.StartClinicianSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !sess.MedicalMode || sess.View != string(journey.ViewMedicalHome) {
		t.Fatalf("expected medical home, got %+v", sess)
	}

	if _, err := f.svc.SelectPatient(ctx, sess, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	v, err := f.svc.SelectPatient(ctx, sess, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if v.View != journey.ViewDecisionTalk || !BoundToPatient(sess, u.ID) {
		t.Errorf("expected briefing bound to patient, got %+v", v)
	}

	r, err := f.svc.Report(ctx, sess, false)
	if err != nil {
		t.Fatal(err)
	}
	if r.Empty {
		t.Error("clinicians always get a briefing")
	}
	if r.Chat[0].Content != MedicalChatOpening {
		t.Errorf("expected medical opening, got %q", r.Chat[0].Content)
	}

	if _, err := f.svc.SelectPatient(ctx, patientSess, u.ID); !errors.Is(err, journey.ErrMedicalOnly) {
		t.Errorf("expected patients refused, got %v", err)
	}

	list, total, err := f.svc.ListPatients(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || list[0].ID != u.ID {
		t.Errorf("unexpected list %v (%d)", list, total)
	}
}

func TestSeedDemo(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ids, err := f.svc.SeedDemo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 demo patients, got %d", len(ids))
	}
	first, err := f.profiles.Get(ctx, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if first.Name != "김하늘" || len(first.StatusLogs) != 5 || len(first.History) != 1 || len(first.Preferences) != 3 {
		t.Errorf("unexpected seeded profile %+v", first)
	}
	if first.StatusLogs[0].ID == "" || first.History[0].ID == "" {
		t.Error("expected ids generated for seeded logs and history")
	}
	f.sessions.mu.Lock()
	defer f.sessions.mu.Unlock()
	if n := len(f.sessions.sessions); n != 0 {
		t.Errorf("expected no sessions for demo patients, got %d", n)
	}
}
