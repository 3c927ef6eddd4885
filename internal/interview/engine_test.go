package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"hirepath/internal/apperr"
	"hirepath/internal/model"
	"hirepath/internal/storage"
)

func TestScheduleRoundOrdering(t *testing.T) {
	t.Parallel()

	st := newStubStore()
	e := newTestEngine(st)
	ctx := context.Background()

	if _, err := e.ScheduleRound(ctx, scheduleReq(2)); !errors.Is(err, apperr.ErrRoundOutOfOrder) {
		t.Fatalf("expected RoundOutOfOrder for first round 2, got %v", err)
	}
	first, err := e.ScheduleRound(ctx, scheduleReq(1))
	if err != nil {
		t.Fatalf("ScheduleRound 1 error: %v", err)
	}
	if first.Status != model.RoundScheduled {
		t.Fatalf("expected SCHEDULED, got %s", first.Status)
	}
	if _, err := e.CloseRound(ctx, CloseRequest{InterviewID: first.ID, Outcome: model.RoundProceedNext, ActorID: "admin"}); err != nil {
		t.Fatalf("CloseRound error: %v", err)
	}

	if _, err := e.ScheduleRound(ctx, scheduleReq(3)); !errors.Is(err, apperr.ErrRoundOutOfOrder) {
		t.Fatalf("expected RoundOutOfOrder for round 3, got %v", err)
	}
	second, err := e.ScheduleRound(ctx, scheduleReq(2))
	if err != nil {
		t.Fatalf("ScheduleRound 2 error: %v", err)
	}
	if second.RoundNumber != 2 {
		t.Fatalf("expected round 2, got %d", second.RoundNumber)
	}
}

func TestScheduleRoundRequiresPermittingOutcome(t *testing.T) {
	t.Parallel()

	cases := []struct {
		outcome model.RoundStatus
		allowed bool
	}{
		{model.RoundScheduled, false},
		{model.RoundRejected, false},
		{model.RoundAcceptedByRecruiter, false},
		{model.RoundProceedNext, true},
		{model.RoundProceedToRecruiter, false},
	}
	for _, tc := range cases {
		st := newStubStore()
		e := newTestEngine(st)
		ctx := context.Background()

		first, err := e.ScheduleRound(ctx, scheduleReq(1))
		if err != nil {
			t.Fatalf("ScheduleRound error: %v", err)
		}
		if tc.outcome != model.RoundScheduled {
			if _, err := e.CloseRound(ctx, CloseRequest{InterviewID: first.ID, Outcome: tc.outcome, ActorID: "admin"}); err != nil {
				t.Fatalf("CloseRound error: %v", err)
			}
		}

		_, err = e.ScheduleRound(ctx, scheduleReq(2))
		if tc.allowed && err != nil {
			t.Fatalf("%s: expected round 2 allowed, got %v", tc.outcome, err)
		}
		if !tc.allowed && !errors.Is(err, apperr.ErrRoundNotPermitted) {
			t.Fatalf("%s: expected RoundNotPermitted, got %v", tc.outcome, err)
		}
	}
}

func TestScheduleRoundValidation(t *testing.T) {
	t.Parallel()

	e := newTestEngine(newStubStore())
	base := scheduleReq(1)

	noInterviewer := base
	noInterviewer.InterviewerName = " "
	noDate := base
	noDate.ScheduledAt = time.Time{}
	noActor := base
	noActor.ActorID = ""

	cases := []struct {
		req  ScheduleRequest
		want error
	}{
		{noInterviewer, apperr.ErrInterviewerRequired},
		{noDate, apperr.ErrScheduleRequired},
		{noActor, apperr.ErrActorRequired},
	}
	for i, tc := range cases {
		if _, err := e.ScheduleRound(context.Background(), tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestScheduleRoundBackstop(t *testing.T) {
	t.Parallel()

	st := newStubStore()
	st.failCreate = storage.ErrDuplicate
	e := newTestEngine(st)

	if _, err := e.ScheduleRound(context.Background(), scheduleReq(1)); !errors.Is(err, apperr.ErrRoundOutOfOrder) {
		t.Fatalf("expected RoundOutOfOrder from unique backstop, got %v", err)
	}
}

func TestRecordAssessmentScoreBounds(t *testing.T) {
	t.Parallel()

	st := newStubStore()
	e := newTestEngine(st)
	ctx := context.Background()
	round, _ := e.ScheduleRound(ctx, scheduleReq(1))

	if _, err := e.RecordAssessment(ctx, AssessmentRequest{InterviewID: round.ID, AssessmentTypeID: 1, Narration: "n", Score: 6}); !errors.Is(err, apperr.ErrScoreOutOfRange) {
		t.Fatalf("expected ScoreOutOfRange for 6, got %v", err)
	}
	if _, err := e.RecordAssessment(ctx, AssessmentRequest{InterviewID: round.ID, AssessmentTypeID: 1, Narration: "n", Score: -1}); !errors.Is(err, apperr.ErrScoreOutOfRange) {
		t.Fatalf("expected ScoreOutOfRange for -1, got %v", err)
	}
	if _, err := e.RecordAssessment(ctx, AssessmentRequest{InterviewID: round.ID, AssessmentTypeID: 1, Narration: "weak", Score: 0}); err != nil {
		t.Fatalf("expected score 0 accepted, got %v", err)
	}
	if _, err := e.RecordAssessment(ctx, AssessmentRequest{InterviewID: round.ID, AssessmentTypeID: 2, Narration: "strong", Score: 5}); err != nil {
		t.Fatalf("expected score 5 accepted, got %v", err)
	}

	list, err := e.Assessments(ctx, round.ID)
	if err != nil {
		t.Fatalf("Assessments error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 assessments, got %d", len(list))
	}
}

func TestRecordAssessmentRules(t *testing.T) {
	t.Parallel()

	st := newStubStore()
	e := newTestEngine(st)
	ctx := context.Background()
	round, _ := e.ScheduleRound(ctx, scheduleReq(1))

	if _, err := e.RecordAssessment(ctx, AssessmentRequest{InterviewID: round.ID, AssessmentTypeID: 1, Narration: "", Score: 3}); !errors.Is(err, apperr.ErrNarrationRequired) {
		t.Fatalf("expected NarrationRequired, got %v", err)
	}
	if _, err := e.RecordAssessment(ctx, AssessmentRequest{InterviewID: round.ID, AssessmentTypeID: 99, Narration: "n", Score: 3}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected NotFound for unknown type, got %v", err)
	}
	if _, err := e.RecordAssessment(ctx, AssessmentRequest{InterviewID: "missing", AssessmentTypeID: 1, Narration: "n", Score: 3}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected NotFound for unknown interview, got %v", err)
	}
	if _, err := e.RecordAssessment(ctx, AssessmentRequest{InterviewID: round.ID, AssessmentTypeID: 1, Narration: "n", Score: 3}); err != nil {
		t.Fatalf("RecordAssessment error: %v", err)
	}
	if _, err := e.RecordAssessment(ctx, AssessmentRequest{InterviewID: round.ID, AssessmentTypeID: 1, Narration: "again", Score: 4}); !errors.Is(err, apperr.ErrDuplicateAssessmentType) {
		t.Fatalf("expected DuplicateAssessmentType, got %v", err)
	}

	if _, err := e.CloseRound(ctx, CloseRequest{InterviewID: round.ID, Outcome: model.RoundProceedNext, ActorID: "admin"}); err != nil {
		t.Fatalf("CloseRound error: %v", err)
	}
	if _, err := e.RecordAssessment(ctx, AssessmentRequest{InterviewID: round.ID, AssessmentTypeID: 2, Narration: "late", Score: 4}); !errors.Is(err, apperr.ErrAlreadyClosed) {
		t.Fatalf("expected AlreadyClosed after closure, got %v", err)
	}
}

func TestCloseRoundTwice(t *testing.T) {
	t.Parallel()

	st := newStubStore()
	e := newTestEngine(st)
	ctx := context.Background()
	round, _ := e.ScheduleRound(ctx, scheduleReq(1))

	if _, err := e.CloseRound(ctx, CloseRequest{InterviewID: round.ID, Outcome: "MAYBE", ActorID: "admin"}); !errors.Is(err, apperr.ErrInvalidOutcome) {
		t.Fatalf("expected InvalidOutcome, got %v", err)
	}
	closed, err := e.CloseRound(ctx, CloseRequest{InterviewID: round.ID, Outcome: model.RoundRejected, ClosingNarration: "not a fit", ActorID: "admin"})
	if err != nil {
		t.Fatalf("CloseRound error: %v", err)
	}
	if closed.Status != model.RoundRejected || closed.ClosingNarration != "not a fit" || closed.ClosedBy != "admin" {
		t.Fatalf("unexpected closed round: %+v", closed)
	}
	if _, err := e.CloseRound(ctx, CloseRequest{InterviewID: round.ID, Outcome: model.RoundProceedNext, ActorID: "admin"}); !errors.Is(err, apperr.ErrAlreadyClosed) {
		t.Fatalf("expected AlreadyClosed, got %v", err)
	}
}

func TestCloseRoundLostRace(t *testing.T) {
	t.Parallel()

	st := newStubStore()
	e := newTestEngine(st)
	ctx := context.Background()
	round, _ := e.ScheduleRound(ctx, scheduleReq(1))
	st.staleClose = true

	if _, err := e.CloseRound(ctx, CloseRequest{InterviewID: round.ID, Outcome: model.RoundProceedNext, ActorID: "admin"}); !errors.Is(err, apperr.ErrAlreadyClosed) {
		t.Fatalf("expected AlreadyClosed when CAS loses, got %v", err)
	}
}

func scheduleReq(round int) ScheduleRequest {
	return ScheduleRequest{
		JobPostingID:    42,
		ApplicantID:     "seeker-1",
		RoundNumber:     round,
		InterviewerName: "Grace",
		ScheduledAt:     time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC),
		ActorID:         "admin",
	}
}

func newTestEngine(st *stubStore) *Engine {
	e := NewEngine(st)
	n := 0
	e.newID = func() string {
		n++
		return fmt.Sprintf("iv-%d", n)
	}
	return e
}

func TestCloseRoundRejectingCarriesApplication(t *testing.T) {
	t.Parallel()

	st := newStubStore()
	e := newTestEngine(st)
	ctx := context.Background()

	round, err := e.ScheduleRound(ctx, scheduleReq(1))
	if err != nil {
		t.Fatalf("ScheduleRound error: %v", err)
	}
	if _, err := e.CloseRoundRejecting(ctx, CloseRequest{InterviewID: round.ID, Outcome: model.RoundProceedNext, ActorID: "lee"}, 9, model.StatusInProgress); !errors.Is(err, apperr.ErrInvalidOutcome) {
		t.Fatalf("expected InvalidOutcome for non-rejecting outcome, got %v", err)
	}

	closed, err := e.CloseRoundRejecting(ctx, CloseRequest{InterviewID: round.ID, Outcome: model.RoundRejected, ClosingNarration: " not a fit ", ActorID: "lee"}, 9, model.StatusInProgress)
	if err != nil {
		t.Fatalf("CloseRoundRejecting error: %v", err)
	}
	if closed.Status != model.RoundRejected {
		t.Fatalf("expected REJECTED, got %s", closed.Status)
	}
	rej := st.lastClosure.Reject
	if rej == nil || rej.Number != 9 || rej.From != model.StatusInProgress {
		t.Fatalf("expected rejection for application 9, got %+v", rej)
	}
	if rej.Event.ActorID != "lee" || rej.Event.Narration != "not a fit" || rej.Event.CreatedAt.IsZero() {
		t.Fatalf("expected event attributed to closer, got %+v", rej.Event)
	}
}

func TestCloseRoundRejectingApplicationChanged(t *testing.T) {
	t.Parallel()

	st := newStubStore()
	st.staleApp = true
	e := newTestEngine(st)
	ctx := context.Background()

	round, err := e.ScheduleRound(ctx, scheduleReq(1))
	if err != nil {
		t.Fatalf("ScheduleRound error: %v", err)
	}
	_, err = e.CloseRoundRejecting(ctx, CloseRequest{InterviewID: round.ID, Outcome: model.RoundRejected, ActorID: "lee"}, 9, model.StatusInProgress)
	if !errors.Is(err, apperr.ErrConcurrentUpdate) {
		t.Fatalf("expected ConcurrentUpdate, got %v", err)
	}
	current, _ := e.Get(ctx, round.ID)
	if current.IsClosed() {
		t.Fatalf("expected round left open, got %s", current.Status)
	}
}

// --- stubs ---

type stubStore struct {
	mu          sync.Mutex
	sessions    map[string]*model.InterviewSession
	assessments []model.Assessment
	types       map[uint]model.AssessmentType
	failCreate  error
	staleClose  bool
	staleApp    bool
	lastClosure storage.InterviewClosure
}

func newStubStore() *stubStore {
	return &stubStore{
		sessions: map[string]*model.InterviewSession{},
		types:    map[uint]model.AssessmentType{1: {ID: 1, Name: "Technical"}, 2: {ID: 2, Name: "Communication"}},
	}
}

func (s *stubStore) LatestRound(ctx context.Context, applicantID string, postingID uint) (*model.InterviewSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.InterviewSession
	for _, sess := range s.sessions {
		if sess.ApplicantID != applicantID || sess.JobPostingID != postingID {
			continue
		}
		if latest == nil || sess.RoundNumber > latest.RoundNumber {
			latest = sess
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *stubStore) ListRounds(ctx context.Context, applicantID string, postingID uint) ([]model.InterviewSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.InterviewSession
	for _, sess := range s.sessions {
		if sess.ApplicantID == applicantID && sess.JobPostingID == postingID {
			out = append(out, *sess)
		}
	}
	return out, nil
}

func (s *stubStore) CreateInterview(ctx context.Context, session *model.InterviewSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *stubStore) GetInterview(ctx context.Context, id string) (*model.InterviewSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *stubStore) CloseInterview(ctx context.Context, id string, c storage.InterviewClosure) (*model.InterviewSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Status != model.RoundScheduled || s.staleClose {
		return nil, storage.ErrStale
	}
	if c.Reject != nil && s.staleApp {
		return nil, storage.ErrStaleApplication
	}
	s.lastClosure = c
	sess.Status = c.Outcome
	sess.ClosingNarration = c.Narration
	sess.ClosedBy = c.ClosedBy
	closedAt := c.ClosedAt
	sess.ClosedAt = &closedAt
	cp := *sess
	return &cp, nil
}

func (s *stubStore) GetAssessmentType(ctx context.Context, id uint) (*model.AssessmentType, error) {
	at, ok := s.types[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &at, nil
}

func (s *stubStore) CreateAssessment(ctx context.Context, a *model.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assessments {
		if existing.InterviewID == a.InterviewID && existing.AssessmentTypeID == a.AssessmentTypeID {
			return storage.ErrDuplicate
		}
	}
	s.assessments = append(s.assessments, *a)
	return nil
}

func (s *stubStore) ListAssessments(ctx context.Context, interviewID string) ([]model.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Assessment
	for _, a := range s.assessments {
		if a.InterviewID == interviewID {
			out = append(out, a)
		}
	}
	return out, nil
}
