package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/studywise/studywise-go/internal/model"
)

// fakeBackend records every call so tests can assert on exactly what was sent.
type fakeBackend struct {
	mu sync.Mutex

	window    *model.ExamWindow
	paper     *model.ExamPaper
	windowErr error
	paperErr  error
	// windowGate and windowStarted mirror the submit pair below, for tests
	// that need a Load held mid-fetch.
	windowGate    chan struct{}
	windowStarted chan struct{}
	windowCalls   int

	result    model.SubmissionResult
	submitErr error
	// submitGate, when set, blocks SubmitExam until the gate closes.
	// submitStarted, when set, receives one value as SubmitExam is entered.
	submitGate    chan struct{}
	submitStarted chan struct{}

	submissions []*model.SubmissionRequest
	violations  []model.Violation
}

func (f *fakeBackend) ExamWindow(ctx context.Context, examID string) (*model.ExamWindow, error) {
	if f.windowStarted != nil {
		f.windowStarted <- struct{}{}
	}
	if f.windowGate != nil {
		<-f.windowGate
	}
	f.mu.Lock()
	f.windowCalls++
	f.mu.Unlock()
	if f.windowErr != nil {
		return nil, f.windowErr
	}
	w := *f.window
	return &w, nil
}

func (f *fakeBackend) ExamPaper(ctx context.Context, examID string) (*model.ExamPaper, error) {
	if f.paperErr != nil {
		return nil, f.paperErr
	}
	p := *f.paper
	return &p, nil
}

func (f *fakeBackend) SubmitExam(ctx context.Context, req *model.SubmissionRequest) (*model.SubmissionResult, error) {
	if f.submitStarted != nil {
		f.submitStarted <- struct{}{}
	}
	if f.submitGate != nil {
		<-f.submitGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submissions = append(f.submissions, req)
	res := f.result
	return &res, nil
}

func (f *fakeBackend) ReportViolation(ctx context.Context, examID string, v model.Violation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.violations = append(f.violations, v)
	return nil
}

func (f *fakeBackend) submissionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions)
}

func (f *fakeBackend) windowCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windowCalls
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// at builds an instant on the fixture's exam day, UTC.
func at(t *testing.T, hhmm string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, "2026-03-02T"+hhmm+":00Z")
	if err != nil {
		t.Fatalf("bad fixture time %q: %v", hhmm, err)
	}
	return ts
}

func newFixtureBackend() *fakeBackend {
	return &fakeBackend{
		window: &model.ExamWindow{
			ExamID:         "exam-1",
			Date:           "2026-03-02",
			StartTime:      "09:00",
			EndTime:        "10:00",
			TotalMarks:     10,
			TotalQuestions: 3,
		},
		paper: &model.ExamPaper{
			ClassID: "class-10a",
			Questions: []model.Question{
				{ID: "q1", Prompt: "Q1", Choices: []string{"a", "b", "c"}, CorrectAnswer: "1", Marks: 3, Type: model.QuestionTypeMultipleChoice},
				{ID: "q2", Prompt: "Q2", Choices: []string{"a", "b"}, CorrectAnswer: "0", Marks: 3, Type: model.QuestionTypeMultipleChoice},
				{ID: "q3", Prompt: "Q3", Choices: []string{"a", "b", "c", "d"}, CorrectAnswer: "3", Marks: 4, Type: model.QuestionTypeMultipleChoice},
			},
		},
		result: model.SubmissionResult{TotalMarksObtained: 8, TotalPossibleMarks: 10, Percentage: 80},
	}
}

func newLoadedSession(t *testing.T, backend *fakeBackend, clock *fakeClock, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithClock(clock.Now), WithLocation(time.UTC)}, opts...)
	s := New(backend, "exam-1", opts...)
	t.Cleanup(s.Close)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func startSession(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestCheckEligibility(t *testing.T) {
	tests := []struct {
		name      string
		now       string
		status    EligibilityStatus
		wantState State
	}{
		{"well before open", "08:00", EligibilityNotYetOpen, StateAwaitingWindow},
		{"minute before open", "08:59", EligibilityNotYetOpen, StateAwaitingWindow},
		{"at open", "09:00", EligibilityOpen, StateReady},
		{"mid window", "09:30", EligibilityOpen, StateReady},
		{"at close", "10:00", EligibilityOpen, StateReady},
		{"after close", "10:01", EligibilityClosed, StateRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{t: at(t, tt.now)}
			s := newLoadedSession(t, newFixtureBackend(), clock)

			e, err := s.CheckEligibility()
			if err != nil {
				t.Fatalf("CheckEligibility: %v", err)
			}
			if e.Status != tt.status {
				t.Errorf("status = %s, want %s", e.Status, tt.status)
			}
			if got := s.State(); got != tt.wantState {
				t.Errorf("state = %s, want %s", got, tt.wantState)
			}
			if e.Message == "" {
				t.Error("message is empty")
			}
		})
	}
}

func TestEligibilityMessageNamesOpening(t *testing.T) {
	clock := &fakeClock{t: at(t, "08:59")}
	s := newLoadedSession(t, newFixtureBackend(), clock)

	e, err := s.CheckEligibility()
	if err != nil {
		t.Fatalf("CheckEligibility: %v", err)
	}
	want := "This exam becomes available at 09:00 on 2 March 2026."
	if e.Message != want {
		t.Errorf("message = %q, want %q", e.Message, want)
	}
}

func TestStartRechecksEligibility(t *testing.T) {
	t.Run("waits then opens", func(t *testing.T) {
		clock := &fakeClock{t: at(t, "08:59")}
		s := newLoadedSession(t, newFixtureBackend(), clock)

		if err := s.Start(); !errors.Is(err, ErrNotEligible) {
			t.Fatalf("Start before window: err = %v, want ErrNotEligible", err)
		}

		clock.Set(at(t, "09:30"))
		startSession(t, s)
		if got := s.State(); got != StateInProgress {
			t.Errorf("state = %s, want %s", got, StateInProgress)
		}
	})

	t.Run("ready then window closes", func(t *testing.T) {
		clock := &fakeClock{t: at(t, "09:30")}
		s := newLoadedSession(t, newFixtureBackend(), clock)

		if _, err := s.CheckEligibility(); err != nil {
			t.Fatalf("CheckEligibility: %v", err)
		}

		// Load and start are separated in time; the window closed in between.
		clock.Set(at(t, "10:01"))
		if err := s.Start(); !errors.Is(err, ErrNotEligible) {
			t.Fatalf("Start after close: err = %v, want ErrNotEligible", err)
		}
		if got := s.State(); got != StateRejected {
			t.Errorf("state = %s, want %s", got, StateRejected)
		}
		if s.Remaining() != 0 {
			t.Errorf("Remaining = %d after rejection, want 0", s.Remaining())
		}
	})
}

func TestRemainingDerivedFromDeadline(t *testing.T) {
	clock := &fakeClock{t: at(t, "09:30")}
	s := newLoadedSession(t, newFixtureBackend(), clock, WithTickInterval(time.Hour))
	startSession(t, s)

	if got := s.Remaining(); got != 1800 {
		t.Fatalf("Remaining at start = %d, want 1800", got)
	}

	// Non-increasing under arbitrary jumps, as after a suspended tab.
	prev := s.Remaining()
	for _, step := range []time.Duration{time.Second, 17 * time.Second, 5 * time.Minute, 24 * time.Minute} {
		clock.Advance(step)
		got := s.Remaining()
		if got > prev {
			t.Fatalf("Remaining increased: %d -> %d", prev, got)
		}
		prev = got
	}

	clock.Set(at(t, "10:00"))
	if got := s.Remaining(); got != 0 {
		t.Errorf("Remaining at close = %d, want exactly 0", got)
	}
	clock.Advance(90 * time.Minute)
	if got := s.Remaining(); got != 0 {
		t.Errorf("Remaining past close = %d, want clamp to 0", got)
	}
}

func TestSelectAnswerOverwrites(t *testing.T) {
	clock := &fakeClock{t: at(t, "09:30")}
	s := newLoadedSession(t, newFixtureBackend(), clock, WithTickInterval(time.Hour))
	startSession(t, s)

	if err := s.SelectAnswer(0, 2); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if err := s.SelectAnswer(0, 1); err != nil {
		t.Fatalf("SelectAnswer again: %v", err)
	}

	a, err := s.Answer(0)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if a.UserAnswer != "1" {
		t.Errorf("UserAnswer = %q, want %q (replaced, not appended)", a.UserAnswer, "1")
	}
	if !a.IsAnswered || !a.IsCorrect {
		t.Errorf("answer = %+v, want answered and correct", a)
	}

	// Reselecting the same choice is idempotent.
	if err := s.SelectAnswer(0, 1); err != nil {
		t.Fatalf("idempotent reselect: %v", err)
	}
	again, _ := s.Answer(0)
	if again != a {
		t.Errorf("reselect changed state: %+v vs %+v", again, a)
	}
}

func TestSelectAnswerBounds(t *testing.T) {
	clock := &fakeClock{t: at(t, "09:30")}
	s := newLoadedSession(t, newFixtureBackend(), clock, WithTickInterval(time.Hour))
	startSession(t, s)

	if err := s.SelectAnswer(7, 0); !errors.Is(err, ErrQuestionIndex) {
		t.Errorf("question out of range: err = %v, want ErrQuestionIndex", err)
	}
	if err := s.SelectAnswer(0, 9); !errors.Is(err, ErrChoiceIndex) {
		t.Errorf("choice out of range: err = %v, want ErrChoiceIndex", err)
	}
}

func TestSelectAnswerRejectedOutsideInProgress(t *testing.T) {
	clock := &fakeClock{t: at(t, "09:30")}
	s := newLoadedSession(t, newFixtureBackend(), clock, WithTickInterval(time.Hour))

	if err := s.SelectAnswer(0, 0); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("before start: err = %v, want ErrNotInProgress", err)
	}

	startSession(t, s)
	if _, err := s.ConfirmSubmit(context.Background()); err != nil {
		t.Fatalf("ConfirmSubmit: %v", err)
	}
	if err := s.SelectAnswer(0, 0); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("after finish: err = %v, want ErrNotInProgress", err)
	}
}

func TestNavigationClamps(t *testing.T) {
	clock := &fakeClock{t: at(t, "09:30")}
	s := newLoadedSession(t, newFixtureBackend(), clock, WithTickInterval(time.Hour))
	startSession(t, s)

	if got := s.Seek(-5); got != 0 {
		t.Errorf("Seek(-5) = %d, want 0", got)
	}
	if got := s.Seek(99); got != 2 {
		t.Errorf("Seek(99) = %d, want 2", got)
	}
	if got := s.Next(); got != 2 {
		t.Errorf("Next at end = %d, want 2 (no wraparound)", got)
	}
	s.Seek(0)
	if got := s.Prev(); got != 0 {
		t.Errorf("Prev at start = %d, want 0", got)
	}
}

func TestSingleFlightGuard(t *testing.T) {
	backend := newFixtureBackend()
	gate := make(chan struct{})
	backend.submitGate = gate
	backend.submitStarted = make(chan struct{}, 1)

	clock := &fakeClock{t: at(t, "09:30")}
	s := newLoadedSession(t, backend, clock, WithTickInterval(time.Hour))
	startSession(t, s)

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.ConfirmSubmit(context.Background())
		firstDone <- err
	}()
	<-backend.submitStarted

	// The guard is claimed before the request is issued, so the racing call
	// must short-circuit while the first is still in flight.
	if _, err := s.ConfirmSubmit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("second ConfirmSubmit: err = %v, want ErrSubmitInFlight", err)
	}

	close(gate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first ConfirmSubmit: %v", err)
	}

	// Completed attempts short-circuit too.
	res, err := s.ConfirmSubmit(context.Background())
	if !errors.Is(err, ErrAlreadyFinished) {
		t.Fatalf("after finish: err = %v, want ErrAlreadyFinished", err)
	}
	if res == nil || res.Percentage != 80 {
		t.Errorf("finished result = %+v, want the graded result", res)
	}

	if n := backend.submissionCount(); n != 1 {
		t.Fatalf("network submissions = %d, want exactly 1", n)
	}
}

func TestSelectAnswerFrozenOnceSubmitInitiated(t *testing.T) {
	backend := newFixtureBackend()
	gate := make(chan struct{})
	backend.submitGate = gate
	backend.submitStarted = make(chan struct{}, 1)

	clock := &fakeClock{t: at(t, "09:30")}
	s := newLoadedSession(t, backend, clock, WithTickInterval(time.Hour))
	startSession(t, s)

	if err := s.SelectAnswer(0, 1); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.ConfirmSubmit(context.Background())
		done <- err
	}()
	<-backend.submitStarted

	// The payload was built when the guard was claimed. A selection accepted
	// now would be recorded locally but never transmitted, so it must be
	// rejected instead.
	if err := s.SelectAnswer(1, 0); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("SelectAnswer during in-flight submit: err = %v, want ErrSubmitInFlight", err)
	}
	if a, err := s.Answer(1); err != nil || a.IsAnswered {
		t.Fatalf("answer 1 after rejected selection = %+v, %v; want unanswered", a, err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("ConfirmSubmit: %v", err)
	}

	backend.mu.Lock()
	sent := backend.submissions[0]
	backend.mu.Unlock()
	if sent.Questions[1].IsAnswered {
		t.Error("transmitted question 1 marked answered, late selection leaked into the payload")
	}
}

func TestConcurrentLoadFetchesOnce(t *testing.T) {
	backend := newFixtureBackend()
	gate := make(chan struct{})
	backend.windowGate = gate
	backend.windowStarted = make(chan struct{}, 1)

	clock := &fakeClock{t: at(t, "09:30")}
	s := New(backend, "exam-1", WithClock(clock.Now), WithLocation(time.UTC))
	t.Cleanup(s.Close)

	done := make(chan error, 1)
	go func() {
		done <- s.Load(context.Background())
	}()
	<-backend.windowStarted

	if err := s.Load(context.Background()); !errors.Is(err, ErrAlreadyLoaded) {
		t.Fatalf("Load while another Load is in flight: err = %v, want ErrAlreadyLoaded", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first Load: %v", err)
	}
	if s.State() != StateEligibilityPending {
		t.Fatalf("state after load = %s, want %s", s.State(), StateEligibilityPending)
	}
	if n := backend.windowCallCount(); n != 1 {
		t.Fatalf("window fetches = %d, want exactly 1", n)
	}
}

func TestTimeoutAutoSubmitsOnce(t *testing.T) {
	backend := newFixtureBackend()
	clock := &fakeClock{t: at(t, "09:30")}

	var autoReason AutoSubmitReason
	s := newLoadedSession(t, backend, clock,
		WithTickInterval(time.Hour), // ticks driven manually below
		WithHooks(Hooks{OnAutoSubmit: func(r AutoSubmitReason) { autoReason = r }}),
	)
	startSession(t, s)

	if err := s.SelectAnswer(0, 1); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}

	clock.Set(at(t, "10:00").Add(time.Second))
	if cont := s.tick(); cont != true {
		t.Fatal("tick on expiry should still report continue before finishing")
	}

	if got := s.State(); got != StateFinished {
		t.Fatalf("state after timeout = %s, want %s", got, StateFinished)
	}
	if autoReason != AutoSubmitTimeout {
		t.Errorf("auto-submit reason = %q, want %q", autoReason, AutoSubmitTimeout)
	}
	if n := backend.submissionCount(); n != 1 {
		t.Fatalf("submissions = %d, want 1", n)
	}

	// Further ticks terminate the loop without resubmitting.
	if s.tick() {
		t.Error("tick after finish should stop the loop")
	}
	if n := backend.submissionCount(); n != 1 {
		t.Errorf("submissions after extra tick = %d, want still 1", n)
	}

	// The auto-submitted payload carries exactly the one captured answer.
	backend.mu.Lock()
	req := backend.submissions[0]
	backend.mu.Unlock()
	if !req.Questions[0].IsAnswered || req.Questions[1].IsAnswered || req.Questions[2].IsAnswered {
		t.Errorf("answered flags = %v %v %v, want true false false",
			req.Questions[0].IsAnswered, req.Questions[1].IsAnswered, req.Questions[2].IsAnswered)
	}
}

func TestSubmitFailureIsRetryable(t *testing.T) {
	backend := newFixtureBackend()
	backend.submitErr = errors.New("gateway exploded")

	clock := &fakeClock{t: at(t, "09:30")}
	s := newLoadedSession(t, backend, clock, WithTickInterval(time.Hour))
	startSession(t, s)

	if err := s.SelectAnswer(1, 0); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}

	if _, err := s.ConfirmSubmit(context.Background()); err == nil {
		t.Fatal("ConfirmSubmit should surface the backend failure")
	}
	if got := s.State(); got != StateSubmitFailed {
		t.Fatalf("state = %s, want %s", got, StateSubmitFailed)
	}
	if s.Result() != nil {
		t.Error("a failed submission must not fabricate a result")
	}

	// The user's work product survives the failure.
	a, _ := s.Answer(1)
	if !a.IsAnswered || a.UserAnswer != "0" {
		t.Fatalf("answer lost across failed submit: %+v", a)
	}

	backend.mu.Lock()
	backend.submitErr = nil
	backend.mu.Unlock()

	res, err := s.ConfirmSubmit(context.Background())
	if err != nil {
		t.Fatalf("retry ConfirmSubmit: %v", err)
	}
	if res.TotalMarksObtained != 8 || res.TotalPossibleMarks != 10 || res.Percentage != 80 {
		t.Errorf("result = %+v, want backend totals verbatim", res)
	}
	if got := s.State(); got != StateFinished {
		t.Errorf("state = %s, want %s", got, StateFinished)
	}
}

func TestSubmissionPayload(t *testing.T) {
	backend := newFixtureBackend()
	clock := &fakeClock{t: at(t, "09:30")}
	s := newLoadedSession(t, backend, clock, WithTickInterval(time.Hour))
	startSession(t, s)

	if err := s.SelectAnswer(0, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.SelectAnswer(2, 0); err != nil {
		t.Fatal(err)
	}

	clock.Set(at(t, "09:45"))
	if _, err := s.ConfirmSubmit(context.Background()); err != nil {
		t.Fatalf("ConfirmSubmit: %v", err)
	}

	backend.mu.Lock()
	req := backend.submissions[0]
	backend.mu.Unlock()

	if req.ExamID != "exam-1" || req.ClassID != "class-10a" {
		t.Errorf("ids = %s/%s, want exam-1/class-10a", req.ExamID, req.ClassID)
	}
	if !req.ExamStarted.Equal(at(t, "09:30")) {
		t.Errorf("exam_started = %v, want 09:30", req.ExamStarted)
	}
	if !req.ExamEnded.Equal(at(t, "09:45")) {
		t.Errorf("exam_ended = %v, want 09:45", req.ExamEnded)
	}
	if len(req.Questions) != 3 {
		t.Fatalf("questions = %d, want all 3 regardless of answered count", len(req.Questions))
	}

	wantAnswered := []bool{true, false, true}
	for i, q := range req.Questions {
		if q.IsAnswered != wantAnswered[i] {
			t.Errorf("question %d IsAnswered = %v, want %v", i, q.IsAnswered, wantAnswered[i])
		}
	}
	if req.Questions[0].UserAnswer != "1" || !req.Questions[0].IsCorrect {
		t.Errorf("question 0 = %+v, want answer 1 marked correct", req.Questions[0])
	}
	if req.Questions[2].UserAnswer != "0" || req.Questions[2].IsCorrect {
		t.Errorf("question 2 = %+v, want answer 0 marked incorrect", req.Questions[2])
	}
	if req.Questions[1].CorrectAnswer != "0" {
		t.Errorf("correct answer not echoed: %+v", req.Questions[1])
	}
}

func TestLoadFailures(t *testing.T) {
	t.Run("window fetch fails", func(t *testing.T) {
		backend := newFixtureBackend()
		backend.windowErr = errors.New("boom")
		s := New(backend, "exam-1", WithClock((&fakeClock{t: at(t, "09:30")}).Now), WithLocation(time.UTC))
		defer s.Close()
		if err := s.Load(context.Background()); err == nil {
			t.Fatal("Load should fail")
		}
		if got := s.State(); got != StateLoadFailed {
			t.Errorf("state = %s, want %s", got, StateLoadFailed)
		}
		if _, err := s.CheckEligibility(); err == nil {
			t.Error("session must not proceed past LoadFailed")
		}
	})

	t.Run("inverted window", func(t *testing.T) {
		backend := newFixtureBackend()
		backend.window.StartTime = "11:00" // after the 10:00 end
		s := New(backend, "exam-1", WithClock((&fakeClock{t: at(t, "09:30")}).Now), WithLocation(time.UTC))
		defer s.Close()
		if err := s.Load(context.Background()); !errors.Is(err, model.ErrInvalidWindow) {
			t.Fatalf("err = %v, want ErrInvalidWindow", err)
		}
		if got := s.State(); got != StateLoadFailed {
			t.Errorf("state = %s, want %s", got, StateLoadFailed)
		}
	})

	t.Run("correct answer outside choices", func(t *testing.T) {
		backend := newFixtureBackend()
		backend.paper.Questions[1].CorrectAnswer = "9"
		s := New(backend, "exam-1", WithClock((&fakeClock{t: at(t, "09:30")}).Now), WithLocation(time.UTC))
		defer s.Close()
		if err := s.Load(context.Background()); err == nil {
			t.Fatal("Load should reject a malformed paper")
		}
	})

	t.Run("double load", func(t *testing.T) {
		clock := &fakeClock{t: at(t, "09:30")}
		s := newLoadedSession(t, newFixtureBackend(), clock)
		if err := s.Load(context.Background()); !errors.Is(err, ErrAlreadyLoaded) {
			t.Errorf("err = %v, want ErrAlreadyLoaded", err)
		}
	})
}

func TestCloseDropsLateResponses(t *testing.T) {
	backend := newFixtureBackend()
	gate := make(chan struct{})
	backend.submitGate = gate
	backend.submitStarted = make(chan struct{}, 1)

	clock := &fakeClock{t: at(t, "09:30")}
	s := newLoadedSession(t, backend, clock, WithTickInterval(time.Hour))
	startSession(t, s)

	done := make(chan error, 1)
	go func() {
		_, err := s.ConfirmSubmit(context.Background())
		done <- err
	}()

	<-backend.submitStarted // the request is in flight; the guard is claimed
	s.Close()
	close(gate)

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("late submit response: err = %v, want ErrClosed", err)
	}
	if s.Result() != nil {
		t.Error("late response mutated a disposed session")
	}
}
