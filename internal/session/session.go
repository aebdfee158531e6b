package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/studywise/studywise-go/internal/model"
)

// Backend is the slice of the StudyWise API the session consumes.
// *api.Client satisfies it.
type Backend interface {
	ExamWindow(ctx context.Context, examID string) (*model.ExamWindow, error)
	ExamPaper(ctx context.Context, examID string) (*model.ExamPaper, error)
	SubmitExam(ctx context.Context, req *model.SubmissionRequest) (*model.SubmissionResult, error)
	ReportViolation(ctx context.Context, examID string, v model.Violation) error
}

// Session misuse and lifecycle errors.
var (
	ErrClosed          = errors.New("session is closed")
	ErrNotLoaded       = errors.New("session is not loaded")
	ErrAlreadyLoaded   = errors.New("session is already loaded")
	ErrNotEligible     = errors.New("exam window does not permit entry")
	ErrNotInProgress   = errors.New("session is not in progress")
	ErrSubmitInFlight  = errors.New("a submission is already in flight")
	ErrAlreadyFinished = errors.New("session is already finished")
	ErrQuestionIndex   = errors.New("question index out of range")
	ErrChoiceIndex     = errors.New("choice index out of range")
)

// Hooks are host-supplied callbacks. All are optional and are invoked without
// the session lock held, so they may call back into the session.
type Hooks struct {
	// OnTick fires once per tick with the recomputed remaining seconds.
	OnTick func(remainingSeconds int)
	// OnViolation fires for each observed integrity signal with the running count.
	OnViolation func(v model.Violation, count int)
	// OnAutoSubmit fires when the session initiates a submission itself.
	OnAutoSubmit func(reason AutoSubmitReason)
	// OnResult fires once when a submission succeeds, however it was triggered.
	OnResult func(res *model.SubmissionResult)
	// OnSubmitError fires when a session-initiated submission fails.
	OnSubmitError func(err error)
}

// AutoSubmitReason states why the session submitted without user action.
type AutoSubmitReason string

const (
	AutoSubmitTimeout        AutoSubmitReason = "timeout"
	AutoSubmitViolationLimit AutoSubmitReason = "violation_limit"
)

// Session owns one student's attempt at one exam: the schedule window, the
// question set and captured answers, the countdown, and exactly one
// submission. Construct with New, drive with Load → CheckEligibility → Start,
// and tear down with Close.
type Session struct {
	backend Backend
	log     zerolog.Logger
	examID  string

	now           func() time.Time
	loc           *time.Location
	tickInterval  time.Duration
	submitTimeout time.Duration
	hooks         Hooks
	violationLim  int

	mu        sync.Mutex
	state     State
	loading   bool
	window    *model.ExamWindow
	examStart time.Time
	examEnd   time.Time
	classID   string
	questions []model.Question
	answers   []model.AnswerState
	cursor    int

	startedAt  time.Time
	endedAt    time.Time
	result     *model.SubmissionResult
	violations []model.Violation

	// submitInitiated is the single-flight guard. It is set under mu before
	// the submission request is issued, so a timeout tick and a manual
	// confirm racing at the same instant produce exactly one network call.
	submitInitiated bool

	closed   bool
	done     chan struct{}
	stopOnce sync.Once
}

// Option customizes a Session.
type Option func(*Session)

// WithClock injects the time source. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLocation sets the zone exam window wall-clock times are resolved in.
// Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Session) { s.loc = loc }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log.With().Str("component", "exam_session").Logger() }
}

// WithHooks registers host callbacks.
func WithHooks(h Hooks) Option {
	return func(s *Session) { s.hooks = h }
}

// WithTickInterval overrides the 1s countdown cadence.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithSubmitTimeout bounds session-initiated submission requests.
func WithSubmitTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.submitTimeout = d
		}
	}
}

// WithViolationLimit enables escalation: once n violations are observed the
// session auto-submits through the same single-flight guard as the timeout
// path. n <= 0 keeps violations advisory-only, which is the default.
func WithViolationLimit(n int) Option {
	return func(s *Session) { s.violationLim = n }
}

// New constructs an unloaded session for one exam attempt.
func New(backend Backend, examID string, opts ...Option) *Session {
	s := &Session{
		backend:       backend,
		log:           zerolog.Nop(),
		examID:        examID,
		now:           time.Now,
		loc:           time.Local,
		tickInterval:  time.Second,
		submitTimeout: 15 * time.Second,
		state:         StateUnloaded,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches the exam window and the question paper. On success the session
// is EligibilityPending; on any failure it is LoadFailed and the attempt
// cannot proceed.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.loading || s.state != StateUnloaded {
		s.mu.Unlock()
		return ErrAlreadyLoaded
	}
	// Claimed before the fetches so a second concurrent Load cannot pass the
	// state check and double-fetch.
	s.loading = true
	s.mu.Unlock()

	window, err := s.backend.ExamWindow(ctx, s.examID)
	if err != nil {
		return s.failLoad(fmt.Errorf("fetch exam window: %w", err))
	}

	paper, err := s.backend.ExamPaper(ctx, s.examID)
	if err != nil {
		return s.failLoad(fmt.Errorf("fetch exam paper: %w", err))
	}

	start, end, err := window.Bounds(s.loc)
	if err != nil {
		return s.failLoad(err)
	}
	if err := validatePaper(paper); err != nil {
		return s.failLoad(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if s.closed {
		// Torn down while the fetches were in flight; drop the responses.
		return ErrClosed
	}
	s.window = window
	s.examStart = start
	s.examEnd = end
	s.classID = paper.ClassID
	s.questions = paper.Questions
	s.answers = make([]model.AnswerState, len(paper.Questions))
	s.state = StateEligibilityPending

	s.log.Info().
		Str("exam_id", s.examID).
		Int("questions", len(paper.Questions)).
		Time("window_start", start).
		Time("window_end", end).
		Msg("session loaded")
	return nil
}

func (s *Session) failLoad(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if s.closed {
		return ErrClosed
	}
	s.state = StateLoadFailed
	s.log.Error().Err(err).Str("exam_id", s.examID).Msg("session load failed")
	return err
}

func validatePaper(paper *model.ExamPaper) error {
	if len(paper.Questions) == 0 {
		return errors.New("exam paper has no questions")
	}
	for i, q := range paper.Questions {
		if q.Type != model.QuestionTypeMultipleChoice {
			continue
		}
		if len(q.Choices) < 2 {
			return fmt.Errorf("question %d has %d choices, need at least 2", i, len(q.Choices))
		}
		idx, err := strconv.Atoi(q.CorrectAnswer)
		if err != nil || idx < 0 || idx >= len(q.Choices) {
			return fmt.Errorf("question %d has correct answer %q outside its choices", i, q.CorrectAnswer)
		}
	}
	return nil
}

// CheckEligibility evaluates the exam window at the current instant and moves
// the session to AwaitingWindow, Rejected, or Ready accordingly. It must be
// re-evaluated at the moment the user attempts to start, not only at load;
// Start does so itself.
func (s *Session) CheckEligibility() (Eligibility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkEligibilityLocked()
}

func (s *Session) checkEligibilityLocked() (Eligibility, error) {
	if s.closed {
		return Eligibility{}, ErrClosed
	}
	switch s.state {
	case StateEligibilityPending, StateAwaitingWindow, StateReady:
	case StateUnloaded, StateLoadFailed:
		return Eligibility{}, ErrNotLoaded
	default:
		return Eligibility{}, fmt.Errorf("cannot enter exam in state %s", s.state)
	}

	e := evaluateWindow(s.now(), s.examStart, s.examEnd)
	switch e.Status {
	case EligibilityNotYetOpen:
		s.state = StateAwaitingWindow
	case EligibilityClosed:
		s.state = StateRejected
	case EligibilityOpen:
		s.state = StateReady
	}
	return e, nil
}

// Start begins the attempt. Eligibility is re-checked at call time; entry is
// refused if the window has not opened or has closed. On success the session
// is InProgress, the countdown tick is running, and integrity monitoring is
// armed.
func (s *Session) Start() error {
	s.mu.Lock()

	e, err := s.checkEligibilityLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if e.Status != EligibilityOpen {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotEligible, e.Message)
	}

	s.startedAt = s.now()
	s.state = StateInProgress
	s.cursor = 0
	remaining := s.remainingLocked()
	s.mu.Unlock()

	go s.tickLoop()

	s.log.Info().
		Str("exam_id", s.examID).
		Int("remaining_seconds", remaining).
		Msg("session started")
	return nil
}

// Remaining returns the whole seconds left until the window end, recomputed
// from the wall clock and clamped at zero. It is non-increasing and does not
// depend on how many ticks have fired. Before a successful Load there is no
// window end, so it reports 0; after Load it reports the time to the window
// end in any state.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

func (s *Session) remainingLocked() int {
	if s.examEnd.IsZero() {
		return 0
	}
	d := s.examEnd.Sub(s.now())
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// tickLoop recomputes the countdown on a fixed cadence. Remaining time is
// derived from the absolute deadline each tick, so missed or delayed ticks
// cannot desynchronize the displayed time from the true end instant.
func (s *Session) tickLoop() {
	t := time.NewTicker(s.tickInterval)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			if !s.tick() {
				return
			}
		}
	}
}

// tick performs one countdown step. Returns false once the loop should stop.
func (s *Session) tick() bool {
	s.mu.Lock()
	if s.closed || !s.state.active() {
		s.mu.Unlock()
		return false
	}
	remaining := s.remainingLocked()
	onTick := s.hooks.OnTick
	s.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}

	if remaining == 0 {
		s.autoSubmit(AutoSubmitTimeout)
	}
	return true
}

// SelectAnswer captures a choice for one question, overwriting any earlier
// selection for the same question. Allowed only while InProgress and before a
// submission has been initiated: once the guard is claimed the answer set is
// frozen, otherwise a selection made while the request is in flight would be
// recorded locally but never transmitted.
func (s *Session) SelectAnswer(questionIndex, choiceIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state != StateInProgress {
		return fmt.Errorf("select answer in state %s: %w", s.state, ErrNotInProgress)
	}
	if s.submitInitiated {
		return fmt.Errorf("select answer after submission initiated: %w", ErrSubmitInFlight)
	}
	if questionIndex < 0 || questionIndex >= len(s.questions) {
		return fmt.Errorf("%w: %d", ErrQuestionIndex, questionIndex)
	}
	q := s.questions[questionIndex]
	if choiceIndex < 0 || choiceIndex >= len(q.Choices) {
		return fmt.Errorf("%w: %d for question %d", ErrChoiceIndex, choiceIndex, questionIndex)
	}

	encoded := strconv.Itoa(choiceIndex)
	s.answers[questionIndex] = model.AnswerState{
		UserAnswer: encoded,
		IsAnswered: true,
		IsCorrect:  encoded == q.CorrectAnswer,
	}
	return nil
}

// Next advances the view cursor, clamped at the last question.
func (s *Session) Next() int { return s.Seek(s.Cursor() + 1) }

// Prev moves the view cursor back, clamped at the first question.
func (s *Session) Prev() int { return s.Seek(s.Cursor() - 1) }

// Seek moves the view cursor to index, clamped to [0, len-1]. Pure
// navigation: answers are never touched.
func (s *Session) Seek(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return 0
	}
	if index < 0 {
		index = 0
	}
	if index > len(s.questions)-1 {
		index = len(s.questions) - 1
	}
	s.cursor = index
	return s.cursor
}

// Cursor returns the current view cursor.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// RequestSubmit is the first half of the two-phase submit: it reports how
// many questions are answered so the host can confirm with the user. It
// performs no side effects.
func (s *Session) RequestSubmit() (answered, total int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, 0, ErrClosed
	}
	if !s.state.active() {
		return 0, 0, fmt.Errorf("request submit in state %s: %w", s.state, ErrNotInProgress)
	}
	for _, a := range s.answers {
		if a.IsAnswered {
			answered++
		}
	}
	return answered, len(s.answers), nil
}

// ConfirmSubmit performs the submission. Exactly one submission is produced
// per attempt: a submission already in flight or completed short-circuits. On
// failure the session moves to SubmitFailed, the guard releases, and the
// collected answers survive for retry.
func (s *Session) ConfirmSubmit(ctx context.Context) (*model.SubmissionResult, error) {
	return s.submit(ctx)
}

// autoSubmit is the system-initiated path: timeout, or violation escalation.
// It goes through the same guard as ConfirmSubmit.
func (s *Session) autoSubmit(reason AutoSubmitReason) {
	s.mu.Lock()
	skip := s.closed || !s.state.active() || s.submitInitiated
	onAuto := s.hooks.OnAutoSubmit
	s.mu.Unlock()
	if skip {
		return
	}

	if onAuto != nil {
		onAuto(reason)
	}
	s.log.Warn().Str("exam_id", s.examID).Str("reason", string(reason)).Msg("auto-submitting")

	ctx, cancel := context.WithTimeout(context.Background(), s.submitTimeout)
	defer cancel()
	if _, err := s.submit(ctx); err != nil &&
		!errors.Is(err, ErrSubmitInFlight) && !errors.Is(err, ErrAlreadyFinished) {
		if h := s.hooks.OnSubmitError; h != nil {
			h(err)
		}
	}
}

func (s *Session) submit(ctx context.Context) (*model.SubmissionResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.state == StateFinished {
		res := s.result
		s.mu.Unlock()
		return res, ErrAlreadyFinished
	}
	if !s.state.active() {
		s.mu.Unlock()
		return nil, fmt.Errorf("submit in state %s: %w", s.state, ErrNotInProgress)
	}
	if s.submitInitiated {
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	}

	// Claim the single flight before any network I/O is issued.
	s.submitInitiated = true
	if s.endedAt.IsZero() {
		s.endedAt = s.now()
	}
	req := s.buildSubmissionLocked()
	s.mu.Unlock()

	res, err := s.backend.SubmitExam(ctx, req)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if err != nil {
		// Release the guard so the user or the next timeout tick can retry.
		// The captured answers are untouched.
		s.submitInitiated = false
		s.state = StateSubmitFailed
		s.mu.Unlock()
		s.log.Error().Err(err).Str("exam_id", s.examID).Msg("submission failed")
		return nil, fmt.Errorf("submit exam: %w", err)
	}

	s.result = res
	s.state = StateFinished
	onResult := s.hooks.OnResult
	s.mu.Unlock()

	s.stopTicking()
	s.log.Info().
		Str("exam_id", s.examID).
		Int("marks_obtained", res.TotalMarksObtained).
		Float64("percentage", res.Percentage).
		Msg("submission graded")

	if onResult != nil {
		onResult(res)
	}
	return res, nil
}

func (s *Session) buildSubmissionLocked() *model.SubmissionRequest {
	qs := make([]model.SubmittedQuestion, len(s.questions))
	for i, q := range s.questions {
		a := s.answers[i]
		qs[i] = model.SubmittedQuestion{
			ID:            q.ID,
			UserAnswer:    a.UserAnswer,
			IsAnswered:    a.IsAnswered,
			IsCorrect:     a.IsCorrect,
			CorrectAnswer: q.CorrectAnswer,
			Marks:         q.Marks,
			Prompt:        q.Prompt,
			Type:          q.Type,
		}
	}
	return &model.SubmissionRequest{
		ClassID:     s.classID,
		ExamID:      s.examID,
		Questions:   qs,
		ExamStarted: s.startedAt,
		ExamEnded:   s.endedAt,
	}
}

// Close tears the session down: the tick loop stops and any in-flight load or
// submit response is dropped without mutating state. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stopTicking()
}

func (s *Session) stopTicking() {
	s.stopOnce.Do(func() { close(s.done) })
}

// ─── Read accessors ─────────────────────────────────────────────────────────

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Window returns the exam window, or nil before a successful Load.
func (s *Session) Window() *model.ExamWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// Questions returns a copy of the question sequence.
func (s *Session) Questions() []model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// Answer returns the captured answer state for one question.
func (s *Session) Answer(questionIndex int) (model.AnswerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if questionIndex < 0 || questionIndex >= len(s.answers) {
		return model.AnswerState{}, fmt.Errorf("%w: %d", ErrQuestionIndex, questionIndex)
	}
	return s.answers[questionIndex], nil
}

// Result returns the graded outcome, or nil until the session is Finished.
func (s *Session) Result() *model.SubmissionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// StartedAt returns when the attempt began, zero before Start.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}
