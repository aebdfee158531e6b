package devserver

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/studywise/studywise-go/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// Store is the in-memory state behind the devserver. It exists so the client
// can be developed and tested with no external infrastructure; it is not a
// production store.
type Store struct {
	mu       sync.RWMutex
	students map[string]*StudentRecord // keyed by email
	exams    map[string]*ExamRecord    // keyed by exam id
	attempts map[string]*AttemptRecord // keyed by exam id + "/" + student id
}

// StudentRecord is a seeded student with a bcrypt credential.
type StudentRecord struct {
	model.Student
	PasswordHash []byte
}

// ExamRecord is a seeded exam: its window and full paper (answers included).
type ExamRecord struct {
	Window    model.ExamWindow
	ClassID   string
	Questions []model.Question
}

// AttemptRecord tracks one student's submission and violation log for an exam.
type AttemptRecord struct {
	ExamID      string
	StudentID   string
	SubmittedAt time.Time
	Result      model.SubmissionResult
	Violations  []model.Violation
}

// Store errors.
var (
	ErrStudentNotFound = errors.New("student not found")
	ErrExamNotFound    = errors.New("exam not found")
	ErrAlreadyGraded   = errors.New("attempt already graded")
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		students: make(map[string]*StudentRecord),
		exams:    make(map[string]*ExamRecord),
		attempts: make(map[string]*AttemptRecord),
	}
}

// SeedStudent registers a student with the given plaintext password.
func (st *Store) SeedStudent(s model.Student, password string, bcryptCost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.students[s.Email] = &StudentRecord{Student: s, PasswordHash: hash}
	return nil
}

// SeedExam registers an exam. The window's exam id wins if the record's is empty.
func (st *Store) SeedExam(rec ExamRecord) string {
	if rec.Window.ExamID == "" {
		rec.Window.ExamID = uuid.New().String()
	}
	rec.Window.TotalQuestions = len(rec.Questions)
	total := 0
	for _, q := range rec.Questions {
		total += q.Marks
	}
	rec.Window.TotalMarks = total

	st.mu.Lock()
	defer st.mu.Unlock()
	st.exams[rec.Window.ExamID] = &rec
	return rec.Window.ExamID
}

// StudentByEmail looks a student up for login.
func (st *Store) StudentByEmail(email string) (*StudentRecord, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.students[email]
	if !ok {
		return nil, ErrStudentNotFound
	}
	return s, nil
}

// Exam returns a seeded exam.
func (st *Store) Exam(examID string) (*ExamRecord, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	e, ok := st.exams[examID]
	if !ok {
		return nil, ErrExamNotFound
	}
	return e, nil
}

// RecordResult stores a graded attempt. A second submission for the same
// student and exam fails with ErrAlreadyGraded.
func (st *Store) RecordResult(examID, studentID string, submittedAt time.Time, res model.SubmissionResult) error {
	key := examID + "/" + studentID
	st.mu.Lock()
	defer st.mu.Unlock()
	if a, ok := st.attempts[key]; ok && !a.SubmittedAt.IsZero() {
		return ErrAlreadyGraded
	}
	a := st.attemptLocked(key, examID, studentID)
	a.SubmittedAt = submittedAt
	a.Result = res
	return nil
}

// RecordViolation appends one advisory integrity event to the attempt log.
func (st *Store) RecordViolation(examID, studentID string, v model.Violation) {
	key := examID + "/" + studentID
	st.mu.Lock()
	defer st.mu.Unlock()
	a := st.attemptLocked(key, examID, studentID)
	a.Violations = append(a.Violations, v)
}

// Attempt returns the attempt record, or nil if none exists yet.
func (st *Store) Attempt(examID, studentID string) *AttemptRecord {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.attempts[examID+"/"+studentID]
}

func (st *Store) attemptLocked(key, examID, studentID string) *AttemptRecord {
	a, ok := st.attempts[key]
	if !ok {
		a = &AttemptRecord{ExamID: examID, StudentID: studentID}
		st.attempts[key] = a
	}
	return a
}
