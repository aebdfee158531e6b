package model

import "time"

// SubmittedQuestion is one question with its captured answer as sent to the
// grading endpoint. Field names follow the backend contract.
type SubmittedQuestion struct {
	ID            string       `json:"id"`
	UserAnswer    string       `json:"userAnswer"`
	IsAnswered    bool         `json:"isAnswered"`
	IsCorrect     bool         `json:"isCorrect"`
	CorrectAnswer string       `json:"correctAnswer"`
	Marks         int          `json:"marks"`
	Prompt        string       `json:"question"`
	Type          QuestionType `json:"type"`
}

// SubmissionRequest is the body posted to the grading endpoint. One is
// produced per exam attempt, whether user-initiated or timeout-driven.
type SubmissionRequest struct {
	ClassID     string              `json:"class_id"`
	ExamID      string              `json:"exam_id"`
	Questions   []SubmittedQuestion `json:"questions"`
	ExamStarted time.Time           `json:"exam_started"`
	ExamEnded   time.Time           `json:"exam_ended"`
}

// SubmissionResult is the graded outcome returned by the backend. Percentage
// is reported verbatim, never recomputed client-side.
type SubmissionResult struct {
	TotalMarksObtained int     `json:"total_marks_obtained"`
	TotalPossibleMarks int     `json:"total_possible_marks"`
	Percentage         float64 `json:"percentage"`
}

// ViolationKind classifies an observed exam-integrity signal.
type ViolationKind string

const (
	ViolationVisibilityLoss ViolationKind = "VISIBILITY_LOSS"
	ViolationNavigation     ViolationKind = "NAVIGATION"
	ViolationRefresh        ViolationKind = "REFRESH"
)

// Violation is one advisory integrity event observed during an attempt.
type Violation struct {
	Kind       ViolationKind `json:"kind"`
	OccurredAt time.Time     `json:"occurred_at"`
	Detail     string        `json:"detail,omitempty"`
}
