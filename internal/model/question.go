package model

// QuestionType enumerates assessable item kinds.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
)

// Question is one assessable item within an exam, as delivered by the backend.
// CorrectAnswer is a string-encoded index into Choices; the backend ships it
// alongside the paper and it is echoed back verbatim on submission.
type Question struct {
	ID            string       `json:"id"`
	Prompt        string       `json:"question"`
	Choices       []string     `json:"choices"`
	CorrectAnswer string       `json:"correctAnswer"`
	Marks         int          `json:"marks"`
	Type          QuestionType `json:"type"`
}

// AnswerState is the locally captured answer for one question. It is empty at
// session start and overwritten, never accumulated, on each selection. It is
// a grading hint only; the authoritative score comes from the backend.
type AnswerState struct {
	UserAnswer string `json:"userAnswer"`
	IsAnswered bool   `json:"isAnswered"`
	IsCorrect  bool   `json:"isCorrect"`
}
