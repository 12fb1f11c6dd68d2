package exam

import (
	"encoding/json"
	"time"
)

// Response is one user's answer to one question of an exam attempt.
// Answer always holds the canonical option text, never a raw index.
type Response struct {
	ID            int64    `json:"responseId"`
	ExamID        int64    `json:"examId"`
	UserID        int64    `json:"userId"`
	QuestionID    int64    `json:"questionId"`
	Answer        *string  `json:"answer"`
	MarksObtained *float64 `json:"marksObtained"` // nil until graded
	Submitted     bool     `json:"submitted"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Result is the single grading outcome of an (exam, user) pair. Its existence
// marks the exam as submitted for that user.
type Result struct {
	ID            int64   `json:"resultId"`
	ExamID        int64   `json:"examId"`
	UserID        int64   `json:"userId"`
	TotalMarks    float64 `json:"totalMarks"`
	MarksObtained float64 `json:"marksObtained"`

	SubmittedAt time.Time `json:"submittedAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// ExamSnapshot is the catalog's view of an exam, fetched fresh for every grading pass.
type ExamSnapshot struct {
	ID         int64              `json:"examId"`
	Title      string             `json:"title,omitempty"`
	TotalMarks float64            `json:"totalMarks"`
	Questions  []QuestionSnapshot `json:"questions,omitempty"`
}

// QuestionSnapshot is the catalog's view of a question.
type QuestionSnapshot struct {
	ID            int64    `json:"questionId"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Marks         *float64 `json:"marks"`
	Options       []string `json:"options,omitempty"`
}

// MarksValue treats a missing marks value as zero.
func (q QuestionSnapshot) MarksValue() float64 {
	if q.Marks == nil {
		return 0
	}
	return *q.Marks
}

// Event is an outbox row written in the same transaction as the state change it describes.
type Event struct {
	Offset    int64           `json:"offset"`
	ID        string          `json:"id"`
	Type      string          `json:"type"` // exam.submitted | exam.resubmitted
	Key       string          `json:"key"`  // "<examID>:<userID>"
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"createdAt"`
}

const (
	EventExamSubmitted   = "exam.submitted"
	EventExamResubmitted = "exam.resubmitted"
)
