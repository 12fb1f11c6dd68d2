package grading

import "github.com/mind-engage/mindengage-grading/internal/exam"

// Outcome is the result of grading one exam attempt.
type Outcome struct {
	Responses     []exam.Response // graded copies, all marked submitted
	MarksObtained float64
	TotalMarks    float64 // capacity, straight from the exam snapshot
	Graded        int     // responses whose question was found in the snapshot
}

// Grade compares every response against the exam's answer key.
//
// A matching answer (exact string equality, no trimming or case folding)
// earns the question's marks, anything else earns 0. A response whose
// question is not part of the snapshot keeps its previous marks, is left out
// of the total, and is still marked submitted. The input slice is not modified.
func Grade(snapshot exam.ExamSnapshot, responses []exam.Response) Outcome {
	byID := make(map[int64]exam.QuestionSnapshot, len(snapshot.Questions))
	for _, q := range snapshot.Questions {
		byID[q.ID] = q
	}

	out := Outcome{
		Responses:  make([]exam.Response, 0, len(responses)),
		TotalMarks: snapshot.TotalMarks,
	}
	for _, r := range responses {
		if q, ok := byID[r.QuestionID]; ok {
			marks := ScoreResponse(q, r.Answer)
			r.MarksObtained = &marks
			out.MarksObtained += marks
			out.Graded++
		}
		r.Submitted = true
		out.Responses = append(out.Responses, r)
	}
	return out
}

// ScoreResponse is the per-question rule used by Grade.
func ScoreResponse(q exam.QuestionSnapshot, answer *string) float64 {
	if answer == nil || *answer != q.CorrectAnswer {
		return 0
	}
	return q.MarksValue()
}

// Reconcile is the cheap re-grade pass: it trusts the marks already stored on
// each response, sums them (unset marks count as 0) and marks every response
// submitted. TotalMarks is refreshed from the snapshot.
func Reconcile(snapshot exam.ExamSnapshot, responses []exam.Response) Outcome {
	out := Outcome{
		Responses:  make([]exam.Response, 0, len(responses)),
		TotalMarks: snapshot.TotalMarks,
	}
	for _, r := range responses {
		if r.MarksObtained != nil {
			out.MarksObtained += *r.MarksObtained
			out.Graded++
		}
		r.Submitted = true
		out.Responses = append(out.Responses, r)
	}
	return out
}
