package grading

import (
	"testing"

	"github.com/mind-engage/mindengage-grading/internal/exam"
)

func strp(s string) *string { return &s }
func fltp(f float64) *float64 { return &f }

func snapshot() exam.ExamSnapshot {
	return exam.ExamSnapshot{
		ID:         7,
		TotalMarks: 10,
		Questions: []exam.QuestionSnapshot{
			{ID: 1, CorrectAnswer: "Paris", Marks: fltp(4), Options: []string{"Berlin", "Paris"}},
			{ID: 2, CorrectAnswer: "42", Marks: fltp(6)},
		},
	}
}

func TestGradeScoresExactMatches(t *testing.T) {
	rs := []exam.Response{
		{ID: 1, ExamID: 7, UserID: 3, QuestionID: 1, Answer: strp("Paris")},
		{ID: 2, ExamID: 7, UserID: 3, QuestionID: 2, Answer: strp("41")},
	}
	out := Grade(snapshot(), rs)

	if out.MarksObtained != 4 {
		t.Fatalf("marks = %v, want 4", out.MarksObtained)
	}
	if out.TotalMarks != 10 {
		t.Fatalf("total = %v, want 10", out.TotalMarks)
	}
	if out.Graded != 2 {
		t.Fatalf("graded = %d, want 2", out.Graded)
	}
	if got := *out.Responses[0].MarksObtained; got != 4 {
		t.Fatalf("q1 marks = %v", got)
	}
	if got := *out.Responses[1].MarksObtained; got != 0 {
		t.Fatalf("q2 marks = %v", got)
	}
	for _, r := range out.Responses {
		if !r.Submitted {
			t.Fatalf("response %d not submitted", r.ID)
		}
	}
	if rs[0].Submitted || rs[0].MarksObtained != nil {
		t.Fatalf("input slice modified: %+v", rs[0])
	}
}

func TestGradeIsCaseAndSpaceSensitive(t *testing.T) {
	for _, a := range []string{"paris", "Paris ", " Paris"} {
		out := Grade(snapshot(), []exam.Response{{QuestionID: 1, Answer: strp(a)}})
		if out.MarksObtained != 0 {
			t.Fatalf("answer %q scored %v", a, out.MarksObtained)
		}
	}
}

func TestGradeNilAnswerScoresZero(t *testing.T) {
	out := Grade(snapshot(), []exam.Response{{QuestionID: 2}})
	if out.MarksObtained != 0 || out.Responses[0].MarksObtained == nil || *out.Responses[0].MarksObtained != 0 {
		t.Fatalf("nil answer: %+v", out)
	}
}

func TestGradeUnknownQuestionKeepsMarks(t *testing.T) {
	rs := []exam.Response{
		{ID: 9, QuestionID: 99, Answer: strp("x"), MarksObtained: fltp(3)},
		{ID: 10, QuestionID: 98, Answer: strp("y")},
	}
	out := Grade(snapshot(), rs)
	if out.MarksObtained != 0 || out.Graded != 0 {
		t.Fatalf("unknown questions counted: %+v", out)
	}
	if got := out.Responses[0].MarksObtained; got == nil || *got != 3 {
		t.Fatalf("marks changed: %v", got)
	}
	if out.Responses[1].MarksObtained != nil {
		t.Fatalf("unset marks were set")
	}
	if !out.Responses[0].Submitted || !out.Responses[1].Submitted {
		t.Fatalf("unknown-question responses must still be submitted")
	}
}

func TestGradeUnsetQuestionMarksCountAsZero(t *testing.T) {
	snap := exam.ExamSnapshot{TotalMarks: 5, Questions: []exam.QuestionSnapshot{{ID: 1, CorrectAnswer: "a"}}}
	out := Grade(snap, []exam.Response{{QuestionID: 1, Answer: strp("a")}})
	if out.MarksObtained != 0 {
		t.Fatalf("marks = %v, want 0", out.MarksObtained)
	}
}

func TestGradeTotalComesFromSnapshot(t *testing.T) {
	snap := snapshot()
	snap.TotalMarks = 100
	out := Grade(snap, []exam.Response{{QuestionID: 1, Answer: strp("Paris")}})
	if out.TotalMarks != 100 {
		t.Fatalf("total = %v, want 100", out.TotalMarks)
	}
}

func TestReconcileSumsStoredMarks(t *testing.T) {
	rs := []exam.Response{
		{ID: 1, QuestionID: 1, Answer: strp("Berlin"), MarksObtained: fltp(4), Submitted: true},
		{ID: 2, QuestionID: 2, Answer: strp("42"), MarksObtained: nil, Submitted: true},
		{ID: 3, QuestionID: 3, Answer: strp("late"), MarksObtained: fltp(1.5)},
	}
	snap := snapshot()
	snap.TotalMarks = 12
	out := Reconcile(snap, rs)

	// stored marks win even where the answer is wrong today
	if out.MarksObtained != 5.5 {
		t.Fatalf("marks = %v, want 5.5", out.MarksObtained)
	}
	if out.TotalMarks != 12 {
		t.Fatalf("total = %v, want 12", out.TotalMarks)
	}
	for _, r := range out.Responses {
		if !r.Submitted {
			t.Fatalf("response %d not submitted", r.ID)
		}
	}
	if rs[2].Submitted {
		t.Fatalf("input slice modified")
	}
}
