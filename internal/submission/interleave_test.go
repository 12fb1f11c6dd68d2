package submission

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mind-engage/mindengage-grading/internal/db"
	"github.com/mind-engage/mindengage-grading/internal/exam"
)

// hookCatalog runs a callback once, in the middle of a catalog lookup, to
// land a second request between a service's reads and its writes.
type hookCatalog struct {
	*fakeCatalog
	onExam     func()
	onQuestion func()
}

func (h *hookCatalog) GetExam(ctx context.Context, id int64) (exam.ExamSnapshot, error) {
	if fn := h.onExam; fn != nil {
		h.onExam = nil
		fn()
	}
	return h.fakeCatalog.GetExam(ctx, id)
}

func (h *hookCatalog) GetQuestion(ctx context.Context, id int64) (exam.QuestionSnapshot, error) {
	if fn := h.onQuestion; fn != nil {
		h.onQuestion = nil
		fn()
	}
	return h.fakeCatalog.GetQuestion(ctx, id)
}

func eachStore(t *testing.T, fn func(t *testing.T, st exam.Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, exam.NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) {
		dsn := "file:" + filepath.Join(t.TempDir(), "grading.db") + "?_pragma=busy_timeout(5000)"
		dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = dbh.Close() })
		fn(t, exam.NewSQLStore(dbh))
	})
}

// every stored response of a submitted attempt must be submitted and marked
func assertSettled(t *testing.T, st exam.Store) {
	t.Helper()
	rs, err := st.ResponsesByExamAndUser(context.Background(), examE, userU)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rs {
		if !r.Submitted || r.MarksObtained == nil {
			t.Fatalf("response %d (q%d) unsettled next to a result: %+v", r.ID, r.QuestionID, r)
		}
	}
}

func TestUpdateResponseLosesToConcurrentSubmit(t *testing.T) {
	eachStore(t, func(t *testing.T, st exam.Store) {
		ctx := context.Background()
		cat := &hookCatalog{fakeCatalog: newCatalog()}
		svc := NewService(st, cat, cat)
		answerBoth(t, svc)
		rs, _ := svc.GetResponses(ctx, examE, userU)
		q10 := rs[0]

		var submitted exam.Result
		cat.onQuestion = func() {
			var err error
			if submitted, err = svc.SubmitExam(ctx, examE, userU); err != nil {
				t.Fatalf("submit in between: %v", err)
			}
		}

		_, err := svc.UpdateResponse(ctx, ResponseInput{ResponseID: q10.ID, Answer: strp("London")}, userU)
		if !errors.Is(err, exam.ErrConflict) {
			t.Fatalf("update err = %v, want conflict", err)
		}

		got, _ := st.ResponseByID(ctx, q10.ID)
		if *got.Answer != "Paris" || !got.Submitted || got.MarksObtained == nil || *got.MarksObtained != 5 {
			t.Fatalf("submitted response changed: %+v", got)
		}
		if submitted.MarksObtained != 5 {
			t.Fatalf("result = %+v", submitted)
		}
		assertSettled(t, st)
	})
}

func TestSaveResponseDuringSubmitIsGraded(t *testing.T) {
	eachStore(t, func(t *testing.T, st exam.Store) {
		ctx := context.Background()
		cat := &hookCatalog{fakeCatalog: newCatalog()}
		svc := NewService(st, cat, cat)
		if _, err := svc.SaveResponse(ctx, ResponseInput{ExamID: examE, QuestionID: 10, Answer: strp("0")}, userU); err != nil {
			t.Fatalf("save q10: %v", err)
		}

		cat.onExam = func() {
			if _, err := svc.SaveResponse(ctx, ResponseInput{ExamID: examE, QuestionID: 20, Answer: strp("42")}, userU); err != nil {
				t.Fatalf("save q20 in between: %v", err)
			}
		}

		res, err := svc.SubmitExam(ctx, examE, userU)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if res.MarksObtained != 8 {
			t.Fatalf("marks = %v, want 8 with the late answer graded", res.MarksObtained)
		}
		if rs, _ := st.ResponsesByExamAndUser(ctx, examE, userU); len(rs) != 2 {
			t.Fatalf("responses = %+v", rs)
		}
		assertSettled(t, st)
	})
}

// staleResults hides existing results from reads, as a concurrent commit
// the reader has not seen yet would.
type staleResults struct{ exam.Store }

func (staleResults) ResultByExamAndUser(context.Context, int64, int64) (exam.Result, error) {
	return exam.Result{}, exam.ErrResultNotFound
}

func (s staleResults) InTx(ctx context.Context, fn func(exam.Store) error) error {
	return s.Store.InTx(ctx, func(tx exam.Store) error { return fn(staleResults{tx}) })
}

func TestSubmitExamDuplicateResultRollsBack(t *testing.T) {
	eachStore(t, func(t *testing.T, st exam.Store) {
		ctx := context.Background()
		cat := newCatalog()
		answerBoth(t, NewService(st, cat, cat))

		other, err := st.SaveResult(ctx, exam.Result{ExamID: examE, UserID: userU, TotalMarks: 8, MarksObtained: 3})
		if err != nil {
			t.Fatalf("seed result: %v", err)
		}

		svc := NewService(staleResults{st}, cat, cat)
		if _, err := svc.SubmitExam(ctx, examE, userU); !errors.Is(err, exam.ErrAlreadySubmitted) {
			t.Fatalf("err = %v, want already submitted", err)
		}

		got, _ := st.ResultByExamAndUser(ctx, examE, userU)
		if got.ID != other.ID || got.MarksObtained != 3 {
			t.Fatalf("result = %+v, want the existing one", got)
		}
		rs, _ := st.ResponsesByExamAndUser(ctx, examE, userU)
		for _, r := range rs {
			if r.Submitted || r.MarksObtained != nil {
				t.Fatalf("response %d written by the rolled back submit: %+v", r.ID, r)
			}
		}
		if evs, _ := st.EventsSince(ctx, 0, 0); len(evs) != 0 {
			t.Fatalf("events = %+v", evs)
		}
	})
}
