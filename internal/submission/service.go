package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-grading/internal/exam"
	"github.com/mind-engage/mindengage-grading/internal/grading"
)

// ExamCatalog is the remote exam service. Implementations return
// exam.ErrExamNotFound for unknown ids.
type ExamCatalog interface {
	GetExam(ctx context.Context, examID int64) (exam.ExamSnapshot, error)
	ListExams(ctx context.Context) ([]exam.ExamSnapshot, error)
}

// QuestionCatalog is the remote question service. Implementations return
// exam.ErrQuestionNotFound for unknown ids.
type QuestionCatalog interface {
	GetQuestion(ctx context.Context, questionID int64) (exam.QuestionSnapshot, error)
}

// ResponseInput is what a caller sends when saving or updating an answer.
// Marks and the submitted flag are never taken from callers.
type ResponseInput struct {
	ResponseID int64
	ExamID     int64
	QuestionID int64
	Answer     *string
}

type Service struct {
	store     exam.Store
	exams     ExamCatalog
	questions QuestionCatalog
	log       *log.Logger

	fullRegrade bool
}

type Option func(*Service)

// WithLogger sets the logger for state transitions. Default discards.
func WithLogger(l *log.Logger) Option { return func(s *Service) { s.log = l } }

// WithFullRegrade makes UpdateSubmitExam compare answers against the current
// key again instead of summing the marks already stored.
func WithFullRegrade(b bool) Option { return func(s *Service) { s.fullRegrade = b } }

func NewService(store exam.Store, exams ExamCatalog, questions QuestionCatalog, opts ...Option) *Service {
	s := &Service{
		store:     store,
		exams:     exams,
		questions: questions,
		log:       log.New(io.Discard, "", 0),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SaveResponse records (or overwrites) the caller's answer to one question.
func (s *Service) SaveResponse(ctx context.Context, in ResponseInput, userID int64) (exam.Response, error) {
	if userID <= 0 {
		return exam.Response{}, exam.ErrUnauthenticated
	}
	if in.ExamID <= 0 || in.QuestionID <= 0 {
		return exam.Response{}, fmt.Errorf("%w: examId and questionId are required", exam.ErrInvalid)
	}
	if _, err := s.exams.GetExam(ctx, in.ExamID); err != nil {
		return exam.Response{}, fmt.Errorf("exam %d: %w", in.ExamID, err)
	}
	q, err := s.questions.GetQuestion(ctx, in.QuestionID)
	if err != nil {
		return exam.Response{}, fmt.Errorf("question %d: %w", in.QuestionID, err)
	}

	answer := grading.NormalizeAnswerPtr(in.Answer, q.Options)

	var saved exam.Response
	err = s.store.InTx(ctx, func(tx exam.Store) error {
		if err := lockOpenAttempt(ctx, tx, in.ExamID, userID); err != nil {
			return err
		}
		existing, err := findResponse(ctx, tx, in.ExamID, userID, in.QuestionID)
		if err != nil {
			return err
		}
		if existing != nil {
			saved, err = tx.UpdateAnswer(ctx, existing.ID, answer)
			return err
		}
		saved, err = tx.SaveResponse(ctx, exam.Response{
			ExamID:     in.ExamID,
			UserID:     userID,
			QuestionID: in.QuestionID,
			Answer:     answer,
		})
		return err
	})
	if err != nil {
		return exam.Response{}, err
	}
	return saved, nil
}

// UpdateResponse changes the answer of an existing, unsubmitted response owned by userID.
func (s *Service) UpdateResponse(ctx context.Context, in ResponseInput, userID int64) (exam.Response, error) {
	if userID <= 0 {
		return exam.Response{}, exam.ErrUnauthenticated
	}
	existing, err := ownedResponse(ctx, s.store, in.ResponseID, userID)
	if err != nil {
		return exam.Response{}, err
	}
	if existing.Submitted {
		return exam.Response{}, exam.ErrResponseSubmitted
	}
	if _, err := s.exams.GetExam(ctx, existing.ExamID); err != nil {
		return exam.Response{}, fmt.Errorf("exam %d: %w", existing.ExamID, err)
	}
	q, err := s.questions.GetQuestion(ctx, existing.QuestionID)
	if err != nil {
		return exam.Response{}, fmt.Errorf("question %d: %w", existing.QuestionID, err)
	}
	answer := grading.NormalizeAnswerPtr(in.Answer, q.Options)

	var saved exam.Response
	err = s.store.InTx(ctx, func(tx exam.Store) error {
		if err := lockOpenAttempt(ctx, tx, existing.ExamID, userID); err != nil {
			return err
		}
		cur, err := ownedResponse(ctx, tx, existing.ID, userID)
		if err != nil {
			return err
		}
		if cur.Submitted {
			return exam.ErrResponseSubmitted
		}
		saved, err = tx.UpdateAnswer(ctx, cur.ID, answer)
		return err
	})
	if err != nil {
		return exam.Response{}, err
	}
	return saved, nil
}

// SubmitExam grades the attempt and creates its one Result. It is the only
// way to create a Result; a second call fails with exam.ErrAlreadySubmitted.
func (s *Service) SubmitExam(ctx context.Context, examID, userID int64) (exam.Result, error) {
	if userID <= 0 {
		return exam.Result{}, exam.ErrUnauthenticated
	}
	if _, err := s.store.ResultByExamAndUser(ctx, examID, userID); err == nil {
		return exam.Result{}, exam.ErrAlreadySubmitted
	} else if !errors.Is(err, exam.ErrResultNotFound) {
		return exam.Result{}, err
	}
	if rs, err := s.store.ResponsesByExamAndUser(ctx, examID, userID); err != nil {
		return exam.Result{}, err
	} else if len(rs) == 0 {
		return exam.Result{}, exam.ErrNoResponses
	}

	snap, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return exam.Result{}, fmt.Errorf("exam %d: %w", examID, err)
	}

	// grade the rows stored once the attempt is locked, not the ones read above
	var (
		created exam.Result
		outcome grading.Outcome
	)
	err = s.store.InTx(ctx, func(tx exam.Store) error {
		if err := lockOpenAttempt(ctx, tx, examID, userID); err != nil {
			return err
		}
		responses, err := tx.ResponsesByExamAndUser(ctx, examID, userID)
		if err != nil {
			return err
		}
		if len(responses) == 0 {
			return exam.ErrNoResponses
		}
		outcome = grading.Grade(snap, responses)
		if _, err := tx.SaveResponses(ctx, outcome.Responses); err != nil {
			return err
		}
		res, err := tx.SaveResult(ctx, exam.Result{
			ExamID:        examID,
			UserID:        userID,
			TotalMarks:    outcome.TotalMarks,
			MarksObtained: outcome.MarksObtained,
		})
		if err != nil {
			return err
		}
		created = res
		return tx.AppendEvent(ctx, newEvent(exam.EventExamSubmitted, res, outcome))
	})
	if errors.Is(err, exam.ErrDuplicateResult) {
		// the unique (exam, user) constraint caught a result the in-tx check missed
		s.log.Printf("submit lost race exam=%d user=%d", examID, userID)
		return exam.Result{}, exam.ErrAlreadySubmitted
	}
	if err != nil {
		return exam.Result{}, err
	}

	s.log.Printf("submitted exam=%d user=%d marks=%.2f/%.2f graded=%d/%d",
		examID, userID, created.MarksObtained, created.TotalMarks, outcome.Graded, len(outcome.Responses))
	return created, nil
}

// UpdateSubmitExam refreshes an existing Result. By default it trusts the
// per-response marks stored at submission and only re-reads the exam's total marks.
func (s *Service) UpdateSubmitExam(ctx context.Context, examID, userID int64) (exam.Result, error) {
	if userID <= 0 {
		return exam.Result{}, exam.ErrUnauthenticated
	}
	if _, err := s.store.ResultByExamAndUser(ctx, examID, userID); err != nil {
		return exam.Result{}, err
	}
	if rs, err := s.store.ResponsesByExamAndUser(ctx, examID, userID); err != nil {
		return exam.Result{}, err
	} else if len(rs) == 0 {
		return exam.Result{}, exam.ErrNoResponsesToRegrade
	}

	snap, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return exam.Result{}, fmt.Errorf("exam %d: %w", examID, err)
	}

	var updated exam.Result
	err = s.store.InTx(ctx, func(tx exam.Store) error {
		if err := tx.LockAttempt(ctx, examID, userID); err != nil {
			return err
		}
		existing, err := tx.ResultByExamAndUser(ctx, examID, userID)
		if err != nil {
			return err
		}
		responses, err := tx.ResponsesByExamAndUser(ctx, examID, userID)
		if err != nil {
			return err
		}
		if len(responses) == 0 {
			return exam.ErrNoResponsesToRegrade
		}

		var outcome grading.Outcome
		if s.fullRegrade {
			outcome = grading.Grade(snap, responses)
		} else {
			outcome = grading.Reconcile(snap, responses)
		}
		existing.TotalMarks = outcome.TotalMarks
		existing.MarksObtained = outcome.MarksObtained

		res, err := tx.SaveResult(ctx, existing)
		if err != nil {
			return err
		}
		if _, err := tx.SaveResponses(ctx, outcome.Responses); err != nil {
			return err
		}
		updated = res
		return tx.AppendEvent(ctx, newEvent(exam.EventExamResubmitted, res, outcome))
	})
	if err != nil {
		return exam.Result{}, err
	}

	s.log.Printf("resubmitted exam=%d user=%d marks=%.2f/%.2f full=%t",
		examID, userID, updated.MarksObtained, updated.TotalMarks, s.fullRegrade)
	return updated, nil
}

func (s *Service) GetResponses(ctx context.Context, examID, userID int64) ([]exam.Response, error) {
	return s.store.ResponsesByExamAndUser(ctx, examID, userID)
}

// GetResult returns exam.ErrResultNotFound when the exam was not submitted.
func (s *Service) GetResult(ctx context.Context, examID, userID int64) (exam.Result, error) {
	return s.store.ResultByExamAndUser(ctx, examID, userID)
}

func (s *Service) GetResultsByUser(ctx context.Context, userID int64) ([]exam.Result, error) {
	return s.store.ResultsByUser(ctx, userID)
}

// GetAllResults lists every result, for staff views.
func (s *Service) GetAllResults(ctx context.Context) ([]exam.Result, error) {
	return s.store.AllResults(ctx)
}

func (s *Service) ListExams(ctx context.Context) ([]exam.ExamSnapshot, error) {
	return s.exams.ListExams(ctx)
}

func (s *Service) GetExam(ctx context.Context, examID int64) (exam.ExamSnapshot, error) {
	return s.exams.GetExam(ctx, examID)
}

func (s *Service) Events(ctx context.Context, after int64, limit int) ([]exam.Event, error) {
	return s.store.EventsSince(ctx, after, limit)
}

// lockOpenAttempt locks the attempt and fails when it already has a Result.
func lockOpenAttempt(ctx context.Context, tx exam.Store, examID, userID int64) error {
	if err := tx.LockAttempt(ctx, examID, userID); err != nil {
		return err
	}
	if _, err := tx.ResultByExamAndUser(ctx, examID, userID); err == nil {
		return exam.ErrAlreadySubmitted
	} else if !errors.Is(err, exam.ErrResultNotFound) {
		return err
	}
	return nil
}

// ownedResponse reports someone else's response as missing.
func ownedResponse(ctx context.Context, st exam.Store, id, userID int64) (exam.Response, error) {
	r, err := st.ResponseByID(ctx, id)
	if err != nil {
		return exam.Response{}, err
	}
	if r.UserID != userID {
		return exam.Response{}, exam.ErrResponseNotFound
	}
	return r, nil
}

func findResponse(ctx context.Context, st exam.Store, examID, userID, questionID int64) (*exam.Response, error) {
	rs, err := st.ResponsesByExamAndUser(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	for i := range rs {
		if rs[i].QuestionID == questionID {
			return &rs[i], nil
		}
	}
	return nil, nil
}

func newEvent(typ string, res exam.Result, o grading.Outcome) exam.Event {
	data, _ := json.Marshal(map[string]any{
		"resultId":      res.ID,
		"examId":        res.ExamID,
		"userId":        res.UserID,
		"totalMarks":    res.TotalMarks,
		"marksObtained": res.MarksObtained,
		"responses":     len(o.Responses),
		"graded":        o.Graded,
	})
	return exam.Event{
		ID:   uuid.NewString(),
		Type: typ,
		Key:  fmt.Sprintf("%d:%d", res.ExamID, res.UserID),
		Data: data,
	}
}
