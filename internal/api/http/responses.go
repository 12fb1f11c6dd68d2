package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-grading/internal/auth/middleware"
	"github.com/mind-engage/mindengage-grading/internal/exam"
	"github.com/mind-engage/mindengage-grading/internal/rbac"
	"github.com/mind-engage/mindengage-grading/internal/submission"
)

// ResponseService is the grading workflow as seen by the HTTP layer.
type ResponseService interface {
	SaveResponse(ctx context.Context, in submission.ResponseInput, userID int64) (exam.Response, error)
	UpdateResponse(ctx context.Context, in submission.ResponseInput, userID int64) (exam.Response, error)
	SubmitExam(ctx context.Context, examID, userID int64) (exam.Result, error)
	UpdateSubmitExam(ctx context.Context, examID, userID int64) (exam.Result, error)
	GetResponses(ctx context.Context, examID, userID int64) ([]exam.Response, error)
	GetResult(ctx context.Context, examID, userID int64) (exam.Result, error)
	GetResultsByUser(ctx context.Context, userID int64) ([]exam.Result, error)
	GetAllResults(ctx context.Context) ([]exam.Result, error)
	ListExams(ctx context.Context) ([]exam.ExamSnapshot, error)
	GetExam(ctx context.Context, examID int64) (exam.ExamSnapshot, error)
	Events(ctx context.Context, after int64, limit int) ([]exam.Event, error)
}

// MountResponses registers the /api/responses routes. The router must already
// run auth.JWTMiddleware.
func MountResponses(r chi.Router, svc ResponseService) {
	r.With(rbac.Require(rbac.PermExamView)).Get("/exams", ListExamsHandler(svc))
	r.With(rbac.Require(rbac.PermExamView)).Get("/exams/{examID}", GetExamHandler(svc))

	r.With(rbac.Require(rbac.PermResponseSave)).Post("/save-response", SaveResponseHandler(svc))
	r.With(rbac.Require(rbac.PermResponseSave)).Put("/save-response", UpdateResponseHandler(svc))

	r.With(rbac.Require(rbac.PermExamSubmit)).Post("/submit-exam/{examID}", SubmitExamHandler(svc))
	r.With(rbac.Require(rbac.PermExamRegrade)).Put("/submit-exam/{examID}", UpdateSubmitExamHandler(svc))

	r.With(rbac.RequireOwnerOr(rbac.PermResponseViewOwn, rbac.PermResponseViewAll, ownsUserParam)).
		Get("/by-exam-user", ResponsesByExamUserHandler(svc))
	r.With(rbac.RequireOwnerOr(rbac.PermResultViewOwn, rbac.PermResultViewAll, ownsUserParam)).
		Get("/result/by-exam-user", ResultByExamUserHandler(svc))
	r.With(rbac.RequireOwnerOr(rbac.PermResultViewOwn, rbac.PermResultViewAll, ownsUserParam)).
		Get("/results/by-user", ResultsByUserHandler(svc))
	r.With(rbac.Require(rbac.PermResultViewAll)).Get("/results/all", AllResultsHandler(svc))
}

// ownsUserParam reports whether ?userId names the caller.
func ownsUserParam(r *http.Request) bool {
	uid, ok := queryID(r, "userId")
	return ok && uid == authmw.UserIDFromContext(r.Context())
}

// answerValue accepts a JSON string, number or boolean and keeps its text.
// Clients send option indexes both as "1" and as 1.
type answerValue struct{ v *string }

func (a *answerValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		a.v = nil
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		a.v = &s
	case '{', '[':
		return fmt.Errorf("%w: answer must be a string or number", exam.ErrInvalid)
	default:
		s := string(b)
		a.v = &s
	}
	return nil
}

type responseBody struct {
	ResponseID int64       `json:"responseId"`
	ExamID     int64       `json:"examId"`
	QuestionID int64       `json:"questionId"`
	Answer     answerValue `json:"answer"`
}

func (b responseBody) input() submission.ResponseInput {
	return submission.ResponseInput{
		ResponseID: b.ResponseID,
		ExamID:     b.ExamID,
		QuestionID: b.QuestionID,
		Answer:     b.Answer.v,
	}
}

func decodeResponseBody(w http.ResponseWriter, r *http.Request) (responseBody, bool) {
	var body responseBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, exam.ErrInvalid) {
			respondError(w, err)
		} else {
			respondMessage(w, http.StatusBadRequest, "bad json")
		}
		return responseBody{}, false
	}
	return body, true
}

func examIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := parseID(chi.URLParam(r, "examID"))
	if !ok {
		respondMessage(w, http.StatusBadRequest, "invalid exam id")
	}
	return id, ok
}

// GET /api/responses/exams
func ListExamsHandler(svc ResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListExams(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// GET /api/responses/exams/{examID}
func GetExamHandler(svc ResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := examIDParam(w, r)
		if !ok {
			return
		}
		e, err := svc.GetExam(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, e)
	}
}

// POST /api/responses/save-response
func SaveResponseHandler(svc ResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := decodeResponseBody(w, r)
		if !ok {
			return
		}
		saved, err := svc.SaveResponse(r.Context(), body.input(), authmw.UserIDFromContext(r.Context()))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, saved)
	}
}

// PUT /api/responses/save-response
func UpdateResponseHandler(svc ResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := decodeResponseBody(w, r)
		if !ok {
			return
		}
		if body.ResponseID <= 0 {
			respondMessage(w, http.StatusBadRequest, "responseId required")
			return
		}
		saved, err := svc.UpdateResponse(r.Context(), body.input(), authmw.UserIDFromContext(r.Context()))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, saved)
	}
}

// POST /api/responses/submit-exam/{examID}
func SubmitExamHandler(svc ResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := examIDParam(w, r)
		if !ok {
			return
		}
		res, err := svc.SubmitExam(r.Context(), id, authmw.UserIDFromContext(r.Context()))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

// PUT /api/responses/submit-exam/{examID}
func UpdateSubmitExamHandler(svc ResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := examIDParam(w, r)
		if !ok {
			return
		}
		res, err := svc.UpdateSubmitExam(r.Context(), id, authmw.UserIDFromContext(r.Context()))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

func examAndUser(w http.ResponseWriter, r *http.Request) (examID, userID int64, ok bool) {
	examID, ok1 := queryID(r, "examId")
	userID, ok2 := queryID(r, "userId")
	if !ok1 || !ok2 {
		respondMessage(w, http.StatusBadRequest, "examId and userId required")
		return 0, 0, false
	}
	return examID, userID, true
}

// GET /api/responses/by-exam-user?examId=&userId=
func ResponsesByExamUserHandler(svc ResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID, userID, ok := examAndUser(w, r)
		if !ok {
			return
		}
		list, err := svc.GetResponses(r.Context(), examID, userID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// GET /api/responses/result/by-exam-user?examId=&userId=
func ResultByExamUserHandler(svc ResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID, userID, ok := examAndUser(w, r)
		if !ok {
			return
		}
		res, err := svc.GetResult(r.Context(), examID, userID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

// GET /api/responses/results/by-user?userId=
func ResultsByUserHandler(svc ResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := queryID(r, "userId")
		if !ok {
			respondMessage(w, http.StatusBadRequest, "userId required")
			return
		}
		list, err := svc.GetResultsByUser(r.Context(), userID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// GET /api/responses/results/all
func AllResultsHandler(svc ResponseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.GetAllResults(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}
