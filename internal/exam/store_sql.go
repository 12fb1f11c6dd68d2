package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLStore struct {
	db   *sql.DB
	q    queryer
	inTx bool
}

// NewSQLStore expects the schema from db.Open to be in place. Queries use
// $N placeholders, which both pgx and modernc sqlite accept.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, q: db}
}

func (s *SQLStore) InTx(ctx context.Context, fn func(Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if e := tx.Commit(); e != nil {
			err = fmt.Errorf("commit tx: %w", e)
		}
	}()
	err = fn(&SQLStore{db: s.db, q: tx, inTx: true})
	return err
}

const responseColumns = `id, exam_id, user_id, question_id, answer, marks_obtained, submitted, created_at, updated_at`

func (s *SQLStore) ResponsesByExamAndUser(ctx context.Context, examID, userID int64) ([]Response, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+responseColumns+`
		FROM responses
		WHERE exam_id = $1 AND user_id = $2
		ORDER BY question_id ASC, id ASC`, examID, userID)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	out := make([]Response, 0)
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return out, nil
}

func (s *SQLStore) ResponseByID(ctx context.Context, id int64) (Response, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = $1`, id)
	r, err := scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Response{}, ErrResponseNotFound
	}
	return r, err
}

func (s *SQLStore) SaveResponse(ctx context.Context, r Response) (Response, error) {
	now := time.Now().UTC().Truncate(time.Second)
	answer := nullString(r.Answer)
	marks := nullFloat(r.MarksObtained)

	if r.ID == 0 {
		err := s.q.QueryRowContext(ctx, `
			INSERT INTO responses (exam_id, user_id, question_id, answer, marks_obtained, submitted, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (exam_id, user_id, question_id) DO NOTHING
			RETURNING id`,
			r.ExamID, r.UserID, r.QuestionID, answer, marks, r.Submitted, now.Unix(), now.Unix(),
		).Scan(&r.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return Response{}, ErrDuplicateResponse
		}
		if err != nil {
			return Response{}, fmt.Errorf("insert response: %w", err)
		}
		r.CreatedAt, r.UpdatedAt = now, now
		return r, nil
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE responses
		SET answer = $1, marks_obtained = $2, submitted = $3, updated_at = $4
		WHERE id = $5`,
		answer, marks, r.Submitted, now.Unix(), r.ID)
	if err != nil {
		return Response{}, fmt.Errorf("update response: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Response{}, ErrResponseNotFound
	}
	return s.ResponseByID(ctx, r.ID)
}

func (s *SQLStore) UpdateAnswer(ctx context.Context, id int64, answer *string) (Response, error) {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.q.ExecContext(ctx, `
		UPDATE responses
		SET answer = $1, updated_at = $2
		WHERE id = $3 AND submitted = FALSE`,
		nullString(answer), now.Unix(), id)
	if err != nil {
		return Response{}, fmt.Errorf("update answer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.ResponseByID(ctx, id); err != nil {
			return Response{}, err
		}
		return Response{}, ErrResponseSubmitted
	}
	return s.ResponseByID(ctx, id)
}

// LockAttempt upserts the attempt's row in attempt_locks. The row lock (postgres)
// or write lock (sqlite) it takes is held until the transaction ends.
func (s *SQLStore) LockAttempt(ctx context.Context, examID, userID int64) error {
	if !s.inTx {
		return errors.New("lock attempt: not in a transaction")
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO attempt_locks (exam_id, user_id, locked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (exam_id, user_id) DO UPDATE SET locked_at = excluded.locked_at`,
		examID, userID, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("lock attempt %d:%d: %w", examID, userID, err)
	}
	return nil
}

func (s *SQLStore) SaveResponses(ctx context.Context, rs []Response) ([]Response, error) {
	if !s.inTx {
		var out []Response
		err := s.InTx(ctx, func(tx Store) error {
			var err error
			out, err = tx.SaveResponses(ctx, rs)
			return err
		})
		return out, err
	}
	out := make([]Response, 0, len(rs))
	for _, r := range rs {
		saved, err := s.SaveResponse(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}

const resultColumns = `id, exam_id, user_id, total_marks, marks_obtained, submitted_at, updated_at`

func (s *SQLStore) ResultByExamAndUser(ctx context.Context, examID, userID int64) (Result, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+resultColumns+`
		FROM results WHERE exam_id = $1 AND user_id = $2`, examID, userID)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrResultNotFound
	}
	return r, err
}

func (s *SQLStore) ResultsByUser(ctx context.Context, userID int64) ([]Result, error) {
	return s.queryResults(ctx, `SELECT `+resultColumns+`
		FROM results WHERE user_id = $1 ORDER BY id ASC`, userID)
}

func (s *SQLStore) AllResults(ctx context.Context) ([]Result, error) {
	return s.queryResults(ctx, `SELECT `+resultColumns+` FROM results ORDER BY id ASC`)
}

func (s *SQLStore) queryResults(ctx context.Context, query string, args ...any) ([]Result, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := make([]Result, 0)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}

func (s *SQLStore) SaveResult(ctx context.Context, r Result) (Result, error) {
	now := time.Now().UTC().Truncate(time.Second)
	if r.ID == 0 {
		// The unique (exam_id, user_id) index settles concurrent first submissions.
		err := s.q.QueryRowContext(ctx, `
			INSERT INTO results (exam_id, user_id, total_marks, marks_obtained, submitted_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (exam_id, user_id) DO NOTHING
			RETURNING id`,
			r.ExamID, r.UserID, r.TotalMarks, r.MarksObtained, now.Unix(), now.Unix(),
		).Scan(&r.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrDuplicateResult
		}
		if err != nil {
			return Result{}, fmt.Errorf("insert result: %w", err)
		}
		r.SubmittedAt, r.UpdatedAt = now, now
		return r, nil
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE results
		SET total_marks = $1, marks_obtained = $2, updated_at = $3
		WHERE id = $4`,
		r.TotalMarks, r.MarksObtained, now.Unix(), r.ID)
	if err != nil {
		return Result{}, fmt.Errorf("update result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Result{}, ErrResultNotFound
	}
	return s.ResultByExamAndUser(ctx, r.ExamID, r.UserID)
}

func (s *SQLStore) AppendEvent(ctx context.Context, e Event) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO event_log (event_id, typ, key, data, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Type, e.Key, string(e.Data), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *SQLStore) EventsSince(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT seq, event_id, typ, key, data, created_at
		FROM event_log
		WHERE seq > $1
		ORDER BY seq ASC
		LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var (
			e    Event
			data string
		)
		if err := rows.Scan(&e.Offset, &e.ID, &e.Type, &e.Key, &data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Data = []byte(data)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResponse(row rowScanner) (Response, error) {
	var (
		r                    Response
		answer               sql.NullString
		marks                sql.NullFloat64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&r.ID, &r.ExamID, &r.UserID, &r.QuestionID, &answer, &marks, &r.Submitted, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Response{}, err
		}
		return Response{}, fmt.Errorf("scan response: %w", err)
	}
	if answer.Valid {
		v := answer.String
		r.Answer = &v
	}
	if marks.Valid {
		v := marks.Float64
		r.MarksObtained = &v
	}
	r.CreatedAt = time.Unix(createdAt, 0).UTC()
	r.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return r, nil
}

func scanResult(row rowScanner) (Result, error) {
	var (
		r                      Result
		submittedAt, updatedAt int64
	)
	if err := row.Scan(&r.ID, &r.ExamID, &r.UserID, &r.TotalMarks, &r.MarksObtained, &submittedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("scan result: %w", err)
	}
	r.SubmittedAt = time.Unix(submittedAt, 0).UTC()
	r.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return r, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
