package exam

import "context"

type ResponseStore interface {
	ResponsesByExamAndUser(ctx context.Context, examID, userID int64) ([]Response, error)
	ResponseByID(ctx context.Context, id int64) (Response, error)
	// SaveResponse inserts when r.ID is zero and updates otherwise.
	SaveResponse(ctx context.Context, r Response) (Response, error)
	SaveResponses(ctx context.Context, rs []Response) ([]Response, error)
	// UpdateAnswer changes the answer of an unsubmitted response only.
	// A submitted row is left alone and ErrResponseSubmitted returned.
	UpdateAnswer(ctx context.Context, id int64, answer *string) (Response, error)
}

type ResultStore interface {
	ResultByExamAndUser(ctx context.Context, examID, userID int64) (Result, error)
	ResultsByUser(ctx context.Context, userID int64) ([]Result, error)
	AllResults(ctx context.Context) ([]Result, error)
	// SaveResult inserts when r.ID is zero and updates otherwise. Inserting a
	// second result for the same (exam, user) fails with ErrDuplicateResult.
	SaveResult(ctx context.Context, r Result) (Result, error)
}

type EventStore interface {
	AppendEvent(ctx context.Context, e Event) error
	EventsSince(ctx context.Context, after int64, limit int) ([]Event, error)
}

type Store interface {
	ResponseStore
	ResultStore
	EventStore

	// InTx runs fn against a transactional view of the store. Nothing fn wrote
	// is visible to others unless fn returns nil.
	InTx(ctx context.Context, fn func(Store) error) error
	// LockAttempt serializes transactions that write the same (exam, user)
	// attempt. Only meaningful inside InTx; the lock lasts until it ends.
	LockAttempt(ctx context.Context, examID, userID int64) error
}
