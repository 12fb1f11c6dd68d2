package exam

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryData struct {
	responses map[int64]Response
	results   map[int64]Result
	events    []Event
	nextID    int64
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		responses: make(map[int64]Response, len(d.responses)),
		results:   make(map[int64]Result, len(d.results)),
		events:    append([]Event(nil), d.events...),
		nextID:    d.nextID,
	}
	for k, v := range d.responses {
		c.responses[k] = v
	}
	for k, v := range d.results {
		c.results[k] = v
	}
	return c
}

// MemoryStore keeps everything in process. Used by tests and offline dev runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data *memoryData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memoryData{
		responses: map[int64]Response{},
		results:   map[int64]Result{},
	}}
}

func (m *MemoryStore) ResponsesByExamAndUser(ctx context.Context, examID, userID int64) ([]Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memView{m.data}.ResponsesByExamAndUser(ctx, examID, userID)
}

func (m *MemoryStore) ResponseByID(ctx context.Context, id int64) (Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memView{m.data}.ResponseByID(ctx, id)
}

func (m *MemoryStore) SaveResponse(ctx context.Context, r Response) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memView{m.data}.SaveResponse(ctx, r)
}

func (m *MemoryStore) SaveResponses(ctx context.Context, rs []Response) ([]Response, error) {
	var out []Response
	err := m.InTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.SaveResponses(ctx, rs)
		return err
	})
	return out, err
}

func (m *MemoryStore) UpdateAnswer(ctx context.Context, id int64, answer *string) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memView{m.data}.UpdateAnswer(ctx, id, answer)
}

func (m *MemoryStore) ResultByExamAndUser(ctx context.Context, examID, userID int64) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memView{m.data}.ResultByExamAndUser(ctx, examID, userID)
}

func (m *MemoryStore) ResultsByUser(ctx context.Context, userID int64) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memView{m.data}.ResultsByUser(ctx, userID)
}

func (m *MemoryStore) AllResults(ctx context.Context) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memView{m.data}.AllResults(ctx)
}

func (m *MemoryStore) SaveResult(ctx context.Context, r Result) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memView{m.data}.SaveResult(ctx, r)
}

func (m *MemoryStore) AppendEvent(ctx context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memView{m.data}.AppendEvent(ctx, e)
}

func (m *MemoryStore) EventsSince(ctx context.Context, after int64, limit int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memView{m.data}.EventsSince(ctx, after, limit)
}

// InTx holds the write lock for the whole of fn and works on a copy that
// replaces the live data only when fn succeeds.
func (m *MemoryStore) InTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := m.data.clone()
	if err := fn(memView{staged}); err != nil {
		return err
	}
	m.data = staged
	return nil
}

// LockAttempt is a no-op: InTx already holds the store's write lock.
func (m *MemoryStore) LockAttempt(context.Context, int64, int64) error { return nil }

// memView does the actual work without locking; the caller holds the lock.
type memView struct{ d *memoryData }

func (v memView) ResponsesByExamAndUser(_ context.Context, examID, userID int64) ([]Response, error) {
	out := make([]Response, 0)
	for _, r := range v.d.responses {
		if r.ExamID == examID && r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuestionID != out[j].QuestionID {
			return out[i].QuestionID < out[j].QuestionID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v memView) ResponseByID(_ context.Context, id int64) (Response, error) {
	r, ok := v.d.responses[id]
	if !ok {
		return Response{}, ErrResponseNotFound
	}
	return r, nil
}

func (v memView) SaveResponse(_ context.Context, r Response) (Response, error) {
	now := time.Now().UTC()
	if r.ID == 0 {
		for _, existing := range v.d.responses {
			if existing.ExamID == r.ExamID && existing.UserID == r.UserID && existing.QuestionID == r.QuestionID {
				return Response{}, ErrDuplicateResponse
			}
		}
		v.d.nextID++
		r.ID = v.d.nextID
		r.CreatedAt = now
	} else {
		existing, ok := v.d.responses[r.ID]
		if !ok {
			return Response{}, ErrResponseNotFound
		}
		r.CreatedAt = existing.CreatedAt
	}
	r.UpdatedAt = now
	v.d.responses[r.ID] = r
	return r, nil
}

func (v memView) UpdateAnswer(_ context.Context, id int64, answer *string) (Response, error) {
	r, ok := v.d.responses[id]
	if !ok {
		return Response{}, ErrResponseNotFound
	}
	if r.Submitted {
		return Response{}, ErrResponseSubmitted
	}
	r.Answer = answer
	r.UpdatedAt = time.Now().UTC()
	v.d.responses[id] = r
	return r, nil
}

func (v memView) SaveResponses(ctx context.Context, rs []Response) ([]Response, error) {
	out := make([]Response, 0, len(rs))
	for _, r := range rs {
		saved, err := v.SaveResponse(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}

func (v memView) ResultByExamAndUser(_ context.Context, examID, userID int64) (Result, error) {
	for _, r := range v.d.results {
		if r.ExamID == examID && r.UserID == userID {
			return r, nil
		}
	}
	return Result{}, ErrResultNotFound
}

func (v memView) ResultsByUser(_ context.Context, userID int64) ([]Result, error) {
	return v.results(func(r Result) bool { return r.UserID == userID }), nil
}

func (v memView) AllResults(_ context.Context) ([]Result, error) {
	return v.results(func(Result) bool { return true }), nil
}

func (v memView) results(keep func(Result) bool) []Result {
	out := make([]Result, 0)
	for _, r := range v.d.results {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v memView) SaveResult(ctx context.Context, r Result) (Result, error) {
	now := time.Now().UTC()
	if r.ID == 0 {
		if _, err := v.ResultByExamAndUser(ctx, r.ExamID, r.UserID); err == nil {
			return Result{}, ErrDuplicateResult
		}
		v.d.nextID++
		r.ID = v.d.nextID
		r.SubmittedAt = now
	} else {
		existing, ok := v.d.results[r.ID]
		if !ok {
			return Result{}, ErrResultNotFound
		}
		r.SubmittedAt = existing.SubmittedAt
	}
	r.UpdatedAt = now
	v.d.results[r.ID] = r
	return r, nil
}

func (v memView) AppendEvent(_ context.Context, e Event) error {
	e.Offset = int64(len(v.d.events)) + 1
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	v.d.events = append(v.d.events, e)
	return nil
}

func (v memView) EventsSince(_ context.Context, after int64, limit int) ([]Event, error) {
	out := make([]Event, 0)
	for _, e := range v.d.events {
		if e.Offset <= after {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// InTx on a view is already inside a transaction.
func (v memView) InTx(_ context.Context, fn func(Store) error) error {
	return fn(v)
}

func (v memView) LockAttempt(context.Context, int64, int64) error { return nil }
