package syncx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mind-engage/mindengage-grading/internal/exam"
)

type recordingSink struct {
	got  []exam.Event
	fail bool
}

func (s *recordingSink) Deliver(_ context.Context, evs []exam.Event) error {
	if s.fail {
		return errors.New("down")
	}
	s.got = append(s.got, evs...)
	return nil
}

func seed(t *testing.T, n int) *exam.MemoryStore {
	t.Helper()
	st := exam.NewMemoryStore()
	for i := 0; i < n; i++ {
		if err := st.AppendEvent(context.Background(), exam.Event{ID: string(rune('a' + i)), Type: exam.EventExamSubmitted}); err != nil {
			t.Fatal(err)
		}
	}
	return st
}

func TestRelayFlushBatches(t *testing.T) {
	st := seed(t, 5)
	sink := &recordingSink{}
	r := NewRelay(st, sink, 0, nil)
	r.batch = 2

	n, err := r.Flush(context.Background())
	if err != nil || n != 5 {
		t.Fatalf("Flush = %d, %v", n, err)
	}
	if r.Cursor() != 5 || len(sink.got) != 5 || sink.got[4].ID != "e" {
		t.Fatalf("cursor=%d got=%+v", r.Cursor(), sink.got)
	}

	if n, _ := r.Flush(context.Background()); n != 0 {
		t.Fatalf("second flush sent %d", n)
	}
}

func TestRelayKeepsCursorOnFailure(t *testing.T) {
	st := seed(t, 3)
	sink := &recordingSink{fail: true}
	r := NewRelay(st, sink, 0, nil)
	r.StartAt(1)

	if _, err := r.Flush(context.Background()); err == nil {
		t.Fatal("want error")
	}
	if r.Cursor() != 1 {
		t.Fatalf("cursor moved to %d", r.Cursor())
	}

	sink.fail = false
	if n, err := r.Flush(context.Background()); err != nil || n != 2 {
		t.Fatalf("retry = %d, %v", n, err)
	}
}

func TestWebhookSink(t *testing.T) {
	var got []exam.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	evs := []exam.Event{{Offset: 1, ID: "x", Type: exam.EventExamSubmitted, Key: "1:2", Data: json.RawMessage(`{"a":1}`)}}
	if err := (WebhookSink{URL: srv.URL}).Deliver(context.Background(), evs); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(got) != 1 || got[0].ID != "x" || string(got[0].Data) != `{"a":1}` {
		t.Fatalf("got = %+v", got)
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	if err := (WebhookSink{URL: bad.URL}).Deliver(context.Background(), evs); err == nil {
		t.Fatal("want error on 502")
	}
}
