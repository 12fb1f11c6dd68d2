// Package syncx forwards outbox events to an external consumer.
package syncx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/mind-engage/mindengage-grading/internal/exam"
)

// EventSource is the read side of the event log.
type EventSource interface {
	EventsSince(ctx context.Context, after int64, limit int) ([]exam.Event, error)
}

// Sink receives events in log order. A failed batch is retried from its
// first event on the next poll, so sinks must tolerate duplicates (Event.ID
// is stable).
type Sink interface {
	Deliver(ctx context.Context, events []exam.Event) error
}

type Relay struct {
	src      EventSource
	sink     Sink
	interval time.Duration
	batch    int
	log      *log.Logger

	cursor int64
}

func NewRelay(src EventSource, sink Sink, interval time.Duration, logger *log.Logger) *Relay {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Relay{src: src, sink: sink, interval: interval, batch: 100, log: logger}
}

// StartAt skips everything up to and including offset.
func (r *Relay) StartAt(offset int64) { r.cursor = offset }

func (r *Relay) Cursor() int64 { return r.cursor }

// Run polls until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.log.Printf("event relay: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Flush delivers every pending event and returns how many went out.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	sent := 0
	for {
		evs, err := r.src.EventsSince(ctx, r.cursor, r.batch)
		if err != nil {
			return sent, fmt.Errorf("read events after %d: %w", r.cursor, err)
		}
		if len(evs) == 0 {
			return sent, nil
		}
		if err := r.sink.Deliver(ctx, evs); err != nil {
			return sent, fmt.Errorf("deliver events %d..%d: %w", evs[0].Offset, evs[len(evs)-1].Offset, err)
		}
		r.cursor = evs[len(evs)-1].Offset
		sent += len(evs)
		if len(evs) < r.batch {
			return sent, nil
		}
	}
}

// WebhookSink POSTs each batch as a JSON array.
type WebhookSink struct {
	URL  string
	HTTP *http.Client
}

func (s WebhookSink) Deliver(ctx context.Context, events []exam.Event) error {
	body, err := json.Marshal(events)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	h := s.HTTP
	if h == nil {
		h = http.DefaultClient
	}
	res, err := h.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("webhook: %s", res.Status)
	}
	return nil
}
