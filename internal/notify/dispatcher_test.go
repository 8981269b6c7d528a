package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	outboxrepo "shoporders/internal/repository/outbox"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type stubOutbox struct {
	pending  []outboxrepo.Record
	fetchErr error
	sentIDs  []int64
	markErr  error
}

func (s *stubOutbox) FetchPending(_ context.Context, _ int) ([]outboxrepo.Record, error) {
	return s.pending, s.fetchErr
}

func (s *stubOutbox) MarkSent(_ context.Context, id int64) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.sentIDs = append(s.sentIDs, id)
	return nil
}

type stubWriter struct {
	msgs     []kafka.Message
	writeErr error
}

func (s *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func TestDrainPublishesAndMarks(t *testing.T) {
	repo := &stubOutbox{pending: []outboxrepo.Record{
		{ID: 1, EventID: "e1", EventType: "order.created", UserID: "seller-1", Payload: []byte(`{"title":"New order"}`)},
		{ID: 2, EventID: "e2", EventType: "order.cancelled", UserID: "seller-1", Payload: []byte(`{"title":"Cancelled"}`)},
	}}
	w := &stubWriter{}
	d := newDispatcher(repo, w, time.Second, zerolog.Nop())

	d.drain(context.Background())

	if len(w.msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "seller-1" {
		t.Fatalf("unexpected message key %q", w.msgs[0].Key)
	}
	if len(repo.sentIDs) != 2 || repo.sentIDs[0] != 1 || repo.sentIDs[1] != 2 {
		t.Fatalf("unexpected sent ids %v", repo.sentIDs)
	}
}

func TestDrainLeavesUnsentOnPublishFailure(t *testing.T) {
	repo := &stubOutbox{pending: []outboxrepo.Record{
		{ID: 1, EventID: "e1", EventType: "order.created", UserID: "u", Payload: []byte(`{}`)},
	}}
	w := &stubWriter{writeErr: errors.New("broker down")}
	d := newDispatcher(repo, w, time.Second, zerolog.Nop())

	d.drain(context.Background())

	if len(repo.sentIDs) != 0 {
		t.Fatalf("intent marked sent despite publish failure: %v", repo.sentIDs)
	}
}

func TestDrainSurvivesFetchError(t *testing.T) {
	repo := &stubOutbox{fetchErr: errors.New("db down")}
	d := newDispatcher(repo, &stubWriter{}, time.Second, zerolog.Nop())
	d.drain(context.Background())
}
