package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/lab-booking/internal/config"
	"github.com/iliyamo/lab-booking/internal/model"
)

type recordingSink struct {
	got []model.Decision
	err error
}

func (s *recordingSink) RecordDecision(_ context.Context, d model.Decision) error {
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, d)
	return nil
}

func TestNewDecidedEvent(t *testing.T) {
	t.Parallel()

	b := model.Booking{ID: "b1", LabID: "L1", RequesterID: "u1", Status: model.StatusRejected, RejectedReason: "conflict"}
	at := time.Date(2025, 6, 1, 16, 30, 0, 0, time.FixedZone("ICT", 7*3600))
	ev := NewDecidedEvent(b, "mgr-1", at)

	if ev.EventID == "" || ev.EventID == NewDecidedEvent(b, "mgr-1", at).EventID {
		t.Fatalf("expected a fresh event id, got %q", ev.EventID)
	}
	if ev.Decision != "rejected" || ev.Reason != "conflict" || ev.DecidedBy != "mgr-1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.DecidedAt != "2025-06-01T09:30:00Z" {
		t.Fatalf("expected UTC timestamp, got %s", ev.DecidedAt)
	}
}

func TestHandleMessage(t *testing.T) {
	t.Parallel()

	valid := BookingDecidedEvent{
		EventID: "e1", BookingID: "b1", LabID: "L1", RequesterID: "u1",
		Decision: "approved", DecidedBy: "mgr-1", DecidedAt: "2025-06-01T09:30:00Z",
	}

	t.Run("records decision", func(t *testing.T) {
		sink := &recordingSink{}
		body, _ := json.Marshal(valid)
		if err := handleMessage(context.Background(), sink, body); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sink.got) != 1 {
			t.Fatalf("expected one decision, got %d", len(sink.got))
		}
		d := sink.got[0]
		if d.EventID != "e1" || d.Decision != model.StatusApproved || !d.DecidedAt.Equal(time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)) {
			t.Fatalf("unexpected decision %+v", d)
		}
	})

	bad := map[string]string{
		"not json":        `{"event_id":`,
		"missing id":      `{"booking_id":"b1","decision":"approved","decided_at":"2025-06-01T09:30:00Z"}`,
		"pending":         `{"event_id":"e","booking_id":"b1","decision":"pending","decided_at":"2025-06-01T09:30:00Z"}`,
		"bad time":        `{"event_id":"e","booking_id":"b1","decision":"approved","decided_at":"yesterday"}`,
		"unknown outcome": `{"event_id":"e","booking_id":"b1","decision":"maybe","decided_at":"2025-06-01T09:30:00Z"}`,
	}
	for name, body := range bad {
		body := body
		t.Run(name, func(t *testing.T) {
			sink := &recordingSink{}
			if err := handleMessage(context.Background(), sink, []byte(body)); err == nil {
				t.Fatalf("expected error")
			}
			if len(sink.got) != 0 {
				t.Fatalf("expected nothing recorded")
			}
		})
	}

	t.Run("sink failure", func(t *testing.T) {
		sink := &recordingSink{err: errors.New("db down")}
		body, _ := json.Marshal(valid)
		err := handleMessage(context.Background(), sink, body)
		if err == nil || !strings.Contains(err.Error(), "db down") {
			t.Fatalf("expected sink error, got %v", err)
		}
	})
}

func TestPublisher_Disabled(t *testing.T) {
	t.Parallel()

	p := NewPublisher(config.QueueConfig{})
	if p.Enabled() {
		t.Fatalf("expected publisher without URL to be disabled")
	}
	if err := p.PublishDecided(context.Background(), BookingDecidedEvent{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	var nilPub *Publisher
	if nilPub.Enabled() || nilPub.Close() != nil {
		t.Fatalf("expected nil publisher to be inert")
	}
}

func TestStartDecisionConsumer_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := StartDecisionConsumer(ctx, config.QueueConfig{URL: "amqp://127.0.0.1:1/"}, &recordingSink{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
