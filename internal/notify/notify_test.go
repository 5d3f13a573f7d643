package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"agenda/backend/internal/domain"
)

type fakeWriter struct {
	writeFn func(ctx context.Context, msgs ...kafka.Message) error
	closed  bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.writeFn == nil {
		panic("WriteMessages not configured")
	}
	return f.writeFn(ctx, msgs...)
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testEvent() domain.BookingEvent {
	b := domain.Booking{
		ID:        uuid.New(),
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Date:      time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		EndTime:   "09:30",
		Status:    domain.BookingStatusPending,
	}
	return domain.NewBookingEvent(domain.BookingCreated, b, "assistant-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestKafkaNotifier_PublishesKeyedMessageWithHeaders(t *testing.T) {
	var got []kafka.Message
	w := &fakeWriter{writeFn: func(ctx context.Context, msgs ...kafka.Message) error {
		got = append(got, msgs...)
		return nil
	}}
	n := newKafkaNotifier(w, "agenda.bookings", zerolog.Nop())
	ev := testEvent()

	if err := n.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("messages = %d, want 1", len(got))
	}
	msg := got[0]
	if msg.Topic != "agenda.bookings" || string(msg.Key) != ev.Booking.DoctorID.String() {
		t.Fatalf("topic=%q key=%q", msg.Topic, msg.Key)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	want := map[string]string{"event_id": ev.ID.String(), "event_type": "booking.created"}
	if !reflect.DeepEqual(headers, want) {
		t.Fatalf("headers = %v, want %v", headers, want)
	}

	var body BookingMessage
	if err := json.Unmarshal(msg.Value, &body); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if body.Booking.Date != "2026-03-09" || body.Booking.StartTime != "09:00" || body.Actor != "assistant-1" {
		t.Fatalf("payload = %+v", body)
	}
	if body.Booking.SpecialtyID != "" {
		t.Fatalf("empty specialty must be omitted, got %q", body.Booking.SpecialtyID)
	}

	if err := n.Close(); err != nil || !w.closed {
		t.Fatalf("Close err=%v closed=%v", err, w.closed)
	}
}

func TestKafkaNotifier_WrapsWriteError(t *testing.T) {
	boom := errors.New("leader not available")
	n := newKafkaNotifier(&fakeWriter{writeFn: func(ctx context.Context, msgs ...kafka.Message) error { return boom }}, DefaultTopic, zerolog.Nop())
	err := n.Publish(context.Background(), testEvent())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped write error", err)
	}
}

func TestLogNotifier_WritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))
	ev := testEvent()
	if err := n.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["event_type"] != "booking.created" || line["component"] != "notify.log" || line["booking_id"] != ev.Booking.ID.String() {
		t.Fatalf("log line = %v", line)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if !reflect.DeepEqual(got, []string{"kafka-1:9092", "kafka-2:9092"}) {
		t.Fatalf("brokers = %v", got)
	}
	if SplitBrokers("") != nil {
		t.Fatalf("empty input must yield nil")
	}
}

func TestReadyCheck_NoBrokers(t *testing.T) {
	err := ReadyCheck(nil)(context.Background())
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("err = %v", err)
	}
}
