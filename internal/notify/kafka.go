// Package notify delivers committed booking changes to downstream consumers
// such as the reminder service.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"agenda/backend/internal/domain"
)

const DefaultTopic = "agenda.bookings"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier writes one message per booking event, keyed by doctor so a
// doctor's events stay ordered within a partition.
type KafkaNotifier struct {
	w     messageWriter
	topic string
	log   zerolog.Logger
}

func NewKafkaNotifier(brokers []string, topic string, log zerolog.Logger) *KafkaNotifier {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return newKafkaNotifier(w, topic, log)
}

func newKafkaNotifier(w messageWriter, topic string, log zerolog.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		w:     w,
		topic: topic,
		log:   log.With().Str("component", "notify.kafka").Str("topic", topic).Logger(),
	}
}

func (n *KafkaNotifier) Publish(ctx context.Context, ev domain.BookingEvent) error {
	msg, err := n.message(ev)
	if err != nil {
		return err
	}
	if err := n.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", ev.Type, err)
	}
	n.log.Debug().
		Str("event_id", ev.ID.String()).
		Str("event_type", string(ev.Type)).
		Msg("booking event published")
	return nil
}

func (n *KafkaNotifier) message(ev domain.BookingEvent) (kafka.Message, error) {
	payload, err := json.Marshal(NewBookingMessage(ev))
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode booking event: %w", err)
	}
	return kafka.Message{
		Topic: n.topic,
		Key:   []byte(ev.Booking.DoctorID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.ID.String())},
			{Key: "event_type", Value: []byte(ev.Type)},
		},
		Time: ev.OccurredAt,
	}, nil
}

func (n *KafkaNotifier) Close() error {
	return n.w.Close()
}

// ReadyCheck dials the first broker.
func ReadyCheck(brokers []string) func(context.Context) error {
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
