package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/soko-arts/marketplace/internal/logger"
	"github.com/soko-arts/marketplace/internal/types/notification"
)

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *notification.Notification) error
	ListNotificationsByUser(ctx context.Context, userID string) ([]notification.Notification, error)
}

// Publisher pushes a notification event to the external dispatcher.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, []byte, []byte) error { return nil }
func (NopPublisher) Close() error                                  { return nil }

type Dispatcher struct {
	repo NotificationRepository
	pub  Publisher
}

func NewDispatcher(repo NotificationRepository, pub Publisher) *Dispatcher {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Dispatcher{repo: repo, pub: pub}
}

// Notify persists the notification and publishes it as an event. A publish
// failure is logged, not returned: the record is the source of truth and
// the external dispatcher consumes at its own pace.
func (d *Dispatcher) Notify(ctx context.Context, n *notification.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := d.repo.CreateNotification(ctx, n); err != nil {
		return err
	}
	n.Sent = true

	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := d.pub.Publish(ctx, []byte(n.OrderNumber), payload); err != nil {
		logger.Log().Warnw("notification publish failed", "order", n.OrderNumber, "error", err)
	}
	return nil
}
