// Package notify delivers user notifications. Presentation (email, push
// templates) lives downstream of the notifications topic.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/InteriMed/Medishift-sub005/internal/platform/kafka"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

//go:generate mockgen -source=notify.go -destination=mocks/mocks.go -package=mocks Notifier

// Notification is what a user is told.
type Notification struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Priority string            `json:"priority,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

// Notifier sends one notification to one user.
type Notifier interface {
	SendNotificationToUser(ctx context.Context, userID id.PrincipalID, n Notification) error
}

// Counter counts deliveries by channel and result.
type Counter interface {
	IncNotification(channel, result string)
}

// Sent is a recorded delivery.
type Sent struct {
	UserID       id.PrincipalID
	Notification Notification
}

// Recorder keeps notifications in memory, for tests and local runs.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	// FailFor makes delivery to these users fail.
	FailFor map[id.PrincipalID]bool
}

func NewRecorder() *Recorder {
	return &Recorder{FailFor: map[id.PrincipalID]bool{}}
}

func (r *Recorder) SendNotificationToUser(_ context.Context, userID id.PrincipalID, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailFor[userID] {
		return dErrors.Newf(dErrors.CodeUnavailable, "notification to %s failed", userID)
	}
	r.sent = append(r.sent, Sent{UserID: userID, Notification: n})
	return nil
}

// Sent returns a copy of every recorded delivery.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Publisher publishes to a topic.
type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// message is the wire format on the notifications topic.
type message struct {
	UserID       string       `json:"userId"`
	Notification Notification `json:"notification"`
	SentAt       time.Time    `json:"sentAt"`
}

// KafkaNotifier publishes notifications keyed by user id, so one user's
// notifications stay ordered within a partition.
type KafkaNotifier struct {
	publisher Publisher
	topic     string
	logger    *slog.Logger
	counter   Counter
	now       func() time.Time
}

type Option func(*KafkaNotifier)

func WithLogger(logger *slog.Logger) Option {
	return func(k *KafkaNotifier) {
		k.logger = logger
	}
}

func WithCounter(c Counter) Option {
	return func(k *KafkaNotifier) {
		k.counter = c
	}
}

func NewKafkaNotifier(publisher Publisher, topic string, opts ...Option) *KafkaNotifier {
	k := &KafkaNotifier{
		publisher: publisher,
		topic:     topic,
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *KafkaNotifier) SendNotificationToUser(ctx context.Context, userID id.PrincipalID, n Notification) error {
	value, err := json.Marshal(message{UserID: userID.String(), Notification: n, SentAt: k.now().UTC()})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode notification")
	}
	err = k.publisher.Publish(ctx, kafka.Message{
		Topic:   k.topic,
		Key:     []byte(userID.String()),
		Value:   value,
		Headers: map[string]string{"type": n.Type},
	})
	if err != nil {
		k.count("error")
		k.logger.ErrorContext(ctx, "notification publish failed", "user_id", userID.String(), "type", n.Type, "error", err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("notify %s", userID))
	}
	k.count("ok")
	return nil
}

func (k *KafkaNotifier) count(result string) {
	if k.counter != nil {
		k.counter.IncNotification("kafka", result)
	}
}
