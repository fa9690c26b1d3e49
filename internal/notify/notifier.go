package notify

import (
	"context"
	"encoding/json"

	"chatbot-be/internal/apperr"
	"chatbot-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// Notifier is the live-query change bus. Repository-level writers publish a change
// tick per topic; live subscribers re-query the full ordered set on every
// tick. When Redis is configured, ticks are mirrored on a cluster channel so
// instances behind a load balancer stay in sync.
type Notifier struct {
	pubSub *gochannel.GoChannel
	rdb    *redis.Client
	logger logger.ILogger
}

func ChatsTopic(userID uuid.UUID) string {
	return "chats." + userID.String()
}

func MessagesTopic(chatID uuid.UUID) string {
	return "messages." + chatID.String()
}

func NewNotifier(rdb *redis.Client, log logger.ILogger) *Notifier {
	watermillLogger := watermill.NewStdLogger(false, false)
	n := &Notifier{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{},
			watermillLogger,
		),
		rdb:    rdb,
		logger: log,
	}
	if n.rdb != nil {
		go n.subscribeToRedis()
	}
	return n
}

// ChatsChanged signals that the set of chats owned by userID changed
// (creation, or updated_at advanced).
func (n *Notifier) ChatsChanged(userID uuid.UUID) {
	n.publish(ChatsTopic(userID))
}

// MessagesChanged signals that chatID gained a message.
func (n *Notifier) MessagesChanged(chatID uuid.UUID) {
	n.publish(MessagesTopic(chatID))
}

func (n *Notifier) publish(topic string) {
	msg := message.NewMessage(watermill.NewUUID(), nil)
	if err := n.pubSub.Publish(topic, msg); err != nil {
		n.logger.Error("Notifier", "Failed to publish change tick", map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		})
	}

	if n.rdb != nil {
		payload, _ := json.Marshal(map[string]string{"topic": topic})
		n.rdb.Publish(context.Background(), clusterChannel, payload)
	}
}

// Subscribe delivers one tick per change on topic until ctx is cancelled.
// The returned channel is closed when the subscription ends; no tick is ever
// delivered to an abandoned consumer.
func (n *Notifier) Subscribe(ctx context.Context, topic string) (<-chan struct{}, error) {
	messages, err := n.pubSub.Subscribe(ctx, topic)
	if err != nil {
		return nil, &apperr.SubscriptionError{Topic: topic, Err: err}
	}

	ticks := make(chan struct{}, 1)
	go func() {
		defer close(ticks)
		for msg := range messages {
			msg.Ack()
			select {
			case ticks <- struct{}{}:
			default:
				// A tick is already pending; snapshots are re-queried in
				// full, so conflating ticks loses nothing.
			}
		}
	}()
	return ticks, nil
}

// subscribeToRedis re-injects cluster ticks into the local bus. Locally
// originated ticks echo back once; subscribers re-query idempotently so the
// duplicate is harmless.
func (n *Notifier) subscribeToRedis() {
	ctx := context.Background()
	pubsub := n.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for msg := range ch {
		var payload struct {
			Topic string `json:"topic"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			n.logger.Warn("Notifier", "Cluster tick parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		tick := message.NewMessage(watermill.NewUUID(), nil)
		if err := n.pubSub.Publish(payload.Topic, tick); err != nil {
			n.logger.Error("Notifier", "Failed to relay cluster tick", map[string]interface{}{
				"topic": payload.Topic,
				"error": err.Error(),
			})
		}
	}
}

func (n *Notifier) Close() error {
	return n.pubSub.Close()
}
