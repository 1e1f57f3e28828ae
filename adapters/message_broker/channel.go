package message_broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/muhammadumair29/multimodal-ai-chatbot/domain"
	"github.com/muhammadumair29/multimodal-ai-chatbot/utils/log"
	"go.uber.org/zap"
)

const defaultBuffer = 100

type subscription struct {
	routingKey string
	ch         chan domain.Envelope
}

// ChannelMessageBroker implements MessageBroker using Go channels. Every
// subscriber gets its own buffered channel; a full subscriber loses the
// message instead of blocking the publisher.
type ChannelMessageBroker struct {
	topics map[string][]*subscription
	mu     sync.RWMutex
	closed bool
	buffer int
}

// NewChannelMessageBroker creates a new channel-based message broker
func NewChannelMessageBroker() *ChannelMessageBroker {
	return &ChannelMessageBroker{
		topics: make(map[string][]*subscription),
		buffer: defaultBuffer,
	}
}

// Publish fans message out to the matching subscribers of topic.
func (b *ChannelMessageBroker) Publish(ctx context.Context, topic string, routingKey string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("message broker is closed")
	}

	msg := domain.Envelope{
		Topic:      topic,
		RoutingKey: routingKey,
		Payload:    message,
		Timestamp:  time.Now(),
	}

	delivered := 0
	for _, sub := range b.topics[topic] {
		if sub.routingKey != "" && sub.routingKey != routingKey {
			continue
		}
		select {
		case sub.ch <- msg:
			delivered++
		default:
			log.WithCtx(ctx).Warn("⚠️ Subscriber channel is full, dropping message",
				zap.String("topic", topic),
				zap.String("routingKey", routingKey))
		}
	}

	log.WithCtx(ctx).Debug("📤 Message published to topic",
		zap.String("topic", topic),
		zap.String("routingKey", routingKey),
		zap.Int("payload_size", len(message)),
		zap.Int("delivered", delivered))
	return nil
}

// Subscribe registers a new subscriber on topic.
func (b *ChannelMessageBroker) Subscribe(ctx context.Context, topic string, routingKey string) (<-chan domain.Envelope, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("message broker is closed")
	}

	sub := &subscription{
		routingKey: routingKey,
		ch:         make(chan domain.Envelope, b.buffer),
	}
	b.topics[topic] = append(b.topics[topic], sub)

	go func() {
		<-ctx.Done()
		b.unsubscribe(topic, sub)
	}()

	log.WithCtx(ctx).Info("📡 Subscribed to topic", zap.String("topic", topic), zap.String("routingKey", routingKey))
	return sub.ch, nil
}

func (b *ChannelMessageBroker) unsubscribe(topic string, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, s := range subs {
		if s != sub {
			continue
		}
		b.topics[topic] = append(subs[:i], subs[i+1:]...)
		if len(b.topics[topic]) == 0 {
			delete(b.topics, topic)
		}
		close(sub.ch)
		return
	}
}

// Close closes the message broker and all subscriber channels
func (b *ChannelMessageBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true

	for topic, subs := range b.topics {
		for _, sub := range subs {
			close(sub.ch)
		}
		log.With(zap.String("topic", topic)).Debug("🔒 Closed topic subscribers", zap.Int("count", len(subs)))
	}

	b.topics = make(map[string][]*subscription)

	log.With().Info("🔒 Message broker closed")
	return nil
}

// SubscriberCount returns the number of live subscribers on topic.
func (b *ChannelMessageBroker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// IsClosed returns whether the broker is closed
func (b *ChannelMessageBroker) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
