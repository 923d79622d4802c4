// Package events is the signal bus the adapters publish on.
//
// Delivery is synchronous: Emit runs every handler inline on the
// emitting goroutine before returning, so subscribers observe signals
// in emission order. Handlers must not block; anything slow belongs on
// the subscriber's own goroutine.
package events

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/perchbrowser/perch/internal/logging"
)

// HandlerFunc is the untyped form a handler is stored as.
type HandlerFunc func(any) error

// Option configures a Bus.
type Option func(*busConfig)

type busConfig struct {
	logger *logging.Logger
}

// WithLogger routes handler errors to the given logger.
func WithLogger(logger *logging.Logger) Option {
	return func(cfg *busConfig) {
		cfg.logger = logger
	}
}

// Subscription is a handler attached to a topic. Unsubscribe detaches
// it; it is safe to call more than once.
type Subscription struct {
	Topic       string
	ID          string
	handler     HandlerFunc
	Unsubscribe func()
}

type subscriberMap map[string]map[string]Subscription

// Bus fans emitted values out to topic subscribers.
type Bus struct {
	subscribers atomic.Pointer[subscriberMap]
	nextSubID   int64
	closed      atomic.Bool
	config      busConfig
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	cfg := busConfig{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Bus{config: cfg}
	empty := make(subscriberMap)
	b.subscribers.Store(&empty)
	return b
}

// Emit delivers value to every subscriber of topic, inline. Emitting on
// a closed bus is a no-op.
func Emit[T any](bus *Bus, topic string, value T) {
	if bus.closed.Load() {
		return
	}

	subs := bus.subscribers.Load()
	topicSubs, ok := (*subs)[topic]
	if !ok {
		return
	}
	for _, sub := range topicSubs {
		if err := sub.handler(value); err != nil {
			bus.config.logger.Debug("event handler error",
				zap.String("topic", topic),
				zap.String("subscription", sub.ID),
				zap.Error(err))
		}
	}
}

// Subscribe attaches a typed handler to topic. Emissions whose payload
// is not a T are reported as handler errors, not delivered.
func Subscribe[T any](bus *Bus, topic string, handler func(T) error) Subscription {
	wrapped := HandlerFunc(func(data any) error {
		typed, ok := data.(T)
		if !ok {
			return fmt.Errorf("topic %s: payload is %T, subscriber wants %T", topic, data, *new(T))
		}
		return handler(typed)
	})

	id := fmt.Sprintf("%s-%d", topic, atomic.AddInt64(&bus.nextSubID, 1))
	sub := Subscription{
		Topic:   topic,
		ID:      id,
		handler: wrapped,
	}
	sub.Unsubscribe = func() {
		bus.removeSubscription(topic, id)
	}

	bus.addSubscription(sub)
	return sub
}

// AbortChannel returns a channel that is closed the first time any of
// the topics fires. The returned cancel func detaches the underlying
// subscriptions; call it once the channel is no longer needed.
func AbortChannel(bus *Bus, topics ...string) (<-chan struct{}, func()) {
	ch := make(chan struct{})
	var once sync.Once

	subs := make([]Subscription, 0, len(topics))
	for _, topic := range topics {
		subs = append(subs, Subscribe(bus, topic, func(any) error {
			once.Do(func() { close(ch) })
			return nil
		}))
	}

	cancel := func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}
	return ch, cancel
}

// Close makes every future Emit a no-op. Idempotent.
func (b *Bus) Close() {
	b.closed.Store(true)
}

// addSubscription installs sub using copy-on-write.
func (b *Bus) addSubscription(sub Subscription) {
	for {
		oldSubs := b.subscribers.Load()
		newSubs := copySubscribers(*oldSubs)

		if _, ok := newSubs[sub.Topic]; !ok {
			newSubs[sub.Topic] = make(map[string]Subscription)
		}
		newSubs[sub.Topic][sub.ID] = sub

		if b.subscribers.CompareAndSwap(oldSubs, &newSubs) {
			return
		}
	}
}

// removeSubscription detaches by id using copy-on-write.
func (b *Bus) removeSubscription(topic, id string) {
	for {
		oldSubs := b.subscribers.Load()
		topicSubs, ok := (*oldSubs)[topic]
		if !ok {
			return
		}
		if _, ok := topicSubs[id]; !ok {
			return
		}

		newSubs := copySubscribers(*oldSubs)
		delete(newSubs[topic], id)
		if len(newSubs[topic]) == 0 {
			delete(newSubs, topic)
		}

		if b.subscribers.CompareAndSwap(oldSubs, &newSubs) {
			return
		}
	}
}

func copySubscribers(original subscriberMap) subscriberMap {
	cp := make(subscriberMap, len(original))
	for topic, topicSubs := range original {
		cp[topic] = make(map[string]Subscription, len(topicSubs))
		for id, sub := range topicSubs {
			cp[topic][id] = sub
		}
	}
	return cp
}
