// Package stream distributes decision events to multiple consumers.
package stream

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"upbit-trader/internal/models"
)

// Event is one published analysis result for a market.
type Event struct {
	Market   string
	Decision models.Decision
	Readings []models.IndicatorReading
	At       time.Time
}

// HubConfig holds configuration for the event hub.
type HubConfig struct {
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
	// SlowConsumerDropThreshold is the number of consecutive drops on one
	// subscriber before a warning is logged.
	SlowConsumerDropThreshold int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SubscriberBufferSize:      64,
		SlowConsumerDropThreshold: 10,
	}
}

// AllMarkets subscribes to events for every market.
const AllMarkets = "*"

// Hub fans decision events out to subscribers. Publishing never blocks:
// a subscriber whose buffer is full loses the event and the drop is
// counted instead.
type Hub struct {
	config HubConfig
	logger zerolog.Logger

	mu          sync.RWMutex
	subscribers map[string][]*subscriber
	closed      bool

	metricsMu       sync.Mutex
	eventsPublished uint64
	eventsDelivered uint64
	eventsDropped   uint64
}

type subscriber struct {
	id      string
	ch      chan Event
	dropped int
}

// Metrics is a snapshot of the hub's delivery counters.
type Metrics struct {
	Published uint64
	Delivered uint64
	Dropped   uint64
}

// NewHub creates a hub with default configuration.
func NewHub(logger zerolog.Logger) *Hub {
	return NewHubWithConfig(DefaultHubConfig(), logger)
}

// NewHubWithConfig creates a hub with custom configuration.
func NewHubWithConfig(config HubConfig, logger zerolog.Logger) *Hub {
	if config.SubscriberBufferSize <= 0 {
		config.SubscriberBufferSize = DefaultHubConfig().SubscriberBufferSize
	}
	return &Hub{
		config:      config,
		logger:      logger.With().Str("component", "stream").Logger(),
		subscribers: make(map[string][]*subscriber),
	}
}

// Publish delivers an event to every subscriber of its market and to
// wildcard subscribers. Safe for concurrent use.
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	targets := make([]*subscriber, 0, 4)
	targets = append(targets, h.subscribers[event.Market]...)
	if event.Market != AllMarkets {
		targets = append(targets, h.subscribers[AllMarkets]...)
	}
	h.mu.RUnlock()

	var delivered, dropped uint64
	for _, sub := range targets {
		select {
		case sub.ch <- event:
			delivered++
			sub.dropped = 0
		default:
			dropped++
			sub.dropped++
			if sub.dropped == h.config.SlowConsumerDropThreshold {
				h.logger.Warn().
					Str("subscriber", sub.id).
					Str("market", event.Market).
					Int("consecutive_drops", sub.dropped).
					Msg("slow consumer, dropping events")
			}
		}
	}

	h.metricsMu.Lock()
	h.eventsPublished++
	h.eventsDelivered += delivered
	h.eventsDropped += dropped
	h.metricsMu.Unlock()
}

// Subscribe returns a channel that receives events for a market. Pass
// AllMarkets to receive everything. The channel is closed by Close.
func (h *Hub) Subscribe(market string) <-chan Event {
	return h.SubscribeWithID(market, "")
}

// SubscribeWithID subscribes with an identifier used in slow-consumer logs.
func (h *Hub) SubscribeWithID(market, id string) <-chan Event {
	sub := &subscriber{id: id, ch: make(chan Event, h.config.SubscriberBufferSize)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub.ch
	}
	h.subscribers[market] = append(h.subscribers[market], sub)
	return sub.ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (h *Hub) Unsubscribe(market string, ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[market]
	for i, sub := range subs {
		if sub.ch == ch {
			close(sub.ch)
			h.subscribers[market] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subscribers[market]) == 0 {
		delete(h.subscribers, market)
	}
}

// SubscriberCount returns the number of subscribers for a market.
func (h *Hub) SubscriberCount(market string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[market])
}

// Metrics returns a snapshot of the delivery counters.
func (h *Hub) Metrics() Metrics {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	return Metrics{
		Published: h.eventsPublished,
		Delivered: h.eventsDelivered,
		Dropped:   h.eventsDropped,
	}
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for market, subs := range h.subscribers {
		for _, sub := range subs {
			close(sub.ch)
		}
		delete(h.subscribers, market)
	}
}
