package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// Event types pushed to subscribers.
const (
	EventNewReport         = "new_report"
	EventReportUpdated     = "report_updated"
	EventReportVerified    = "report_verified"
	EventReportConfirmed   = "report_confirmed"
	EventReportUnconfirmed = "report_unconfirmed"
	EventClustersRebuilt   = "clusters_rebuilt"
)

// RedisChannel is the Redis PUBLISH channel mirroring every event for
// external consumers (other instances, push gateways).
const RedisChannel = "crisispulse:events"

// Event is one derived-state change. Data is a JSON-ready payload.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Subscriber receives events on C until Unsubscribe is called. Delivery is
// fire-and-forget: a subscriber whose buffer is full misses the event and is
// expected to recover via a full read.
type Subscriber struct {
	C  chan Event
	id uint64
}

// mirrorBufferSize is the backlog of events waiting for the Redis mirror. A
// full backlog drops the newest event rather than stall a publisher.
const mirrorBufferSize = 256

// Notifier fans out change events to in-process subscribers and mirrors them
// to Redis. It never blocks a mutation: subscriber sends are non-blocking and
// the Redis PUBLISH runs on a background goroutine.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[uint64]*Subscriber
	nextID      uint64
	bufferSize  int
	redisClient *redis.Client
	mirror      chan Event
}

// NewNotifier creates a notifier. redisClient may be nil, in which case
// events stay in-process only.
func NewNotifier(bufferSize int, redisClient *redis.Client) *Notifier {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	n := &Notifier{
		subscribers: make(map[uint64]*Subscriber),
		bufferSize:  bufferSize,
		redisClient: redisClient,
	}
	if redisClient != nil {
		n.mirror = make(chan Event, mirrorBufferSize)
		go n.mirrorLoop()
	}
	return n
}

// mirrorLoop drains queued events into Redis PUBLISH. A single drain
// goroutine keeps the mirror in publish order.
func (n *Notifier) mirrorLoop() {
	for event := range n.mirror {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Errorf("[Notify] marshal event %s: %v", event.Type, err)
			continue
		}
		if err := n.redisClient.Publish(context.Background(), RedisChannel, payload).Err(); err != nil {
			log.Warnf("[Notify] redis publish %s: %v", event.Type, err)
		}
	}
}

// Subscribe registers a new subscriber.
func (n *Notifier) Subscribe() *Subscriber {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	sub := &Subscriber{
		C:  make(chan Event, n.bufferSize),
		id: n.nextID,
	}
	n.subscribers[sub.id] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// after the subscriber's connection is already gone.
func (n *Notifier) Unsubscribe(sub *Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.subscribers[sub.id]; !ok {
		return
	}
	delete(n.subscribers, sub.id)
	close(sub.C)
}

// SubscriberCount returns the number of connected subscribers.
func (n *Notifier) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subscribers)
}

// Publish delivers the event to every connected subscriber without blocking
// and hands it to the Redis mirror. Slow subscribers simply miss the event;
// Publish itself never touches the network.
func (n *Notifier) Publish(event Event) {
	n.mu.RLock()
	for _, sub := range n.subscribers {
		select {
		case sub.C <- event:
		default:
			// subscriber buffer full, drop for this subscriber
		}
	}
	n.mu.RUnlock()

	if n.mirror == nil {
		return
	}
	select {
	case n.mirror <- event:
	default:
		log.Warnf("[Notify] redis mirror backlog full, dropping %s", event.Type)
	}
}

// Global notifier wiring, initialized once at boot.
var (
	globalNotifier *Notifier
	notifierOnce   sync.Once
)

// Setup initializes the global notifier.
func Setup(bufferSize int, redisClient *redis.Client) *Notifier {
	notifierOnce.Do(func() {
		globalNotifier = NewNotifier(bufferSize, redisClient)
	})
	return globalNotifier
}

// Get returns the global notifier, initializing a Redis-less one if Setup
// was never called (tests).
func Get() *Notifier {
	notifierOnce.Do(func() {
		globalNotifier = NewNotifier(0, nil)
	})
	return globalNotifier
}
