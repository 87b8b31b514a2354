// Package pubsub implements the in-process topic registry used to fan
// bill snapshots out to realtime sessions.
//
// Topics are created on first subscribe and removed when the last
// subscriber leaves. Publishing never blocks: each subscriber owns a
// buffered channel and a frame is dropped for a subscriber whose buffer is
// full. A session that misses a frame recovers on its next connect, which
// always starts with a fresh snapshot.
package pubsub

import (
	"fmt"
	"sync"
)

// DefaultBufferSize is the per-subscriber frame buffer used by NewHub.
const DefaultBufferSize = 16

// BillTopic is the topic carrying snapshots of one bill, subscribed by
// that bill's detail-view sessions.
func BillTopic(billID string) string {
	return fmt.Sprintf("bill:%s", billID)
}

// UserBillsTopic is the topic carrying snapshots of every bill a user
// participates in, subscribed by that user's bill-list sessions.
func UserBillsTopic(userID string) string {
	return fmt.Sprintf("user:%s:bills", userID)
}

// Subscription is one subscriber's handle on a topic.
type Subscription struct {
	topic string
	ch    chan []byte
}

// Topic returns the topic this subscription is attached to.
func (s *Subscription) Topic() string {
	return s.topic
}

// Messages returns the channel frames are delivered on. The channel is
// closed when the subscription is removed from the hub.
func (s *Subscription) Messages() <-chan []byte {
	return s.ch
}

// Hub is the process-wide topic registry. Connect/disconnect mutate it,
// fan-out reads it; an RWMutex keeps publishes concurrent with each other.
type Hub struct {
	mu      sync.RWMutex
	bufSize int
	topics  map[string]map[*Subscription]struct{}
}

// NewHub creates an empty hub with the default subscriber buffer size.
func NewHub() *Hub {
	return NewHubWithBuffer(DefaultBufferSize)
}

// NewHubWithBuffer creates an empty hub with the given per-subscriber
// frame buffer size.
func NewHubWithBuffer(bufSize int) *Hub {
	return &Hub{
		bufSize: bufSize,
		topics:  make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe attaches a new subscriber to the topic, creating the topic if
// this is its first subscriber.
func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan []byte, h.bufSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches the subscriber and closes its channel. The topic is
// removed when its last subscriber leaves so the registry does not grow
// with dead topics. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[sub.topic]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(h.topics, sub.topic)
	}
}

// Publish delivers the frame to every current subscriber of the topic.
// Delivery is best-effort and at-most-once: a subscriber with a full
// buffer is skipped. Returns the delivered and dropped counts.
func (h *Hub) Publish(topic string, frame []byte) (delivered, dropped int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.topics[topic] {
		select {
		case sub.ch <- frame:
			delivered++
		default:
			dropped++
		}
	}
	return delivered, dropped
}

// Subscribers returns the current subscriber count of the topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
