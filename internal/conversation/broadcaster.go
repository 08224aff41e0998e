// ABOUTME: In-memory fan-out broadcaster delivering gateway activities to user-facing subscribers.
// ABOUTME: Publishes activities to all subscribers of a conversation id (SSE clients, tests).

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/skill-gateway/internal/activity"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Broadcaster provides in-memory pub/sub for outbound activities. Subscribers
// register for a conversation id and receive every activity the gateway sends
// to that conversation's user. This is the delivery half of the transport
// collaborator: the router talks to it through the Responder interface.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *activity.Activity // conversationID -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan *activity.Activity),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for activities on the given conversation.
// Returns a channel that receives activities and a subscription ID for later
// unsubscription. The subscription is automatically cleaned up when ctx is
// cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, conversationID string) (<-chan *activity.Activity, string) {
	subID := uuid.New().String()
	ch := make(chan *activity.Activity, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[conversationID]; !ok {
		b.subscribers[conversationID] = make(map[string]chan *activity.Activity)
	}
	b.subscribers[conversationID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added",
		"conversation_id", conversationID,
		"sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(conversationID, subID)
	}()

	return ch, subID
}

// Publish sends an activity to all subscribers of the given conversation.
// Non-blocking: activities are dropped for subscribers whose channels are full.
func (b *Broadcaster) Publish(conversationID string, act *activity.Activity) {
	b.mu.RLock()
	subs, ok := b.subscribers[conversationID]
	if !ok || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}

	// Copy subscriber channels under read lock to avoid holding lock during sends
	targets := make([]chan *activity.Activity, 0, len(subs))
	for _, ch := range subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- act:
			// Sent
		default:
			// Subscriber channel full — drop activity for this subscriber
			b.logger.Debug("dropped activity for slow subscriber",
				"conversation_id", conversationID,
				"activity_id", act.ID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(conversationID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[conversationID]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	// Clean up empty conversation entries
	if len(subs) == 0 {
		delete(b.subscribers, conversationID)
	}

	b.logger.Debug("subscriber removed",
		"conversation_id", conversationID,
		"sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for convID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, convID)
	}

	b.logger.Debug("broadcaster closed")
}
