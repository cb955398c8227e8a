package notify

import "sync"

// subscriberBuffer sizes each subscriber channel. A slow client that falls
// further behind than this misses pushes; the tray listing still has them.
const subscriberBuffer = 8

// Hub fans live notification payloads out to connected clients. A user may
// hold several subscriptions at once, one per open browser tab.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uint][]chan string
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[uint][]chan string)}
}

// Subscribe registers a channel for the user and returns it together with an
// unsubscribe function. The caller must call the unsubscribe function when
// the connection closes.
func (h *Hub) Subscribe(userID uint) (<-chan string, func()) {
	ch := make(chan string, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[userID] = append(h.subscribers[userID], ch)
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		channels := h.subscribers[userID]
		for i, candidate := range channels {
			if candidate == ch {
				h.subscribers[userID] = append(channels[:i], channels[i+1:]...)
				break
			}
		}
		if len(h.subscribers[userID]) == 0 {
			delete(h.subscribers, userID)
		}
	}

	return ch, unsubscribe
}

// Push delivers a payload to every subscription of the user. Sends never
// block; a full channel drops the payload.
func (h *Hub) Push(userID uint, payload string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers[userID] {
		select {
		case ch <- payload:
		default:
		}
	}
}
