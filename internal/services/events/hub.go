package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/common"
)

// ErrSendTimeout is reported when a subscriber does not accept a message within the write timeout
var ErrSendTimeout = errors.New("send timed out")

// Subscriber is one live push connection. Implementations must serialize
// their own writes; the hub may call Send from several goroutines.
type Subscriber interface {
	ID() string
	Send(ctx context.Context, data []byte) error
	Close() error
}

// Hub fans job updates out to every registered subscriber. A subscriber whose
// send fails or times out is removed and closed after the broadcast completes.
type Hub struct {
	mu           sync.RWMutex
	subscribers  map[Subscriber]struct{}
	writeTimeout time.Duration
	logger       arbor.ILogger
}

// DefaultWriteTimeout bounds each send when NewHub is given no positive timeout
const DefaultWriteTimeout = 5 * time.Second

func NewHub(writeTimeout time.Duration, logger arbor.ILogger) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Hub{
		subscribers:  make(map[Subscriber]struct{}),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Register adds a subscriber. It only receives messages broadcast after this call.
func (h *Hub) Register(sub Subscriber) {
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()

	h.logger.Debug().
		Str("subscriber", sub.ID()).
		Int("total", count).
		Msg("Subscriber registered")
}

// Unregister removes a subscriber. Unknown subscribers are ignored.
func (h *Hub) Unregister(sub Subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[sub]
	delete(h.subscribers, sub)
	count := len(h.subscribers)
	h.mu.Unlock()

	if ok {
		h.logger.Debug().
			Str("subscriber", sub.ID()).
			Int("remaining", count).
			Msg("Subscriber unregistered")
	}
}

// Count returns the number of registered subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Broadcast marshals message to JSON and sends it to all subscribers concurrently.
// It returns once every send has finished or timed out, and reports how many succeeded.
func (h *Hub) Broadcast(ctx context.Context, message interface{}) int {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal broadcast message")
		return 0
	}

	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return 0
	}

	var (
		wg       sync.WaitGroup
		failedMu sync.Mutex
		failed   []Subscriber
	)

	for _, sub := range targets {
		wg.Add(1)
		go func(sub Subscriber) {
			defer wg.Done()
			if err := h.send(ctx, sub, data); err != nil {
				h.logger.Warn().
					Err(err).
					Str("subscriber", sub.ID()).
					Msg("Failed to deliver update, dropping subscriber")
				failedMu.Lock()
				failed = append(failed, sub)
				failedMu.Unlock()
			}
		}(sub)
	}
	wg.Wait()

	if len(failed) > 0 {
		h.remove(failed)
	}

	return len(targets) - len(failed)
}

// send bounds a single delivery by the write timeout even if the subscriber
// ignores its context.
func (h *Hub) send(ctx context.Context, sub Subscriber, data []byte) error {
	sendCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer common.RecoverPanic(h.logger, "subscriber send "+sub.ID(), func(p interface{}) {
			errCh <- fmt.Errorf("send panicked: %v", p)
		})
		errCh <- sub.Send(sendCtx, data)
	}()

	select {
	case err := <-errCh:
		return err
	case <-sendCtx.Done():
		if errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			return ErrSendTimeout
		}
		return sendCtx.Err()
	}
}

func (h *Hub) remove(failed []Subscriber) {
	h.mu.Lock()
	for _, sub := range failed {
		delete(h.subscribers, sub)
	}
	remaining := len(h.subscribers)
	h.mu.Unlock()

	for _, sub := range failed {
		if err := sub.Close(); err != nil {
			h.logger.Debug().Err(err).Str("subscriber", sub.ID()).Msg("Error closing dropped subscriber")
		}
	}

	h.logger.Info().
		Int("dropped", len(failed)).
		Int("remaining", remaining).
		Msg("Pruned dead subscribers")
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.subscribers = make(map[Subscriber]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
}
