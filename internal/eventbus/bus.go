// Package eventbus implements the per-session Event Bus (spec.md §4.4): a
// bounded replay buffer plus a lossy broadcast, so a reconnecting SSE client
// can catch up on missed events by last-seen id and then continue live.
package eventbus

import (
	"sync"
	"time"

	"github.com/agentcore/core/pkg/models"
)

// DefaultHistorySize is the replay buffer depth (spec.md §4.4: "N ≈ 512").
const DefaultHistorySize = 512

// DefaultSubscriberBuffer is the channel depth for a live subscription.
// A slow subscriber that fills this buffer is dropped (spec.md §4.4
// "Backpressure": producers are never blocked).
const DefaultSubscriberBuffer = 64

// Bus owns one broadcast channel, replay ring buffer, and monotone counter
// per session (spec.md §4.4). The zero value is not usable; use New.
type Bus struct {
	historySize int
	subBuffer   int

	mu   sync.Mutex
	bus  map[string]*sessionBus
}

// New creates an Event Bus with the given replay depth and subscriber
// channel depth. A zero/negative value falls back to the package defaults.
func New(historySize, subBuffer int) *Bus {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	if subBuffer <= 0 {
		subBuffer = DefaultSubscriberBuffer
	}
	return &Bus{
		historySize: historySize,
		subBuffer:   subBuffer,
		bus:         make(map[string]*sessionBus),
	}
}

// sessionBus is the per-session state: a monotone counter, a bounded ring
// buffer of the last N records, and the set of live subscriber channels.
type sessionBus struct {
	mu   sync.Mutex
	next uint64
	ring []models.EventRecord // append-only view; trimmed to historySize
	subs map[*Subscription]struct{}
	done bool
}

// Subscription is a live, ordered view of a session's events starting
// immediately after the history slice returned by SubscribeWithHistory.
type Subscription struct {
	C      chan models.EventRecord
	Lagged chan struct{} // closed once, if this subscriber was dropped for lagging

	bus       *sessionBus
	closeOnce sync.Once
}

// Close unregisters the subscription. Idempotent.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
	})
}

func (b *Bus) sessionFor(sessionID string) *sessionBus {
	b.mu.Lock()
	defer b.mu.Unlock()
	sb, ok := b.bus[sessionID]
	if !ok {
		sb = &sessionBus{subs: make(map[*Subscription]struct{})}
		b.bus[sessionID] = sb
	}
	return sb
}

// Publish assigns the next monotone id to the event, appends it to the
// replay buffer, and broadcasts it to every live subscriber (spec.md §4.4
// "publish"). A publish after Done has already closed the session is
// dropped silently (callers should stop publishing once they observe Done,
// this is a defensive backstop against late arrivals).
func (b *Bus) Publish(sessionID string, event models.Event) models.EventRecord {
	sb := b.sessionFor(sessionID)

	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.done {
		return models.EventRecord{}
	}

	sb.next++
	record := models.EventRecord{
		ID:        sb.next,
		SessionID: sessionID,
		Event:     event,
		Time:      time.Now(),
	}

	sb.ring = append(sb.ring, record)
	if len(sb.ring) > b.historySize {
		sb.ring = sb.ring[len(sb.ring)-b.historySize:]
	}

	if record.IsDone() {
		sb.done = true
	}

	for sub := range sb.subs {
		select {
		case sub.C <- record:
		default:
			// Slow subscriber: drop from the live set, signal Lagged once,
			// and close its channel so the reader's range loop exits.
			delete(sb.subs, sub)
			closeLagged(sub)
			close(sub.C)
		}
	}
	if record.IsDone() {
		for sub := range sb.subs {
			delete(sb.subs, sub)
			close(sub.C)
		}
	}

	return record
}

func closeLagged(sub *Subscription) {
	select {
	case <-sub.Lagged:
	default:
		close(sub.Lagged)
	}
}

// SubscribeWithHistory returns every buffered record with id strictly
// greater than lastEventID (or the whole buffer if lastEventID is nil),
// plus a fresh subscription that will receive events published after this
// call (spec.md §4.4). Callers must drain the returned history slice
// before reading from the subscription to avoid missing or duplicating
// events at the boundary.
func (b *Bus) SubscribeWithHistory(sessionID string, lastEventID *uint64) ([]models.EventRecord, *Subscription) {
	sb := b.sessionFor(sessionID)

	sb.mu.Lock()
	defer sb.mu.Unlock()

	var history []models.EventRecord
	if lastEventID == nil {
		history = append(history, sb.ring...)
	} else {
		for _, r := range sb.ring {
			if r.ID > *lastEventID {
				history = append(history, r)
			}
		}
	}

	sub := &Subscription{
		C:      make(chan models.EventRecord, b.subBuffer),
		Lagged: make(chan struct{}),
		bus:    sb,
	}

	if sb.done {
		// The session already terminated; there is nothing further to
		// subscribe to. Close the channel immediately so a range loop
		// over it returns right away, after the caller drains history.
		close(sub.C)
		return history, sub
	}

	sb.subs[sub] = struct{}{}
	return history, sub
}

// Close tears down all bookkeeping for a session (e.g. on session delete).
// Live subscribers are closed without a Done record.
func (b *Bus) Close(sessionID string) {
	b.mu.Lock()
	sb, ok := b.bus[sessionID]
	if ok {
		delete(b.bus, sessionID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	sb.mu.Lock()
	defer sb.mu.Unlock()
	for sub := range sb.subs {
		delete(sb.subs, sub)
		close(sub.C)
	}
	sb.done = true
}
