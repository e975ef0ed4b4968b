package hub

import (
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"

	"floordash"
	"floordash/internal/logger"
)

// Wildcard subscribes a client to every event regardless of scope.
const Wildcard = "*"

const (
	defaultQueueCapacity = 64
	hubShardCount        = 16
)

// Hub fans events out to subscribed clients. Each client owns a bounded
// outbound queue; a slow consumer loses its oldest messages, never the
// producer's time. Delivery is best-effort by contract: a client that
// reconnects re-fetches authoritative state through the pull API.
type Hub struct {
	queueCap int
	log      *logger.Logger
	shards   [hubShardCount]*hubShard
}

type hubShard struct {
	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	id   string
	keys map[string]struct{}

	mu     sync.Mutex
	ch     chan floordash.Event
	closed bool
	drops  atomic.Uint64
}

// ClientStats is one client's delivery health, exposed for metrics.
type ClientStats struct {
	ClientID string   `json:"client_id"`
	Keys     []string `json:"keys"`
	Queued   int      `json:"queued"`
	Dropped  uint64   `json:"dropped"`
}

// New builds a hub. queueCap <= 0 falls back to the default capacity.
func New(queueCap int, log *logger.Logger) *Hub {
	if queueCap <= 0 {
		queueCap = defaultQueueCapacity
	}
	h := &Hub{queueCap: queueCap, log: log}
	for i := range h.shards {
		h.shards[i] = &hubShard{clients: make(map[string]*client)}
	}
	return h
}

// Subscribe registers a client for the given interest keys (line ids,
// equipment ids, or Wildcard) and returns its outbound channel. The channel
// is closed on Unsubscribe. Subscribing an existing client id replaces the
// old subscription.
func (h *Hub) Subscribe(clientID string, keys []string) <-chan floordash.Event {
	c := &client{
		id:   clientID,
		keys: make(map[string]struct{}, len(keys)),
		ch:   make(chan floordash.Event, h.queueCap),
	}
	for _, k := range keys {
		if k != "" {
			c.keys[k] = struct{}{}
		}
	}
	if len(c.keys) == 0 {
		c.keys[Wildcard] = struct{}{}
	}

	sh := h.shardFor(clientID)
	sh.mu.Lock()
	prev := sh.clients[clientID]
	sh.clients[clientID] = c
	sh.mu.Unlock()

	if prev != nil {
		prev.mu.Lock()
		if !prev.closed {
			prev.closed = true
			close(prev.ch)
		}
		prev.mu.Unlock()
	}

	if h.log != nil {
		h.log.Infow("hub_client_subscribed", "client", clientID, "keys", keys)
	}
	return c.ch
}

// Unsubscribe drops the client and discards its queue.
func (h *Hub) Unsubscribe(clientID string) {
	sh := h.shardFor(clientID)
	sh.mu.Lock()
	c, ok := sh.clients[clientID]
	if ok {
		delete(sh.clients, clientID)
	}
	sh.mu.Unlock()
	if !ok {
		return
	}

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
	c.mu.Unlock()

	if h.log != nil {
		h.log.Infow("hub_client_unsubscribed", "client", clientID,
			"dropped_total", c.drops.Load())
	}
}

// Publish enqueues the event for every matching subscriber. It never
// blocks: when a client's queue is full the oldest queued message is
// dropped and the client's drop counter incremented.
func (h *Hub) Publish(ev floordash.Event) {
	for _, sh := range h.shards {
		sh.mu.RLock()
		for _, c := range sh.clients {
			if c.matches(ev) {
				c.enqueue(ev)
			}
		}
		sh.mu.RUnlock()
	}
}

// Stats snapshots per-client queue depth and drop counters.
func (h *Hub) Stats() []ClientStats {
	var out []ClientStats
	for _, sh := range h.shards {
		sh.mu.RLock()
		for _, c := range sh.clients {
			keys := make([]string, 0, len(c.keys))
			for k := range c.keys {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			out = append(out, ClientStats{
				ClientID: c.id,
				Keys:     keys,
				Queued:   len(c.ch),
				Dropped:  c.drops.Load(),
			})
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

func (h *Hub) shardFor(clientID string) *hubShard {
	f := fnv.New32a()
	_, _ = f.Write([]byte(clientID))
	return h.shards[f.Sum32()%hubShardCount]
}

// matches applies the subscription scope: wildcard, line, or equipment.
func (c *client) matches(ev floordash.Event) bool {
	if _, ok := c.keys[Wildcard]; ok {
		return true
	}
	if ev.LineID != "" {
		if _, ok := c.keys[ev.LineID]; ok {
			return true
		}
	}
	if ev.EquipmentID != "" {
		if _, ok := c.keys[ev.EquipmentID]; ok {
			return true
		}
	}
	return false
}

// enqueue appends the event, evicting the oldest entry on overflow.
// The client lock serializes producers; only the consumer receives, so the
// retry send after an eviction cannot block.
func (c *client) enqueue(ev floordash.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for {
		select {
		case c.ch <- ev:
			return
		default:
		}
		select {
		case <-c.ch:
			c.drops.Add(1)
		default:
		}
	}
}
