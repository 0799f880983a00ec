// Package sse streams flare and known-place changes to map clients.
package sse

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"
)

const (
	clientBuffer     = 64
	defaultFlush     = 2 * time.Second
	defaultHeartbeat = 30 * time.Second
)

// FlareChange describes a created, updated or deleted flare.
type FlareChange struct {
	Kind         string // "created", "updated" or "deleted"
	ID           string
	KnownPlaceID *string
}

type flarePayload struct {
	ID           string  `json:"id"`
	KnownPlaceID *string `json:"known_place_id"`
}

type mapPayload struct {
	KnownPlaceIDs []string `json:"known_place_ids"`
}

type placesPayload struct {
	Count int `json:"count"`
}

// Broker fans events out to SSE clients.
//
// All mutable state lives in a hub owned by the run goroutine. Public methods
// hand closures to that goroutine over ops; nothing else touches the hub.
//
// flare.* events are sent as soon as they arrive. map.updated and
// places.updated are coalesced: at most one of each per flush interval,
// with a trailing flush so the last change is never lost.
type Broker struct {
	heartbeat time.Duration

	ops  chan func(*hub)
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

type hub struct {
	interval time.Duration
	clients  map[chan []byte]struct{}

	// Pending coalesced state, reset by flush.
	mapDirty    bool
	places      map[string]struct{}
	syncPending bool
	synced      int

	lastFlush time.Time
	timer     *time.Timer
}

// NewBroker starts a broker that flushes coalesced events at most once per
// flushInterval.
func NewBroker(flushInterval time.Duration) *Broker {
	if flushInterval <= 0 {
		flushInterval = defaultFlush
	}
	b := &Broker{
		heartbeat: defaultHeartbeat,
		ops:       make(chan func(*hub)),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	h := &hub{
		interval: flushInterval,
		clients:  make(map[chan []byte]struct{}),
		places:   make(map[string]struct{}),
	}
	go b.run(h)
	return b
}

func (b *Broker) run(h *hub) {
	defer close(b.done)
	for {
		var fire <-chan time.Time
		if h.timer != nil {
			fire = h.timer.C
		}
		select {
		case <-b.quit:
			h.shutdown()
			return
		case op := <-b.ops:
			op(h)
		case now := <-fire:
			h.timer = nil
			h.flush(now)
		}
	}
}

// do runs op on the loop goroutine. It reports false once the broker is closed.
func (b *Broker) do(op func(*hub)) bool {
	select {
	case b.ops <- op:
		return true
	case <-b.done:
		return false
	}
}

// Close stops the loop and closes every subscriber channel. Safe to call twice.
func (b *Broker) Close() {
	b.once.Do(func() { close(b.quit) })
	<-b.done
}

// Subscribe registers a client. The channel is closed on Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if !b.do(func(h *hub) { h.clients[ch] = struct{}{} }) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	reply := make(chan int, 1)
	if !b.do(func(h *hub) { reply <- len(h.clients) }) {
		return 0
	}
	return <-reply
}

// PublishFlareChange broadcasts flare.<kind> and marks the map for refresh.
// Unknown kinds are ignored.
func (b *Broker) PublishFlareChange(c FlareChange) {
	switch c.Kind {
	case "created", "updated", "deleted":
	default:
		return
	}
	msg, err := frame("flare."+c.Kind, flarePayload{ID: c.ID, KnownPlaceID: c.KnownPlaceID})
	if err != nil {
		return
	}
	b.do(func(h *hub) {
		h.broadcast(msg)
		h.mapDirty = true
		if c.KnownPlaceID != nil {
			h.places[*c.KnownPlaceID] = struct{}{}
		}
		h.schedule(time.Now())
	})
}

// PublishPlacesSynced records that a seed sync imported n known places.
// Bursts of syncs collapse into one places.updated carrying the latest count.
func (b *Broker) PublishPlacesSynced(n int) {
	b.do(func(h *hub) {
		h.syncPending = true
		h.synced = n
		h.schedule(time.Now())
	})
}

// schedule flushes now if the interval has elapsed, or arms the trailing timer.
func (h *hub) schedule(now time.Time) {
	if h.timer != nil {
		return
	}
	if wait := h.interval - now.Sub(h.lastFlush); wait > 0 {
		h.timer = time.NewTimer(wait)
		return
	}
	h.flush(now)
}

func (h *hub) flush(now time.Time) {
	h.lastFlush = now
	if h.syncPending {
		if msg, err := frame("places.updated", placesPayload{Count: h.synced}); err == nil {
			h.broadcast(msg)
		}
		h.syncPending = false
	}
	if h.mapDirty {
		ids := slices.AppendSeq(make([]string, 0, len(h.places)), maps.Keys(h.places))
		slices.Sort(ids)
		if msg, err := frame("map.updated", mapPayload{KnownPlaceIDs: ids}); err == nil {
			h.broadcast(msg)
		}
		h.mapDirty = false
		clear(h.places)
	}
}

func (h *hub) broadcast(msg []byte) {
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// Slow client; drop rather than stall the loop.
		}
	}
}

func (h *hub) shutdown() {
	if h.timer != nil {
		h.timer.Stop()
	}
	for ch := range h.clients {
		close(ch)
	}
	clear(h.clients)
}

func frame(event string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", event, data), nil
}

// ServeHTTP streams events to one client (GET /api/events). A comment line is
// written every heartbeat so idle proxies keep the connection open.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_, err = w.Write([]byte(": ping\n\n"))
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, err = w.Write(msg)
		}
		if err != nil {
			return
		}
		flusher.Flush()
	}
}
