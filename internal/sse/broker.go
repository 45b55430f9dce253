// Package sse streams vault rescan notifications to browsers as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event types sent to clients.
const (
	EventRescanned    = "vault.rescanned"
	EventNoteChanged  = "note.changed"
	EventGraphUpdated = "graph.updated"
)

const (
	clientBuffer = 64
	historySize  = 256
)

// Event is one notification. Data is sent JSON-encoded.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type message struct {
	id  uint64
	raw []byte
}

type subscription struct {
	ch     chan []byte
	lastID uint64
}

// Broker fans events out to connected clients. Every event gets a
// sequence id and the most recent ones are kept, so a client reconnecting
// with Last-Event-ID receives what it missed.
//
// A single loop goroutine owns the client set, the sequence counter and the
// history; public methods talk to it over channels.
type Broker struct {
	graphMin  time.Duration
	keepAlive time.Duration
	logger    *slog.Logger

	// lastGraph holds the unix nanos of the last graph.updated event.
	lastGraph atomic.Int64

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan []Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the broker logger. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) {
		b.logger = l
	}
}

// WithKeepAlive sets how often idle streams receive a comment line.
// Zero disables keep-alives.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) {
		b.keepAlive = d
	}
}

// NewBroker creates a broker that emits graph.updated at most once per
// graphThrottle.
func NewBroker(graphThrottle time.Duration, opts ...Option) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}

	b := &Broker{
		graphMin:      graphThrottle,
		keepAlive:     30 * time.Second,
		logger:        slog.New(slog.DiscardHandler),
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan []Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	history := make([]message, 0, historySize)
	var seq uint64

	send := func(ch chan []byte, raw []byte) {
		select {
		case ch <- raw:
		default:
			// Slow client; drop rather than stall every other stream.
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = struct{}{}
			if sub.lastID == 0 {
				continue
			}
			for _, m := range history {
				if m.id > sub.lastID {
					send(sub.ch, m.raw)
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case events := <-b.publishCh:
			for _, ev := range events {
				payload, err := json.Marshal(ev.Data)
				if err != nil {
					b.logger.Warn("sse: encode event failed",
						slog.String("type", ev.Type),
						slog.String("error", err.Error()))
					continue
				}
				seq++
				m := message{id: seq, raw: []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, ev.Type, payload))}
				if len(history) == historySize {
					copy(history, history[1:])
					history = history[:historySize-1]
				}
				history = append(history, m)
				for ch := range clients {
					send(ch, m.raw)
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client. A non-zero lastID replays retained events
// newer than it.
func (b *Broker) Subscribe(lastID uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, lastID: lastID}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends events to every client, in order and without interleaving
// with other batches.
func (b *Broker) Publish(events ...Event) {
	if b.closed.Load() || len(events) == 0 {
		return
	}
	select {
	case b.publishCh <- events:
	case <-b.stopped:
	}
}

// PublishRescan announces a completed rescan, then one note.changed event
// per changed path and, when anything changed, a throttled graph.updated.
func (b *Broker) PublishRescan(summary any, changed []string) {
	events := make([]Event, 0, len(changed)+2)
	events = append(events, Event{Type: EventRescanned, Data: summary})
	for _, p := range changed {
		events = append(events, Event{Type: EventNoteChanged, Data: map[string]string{"path": p}})
	}
	if len(changed) > 0 && b.graphDue(time.Now()) {
		events = append(events, Event{Type: EventGraphUpdated, Data: map[string]int{"changed": len(changed)}})
	}
	b.Publish(events...)
}

// graphDue reports whether a graph.updated event may be sent at now and,
// if so, records it.
func (b *Broker) graphDue(now time.Time) bool {
	for {
		last := b.lastGraph.Load()
		if last != 0 && now.Sub(time.Unix(0, last)) < b.graphMin {
			return false
		}
		if b.lastGraph.CompareAndSwap(last, now.UnixNano()) {
			return true
		}
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(lastID)
	defer b.Unsubscribe(ch)

	b.logger.Debug("sse: client connected",
		slog.String("remote", r.RemoteAddr),
		slog.Int("clients", b.ClientCount()))

	var tick <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		tick = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		case <-tick:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		}
	}
}
