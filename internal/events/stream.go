package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// streamBacklog is the number of recent events kept for Last-Event-ID replay.
	streamBacklog = 256

	streamKeepalive = 15 * time.Second
)

type streamEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

type streamClient struct {
	topics []string
	ch     chan *streamEvent
}

// Stream is a Publisher that fans events out to server-sent-event clients.
// It keeps a small backlog so that reconnecting clients can resume from
// their Last-Event-ID.
type Stream struct {
	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	nextID  atomic.Uint64

	backlogMu sync.RWMutex
	backlog   [streamBacklog]streamEvent
	pos       int
	n         int

	keepalive time.Duration
}

// NewStream returns an empty Stream.
func NewStream() *Stream {
	return &Stream{
		clients:   make(map[*streamClient]struct{}),
		keepalive: streamKeepalive,
	}
}

// Publish encodes event and delivers it to every matching client.
func (s *Stream) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	s.broadcast(topic, data)
	return nil
}

// Close disconnects nothing; open streams end with their requests.
func (s *Stream) Close() error { return nil }

func (s *Stream) broadcast(topic string, data []byte) {
	evt := &streamEvent{ID: s.nextID.Add(1), Topic: topic, Data: data}

	s.backlogMu.Lock()
	s.backlog[s.pos] = *evt
	s.pos = (s.pos + 1) % streamBacklog
	if s.n < streamBacklog {
		s.n++
	}
	s.backlogMu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		if !c.matches(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
			// slow client, drop
		}
	}
}

func (s *Stream) subscribe(topics []string) *streamClient {
	c := &streamClient{topics: topics, ch: make(chan *streamEvent, 64)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	return c
}

func (s *Stream) unsubscribe(c *streamClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

// since returns the buffered events with ID > lastID, oldest first.
func (s *Stream) since(lastID uint64) []*streamEvent {
	s.backlogMu.RLock()
	defer s.backlogMu.RUnlock()

	var out []*streamEvent
	start := s.pos - s.n
	if start < 0 {
		start += streamBacklog
	}
	for i := range s.n {
		evt := s.backlog[(start+i)%streamBacklog]
		if evt.ID > lastID {
			out = append(out, &evt)
		}
	}
	return out
}

func (c *streamClient) matches(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, p := range c.topics {
		if MatchTopic(p, topic) {
			return true
		}
	}
	return false
}

// MatchTopic matches a dot-separated topic against a NATS-style pattern:
// "*" matches one segment and a trailing ">" matches one or more.
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pp := strings.Split(pattern, ".")
	tp := strings.Split(topic, ".")
	for i, p := range pp {
		if p == ">" {
			return i < len(tp)
		}
		if i >= len(tp) {
			return false
		}
		if p != "*" && p != tp[i] {
			return false
		}
	}
	return len(pp) == len(tp)
}

// ServeHTTP streams events as text/event-stream. The optional "topics"
// query parameter is a comma-separated list of patterns.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var topics []string
	for _, t := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}

	client := s.subscribe(topics)
	defer s.unsubscribe(client)
	s.serve(w, r, client)
}

// serve writes the Last-Event-ID replay and then the live events of an
// already subscribed client. Events published between subscribing and
// replaying are queued on the client as well as kept in the backlog, so
// live events at or below the last replayed ID are skipped.
func (s *Stream) serve(w http.ResponseWriter, r *http.Request, client *streamClient) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var lastSent uint64
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		if lastID, err := strconv.ParseUint(last, 10, 64); err == nil {
			lastSent = lastID
			for _, evt := range s.since(lastID) {
				if client.matches(evt.Topic) {
					writeStreamEvent(w, evt)
				}
				lastSent = evt.ID
			}
			flusher.Flush()
		}
	}

	keepalive := time.NewTicker(s.keepalive)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-client.ch:
			if evt.ID <= lastSent {
				continue
			}
			writeStreamEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeStreamEvent(w http.ResponseWriter, evt *streamEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}

// Multi publishes every event to each of its publishers in order. The first
// error is returned after all publishers have been tried.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, topic string, event any) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, topic, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
