package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/alfredjeanlab/odm/internal/events"
)

const (
	// historySize bounds the events kept for Last-Event-ID replay.
	historySize = 1000

	// watcherBuffer is the per-client queue length. A full queue drops events.
	watcherBuffer = 64

	keepaliveInterval = 15 * time.Second
)

// streamEvent is one published lifecycle event as sent to SSE clients.
type streamEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// Stream is an events.Publisher that fans lifecycle events out to
// server-sent-event clients and then forwards them to the next publisher.
type Stream struct {
	next   events.Publisher
	logger *zap.Logger

	mu       sync.RWMutex
	watchers map[*watcher]struct{}

	histMu  sync.Mutex
	seq     uint64
	history []streamEvent
	start   int
}

type watcher struct {
	patterns []string
	ch       chan streamEvent
}

var _ events.Publisher = (*Stream)(nil)

// NewStream returns a Stream forwarding to next. A nil next is a no-op.
func NewStream(next events.Publisher, logger *zap.Logger) *Stream {
	if next == nil {
		next = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		next:     next,
		logger:   logger,
		watchers: make(map[*watcher]struct{}),
	}
}

// Publish broadcasts event to matching watchers, then hands it to the next
// publisher.
func (s *Stream) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", topic, err)
	}
	s.broadcast(topic, data)
	return s.next.Publish(ctx, topic, event)
}

// Close closes the next publisher.
func (s *Stream) Close() error {
	return s.next.Close()
}

func (s *Stream) broadcast(topic string, data []byte) {
	s.histMu.Lock()
	s.seq++
	evt := streamEvent{ID: s.seq, Topic: topic, Data: data}
	if len(s.history) < historySize {
		s.history = append(s.history, evt)
	} else {
		s.history[s.start] = evt
		s.start = (s.start + 1) % historySize
	}
	s.histMu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for w := range s.watchers {
		if !w.matches(topic) {
			continue
		}
		select {
		case w.ch <- evt:
		default:
			s.logger.Debug("dropping event for slow stream client", zap.String("topic", topic))
		}
	}
}

func (s *Stream) watch(patterns []string) *watcher {
	w := &watcher{patterns: patterns, ch: make(chan streamEvent, watcherBuffer)}
	s.mu.Lock()
	s.watchers[w] = struct{}{}
	s.mu.Unlock()
	return w
}

func (s *Stream) unwatch(w *watcher) {
	s.mu.Lock()
	delete(s.watchers, w)
	s.mu.Unlock()
}

// since returns the buffered events newer than lastID, oldest first.
func (s *Stream) since(lastID uint64) []streamEvent {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	var out []streamEvent
	for i := range s.history {
		evt := s.history[(s.start+i)%len(s.history)]
		if evt.ID > lastID {
			out = append(out, evt)
		}
	}
	return out
}

func (w *watcher) matches(topic string) bool {
	if len(w.patterns) == 0 {
		return true
	}
	for _, p := range w.patterns {
		if topicMatches(p, topic) {
			return true
		}
	}
	return false
}

// topicMatches matches a dot-separated topic against a NATS-style pattern:
// "*" matches one segment and a trailing ">" matches one or more.
func topicMatches(pattern, topic string) bool {
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i == len(pat)-1 && i < len(top)
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

// ServeHTTP streams lifecycle events as text/event-stream. The "topics"
// query parameter takes a comma-separated list of patterns.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var patterns []string
	for _, p := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	wt := s.watch(patterns)
	defer s.unwatch(wt)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if last := r.Header.Get("Last-Event-ID"); last != "" {
		if id, err := strconv.ParseUint(last, 10, 64); err == nil {
			for _, evt := range s.since(id) {
				if wt.matches(evt.Topic) {
					writeStreamEvent(w, evt)
				}
			}
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-wt.ch:
			writeStreamEvent(w, evt)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeStreamEvent(w io.Writer, evt streamEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}
