package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"kiro-console/internal/events"
	"kiro-console/internal/monitoring"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	defaultHistoryCap     = 500
	defaultMaxConnections = 50
	clientSendBuffer      = 64
)

// ErrMaxConnectionsReached is returned when the stream is full.
var ErrMaxConnectionsReached = errors.New("maximum notification streams reached")

// StreamMessage is one hub event as seen by stream and history readers.
type StreamMessage struct {
	ID        uint64            `json:"id"`
	Topic     string            `json:"topic"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   any               `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type streamClient struct {
	conn      *websocket.Conn
	send      chan StreamMessage
	connected time.Time
	closeOnce sync.Once
}

func (c *streamClient) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Stream fans hub events out to websocket clients and keeps a bounded
// history that pollers read with a cursor.
type Stream struct {
	mu             sync.RWMutex
	clients        map[*streamClient]struct{}
	maxConnections int

	historyMu  sync.RWMutex
	history    []StreamMessage
	historyCap int
	seq        atomic.Uint64

	unsubscribe func()
}

// NewStream builds an empty stream. Zero limits take defaults.
func NewStream(historyCap, maxConnections int) *Stream {
	if historyCap <= 0 {
		historyCap = defaultHistoryCap
	}
	if maxConnections <= 0 {
		maxConnections = defaultMaxConnections
	}
	return &Stream{
		clients:        make(map[*streamClient]struct{}),
		maxConnections: maxConnections,
		history:        make([]StreamMessage, 0, historyCap),
		historyCap:     historyCap,
	}
}

// Attach subscribes the stream to every console topic on hub.
func (s *Stream) Attach(hub *events.Hub) {
	s.unsubscribe = hub.SubscribeAll(events.AllTopics, s.handle)
}

func (s *Stream) handle(_ context.Context, ev events.Event) {
	msg := StreamMessage{
		ID:        s.seq.Add(1),
		Topic:     ev.Topic,
		Timestamp: ev.Timestamp,
		Payload:   ev.Payload,
		Metadata:  ev.Metadata,
	}
	s.appendHistory(msg)
	s.broadcast(msg)
}

// broadcast never blocks the publisher; a client whose buffer is full is
// dropped and has to reconnect and catch up from history.
func (s *Stream) broadcast(msg StreamMessage) {
	var slow []*streamClient
	s.mu.RLock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	s.mu.RUnlock()
	for _, c := range slow {
		log.WithField("remote", c.conn.RemoteAddr().String()).Warn("notification stream client too slow, dropping")
		s.remove(c)
	}
}

func (s *Stream) add(conn *websocket.Conn) (*streamClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) >= s.maxConnections {
		log.Warnf("notification stream limit reached (%d), rejecting new connection", s.maxConnections)
		return nil, ErrMaxConnectionsReached
	}
	c := &streamClient{conn: conn, send: make(chan StreamMessage, clientSendBuffer), connected: time.Now()}
	s.clients[c] = struct{}{}
	monitoring.NotificationStreams.Set(float64(len(s.clients)))
	log.Infof("notification stream connected (total: %d)", len(s.clients))
	return c, nil
}

func (s *Stream) remove(c *streamClient) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	n := len(s.clients)
	s.mu.Unlock()
	if !ok {
		return
	}
	c.close()
	monitoring.NotificationStreams.Set(float64(n))
	log.WithField("connected_for", time.Since(c.connected).Round(time.Second).String()).Infof("notification stream disconnected (remaining: %d)", n)
}

// Count returns the number of connected clients.
func (s *Stream) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close detaches from the hub and disconnects every client.
func (s *Stream) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.mu.Lock()
	clients := make([]*streamClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		s.remove(c)
	}
}

func (s *Stream) appendHistory(msg StreamMessage) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.history = append(s.history, msg)
	if len(s.history) > s.historyCap {
		excess := len(s.history) - s.historyCap
		s.history = append([]StreamMessage(nil), s.history[excess:]...)
	}
}

// FetchSince returns messages newer than cursor, at most limit of them, the
// cursor to pass next time and whether more are waiting. Cursor 0 returns
// the newest limit messages.
func (s *Stream) FetchSince(cursor uint64, limit int) ([]StreamMessage, uint64, bool) {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > s.historyCap {
		limit = s.historyCap
	}
	total := len(s.history)
	if total == 0 {
		return []StreamMessage{}, cursor, false
	}

	start := 0
	if cursor == 0 {
		if total > limit {
			start = total - limit
		}
	} else {
		start = total
		for i, msg := range s.history {
			if msg.ID > cursor {
				start = i
				break
			}
		}
		if start >= total {
			return []StreamMessage{}, cursor, false
		}
	}

	end := start + limit
	if end > total {
		end = total
	}
	out := make([]StreamMessage, end-start)
	copy(out, s.history[start:end])
	return out, out[len(out)-1].ID, end < total
}
