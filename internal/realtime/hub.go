package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"talentflow/internal/apperrors"
	"talentflow/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Broadcaster is what the mutation services publish through.
type Broadcaster interface {
	Publish(ctx context.Context, event Event)
}

const sessionBuffer = 64

// Session is one connected client subscribed to a tenant channel.
type Session struct {
	ID       string
	TenantID uuid.UUID
	send     chan []byte
}

// Receive returns the channel the session's writer pump drains.
func (s *Session) Receive() <-chan []byte {
	return s.send
}

// Hub is the process-local subscriber registry: tenant channel to session
// set. It is an injected service with an explicit lifecycle so test
// instances run in isolation. With a backplane attached, events reach
// sessions connected to other processes too.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]map[string]*Session

	originID  string
	backplane Backplane
	metrics   *metrics.Metrics
	log       *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(backplane Backplane, m *metrics.Metrics, log *zap.Logger) *Hub {
	return &Hub{
		sessions:  make(map[uuid.UUID]map[string]*Session),
		originID:  uuid.NewString(),
		backplane: backplane,
		metrics:   m,
		log:       log,
	}
}

// Start begins draining the backplane, if one is attached.
func (h *Hub) Start(ctx context.Context) error {
	if h.backplane == nil {
		return nil
	}

	ctx, h.cancel = context.WithCancel(ctx)
	incoming, err := h.backplane.Subscribe(ctx)
	if err != nil {
		return err
	}

	h.done = make(chan struct{})
	go func() {
		defer close(h.done)
		for data := range incoming {
			var event Event
			if err := json.Unmarshal(data, &event); err != nil {
				h.log.Warn("discarding malformed backplane event", zap.Error(err))
				continue
			}
			if event.Origin == h.originID {
				continue
			}
			h.deliver(event.TenantID, event.Type, data)
		}
	}()
	return nil
}

// Stop disconnects every session and stops the backplane drain.
func (h *Hub) Stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, tenantSessions := range h.sessions {
		for _, session := range tenantSessions {
			close(session.send)
		}
	}
	h.sessions = make(map[uuid.UUID]map[string]*Session)
	if h.metrics != nil {
		h.metrics.SessionsActive.Set(0)
	}
}

// Subscribe joins sessionID to the tenant channel. Joining a channel other
// than the session's authenticated tenant is rejected; rejoining the same
// channel is idempotent.
func (h *Hub) Subscribe(authTenantID, tenantID uuid.UUID, sessionID string) (*Session, error) {
	if tenantID != authTenantID {
		return nil, apperrors.Forbidden("cannot join another tenant's channel")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.sessions[tenantID][sessionID]; ok {
		return existing, nil
	}

	session := &Session{
		ID:       sessionID,
		TenantID: tenantID,
		send:     make(chan []byte, sessionBuffer),
	}
	if h.sessions[tenantID] == nil {
		h.sessions[tenantID] = make(map[string]*Session)
	}
	h.sessions[tenantID][sessionID] = session
	if h.metrics != nil {
		h.metrics.SessionsActive.Inc()
	}
	return session, nil
}

// Unsubscribe removes the session from its channel.
func (h *Hub) Unsubscribe(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tenantSessions, ok := h.sessions[session.TenantID]
	if !ok {
		return
	}
	if _, ok := tenantSessions[session.ID]; !ok {
		return
	}
	delete(tenantSessions, session.ID)
	if len(tenantSessions) == 0 {
		delete(h.sessions, session.TenantID)
	}
	close(session.send)
	if h.metrics != nil {
		h.metrics.SessionsActive.Dec()
	}
}

// Publish fans the event out to every session on the tenant channel,
// at-most-once. A failure or a slow consumer never affects the mutation
// that triggered the event; full buffers drop the event for that session
// and stale clients recover by refetching.
func (h *Hub) Publish(ctx context.Context, event Event) {
	event.Origin = h.originID
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to encode event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	h.deliver(event.TenantID, event.Type, data)

	if h.backplane != nil {
		if err := h.backplane.Publish(ctx, data); err != nil {
			h.log.Warn("backplane publish failed", zap.String("type", string(event.Type)), zap.Error(err))
		}
	}
	if h.metrics != nil {
		h.metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()
	}
}

func (h *Hub) deliver(tenantID uuid.UUID, eventType EventType, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, session := range h.sessions[tenantID] {
		select {
		case session.send <- data:
		default:
			if h.metrics != nil {
				h.metrics.EventsDropped.WithLabelValues(string(eventType)).Inc()
			}
			h.log.Warn("dropping event for slow session",
				zap.String("session_id", session.ID),
				zap.String("type", string(eventType)),
			)
		}
	}
}
