// Package sse provides Server-Sent Events support for real-time notifications.
// Every open stream holds its own tenant subscription on the event bus.
package sse

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"freelancer_ops_backend/internal/events"
	"freelancer_ops_backend/platform/httpkit"
	"freelancer_ops_backend/platform/logger"
	"freelancer_ops_backend/platform/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultHeartbeat  = 30 * time.Second
	defaultBufferSize = 32
)

// Envelope is the payload written for every streamed event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Conn is one open stream, keyed by (tenant, connection id).
type Conn struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	UserID   uuid.UUID

	events      chan Envelope
	done        chan struct{}
	once        sync.Once
	unsubscribe func()
	service     *Service
}

// Events delivers the envelopes routed to this connection.
func (c *Conn) Events() <-chan Envelope { return c.events }

// Done is closed when the connection has been released.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close unsubscribes from the bus and releases the connection. Safe to call
// more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		c.unsubscribe()
		c.service.remove(c)
		close(c.done)
	})
}

func (c *Conn) handle(_ context.Context, event events.Event) error {
	if targeted, ok := event.(events.Targeted); ok {
		if userID, has := targeted.TargetUser(); has && userID != c.UserID {
			return nil
		}
	}

	select {
	case <-c.done:
		return nil
	default:
	}

	select {
	case c.events <- Envelope{Event: event.EventName(), Data: event}:
	default:
		metrics.RealtimeDropped.Inc()
		c.service.log.Warn("sse buffer full, dropping event",
			"event", event.EventName(),
			"tenantId", c.TenantID,
			"connectionId", c.ID,
		)
	}
	return nil
}

// Service manages SSE connections and routes bus events to them.
type Service struct {
	bus        events.Bus
	log        *logger.Logger
	heartbeat  time.Duration
	bufferSize int

	mu    sync.RWMutex
	conns map[uuid.UUID]map[uuid.UUID]*Conn // tenantID -> connectionID -> conn
}

// New creates the stream manager. Zero heartbeat or buffer size use defaults.
func New(bus events.Bus, log *logger.Logger, heartbeat time.Duration, bufferSize int) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Service{
		bus:        bus,
		log:        log,
		heartbeat:  heartbeat,
		bufferSize: bufferSize,
		conns:      make(map[uuid.UUID]map[uuid.UUID]*Conn),
	}
}

// Open registers a connection and subscribes it to the tenant's events.
func (s *Service) Open(tenantID, userID uuid.UUID) *Conn {
	conn := &Conn{
		ID:       uuid.New(),
		TenantID: tenantID,
		UserID:   userID,
		events:   make(chan Envelope, s.bufferSize),
		done:     make(chan struct{}),
		service:  s,
	}

	s.mu.Lock()
	byID, ok := s.conns[tenantID]
	if !ok {
		byID = make(map[uuid.UUID]*Conn)
		s.conns[tenantID] = byID
	}
	byID[conn.ID] = conn
	s.mu.Unlock()

	conn.unsubscribe = s.bus.SubscribeTenant(tenantID, events.Any, events.HandlerFunc(conn.handle))
	metrics.RealtimeConnections.Inc()
	return conn
}

func (s *Service) remove(c *Conn) {
	s.mu.Lock()
	if byID, ok := s.conns[c.TenantID]; ok {
		delete(byID, c.ID)
		if len(byID) == 0 {
			delete(s.conns, c.TenantID)
		}
	}
	s.mu.Unlock()
	metrics.RealtimeConnections.Dec()
}

// ActiveConnections returns the number of open streams for a tenant.
func (s *Service) ActiveConnections(tenantID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns[tenantID])
}

// ActiveConnectionsForUser returns the number of open streams of one user.
func (s *Service) ActiveConnectionsForUser(tenantID, userID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.conns[tenantID] {
		if c.UserID == userID {
			n++
		}
	}
	return n
}

// Handler returns a Gin handler for SSE connections.
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := httpkit.MustGetIdentity(c)
		if identity == nil {
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		conn := s.Open(identity.TenantID(), identity.UserID())
		defer conn.Close()

		c.SSEvent("connected", gin.H{"connectionId": conn.ID, "tenantId": conn.TenantID})
		c.Writer.Flush()

		log := s.log.WithContext(c.Request.Context())
		log.Debug("sse client connected", "connectionId", conn.ID)

		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				log.Debug("sse client disconnected", "connectionId", conn.ID)
				return
			case <-conn.Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprintf(c.Writer, ": heartbeat %d\n\n", time.Now().Unix()); err != nil {
					return
				}
				c.Writer.Flush()
			case env := <-conn.Events():
				c.SSEvent(env.Event, env)
				c.Writer.Flush()
			}
		}
	}
}

// Close releases every open connection. Streams return on their next loop.
func (s *Service) Close() {
	s.mu.RLock()
	all := make([]*Conn, 0)
	for _, byID := range s.conns {
		for _, conn := range byID {
			all = append(all, conn)
		}
	}
	s.mu.RUnlock()

	for _, conn := range all {
		conn.Close()
	}
}
