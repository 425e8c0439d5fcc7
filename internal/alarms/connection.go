package alarms

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/fastsns/sns-backend/pkg/errors"
)

// eventName is the SSE event name used for every frame, the handshake included.
const eventName = "alarm"

// handshakeData confirms to the client that the stream is registered and live.
const handshakeData = "connect completed"

// Connection is one live SSE stream for a user. Writes are serialized; a
// failed write closes the connection permanently so a half-written stream is
// never reused.
type Connection struct {
	id        uuid.UUID
	userID    uuid.UUID
	createdAt time.Time

	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
	done    chan struct{}
}

// NewConnection wraps a streaming response writer. The writer must support
// flushing; plain buffered writers would hold frames back indefinitely.
func NewConnection(userID uuid.UUID, w io.Writer) (*Connection, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if w == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "writer required")
	}
	flusher, _ := w.(http.Flusher)
	return &Connection{
		id:        uuid.New(),
		userID:    userID,
		createdAt: time.Now().UTC(),
		w:         w,
		flusher:   flusher,
		done:      make(chan struct{}),
	}, nil
}

// ID returns the connection identity used for stale-eviction guards.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

// UserID returns the owning user.
func (c *Connection) UserID() uuid.UUID {
	return c.userID
}

// Done is closed once the connection is shut down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// SendHandshake writes the connect-completed frame.
func (c *Connection) SendHandshake() error {
	return c.writeFrame(c.id.String(), []byte(handshakeData))
}

// Send pushes one notification frame to the client.
func (c *Connection) Send(notification Notification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode notification")
	}
	return c.writeFrame(notification.ID.String(), data)
}

func (c *Connection) writeFrame(id string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return pkgerrors.New(pkgerrors.CodeNotificationDelivery, "connection closed")
	}

	if _, err := fmt.Fprintf(c.w, "id: %s\nevent: %s\ndata: %s\n\n", id, eventName, data); err != nil {
		c.closeLocked()
		return pkgerrors.Wrap(pkgerrors.CodeNotificationDelivery, err, "write event frame")
	}
	if c.flusher != nil {
		c.flusher.Flush()
	}
	return nil
}

// Close shuts the connection down. Safe to call more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Connection) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
