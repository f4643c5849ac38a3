package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const defaultWriteTimeout = 5 * time.Second

// Client is one live handle. A user has at most one; registering a new
// connection for the same user replaces and closes the previous handle.
type Client struct {
	userID int64
	conn   *websocket.Conn

	mu sync.Mutex // serializes writes on conn
}

// UserID returns the owner of the handle.
func (c *Client) UserID() int64 {
	return c.userID
}

// send writes the event with a bounded deadline. Delivery is best-effort
// at-most-once: on timeout or error the event is dropped and the
// connection closed.
func (c *Client) send(e Event, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	if err := c.conn.WriteJSON(e); err != nil {
		c.conn.Close()
		return err
	}
	return nil
}

// Hub is the presence registry: the process-wide map from user id to live
// handle, plus dialogue-scoped broadcast rooms. All access goes through
// its methods; each user's entry is updated only by that user's own
// connection lifecycle.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]*Client
	rooms   map[int64]map[*Client]struct{}

	writeTimeout time.Duration
	log          logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients:      make(map[int64]*Client),
		rooms:        make(map[int64]map[*Client]struct{}),
		writeTimeout: defaultWriteTimeout,
		log:          log,
	}
}

// Register binds a connection to a user and returns the handle. An
// existing handle for the same user is evicted and closed.
func (h *Hub) Register(userID int64, conn *websocket.Conn) *Client {
	c := &Client{userID: userID, conn: conn}

	h.mu.Lock()
	old := h.clients[userID]
	h.clients[userID] = c
	if old != nil {
		h.removeFromRoomsLocked(old)
	}
	h.mu.Unlock()

	if old != nil {
		old.conn.Close()
	}
	return c
}

// Unregister clears the registry entry, but only if the handle is still
// the user's current one; a stale handle from before a replacement is
// ignored. It reports whether the handle was current, so teardown can
// skip the offline transition when a successor connection is live.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	current := h.clients[c.userID] == c
	if current {
		delete(h.clients, c.userID)
	}
	h.removeFromRoomsLocked(c)
	return current
}

// IsConnected reports whether the user has a live handle.
func (h *Hub) IsConnected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Push delivers an event to the user's live handle, if any. It never
// blocks beyond the write deadline and drops the event for unreachable
// recipients.
func (h *Hub) Push(userID int64, e Event) {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := c.send(e, h.writeTimeout); err != nil {
		h.log.WithFields(logrus.Fields{
			"user_id": userID,
			"event":   e.Type,
		}).WithError(err).Debug("dropped push event")
	}
}

// PushMany delivers an event to each listed user with a live handle.
func (h *Hub) PushMany(userIDs []int64, e Event) {
	for _, id := range userIDs {
		h.Push(id, e)
	}
}

// JoinRoom subscribes a handle to a dialogue-scoped broadcast group.
func (h *Hub) JoinRoom(c *Client, dialogueID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[dialogueID] == nil {
		h.rooms[dialogueID] = make(map[*Client]struct{})
	}
	h.rooms[dialogueID][c] = struct{}{}
}

// LeaveRoom unsubscribes a handle from a dialogue room.
func (h *Hub) LeaveRoom(c *Client, dialogueID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[dialogueID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, dialogueID)
		}
	}
}

// BroadcastRoom sends an event to all room subscribers except the sender.
// Fire-and-forget: slow or dead recipients lose the event.
func (h *Hub) BroadcastRoom(dialogueID int64, e Event, exclude *Client) {
	h.mu.RLock()
	room := h.rooms[dialogueID]
	targets := make([]*Client, 0, len(room))
	for c := range room {
		if c != exclude {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(e, h.writeTimeout); err != nil {
			h.log.WithFields(logrus.Fields{
				"dialogue_id": dialogueID,
				"event":       e.Type,
			}).WithError(err).Debug("dropped room event")
		}
	}
}

func (h *Hub) removeFromRoomsLocked(c *Client) {
	for id, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, id)
		}
	}
}
