package ws

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/emandor/course_service/internal/middleware"
	"github.com/emandor/course_service/internal/model"
	"github.com/emandor/course_service/internal/telemetry"
)

type Action string

const (
	ActionJoin  Action = "join"
	ActionLeave Action = "leave"
)

const RoomProgressUser = "progress.user"

type Event string

const EventProgressCompleted Event = "progress.completed"

type PayloadEvent struct {
	Event Event `json:"event"`
	Data  any   `json:"data,omitempty"`
}

type ClientMessage struct {
	Action Action `json:"action"`
	Room   string `json:"room"`
}

type ProgressCompletedPayload struct {
	UserID      int64      `json:"userId"`
	LessonID    int64      `json:"lessonId"`
	CompletedAt *time.Time `json:"completedAt"`
}

// UserRoom is the room a user's own connections listen on.
func UserRoom(userID int64) string {
	return RoomProgressUser + "." + strconv.FormatInt(userID, 10)
}

type jsonWriter interface {
	WriteJSON(v any) error
}

// client serialises writes; a websocket connection allows one writer at a time.
type client struct {
	mu sync.Mutex
	w  jsonWriter
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.WriteJSON(v)
}

type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: map[string]map[*client]struct{}{}}
}

// Handle serves one authenticated connection. The connection joins its
// user's room immediately and may only re-join or leave that room.
func (h *Hub) Handle(c *websocket.Conn) {
	uid, _ := c.Locals(middleware.UserIDKey).(int64)
	tlog := telemetry.L().With().Str("module", "ws").Int64("user_id", uid).Logger()
	tlog.Info().Msg("ws_connected")

	cl := &client{w: c}
	own := UserRoom(uid)
	h.join(cl, own)
	defer func() {
		h.removeAll(cl)
		_ = c.Close()
		tlog.Info().Msg("ws_disconnected")
	}()

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}

		var cm ClientMessage
		if err := json.Unmarshal(msg, &cm); err != nil {
			continue
		}
		if cm.Room != own {
			tlog.Warn().Str("room", cm.Room).Msg("ws_room_denied")
			continue
		}

		switch cm.Action {
		case ActionJoin:
			h.join(cl, cm.Room)
		case ActionLeave:
			h.leave(cl, cm.Room)
		}
	}
}

func (h *Hub) join(c *client, room string) {
	if room == "" {
		return
	}
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = map[*client]struct{}{}
	}
	h.rooms[room][c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) leave(c *client, room string) {
	h.mu.Lock()
	delete(h.rooms[room], c)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
	h.mu.Unlock()
}

func (h *Hub) removeAll(c *client) {
	h.mu.Lock()
	for room, conns := range h.rooms {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) Subscribers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) broadcast(room string, pl PayloadEvent) {
	h.mu.RLock()
	conns := make([]*client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.send(pl); err != nil {
			telemetry.L().Debug().Err(err).Str("room", room).Msg("ws_write_failed")
		}
	}
}

func (h *Hub) BroadcastProgressCompleted(p model.Progress) {
	h.broadcast(UserRoom(p.UserID), PayloadEvent{
		Event: EventProgressCompleted,
		Data: ProgressCompletedPayload{
			UserID:      p.UserID,
			LessonID:    p.LessonID,
			CompletedAt: p.CompletedAt,
		},
	})
}
