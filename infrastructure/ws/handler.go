package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"my-chat-backend/auth"
	"my-chat-backend/domain"
	"my-chat-backend/runtime"

	"github.com/gorilla/websocket"
)

// Client frame names.
const (
	TypingFrame          = "typing"
	StopTypingFrame      = "stopTyping"
	GroupTypingFrame     = "groupTyping"
	GroupStopTypingFrame = "groupStopTyping"
)

const defaultReadLimit = 64 * 1024

// ClientFrame is what a client writes on the socket.
type ClientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type typingData struct {
	ReceiverID string `json:"receiverId"`
	GroupID    string `json:"groupId"`
}

// TypingNotifier relays typing indicators coming from clients.
type TypingNotifier interface {
	Typing(ctx context.Context, sender, receiver domain.UserID, typing bool) error
	GroupTyping(ctx context.Context, sender domain.UserID, groupID domain.GroupID, typing bool) error
}

type Options struct {
	BufferSize     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	ReadLimit      int64
	AllowedOrigins []string
}

// Handler upgrades authenticated requests and ties each socket to the
// presence tracker for its whole life.
type Handler struct {
	log      *slog.Logger
	tracker  *runtime.Tracker
	typing   TypingNotifier
	upgrader websocket.Upgrader
	opts     Options
}

func NewHandler(log *slog.Logger, tracker *runtime.Tracker, typing TypingNotifier, opts Options) *Handler {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	h := &Handler{log: log, tracker: tracker, typing: typing, opts: opts}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Upgrade failed", "user_id", userID, "error", err)
		return
	}

	conn := NewConn(socket, userID, h.log, h.opts.BufferSize, h.opts.WriteTimeout, h.opts.PingInterval)
	// the session outlives the upgrade request
	ctx := context.WithoutCancel(r.Context())
	go conn.WriteLoop()

	if err := h.tracker.Connect(ctx, conn); err != nil {
		h.log.Warn("Connection refused", "user_id", userID, "error", err)
		_ = conn.Close()
		return
	}
	defer h.tracker.Disconnect(ctx, conn.ID())

	conn.ReadLoop(h.opts.ReadLimit, func(data []byte) {
		h.dispatch(ctx, userID, data)
	})
}

// dispatch handles one client frame. Bad frames are logged and dropped.
func (h *Handler) dispatch(ctx context.Context, userID domain.UserID, data []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.log.Debug("Malformed client frame dropped", "user_id", userID, "error", err)
		return
	}
	var payload typingData
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			h.log.Debug("Malformed frame data dropped", "user_id", userID, "event", frame.Event, "error", err)
			return
		}
	}

	var err error
	switch frame.Event {
	case TypingFrame, StopTypingFrame:
		if payload.ReceiverID == "" {
			return
		}
		err = h.typing.Typing(ctx, userID, domain.UserID(payload.ReceiverID), frame.Event == TypingFrame)
	case GroupTypingFrame, GroupStopTypingFrame:
		if payload.GroupID == "" {
			return
		}
		err = h.typing.GroupTyping(ctx, userID, domain.GroupID(payload.GroupID), frame.Event == GroupTypingFrame)
	default:
		h.log.Debug("Unknown client frame dropped", "user_id", userID, "event", frame.Event)
		return
	}
	if err != nil {
		h.log.Debug("Client frame failed", "user_id", userID, "event", frame.Event, "error", err)
	}
}

// checkOrigin accepts clients that send no Origin. Browsers must match the
// configured origins, or the host serving the socket when none are set.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.opts.AllowedOrigins) > 0 {
		return slices.Contains(h.opts.AllowedOrigins, origin)
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
