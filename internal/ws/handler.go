// Package ws serves the websocket API: lobby operations, live room
// subscriptions streaming each observer's projection, and game actions
// routed through the per-participant coordinators.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yuchenshi/senko/internal/auth"
	"github.com/yuchenshi/senko/internal/lobby"
	"github.com/yuchenshi/senko/internal/store"
)

const pingInterval = 15 * time.Second

// PresenceTracker is the per-room online-user surface. cache.Presence
// implements it over redis.
type PresenceTracker interface {
	Heartbeat(ctx context.Context, roomID uuid.UUID, uid string) error
	Disconnect(ctx context.Context, roomID uuid.UUID, uid string) error
	Online(ctx context.Context, roomID uuid.UUID) ([]string, error)
}

// Handler upgrades connections and runs one conn per client.
type Handler struct {
	store    store.Store
	lobby    *lobby.Service
	auth     *auth.Service
	presence PresenceTracker // nil disables presence tracking
	log      *logrus.Logger
}

func NewHandler(st store.Store, lb *lobby.Service, au *auth.Service, presence PresenceTracker, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{store: st, lobby: lb, auth: au, presence: presence, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := h.auth.IdentityFromRequest(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket accept failed")
		return
	}

	conn := newConn(h, c, id)
	connectionsActive.Inc()
	defer connectionsActive.Dec()
	conn.run(r.Context())
}

// conn is one authenticated websocket connection.
type conn struct {
	h    *Handler
	c    *websocket.Conn
	uid  string
	name string
	log  *logrus.Entry
	send chan []byte

	sessions map[string]*roomSession // keyed by room id string
}

func newConn(h *Handler, c *websocket.Conn, id auth.Identity) *conn {
	return &conn{
		h:        h,
		c:        c,
		uid:      id.UID,
		name:     id.Name,
		log:      h.log.WithFields(logrus.Fields{"component": "ws", "uid": id.UID}),
		send:     make(chan []byte, 64),
		sessions: make(map[string]*roomSession),
	}
}

func (cn *conn) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cn.log.Info("connected")
	go cn.writeLoop(ctx)
	cn.readLoop(ctx)

	for _, s := range cn.sessions {
		s.close()
	}
	cn.log.Info("disconnected")
}

func (cn *conn) writeLoop(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = cn.c.Close(websocket.StatusNormalClosure, "bye")
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-cn.send:
			if err := cn.c.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := cn.c.Ping(ctx); err != nil {
				return
			}
		}
	}
}

func (cn *conn) readLoop(ctx context.Context) {
	for {
		_, data, err := cn.c.Read(ctx)
		if err != nil {
			return
		}
		var f inFrame
		if err := json.Unmarshal(data, &f); err != nil {
			cn.sendError(f, "malformed frame")
			continue
		}
		framesReceived.WithLabelValues(f.Type).Inc()
		cn.dispatch(ctx, f)
	}
}

func (cn *conn) dispatch(ctx context.Context, f inFrame) {
	switch f.Type {
	case framePing:
		cn.sendFrame(outFrame{Type: framePong})
		cn.heartbeatAll(ctx)

	case frameLobbyWatch:
		go cn.watchLobby(ctx)

	case frameLobbyCreate:
		a := cn.h.lobby.Create(cn.uid, cn.name, f.Name, f.Preset)
		cn.sendFrame(outFrame{Type: frameAck, Op: f.Type, Data: a})

	case frameLobbyJoin:
		a, err := cn.h.lobby.Join(f.AreaID, cn.uid, cn.name)
		if err != nil {
			cn.sendError(f, err.Error())
			return
		}
		cn.sendFrame(outFrame{Type: frameAck, Op: f.Type, Data: a})

	case frameLobbyLeave:
		if err := cn.h.lobby.Leave(f.AreaID, cn.uid); err != nil {
			cn.sendError(f, err.Error())
			return
		}
		cn.sendFrame(outFrame{Type: frameAck, Op: f.Type})

	case frameLobbyStart:
		roomID, err := cn.h.lobby.StartGame(ctx, f.AreaID, cn.uid)
		if err != nil {
			cn.sendError(f, err.Error())
			return
		}
		cn.sendFrame(outFrame{Type: frameAck, Op: f.Type, RoomID: roomID})

	case frameRoomSubscribe:
		cn.subscribe(ctx, f)

	case frameRoomUnsubscribe:
		if s, ok := cn.sessions[f.RoomID.String()]; ok {
			s.close()
			delete(cn.sessions, f.RoomID.String())
		}
		cn.sendFrame(outFrame{Type: frameAck, Op: f.Type, RoomID: f.RoomID})

	case frameRoomPlay, frameRoomDiscard, frameRoomHint:
		s, ok := cn.sessions[f.RoomID.String()]
		if !ok {
			cn.sendError(f, "not subscribed to room")
			return
		}
		s.action(f)

	default:
		cn.sendError(f, "unknown frame type")
	}
}

// watchLobby streams the waiting area list until ctx ends.
func (cn *conn) watchLobby(ctx context.Context) {
	for areas := range cn.h.lobby.Updates.Watch(ctx) {
		cn.sendFrame(outFrame{Type: frameLobbyAreas, Data: areas})
	}
}

func (cn *conn) heartbeatAll(ctx context.Context) {
	if cn.h.presence == nil {
		return
	}
	for _, s := range cn.sessions {
		if err := cn.h.presence.Heartbeat(ctx, s.view.RoomID, cn.uid); err != nil {
			cn.log.WithError(err).Warn("presence heartbeat failed")
		}
		cn.sendOnline(ctx, s.view.RoomID)
	}
}

// sendOnline pushes the room's current online uids to this client.
func (cn *conn) sendOnline(ctx context.Context, roomID uuid.UUID) {
	if cn.h.presence == nil {
		return
	}
	online, err := cn.h.presence.Online(ctx, roomID)
	if err != nil {
		cn.log.WithError(err).Warn("presence read failed")
		return
	}
	cn.sendFrame(outFrame{Type: frameRoomOnline, RoomID: roomID, Data: online})
}

func (cn *conn) sendFrame(f outFrame) {
	b, err := json.Marshal(f)
	if err != nil {
		cn.log.WithError(err).Error("marshal frame")
		return
	}
	select {
	case cn.send <- b:
	default:
		// Slow consumer; the connection will fall behind and time out.
		cn.log.WithField("frame", f.Type).Warn("send buffer full, frame dropped")
	}
}

func (cn *conn) sendError(f inFrame, msg string) {
	cn.sendFrame(outFrame{Type: frameError, Op: f.Type, RoomID: f.RoomID, Error: msg})
}
