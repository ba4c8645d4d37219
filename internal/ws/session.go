package ws

import (
	"context"

	"github.com/yuchenshi/senko/engine"
	"github.com/yuchenshi/senko/internal/client"
	"github.com/yuchenshi/senko/internal/stream"
	"github.com/yuchenshi/senko/internal/view"
)

// roomSession is one subscription: the observer's view plus, for
// participants, the actor and reactor coordinators.
type roomSession struct {
	cn     *conn
	view   *view.RoomView
	actor  *client.Actor
	ctx    context.Context
	cancel context.CancelFunc
}

func (cn *conn) subscribe(ctx context.Context, f inFrame) {
	key := f.RoomID.String()
	if _, ok := cn.sessions[key]; ok {
		cn.sendError(f, "already subscribed")
		return
	}

	sctx, cancel := context.WithCancel(ctx)
	v, err := view.Open(sctx, cn.h.store, f.RoomID, cn.uid)
	if err != nil {
		cancel()
		cn.sendError(f, err.Error())
		return
	}

	s := &roomSession{cn: cn, view: v, ctx: sctx, cancel: cancel}
	if v.Participant {
		actor, err := client.NewActor(v, cn.h.store, cn.h.log)
		if err != nil {
			cancel()
			cn.sendError(f, err.Error())
			return
		}
		reactor, err := client.NewReactor(v, cn.h.store, cn.h.log)
		if err != nil {
			cancel()
			cn.sendError(f, err.Error())
			return
		}
		s.actor = actor
		go actor.Run(sctx)
		go reactor.Run(sctx)
	}
	cn.sessions[key] = s

	cn.sendFrame(outFrame{Type: frameRoomInfo, RoomID: f.RoomID, Data: roomInfo{
		Room:        v.Room,
		PlayerID:    v.PlayerID,
		Participant: v.Participant,
	}})
	s.stream()

	if cn.h.presence != nil {
		if err := cn.h.presence.Heartbeat(sctx, f.RoomID, cn.uid); err != nil {
			cn.log.WithError(err).Warn("presence heartbeat failed")
		}
		cn.sendOnline(sctx, f.RoomID)
	}
}

// stream forwards every derived signal to the client as typed frames.
func (s *roomSession) stream() {
	forward(s, s.view.State, frameRoomState)
	forward(s, s.view.Turn, frameRoomTurn)
	forward(s, s.view.VisibleCards, frameRoomCards)
	forward(s, s.view.DiscardedIDs, frameRoomDiscards)
	forward(s, s.view.Copies, frameRoomCopies)
	forward(s, s.view.Hands, frameRoomHands)
	forward(s, s.view.Events, frameRoomEvents)
}

func forward[T any](s *roomSession, sig *stream.Signal[T], frameType string) {
	go func() {
		for v := range sig.Watch(s.ctx) {
			s.cn.sendFrame(outFrame{Type: frameType, RoomID: s.view.RoomID, Data: v})
		}
	}()
}

// action runs a game action without blocking the read loop. The actor
// drops actions submitted outside an owned, unspent turn, so the client
// gets a prompt refusal instead of a stale move firing turns later.
func (s *roomSession) action(f inFrame) {
	if s.actor == nil {
		s.cn.sendError(f, "spectators cannot act")
		return
	}
	go func() {
		var err error
		switch f.Type {
		case frameRoomPlay:
			err = s.actor.Play(s.ctx, f.CardID)
		case frameRoomDiscard:
			err = s.actor.Discard(s.ctx, f.CardID)
		case frameRoomHint:
			err = s.actor.Hint(s.ctx, f.Target, f.HintField, f.HintValue)
		}
		if err != nil {
			if reason := engine.ReasonOf(err); reason != "" {
				rejectionsTotal.WithLabelValues(string(reason)).Inc()
				s.cn.sendFrame(outFrame{
					Type: frameError, Op: f.Type, RoomID: s.view.RoomID,
					Error: err.Error(), Reason: string(reason),
				})
				return
			}
			s.cn.sendError(f, err.Error())
			return
		}
		commitsTotal.Inc()
		s.cn.sendFrame(outFrame{Type: frameAck, Op: f.Type, RoomID: s.view.RoomID})
	}()
}

func (s *roomSession) close() {
	if s.cn.h.presence != nil {
		if err := s.cn.h.presence.Disconnect(context.Background(), s.view.RoomID, s.cn.uid); err != nil {
			s.cn.log.WithError(err).Warn("presence disconnect failed")
		}
	}
	s.cancel()
}
