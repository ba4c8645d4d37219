package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yuchenshi/senko/engine"
	"github.com/yuchenshi/senko/internal/stream"
)

// MemoryStore is the linearizable in-memory implementation of Store.
// Each room has its own lock; validation runs inside the commit critical
// section, so two racing writes against the same ledger position are
// serialized and the loser is refused against the winner's outcome.
type MemoryStore struct {
	mu      sync.RWMutex
	rooms   map[uuid.UUID]*roomDocs
	journal Journal
	log     *logrus.Entry
}

type roomDocs struct {
	mu    sync.Mutex
	room  engine.Room
	moves []engine.MoveEntry
	cards []engine.Card

	roomSig  *stream.Signal[engine.Room]
	movesSig *stream.Signal[[]engine.MoveEntry]
	cardsSig *stream.Signal[[]engine.CardEntry]
}

// NewMemory returns an empty store. journal may be nil for a purely
// in-memory deployment.
func NewMemory(journal Journal, log *logrus.Logger) *MemoryStore {
	if log == nil {
		log = logrus.New()
	}
	return &MemoryStore{
		rooms:   make(map[uuid.UUID]*roomDocs),
		journal: journal,
		log:     log.WithField("component", "store"),
	}
}

func (s *MemoryStore) CreateRoom(ctx context.Context, roomID uuid.UUID, setup *engine.Setup) error {
	s.mu.Lock()
	if _, ok := s.rooms[roomID]; ok {
		s.mu.Unlock()
		return ErrRoomExists
	}
	// Reserve the id before journaling so a concurrent create fails fast.
	rd := newRoomDocs(setup.Room, []engine.MoveEntry{{ID: 0, Move: setup.Init.Clone()}}, cloneCards(setup.Cards))
	s.rooms[roomID] = rd
	s.mu.Unlock()

	if s.journal != nil {
		if err := s.journal.RecordRoom(ctx, roomID, setup); err != nil {
			s.mu.Lock()
			delete(s.rooms, roomID)
			s.mu.Unlock()
			return fmt.Errorf("journal room create: %w", err)
		}
	}

	rd.publish()
	s.log.WithFields(logrus.Fields{
		"room":    roomID,
		"players": setup.Room.PlayerCount(),
		"cards":   len(setup.Cards),
	}).Info("room created")
	return nil
}

// Restore loads a previously journaled room without re-journaling it,
// used when rebuilding the store on boot.
func (s *MemoryStore) Restore(roomID uuid.UUID, room engine.Room, moves []engine.MoveEntry, cards []engine.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; ok {
		return ErrRoomExists
	}
	rd := newRoomDocs(room, cloneMoves(moves), cloneCards(cards))
	s.rooms[roomID] = rd
	rd.publish()
	return nil
}

func newRoomDocs(room engine.Room, moves []engine.MoveEntry, cards []engine.Card) *roomDocs {
	return &roomDocs{
		room:     room,
		moves:    moves,
		cards:    cards,
		roomSig:  stream.New[engine.Room](),
		movesSig: stream.New[[]engine.MoveEntry](),
		cardsSig: stream.New[[]engine.CardEntry](),
	}
}

func (s *MemoryStore) roomDocs(roomID uuid.UUID) (*roomDocs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rd, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return rd, nil
}

// Commit validates w against the committed tail and applies it whole, or
// refuses it whole with an *engine.RejectionError.
func (s *MemoryStore) Commit(ctx context.Context, roomID uuid.UUID, callerUID string, w engine.Write) error {
	rd, err := s.roomDocs(roomID)
	if err != nil {
		return err
	}

	rd.mu.Lock()
	defer rd.mu.Unlock()

	tail := rd.moves[len(rd.moves)-1]
	if err := engine.Validate(&rd.room, tail.ID, &tail.Move, rd.cards, w, callerUID); err != nil {
		s.log.WithFields(logrus.Fields{
			"room":   roomID,
			"uid":    callerUID,
			"moveId": w.MoveID,
			"reason": engine.ReasonOf(err),
		}).Debug("write refused")
		return err
	}

	if s.journal != nil {
		if err := s.journal.RecordWrite(ctx, roomID, w); err != nil {
			return fmt.Errorf("journal write: %w", err)
		}
	}

	if w.Move != nil {
		rd.moves = append(rd.moves, engine.MoveEntry{ID: w.MoveID, Move: w.Move.Clone()})
	} else {
		last := &rd.moves[len(rd.moves)-1]
		last.Move = engine.ApplyResolution(&last.Move, w.Resolution)
	}
	for id, u := range w.CardUpdates {
		c := &rd.cards[id]
		c.ShownToUIDs = append([]string(nil), u.ShownToUIDs...)
		if u.DrawnByMoveID != nil {
			v := *u.DrawnByMoveID
			c.DrawnByMoveID = &v
		}
		if u.RevealedByMoveID != nil {
			v := *u.RevealedByMoveID
			c.RevealedByMoveID = &v
		}
	}

	rd.publish()
	return nil
}

// publish pushes fresh snapshots to every watcher. Caller holds rd.mu,
// or exclusively owns rd during creation.
func (rd *roomDocs) publish() {
	rd.roomSig.Set(rd.room)
	rd.movesSig.Set(cloneMoves(rd.moves))

	entries := make([]engine.CardEntry, len(rd.cards))
	for i, c := range rd.cards {
		entries[i] = engine.CardEntry{ID: engine.CardID(i), Card: c}
	}
	rd.cardsSig.Set(entries)
}

func (s *MemoryStore) WatchRoom(ctx context.Context, roomID uuid.UUID) (*stream.Signal[engine.Room], error) {
	rd, err := s.roomDocs(roomID)
	if err != nil {
		return nil, err
	}
	return rd.roomSig, nil
}

func (s *MemoryStore) WatchMoves(ctx context.Context, roomID uuid.UUID) (*stream.Signal[[]engine.MoveEntry], error) {
	rd, err := s.roomDocs(roomID)
	if err != nil {
		return nil, err
	}
	return rd.movesSig, nil
}

// WatchCards filters the card collection per q. The identity gate runs at
// subscription time: a caller may only watch its own visibility set, and
// non-participants are limited to the revealed query.
func (s *MemoryStore) WatchCards(ctx context.Context, roomID uuid.UUID, callerUID string, q CardQuery) (*stream.Signal[[]engine.CardEntry], error) {
	rd, err := s.roomDocs(roomID)
	if err != nil {
		return nil, err
	}
	_, participant := rd.room.PlayerFor(callerUID)

	var match func(c *engine.Card) bool
	switch {
	case q.Revealed && q.ShownToUID == "":
		match = func(c *engine.Card) bool { return c.Revealed() }
	case !q.Revealed && q.ShownToUID != "":
		if q.ShownToUID != callerUID || !participant {
			return nil, ErrPermissionDenied
		}
		uid := q.ShownToUID
		match = func(c *engine.Card) bool { return c.ShownTo(uid) }
	default:
		return nil, fmt.Errorf("store: card query must select exactly one of revealed or shownTo")
	}

	return stream.Map(ctx, rd.cardsSig, func(all []engine.CardEntry) []engine.CardEntry {
		out := make([]engine.CardEntry, 0, len(all))
		for _, e := range all {
			if match(&e.Card) {
				out = append(out, e)
			}
		}
		return out
	}), nil
}

func cloneMoves(moves []engine.MoveEntry) []engine.MoveEntry {
	out := make([]engine.MoveEntry, len(moves))
	for i, e := range moves {
		out[i] = engine.MoveEntry{ID: e.ID, Move: e.Move.Clone()}
	}
	return out
}

func cloneCards(cards []engine.Card) []engine.Card {
	out := make([]engine.Card, len(cards))
	copy(out, cards)
	return out
}
