// Package store is the document layer the game runs against: a per-room
// tree of one room document, a moves collection and a cards collection,
// with atomic validated writes and live queries.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/yuchenshi/senko/engine"
	"github.com/yuchenshi/senko/internal/stream"
)

var (
	// ErrRoomNotFound is returned for queries and writes against a room id
	// that was never created.
	ErrRoomNotFound = errors.New("store: room not found")

	// ErrRoomExists is returned by CreateRoom when the id is taken.
	ErrRoomExists = errors.New("store: room already exists")

	// ErrPermissionDenied is returned when a caller opens a card query it
	// is not entitled to: watching another user's cards, or watching
	// unrevealed cards without being a room participant.
	ErrPermissionDenied = errors.New("store: permission denied")
)

// CardQuery selects which card documents a watch delivers. Exactly one
// field is set.
type CardQuery struct {
	// Revealed selects every card made public by a play or discard.
	Revealed bool

	// ShownToUID selects the cards whose visibility set contains the uid.
	// Only the authenticated owner of the uid may open this query.
	ShownToUID string
}

// RevealedCards selects the public cards. Any authenticated caller,
// including spectators, may open it.
func RevealedCards() CardQuery { return CardQuery{Revealed: true} }

// CardsShownTo selects the cards visible to uid.
func CardsShownTo(uid string) CardQuery { return CardQuery{ShownToUID: uid} }

// Store is the document-store contract. Commit applies one atomic
// multi-document write after server-side validation; a refusal is
// reported as an *engine.RejectionError and leaves every document
// untouched. Watches deliver the current value immediately, then a fresh
// snapshot after every committed change, coalescing to the latest when
// the consumer lags.
type Store interface {
	// CreateRoom writes the full initial document set for a dealt game:
	// the room document, every card, and the init move at position 0.
	CreateRoom(ctx context.Context, roomID uuid.UUID, setup *engine.Setup) error

	// Commit validates and applies one write as callerUID.
	Commit(ctx context.Context, roomID uuid.UUID, callerUID string, w engine.Write) error

	// WatchRoom streams the room document.
	WatchRoom(ctx context.Context, roomID uuid.UUID) (*stream.Signal[engine.Room], error)

	// WatchMoves streams the move ledger in position order.
	WatchMoves(ctx context.Context, roomID uuid.UUID) (*stream.Signal[[]engine.MoveEntry], error)

	// WatchCards streams the cards selected by q, in id order, as
	// callerUID. Spectators may only open the revealed query.
	WatchCards(ctx context.Context, roomID uuid.UUID, callerUID string, q CardQuery) (*stream.Signal[[]engine.CardEntry], error)
}

// Journal receives every committed write for durable storage. A journal
// error aborts the commit, so the journal never lags the live documents.
type Journal interface {
	RecordRoom(ctx context.Context, roomID uuid.UUID, setup *engine.Setup) error
	RecordWrite(ctx context.Context, roomID uuid.UUID, w engine.Write) error
}
