// Package view assembles the per-observer projection of a room: every
// signal here is derived from the store's live queries and shows exactly
// what the observing user is entitled to see.
package view

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yuchenshi/senko/engine"
	"github.com/yuchenshi/senko/internal/store"
	"github.com/yuchenshi/senko/internal/stream"
)

// NoTurn is the TurnInfo player id while no move is accepted: a play is
// awaiting resolution, or the game has ended.
const NoTurn engine.PlayerID = -1

// TurnInfo is the derived turn state. It changes exactly once per real
// transition, so a coordinator keyed on it runs once per turn.
type TurnInfo struct {
	PlayerID engine.PlayerID `json:"playerId"`
	MyTurn   bool            `json:"myTurn"`
}

// Event is one human-readable ledger entry. An entry describing a card
// the observer cannot see yet is withheld, along with everything after
// it, until the card becomes visible.
type Event struct {
	MoveID engine.MoveID `json:"moveId"`
	Text   string        `json:"text"`
}

// RoomView is one observer's live projection of a room.
type RoomView struct {
	RoomID      uuid.UUID
	UID         string
	Room        engine.Room
	PlayerID    engine.PlayerID // NoTurn for spectators
	Participant bool

	// Moves is the full ledger in position order.
	Moves *stream.Signal[[]engine.MoveEntry]

	// LastMove is the ledger tail.
	LastMove *stream.Signal[engine.MoveEntry]

	// State is the snapshot after the tail move.
	State *stream.Signal[engine.GameState]

	// Turn fires once per turn transition.
	Turn *stream.Signal[TurnInfo]

	// VisibleCards merges the revealed cards with the cards shown to the
	// observer, keyed by card id.
	VisibleCards *stream.Signal[map[engine.CardID]engine.Card]

	// DiscardedIDs lists the discard pile in ledger order.
	DiscardedIDs *stream.Signal[[]engine.CardID]

	// Copies tallies per-value copy counts from what the observer can see.
	Copies *stream.Signal[[][]engine.CardCopies]

	// Hands carries hint history and derived insights per hand.
	Hands *stream.Signal[[][]engine.HandCardKnowledge]

	// Events is the readable game log, including terminal summaries.
	Events *stream.Signal[[]Event]
}

// Open subscribes uid's projection of roomID. The returned view updates
// until ctx ends.
func Open(ctx context.Context, st store.Store, roomID uuid.UUID, uid string) (*RoomView, error) {
	roomSig, err := st.WatchRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	room, err := stream.First(ctx, roomSig, func(engine.Room) bool { return true })
	if err != nil {
		return nil, fmt.Errorf("awaiting room document: %w", err)
	}

	moves, err := st.WatchMoves(ctx, roomID)
	if err != nil {
		return nil, err
	}
	revealed, err := st.WatchCards(ctx, roomID, uid, store.RevealedCards())
	if err != nil {
		return nil, err
	}

	playerID, participant := room.PlayerFor(uid)
	mine := stream.Of([]engine.CardEntry(nil))
	if participant {
		if mine, err = st.WatchCards(ctx, roomID, uid, store.CardsShownTo(uid)); err != nil {
			return nil, err
		}
	} else {
		playerID = NoTurn
	}

	v := &RoomView{
		RoomID:      roomID,
		UID:         uid,
		Room:        room,
		PlayerID:    playerID,
		Participant: participant,
		Moves:       moves,
	}

	v.LastMove = stream.Map(ctx, moves, func(ms []engine.MoveEntry) engine.MoveEntry {
		return ms[len(ms)-1]
	})
	v.State = stream.Map(ctx, v.LastMove, func(e engine.MoveEntry) engine.GameState {
		return e.Move.StateAfter.Clone()
	})
	v.Turn = stream.DistinctFunc(ctx,
		stream.Map(ctx, v.LastMove, func(e engine.MoveEntry) TurnInfo {
			return turnInfo(&room, e, playerID)
		}),
		func(a, b TurnInfo) bool { return a == b })

	v.VisibleCards = stream.Combine2(ctx, revealed, mine,
		func(rev, own []engine.CardEntry) map[engine.CardID]engine.Card {
			out := make(map[engine.CardID]engine.Card, len(rev)+len(own))
			for _, e := range rev {
				out[e.ID] = e.Card
			}
			for _, e := range own {
				out[e.ID] = e.Card
			}
			return out
		})

	v.DiscardedIDs = stream.Map(ctx, moves, DiscardedIDs)
	v.Copies = stream.Combine2(ctx, moves, v.VisibleCards,
		func(ms []engine.MoveEntry, vis map[engine.CardID]engine.Card) [][]engine.CardCopies {
			return engine.CopiesBySuitAndRank(&room.Rules, ms, vis)
		})
	v.Hands = stream.Combine2(ctx, moves, v.VisibleCards,
		func(ms []engine.MoveEntry, vis map[engine.CardID]engine.Card) [][]engine.HandCardKnowledge {
			tail := ms[len(ms)-1]
			hints := engine.HandHints(&tail.Move.StateAfter, ms)
			copies := engine.CopiesBySuitAndRank(&room.Rules, ms, vis)
			return engine.HandKnowledge(&room.Rules, hints, vis, copies)
		})
	v.Events = stream.Combine2(ctx, moves, v.VisibleCards,
		func(ms []engine.MoveEntry, vis map[engine.CardID]engine.Card) []Event {
			return buildEvents(&room, ms, vis)
		})
	return v, nil
}

// DiscardedIDs is re-exported for callers holding a ledger snapshot.
func DiscardedIDs(ms []engine.MoveEntry) []engine.CardID {
	return engine.DiscardedCardIDs(ms)
}

// AwaitVisible blocks until every card in ids is visible to the observer,
// returning them in the order requested.
func (v *RoomView) AwaitVisible(ctx context.Context, ids ...engine.CardID) ([]engine.CardEntry, error) {
	vis, err := stream.First(ctx, v.VisibleCards, func(m map[engine.CardID]engine.Card) bool {
		for _, id := range ids {
			if _, ok := m[id]; !ok {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	out := make([]engine.CardEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, engine.CardEntry{ID: id, Card: vis[id]})
	}
	return out, nil
}

func turnInfo(room *engine.Room, tail engine.MoveEntry, me engine.PlayerID) TurnInfo {
	st := &tail.Move.StateAfter
	if tail.Move.Unresolved() || st.GameOver(&room.Rules) {
		return TurnInfo{PlayerID: NoTurn}
	}
	next := room.NextPlayer(tail.Move.PlayerID)
	return TurnInfo{PlayerID: next, MyTurn: me != NoTurn && next == me}
}

func buildEvents(room *engine.Room, ms []engine.MoveEntry, vis map[engine.CardID]engine.Card) []Event {
	events := make([]Event, 0, len(ms)+1)
	for _, e := range ms {
		if e.Move.Action == engine.ActionInit {
			events = append(events, Event{MoveID: e.ID, Text: "The game begins."})
			continue
		}
		// The write revealing a played or discarded card can be observed
		// after the move itself. Hold the log at that move until the card
		// arrives rather than describing an unknown card.
		if e.Move.CardID != nil {
			if _, ok := vis[*e.Move.CardID]; !ok {
				return events
			}
		}
		events = append(events, Event{MoveID: e.ID, Text: describeMove(room, &e.Move, vis)})
	}

	tail := &ms[len(ms)-1].Move
	if st := &tail.StateAfter; st.GameOver(&room.Rules) {
		score := 0
		perfect := true
		for _, r := range st.HighestRanks {
			score += int(r) + 1
			if r != room.Rules.MaxRank() {
				perfect = false
			}
		}
		var text string
		switch {
		case perfect:
			text = fmt.Sprintf("Perfect game! Every suit is complete, final score %d.", score)
		case st.FuseCount <= 0:
			text = fmt.Sprintf("The fuse ran out. Final score %d.", score)
		default:
			text = fmt.Sprintf("The game is over. Final score %d.", score)
		}
		events = append(events, Event{MoveID: ms[len(ms)-1].ID, Text: text})
	}
	return events
}

func describeMove(room *engine.Room, m *engine.Move, vis map[engine.CardID]engine.Card) string {
	name := room.PlayerNameByID[m.PlayerID]
	switch m.Action {
	case engine.ActionPlay:
		card := describeCard(*m.CardID, vis)
		switch {
		case m.Result == nil:
			return fmt.Sprintf("%s plays %s.", name, card)
		case *m.Result == engine.ResultSuccess:
			return fmt.Sprintf("%s plays %s. It fits!", name, card)
		default:
			return fmt.Sprintf("%s plays %s. It does not fit.", name, card)
		}
	case engine.ActionDiscard:
		return fmt.Sprintf("%s discards %s.", name, describeCard(*m.CardID, vis))
	case engine.ActionHint:
		target := room.PlayerNameByID[*m.TargetPlayerID]
		if m.Suit != nil {
			return fmt.Sprintf("%s hints %s: %d cards of suit %d.",
				name, target, len(m.MatchingCardIDs), *m.Suit)
		}
		return fmt.Sprintf("%s hints %s: %d cards of rank %d.",
			name, target, len(m.MatchingCardIDs), *m.Rank)
	default:
		return fmt.Sprintf("%s makes a move.", name)
	}
}

func describeCard(id engine.CardID, vis map[engine.CardID]engine.Card) string {
	c := vis[id]
	return fmt.Sprintf("suit %d rank %d", c.Suit, c.Rank)
}
