package engine

import (
	"fmt"
	"math/rand/v2"
)

// Setup is the complete initial document set for a room: the room data,
// every card in shuffled deal order, and the init move at ledger position
// 0. The storage layer writes all of it in one atomic batch while flipping
// the waiting area to in-game.
type Setup struct {
	Room  Room
	Cards []Card
	Init  Move
}

// GenerateCards expands the suit composition into the full card list,
// one card per configured copy, shuffled with rng.
func GenerateCards(suits []SuitRules, rng *rand.Rand) []Card {
	var cards []Card
	for suit, s := range suits {
		for rank, copies := range s.CopiesPerRank {
			for i := 0; i < copies; i++ {
				c := Card{
					Suit:        SuitID(suit),
					Rank:        RankID(rank),
					ShownToUIDs: []string{},
				}
				if s.WildForHints {
					c.SuitWildForHints = true
				}
				cards = append(cards, c)
			}
		}
	}
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return cards
}

// NewSetup deals a fresh game for the given participants, in join order.
// Each player's hand is visible to every other participant but not to the
// holder. The returned card universe is partitioned exactly between hands
// and the undealt deck.
//
// NewSetup accepts any participant count from 2 up; the lobby enforces the
// 3..6 start window, and 2-player games remain constructible for tests.
func NewSetup(uids, names []string, suits []SuitRules, rng *rand.Rand) (*Setup, error) {
	if len(uids) < 2 {
		return nil, fmt.Errorf("need at least 2 players, got %d", len(uids))
	}
	if len(uids) > MaxPlayers {
		return nil, fmt.Errorf("at most %d players allowed, got %d", MaxPlayers, len(uids))
	}
	if len(uids) != len(names) {
		return nil, fmt.Errorf("got %d uids but %d names", len(uids), len(names))
	}

	playerIDByUID := make(map[string]PlayerID, len(uids))
	for i, uid := range uids {
		if _, dup := playerIDByUID[uid]; dup {
			return nil, fmt.Errorf("duplicate player uid %q", uid)
		}
		playerIDByUID[uid] = PlayerID(i)
	}

	room := Room{
		PlayerIDByUID:  playerIDByUID,
		UIDByPlayerID:  append([]string(nil), uids...),
		PlayerNameByID: append([]string(nil), names...),
		Rules:          NewRules(suits, len(uids)),
	}

	cards := GenerateCards(suits, rng)
	if len(cards) < len(uids)*room.Rules.HandSize {
		return nil, fmt.Errorf("deck of %d cards cannot deal %d hands of %d",
			len(cards), len(uids), room.Rules.HandSize)
	}

	initID := MoveID(0)
	deckTop := CardID(0)
	players := make([]PlayerState, len(uids))
	for p := range uids {
		shownTo := make([]string, 0, len(uids)-1)
		for _, uid := range uids {
			if uid != uids[p] {
				shownTo = append(shownTo, uid)
			}
		}
		hand := make([]CardID, 0, room.Rules.HandSize)
		for i := 0; i < room.Rules.HandSize; i++ {
			hand = append(hand, deckTop)
			id := initID
			cards[deckTop].DrawnByMoveID = &id
			cards[deckTop].ShownToUIDs = shownTo
			deckTop++
		}
		players[p] = PlayerState{Hand: hand}
	}

	highest := make([]RankID, room.Rules.SuitCount)
	for i := range highest {
		highest[i] = -1
	}

	return &Setup{
		Room:  room,
		Cards: cards,
		Init: Move{
			Action:   ActionInit,
			PlayerID: InitPlayerID,
			StateAfter: GameState{
				ClockCount:    room.Rules.MaxClockCount,
				FuseCount:     room.Rules.InitFuseCount,
				DeckTopCardID: deckTop,
				Players:       players,
				HighestRanks:  highest,
			},
		},
	}, nil
}
