package engine

import "fmt"

// This file builds candidate writes on the client side, mirroring the
// accounting Validate enforces. The local precondition errors here avoid
// submitting writes that are guaranteed to be refused; Validate remains
// the authority.

// BuildCardMove constructs the atomic write for playing or discarding
// cardID from actor's hand on top of the committed ledger tail: the move
// document, the reveal update for the acted-upon card, and the draw
// update for the next deck card when the deck is not exhausted.
func BuildCardMove(room *Room, lastID MoveID, state *GameState, actor PlayerID, action MoveAction, cardID CardID) (Write, error) {
	if action != ActionPlay && action != ActionDiscard {
		return Write{}, fmt.Errorf("buildcardmove: action %q is not play or discard", action)
	}
	hand := state.Players[actor].Hand
	if !containsCardID(hand, cardID) {
		return Write{}, fmt.Errorf("card %d is not in player %d's hand", cardID, actor)
	}
	if action == ActionDiscard && state.ClockCount >= room.Rules.MaxClockCount {
		return Write{}, fmt.Errorf("cannot discard while hint tokens are at maximum (%d)", room.Rules.MaxClockCount)
	}

	moveID := lastID + 1
	after := state.Clone()
	handAfter := make([]CardID, 0, len(hand))
	for _, id := range hand {
		if id != cardID {
			handAfter = append(handAfter, id)
		}
	}

	updates := map[CardID]CardUpdate{
		cardID: {
			ShownToUIDs:      append([]string(nil), room.UIDByPlayerID...),
			RevealedByMoveID: &moveID,
		},
	}

	if state.DeckTopCardID < CardID(room.Rules.TotalCardCount) {
		drawnID := state.DeckTopCardID
		handAfter = append(handAfter, drawnID)
		after.DeckTopCardID = drawnID + 1

		shownTo := make([]string, 0, room.PlayerCount()-1)
		for _, uid := range room.UIDByPlayerID {
			if uid != room.UIDByPlayerID[actor] {
				shownTo = append(shownTo, uid)
			}
		}
		updates[drawnID] = CardUpdate{ShownToUIDs: shownTo, DrawnByMoveID: &moveID}
	}
	after.Players[actor].Hand = handAfter

	if action == ActionDiscard {
		after.ClockCount = state.ClockCount + 1
	}

	id := cardID
	return Write{
		MoveID: moveID,
		Move: &Move{
			Action:     action,
			PlayerID:   actor,
			CardID:     &id,
			StateAfter: after,
		},
		CardUpdates: updates,
	}, nil
}

// BuildHintMove constructs the write for hinting target about field/value.
// targetHand must hold the target's complete current hand with card
// details. Hints require full knowledge of the information conveyed, so
// callers wait until every card in the hand is visible to them before
// building the partition.
func BuildHintMove(room *Room, lastID MoveID, state *GameState, actor, target PlayerID, targetHand []CardEntry, field HintField, value int) (Write, error) {
	if state.ClockCount <= 0 {
		return Write{}, fmt.Errorf("no hint tokens left")
	}
	if target == actor {
		return Write{}, fmt.Errorf("cannot hint yourself")
	}

	m := Move{
		Action:         ActionHint,
		PlayerID:       actor,
		TargetPlayerID: &target,
	}
	switch field {
	case HintSuit:
		suit := SuitID(value)
		m.Suit = &suit
	case HintRank:
		rank := RankID(value)
		m.Rank = &rank
	default:
		return Write{}, fmt.Errorf("unknown hint field %q", field)
	}

	for _, entry := range targetHand {
		if hintMatches(&entry.Card, &m) {
			m.MatchingCardIDs = append(m.MatchingCardIDs, entry.ID)
		} else {
			m.NonMatchingCardIDs = append(m.NonMatchingCardIDs, entry.ID)
		}
	}
	if len(m.MatchingCardIDs) == 0 {
		return Write{}, fmt.Errorf("hint matches no cards in player %d's hand", target)
	}

	m.StateAfter = state.Clone()
	m.StateAfter.ClockCount = state.ClockCount - 1

	return Write{MoveID: lastID + 1, Move: &m}, nil
}

// BuildResolution constructs the resolution write for the pending play at
// the ledger tail, given the revealed card it named.
func BuildResolution(room *Room, entry MoveEntry, card *Card) Write {
	res := ComputeResolution(&room.Rules, &entry.Move.StateAfter, card)
	return Write{MoveID: entry.ID, Resolution: &res}
}
