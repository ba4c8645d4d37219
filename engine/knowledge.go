package engine

import "sort"

// This file derives per-observer knowledge from the ledger and the cards
// visible to that observer: how many copies of each value are still in
// circulation, and what each hidden card could still be given the hints
// accumulated so far.

// CardCopies counts the copies of one (suit, rank) value across the
// game's zones.
type CardCopies struct {
	Total int

	// ScorePile counts successfully played copies (at most 1 in normal games).
	ScorePile int

	// DiscardPile counts discarded copies, including failed plays.
	DiscardPile int

	// Remaining counts copies still in hands or the deck.
	Remaining int
}

// DiscardedCardIDs scans the ledger for cards that ended up in the
// discard pile: explicit discards and failed plays.
func DiscardedCardIDs(moves []MoveEntry) []CardID {
	var ids []CardID
	for _, e := range moves {
		m := &e.Move
		if m.Action == ActionDiscard ||
			(m.Action == ActionPlay && m.Result != nil && *m.Result == ResultFailure) {
			ids = append(ids, *m.CardID)
		}
	}
	return ids
}

// CopiesBySuitAndRank tallies every played or discarded card that is
// visible to the observer into per-value copy counts, indexed
// [suit][rank]. Cards not yet visible are left in Remaining.
func CopiesBySuitAndRank(rules *Rules, moves []MoveEntry, visible map[CardID]Card) [][]CardCopies {
	results := make([][]CardCopies, len(rules.Suits))
	for suit, s := range rules.Suits {
		results[suit] = make([]CardCopies, len(s.CopiesPerRank))
		for rank, c := range s.CopiesPerRank {
			results[suit][rank] = CardCopies{Total: c, Remaining: c}
		}
	}
	for _, e := range moves {
		m := &e.Move
		if m.Action != ActionPlay && m.Action != ActionDiscard {
			continue
		}
		card, ok := visible[*m.CardID]
		if !ok {
			continue
		}
		entry := &results[card.Suit][card.Rank]
		entry.Remaining--
		if m.Action == ActionPlay && m.Result != nil && *m.Result == ResultSuccess {
			entry.ScorePile++
		} else {
			entry.DiscardPile++
		}
	}
	return results
}

// HintsForCard collects every hint that mentioned one card, split by
// which side of the partition the card was on.
type HintsForCard struct {
	CardID           CardID
	MatchingHints    []MoveEntry
	NonMatchingHints []MoveEntry
}

// HandHints groups the ledger's hints by mentioned card and lays them out
// per player hand, sorted by card id within each hand.
func HandHints(state *GameState, moves []MoveEntry) [][]HintsForCard {
	matching := make(map[CardID][]MoveEntry)
	nonMatching := make(map[CardID][]MoveEntry)
	for _, e := range moves {
		if e.Move.Action != ActionHint {
			continue
		}
		for _, id := range e.Move.MatchingCardIDs {
			matching[id] = append(matching[id], e)
		}
		for _, id := range e.Move.NonMatchingCardIDs {
			nonMatching[id] = append(nonMatching[id], e)
		}
	}
	hands := make([][]HintsForCard, len(state.Players))
	for p, player := range state.Players {
		hand := make([]HintsForCard, 0, len(player.Hand))
		for _, id := range player.Hand {
			hand = append(hand, HintsForCard{
				CardID:           id,
				MatchingHints:    matching[id],
				NonMatchingHints: nonMatching[id],
			})
		}
		sort.Slice(hand, func(i, j int) bool { return hand[i].CardID < hand[j].CardID })
		hands[p] = hand
	}
	return hands
}

// CardInsights is what an observer can conclude about one card from
// ground truth (if visible) plus the hint history.
type CardInsights struct {
	// HintedSuit / HintedRank are set when a hint directly named the value.
	HintedSuit *SuitID
	HintedRank *RankID

	// SuitEliminated / RankEliminated mark values ruled out by hints that
	// did not include this card. Only negative information; positive hints
	// and deck counting are not folded in.
	SuitEliminated []bool
	RankEliminated []bool

	// Suit / Rank are the resolved values: ground truth when visible,
	// otherwise the hinted values.
	Suit             *SuitID
	Rank             *RankID
	SuitWildForHints bool

	// RemainingCopies counts undiscovered copies of the resolved value,
	// when the value is known.
	RemainingCopies *int

	// Extraneous marks a card whose value has already been scored.
	Extraneous bool
}

// HandCardKnowledge bundles a card's hint history with the insights
// derived from it.
type HandCardKnowledge struct {
	HintsForCard
	CardInsights
}

// HandKnowledge computes insights for every card in every hand.
//
// Two conflicting suit hints can only happen to a wild-suit card, so the
// card is resolved to the wild suit (by convention the last suit id).
func HandKnowledge(rules *Rules, hands [][]HintsForCard, visible map[CardID]Card, copies [][]CardCopies) [][]HandCardKnowledge {
	out := make([][]HandCardKnowledge, len(hands))
	for p, hand := range hands {
		out[p] = make([]HandCardKnowledge, 0, len(hand))
		for _, hc := range hand {
			ins := CardInsights{
				SuitEliminated: make([]bool, rules.SuitCount),
				RankEliminated: make([]bool, rules.RankCount),
			}

			known, isKnown := visible[hc.CardID]
			if isKnown {
				ins.SuitWildForHints = known.SuitWildForHints
			}
			for _, hint := range hc.MatchingHints {
				if hint.Move.Suit != nil {
					if ins.HintedSuit != nil && *ins.HintedSuit != *hint.Move.Suit {
						// Two conflicting hints: this must be a wild.
						wild := SuitID(rules.SuitCount - 1)
						ins.HintedSuit = &wild
						ins.SuitWildForHints = true
					} else {
						ins.HintedSuit = clonePtr(hint.Move.Suit)
					}
				} else {
					ins.HintedRank = clonePtr(hint.Move.Rank)
				}
			}
			for _, hint := range hc.NonMatchingHints {
				if hint.Move.Suit != nil {
					ins.SuitEliminated[*hint.Move.Suit] = true
				} else {
					ins.RankEliminated[*hint.Move.Rank] = true
				}
			}

			ins.Suit = ins.HintedSuit
			ins.Rank = ins.HintedRank
			if isKnown {
				suit, rank := known.Suit, known.Rank
				ins.Suit, ins.Rank = &suit, &rank
			}
			if ins.Suit != nil && ins.Rank != nil {
				c := copies[*ins.Suit][*ins.Rank]
				if c.ScorePile > 0 {
					ins.Extraneous = true
				}
				if c.Remaining > 0 {
					remaining := c.Remaining
					ins.RemainingCopies = &remaining
				}
			} else if ins.Rank != nil && *ins.Rank == 4 {
				// A rank-4 card has a single copy in every preset, so the
				// count is known without knowing the suit.
				one := 1
				ins.RemainingCopies = &one
			}

			out[p] = append(out[p], HandCardKnowledge{HintsForCard: hc, CardInsights: ins})
		}
	}
	return out
}
