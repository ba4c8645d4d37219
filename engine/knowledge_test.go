package engine

import "testing"

// visibleCards collects the cards the given uid can currently see,
// the way the view layer feeds knowledge computation.
func (s *scenario) visibleCards(uid string) map[CardID]Card {
	out := make(map[CardID]Card)
	for id, c := range s.cards {
		if c.Revealed() || c.ShownTo(uid) {
			out[CardID(id)] = c
		}
	}
	return out
}

func suitHint(id MoveID, suit SuitID) MoveEntry {
	v := suit
	return MoveEntry{ID: id, Move: Move{Action: ActionHint, Suit: &v}}
}

func rankHint(id MoveID, rank RankID) MoveEntry {
	v := rank
	return MoveEntry{ID: id, Move: Move{Action: ActionHint, Rank: &v}}
}

// playDiscardFailScenario runs a short game: player 0 plays card 0
// successfully, player 1 discards card 5, player 2 misplays card 13.
func playDiscardFailScenario(t *testing.T) *scenario {
	t.Helper()
	s := newScenario(t, 3)
	s.commit(t, "alice", s.mustBuildCardMove(t, 0, ActionPlay, 0))
	s.commit(t, "bob", BuildResolution(s.room, s.tail(), &s.cards[0]))
	s.commit(t, "bob", s.mustBuildCardMove(t, 1, ActionDiscard, 5))
	s.commit(t, "carol", s.mustBuildCardMove(t, 2, ActionPlay, 13))
	s.commit(t, "alice", BuildResolution(s.room, s.tail(), &s.cards[13]))
	return s
}

func TestDiscardedCardIDs(t *testing.T) {
	s := playDiscardFailScenario(t)
	got := DiscardedCardIDs(s.moves)

	// The explicit discard and the failed play; the successful play is not
	// in the discard pile.
	want := []CardID{5, 13}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("discarded ids: want %v, got %v", want, got)
	}
}

func TestCopiesBySuitAndRank(t *testing.T) {
	s := playDiscardFailScenario(t)
	copies := CopiesBySuitAndRank(&s.room.Rules, s.moves, s.visibleCards("alice"))

	cases := []struct {
		name       string
		suit       SuitID
		rank       RankID
		want       CardCopies
	}{
		// Card 0: suit 0 rank 0, played successfully.
		{"scored value", 0, 0, CardCopies{Total: 3, ScorePile: 1, Remaining: 2}},
		// Card 5: suit 0 rank 2, discarded.
		{"discarded value", 0, 2, CardCopies{Total: 2, DiscardPile: 1, Remaining: 1}},
		// Card 13: suit 1 rank 1, misplayed into the discard pile.
		{"misplayed value", 1, 1, CardCopies{Total: 2, DiscardPile: 1, Remaining: 1}},
		// Untouched value.
		{"untouched value", 3, 4, CardCopies{Total: 1, Remaining: 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := copies[c.suit][c.rank]; got != c.want {
				t.Errorf("copies[%d][%d]: want %+v, got %+v", c.suit, c.rank, c.want, got)
			}
		})
	}
}

func TestCopiesIgnoreCardsTheObserverCannotSee(t *testing.T) {
	s := playDiscardFailScenario(t)

	// An observer who cannot see card 0 must not count it anywhere.
	visible := s.visibleCards("alice")
	delete(visible, 0)
	copies := CopiesBySuitAndRank(&s.room.Rules, s.moves, visible)
	if got := copies[0][0]; got != (CardCopies{Total: 3, Remaining: 3}) {
		t.Errorf("hidden play must stay in Remaining, got %+v", got)
	}
}

func TestHandHintsGroupsByCard(t *testing.T) {
	s := newScenario(t, 3)
	// Player 1 holds suit 0 ranks 2,2,3,3,4 as cards 5-9.
	s.commit(t, "alice", s.mustBuildHint(t, 0, 1, HintRank, 3))

	hands := HandHints(s.state(), s.moves)
	if len(hands) != 3 {
		t.Fatalf("want 3 hands, got %d", len(hands))
	}
	hand := hands[1]
	if len(hand) != 5 {
		t.Fatalf("want 5 cards in hand 1, got %d", len(hand))
	}
	for i, hc := range hand {
		if hc.CardID != CardID(5+i) {
			t.Fatalf("hand must be sorted by card id, got %v at %d", hc.CardID, i)
		}
		wantMatching := hc.CardID == 7 || hc.CardID == 8
		if got := len(hc.MatchingHints) == 1; got != wantMatching {
			t.Errorf("card %d matching hints: want %v, got %d", hc.CardID, wantMatching, len(hc.MatchingHints))
		}
		if got := len(hc.NonMatchingHints) == 1; got == wantMatching {
			t.Errorf("card %d non-matching hints: got %d", hc.CardID, len(hc.NonMatchingHints))
		}
	}

	// Hands the hint did not target have no hint history.
	for _, hc := range hands[0] {
		if len(hc.MatchingHints)+len(hc.NonMatchingHints) != 0 {
			t.Errorf("card %d in hand 0 has unexpected hints", hc.CardID)
		}
	}
}

func TestHandKnowledge(t *testing.T) {
	rules := NewRules(SuitsForPreset(PresetRainbow), 3)
	freshCopies := func() [][]CardCopies {
		return CopiesBySuitAndRank(&rules, nil, nil)
	}
	knowledgeFor := func(hc HintsForCard, visible map[CardID]Card, copies [][]CardCopies) CardInsights {
		t.Helper()
		out := HandKnowledge(&rules, [][]HintsForCard{{hc}}, visible, copies)
		return out[0][0].CardInsights
	}

	t.Run("suit hint resolves the suit", func(t *testing.T) {
		ins := knowledgeFor(HintsForCard{
			CardID:        3,
			MatchingHints: []MoveEntry{suitHint(1, 2)},
		}, nil, freshCopies())
		if ins.Suit == nil || *ins.Suit != 2 {
			t.Errorf("suit: want 2, got %v", ins.Suit)
		}
		if ins.Rank != nil {
			t.Errorf("rank must stay unknown, got %v", ins.Rank)
		}
		if ins.RemainingCopies != nil {
			t.Errorf("copies unknowable without the rank, got %v", ins.RemainingCopies)
		}
	})

	t.Run("rank hint resolves the rank", func(t *testing.T) {
		ins := knowledgeFor(HintsForCard{
			CardID:        3,
			MatchingHints: []MoveEntry{rankHint(1, 2)},
		}, nil, freshCopies())
		if ins.Rank == nil || *ins.Rank != 2 {
			t.Errorf("rank: want 2, got %v", ins.Rank)
		}
	})

	t.Run("top rank has one copy regardless of suit", func(t *testing.T) {
		ins := knowledgeFor(HintsForCard{
			CardID:        3,
			MatchingHints: []MoveEntry{rankHint(1, 4)},
		}, nil, freshCopies())
		if ins.RemainingCopies == nil || *ins.RemainingCopies != 1 {
			t.Errorf("remaining copies: want 1, got %v", ins.RemainingCopies)
		}
	})

	t.Run("non-matching hints eliminate values", func(t *testing.T) {
		ins := knowledgeFor(HintsForCard{
			CardID:           3,
			NonMatchingHints: []MoveEntry{suitHint(1, 0), rankHint(2, 4)},
		}, nil, freshCopies())
		if !ins.SuitEliminated[0] || ins.SuitEliminated[1] {
			t.Errorf("suit eliminations wrong: %v", ins.SuitEliminated)
		}
		if !ins.RankEliminated[4] || ins.RankEliminated[0] {
			t.Errorf("rank eliminations wrong: %v", ins.RankEliminated)
		}
		if ins.Suit != nil || ins.Rank != nil {
			t.Errorf("negative information must not resolve values")
		}
	})

	t.Run("conflicting suit hints resolve to the wild suit", func(t *testing.T) {
		ins := knowledgeFor(HintsForCard{
			CardID:        3,
			MatchingHints: []MoveEntry{suitHint(1, 0), suitHint(2, 2)},
		}, nil, freshCopies())
		wild := SuitID(rules.SuitCount - 1)
		if ins.HintedSuit == nil || *ins.HintedSuit != wild {
			t.Errorf("hinted suit: want wild %d, got %v", wild, ins.HintedSuit)
		}
		if !ins.SuitWildForHints {
			t.Errorf("conflicting suit hints must flag the card wild")
		}
	})

	t.Run("visible card uses ground truth", func(t *testing.T) {
		visible := map[CardID]Card{3: {Suit: 1, Rank: 3}}
		// A stale hint cannot override what the observer sees.
		ins := knowledgeFor(HintsForCard{
			CardID:        3,
			MatchingHints: []MoveEntry{suitHint(1, 0)},
		}, visible, freshCopies())
		if ins.Suit == nil || *ins.Suit != 1 || ins.Rank == nil || *ins.Rank != 3 {
			t.Errorf("want ground truth suit 1 rank 3, got %v %v", ins.Suit, ins.Rank)
		}
		if ins.RemainingCopies == nil || *ins.RemainingCopies != 2 {
			t.Errorf("remaining copies: want 2, got %v", ins.RemainingCopies)
		}
	})

	t.Run("scored value is extraneous", func(t *testing.T) {
		copies := freshCopies()
		copies[1][3].ScorePile = 1
		copies[1][3].Remaining = 1
		ins := knowledgeFor(HintsForCard{CardID: 3}, map[CardID]Card{3: {Suit: 1, Rank: 3}}, copies)
		if !ins.Extraneous {
			t.Errorf("a card whose value is scored must be extraneous")
		}
	})

	t.Run("exhausted value reports no remaining copies", func(t *testing.T) {
		copies := freshCopies()
		copies[1][3].DiscardPile = 1
		copies[1][3].ScorePile = 1
		copies[1][3].Remaining = 0
		ins := knowledgeFor(HintsForCard{CardID: 3}, map[CardID]Card{3: {Suit: 1, Rank: 3}}, copies)
		if ins.RemainingCopies != nil {
			t.Errorf("remaining copies: want nil, got %v", ins.RemainingCopies)
		}
	})
}
