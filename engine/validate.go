package engine

import (
	"errors"
	"fmt"
)

// RejectReason classifies why a proposed write was refused.
type RejectReason string

const (
	RejectNotParticipant  RejectReason = "not_participant"
	RejectWrongPlayer     RejectReason = "wrong_player"
	RejectGameOver        RejectReason = "game_over"
	RejectLedgerBlocked   RejectReason = "ledger_blocked"
	RejectNotYourTurn     RejectReason = "not_your_turn"
	RejectBadPosition     RejectReason = "bad_position"
	RejectBadMove         RejectReason = "bad_move"
	RejectBadState        RejectReason = "bad_state"
	RejectBadHint         RejectReason = "bad_hint"
	RejectBadCardUpdate   RejectReason = "bad_card_update"
	RejectAlreadyResolved RejectReason = "already_resolved"
	RejectBadResolution   RejectReason = "bad_resolution"
)

// RejectionError is returned by Validate for any refused write. The whole
// multi-document write is refused atomically; callers decide whether and
// how to retry. RejectAlreadyResolved is the one reason racing clients
// are expected to see and suppress.
type RejectionError struct {
	Reason RejectReason
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("write rejected (%s): %s", e.Reason, e.Detail)
}

func reject(reason RejectReason, format string, args ...any) error {
	return &RejectionError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the rejection reason from err, or "" when err is not
// a validation refusal.
func ReasonOf(err error) RejectReason {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}

// IsAlreadyResolved reports whether err is the expected lost-race outcome
// of two clients attempting the same play resolution.
func IsAlreadyResolved(err error) bool {
	return ReasonOf(err) == RejectAlreadyResolved
}

// Validate is the authoritative gate: given the committed ledger tail and
// the current card documents, it decides whether the proposed write is
// legal for the authenticated caller. It is evaluated inside the storage
// layer's commit critical section and trusts nothing the submitting
// client computed.
func Validate(room *Room, lastID MoveID, last *Move, cards []Card, w Write, callerUID string) error {
	if _, ok := room.PlayerFor(callerUID); !ok {
		return reject(RejectNotParticipant, "uid %q is not a player in this room", callerUID)
	}
	switch {
	case w.Move != nil && w.Resolution != nil:
		return reject(RejectBadMove, "write carries both a move and a resolution")
	case w.Move != nil:
		return validateMove(room, lastID, last, cards, w, callerUID)
	case w.Resolution != nil:
		return validateResolution(room, lastID, last, cards, w)
	default:
		return reject(RejectBadMove, "write carries neither a move nor a resolution")
	}
}

func validateMove(room *Room, lastID MoveID, last *Move, cards []Card, w Write, callerUID string) error {
	m := w.Move
	rules := &room.Rules
	prev := &last.StateAfter

	caller, _ := room.PlayerFor(callerUID)
	if m.PlayerID != caller {
		return reject(RejectWrongPlayer, "caller is player %d but move claims player %d", caller, m.PlayerID)
	}
	if prev.GameOver(rules) {
		return reject(RejectGameOver, "the game has ended")
	}
	if last.Unresolved() {
		return reject(RejectLedgerBlocked, "move %d is an unresolved play", lastID)
	}
	if want := room.NextPlayer(last.PlayerID); m.PlayerID != want {
		return reject(RejectNotYourTurn, "it is player %d's turn, not player %d", want, m.PlayerID)
	}
	if m.PlayerID < 0 || int(m.PlayerID) >= room.PlayerCount() {
		return reject(RejectWrongPlayer, "player %d out of range", m.PlayerID)
	}
	if w.MoveID != lastID+1 {
		return reject(RejectBadPosition, "expected ledger position %d, got %d", lastID+1, w.MoveID)
	}
	if len(m.StateAfter.Players) != room.PlayerCount() {
		return reject(RejectBadState, "stateAfter has %d players, room has %d", len(m.StateAfter.Players), room.PlayerCount())
	}
	if len(m.StateAfter.HighestRanks) != rules.SuitCount {
		return reject(RejectBadState, "stateAfter has %d highest ranks, rules have %d suits", len(m.StateAfter.HighestRanks), rules.SuitCount)
	}

	switch m.Action {
	case ActionPlay, ActionDiscard:
		return validateCardMove(room, prev, cards, w)
	case ActionHint:
		return validateHint(room, prev, cards, w)
	default:
		return reject(RejectBadMove, "action %q cannot be appended", m.Action)
	}
}

// validateCardMove checks a play or discard: exactly one card leaves the
// actor's hand and is revealed to everyone; if the deck is not exhausted,
// the card at the deck cursor is drawn into the same hand and shown to
// everyone but the drawer.
func validateCardMove(room *Room, prev *GameState, cards []Card, w Write) error {
	m := w.Move
	rules := &room.Rules

	if m.TargetPlayerID != nil || m.Suit != nil || m.Rank != nil ||
		len(m.MatchingCardIDs) > 0 || len(m.NonMatchingCardIDs) > 0 {
		return reject(RejectBadMove, "%s move carries hint fields", m.Action)
	}
	if m.Result != nil {
		return reject(RejectBadMove, "a result cannot be attached at move creation")
	}
	if m.CardID == nil {
		return reject(RejectBadMove, "%s move names no card", m.Action)
	}
	cardID := *m.CardID
	if int(cardID) < 0 || int(cardID) >= len(cards) {
		return reject(RejectBadMove, "card %d does not exist", cardID)
	}
	hand := prev.Players[m.PlayerID].Hand
	if !containsCardID(hand, cardID) {
		return reject(RejectBadMove, "card %d is not in player %d's hand", cardID, m.PlayerID)
	}

	draws := prev.DeckTopCardID < CardID(rules.TotalCardCount)

	expected := prev.Clone()
	handAfter := make([]CardID, 0, len(hand))
	for _, id := range hand {
		if id != cardID {
			handAfter = append(handAfter, id)
		}
	}
	if draws {
		handAfter = append(handAfter, prev.DeckTopCardID)
		expected.DeckTopCardID = prev.DeckTopCardID + 1
	}
	expected.Players[m.PlayerID].Hand = handAfter

	if m.Action == ActionDiscard {
		if prev.ClockCount >= rules.MaxClockCount {
			return reject(RejectBadState, "cannot discard while hint tokens are at maximum")
		}
		expected.ClockCount = prev.ClockCount + 1
	}

	if !statesEqual(&m.StateAfter, &expected) {
		return reject(RejectBadState, "stateAfter does not match the %s accounting", m.Action)
	}

	// Exactly the reveal update, plus the draw update when a card is drawn.
	wantUpdates := 1
	if draws {
		wantUpdates = 2
	}
	if len(w.CardUpdates) != wantUpdates {
		return reject(RejectBadCardUpdate, "expected %d card updates, got %d", wantUpdates, len(w.CardUpdates))
	}

	reveal, ok := w.CardUpdates[cardID]
	if !ok {
		return reject(RejectBadCardUpdate, "card %d must be revealed by this move", cardID)
	}
	if cards[cardID].RevealedByMoveID != nil {
		return reject(RejectBadCardUpdate, "card %d is already revealed", cardID)
	}
	if reveal.RevealedByMoveID == nil || *reveal.RevealedByMoveID != w.MoveID {
		return reject(RejectBadCardUpdate, "card %d must set revealedByMoveId=%d", cardID, w.MoveID)
	}
	if reveal.DrawnByMoveID != nil {
		return reject(RejectBadCardUpdate, "card %d update sets both markers", cardID)
	}
	if !uidSetEqual(reveal.ShownToUIDs, room.UIDByPlayerID) {
		return reject(RejectBadCardUpdate, "revealed card %d must be shown to all participants", cardID)
	}

	if draws {
		drawnID := prev.DeckTopCardID
		drawn, ok := w.CardUpdates[drawnID]
		if !ok {
			return reject(RejectBadCardUpdate, "drawn card %d must be updated by this move", drawnID)
		}
		if cards[drawnID].DrawnByMoveID != nil {
			return reject(RejectBadCardUpdate, "card %d was already drawn", drawnID)
		}
		if drawn.DrawnByMoveID == nil || *drawn.DrawnByMoveID != w.MoveID {
			return reject(RejectBadCardUpdate, "drawn card %d must set drawnByMoveId=%d", drawnID, w.MoveID)
		}
		if drawn.RevealedByMoveID != nil {
			return reject(RejectBadCardUpdate, "drawn card %d update sets both markers", drawnID)
		}
		wantShown := make([]string, 0, room.PlayerCount()-1)
		for _, uid := range room.UIDByPlayerID {
			if uid != room.UIDByPlayerID[m.PlayerID] {
				wantShown = append(wantShown, uid)
			}
		}
		if !uidSetEqual(drawn.ShownToUIDs, wantShown) {
			return reject(RejectBadCardUpdate, "drawn card %d must be shown to everyone but the drawer", drawnID)
		}
	}
	return nil
}

// validateHint checks a hint: one clock token spent, exactly one of
// suit/rank named, and a non-empty matching set that together with the
// non-matching set partitions the target's hand truthfully.
func validateHint(room *Room, prev *GameState, cards []Card, w Write) error {
	m := w.Move
	if m.CardID != nil || m.Result != nil {
		return reject(RejectBadMove, "hint move carries card-move fields")
	}
	if len(w.CardUpdates) != 0 {
		return reject(RejectBadCardUpdate, "hint moves may not update cards")
	}
	if m.TargetPlayerID == nil {
		return reject(RejectBadHint, "hint names no target player")
	}
	target := *m.TargetPlayerID
	if target < 0 || int(target) >= room.PlayerCount() {
		return reject(RejectBadHint, "target player %d out of range", target)
	}
	if target == m.PlayerID {
		return reject(RejectBadHint, "cannot hint yourself")
	}
	if (m.Suit == nil) == (m.Rank == nil) {
		return reject(RejectBadHint, "exactly one of suit or rank must be named")
	}
	if prev.ClockCount <= 0 {
		return reject(RejectBadHint, "no hint tokens left")
	}

	expected := prev.Clone()
	expected.ClockCount = prev.ClockCount - 1
	if !statesEqual(&m.StateAfter, &expected) {
		return reject(RejectBadState, "a hint may only decrement the hint token count")
	}

	if len(m.MatchingCardIDs) == 0 {
		return reject(RejectBadHint, "a hint must match at least one card")
	}
	hand := prev.Players[target].Hand
	if len(m.MatchingCardIDs)+len(m.NonMatchingCardIDs) != len(hand) {
		return reject(RejectBadHint, "matching and non-matching sets do not cover the target's hand")
	}
	seen := make(map[CardID]bool, len(hand))
	inHand := make(map[CardID]bool, len(hand))
	for _, id := range hand {
		inHand[id] = true
	}
	check := func(ids []CardID, wantMatch bool) error {
		for _, id := range ids {
			if !inHand[id] {
				return reject(RejectBadHint, "card %d is not in the target's hand", id)
			}
			if seen[id] {
				return reject(RejectBadHint, "card %d listed twice", id)
			}
			seen[id] = true
			if hintMatches(&cards[id], m) != wantMatch {
				return reject(RejectBadHint, "card %d is on the wrong side of the partition", id)
			}
		}
		return nil
	}
	if err := check(m.MatchingCardIDs, true); err != nil {
		return err
	}
	return check(m.NonMatchingCardIDs, false)
}

// validateResolution checks the one allowed in-place move mutation:
// attaching success/failure plus the exact counter deltas to the pending
// play at the ledger tail.
func validateResolution(room *Room, lastID MoveID, last *Move, cards []Card, w Write) error {
	if len(w.CardUpdates) != 0 {
		return reject(RejectBadCardUpdate, "resolutions may not update cards")
	}
	if w.MoveID != lastID || last.Action != ActionPlay {
		return reject(RejectBadResolution, "move %d is not the pending play", w.MoveID)
	}
	if last.Result != nil {
		return reject(RejectAlreadyResolved, "move %d already has result %q", lastID, *last.Result)
	}
	card := &cards[*last.CardID]
	expected := ComputeResolution(&room.Rules, &last.StateAfter, card)
	got := w.Resolution
	if got.Result != expected.Result ||
		got.ClockCount != expected.ClockCount ||
		got.FuseCount != expected.FuseCount ||
		!ranksEqual(got.HighestRanks, expected.HighestRanks) {
		return reject(RejectBadResolution, "resolution does not match the played card")
	}
	return nil
}

// hintMatches reports whether a card belongs on the matching side of the
// hint: the named field equals the card's value, or the card's suit is
// wild and the hint names a suit.
func hintMatches(c *Card, m *Move) bool {
	if m.Suit != nil {
		return c.SuitWildForHints || c.Suit == *m.Suit
	}
	return c.Rank == *m.Rank
}

func containsCardID(ids []CardID, id CardID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// uidSetEqual compares two uid lists as sets, additionally requiring both
// to be duplicate-free.
func uidSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, uid := range a {
		if set[uid] {
			return false
		}
		set[uid] = true
	}
	for _, uid := range b {
		if !set[uid] {
			return false
		}
	}
	return true
}

func ranksEqual(a, b []RankID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func handsEqual(a, b []CardID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func statesEqual(a, b *GameState) bool {
	if a.ClockCount != b.ClockCount ||
		a.FuseCount != b.FuseCount ||
		a.DeckTopCardID != b.DeckTopCardID ||
		len(a.Players) != len(b.Players) ||
		!ranksEqual(a.HighestRanks, b.HighestRanks) {
		return false
	}
	for i := range a.Players {
		if !handsEqual(a.Players[i].Hand, b.Players[i].Hand) {
			return false
		}
	}
	return true
}
