// Package engine implements the senko card game rules.
//
// The package is pure: it defines the document schema shared by every
// client and the storage layer (rooms, moves, cards), and the validation
// logic that decides whether a proposed write against that schema is
// legal. It performs no I/O and holds no global state, so the same code
// runs server-side as the authoritative gate and client-side to build
// moves that the gate will accept.
package engine

// Identifier types. Cards and moves are numbered densely from 0; player
// ids double as turn order.
type (
	CardID   int
	PlayerID int
	SuitID   int
	RankID   int
	MoveID   int
)

// InitPlayerID is the acting player recorded on the synthetic init move,
// chosen so the first real move belongs to player 0.
const InitPlayerID PlayerID = -1

// SuitRules describes a single suit in the deck composition.
type SuitRules struct {
	// WildForHints marks the suit as matching every suit hint.
	WildForHints bool `json:"wildForHints"`
	// CopiesPerRank holds how many copies of each rank exist, indexed by rank.
	CopiesPerRank []int `json:"copiesPerRank"`
}

// Rules is the immutable rule set fixed at game creation.
type Rules struct {
	RankCount      int         `json:"rankCount"`
	SuitCount      int         `json:"suitCount"`
	TotalCardCount int         `json:"totalCardCount"`
	MaxClockCount  int         `json:"maxClockCount"`
	InitFuseCount  int         `json:"initFuseCount"`
	HandSize       int         `json:"handSize"`
	Suits          []SuitRules `json:"suits"`
}

// MaxRank returns the highest rank id in this rule set.
func (r *Rules) MaxRank() RankID { return RankID(r.RankCount - 1) }

// Card is one physical card. Suit and rank never change after creation;
// only the visibility set and the two marker fields mutate, each at most
// once, as part of a validated move commit.
type Card struct {
	Suit SuitID `json:"suit"`
	Rank RankID `json:"rank"`

	// ShownToUIDs lists the user ids the card is currently visible to.
	ShownToUIDs []string `json:"shownToUids"`

	// DrawnByMoveID is set when the card enters a hand (including the deal,
	// which records move 0).
	DrawnByMoveID *MoveID `json:"drawnByMoveId,omitempty"`

	// RevealedByMoveID is set when the card is played or discarded, making
	// it public.
	RevealedByMoveID *MoveID `json:"revealedByMoveId,omitempty"`

	// SuitWildForHints is copied from the suit at creation so observers can
	// interpret hints without consulting the rules.
	SuitWildForHints bool `json:"suitWildForHints,omitempty"`
}

// Revealed reports whether the card has been made public.
func (c *Card) Revealed() bool { return c.RevealedByMoveID != nil }

// ShownTo reports whether uid is in the card's visibility set.
func (c *Card) ShownTo(uid string) bool {
	for _, u := range c.ShownToUIDs {
		if u == uid {
			return true
		}
	}
	return false
}

// PlayerState is one player's slice of a GameState snapshot.
type PlayerState struct {
	Hand []CardID `json:"hand"`
}

// GameState is the full post-move snapshot embedded in every move.
// Immutable once written, except for the counters a play resolution is
// permitted to adjust.
type GameState struct {
	ClockCount    int           `json:"clockCount"`
	FuseCount     int           `json:"fuseCount"`
	DeckTopCardID CardID        `json:"deckTopCardId"`
	Players       []PlayerState `json:"players"`
	HighestRanks  []RankID      `json:"highestRanks"`
}

// Clone returns a deep copy of the snapshot.
func (s *GameState) Clone() GameState {
	out := *s
	out.Players = make([]PlayerState, len(s.Players))
	for i, p := range s.Players {
		out.Players[i] = PlayerState{Hand: append([]CardID(nil), p.Hand...)}
	}
	out.HighestRanks = append([]RankID(nil), s.HighestRanks...)
	return out
}

// GameOver reports whether no further moves are accepted: the fuse is
// exhausted or every suit has reached its maximum rank.
func (s *GameState) GameOver(rules *Rules) bool {
	if s.FuseCount <= 0 {
		return true
	}
	for _, r := range s.HighestRanks {
		if r != rules.MaxRank() {
			return false
		}
	}
	return true
}

// MoveAction discriminates the move union.
type MoveAction string

const (
	ActionInit    MoveAction = "init"
	ActionPlay    MoveAction = "play"
	ActionDiscard MoveAction = "discard"
	ActionHint    MoveAction = "hint"
)

// MoveResult is the outcome attached to a play move by its resolution.
type MoveResult string

const (
	ResultSuccess MoveResult = "success"
	ResultFailure MoveResult = "failure"
)

// Move is one committed ledger entry. The Action field selects which of
// the optional fields are meaningful:
//
//	init:    no extra fields, PlayerID is InitPlayerID
//	play:    CardID; Result attached later by the resolution
//	discard: CardID
//	hint:    TargetPlayerID, exactly one of Suit/Rank, and the partition
//	         of the target's hand into matching / non-matching ids
type Move struct {
	Action     MoveAction `json:"action"`
	PlayerID   PlayerID   `json:"playerId"`
	StateAfter GameState  `json:"stateAfter"`

	CardID *CardID     `json:"cardId,omitempty"`
	Result *MoveResult `json:"result,omitempty"`

	TargetPlayerID     *PlayerID `json:"targetPlayerId,omitempty"`
	Suit               *SuitID   `json:"suit,omitempty"`
	Rank               *RankID   `json:"rank,omitempty"`
	MatchingCardIDs    []CardID  `json:"matchingCardIds,omitempty"`
	NonMatchingCardIDs []CardID  `json:"nonMatchingCardIds,omitempty"`
}

// Unresolved reports whether the move is a play still waiting for its
// resolution. While such a move is the ledger tail, no new top-level move
// may be appended.
func (m *Move) Unresolved() bool {
	return m.Action == ActionPlay && m.Result == nil
}

// Clone returns a deep copy of the move.
func (m *Move) Clone() Move {
	out := *m
	out.StateAfter = m.StateAfter.Clone()
	out.CardID = clonePtr(m.CardID)
	out.Result = clonePtr(m.Result)
	out.TargetPlayerID = clonePtr(m.TargetPlayerID)
	out.Suit = clonePtr(m.Suit)
	out.Rank = clonePtr(m.Rank)
	out.MatchingCardIDs = append([]CardID(nil), m.MatchingCardIDs...)
	out.NonMatchingCardIDs = append([]CardID(nil), m.NonMatchingCardIDs...)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Room maps player ids (0..N-1, turn order) to external user identities
// and display names, and carries the rule set. Created once at game start,
// never changed.
type Room struct {
	PlayerIDByUID  map[string]PlayerID `json:"playerIdByUid"`
	UIDByPlayerID  []string            `json:"uidByPlayerId"`
	PlayerNameByID []string            `json:"playerNameById"`
	Rules          Rules               `json:"rules"`
}

// PlayerCount returns the number of participants.
func (r *Room) PlayerCount() int { return len(r.UIDByPlayerID) }

// PlayerFor returns the player id mapped to uid, or false when uid is not
// a participant.
func (r *Room) PlayerFor(uid string) (PlayerID, bool) {
	id, ok := r.PlayerIDByUID[uid]
	return id, ok
}

// NextPlayer returns the turn owner following the given acting player.
func (r *Room) NextPlayer(last PlayerID) PlayerID {
	return (last + 1 + PlayerID(r.PlayerCount())) % PlayerID(r.PlayerCount())
}

// HintField selects which card attribute a hint names.
type HintField string

const (
	HintSuit HintField = "suit"
	HintRank HintField = "rank"
)

// CardUpdate is the only mutation a card document accepts: a new
// visibility set plus exactly one of the two markers. Suit, rank and the
// wild flag can never be touched.
type CardUpdate struct {
	ShownToUIDs      []string `json:"shownToUids"`
	DrawnByMoveID    *MoveID  `json:"drawnByMoveId,omitempty"`
	RevealedByMoveID *MoveID  `json:"revealedByMoveId,omitempty"`
}

// Resolution is the single permitted in-place extension of a play move:
// the result plus the counters it is allowed to adjust. Every other field
// of the move is untouchable by construction.
type Resolution struct {
	Result       MoveResult `json:"result"`
	ClockCount   int        `json:"clockCount"`
	FuseCount    int        `json:"fuseCount"`
	HighestRanks []RankID   `json:"highestRanks"`
}

// MoveEntry pairs a committed move with its ledger position.
type MoveEntry struct {
	ID   MoveID `json:"id"`
	Move Move   `json:"move"`
}

// CardEntry pairs a card with its identifier.
type CardEntry struct {
	ID   CardID `json:"id"`
	Card Card   `json:"card"`
}

// Write is one atomic multi-document proposal: either a new move at the
// given ledger position together with its card visibility updates, or a
// resolution for the move already at that position. The validation engine
// accepts or rejects the whole write; there is no partial application.
type Write struct {
	MoveID      MoveID                `json:"moveId"`
	Move        *Move                 `json:"move,omitempty"`
	Resolution  *Resolution           `json:"resolution,omitempty"`
	CardUpdates map[CardID]CardUpdate `json:"cardUpdates,omitempty"`
}
