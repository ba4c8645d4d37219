package view

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuchenshi/senko/engine"
	"github.com/yuchenshi/senko/internal/store"
	"github.com/yuchenshi/senko/internal/stream"
)

var testUIDs = []string{"alice", "bob", "carol"}

type fixture struct {
	store  *store.MemoryStore
	roomID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemory(nil, nil)
	setup, err := engine.NewSetup(testUIDs, testUIDs, engine.SuitsForPreset(engine.PresetNormal),
		rand.New(rand.NewPCG(11, 0)))
	require.NoError(t, err)
	roomID := uuid.New()
	require.NoError(t, s.CreateRoom(context.Background(), roomID, setup))
	return &fixture{store: s, roomID: roomID}
}

func (f *fixture) open(t *testing.T, ctx context.Context, uid string) *RoomView {
	t.Helper()
	v, err := Open(ctx, f.store, f.roomID, uid)
	require.NoError(t, err)
	return v
}

// commitPlay plays the first card of the current player's hand and
// returns the write that was committed.
func (f *fixture) commitPlay(t *testing.T, v *RoomView, actor engine.PlayerID) engine.Write {
	t.Helper()
	ctx := context.Background()
	ledger := await(t, v.Moves, func([]engine.MoveEntry) bool { return true })
	tail := ledger[len(ledger)-1]
	w, err := engine.BuildCardMove(&v.Room, tail.ID, &tail.Move.StateAfter, actor,
		engine.ActionPlay, tail.Move.StateAfter.Players[actor].Hand[0])
	require.NoError(t, err)
	require.NoError(t, f.store.Commit(ctx, f.roomID, v.Room.UIDByPlayerID[actor], w))
	return w
}

func await[T any](t *testing.T, sig *stream.Signal[T], pred func(T) bool) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := stream.First(ctx, sig, pred)
	require.NoError(t, err)
	return v
}

func TestOpenIdentity(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v := f.open(t, ctx, "bob")
	assert.True(t, v.Participant)
	assert.Equal(t, engine.PlayerID(1), v.PlayerID)

	spec := f.open(t, ctx, "watcher")
	assert.False(t, spec.Participant)
	assert.Equal(t, NoTurn, spec.PlayerID)
}

func TestVisibleCardsMergeRevealedAndOwn(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v := f.open(t, ctx, "alice")
	// Alice sees the other two hands before anything is revealed.
	vis := await(t, v.VisibleCards, func(m map[engine.CardID]engine.Card) bool { return len(m) == 10 })

	st := await(t, v.State, func(engine.GameState) bool { return true })
	for _, id := range st.Players[0].Hand {
		_, ok := vis[id]
		assert.False(t, ok, "alice must not see her own card %d", id)
	}

	// A play reveals one of her own cards to her.
	w := f.commitPlay(t, v, 0)
	vis = await(t, v.VisibleCards, func(m map[engine.CardID]engine.Card) bool { return len(m) == 11 })
	_, ok := vis[*w.Move.CardID]
	assert.True(t, ok)
}

func TestSpectatorSeesOnlyRevealed(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	spec := f.open(t, ctx, "watcher")
	vis := await(t, spec.VisibleCards, func(map[engine.CardID]engine.Card) bool { return true })
	assert.Empty(t, vis)

	alice := f.open(t, ctx, "alice")
	w := f.commitPlay(t, alice, 0)
	vis = await(t, spec.VisibleCards, func(m map[engine.CardID]engine.Card) bool { return len(m) == 1 })
	_, ok := vis[*w.Move.CardID]
	assert.True(t, ok)
}

func TestTurnSignalTransitions(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bob := f.open(t, ctx, "bob")

	// Opening turn belongs to player 0.
	ti := await(t, bob.Turn, func(TurnInfo) bool { return true })
	assert.Equal(t, TurnInfo{PlayerID: 0, MyTurn: false}, ti)

	// While alice's play is unresolved nobody may act.
	alice := f.open(t, ctx, "alice")
	w := f.commitPlay(t, alice, 0)
	ti = await(t, bob.Turn, func(ti TurnInfo) bool { return ti != TurnInfo{PlayerID: 0} })
	assert.Equal(t, TurnInfo{PlayerID: NoTurn, MyTurn: false}, ti)

	// The resolution hands the turn to bob.
	ledger := await(t, bob.Moves, func(ms []engine.MoveEntry) bool { return len(ms) == 2 })
	tail := ledger[len(ledger)-1]
	card, err := bob.AwaitVisible(ctx, *w.Move.CardID)
	require.NoError(t, err)
	res := engine.BuildResolution(&bob.Room, tail, &card[0].Card)
	require.NoError(t, f.store.Commit(ctx, f.roomID, "bob", res))

	ti = await(t, bob.Turn, func(ti TurnInfo) bool { return ti.PlayerID != NoTurn })
	assert.Equal(t, TurnInfo{PlayerID: 1, MyTurn: true}, ti)
}

func TestAwaitVisibleBlocksUntilRevealed(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	spec := f.open(t, ctx, "watcher")
	alice := f.open(t, ctx, "alice")

	st := await(t, alice.State, func(engine.GameState) bool { return true })
	target := st.Players[0].Hand[0]

	done := make(chan []engine.CardEntry, 1)
	go func() {
		cards, err := spec.AwaitVisible(ctx, target)
		if err == nil {
			done <- cards
		}
	}()

	select {
	case <-done:
		t.Fatalf("card resolved before it was revealed")
	case <-time.After(50 * time.Millisecond):
	}

	f.commitPlay(t, alice, 0)
	select {
	case cards := <-done:
		assert.Equal(t, target, cards[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatalf("AwaitVisible never resolved")
	}
}

func TestEventsGateCardIdentity(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := f.open(t, ctx, "alice")
	bob := f.open(t, ctx, "bob")

	// Bob can see alice's cards, so his log names the card she plays.
	f.commitPlay(t, alice, 0)

	events := await(t, bob.Events, func(es []Event) bool { return len(es) >= 2 })
	assert.Equal(t, "The game begins.", events[0].Text)
	assert.Contains(t, events[1].Text, "alice plays suit")
}

func TestEventsHeldUntilCardVisible(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := f.open(t, ctx, "alice")
	f.commitPlay(t, alice, 0)
	ledger := await(t, alice.Moves, func(ms []engine.MoveEntry) bool { return len(ms) == 2 })

	// The ledger update for a commit can be observed before the same
	// commit's visibility update. With the played card still missing, the
	// log stops before the play instead of naming an unknown card.
	events := buildEvents(&alice.Room, ledger, map[engine.CardID]engine.Card{})
	require.Len(t, events, 1)
	assert.Equal(t, "The game begins.", events[0].Text)

	target := *ledger[1].Move.CardID
	cards, err := alice.AwaitVisible(ctx, target)
	require.NoError(t, err)
	events = buildEvents(&alice.Room, ledger, map[engine.CardID]engine.Card{target: cards[0].Card})
	require.Len(t, events, 2)
	assert.Contains(t, events[1].Text, "alice plays suit")
}

func TestEventsTerminalSummary(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := f.open(t, ctx, "alice")

	// Play cards until the fuse burns out: misplay when the hand has a
	// card that does not fit, otherwise play the card that does. Each play
	// needs its resolution before the next move is allowed.
	moveCount := 1
	for step := 0; step < 30; step++ {
		ledger := await(t, alice.Moves, func(ms []engine.MoveEntry) bool { return len(ms) == moveCount })
		tail := ledger[len(ledger)-1]
		st := tail.Move.StateAfter
		if st.GameOver(&alice.Room.Rules) {
			break
		}
		actor := alice.Room.NextPlayer(tail.Move.PlayerID)

		cardID := st.Players[actor].Hand[0]
		for _, id := range st.Players[actor].Hand {
			c := cardAt(f, t, id)
			if st.HighestRanks[c.Suit]+1 != c.Rank {
				cardID = id
				break
			}
		}

		w, err := engine.BuildCardMove(&alice.Room, tail.ID, &st, actor, engine.ActionPlay, cardID)
		require.NoError(t, err)
		require.NoError(t, f.store.Commit(ctx, f.roomID, alice.Room.UIDByPlayerID[actor], w))
		moveCount++

		ledger = await(t, alice.Moves, func(ms []engine.MoveEntry) bool { return len(ms) == moveCount })
		tail = ledger[len(ledger)-1]
		res := engine.BuildResolution(&alice.Room, tail, cardAt(f, t, cardID))
		require.NoError(t, f.store.Commit(ctx, f.roomID, "alice", res))
	}

	events := await(t, alice.Events, func(es []Event) bool {
		return len(es) > 0 && strings.Contains(es[len(es)-1].Text, "fuse ran out")
	})
	assert.Contains(t, events[len(events)-1].Text, "Final score")
}

// cardAt reads a card's ground truth straight from the dealt setup via a
// revealed-or-participant watch as carol, who can see both other hands.
func cardAt(f *fixture, t *testing.T, id engine.CardID) *engine.Card {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, uid := range testUIDs {
		sig, err := f.store.WatchCards(ctx, f.roomID, uid, store.CardsShownTo(uid))
		if err != nil {
			continue
		}
		cards, err := stream.First(ctx, sig, func([]engine.CardEntry) bool { return true })
		if err != nil {
			continue
		}
		for _, e := range cards {
			if e.ID == id {
				c := e.Card
				return &c
			}
		}
	}
	t.Fatalf("card %d not visible to any participant", id)
	return nil
}
