package lobby

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuchenshi/senko/engine"
	"github.com/yuchenshi/senko/internal/store"
)

func newService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemory(nil, nil)
	return NewService(st, rand.New(rand.NewPCG(5, 0)), nil), st
}

func join(t *testing.T, s *Service, areaID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		uid := fmt.Sprintf("user-%d", i)
		_, err := s.Join(areaID, uid, uid)
		require.NoError(t, err)
	}
}

func TestJoinRolesByOrder(t *testing.T) {
	s, _ := newService(t)
	a := s.Create("owner", "Owner", "table", engine.PresetNormal)

	// Owner plus seven joiners: the first five joiners fill the six player
	// slots, the rest spectate.
	join(t, s, a.ID, 7)

	got, err := s.Get(a.ID)
	require.NoError(t, err)
	require.Len(t, got.Members, 8)
	assert.Len(t, got.Players(), engine.MaxPlayers)
	for i, m := range got.Members {
		wantRole := RolePlayer
		if i >= engine.MaxPlayers {
			wantRole = RoleSpectator
		}
		assert.Equal(t, wantRole, m.Role, "member %d", i)
	}
}

func TestJoinRejectsDuplicatesAndStarted(t *testing.T) {
	s, _ := newService(t)
	a := s.Create("owner", "Owner", "table", engine.PresetNormal)

	_, err := s.Join(a.ID, "owner", "Owner")
	assert.ErrorIs(t, err, ErrAlreadyInUse)

	join(t, s, a.ID, 2)
	_, err = s.StartGame(context.Background(), a.ID, "owner")
	require.NoError(t, err)

	_, err = s.Join(a.ID, "late", "Late")
	assert.ErrorIs(t, err, ErrWrongStatus)
}

func TestCanStartGameWindow(t *testing.T) {
	s, _ := newService(t)
	a := s.Create("owner", "Owner", "table", engine.PresetNormal)

	got, _ := s.Get(a.ID)
	assert.False(t, got.CanStartGame(), "one player must not be startable")

	join(t, s, a.ID, 1)
	got, _ = s.Get(a.ID)
	assert.False(t, got.CanStartGame(), "two players must not be startable")

	join(t, s, a.ID, 1)
	got, _ = s.Get(a.ID)
	assert.True(t, got.CanStartGame(), "three players must be startable")
}

func TestStartGame(t *testing.T) {
	s, st := newService(t)
	a := s.Create("owner", "Owner", "table", engine.PresetRainbow)
	join(t, s, a.ID, 3)

	t.Run("owner only", func(t *testing.T) {
		_, err := s.StartGame(context.Background(), a.ID, "user-0")
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("deals and flips status", func(t *testing.T) {
		roomID, err := s.StartGame(context.Background(), a.ID, "owner")
		require.NoError(t, err)

		got, err := s.Get(a.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusInGame, got.Status)
		assert.Equal(t, roomID, got.RoomID)

		// The room document exists with the members as players, owner first.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		roomSig, err := st.WatchRoom(ctx, roomID)
		require.NoError(t, err)
		room := <-roomSig.Watch(ctx)
		assert.Equal(t, 4, room.PlayerCount())
		assert.Equal(t, "owner", room.UIDByPlayerID[0])
		assert.Equal(t, 6, room.Rules.SuitCount)
	})

	t.Run("cannot start twice", func(t *testing.T) {
		_, err := s.StartGame(context.Background(), a.ID, "owner")
		assert.ErrorIs(t, err, ErrWrongStatus)
	})
}

func TestStartGameTooFewPlayers(t *testing.T) {
	s, _ := newService(t)
	a := s.Create("owner", "Owner", "table", engine.PresetNormal)
	join(t, s, a.ID, 1)

	_, err := s.StartGame(context.Background(), a.ID, "owner")
	assert.ErrorIs(t, err, ErrPlayerCount)
}

func TestLeave(t *testing.T) {
	s, _ := newService(t)
	a := s.Create("owner", "Owner", "table", engine.PresetNormal)
	join(t, s, a.ID, 7)

	// A player leaving promotes the longest-waiting spectator.
	require.NoError(t, s.Leave(a.ID, "user-2"))
	got, _ := s.Get(a.ID)
	assert.Len(t, got.Players(), engine.MaxPlayers)
	assert.Equal(t, RolePlayer, got.Members[5].Role)

	// The owner leaving hands the area to the longest-joined member.
	require.NoError(t, s.Leave(a.ID, "owner"))
	got, _ = s.Get(a.ID)
	assert.Equal(t, "user-0", got.OwnerUID)

	// Everyone gone deletes the area.
	for _, m := range got.Members {
		require.NoError(t, s.Leave(a.ID, m.UID))
	}
	_, err := s.Get(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatesSignal(t *testing.T) {
	s, _ := newService(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	s.Create("owner", "Owner", "table", engine.PresetNormal)
	for areas := range s.Updates.Watch(ctx) {
		if len(areas) == 1 {
			assert.Equal(t, "table", areas[0].Name)
			return
		}
	}
	t.Fatalf("update never delivered")
}
