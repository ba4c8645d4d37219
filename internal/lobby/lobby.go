// Package lobby manages waiting areas: the pre-game documents players
// gather in before a room is dealt and written to the store.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yuchenshi/senko/engine"
	"github.com/yuchenshi/senko/internal/store"
	"github.com/yuchenshi/senko/internal/stream"
)

var (
	ErrNotFound     = errors.New("lobby: waiting area not found")
	ErrNotOwner     = errors.New("lobby: only the owner may start the game")
	ErrWrongStatus  = errors.New("lobby: waiting area is not looking for players")
	ErrPlayerCount  = errors.New("lobby: player count outside the start window")
	ErrAlreadyInUse = errors.New("lobby: user already joined")
)

// Status of a waiting area.
type Status string

const (
	StatusLooking Status = "looking"
	StatusInGame  Status = "ingame"
)

// Role a joined user holds once the game starts.
type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// Member is one joined user, ordered by join time.
type Member struct {
	UID      string    `json:"uid"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Area is a waiting area snapshot.
type Area struct {
	ID       uuid.UUID     `json:"id"`
	Name     string        `json:"name"`
	OwnerUID string        `json:"ownerUid"`
	Preset   engine.Preset `json:"preset"`
	Status   Status        `json:"status"`
	Members  []Member      `json:"members"`

	// RoomID is set once the game has started.
	RoomID uuid.UUID `json:"roomId,omitempty"`
}

// Players returns the members holding the player role, in join order.
func (a *Area) Players() []Member {
	out := make([]Member, 0, engine.MaxPlayers)
	for _, m := range a.Members {
		if m.Role == RolePlayer {
			out = append(out, m)
		}
	}
	return out
}

// CanStartGame reports whether the area is startable: still looking, with
// a player count inside the start window.
func (a *Area) CanStartGame() bool {
	n := len(a.Players())
	return a.Status == StatusLooking && n >= engine.MinPlayers && n <= engine.MaxPlayers
}

// Service keeps the waiting areas in memory and deals started games into
// the store.
type Service struct {
	mu    sync.Mutex
	areas map[uuid.UUID]*Area

	store store.Store
	rng   *rand.Rand
	log   *logrus.Entry

	// Updates streams the full area list after every change.
	Updates *stream.Signal[[]Area]
}

func NewService(st store.Store, rng *rand.Rand, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	s := &Service{
		areas:   make(map[uuid.UUID]*Area),
		store:   st,
		rng:     rng,
		log:     log.WithField("component", "lobby"),
		Updates: stream.New[[]Area](),
	}
	s.Updates.Set(nil)
	return s
}

// Create opens a waiting area owned by ownerUID, who joins as its first
// player.
func (s *Service) Create(ownerUID, ownerName, areaName string, preset engine.Preset) *Area {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := &Area{
		ID:       uuid.New(),
		Name:     areaName,
		OwnerUID: ownerUID,
		Preset:   preset,
		Status:   StatusLooking,
		Members: []Member{{
			UID:      ownerUID,
			Name:     ownerName,
			Role:     RolePlayer,
			JoinedAt: time.Now(),
		}},
	}
	s.areas[a.ID] = a
	s.publishLocked()
	s.log.WithFields(logrus.Fields{"area": a.ID, "owner": ownerUID}).Info("waiting area created")
	return snapshot(a)
}

// Join adds uid to the area. The first six joiners by time become
// players; later joiners become spectators.
func (s *Service) Join(areaID uuid.UUID, uid, name string) (*Area, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.areas[areaID]
	if !ok {
		return nil, ErrNotFound
	}
	if a.Status != StatusLooking {
		return nil, ErrWrongStatus
	}
	for _, m := range a.Members {
		if m.UID == uid {
			return nil, ErrAlreadyInUse
		}
	}

	role := RolePlayer
	if len(a.Players()) >= engine.MaxPlayers {
		role = RoleSpectator
	}
	a.Members = append(a.Members, Member{UID: uid, Name: name, Role: role, JoinedAt: time.Now()})
	s.publishLocked()
	return snapshot(a), nil
}

// Leave removes uid from a still-looking area. Ownership passes to the
// longest-joined remaining member; an emptied area is deleted. A
// spectator is promoted when a player slot opens.
func (s *Service) Leave(areaID uuid.UUID, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.areas[areaID]
	if !ok {
		return ErrNotFound
	}
	if a.Status != StatusLooking {
		return ErrWrongStatus
	}

	kept := a.Members[:0]
	found := false
	for _, m := range a.Members {
		if m.UID == uid {
			found = true
			continue
		}
		kept = append(kept, m)
	}
	if !found {
		return ErrNotFound
	}
	a.Members = kept

	if len(a.Members) == 0 {
		delete(s.areas, areaID)
		s.publishLocked()
		return nil
	}
	if a.OwnerUID == uid {
		a.OwnerUID = a.Members[0].UID
	}
	players := 0
	for i := range a.Members {
		if a.Members[i].Role == RolePlayer {
			players++
		}
	}
	for i := range a.Members {
		if players >= engine.MaxPlayers {
			break
		}
		if a.Members[i].Role == RoleSpectator {
			a.Members[i].Role = RolePlayer
			players++
		}
	}
	s.publishLocked()
	return nil
}

// Get returns a snapshot of one area.
func (s *Service) Get(areaID uuid.UUID) (*Area, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.areas[areaID]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(a), nil
}

// List returns every waiting area, newest first by member join time.
func (s *Service) List() []Area {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

// StartGame deals the game and writes the full initial document set to
// the store, then flips the area to ingame. Only the owner may start, and
// only inside the player-count window.
func (s *Service) StartGame(ctx context.Context, areaID uuid.UUID, callerUID string) (uuid.UUID, error) {
	s.mu.Lock()
	a, ok := s.areas[areaID]
	if !ok {
		s.mu.Unlock()
		return uuid.Nil, ErrNotFound
	}
	if a.OwnerUID != callerUID {
		s.mu.Unlock()
		return uuid.Nil, ErrNotOwner
	}
	if a.Status != StatusLooking {
		s.mu.Unlock()
		return uuid.Nil, ErrWrongStatus
	}
	players := a.Players()
	if len(players) < engine.MinPlayers || len(players) > engine.MaxPlayers {
		s.mu.Unlock()
		return uuid.Nil, fmt.Errorf("%w: %d players", ErrPlayerCount, len(players))
	}

	uids := make([]string, len(players))
	names := make([]string, len(players))
	for i, p := range players {
		uids[i] = p.UID
		names[i] = p.Name
	}
	// Deal under the lock (the rng is not safe for concurrent use) and
	// claim the area so a concurrent start fails fast.
	setup, err := engine.NewSetup(uids, names, engine.SuitsForPreset(a.Preset), s.rng)
	if err != nil {
		s.mu.Unlock()
		return uuid.Nil, fmt.Errorf("deal game: %w", err)
	}
	a.Status = StatusInGame
	s.mu.Unlock()

	roomID := uuid.New()
	if err := s.store.CreateRoom(ctx, roomID, setup); err != nil {
		s.mu.Lock()
		a.Status = StatusLooking
		s.mu.Unlock()
		return uuid.Nil, fmt.Errorf("create room: %w", err)
	}

	s.mu.Lock()
	a.RoomID = roomID
	s.publishLocked()
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"area":    areaID,
		"room":    roomID,
		"players": len(players),
	}).Info("game started")
	return roomID, nil
}

func (s *Service) listLocked() []Area {
	out := make([]Area, 0, len(s.areas))
	for _, a := range s.areas {
		out = append(out, *snapshot(a))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Members[0].JoinedAt.After(out[j].Members[0].JoinedAt)
	})
	return out
}

func (s *Service) publishLocked() {
	s.Updates.Set(s.listLocked())
}

func snapshot(a *Area) *Area {
	out := *a
	out.Members = append([]Member(nil), a.Members...)
	return &out
}
