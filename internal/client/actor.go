// Package client runs the two per-participant coordinators: the actor,
// which submits at most one move per owned turn, and the reactor, which
// resolves pending plays as soon as the played card is visible.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yuchenshi/senko/engine"
	"github.com/yuchenshi/senko/internal/store"
	"github.com/yuchenshi/senko/internal/view"
)

// ErrTurnUnavailable reports a dropped proposal: it is not the
// participant's turn, or the one action this turn allows is already
// spent.
var ErrTurnUnavailable = errors.New("client: no unspent owned turn")

// buildFunc assembles the write for a proposed action against the
// committed ledger tail.
type buildFunc func(ctx context.Context, tail engine.MoveEntry) (engine.Write, error)

type proposal struct {
	name  string
	build buildFunc
	reply chan error
}

// Actor submits moves for one participant. A proposal made through Play,
// Discard or Hint runs only against a turn the participant owns and has
// not yet acted on; anything else is dropped with ErrTurnUnavailable
// rather than held for a later turn. A refused submission still spends
// the turn and is never retried.
type Actor struct {
	view      *view.RoomView
	store     store.Store
	log       *logrus.Entry
	proposals chan proposal

	// spent is the ledger tail id the last submission ran against. Only
	// the run loop touches it.
	spent engine.MoveID
}

func NewActor(v *view.RoomView, st store.Store, log *logrus.Logger) (*Actor, error) {
	if !v.Participant {
		return nil, fmt.Errorf("client: %q is not a participant", v.UID)
	}
	if log == nil {
		log = logrus.New()
	}
	return &Actor{
		view:  v,
		store: st,
		log: log.WithFields(logrus.Fields{
			"component": "actor",
			"room":      v.RoomID,
			"uid":       v.UID,
		}),
		proposals: make(chan proposal),
		spent:     -1,
	}, nil
}

// Run drives the actor until ctx ends, consuming proposals one at a
// time.
func (a *Actor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-a.proposals:
			p.reply <- a.submit(ctx, p)
		}
	}
}

func (a *Actor) submit(ctx context.Context, p proposal) error {
	ti, ok := a.view.Turn.Get()
	if !ok || !ti.MyTurn {
		return ErrTurnUnavailable
	}
	ms, ok := a.view.Moves.Get()
	if !ok || len(ms) == 0 {
		return fmt.Errorf("no committed moves yet")
	}
	tail := ms[len(ms)-1]
	if tail.ID == a.spent {
		return ErrTurnUnavailable
	}
	// The turn is spent whether or not the submission stands.
	a.spent = tail.ID

	w, err := p.build(ctx, tail)
	if err != nil {
		a.log.WithError(err).WithField("action", p.name).Warn("action not built")
		return err
	}
	if err := a.store.Commit(ctx, a.view.RoomID, a.view.UID, w); err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{
			"action": p.name,
			"moveId": w.MoveID,
			"reason": engine.ReasonOf(err),
		}).Warn("submission refused")
		return err
	}
	a.log.WithFields(logrus.Fields{"action": p.name, "moveId": w.MoveID}).Info("move committed")
	return nil
}

// propose hands the action to the run loop and reports its outcome.
func (a *Actor) propose(ctx context.Context, name string, build buildFunc) error {
	p := proposal{name: name, build: build, reply: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case a.proposals <- p:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-p.reply:
		return err
	}
}

// Play proposes playing cardID from the participant's hand.
func (a *Actor) Play(ctx context.Context, cardID engine.CardID) error {
	return a.propose(ctx, "play", func(ctx context.Context, tail engine.MoveEntry) (engine.Write, error) {
		return engine.BuildCardMove(&a.view.Room, tail.ID, &tail.Move.StateAfter,
			a.view.PlayerID, engine.ActionPlay, cardID)
	})
}

// Discard proposes discarding cardID.
func (a *Actor) Discard(ctx context.Context, cardID engine.CardID) error {
	return a.propose(ctx, "discard", func(ctx context.Context, tail engine.MoveEntry) (engine.Write, error) {
		return engine.BuildCardMove(&a.view.Room, tail.ID, &tail.Move.StateAfter,
			a.view.PlayerID, engine.ActionDiscard, cardID)
	})
}

// Hint proposes hinting target about a suit or rank. The hint partition
// requires knowing every card in the target's hand, so the build waits
// until the whole hand is visible to this participant.
func (a *Actor) Hint(ctx context.Context, target engine.PlayerID, field engine.HintField, value int) error {
	return a.propose(ctx, "hint", func(ctx context.Context, tail engine.MoveEntry) (engine.Write, error) {
		st := &tail.Move.StateAfter
		if int(target) < 0 || int(target) >= len(st.Players) {
			return engine.Write{}, fmt.Errorf("no player %d", target)
		}
		hand, err := a.view.AwaitVisible(ctx, st.Players[target].Hand...)
		if err != nil {
			return engine.Write{}, fmt.Errorf("awaiting target hand: %w", err)
		}
		return engine.BuildHintMove(&a.view.Room, tail.ID, st, a.view.PlayerID, target, hand, field, value)
	})
}
