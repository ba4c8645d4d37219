package client

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yuchenshi/senko/engine"
	"github.com/yuchenshi/senko/internal/store"
	"github.com/yuchenshi/senko/internal/view"
)

// Reactor resolves pending plays on behalf of one participant. Every
// participant runs one, so resolutions race; losing the race is the
// normal outcome for all but one of them and is suppressed.
type Reactor struct {
	view  *view.RoomView
	store store.Store
	log   *logrus.Entry
}

func NewReactor(v *view.RoomView, st store.Store, log *logrus.Logger) (*Reactor, error) {
	if !v.Participant {
		return nil, fmt.Errorf("client: %q is not a participant", v.UID)
	}
	if log == nil {
		log = logrus.New()
	}
	return &Reactor{
		view:  v,
		store: st,
		log: log.WithFields(logrus.Fields{
			"component": "reactor",
			"room":      v.RoomID,
			"uid":       v.UID,
		}),
	}, nil
}

// Run watches the ledger tail and resolves every unresolved play until
// ctx ends. The play's write revealed the card, so visibility is
// immediate; the wait guards against watch ordering, not game state.
func (r *Reactor) Run(ctx context.Context) {
	for tail := range r.view.LastMove.Watch(ctx) {
		if !tail.Move.Unresolved() {
			continue
		}
		cards, err := r.view.AwaitVisible(ctx, *tail.Move.CardID)
		if err != nil {
			return
		}

		w := engine.BuildResolution(&r.view.Room, tail, &cards[0].Card)
		err = r.store.Commit(ctx, r.view.RoomID, r.view.UID, w)
		switch {
		case err == nil:
			r.log.WithFields(logrus.Fields{
				"moveId": tail.ID,
				"result": w.Resolution.Result,
			}).Info("play resolved")
		case engine.IsAlreadyResolved(err):
			// Another participant won the race.
			r.log.WithField("moveId", tail.ID).Debug("resolution raced and lost")
		default:
			r.log.WithError(err).WithField("moveId", tail.ID).Warn("resolution refused")
		}
	}
}
