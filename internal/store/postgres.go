package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yuchenshi/senko/engine"
)

// PgJournal persists committed writes to Postgres. Room and move
// documents are stored as jsonb; cards get columns so the set-once
// markers can be written with plain updates. The journal runs inside the
// store's commit critical section, so rows never disagree with the live
// documents.
type PgJournal struct {
	pool *pgxpool.Pool
}

func NewPgJournal(pool *pgxpool.Pool) *PgJournal {
	return &PgJournal{pool: pool}
}

func (j *PgJournal) RecordRoom(ctx context.Context, roomID uuid.UUID, setup *engine.Setup) error {
	roomDoc, err := json.Marshal(setup.Room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	initDoc, err := json.Marshal(setup.Init)
	if err != nil {
		return fmt.Errorf("marshal init move: %w", err)
	}

	return pgx.BeginFunc(ctx, j.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO rooms (id, doc) VALUES ($1, $2)`, roomID, roomDoc); err != nil {
			return fmt.Errorf("insert room: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO moves (room_id, id, doc) VALUES ($1, 0, $2)`, roomID, initDoc); err != nil {
			return fmt.Errorf("insert init move: %w", err)
		}
		for id, c := range setup.Cards {
			if _, err := tx.Exec(ctx, `
				INSERT INTO cards (room_id, id, suit, rank, wild, shown_to, drawn_by, revealed_by)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				roomID, id, int(c.Suit), int(c.Rank), c.SuitWildForHints,
				c.ShownToUIDs, moveIDOrNil(c.DrawnByMoveID), moveIDOrNil(c.RevealedByMoveID),
			); err != nil {
				return fmt.Errorf("insert card %d: %w", id, err)
			}
		}
		return nil
	})
}

func (j *PgJournal) RecordWrite(ctx context.Context, roomID uuid.UUID, w engine.Write) error {
	return pgx.BeginFunc(ctx, j.pool, func(tx pgx.Tx) error {
		switch {
		case w.Move != nil:
			doc, err := json.Marshal(w.Move)
			if err != nil {
				return fmt.Errorf("marshal move: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO moves (room_id, id, doc) VALUES ($1, $2, $3)`,
				roomID, int(w.MoveID), doc); err != nil {
				return fmt.Errorf("insert move %d: %w", w.MoveID, err)
			}
		case w.Resolution != nil:
			doc, err := json.Marshal(w.Resolution)
			if err != nil {
				return fmt.Errorf("marshal resolution: %w", err)
			}
			tag, err := tx.Exec(ctx,
				`UPDATE moves SET resolution = $3 WHERE room_id = $1 AND id = $2 AND resolution IS NULL`,
				roomID, int(w.MoveID), doc)
			if err != nil {
				return fmt.Errorf("resolve move %d: %w", w.MoveID, err)
			}
			if tag.RowsAffected() != 1 {
				return fmt.Errorf("resolve move %d: no unresolved row", w.MoveID)
			}
		}
		for id, u := range w.CardUpdates {
			if _, err := tx.Exec(ctx, `
				UPDATE cards
				SET shown_to = $3,
				    drawn_by = COALESCE(drawn_by, $4),
				    revealed_by = COALESCE(revealed_by, $5)
				WHERE room_id = $1 AND id = $2`,
				roomID, int(id), u.ShownToUIDs,
				moveIDOrNil(u.DrawnByMoveID), moveIDOrNil(u.RevealedByMoveID),
			); err != nil {
				return fmt.Errorf("update card %d: %w", id, err)
			}
		}
		return nil
	})
}

// RestoreInto reloads every journaled room into the given store,
// reapplying recorded resolutions to their moves.
func (j *PgJournal) RestoreInto(ctx context.Context, s *MemoryStore) error {
	rows, err := j.pool.Query(ctx, `SELECT id, doc FROM rooms`)
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}
	type loadedRoom struct {
		id   uuid.UUID
		room engine.Room
	}
	var loaded []loadedRoom
	for rows.Next() {
		var id uuid.UUID
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			rows.Close()
			return fmt.Errorf("scan room: %w", err)
		}
		var room engine.Room
		if err := json.Unmarshal(doc, &room); err != nil {
			rows.Close()
			return fmt.Errorf("unmarshal room %s: %w", id, err)
		}
		loaded = append(loaded, loadedRoom{id, room})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, lr := range loaded {
		moves, err := j.loadMoves(ctx, lr.id)
		if err != nil {
			return err
		}
		cards, err := j.loadCards(ctx, lr.id)
		if err != nil {
			return err
		}
		if err := s.Restore(lr.id, lr.room, moves, cards); err != nil {
			return fmt.Errorf("restore room %s: %w", lr.id, err)
		}
	}
	return nil
}

func (j *PgJournal) loadMoves(ctx context.Context, roomID uuid.UUID) ([]engine.MoveEntry, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT id, doc, resolution FROM moves WHERE room_id = $1 ORDER BY id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("load moves: %w", err)
	}
	defer rows.Close()

	var moves []engine.MoveEntry
	for rows.Next() {
		var id int
		var doc, resDoc []byte
		if err := rows.Scan(&id, &doc, &resDoc); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		var m engine.Move
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, fmt.Errorf("unmarshal move %d: %w", id, err)
		}
		if resDoc != nil {
			var res engine.Resolution
			if err := json.Unmarshal(resDoc, &res); err != nil {
				return nil, fmt.Errorf("unmarshal resolution %d: %w", id, err)
			}
			m = engine.ApplyResolution(&m, &res)
		}
		moves = append(moves, engine.MoveEntry{ID: engine.MoveID(id), Move: m})
	}
	return moves, rows.Err()
}

func (j *PgJournal) loadCards(ctx context.Context, roomID uuid.UUID) ([]engine.Card, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT id, suit, rank, wild, shown_to, drawn_by, revealed_by
		FROM cards WHERE room_id = $1 ORDER BY id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	defer rows.Close()

	var cards []engine.Card
	for rows.Next() {
		var (
			id, suit, rank     int
			wild               bool
			shownTo            []string
			drawnBy, revealedBy *int
		)
		if err := rows.Scan(&id, &suit, &rank, &wild, &shownTo, &drawnBy, &revealedBy); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if id != len(cards) {
			return nil, fmt.Errorf("card ids not dense at %d", id)
		}
		c := engine.Card{
			Suit:             engine.SuitID(suit),
			Rank:             engine.RankID(rank),
			SuitWildForHints: wild,
			ShownToUIDs:      shownTo,
		}
		if drawnBy != nil {
			v := engine.MoveID(*drawnBy)
			c.DrawnByMoveID = &v
		}
		if revealedBy != nil {
			v := engine.MoveID(*revealedBy)
			c.RevealedByMoveID = &v
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func moveIDOrNil(id *engine.MoveID) *int {
	if id == nil {
		return nil
	}
	v := int(*id)
	return &v
}
