package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/derelict/internal/game/encounter"
)

// ErrEncounterNotFound is returned by Get for an unknown encounter id.
var ErrEncounterNotFound = errors.New("archived encounter not found")

// EncounterArchive stores resolved encounters. It implements encounter.Archiver.
type EncounterArchive struct {
	db *pgxpool.Pool
}

// NewEncounterArchive creates an EncounterArchive backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewEncounterArchive(db *pgxpool.Pool) *EncounterArchive {
	return &EncounterArchive{db: db}
}

// Archive inserts rec. Archiving the same encounter id twice keeps the first record.
//
// Precondition: rec.ID must be non-empty.
func (a *EncounterArchive) Archive(ctx context.Context, rec encounter.Record) error {
	_, err := a.db.Exec(ctx,
		`INSERT INTO encounters (id, context, result, rounds, base_overrun, location_id,
		     mission_tag, party_ids, hostile_ids, defeated, xp, started_at, resolved_at, log)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Context.String(), rec.Result.String(), rec.Rounds, rec.BaseOverrun,
		rec.LocationID, rec.MissionTag, nonNil(rec.PartyIDs), nonNil(rec.HostileIDs),
		rec.Defeated, rec.XP, rec.StartedAt, rec.ResolvedAt, nonNil(rec.Log),
	)
	if err != nil {
		return fmt.Errorf("archiving encounter %s: %w", rec.ID, err)
	}
	return nil
}

const recordColumns = `id, context, result, rounds, base_overrun, location_id, mission_tag,
	party_ids, hostile_ids, defeated, xp, started_at, resolved_at, log`

// Get returns the archived record for id or ErrEncounterNotFound.
func (a *EncounterArchive) Get(ctx context.Context, id string) (encounter.Record, error) {
	rec, err := scanRecord(a.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM encounters WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return encounter.Record{}, ErrEncounterNotFound
		}
		return encounter.Record{}, fmt.Errorf("querying encounter %s: %w", id, err)
	}
	return rec, nil
}

// Recent returns up to limit records, most recently resolved first.
//
// Precondition: limit must be positive.
func (a *EncounterArchive) Recent(ctx context.Context, limit int) ([]encounter.Record, error) {
	rows, err := a.db.Query(ctx,
		`SELECT `+recordColumns+` FROM encounters ORDER BY resolved_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing encounters: %w", err)
	}
	defer rows.Close()

	var out []encounter.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning encounter: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (encounter.Record, error) {
	var (
		rec           encounter.Record
		kind, outcome string
	)
	err := row.Scan(&rec.ID, &kind, &outcome, &rec.Rounds, &rec.BaseOverrun,
		&rec.LocationID, &rec.MissionTag, &rec.PartyIDs, &rec.HostileIDs,
		&rec.Defeated, &rec.XP, &rec.StartedAt, &rec.ResolvedAt, &rec.Log)
	if err != nil {
		return encounter.Record{}, err
	}
	if rec.Context, err = parseContext(kind); err != nil {
		return encounter.Record{}, err
	}
	if rec.Result, err = parseResult(outcome); err != nil {
		return encounter.Record{}, err
	}
	return rec, nil
}

func parseContext(s string) (encounter.Context, error) {
	for _, c := range []encounter.Context{encounter.ContextField, encounter.ContextRaid, encounter.ContextMission} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown encounter context %q", s)
}

func parseResult(s string) (encounter.Result, error) {
	for _, r := range []encounter.Result{encounter.ResultPending, encounter.ResultWin, encounter.ResultLoss, encounter.ResultRetreat} {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown encounter result %q", s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
