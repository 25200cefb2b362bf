package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/derelict/internal/game/threat"
)

// ErrThreatNotFound is returned by Load when no snapshot has been saved.
var ErrThreatNotFound = errors.New("threat snapshot not found")

// ThreatRepository persists one station's threat state.
type ThreatRepository struct {
	db        *pgxpool.Pool
	stationID string
}

// NewThreatRepository creates a ThreatRepository for stationID.
//
// Precondition: db must be a valid, open connection pool; stationID must be non-empty.
func NewThreatRepository(db *pgxpool.Pool, stationID string) *ThreatRepository {
	return &ThreatRepository{db: db, stationID: stationID}
}

// Save upserts the snapshot.
//
// Postcondition: a later Load returns s with times truncated to microseconds.
func (r *ThreatRepository) Save(ctx context.Context, s threat.State) error {
	var lastEscalation *time.Time
	if !s.LastEscalationAt.IsZero() {
		lastEscalation = &s.LastEscalationAt
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO threat_state (station_id, value, tier_floor, escalation_level,
		     last_raid_at, raid_cooldown_window, locked, last_escalation_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 ON CONFLICT (station_id) DO UPDATE SET
		     value = EXCLUDED.value,
		     tier_floor = EXCLUDED.tier_floor,
		     escalation_level = EXCLUDED.escalation_level,
		     last_raid_at = EXCLUDED.last_raid_at,
		     raid_cooldown_window = EXCLUDED.raid_cooldown_window,
		     locked = EXCLUDED.locked,
		     last_escalation_at = EXCLUDED.last_escalation_at,
		     updated_at = NOW()`,
		r.stationID, s.Value, s.TierFloor, s.EscalationLevel,
		s.LastRaidAt, int64(s.RaidCooldownWindow), s.Locked, lastEscalation,
	)
	if err != nil {
		return fmt.Errorf("saving threat state: %w", err)
	}
	return nil
}

// Load returns the saved snapshot or ErrThreatNotFound.
func (r *ThreatRepository) Load(ctx context.Context) (threat.State, error) {
	var (
		s              threat.State
		window         int64
		lastEscalation *time.Time
	)
	err := r.db.QueryRow(ctx,
		`SELECT value, tier_floor, escalation_level, last_raid_at,
		        raid_cooldown_window, locked, last_escalation_at
		 FROM threat_state WHERE station_id = $1`,
		r.stationID,
	).Scan(&s.Value, &s.TierFloor, &s.EscalationLevel, &s.LastRaidAt,
		&window, &s.Locked, &lastEscalation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return threat.State{}, ErrThreatNotFound
		}
		return threat.State{}, fmt.Errorf("loading threat state: %w", err)
	}
	s.RaidCooldownWindow = time.Duration(window)
	if lastEscalation != nil {
		s.LastEscalationAt = *lastEscalation
	}
	return s, nil
}
