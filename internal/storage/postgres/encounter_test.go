package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/derelict/internal/game/encounter"
	"github.com/cory-johannsen/derelict/internal/storage/postgres"
	"github.com/cory-johannsen/derelict/internal/testutil"
)

var _ encounter.Archiver = (*postgres.EncounterArchive)(nil)

func makeRecord(id string, resolved time.Time) encounter.Record {
	return encounter.Record{
		ID:         id,
		Context:    encounter.ContextMission,
		Result:     encounter.ResultWin,
		Rounds:     4,
		MissionTag: "distress_beacon/signal",
		PartyIDs:   []string{"s-1", "s-2"},
		HostileIDs: []string{"h-1"},
		Defeated:   1,
		XP:         30,
		StartedAt:  resolved.Add(-time.Minute),
		ResolvedAt: resolved,
		Log:        []string{"Vance hits husk for 12", "husk is dead"},
	}
}

func TestEncounterArchive_ArchiveAndGet(t *testing.T) {
	archive := postgres.NewEncounterArchive(testutil.NewMigratedPool(t))
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	want := makeRecord(testutil.UniqueID("enc"), now)
	require.NoError(t, archive.Archive(ctx, want))

	got, err := archive.Get(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.Context, got.Context)
	assert.Equal(t, want.Result, got.Result)
	assert.Equal(t, want.Rounds, got.Rounds)
	assert.Equal(t, want.MissionTag, got.MissionTag)
	assert.Equal(t, want.PartyIDs, got.PartyIDs)
	assert.Equal(t, want.HostileIDs, got.HostileIDs)
	assert.Equal(t, want.Log, got.Log)
	assert.Equal(t, want.XP, got.XP)
	assert.True(t, want.ResolvedAt.Equal(got.ResolvedAt))
}

func TestEncounterArchive_GetUnknown(t *testing.T) {
	archive := postgres.NewEncounterArchive(testutil.NewMigratedPool(t))
	_, err := archive.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, postgres.ErrEncounterNotFound)
}

func TestEncounterArchive_DuplicateKeepsFirst(t *testing.T) {
	archive := postgres.NewEncounterArchive(testutil.NewMigratedPool(t))
	ctx := context.Background()

	rec := makeRecord("enc-dup", time.Now())
	require.NoError(t, archive.Archive(ctx, rec))
	rec.Result = encounter.ResultLoss
	require.NoError(t, archive.Archive(ctx, rec))

	got, err := archive.Get(ctx, "enc-dup")
	require.NoError(t, err)
	assert.Equal(t, encounter.ResultWin, got.Result)
}

func TestEncounterArchive_NilSlicesStoredEmpty(t *testing.T) {
	archive := postgres.NewEncounterArchive(testutil.NewMigratedPool(t))
	ctx := context.Background()

	rec := encounter.Record{
		ID:          "enc-raid",
		Context:     encounter.ContextRaid,
		Result:      encounter.ResultLoss,
		BaseOverrun: true,
		StartedAt:   time.Now(),
		ResolvedAt:  time.Now(),
	}
	require.NoError(t, archive.Archive(ctx, rec))

	got, err := archive.Get(ctx, "enc-raid")
	require.NoError(t, err)
	assert.True(t, got.BaseOverrun)
	assert.Empty(t, got.PartyIDs)
	assert.Empty(t, got.Log)
}

func TestEncounterArchive_RecentNewestFirst(t *testing.T) {
	archive := postgres.NewEncounterArchive(testutil.NewMigratedPool(t))
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, archive.Archive(ctx, makeRecord(id, base.Add(time.Duration(i)*time.Minute))))
	}

	recent, err := archive.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "new", recent[0].ID)
	assert.Equal(t, "mid", recent[1].ID)
}
