package postgres

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/derelict/internal/game/encounter"
	"github.com/cory-johannsen/derelict/migrations"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrations.FS, "*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrations.FS, "*.down.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestParseContext_RoundTripsString(t *testing.T) {
	for _, c := range []encounter.Context{encounter.ContextField, encounter.ContextRaid, encounter.ContextMission} {
		got, err := parseContext(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := parseContext("unknown")
	assert.Error(t, err)
}

func TestParseResult_RoundTripsString(t *testing.T) {
	for _, r := range []encounter.Result{encounter.ResultPending, encounter.ResultWin, encounter.ResultLoss, encounter.ResultRetreat} {
		got, err := parseResult(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	_, err := parseResult("draw")
	assert.Error(t, err)
}

// Property: nonNil never returns nil and preserves non-nil input.
func TestPropertyNonNil(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.SliceOf(rapid.String()).Draw(t, "in")
		if rapid.Bool().Draw(t, "nil") {
			in = nil
		}
		out := nonNil(in)
		if out == nil {
			t.Fatal("nonNil returned nil")
		}
		if len(out) != len(in) {
			t.Fatalf("len = %d, want %d", len(out), len(in))
		}
	})
}
