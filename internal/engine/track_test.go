package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questforge/internal/domain"
	"questforge/internal/engine"
)

func TestTrackChangeLimit(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.ChangeTrack(env.Ctx, "carol", "FOUNDER")
	require.ErrorIs(t, err, engine.ErrNotFound)
	_, err = env.Engine.CheckEligibility(env.Ctx, "carol")
	require.ErrorIs(t, err, engine.ErrNotFound)

	s, err := env.Engine.Onboard(env.Ctx, "carol", "learning")
	require.NoError(t, err)
	assert.Equal(t, 0, s.TrackChangeCount)
	_, err = env.Engine.Onboard(env.Ctx, "carol", "FOUNDER")
	require.ErrorIs(t, err, engine.ErrAlreadyExists)

	elig, err := env.Engine.CheckEligibility(env.Ctx, "carol")
	require.NoError(t, err)
	assert.True(t, elig.CanChange)
	assert.Equal(t, 2, elig.RemainingChanges)

	_, err = env.Engine.ChangeTrack(env.Ctx, "carol", "astronaut")
	require.ErrorIs(t, err, engine.ErrInvalidTrack)
	_, err = env.Engine.ChangeTrack(env.Ctx, "carol", "LEARNING")
	require.ErrorIs(t, err, engine.ErrSameTrack)

	res, err := env.Engine.ChangeTrack(env.Ctx, "carol", "FOUNDER")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Settings.TrackChangeCount)
	assert.Equal(t, 1, res.RemainingChanges)
	require.NotNil(t, res.Settings.TrackChangedAt)

	res, err = env.Engine.ChangeTrack(env.Ctx, "carol", "freelancer")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Settings.TrackChangeCount)
	assert.Equal(t, 0, res.RemainingChanges)

	_, err = env.Engine.ChangeTrack(env.Ctx, "carol", "PROFESSIONAL")
	require.ErrorIs(t, err, engine.ErrLimitReached)
	assert.Equal(t, "you have used all 2 track changes", err.Error())

	stored, err := env.Engine.GetSettings(env.Ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TrackChangeCount)
	require.NotNil(t, stored.Track)
	assert.Equal(t, domain.TrackFreelancer, *stored.Track)

	elig, err = env.Engine.CheckEligibility(env.Ctx, "carol")
	require.NoError(t, err)
	assert.False(t, elig.CanChange)
	assert.Equal(t, 0, elig.RemainingChanges)
}
