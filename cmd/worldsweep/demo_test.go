package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldsweep/extension/pkg/sweep"
	"github.com/worldsweep/extension/pkg/task"
)

func TestDemoWorldDeterministic(t *testing.T) {
	a := newDemoWorld(42)
	b := newDemoWorld(42)
	assert.Equal(t, a.Len(), b.Len())

	a.churn()
	b.churn()
	assert.Equal(t, a.Len(), b.Len())
}

func TestDemoWorldChurnStrandsOrphans(t *testing.T) {
	w := newDemoWorld(7)
	for i := 0; i < 5; i++ {
		w.churn()
	}

	runner := task.NewRunner(zerolog.Nop())
	sweeper, err := sweep.NewSweeper(sweep.Dependencies{
		Population: w,
		Runner:     runner,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, sweeper.Request())
	for i := 0; i < 10000 && sweeper.Running(); i++ {
		runner.Tick()
	}
	require.False(t, sweeper.Running())

	r, ok := sweeper.LastReport()
	require.True(t, ok)
	assert.False(t, r.Aborted)
	// every churn round leaks at least one held entity
	assert.GreaterOrEqual(t, r.Removed, 5)
	assert.Equal(t, r.Removed, w.DestroyedCount())

	// a second pass over the same world finds nothing left to reclaim
	require.NoError(t, sweeper.Request())
	for i := 0; i < 10000 && sweeper.Running(); i++ {
		runner.Tick()
	}
	r2, ok := sweeper.LastReport()
	require.True(t, ok)
	assert.Zero(t, r2.Removed)
}
