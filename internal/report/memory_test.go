package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldsweep/extension/internal/config"
)

func TestMemory_RecordPassTrimsToCapacity(t *testing.T) {
	m := NewMemory(config.MemoryReportConfig{Capacity: 3})

	for i := 0; i < 5; i++ {
		require.NoError(t, m.RecordPass(testReport(i, false)))
	}

	assert.Equal(t, 3, m.Len())

	// Oldest two evicted, newest first on read.
	recent := m.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, 4, recent[0].Removed)
	assert.Equal(t, 3, recent[1].Removed)
	assert.Equal(t, 2, recent[2].Removed)
}

func TestMemory_RecentNewestFirst(t *testing.T) {
	m := NewMemory(config.MemoryReportConfig{Capacity: 10})

	r1 := testReport(1, false)
	r2 := testReport(2, false)
	r3 := testReport(3, true)
	require.NoError(t, m.RecordPass(r1))
	require.NoError(t, m.RecordPass(r2))
	require.NoError(t, m.RecordPass(r3))

	recent := m.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, r3.PassID, recent[0].PassID)
	assert.Equal(t, r2.PassID, recent[1].PassID)
}

func TestMemory_RecentMoreThanStored(t *testing.T) {
	m := NewMemory(config.MemoryReportConfig{Capacity: 10})
	require.NoError(t, m.RecordPass(testReport(1, false)))

	recent := m.Recent(100)
	assert.Len(t, recent, 1)
}

func TestMemory_RecentEmpty(t *testing.T) {
	m := NewMemory(config.MemoryReportConfig{Capacity: 4})
	assert.Empty(t, m.Recent(5))
	assert.Equal(t, 0, m.Len())
}

func TestMemory_CapacityClamped(t *testing.T) {
	m := NewMemory(config.MemoryReportConfig{Capacity: 0})

	require.NoError(t, m.RecordPass(testReport(1, false)))
	require.NoError(t, m.RecordPass(testReport(2, false)))

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, m.Recent(0)[0].Removed)
}
