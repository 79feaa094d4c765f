package sweep

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldsweep/extension/pkg/task"
	"github.com/worldsweep/extension/pkg/world"
	"github.com/worldsweep/extension/pkg/world/worldtest"
)

// Compile-time interface checks.
var (
	_ world.Population = (*worldtest.World)(nil)
	_ ReportSink       = (*sinkStub)(nil)
)

type sinkStub struct {
	mu      sync.Mutex
	reports []*Report
}

func (s *sinkStub) Submit(r *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
}

func (s *sinkStub) all() []*Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]*Report, len(s.reports))
	copy(cp, s.reports)
	return cp
}

func newTestSweeper(t *testing.T, w *worldtest.World) (*Sweeper, *task.Runner) {
	t.Helper()
	runner := task.NewRunner(zerolog.Nop())
	s, err := NewSweeper(Dependencies{
		Population: w,
		Runner:     runner,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return s, runner
}

// runPass requests a pass and ticks the runner until the guard clears,
// returning the published report and the tick count it took.
func runPass(t *testing.T, s *Sweeper, runner *task.Runner) (*Report, int) {
	t.Helper()
	require.NoError(t, s.Request())

	ticks := 0
	for s.Running() {
		require.Less(t, ticks, 10000, "pass did not finish")
		runner.Tick()
		ticks++
	}

	r, ok := s.LastReport()
	require.True(t, ok)
	return r, ticks
}

// mixedWorld builds ten held entities: six referenced directly from
// holder inventories, one referenced from an item nested inside a
// container, and three orphans. Returns the orphan IDs.
func mixedWorld() (*worldtest.World, []uint64) {
	w := worldtest.New()

	held := make([]*worldtest.HeldEntity, 0, 10)
	for i := 0; i < 10; i++ {
		held = append(held, w.AddHeldEntity())
	}

	w.AddPlayer(
		worldtest.NewItem(1).Holding(held[0]),
		worldtest.NewItem(3).Holding(held[1]),
	)
	w.AddCorpse(worldtest.NewItem(1).Holding(held[2]))
	w.AddStorage(
		worldtest.NewItem(2).Holding(held[3]),
		worldtest.NewItem(1).Containing(worldtest.NewItem(1).Holding(held[6])),
	)
	w.AddIODevice(worldtest.NewItem(1).Holding(held[4]))
	w.AddDroppedContainer(worldtest.NewItem(5).Holding(held[5]))

	// held[7:] have no owning item anywhere.
	w.AddProp()
	w.AddDroppedItem(worldtest.NewItem(4))

	return w, []uint64{held[7].ID(), held[8].ID(), held[9].ID()}
}

func TestPass_RemovesOnlyOrphans(t *testing.T) {
	w, orphanIDs := mixedWorld()
	s, runner := newTestSweeper(t, w)

	r, ticks := runPass(t, s, runner)

	require.False(t, r.Aborted)
	assert.Equal(t, 10, r.HeldEntities)
	assert.Equal(t, 3, r.Orphans)
	assert.Equal(t, 3, r.Removed)
	assert.Equal(t, 0, r.SkippedInvalid)
	assert.Equal(t, 0, r.SkippedClaimed)
	assert.Equal(t, 17, r.Entities)
	assert.Equal(t, 9, r.ItemsConsidered)
	assert.Equal(t, ticks, r.Steps)
	assert.GreaterOrEqual(t, r.Steps, 4)

	assert.Equal(t, SourceCounts{
		Players:           1,
		Corpses:           1,
		Storages:          1,
		IODevices:         1,
		DroppedItems:      1,
		DroppedContainers: 1,
	}, r.Sources)

	assert.ElementsMatch(t, orphanIDs, w.Destroyed())
}

func TestPass_EmptyItemStillClaims(t *testing.T) {
	w := worldtest.New()
	claimed := w.AddHeldEntity()
	orphan := w.AddHeldEntity()
	w.AddPlayer(worldtest.NewItem(0).Holding(claimed))

	s, runner := newTestSweeper(t, w)
	r, _ := runPass(t, s, runner)

	assert.Equal(t, 1, r.Removed)
	assert.True(t, claimed.Valid(), "empty item must keep its held entity claimed")
	assert.ElementsMatch(t, []uint64{orphan.ID()}, w.Destroyed())
}

func TestPass_SecondRunRemovesNothing(t *testing.T) {
	w, _ := mixedWorld()
	s, runner := newTestSweeper(t, w)

	r1, _ := runPass(t, s, runner)
	require.Equal(t, 3, r1.Removed)

	r2, _ := runPass(t, s, runner)
	assert.Equal(t, 0, r2.Removed)
	assert.Equal(t, 0, r2.Orphans)
	assert.Equal(t, 7, r2.HeldEntities)
	assert.Equal(t, 3, r2.SkippedEntities, "destroyed entities stay in the fake population as invalid")
	assert.Equal(t, 3, w.DestroyedCount())
	assert.NotEqual(t, r1.PassID, r2.PassID)
}

func TestRequest_RejectsWhileRunning(t *testing.T) {
	w, _ := mixedWorld()
	s, runner := newTestSweeper(t, w)

	_, ok := s.LastReport()
	require.False(t, ok)

	require.NoError(t, s.Request())
	require.True(t, s.Running())

	err := s.Request()
	require.ErrorIs(t, err, ErrPassRunning)

	for s.Running() {
		runner.Tick()
	}

	require.NoError(t, s.Request(), "guard must clear after completion")
	for s.Running() {
		runner.Tick()
	}

	totals := s.Totals()
	assert.Equal(t, uint64(2), totals.Passes)
	assert.Equal(t, uint64(1), totals.Rejected)
}

func TestPass_AbortsWhenPopulationUnavailable(t *testing.T) {
	w, orphanIDs := mixedWorld()
	w.SetError(errors.New("world not loaded"))
	s, runner := newTestSweeper(t, w)

	require.NoError(t, s.Request())
	runner.Tick()

	require.False(t, s.Running(), "abort must clear the guard")
	r, ok := s.LastReport()
	require.True(t, ok)
	assert.True(t, r.Aborted)
	assert.Contains(t, r.Reason, "population unavailable")
	assert.Equal(t, 0, w.DestroyedCount())

	// Once the population is back the next request runs normally.
	w.SetError(nil)
	r2, _ := runPass(t, s, runner)
	assert.False(t, r2.Aborted)
	assert.ElementsMatch(t, orphanIDs, w.Destroyed())

	totals := s.Totals()
	assert.Equal(t, uint64(1), totals.Aborted)
	assert.Equal(t, uint64(1), totals.Completed)
}

func TestShutdown_CancelsInFlightPass(t *testing.T) {
	w, _ := mixedWorld()
	s, runner := newTestSweeper(t, w)

	require.NoError(t, s.Request())
	runner.Tick() // scan
	runner.Tick() // expand

	s.Shutdown()

	require.False(t, s.Running())
	assert.False(t, runner.Has(PassTaskName))

	r, ok := s.LastReport()
	require.True(t, ok)
	assert.True(t, r.Aborted)
	assert.Equal(t, "cancelled", r.Reason)
	assert.Equal(t, 0, w.DestroyedCount())

	// The sweeper stays usable after shutdown.
	r2, _ := runPass(t, s, runner)
	assert.Equal(t, 3, r2.Removed)
}

func TestPass_YieldsOnReclaimBudget(t *testing.T) {
	w := worldtest.New()
	for i := 0; i < 6; i++ {
		w.AddHeldEntity()
	}
	s, runner := newTestSweeper(t, w)
	s.SetBudget(time.Nanosecond)

	require.NoError(t, s.Request())
	runner.Tick() // scan
	runner.Tick() // expand
	runner.Tick() // resolve
	runner.Tick() // first reclaim batch
	require.True(t, s.Running(), "reclaim must yield once the budget is spent")

	ticks := 4
	for s.Running() {
		require.Less(t, ticks, 10000)
		runner.Tick()
		ticks++
	}

	r, ok := s.LastReport()
	require.True(t, ok)
	assert.Equal(t, 6, r.Removed)
	assert.Greater(t, r.Steps, 4, "destruction must span multiple batches")
	assert.Equal(t, 6, w.DestroyedCount())
}

func TestReclaim_SkipsInvalidatedOrphan(t *testing.T) {
	w := worldtest.New()
	gone := w.AddHeldEntity()
	stays := w.AddHeldEntity()

	s, runner := newTestSweeper(t, w)
	require.NoError(t, s.Request())
	runner.Tick() // scan
	runner.Tick() // expand
	runner.Tick() // resolve

	// The host despawns one orphan between resolve and reclaim.
	gone.Invalidate()

	for s.Running() {
		runner.Tick()
	}

	r, ok := s.LastReport()
	require.True(t, ok)
	assert.Equal(t, 1, r.Removed)
	assert.Equal(t, 1, r.SkippedInvalid)
	assert.NotContains(t, w.Destroyed(), gone.ID())
	assert.ElementsMatch(t, []uint64{stays.ID()}, w.Destroyed())
}

func TestReclaim_SkipsReattachedOrphan(t *testing.T) {
	w := worldtest.New()
	reclaimed := w.AddHeldEntity()
	taken := w.AddHeldEntity()

	s, runner := newTestSweeper(t, w)
	require.NoError(t, s.Request())
	runner.Tick() // scan
	runner.Tick() // expand
	runner.Tick() // resolve

	// A player picks the entity back up before reclaim reaches it.
	taken.Attach(worldtest.NewItem(2))

	for s.Running() {
		runner.Tick()
	}

	r, ok := s.LastReport()
	require.True(t, ok)
	assert.Equal(t, 1, r.Removed)
	assert.Equal(t, 1, r.SkippedClaimed)
	assert.True(t, taken.Valid())
	assert.ElementsMatch(t, []uint64{reclaimed.ID()}, w.Destroyed())
}

func TestPass_EmptyPopulation(t *testing.T) {
	s, runner := newTestSweeper(t, worldtest.New())

	r, _ := runPass(t, s, runner)

	assert.False(t, r.Aborted)
	assert.Equal(t, 0, r.Entities)
	assert.Equal(t, 0, r.Removed)
	assert.Equal(t, 4, r.Steps)
}

func TestPass_SkipsNilAndInvalidEntities(t *testing.T) {
	w := worldtest.New()
	w.AddNil()

	he := w.AddHeldEntity()
	storage := w.AddStorage(worldtest.NewItem(1).Holding(he))
	storage.Invalidate()

	w.AddDroppedItem(nil)

	s, runner := newTestSweeper(t, w)
	r, _ := runPass(t, s, runner)

	assert.Equal(t, 4, r.Entities)
	assert.Equal(t, 2, r.SkippedEntities)
	assert.Equal(t, 0, r.ItemsConsidered)
	// With its holder gone the held entity counts as orphaned.
	assert.Equal(t, 1, r.Removed)
	assert.ElementsMatch(t, []uint64{he.ID()}, w.Destroyed())
}

func TestSweeper_SubmitsReportsToSink(t *testing.T) {
	w, _ := mixedWorld()
	runner := task.NewRunner(zerolog.Nop())
	sink := &sinkStub{}
	s, err := NewSweeper(Dependencies{
		Population: w,
		Runner:     runner,
		Logger:     zerolog.Nop(),
		Reports:    sink,
	})
	require.NoError(t, err)

	r1, _ := runPass(t, s, runner)

	w.SetError(errors.New("world not loaded"))
	require.NoError(t, s.Request())
	runner.Tick()

	got := sink.all()
	require.Len(t, got, 2)
	assert.Same(t, r1, got[0])
	assert.True(t, got[1].Aborted)
}

func TestSweeper_TotalsAccumulate(t *testing.T) {
	w, _ := mixedWorld()
	s, runner := newTestSweeper(t, w)

	r1, _ := runPass(t, s, runner)
	require.Equal(t, 3, r1.Removed)

	require.NoError(t, s.Request())
	require.ErrorIs(t, s.Request(), ErrPassRunning)
	runner.Tick() // scan
	s.Shutdown()

	assert.Equal(t, Totals{
		Passes:    2,
		Completed: 1,
		Aborted:   1,
		Rejected:  1,
		Removed:   3,
	}, s.Totals())
}

func TestSweeper_BudgetBounds(t *testing.T) {
	s, _ := newTestSweeper(t, worldtest.New())

	assert.Equal(t, 4*time.Millisecond, s.Budget())

	s.SetBudget(10 * time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, s.Budget())

	s.SetBudget(0)
	assert.Equal(t, 4*time.Millisecond, s.Budget())

	s.SetBudget(-time.Second)
	assert.Equal(t, 4*time.Millisecond, s.Budget())
}

func TestSweeper_ConfiguredBudget(t *testing.T) {
	runner := task.NewRunner(zerolog.Nop())
	s, err := NewSweeper(Dependencies{
		Population: worldtest.New(),
		Runner:     runner,
		Logger:     zerolog.Nop(),
		Config:     Config{Budget: 7 * time.Millisecond},
	})
	require.NoError(t, err)
	assert.Equal(t, 7*time.Millisecond, s.Budget())
}

func TestReport_Summary(t *testing.T) {
	w, _ := mixedWorld()
	s, runner := newTestSweeper(t, w)

	r, _ := runPass(t, s, runner)
	assert.Contains(t, r.Summary(), "removed 3 of 10")

	w.SetError(errors.New("world not loaded"))
	require.NoError(t, s.Request())
	runner.Tick()

	r2, ok := s.LastReport()
	require.True(t, ok)
	assert.Contains(t, r2.Summary(), "aborted")
}
