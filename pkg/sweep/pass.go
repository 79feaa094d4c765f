package sweep

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/worldsweep/extension/internal/queue"
	"github.com/worldsweep/extension/pkg/task"
	"github.com/worldsweep/extension/pkg/world"
)

// phase of one pass. Phases execute strictly in order with a yield
// between each; reclaim spans as many ticks as its budget demands.
type phase int

const (
	phaseScan phase = iota
	phaseExpand
	phaseResolve
	phaseReclaim
)

// pass is the resumable state machine for one scan-expand-resolve-reclaim
// execution. Its fields are touched only from step and the cancel hook;
// the runner serializes both with the host tick.
type pass struct {
	s     *Sweeper
	phase phase

	candidates map[uint64]world.HeldEntity
	items      []world.Item
	orphans    *queue.Queue[world.HeldEntity]

	report     Report
	phaseStart time.Time
	finalized  atomic.Bool
}

func newPass(s *Sweeper) *pass {
	now := time.Now()
	return &pass{
		s:          s,
		candidates: make(map[uint64]world.HeldEntity),
		orphans:    queue.New[world.HeldEntity](),
		report: Report{
			PassID:    uuid.New(),
			StartedAt: now,
		},
		phaseStart: now,
	}
}

// step advances the pass by one phase, or by one reclaim batch once the
// destruction loop is reached.
func (p *pass) step() task.Status {
	p.report.Steps++

	switch p.phase {
	case phaseScan:
		ents, err := p.s.pop.Entities()
		if err != nil {
			p.abort(fmt.Errorf("population unavailable: %w", err))
			return task.Done
		}
		p.scan(ents)
		p.report.ScanDuration = p.rotatePhase(phaseExpand)
		return task.Yield

	case phaseExpand:
		p.expand()
		p.report.ExpandDuration = p.rotatePhase(phaseResolve)
		return task.Yield

	case phaseResolve:
		p.resolve()
		p.report.ResolveDuration = p.rotatePhase(phaseReclaim)
		return task.Yield

	case phaseReclaim:
		batchStart := time.Now()
		more := p.reclaimBatch(batchStart)
		p.report.ReclaimDuration += time.Since(batchStart)
		if more {
			return task.Yield
		}
		p.finish()
		return task.Done
	}

	return task.Done
}

// rotatePhase closes out the current phase and returns its duration.
func (p *pass) rotatePhase(next phase) time.Duration {
	now := time.Now()
	d := now.Sub(p.phaseStart)
	p.phaseStart = now
	p.phase = next
	return d
}

// scan classifies the population by capability: held-entity candidates on
// one side, top-level items on the other. Read-only; nil and invalid
// entities are skipped silently.
func (p *pass) scan(ents []world.Entity) {
	p.report.Entities = len(ents)

	for _, ent := range ents {
		if ent == nil || !ent.Valid() {
			p.report.SkippedEntities++
			continue
		}

		switch e := ent.(type) {
		case world.HeldEntity:
			p.candidates[e.ID()] = e
		case world.PlayerInventory:
			p.appendItems(e.InventoryItems())
			p.report.Sources.Players++
		case world.CorpseContainer:
			p.appendItems(e.CorpseItems())
			p.report.Sources.Corpses++
		case world.StorageContainer:
			p.appendItems(e.StoredItems())
			p.report.Sources.Storages++
		case world.IODevice:
			p.appendItems(e.IOItems())
			p.report.Sources.IODevices++
		case world.DroppedItem:
			if it, ok := e.Stack(); ok && it != nil {
				p.items = append(p.items, it)
			}
			p.report.Sources.DroppedItems++
		case world.DroppedContainer:
			p.appendItems(e.PackedItems())
			p.report.Sources.DroppedContainers++
		}
	}

	p.report.HeldEntities = len(p.candidates)
	p.s.log.Debug().
		Str("pass", p.report.PassID.String()).
		Int("entities", p.report.Entities).
		Int("heldEntities", p.report.HeldEntities).
		Int("topLevelItems", len(p.items)).
		Msg("scan complete")
}

func (p *pass) appendItems(items []world.Item) {
	for _, it := range items {
		if it != nil {
			p.items = append(p.items, it)
		}
	}
}

// expand appends every item's nested contents to the same slice. Appended
// items are visited later in the traversal, so one pass over the growing
// list reaches every nesting level.
func (p *pass) expand() {
	for i := 0; i < len(p.items); i++ {
		p.appendItems(p.items[i].Contents())
	}
	p.report.ItemsConsidered = len(p.items)
}

// resolve drops every held entity still claimed by an item from the
// candidate set; whatever remains is this pass's orphan queue. Amounts
// are deliberately not consulted: an empty item that still exposes a
// back-reference keeps its held entity claimed.
func (p *pass) resolve() {
	for _, it := range p.items {
		if he, ok := it.HeldEntity(); ok && he != nil && he.Valid() {
			delete(p.candidates, he.ID())
		}
	}

	for _, he := range p.candidates {
		p.orphans.Push(he)
	}
	p.candidates = nil
	p.report.Orphans = p.orphans.Len()
}

// reclaimBatch destroys orphans until the queue drains or the soft budget
// is exceeded. Returns true when more work remains. Wall-clock based
// because per-entity destruction cost is not uniform.
func (p *pass) reclaimBatch(batchStart time.Time) bool {
	budget := p.s.Budget()
	for {
		he, ok := p.orphans.Pop()
		if !ok {
			return false
		}
		p.reclaim(he)
		if time.Since(batchStart) > budget {
			return !p.orphans.Empty()
		}
	}
}

// reclaim re-validates one orphan before destroying it. The host may have
// invalidated the entity or re-attached a live item since the scan.
func (p *pass) reclaim(he world.HeldEntity) {
	if !he.Valid() {
		p.report.SkippedInvalid++
		return
	}
	if it, ok := he.HeldItem(); ok && it != nil && it.Amount() > 0 {
		p.report.SkippedClaimed++
		return
	}
	he.Destroy()
	p.report.Removed++
}

// finish publishes the completed report and resets the guard.
func (p *pass) finish() {
	p.finalize(false, "")
}

// abort ends the pass early. Fatal for this pass only; the guard still
// resets.
func (p *pass) abort(err error) {
	p.finalize(true, err.Error())
}

// cancelled runs when the runner drops the pass before completion. Work
// already committed stays committed; the report captures the partial
// counts.
func (p *pass) cancelled() {
	p.finalize(true, "cancelled")
}

// finalize publishes the report exactly once. The cancel hook can race a
// completing step, so the once-guard is atomic.
func (p *pass) finalize(aborted bool, reason string) {
	if !p.finalized.CompareAndSwap(false, true) {
		return
	}
	p.report.Aborted = aborted
	p.report.Reason = reason
	p.report.CompletedAt = time.Now()
	p.report.TotalDuration = p.report.CompletedAt.Sub(p.report.StartedAt)
	p.s.passDone(&p.report)
}
