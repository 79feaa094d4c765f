package main

import (
	"math/rand"

	"github.com/worldsweep/extension/pkg/world/worldtest"
)

// demoWorld is a synthetic host population. Between ticks it mutates
// itself the way a busy server would: loot gets dropped, corpses pile up
// and despawn, and every so often the host loses track of a held entity,
// leaving an orphan for the sweeper to find.
type demoWorld struct {
	*worldtest.World
	rng *rand.Rand

	corpses []*worldtest.Corpse
	drops   []*worldtest.DroppedContainer
}

// newDemoWorld seeds a population with inventory-bearing holders and
// capability-less clutter.
func newDemoWorld(seed int64) *demoWorld {
	d := &demoWorld{
		World: worldtest.New(),
		rng:   rand.New(rand.NewSource(seed)),
	}

	// declare test size counts
	var (
		numPlayers   int = 24
		numStorages  int = 8
		numIODevices int = 4
		numProps     int = 60
	)

	for i := 0; i < numPlayers; i++ {
		d.AddPlayer(d.loadout()...)
	}
	for i := 0; i < numStorages; i++ {
		d.AddStorage(d.stash()...)
	}
	for i := 0; i < numIODevices; i++ {
		d.AddIODevice(worldtest.NewItem(1 + d.rng.Intn(50)))
	}
	for i := 0; i < numProps; i++ {
		d.AddProp()
	}

	return d
}

// churn applies one round of world mutation. Claimed entities outnumber
// orphans so a pass always has both to classify.
func (d *demoWorld) churn() {
	// loot dropped on the ground keeps its held entities claimed
	for i := 0; i < 1+d.rng.Intn(3); i++ {
		held := d.AddHeldEntity()
		item := worldtest.NewItem(1 + d.rng.Intn(10)).Holding(held)
		d.drops = append(d.drops, d.AddDroppedContainer(item))
	}

	// an emptied stack still claims its world representation
	if d.rng.Intn(4) == 0 {
		held := d.AddHeldEntity()
		d.AddDroppedItem(worldtest.NewItem(0).Holding(held))
	}

	// the leak under test: held entities nothing owns anymore
	for i := 0; i < 1+d.rng.Intn(2); i++ {
		d.AddHeldEntity()
	}

	if d.rng.Intn(3) == 0 {
		d.corpses = append(d.corpses, d.AddCorpse(d.loadout()...))
	}

	// despawn roughly half the old corpses and dropped containers,
	// orphaning whatever they carried
	if len(d.corpses) > 6 {
		for _, c := range d.corpses[:3] {
			c.Invalidate()
		}
		d.corpses = d.corpses[3:]
	}
	if len(d.drops) > 10 {
		for _, dc := range d.drops[:5] {
			dc.Invalidate()
		}
		d.drops = d.drops[5:]
	}

	if d.rng.Intn(8) == 0 {
		d.Compact()
	}
}

// loadout builds a small flat inventory, most items backed by a held
// entity.
func (d *demoWorld) loadout() []*worldtest.Item {
	items := make([]*worldtest.Item, 0, 5)
	for i := 0; i < 2+d.rng.Intn(4); i++ {
		item := worldtest.NewItem(1 + d.rng.Intn(3))
		if d.rng.Intn(3) > 0 {
			item.Holding(d.AddHeldEntity())
		}
		items = append(items, item)
	}
	return items
}

// stash builds a nested container: a crate of boxes with items inside.
func (d *demoWorld) stash() []*worldtest.Item {
	crate := worldtest.NewItem(1)
	for i := 0; i < 1+d.rng.Intn(3); i++ {
		box := worldtest.NewItem(1).Containing(
			worldtest.NewItem(1+d.rng.Intn(20)).Holding(d.AddHeldEntity()),
			worldtest.NewItem(1+d.rng.Intn(20)),
		)
		crate.Containing(box)
	}
	return []*worldtest.Item{crate}
}
