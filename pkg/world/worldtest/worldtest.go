// Package worldtest provides an in-memory world implementation for
// exercising cleanup passes in tests and demos. Builders register typed
// objects in a fake population; mutation helpers let callers invalidate
// or re-link objects between ticks the way a live host would.
package worldtest

import (
	"sync"

	"github.com/worldsweep/extension/pkg/world"
)

// World is a fake host population. The zero value is not usable; call New.
type World struct {
	mu        sync.Mutex
	nextID    uint64
	entities  []world.Entity
	destroyed []uint64
	err       error
}

// New creates an empty world.
func New() *World {
	return &World{}
}

// Entities returns a snapshot of the population, or the injected error.
func (w *World) Entities() ([]world.Entity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return nil, w.err
	}
	out := make([]world.Entity, len(w.entities))
	copy(out, w.entities)
	return out, nil
}

// SetError makes Entities fail until cleared, simulating a population
// that is not accessible.
func (w *World) SetError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
}

// Destroyed returns the IDs of destroyed held entities in destruction
// order.
func (w *World) Destroyed() []uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]uint64, len(w.destroyed))
	copy(out, w.destroyed)
	return out
}

// DestroyedCount returns how many held entities have been destroyed.
func (w *World) DestroyedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.destroyed)
}

func (w *World) add(e world.Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entities = append(w.entities, e)
}

func (w *World) nextObject() object {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	return object{id: w.nextID, valid: true}
}

// AddNil inserts a nil population entry.
func (w *World) AddNil() {
	w.add(nil)
}

// Compact removes nil and invalid entries from the population, as a host
// does when it collects despawned objects.
func (w *World) Compact() {
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.entities[:0]
	for _, e := range w.entities {
		if e != nil && e.Valid() {
			kept = append(kept, e)
		}
	}
	w.entities = kept
}

// Len returns the current population size, nil entries included.
func (w *World) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entities)
}

// object carries identity and liveness for every fake entity type.
type object struct {
	id    uint64
	valid bool
}

func (o *object) ID() uint64 {
	return o.id
}

func (o *object) Valid() bool {
	return o.valid
}

// Invalidate marks the object dead without removing it from the
// population, mimicking a host despawn between ticks.
func (o *object) Invalidate() {
	o.valid = false
}

// Item is a fake inventory item.
type Item struct {
	amount   int
	contents []world.Item
	held     *HeldEntity
}

// NewItem creates an unattached item with the given stack size.
func NewItem(amount int) *Item {
	return &Item{amount: amount}
}

func (i *Item) Amount() int {
	return i.amount
}

func (i *Item) Contents() []world.Item {
	return i.contents
}

func (i *Item) HeldEntity() (world.HeldEntity, bool) {
	if i.held == nil {
		return nil, false
	}
	return i.held, true
}

// SetAmount changes the stack size in place.
func (i *Item) SetAmount(n int) {
	i.amount = n
}

// Containing nests items inside this one and returns the receiver for
// chaining.
func (i *Item) Containing(items ...*Item) *Item {
	for _, it := range items {
		i.contents = append(i.contents, it)
	}
	return i
}

// Holding links the item and the held entity in both directions and
// returns the receiver for chaining.
func (i *Item) Holding(h *HeldEntity) *Item {
	i.held = h
	h.item = i
	return i
}

// HeldEntity is a fake world object backing an item.
type HeldEntity struct {
	object
	w    *World
	item *Item
}

// AddHeldEntity registers a held entity with no owning item. Link one
// with Item.Holding or HeldEntity.Attach.
func (w *World) AddHeldEntity() *HeldEntity {
	h := &HeldEntity{object: w.nextObject(), w: w}
	w.add(h)
	return h
}

func (h *HeldEntity) HeldItem() (world.Item, bool) {
	if h.item == nil {
		return nil, false
	}
	return h.item, true
}

func (h *HeldEntity) Destroy() {
	h.valid = false
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	h.w.destroyed = append(h.w.destroyed, h.id)
}

// Attach sets the back-reference from the entity to an owning item, as
// happens when a dropped item is picked back up.
func (h *HeldEntity) Attach(i *Item) {
	h.item = i
}

// Player is a fake player with a flat inventory.
type Player struct {
	object
	items []world.Item
}

// AddPlayer registers a player carrying the given items.
func (w *World) AddPlayer(items ...*Item) *Player {
	p := &Player{object: w.nextObject(), items: asItems(items)}
	w.add(p)
	return p
}

func (p *Player) InventoryItems() []world.Item {
	return p.items
}

// Corpse is a fake corpse exposing the containers it fell with.
type Corpse struct {
	object
	items []world.Item
}

// AddCorpse registers a corpse holding the given items.
func (w *World) AddCorpse(items ...*Item) *Corpse {
	c := &Corpse{object: w.nextObject(), items: asItems(items)}
	w.add(c)
	return c
}

func (c *Corpse) CorpseItems() []world.Item {
	return c.items
}

// Storage is a fake placed storage object.
type Storage struct {
	object
	items []world.Item
}

// AddStorage registers a storage object holding the given items.
func (w *World) AddStorage(items ...*Item) *Storage {
	s := &Storage{object: w.nextObject(), items: asItems(items)}
	w.add(s)
	return s
}

func (s *Storage) StoredItems() []world.Item {
	return s.items
}

// IODevice is a fake powered device with an internal inventory.
type IODevice struct {
	object
	items []world.Item
}

// AddIODevice registers a device holding the given items.
func (w *World) AddIODevice(items ...*Item) *IODevice {
	d := &IODevice{object: w.nextObject(), items: asItems(items)}
	w.add(d)
	return d
}

func (d *IODevice) IOItems() []world.Item {
	return d.items
}

// DroppedItem is a single fake item lying in the world.
type DroppedItem struct {
	object
	item *Item
}

// AddDroppedItem registers a dropped item wrapping the given stack. A
// nil stack mimics a host object whose item is already gone.
func (w *World) AddDroppedItem(item *Item) *DroppedItem {
	d := &DroppedItem{object: w.nextObject(), item: item}
	w.add(d)
	return d
}

func (d *DroppedItem) Stack() (world.Item, bool) {
	if d.item == nil {
		return nil, false
	}
	return d.item, true
}

// DroppedContainer is a fake dropped bundle of items.
type DroppedContainer struct {
	object
	items []world.Item
}

// AddDroppedContainer registers a dropped container holding the given
// items.
func (w *World) AddDroppedContainer(items ...*Item) *DroppedContainer {
	d := &DroppedContainer{object: w.nextObject(), items: asItems(items)}
	w.add(d)
	return d
}

func (d *DroppedContainer) PackedItems() []world.Item {
	return d.items
}

// Prop is a fake entity with no inventory capability, such as terrain
// clutter.
type Prop struct {
	object
}

// AddProp registers a capability-less entity.
func (w *World) AddProp() *Prop {
	p := &Prop{object: w.nextObject()}
	w.add(p)
	return p
}

func asItems(items []*Item) []world.Item {
	if len(items) == 0 {
		return nil
	}
	out := make([]world.Item, 0, len(items))
	for _, it := range items {
		out = append(out, it)
	}
	return out
}
