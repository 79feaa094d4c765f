// Package world defines the interfaces through which the sweeper sees the
// host simulation: the live-object population, per-object capabilities, and
// per-item queries. The host implements these; the sweeper never learns
// concrete object types.
package world

// Entity is any live object in the host-managed population.
type Entity interface {
	// ID is the host's stable identity for the object, unique among live
	// objects. It keys the candidate set during a pass.
	ID() uint64
	// Valid reports whether the object is still live. Objects can be
	// invalidated by the host at any tick boundary.
	Valid() bool
}

// Item is one unit of inventory content. Items are owned by containers or
// by other items; they are not entities and carry no identity of their own.
type Item interface {
	// Amount is the stack size. An item with amount 0 is logically empty
	// even while still referenced.
	Amount() int
	// Contents returns the item's nested items, or nil when the item has
	// no sub-container.
	Contents() []Item
	// HeldEntity returns the world representation backing this item, if
	// the host tracks one.
	HeldEntity() (HeldEntity, bool)
}

// HeldEntity is a world entity that visually represents a carried or
// dropped item. Every held entity should correspond to exactly one live
// item with amount > 0; one without such an item is an orphan.
type HeldEntity interface {
	Entity
	// HeldItem returns the owning-item back-reference, if the host still
	// tracks one.
	HeldItem() (Item, bool)
	// Destroy removes the entity from the world. Best effort; the host
	// owns the outcome and no status is reported back.
	Destroy()
}

// PlayerInventory is a player carrying a flat inventory.
type PlayerInventory interface {
	Entity
	InventoryItems() []Item
}

// CorpseContainer is a corpse exposing the containers it fell with.
type CorpseContainer interface {
	Entity
	CorpseItems() []Item
}

// StorageContainer is a placed storage object with an item list.
type StorageContainer interface {
	Entity
	StoredItems() []Item
}

// IODevice is a powered device with an internal inventory.
type IODevice interface {
	Entity
	IOItems() []Item
}

// DroppedItem is a single item lying in the world.
type DroppedItem interface {
	Entity
	// Stack returns the item this world object wraps, if still present.
	Stack() (Item, bool)
}

// DroppedContainer is a dropped bundle of items, such as loot spilled on
// death.
type DroppedContainer interface {
	Entity
	PackedItems() []Item
}

// Population enumerates the full live object population.
type Population interface {
	// Entities returns a snapshot of every live object. It returns an
	// error when the population is not accessible, for example while the
	// host is still loading; callers must treat that as fatal for the
	// current pass only.
	Entities() ([]Entity, error)
}
