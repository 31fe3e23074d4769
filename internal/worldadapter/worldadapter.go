// Package worldadapter defines the embodied world's consumed contract
// to the planning core: it never calls native world APIs directly, only this
// narrow interface, and glues it to the shapes internal/leaf and
// internal/bt already expect from a Snapshot/Inventory pair.
package worldadapter

import (
	"context"
	"time"

	"github.com/noeticlabs/wayfinder/internal/leaf"
)

// Hazards is the world adapter's snapshot hazard summary:
// nearby hostiles, ambient light, biome, and weather.
type Hazards struct {
	NearbyHostiles int
	LightLevel     int
	Biome          string
	Weather        string
}

// Item is one inventory() entry.
type Item struct {
	Name  string
	Count int
}

// Adapter is the full consumed contract: snapshot, inventory, now,
// position/health/food, and a tick-waiting primitive. A concrete
// implementation lives outside this module (it talks to the embodied
// world); this package only defines the shape and a deterministic fake
// for tests and the smoke-test harness.
type Adapter interface {
	Snapshot(ctx context.Context) (Hazards, error)
	Inventory(ctx context.Context) ([]Item, error)
	Now() time.Time
	Position() (x, y, z float64)
	Health() float64
	Food() float64
	WaitForTicks(ctx context.Context, n int) error
}

// snapshot adapts one Adapter poll into leaf.Snapshot.
type snapshot struct {
	hazards  Hazards
	x, y, z  float64
	health   float64
	food     float64
	tickTime int
}

func (s snapshot) Position() (float64, float64, float64) { return s.x, s.y, s.z }
func (s snapshot) Health() float64                        { return s.health }
func (s snapshot) Food() float64                           { return s.food }
func (s snapshot) NearbyHostiles() int                     { return s.hazards.NearbyHostiles }
func (s snapshot) TimeOfDay() int                          { return s.tickTime }

// inventory adapts one Adapter poll into leaf.Inventory.
type inventory struct {
	items map[string]int
}

func (inv inventory) HasItem(name string, count int) bool { return inv.items[name] >= count }
func (inv inventory) Count(name string) int                { return inv.items[name] }

// Bridge turns an Adapter into the polling closures internal/leaf.Context
// wants, so BT execution and leaf predicates never need to know the
// concrete Adapter type.
type Bridge struct {
	Adapter  Adapter
	TickTime func() int // derived from the game clock; defaults to 0 if nil
}

// NewLeafContext builds a leaf.Context backed by b, scoped to ctx.
func (b *Bridge) NewLeafContext(ctx context.Context) leaf.Context {
	return leaf.Context{
		Ctx: ctx,
		Snapshot: func() leaf.Snapshot {
			h, _ := b.Adapter.Snapshot(ctx)
			x, y, z := b.Adapter.Position()
			tt := 0
			if b.TickTime != nil {
				tt = b.TickTime()
			}
			return snapshot{hazards: h, x: x, y: y, z: z, health: b.Adapter.Health(), food: b.Adapter.Food(), tickTime: tt}
		},
		Inventory: func() leaf.Inventory {
			items, _ := b.Adapter.Inventory(ctx)
			m := make(map[string]int, len(items))
			for _, it := range items {
				m[it.Name] = it.Count
			}
			return inventory{items: m}
		},
		Now: b.Adapter.Now,
	}
}
