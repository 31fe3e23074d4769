package worldadapter

import (
	"context"
	"time"
)

// Fake is a deterministic, in-memory Adapter for tests and the smoke-test
// harness: no network, no embodied world, just fields the caller sets
// directly.
type Fake struct {
	HazardsVal  Hazards
	ItemsVal    []Item
	NowVal      time.Time
	X, Y, Z     float64
	HealthVal   float64
	FoodVal     float64
	WaitedTicks int
}

func (f *Fake) Snapshot(ctx context.Context) (Hazards, error)    { return f.HazardsVal, nil }
func (f *Fake) Inventory(ctx context.Context) ([]Item, error)    { return f.ItemsVal, nil }
func (f *Fake) Now() time.Time                                   { return f.NowVal }
func (f *Fake) Position() (float64, float64, float64)            { return f.X, f.Y, f.Z }
func (f *Fake) Health() float64                                  { return f.HealthVal }
func (f *Fake) Food() float64                                    { return f.FoodVal }
func (f *Fake) WaitForTicks(ctx context.Context, n int) error {
	f.WaitedTicks += n
	return ctx.Err()
}
