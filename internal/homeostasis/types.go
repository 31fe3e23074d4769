// Package homeostasis implements the signal-to-state half of the
// signal-to-need processor. Signals and the raw translation are transient
// (one planning tick); the homeostasis State itself persists across ticks
// via carried defaults.
package homeostasis

import "time"

// Urgency is the closed urgency enum for Signal.
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

// SignalType is the closed set of sensor channels the translator understands.
// Unknown types are simply ignored by Processor.Update (fail-open, since a
// stray unmapped signal cannot corrupt homeostasis state).
type SignalType string

const (
	SignalHealth      SignalType = "health"
	SignalFood        SignalType = "food"
	SignalHostiles    SignalType = "hostiles"
	SignalTimeOfDay   SignalType = "time_of_day"
	SignalCuriosity   SignalType = "curiosity"
	SignalSocial      SignalType = "social"
	SignalAchievement SignalType = "achievement"
	SignalCreativity  SignalType = "creativity"
)

// Signal is the raw, transient per-tick input.
type Signal struct {
	Type      SignalType
	Value     float64
	Urgency   Urgency
	Timestamp time.Time
}

// State is the fully-populated homeostasis state: eight scalar
// drives in [0,1], always present.
type State struct {
	Health      float64
	Hunger      float64
	Energy      float64
	Safety      float64
	Curiosity   float64
	Social      float64
	Achievement float64
	Creativity  float64
}

// Default returns the carried-forward baseline used before any signal has
// ever been observed for a given drive.
func Default() State {
	return State{
		Health:      1.0,
		Hunger:      0.0,
		Energy:      0.5,
		Safety:      0.9,
		Curiosity:   0.5,
		Social:      0.5,
		Achievement: 0.5,
		Creativity:  0.5,
	}
}

// RawBotState is the subset of world-adapter-observable facts the
// derivation rules consume directly. Pointer fields are
// optional: nil means "not observed this tick".
type RawBotState struct {
	Health         *float64 // raw 0-20 scale (e.g. bot.health)
	Food           *float64 // raw 0-20 scale (e.g. bot.food)
	NearbyHostiles *int
	TimeOfDay      *int // ticks, 0-23999
}
