// Package needs derives candidate Needs from a homeostasis.State. Needs
// are transient: they live one planning tick, same as the
// Signals that drive them.
package needs

import (
	"sort"

	"github.com/noeticlabs/wayfinder/internal/homeostasis"
	"github.com/noeticlabs/wayfinder/internal/ids"
)

// Type is the concrete closed set of need categories this implementation
// supports.
type Type string

const (
	TypeSurvival    Type = "SURVIVAL"
	TypeSafety      Type = "SAFETY"
	TypeExploration Type = "EXPLORATION"
	TypeSocial      Type = "SOCIAL"
	TypeAchievement Type = "ACHIEVEMENT"
	TypeCreativity  Type = "CREATIVITY"
	TypeCuriosity   Type = "CURIOSITY"
	TypeNutrition   Type = "NUTRITION"
)

// Need is one derived drive deficit.
type Need struct {
	ID           string
	Type         Type
	Intensity    float64
	Urgency      float64
	Satisfaction float64
}

// rule pairs a strict predicate over homeostasis.State against the Need it
// produces when triggered. Thresholds are strict ">"/"<", never
// inclusive.
type rule struct {
	trigger func(s homeostasis.State) bool
	build   func(s homeostasis.State) Need
}

var rules = []rule{
	{
		trigger: func(s homeostasis.State) bool { return s.Hunger > 0.7 },
		build: func(s homeostasis.State) Need {
			return Need{Type: TypeNutrition, Intensity: s.Hunger, Urgency: s.Hunger, Satisfaction: 1 - s.Hunger}
		},
	},
	{
		trigger: func(s homeostasis.State) bool { return s.Health < 0.3 },
		build: func(s homeostasis.State) Need {
			intensity := 1 - s.Health
			return Need{Type: TypeSurvival, Intensity: intensity, Urgency: intensity, Satisfaction: s.Health}
		},
	},
	{
		trigger: func(s homeostasis.State) bool { return s.Safety < 0.5 },
		build: func(s homeostasis.State) Need {
			intensity := 1 - s.Safety
			return Need{Type: TypeSafety, Intensity: intensity, Urgency: intensity, Satisfaction: s.Safety}
		},
	},
	{
		trigger: func(s homeostasis.State) bool { return s.Curiosity > 0.7 },
		build: func(s homeostasis.State) Need {
			return Need{Type: TypeCuriosity, Intensity: s.Curiosity, Urgency: s.Curiosity * 0.5, Satisfaction: 1 - s.Curiosity}
		},
	},
	{
		trigger: func(s homeostasis.State) bool { return s.Curiosity > 0.8 },
		build: func(s homeostasis.State) Need {
			return Need{Type: TypeExploration, Intensity: s.Curiosity, Urgency: s.Curiosity * 0.3, Satisfaction: 1 - s.Curiosity}
		},
	},
	{
		trigger: func(s homeostasis.State) bool { return s.Social < 0.3 },
		build: func(s homeostasis.State) Need {
			intensity := 1 - s.Social
			return Need{Type: TypeSocial, Intensity: intensity, Urgency: intensity * 0.4, Satisfaction: s.Social}
		},
	},
	{
		trigger: func(s homeostasis.State) bool { return s.Achievement < 0.3 },
		build: func(s homeostasis.State) Need {
			intensity := 1 - s.Achievement
			return Need{Type: TypeAchievement, Intensity: intensity, Urgency: intensity * 0.3, Satisfaction: s.Achievement}
		},
	},
	{
		trigger: func(s homeostasis.State) bool { return s.Creativity > 0.7 },
		build: func(s homeostasis.State) Need {
			return Need{Type: TypeCreativity, Intensity: s.Creativity, Urgency: s.Creativity * 0.3, Satisfaction: 1 - s.Creativity}
		},
	},
}

// Derive evaluates every rule against state and returns the triggered
// Needs, each with a freshly minted ID, in rule-declaration order.
func Derive(state homeostasis.State) []Need {
	var out []Need
	for _, r := range rules {
		if r.trigger(state) {
			n := r.build(state)
			n.ID = ids.Prefixed("need")
			out = append(out, n)
		}
	}
	return out
}

// SortByUrgency returns needs ordered by descending urgency, tie-broken by
// ID for determinism.
func SortByUrgency(in []Need) []Need {
	out := make([]Need, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Urgency != out[j].Urgency {
			return out[i].Urgency > out[j].Urgency
		}
		return out[i].ID < out[j].ID
	})
	return out
}
