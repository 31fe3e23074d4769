package bt

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/noeticlabs/wayfinder/internal/leaf"
)

// Predicate is a named sensor check the executor consults for RepeatUntil
// and DecoratorFailOnTrue nodes.
type Predicate func(lc leaf.Context, args map[string]any) (bool, error)

// PredicateRegistry holds the closed set of named sensor predicates BT-DSL
// nodes may reference.
type PredicateRegistry struct {
	mu    sync.RWMutex
	preds map[string]Predicate
}

// NewPredicateRegistry builds a registry seeded with the ten built-in
// sensor predicates.
func NewPredicateRegistry() *PredicateRegistry {
	r := &PredicateRegistry{preds: make(map[string]Predicate)}
	for name, p := range builtinPredicates {
		r.preds[name] = p
	}
	return r
}

// Register adds or overrides a named predicate.
func (r *PredicateRegistry) Register(name string, p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preds[name] = p
}

// Eval resolves name and evaluates it against lc/args.
func (r *PredicateRegistry) Eval(name string, lc leaf.Context, args map[string]any) (bool, error) {
	r.mu.RLock()
	p, ok := r.preds[name]
	r.mu.RUnlock()
	if !ok {
		return false, &leaf.ExecError{Code: "unknown_predicate", Detail: fmt.Sprintf("no sensor predicate named %q", name), Retryable: false}
	}
	return p(lc, args)
}

func floatArg(args map[string]any, key string, def float64) float64 {
	if v, ok := args[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	if v, ok := args[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return def
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

var builtinPredicates = map[string]Predicate{
	"distance_to": func(lc leaf.Context, args map[string]any) (bool, error) {
		snap := lc.Snapshot()
		x, y, z := snap.Position()
		tx, ty, tz := floatArg(args, "x", 0), floatArg(args, "y", 0), floatArg(args, "z", 0)
		within := floatArg(args, "within", 1.0)
		d := math.Sqrt((x-tx)*(x-tx) + (y-ty)*(y-ty) + (z-tz)*(z-tz))
		return d <= within, nil
	},
	"hostiles_present": func(lc leaf.Context, args map[string]any) (bool, error) {
		return lc.Snapshot().NearbyHostiles() > 0, nil
	},
	"light_level_safe": func(lc leaf.Context, args map[string]any) (bool, error) {
		timeOfDay := lc.Snapshot().TimeOfDay()
		return timeOfDay < 13000 || timeOfDay >= 23000, nil
	},
	"inventory_has_item": func(lc leaf.Context, args map[string]any) (bool, error) {
		name := stringArg(args, "item")
		count := intArg(args, "count", 1)
		return lc.Inventory().HasItem(name, count), nil
	},
	"position_reached": func(lc leaf.Context, args map[string]any) (bool, error) {
		snap := lc.Snapshot()
		x, y, z := snap.Position()
		tx, ty, tz := floatArg(args, "x", 0), floatArg(args, "y", 0), floatArg(args, "z", 0)
		tolerance := floatArg(args, "tolerance", 0.5)
		d := math.Sqrt((x-tx)*(x-tx) + (y-ty)*(y-ty) + (z-tz)*(z-tz))
		return d <= tolerance, nil
	},
	"time_elapsed": func(lc leaf.Context, args map[string]any) (bool, error) {
		since, _ := args["since"].(time.Time)
		minMS := intArg(args, "ms", 0)
		return lc.Now().Sub(since) >= time.Duration(minMS)*time.Millisecond, nil
	},
	"health_low": func(lc leaf.Context, args map[string]any) (bool, error) {
		threshold := floatArg(args, "threshold", 0.3)
		return lc.Snapshot().Health() < threshold, nil
	},
	"hunger_low": func(lc leaf.Context, args map[string]any) (bool, error) {
		threshold := floatArg(args, "threshold", 0.3)
		return lc.Snapshot().Food() < threshold, nil
	},
	"weather_bad": func(lc leaf.Context, args map[string]any) (bool, error) {
		v, _ := args["isBad"].(bool)
		return v, nil
	},
	"biome_safe": func(lc leaf.Context, args map[string]any) (bool, error) {
		v, ok := args["isSafe"].(bool)
		if !ok {
			return true, nil
		}
		return v, nil
	},
}
