// Package capability implements the Capability Registry with shadow-run
// governance: two-track registration of leaves and options,
// a status FSM, shadow-run statistics driving auto-promotion/retirement,
// and per-capability circuit breaking and quota enforcement.
package capability

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noeticlabs/wayfinder/internal/audit"
	"github.com/noeticlabs/wayfinder/internal/bt"
	"github.com/noeticlabs/wayfinder/internal/ids"
	"github.com/noeticlabs/wayfinder/internal/leaf"
	"github.com/noeticlabs/wayfinder/internal/telemetry"
)

// Status is the capability lifecycle FSM:
// shadow -> {active, retired, revoked}; active -> {retired, revoked};
// retired -> {revoked}; revoked is terminal.
type Status string

const (
	StatusShadow  Status = "shadow"
	StatusActive  Status = "active"
	StatusRetired Status = "retired"
	StatusRevoked Status = "revoked"
)

var validTransitions = map[Status]map[Status]bool{
	StatusShadow:  {StatusActive: true, StatusRetired: true, StatusRevoked: true},
	StatusActive:  {StatusRetired: true, StatusRevoked: true},
	StatusRetired: {StatusRevoked: true},
	StatusRevoked: {},
}

// IllegalTransitionError reports an attempted status change the FSM forbids.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("capability: illegal transition from %s to %s", e.From, e.To)
}

// Track distinguishes the two registration tracks: primitive
// leaves and composite behavior-tree options.
type Track string

const (
	TrackLeaf   Track = "leaf"
	TrackOption Track = "option"
)

// ShadowStats accumulates shadow-run outcomes for a capability.
type ShadowStats struct {
	TotalRuns   int
	SuccessRuns int
}

// SuccessRate is 0 when no runs have been recorded yet, never an
// undefined 0/0.
func (s ShadowStats) SuccessRate() float64 {
	if s.TotalRuns == 0 {
		return 0
	}
	return float64(s.SuccessRuns) / float64(s.TotalRuns)
}

// Provenance records who/what produced a capability and from what, so
// machine-generated options carry the same audit trail trusted leaves get
// by construction.
type Provenance struct {
	Author        string
	CreatedAt     time.Time
	CodeHash      string
	ParentLineage []string
}

// Capability is one registered leaf or option and its governance state.
type Capability struct {
	Name         string
	Version      string
	Track        Track
	Status       Status
	Shadow       ShadowStats
	Permissions  []string
	Provenance   Provenance
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

func key(name, version string) string { return name + "@" + version }

// Registry tracks every registered capability, its shadow-run statistics,
// and the circuit breaker / quota guarding its execution.
type Registry struct {
	mu       sync.RWMutex
	caps     map[string]*Capability
	breakers map[string]*CircuitBreaker
	quotas   map[string]Quota
	compiled map[string]*bt.Compiled
	vetoed   map[string]bool

	cfg     Config
	audit   *audit.Log
	metrics *telemetry.Metrics
	nowFn   func() time.Time
}

// Config mirrors the registry-relevant fields of pkg/config.RegistryConfig,
// kept separate so this package doesn't import pkg/config directly.
type Config struct {
	MinShadowRuns           int
	SuccessThreshold        float64
	MaxShadowRuns           int
	FailureThreshold        float64
	CircuitBreakerThreshold int
	CircuitBreakerCooldown  time.Duration
	QuotaMaxTokens          int
	QuotaResetInterval      time.Duration
	MaxShadowActive         int

	// HealthCheck, when set, gates auto-promotion: a shadow option that has
	// earned promotion stays in shadow until the check reports healthy.
	HealthCheck func() bool
}

// NewRegistry builds a Registry. auditLog and metrics may be nil.
func NewRegistry(cfg Config, auditLog *audit.Log, metrics *telemetry.Metrics) *Registry {
	return &Registry{
		caps:     make(map[string]*Capability),
		breakers: make(map[string]*CircuitBreaker),
		quotas:   make(map[string]Quota),
		compiled: make(map[string]*bt.Compiled),
		vetoed:   make(map[string]bool),
		cfg:      cfg,
		audit:    auditLog,
		metrics:  metrics,
		nowFn:    time.Now,
	}
}

// Veto bars a named option (by capability name, any version) from future
// registration.
func (r *Registry) Veto(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vetoed[name] = true
}

func (r *Registry) now() time.Time {
	if r.nowFn != nil {
		return r.nowFn()
	}
	return time.Now()
}

func (r *Registry) register(name, version string, track Track, permissions []string, prov Provenance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(name, version)
	if _, exists := r.caps[k]; exists {
		return fmt.Errorf("capability: %s@%s version_exists", name, version)
	}
	if track == TrackOption {
		if r.vetoed[name] {
			return fmt.Errorf("capability: option %q is on the veto list", name)
		}
		if max := r.cfg.MaxShadowActive; max > 0 {
			active := 0
			for _, c := range r.caps {
				if c.Track == TrackOption && c.Status == StatusShadow {
					active++
				}
			}
			if active >= max {
				return fmt.Errorf("capability: max shadow active (%d) reached", max)
			}
		}
	}

	// Trusted primitives go straight to active; machine-generated options
	// start in shadow and must earn promotion.
	initial := StatusShadow
	if track == TrackLeaf {
		initial = StatusActive
	}
	now := r.now()
	r.caps[k] = &Capability{
		Name: name, Version: version, Track: track,
		Status: initial, Permissions: permissions, Provenance: prov,
		RegisteredAt: now, UpdatedAt: now,
	}
	r.breakers[k] = NewCircuitBreaker(r.cfg.CircuitBreakerThreshold, r.cfg.CircuitBreakerCooldown)
	r.quotas[k] = NewQuotaBucket(r.cfg.QuotaMaxTokens, r.cfg.QuotaResetInterval)

	if r.audit != nil {
		op := "register_leaf"
		if track == TrackOption {
			op = "register_option"
		}
		_ = r.audit.Append(op, k, prov.Author, "")
	}
	return nil
}

// RegisterLeaf admits a new trusted primitive leaf capability, active
// immediately.
func (r *Registry) RegisterLeaf(name, version string) error {
	return r.register(name, version, TrackLeaf, nil, Provenance{Author: "system", CreatedAt: r.now()})
}

// RegisterLeafWithProvenance admits a new primitive leaf capability with an
// explicit permission set and provenance record.
func (r *Registry) RegisterLeafWithProvenance(name, version string, permissions []string, prov Provenance) error {
	return r.register(name, version, TrackLeaf, permissions, prov)
}

// RegisterOption admits a new composite behavior-tree option capability in
// shadow status, with no BT-DSL compiled (used by admin tooling and tests
// that only need the governance bookkeeping). Prefer RegisterOptionFromDSL
// when an actual tree is being compiled and shadow-run.
func (r *Registry) RegisterOption(name, version string) error {
	return r.register(name, version, TrackOption, nil, Provenance{Author: "system", CreatedAt: r.now()})
}

// RegisterOptionFromDSL compiles a BT-DSL option, computes its permission
// set as the union of its leaves' permissions, and admits it to the
// option track in shadow status. The compiled
// tree is cached for ExecuteShadowRun and evicted on Revoke.
func (r *Registry) RegisterOptionFromDSL(name, version string, dsl *bt.Node, leaves *leaf.Registry, prov Provenance) (*bt.Compiled, error) {
	compiled, err := bt.Compile(dsl, leaves)
	if err != nil {
		return nil, err
	}

	permSet := make(map[string]bool)
	for _, ref := range bt.CollectLeafRefs(dsl) {
		for _, p := range leaves.Permissions(ref.Name, ref.Version) {
			permSet[p] = true
		}
	}
	perms := make([]string, 0, len(permSet))
	for p := range permSet {
		perms = append(perms, p)
	}
	sort.Strings(perms)

	if err := r.register(name, version, TrackOption, perms, prov); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.compiled[key(name, version)] = compiled
	r.mu.Unlock()
	return compiled, nil
}

// SetQuota overrides the quota backend for an already-registered
// capability, letting callers swap in a RedisQuota when Config.QuotaBackend
// is "redis" instead of the default in-memory bucket.
func (r *Registry) SetQuota(name, version string, q Quota) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotas[key(name, version)] = q
}

// Get returns a copy of the capability's current state.
func (r *Registry) Get(name, version string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[key(name, version)]
	if !ok {
		return Capability{}, false
	}
	return *c, true
}

// Allow reports whether name@version may currently run: it must not be
// retired or revoked, its circuit breaker must be closed (or half-open),
// and it must have quota remaining.
func (r *Registry) Allow(name, version string) (bool, error) {
	r.mu.RLock()
	k := key(name, version)
	c, ok := r.caps[k]
	breaker := r.breakers[k]
	quota := r.quotas[k]
	r.mu.RUnlock()

	if !ok {
		return false, fmt.Errorf("capability: %s@%s is not registered", name, version)
	}
	if c.Status == StatusRevoked || c.Status == StatusRetired {
		return false, nil
	}
	if breaker != nil && breaker.State(r.now()) == CircuitOpen {
		return false, nil
	}
	if quota != nil && !quota.Allow(r.now()) {
		return false, nil
	}
	return true, nil
}

// RecordShadowRun records one execution outcome and applies the governance
// rules: circuit breaker trip on consecutive non-success, auto-promotion
// once MinShadowRuns is met with SuccessThreshold or better (and the
// optional health check passes), auto-retirement once MaxShadowRuns is
// reached with a rate at or below FailureThreshold.
func (r *Registry) RecordShadowRun(name, version string, success bool) error {
	r.mu.Lock()
	k := key(name, version)
	c, ok := r.caps[k]
	breaker := r.breakers[k]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("capability: %s@%s is not registered", name, version)
	}

	c.Shadow.TotalRuns++
	if success {
		c.Shadow.SuccessRuns++
	}
	c.UpdatedAt = r.now()

	if breaker != nil {
		breaker.Record(success, r.now())
	}

	rate := c.Shadow.SuccessRate()
	runs := c.Shadow.TotalRuns
	status := c.Status
	r.mu.Unlock()

	if r.metrics != nil {
		outcome := "failure"
		if success {
			outcome = "success"
		}
		r.metrics.ShadowRuns.WithLabelValues(name, outcome).Inc()
		r.metrics.ShadowSuccessRate.WithLabelValues(name).Set(rate)
	}

	if status != StatusShadow {
		return nil
	}
	if runs >= r.cfg.MinShadowRuns && rate >= r.cfg.SuccessThreshold {
		if r.cfg.HealthCheck != nil && !r.cfg.HealthCheck() {
			return nil
		}
		return r.Promote(name, version, "auto-promotion")
	}
	if r.cfg.MaxShadowRuns > 0 && runs >= r.cfg.MaxShadowRuns && rate <= r.cfg.FailureThreshold {
		return r.Retire(name, version, "auto-retirement")
	}
	return nil
}

func (r *Registry) transition(name, version string, to Status, who string) error {
	r.mu.Lock()
	k := key(name, version)
	c, ok := r.caps[k]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("capability: %s@%s is not registered", name, version)
	}
	if !validTransitions[c.Status][to] {
		from := c.Status
		r.mu.Unlock()
		return &IllegalTransitionError{From: from, To: to}
	}
	c.Status = to
	c.UpdatedAt = r.now()
	r.mu.Unlock()

	if r.audit != nil {
		op := map[Status]string{StatusActive: "promote", StatusRetired: "retire", StatusRevoked: "revoke"}[to]
		_ = r.audit.Append(op, k, who, "")
	}
	return nil
}

// Promote transitions a capability to active.
func (r *Registry) Promote(name, version, who string) error {
	return r.transition(name, version, StatusActive, who)
}

// Retire transitions a capability to retired.
func (r *Registry) Retire(name, version, who string) error {
	return r.transition(name, version, StatusRetired, who)
}

// Revoke transitions a capability to revoked, its terminal state, and
// evicts any compiled BT cache and definition for it.
func (r *Registry) Revoke(name, version, who string) error {
	if err := r.transition(name, version, StatusRevoked, who); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.compiled, key(name, version))
	r.mu.Unlock()
	return nil
}

// ShadowRunStatus is the terminal outcome of one shadow execution.
type ShadowRunStatus string

const (
	ShadowRunSuccess ShadowRunStatus = "success"
	ShadowRunFailure ShadowRunStatus = "failure"
	ShadowRunTimeout ShadowRunStatus = "timeout"
)

// ShadowRun is one recorded execution of a shadow option.
type ShadowRun struct {
	ID         string
	Timestamp  time.Time
	Status     ShadowRunStatus
	DurationMs int64
	Error      string
	Metrics    bt.ExecutionStats
}

// ExecuteShadowRun runs a compiled option's tree against lc, enforcing the
// option's quota and circuit breaker, then records the outcome into its
// promotion/retirement statistics. The option must have been registered
// via RegisterOptionFromDSL.
func (r *Registry) ExecuteShadowRun(name, version string, lc leaf.Context, executor *bt.Executor) (ShadowRun, error) {
	k := key(name, version)

	r.mu.RLock()
	compiled, haveTree := r.compiled[k]
	r.mu.RUnlock()
	if !haveTree {
		return ShadowRun{}, fmt.Errorf("capability: %s@%s has no compiled tree to shadow-run", name, version)
	}

	allowed, err := r.Allow(name, version)
	if err != nil {
		return ShadowRun{}, err
	}
	if !allowed {
		reason := "quota_exceeded"
		r.mu.RLock()
		breaker := r.breakers[k]
		r.mu.RUnlock()
		if breaker != nil && breaker.State(r.now()) == CircuitOpen {
			reason = "circuit_open"
		}
		if r.audit != nil {
			_ = r.audit.Append("shadow_run_rejected", k, "system", reason)
		}
		return ShadowRun{ID: ids.Prefixed("shadow"), Timestamp: r.now(), Status: ShadowRunFailure, Error: reason}, nil
	}

	start := r.now()
	status, stats, runErr := executor.ExecuteWithStats(lc, compiled)
	durationMs := r.now().Sub(start).Milliseconds()

	run := ShadowRun{
		ID:         ids.Prefixed("shadow"),
		Timestamp:  start,
		DurationMs: durationMs,
		Metrics:    stats,
		Status:     ShadowRunSuccess,
	}
	success := status == bt.Success
	if !success {
		run.Status = ShadowRunFailure
		if runErr != nil {
			run.Error = runErr.Error()
			var execErr *leaf.ExecError
			if errors.As(runErr, &execErr) && (execErr.Code == "timeout" || execErr.Code == "aborted") {
				run.Status = ShadowRunTimeout
			}
		}
	}

	if err := r.RecordShadowRun(name, version, success); err != nil {
		return run, err
	}
	return run, nil
}

// ShadowStatsSnapshot reports every capability's current shadow statistics,
// keyed by "name@version", for the admin shell / stats endpoint.
func (r *Registry) ShadowStatsSnapshot() map[string]ShadowStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]ShadowStats, len(r.caps))
	for k, c := range r.caps {
		out[k] = c.Shadow
	}
	return out
}

// List returns a snapshot of every registered capability, sorted by
// name@version, for admin surfaces (cmd/wayfinder-shell) that need a
// full listing rather than a single lookup.
func (r *Registry) List() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Capability, 0, len(r.caps))
	for _, c := range r.caps {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return key(out[i].Name, out[i].Version) < key(out[j].Name, out[j].Version)
	})
	return out
}
