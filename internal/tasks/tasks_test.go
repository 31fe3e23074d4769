package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(now time.Time) *Store {
	s := NewStore()
	s.nowFn = func() time.Time { return now }
	return s
}

func TestEligiblePendingRequiresSteps(t *testing.T) {
	now := time.Now()
	s := newTestStore(now)
	_, err := s.Enqueue(Task{ID: "t1", Status: StatusPending})
	require.NoError(t, err)
	assert.Empty(t, s.Eligible())

	_, err = s.Enqueue(Task{ID: "t2", Status: StatusPending, Steps: []Step{{ID: "s1"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, s.Eligible())
}

func TestBlockedTaskIsIneligible(t *testing.T) {
	now := time.Now()
	s := newTestStore(now)
	_, err := s.Enqueue(Task{ID: "t1", Status: StatusActive})
	require.NoError(t, err)
	require.NoError(t, s.Block("t1", ReasonWaitingOnPrereq))
	assert.Empty(t, s.Eligible())
}

func TestGoalKeyGuardBlocksDuplicateWithinWindow(t *testing.T) {
	now := time.Now()
	s := newTestStore(now)
	_, err := s.Enqueue(Task{ID: "t1", Status: StatusActive, Metadata: Metadata{GoalKey: "goal-a"}})
	require.NoError(t, err)

	_, err = s.Enqueue(Task{ID: "t2", Status: StatusPending, Steps: []Step{{ID: "s1"}}, Metadata: Metadata{GoalKey: "goal-a"}})
	require.Error(t, err)
	var conflict *ErrGoalKeyInFlight
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "t1", conflict.ExistingTaskID)
}

func TestGoalKeyGuardAllowsStaleDuplicate(t *testing.T) {
	start := time.Now()
	s := newTestStore(start)
	_, err := s.Enqueue(Task{
		ID:        "t1",
		Status:    StatusActive,
		Metadata:  Metadata{GoalKey: "goal-a"},
		CreatedAt: start.Add(-10 * time.Minute),
	})
	require.NoError(t, err)

	stale, err := s.Enqueue(Task{ID: "t2", Status: StatusPending, Steps: []Step{{ID: "s1"}}, Metadata: Metadata{GoalKey: "goal-a"}})
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestSweepTTLFailsExpiredNonExemptBlocks(t *testing.T) {
	start := time.Now()
	s := newTestStore(start)
	blockedAt := start.Add(-3 * time.Minute)
	_, err := s.Enqueue(Task{
		ID:     "t1",
		Status: StatusActive,
		Metadata: Metadata{
			BlockedReason: ReasonNoExecutablePlan,
			BlockedAt:     &blockedAt,
		},
	})
	require.NoError(t, err)

	expired := s.SweepTTL()
	require.Len(t, expired, 1)
	assert.Equal(t, "t1", expired[0].TaskID)
	assert.Equal(t, "blocked-ttl-exceeded:no_executable_plan", expired[0].Reason)

	got, ok := s.Get("t1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestSweepTTLSparesExemptReasons(t *testing.T) {
	start := time.Now()
	s := newTestStore(start)
	blockedAt := start.Add(-time.Hour)
	_, err := s.Enqueue(Task{
		ID:     "t1",
		Status: StatusActive,
		Metadata: Metadata{
			BlockedReason: ReasonWaitingOnPrereq,
			BlockedAt:     &blockedAt,
		},
	})
	require.NoError(t, err)

	assert.Empty(t, s.SweepTTL())
}

func TestAutoUnblockShadowModeOnLiveTransition(t *testing.T) {
	now := time.Now()
	s := newTestStore(now)
	_, err := s.Enqueue(Task{ID: "t1", Status: StatusActive, Metadata: Metadata{BlockedReason: ReasonShadowMode, BlockedAt: &now}})
	require.NoError(t, err)

	assert.Empty(t, s.AutoUnblockShadowMode("shadow"))
	unblocked := s.AutoUnblockShadowMode("live")
	assert.Equal(t, []string{"t1"}, unblocked)
	assert.Equal(t, []string{"t1"}, s.Eligible())
}
