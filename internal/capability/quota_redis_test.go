package capability

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisQuotaSharesWindowAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q1 := NewRedisQuota(client, "cap:scout", 2, time.Minute)
	q2 := NewRedisQuota(client, "cap:scout", 2, time.Minute)

	now := time.Now()
	require.True(t, q1.Allow(now))
	require.True(t, q2.Allow(now), "second caller shares the same window")
	require.False(t, q1.Allow(now), "third request in the window must be rejected")
}
