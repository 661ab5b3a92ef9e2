package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/distribution-ledger/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// recordingClient notes the key of every script call, in order.
type recordingClient struct {
	*redis.Client
	keys []string
}

func (c *recordingClient) record(keys []string) {
	c.keys = append(c.keys, keys...)
}

func (c *recordingClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	c.record(keys)
	return c.Client.Eval(ctx, script, keys, args...)
}

func (c *recordingClient) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	c.record(keys)
	return c.Client.EvalSha(ctx, sha1, keys, args...)
}

// firstSeen returns keys in the order they were first touched.
func (c *recordingClient) firstSeen() []string {
	var out []string
	seen := map[string]bool{}
	for _, k := range c.keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

// short TTL keeps the retry window of a contended key to a few attempts
const testTTL = 150 * time.Millisecond

// =============================================================================
// ACQUIRE / RELEASE
// =============================================================================

func TestRedis_AcquireTakesKeysInSortedOrder(t *testing.T) {
	// GIVEN: keys passed unsorted with a duplicate
	// WHEN: they are acquired and released
	// THEN: each key is taken once in sorted order; release frees them all

	mr, rdb := newTestRedis(t)
	client := &recordingClient{Client: rdb}
	logger, hook := test.NewNullLogger()
	locker := NewRedis(client, testTTL, logger)

	release, err := locker.Acquire(context.Background(), "stock:W2:I1", "customer:C1", "stock:W1:I1", "customer:C1")
	require.NoError(t, err)

	assert.Equal(t, []string{"lock:customer:C1", "lock:stock:W1:I1", "lock:stock:W2:I1"}, client.firstSeen())
	for _, k := range []string{"lock:customer:C1", "lock:stock:W1:I1", "lock:stock:W2:I1"} {
		assert.True(t, mr.Exists(k), k)
	}

	release()
	assert.Empty(t, mr.Keys())
	assert.Empty(t, hook.AllEntries())
}

func TestRedis_ContentionIsConcurrentModification(t *testing.T) {
	// GIVEN: one process holding stock:W1:I1
	// WHEN: another tries to take it
	// THEN: it fails with a concurrent modification once the retries run
	//       out, and succeeds after the holder releases

	_, rdb := newTestRedis(t)
	logger, _ := test.NewNullLogger()
	holder := NewRedis(rdb, testTTL, logger)
	other := NewRedis(rdb, testTTL, logger)
	ctx := context.Background()

	releaseHolder, err := holder.Acquire(ctx, StockKey("W1", "I1"))
	require.NoError(t, err)

	release, err := other.Acquire(ctx, StockKey("W1", "I1"))
	require.Error(t, err)
	require.NotNil(t, release)
	release()
	assert.ErrorIs(t, err, ErrNotObtained)
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)
	assert.Equal(t, ledger.CodeConcurrentModification, ledger.Code(err))

	releaseHolder()
	release, err = other.Acquire(ctx, StockKey("W1", "I1"))
	require.NoError(t, err)
	release()
}

func TestRedis_PartialSetIsReleased(t *testing.T) {
	// GIVEN: customer:C1 held elsewhere
	// WHEN: a caller asks for customer:C0, customer:C1 and order:1
	// THEN: the call fails and customer:C0, taken first, is released again;
	//       the other holder keeps its key

	mr, rdb := newTestRedis(t)
	logger, _ := test.NewNullLogger()
	ctx := context.Background()

	releaseHolder, err := NewRedis(rdb, testTTL, logger).Acquire(ctx, "customer:C1")
	require.NoError(t, err)
	defer releaseHolder()

	client := &recordingClient{Client: rdb}
	_, err = NewRedis(client, testTTL, logger).Acquire(ctx, "order:1", "customer:C1", "customer:C0")
	assert.ErrorIs(t, err, ErrNotObtained)

	assert.False(t, mr.Exists("lock:customer:C0"))
	assert.True(t, mr.Exists("lock:customer:C1"))
	assert.False(t, mr.Exists("lock:order:1"))
	assert.NotContains(t, client.firstSeen(), "lock:order:1", "keys after the failing one are not tried")
}

func TestRedis_ReleaseAfterContextCancelled(t *testing.T) {
	// GIVEN: locks taken with a request context
	// WHEN: the request context is cancelled before release
	// THEN: release still frees every key without logging a failure

	mr, rdb := newTestRedis(t)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	ctx, cancel := context.WithCancel(context.Background())
	release, err := NewRedis(rdb, testTTL, logger).Acquire(ctx, "order:1", "customer:C1")
	require.NoError(t, err)

	cancel()
	release()

	assert.Empty(t, mr.Keys())
	assert.Empty(t, hook.AllEntries())
}

func TestRedis_ReleaseOfExpiredLockIsQuiet(t *testing.T) {
	mr, rdb := newTestRedis(t)
	logger, hook := test.NewNullLogger()

	release, err := NewRedis(rdb, testTTL, logger).Acquire(context.Background(), "order:1")
	require.NoError(t, err)

	mr.FastForward(time.Second)
	release()
	assert.Empty(t, hook.AllEntries())
}

// =============================================================================
// DIAL
// =============================================================================

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := Dial(context.Background(), mr.Addr())
	require.NoError(t, err)
	require.NoError(t, rdb.Close())

	_, err = Dial(context.Background(), "127.0.0.1:1")
	assert.Error(t, err)
}
