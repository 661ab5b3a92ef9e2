/*
Package lock provides exclusive per-row locks held around a store transaction.

PURPOSE:
  Within one process the SQLite store already serialises writers. When
  several server processes share a database, the orchestrators take
  named locks (one per warehouse item, customer or order) before opening
  their transaction, so two processes never run the same unit of work
  against the same rows at once.

IMPLEMENTATIONS:
  Noop:  single process; Acquire always succeeds
  Redis: bsm/redislock on top of go-redis

KEY NAMING:
  stock:<warehouse>:<item>
  customer:<id>
  order:<order_no>
*/
package lock

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/distribution-ledger/ledger"
)

// ErrNotObtained is returned when a key stays held by someone else for the
// whole retry window.
var ErrNotObtained = fmt.Errorf("lock not obtained: %w", ledger.ErrConcurrentModification)

// Release frees every key taken by one Acquire call.
type Release func()

type Locker interface {
	// Acquire takes all keys or none. The returned Release is never nil.
	Acquire(ctx context.Context, keys ...string) (Release, error)
}

func StockKey(wh ledger.WarehouseID, item ledger.ItemID) string {
	return fmt.Sprintf("stock:%s:%s", wh, item)
}

func CustomerKey(id ledger.CustomerID) string { return "customer:" + string(id) }

func OrderKey(no ledger.OrderNo) string { return "order:" + string(no) }

// Noop is the single-process locker.
type Noop struct{}

func (Noop) Acquire(context.Context, ...string) (Release, error) { return func() {}, nil }

// normalize sorts and de-duplicates keys so every caller takes them in the
// same order.
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
