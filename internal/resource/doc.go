// Package resource implements the Controller that governs remote fetches and
// item cache memory.
//
// The Controller provides centralized management of three resource types:
//
//   - Fetch slots: bound the number of fetches in flight across all requests
//   - Fetch rate: token bucket limiting how often fetches may start
//   - Memory: track and limit memory held by item caches (fail-fast)
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                        Controller                           │
//	├─────────────────┬─────────────────┬─────────────────────────┤
//	│  Fetch Slots    │  Fetch Rate     │  Memory Limit           │
//	│  (sem)          │  (token bucket) │  (fail-fast)            │
//	├─────────────────┼─────────────────┼─────────────────────────┤
//	│  AcquireFetch   │  AcquireFetch   │  TryAcquireMemory       │
//	│  TryAcquire-    │  (waits for a   │  AcquireMemory          │
//	│  Fetch          │  token)         │  ReleaseMemory          │
//	│  ReleaseFetch   │                 │  MemoryUsage            │
//	└─────────────────┴─────────────────┴─────────────────────────┘
//
// A Controller may be shared by several loaders to enforce a global fetch
// budget (e.g. all lists of one screen talking to the same backend):
//
//	rc := resource.NewController(resource.Config{
//	    MaxInFlightFetches: 4,
//	    FetchesPerSecond:   20,
//	})
//
//	if err := rc.AcquireFetch(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseFetch()
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource
