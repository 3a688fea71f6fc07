// Package itemcache holds the items a list has fetched so far.
//
// Items are grouped into pages of a fixed size, normally the loader's batch
// size, and evicted page by page in least-recently-used order once the cache
// exceeds its item or memory budget. Presence of individual items is tracked
// in a roaring bitmap, so Cache.IsLoaded can serve directly as the loader's
// item-loaded predicate.
package itemcache
