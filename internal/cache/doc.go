// Package cache provides a byte-budgeted LRU cache for blob blocks.
//
// Blocks are keyed by blob name and block index. Memory may additionally be
// charged against a resource.Controller so that block caching and the item
// cache share one budget.
package cache
