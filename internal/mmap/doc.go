// Package mmap maps local blob files read-only into memory.
//
// A Mapping serves ranged reads straight from the page cache, which is what
// a record source scrolling through a large local file does most of the time.
//
//	m, err := mmap.Open("items.bin")
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessSequential)
//	n, err := m.ReadAt(buf, off)
//
// Unix platforms use mmap(2) and madvise(2); on Windows, Advise is a no-op.
// Reads are safe for concurrent use. Callers must not touch the slice
// returned by Bytes after Close.
package mmap
