// Package source provides the fetch collaborators a list loads items from.
//
// A Source returns the items of an inclusive index range. Ranges handed over
// by the loader are batch aligned, so the last batch of a collection usually
// extends past its end; sources return the items that exist and no error.
//
// Records serves fixed-width records stored back to back in one blob, which
// makes every fetch a single ranged read. Pages serves one compressed,
// codec-encoded blob per page and reads the pages of a fetch concurrently.
package source
