// Package compress frames page payloads as self-describing compressed blocks.
//
// A block is a 9-byte header followed by the payload:
//
//	[type uint8][uncompressed uint32][stored uint32][data...]
//
// A stored size of 0 marks a payload kept uncompressed because compression
// did not pay off. LZ4 uses github.com/pierrec/lz4/v4 block mode and ZSTD
// uses github.com/klauspost/compress/zstd with pooled coders.
package compress
