// Package bloom implements the probabilistic set used to deduplicate crawled URLs.
//
// A Filter answers "definitely not seen" or "probably seen" for a string key. Keys
// are never removed and the capacity is fixed at construction, so accuracy degrades
// gracefully once more keys than the capacity are inserted.
//
// # Hashing
//
// Each operation computes two 32-bit hashes of the key once and derives k probe
// positions with double hashing (Dillinger and Manolios):
//
//	position(i) = |(h1 + i*h2) mod m|
//
// h1 is the low 32 bits of xxh3, h2 is Bob Jenkins' One-at-a-Time hash over the
// UTF-16 code units of the key. Both are stable across processes, which keeps a
// persisted filter meaningful after a restart.
//
// # Serialization
//
// The wire format is a 4 byte little-endian k followed by the bit vector packed
// least significant bit first:
//
//	[0..4)   int32 k
//	[4..end) m/8 bytes, m = 8 * (len - 4)
//
// # Thread Safety
//
// [Filter] is NOT thread-safe. Callers sharing a filter between goroutines must
// guard it, see the dedupe package.
package bloom
