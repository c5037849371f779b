package bloom

import (
	"unicode/utf16"

	"github.com/zeebo/xxh3"
)

// HashFunc maps a key to a 32-bit signed hash. Arithmetic wraps on overflow.
type HashFunc func(s string) int32

// XXH3 returns the low 32 bits of the xxh3 hash of s.
func XXH3(s string) int32 {
	return int32(uint32(xxh3.HashString(s)))
}

// OneAtATime is Bob Jenkins' One-at-a-Time hash over the UTF-16 code units of s.
func OneAtATime(s string) int32 {
	var h int32
	mix := func(c int32) {
		h += c
		h += h << 10
		h ^= h >> 6
	}
	for _, r := range s {
		if r >= 0x10000 {
			hi, lo := utf16.EncodeRune(r)
			mix(int32(hi))
			mix(int32(lo))
			continue
		}
		mix(int32(r))
	}
	h += h << 3
	h ^= h >> 11
	h += h << 15
	return h
}
