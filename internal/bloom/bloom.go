package bloom

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// headerSize is the serialized k prefix, a little-endian int32.
const headerSize = 4

var (
	// ErrInvalidCapacity is returned when a filter is sized for fewer than one item.
	ErrInvalidCapacity = errors.New("bloom: capacity out of range")

	// ErrInvalidErrorRate is returned when the target error rate is not in (0, 1).
	ErrInvalidErrorRate = errors.New("bloom: error rate out of range")

	// ErrTooLarge is returned when the derived bit count does not fit an int32.
	ErrTooLarge = errors.New("bloom: filter too large")

	// ErrInvalidData is returned when serialized data is malformed.
	ErrInvalidData = errors.New("bloom: invalid serialized data")
)

// Filter is a non-thread-safe Bloom filter over string keys.
type Filter struct {
	bits      *bitset.BitSet // m cells, only ever set
	m         int            // bit count, a positive multiple of 8
	k         int            // probes per operation
	primary   HashFunc
	secondary HashFunc
}

// Option configures a Filter at construction.
type Option func(*Filter)

// WithSecondaryHash replaces the One-at-a-Time secondary hash. A filter loaded
// from bytes must use the same function it was built with.
func WithSecondaryHash(fn HashFunc) Option {
	return func(f *Filter) {
		if fn != nil {
			f.secondary = fn
		}
	}
}

// New creates an empty filter sized for capacity items at error rate 1/capacity.
func New(capacity int, opts ...Option) (*Filter, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return build(capacity, BestErrorRate(capacity), opts)
}

// NewWithErrorRate creates an empty filter sized for capacity items at the given
// false positive rate.
func NewWithErrorRate(capacity int, errorRate float64, opts ...Option) (*Filter, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if errorRate <= 0 || errorRate >= 1 {
		return nil, fmt.Errorf("%w: %g", ErrInvalidErrorRate, errorRate)
	}
	return build(capacity, errorRate, opts)
}

func build(capacity int, errorRate float64, opts []Option) (*Filter, error) {
	if optimalBits(capacity, errorRate) > maxBits {
		return nil, fmt.Errorf("%w: capacity %d at error rate %g", ErrTooLarge, capacity, errorRate)
	}
	m := BestM(capacity, errorRate)
	return newFilter(bitset.New(uint(m)), m, BestK(capacity, errorRate), opts), nil
}

// FromBytes reconstructs a filter from the output of Serialize.
func FromBytes(data []byte, opts ...Option) (*Filter, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: data too short (got %d bytes, need at least %d)", ErrInvalidData, len(data), headerSize)
	}
	k := int32(binary.LittleEndian.Uint32(data[:headerSize]))
	if k < 1 || k > maxHashFunctions {
		return nil, fmt.Errorf("%w: hash function count %d", ErrInvalidData, k)
	}
	body := data[headerSize:]
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty bit vector", ErrInvalidData)
	}
	if len(body) > maxBits/8 {
		return nil, fmt.Errorf("%w: bit vector too large (%d bytes)", ErrInvalidData, len(body))
	}

	m := len(body) * 8
	words := make([]uint64, (m+63)/64)
	for i, b := range body {
		words[i/8] |= uint64(b) << (8 * (i % 8))
	}
	return newFilter(bitset.FromWithLength(uint(m), words), m, int(k), opts), nil
}

func newFilter(bits *bitset.BitSet, m, k int, opts []Option) *Filter {
	f := &Filter{
		bits:      bits,
		m:         m,
		k:         k,
		primary:   XXH3,
		secondary: OneAtATime,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// position returns probe i for the hash pair. The sum wraps in int32 and the
// truncated remainder is taken before the absolute value; persisted filters
// depend on this exact order.
func (f *Filter) position(h1, h2 int32, i int) uint {
	r := int64(h1+int32(i)*h2) % int64(f.m)
	if r < 0 {
		r = -r
	}
	return uint(r)
}

// Add inserts item.
func (f *Filter) Add(item string) {
	h1, h2 := f.primary(item), f.secondary(item)
	for i := 0; i < f.k; i++ {
		f.bits.Set(f.position(h1, h2, i))
	}
}

// Contains reports whether item may have been added. False is definite.
func (f *Filter) Contains(item string) bool {
	h1, h2 := f.primary(item), f.secondary(item)
	for i := 0; i < f.k; i++ {
		if !f.bits.Test(f.position(h1, h2, i)) {
			return false
		}
	}
	return true
}

// Truthiness returns the fraction of bits set, in [0, 1].
func (f *Filter) Truthiness() float64 {
	return float64(f.bits.Count()) / float64(f.m)
}

// BitCount returns m.
func (f *Filter) BitCount() int {
	return f.m
}

// HashFunctionCount returns k.
func (f *Filter) HashFunctionCount() int {
	return f.k
}

// EstimatedFalsePositiveRate estimates the false positive rate after n insertions.
func (f *Filter) EstimatedFalsePositiveRate(n int) float64 {
	return EstimateFalsePositiveRate(f.m, f.k, n)
}

// Serialize encodes the filter as a 4 byte little-endian k followed by m/8 bytes
// of bit vector, bit i at byte i/8, bit i%8.
func (f *Filter) Serialize() []byte {
	buf := make([]byte, headerSize+f.m/8)
	binary.LittleEndian.PutUint32(buf[:headerSize], uint32(int32(f.k)))

	words := f.bits.Words()
	body := buf[headerSize:]
	for i := range body {
		body[i] = byte(words[i/8] >> (8 * (i % 8)))
	}
	return buf
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (f *Filter) MarshalBinary() ([]byte, error) {
	return f.Serialize(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. A secondary hash set
// on f beforehand is kept.
func (f *Filter) UnmarshalBinary(data []byte) error {
	g, err := FromBytes(data, WithSecondaryHash(f.secondary))
	if err != nil {
		return err
	}
	*f = *g
	return nil
}
