package bloom

import "math"

const (
	// fallbackBase is the asymptotic false positive rate per bit of an optimally
	// filled filter, 0.5^ln2.
	fallbackBase = 0.6185

	// maxBits bounds m so probe positions fit the int32 hash arithmetic.
	maxBits = math.MaxInt32

	// maxHashFunctions bounds k when loading serialized filters. The smallest
	// positive float64 error rate derives k = 1074.
	maxHashFunctions = 2048
)

// BestErrorRate returns the target false positive rate for a filter holding
// capacity items, 1/capacity. When that underflows to zero the asymptotic
// 0.6185^(MaxInt32/capacity) is used instead; with float64 this branch is
// unreachable for any int capacity.
func BestErrorRate(capacity int) float64 {
	c := 1.0 / float64(capacity)
	if c != 0 {
		return c
	}
	return math.Pow(fallbackBase, float64(math.MaxInt32/capacity))
}

// optimalBits returns ceil(n * log_{1/2^ln2}(p)), the un-rounded optimal m.
func optimalBits(capacity int, errorRate float64) float64 {
	return math.Ceil(float64(capacity) * math.Log(errorRate) / math.Log(1/math.Pow(2, math.Ln2)))
}

// BestM returns the bit count for capacity items at errorRate, rounded down to a
// whole byte. The result is never below 8.
func BestM(capacity int, errorRate float64) int {
	m := int(optimalBits(capacity, errorRate)) &^ 7
	if m < 8 {
		m = 8
	}
	return m
}

// BestK returns round(ln2 * m / n) computed from the un-rounded optimal m, and
// never less than 1.
func BestK(capacity int, errorRate float64) int {
	k := int(math.Round(math.Ln2 * optimalBits(capacity, errorRate) / float64(capacity)))
	if k < 1 {
		k = 1
	}
	return k
}

// EstimateFalsePositiveRate returns (1 - e^(-kn/m))^k, the expected false
// positive rate of an m bit filter with k probes after n insertions.
func EstimateFalsePositiveRate(m, k, n int) float64 {
	if m <= 0 || n <= 0 {
		return 0
	}
	kf := float64(k)
	return math.Pow(1-math.Exp(-kf*float64(n)/float64(m)), kf)
}
