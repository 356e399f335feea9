package analysis

// DefaultMaxSamples bounds the number of lookups per segment.
const DefaultMaxSamples = 20

// sampleStep returns the stride between sampled indices for a segment of n
// points. The stride is rounded up so that the sample never exceeds max.
func sampleStep(n, max int) int {
	if max <= 0 {
		max = DefaultMaxSamples
	}
	step := (n + max - 1) / max
	if step < 1 {
		step = 1
	}
	return step
}

// SampleIndices returns the indices 0, step, 2*step, ... below n. The first
// point is always included when n > 0 and the selection depends only on n.
func SampleIndices(n, max int) []int {
	if n <= 0 {
		return nil
	}
	step := sampleStep(n, max)
	out := make([]int, 0, SampleCount(n, max))
	for i := 0; i < n; i += step {
		out = append(out, i)
	}
	return out
}

// SampleCount returns len(SampleIndices(n, max)) without allocating.
func SampleCount(n, max int) int {
	if n <= 0 {
		return 0
	}
	step := sampleStep(n, max)
	return (n + step - 1) / step
}
