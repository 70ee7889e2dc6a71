package corpus

// DefaultSeed replaces a zero seed. xorshift32 maps zero to zero forever.
const DefaultSeed uint32 = 2463534242

// Random is a deterministic xorshift32 generator. The same seed always yields
// the same sequence, which keeps augmentation and offline generation
// reproducible. Not safe for concurrent use.
type Random struct {
	state uint32
}

// NewRandom returns a generator seeded with seed, or [DefaultSeed] when seed
// is zero.
func NewRandom(seed uint32) *Random {
	if seed == 0 {
		seed = DefaultSeed
	}
	return &Random{state: seed}
}

// Next returns the next value of the stream.
func (r *Random) Next() uint32 {
	x := r.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	r.state = x
	return x
}

// Intn returns a value in [0, n). It returns 0 when n <= 0.
func (r *Random) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Next() % uint32(n))
}

// Choice returns a uniformly chosen element of items, or the zero value for
// an empty slice.
func Choice[T any](r *Random, items []T) T {
	if len(items) == 0 {
		var zero T
		return zero
	}
	return items[r.Intn(len(items))]
}
