package chance

import "sync"

// Fixed is a scripted Source for tests. Float64 and Int64N each replay their
// own list in order and repeat the last value once exhausted. Int64N results
// are reduced modulo n so a script never escapes the requested range.
type Fixed struct {
	mu     sync.Mutex
	floats []float64
	ints   []int64
	fi, ii int

	// Calls counts Float64 draws.
	Calls int
}

// NewFixed returns a Fixed source replaying floats from Float64.
func NewFixed(floats ...float64) *Fixed {
	return &Fixed{floats: floats}
}

// WithInts sets the values replayed by Int64N.
func (f *Fixed) WithInts(ints ...int64) *Fixed {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ints = ints
	f.ii = 0
	return f
}

func (f *Fixed) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if len(f.floats) == 0 {
		return 0
	}
	v := f.floats[min(f.fi, len(f.floats)-1)]
	f.fi++
	return v
}

func (f *Fixed) Int64N(n int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ints) == 0 {
		return 0
	}
	v := f.ints[min(f.ii, len(f.ints)-1)]
	f.ii++
	return v % n
}
