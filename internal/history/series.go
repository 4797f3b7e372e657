package history

// DefaultCapacity matches the width of the menu panel graphs.
const DefaultCapacity = 30

// Series is a fixed-capacity FIFO of float64 samples. Once full, pushing a
// new sample evicts the oldest one.
type Series struct {
	capacity int
	values   []float64
}

func NewSeries(capacity int) *Series {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Series{
		capacity: capacity,
		values:   make([]float64, 0, capacity),
	}
}

// Push appends a sample, evicting the oldest once the series is full.
func (s *Series) Push(v float64) {
	if len(s.values) >= s.capacity {
		s.values = s.values[1:]
	}
	s.values = append(s.values, v)
}

// Values returns a copy of the samples, oldest first.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)

	return out
}

// Latest returns the most recent sample, or 0 when the series is empty.
func (s *Series) Latest() float64 {
	if len(s.values) == 0 {
		return 0
	}

	return s.values[len(s.values)-1]
}

func (s *Series) Len() int {
	return len(s.values)
}

func (s *Series) Capacity() int {
	return s.capacity
}
