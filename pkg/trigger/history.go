package trigger

// History keeps the most recent probability vectors, oldest first.
type History struct {
	entries  [][]float64
	capacity int
}

// NewHistory creates an empty history holding up to capacity vectors.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		entries:  make([][]float64, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a copy of probs, evicting the oldest entry when full.
func (h *History) Push(probs []float64) {
	p := append([]float64(nil), probs...)
	if len(h.entries) == h.capacity {
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = p
		return
	}
	h.entries = append(h.entries, p)
}

// Mean averages score over every entry. It returns 0 when empty.
func (h *History) Mean(score func([]float64) float64) float64 {
	if len(h.entries) == 0 {
		return 0
	}
	var sum float64
	for _, e := range h.entries {
		sum += score(e)
	}
	return sum / float64(len(h.entries))
}

// Len returns the number of stored vectors.
func (h *History) Len() int { return len(h.entries) }

// Clear empties the history.
func (h *History) Clear() {
	clear(h.entries)
	h.entries = h.entries[:0]
}
