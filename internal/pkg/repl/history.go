package repl

// History keeps the last queries
type History struct {
	size  int
	items []string
}

// NewHistory creates history keeping at most size items
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{size: size}
}

// Add appends the query dropping the oldest one if full
func (h *History) Add(q string) {
	h.items = append(h.items, q)
	if len(h.items) > h.size {
		h.items = h.items[len(h.items)-h.size:]
	}
}

// Items returns queries oldest first
func (h *History) Items() []string {
	return append([]string(nil), h.items...)
}
