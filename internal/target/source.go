// Package target produces the endpoints a run probes.
package target

// Source yields targets in batches.
type Source interface {
	// Next returns up to n targets, or an empty slice once exhausted.
	Next(n int) ([]string, error)
	// Total is the number of targets the source will yield.
	Total() int
	// Describe names the source for banners and run history.
	Describe() string
}

// List is a Source over an in-memory slice of targets.
type List struct {
	label   string
	targets []string
	pos     int
}

// NewList returns a Source yielding targets in order.
func NewList(label string, targets []string) *List {
	return &List{label: label, targets: targets}
}

// Single returns a Source yielding exactly one target.
func Single(target string) *List {
	return NewList(target, []string{target})
}

func (l *List) Next(n int) ([]string, error) {
	if n < 1 {
		n = 1
	}
	end := l.pos + n
	if end > len(l.targets) {
		end = len(l.targets)
	}
	batch := l.targets[l.pos:end]
	l.pos = end
	return batch, nil
}

func (l *List) Total() int { return len(l.targets) }

func (l *List) Describe() string { return l.label }
