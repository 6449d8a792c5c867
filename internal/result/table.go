package result

// Entry is one (target, result) pair of a Table.
type Entry struct {
	Target string
	Result Result
}

// Table maps targets to results in dispatch order.
//
// Targets are keys: a repeated target keeps the position of its first write
// and takes the value of its last. Table is not safe for concurrent use; the
// engine writes to it from a single goroutine.
type Table struct {
	order      []string
	values     map[string]Result
	dispatched int
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{values: make(map[string]Result)}
}

// Set records r for target.
func (t *Table) Set(target string, r Result) {
	t.dispatched++
	if _, ok := t.values[target]; !ok {
		t.order = append(t.order, target)
	}
	t.values[target] = r
}

// Get returns the result recorded for target.
func (t *Table) Get(target string) (Result, bool) {
	r, ok := t.values[target]
	return r, ok
}

// Len returns the number of distinct targets.
func (t *Table) Len() int {
	return len(t.order)
}

// Dispatched returns the number of Set calls, duplicates included.
func (t *Table) Dispatched() int {
	return t.dispatched
}

// Entries returns the table contents in dispatch order.
func (t *Table) Entries() []Entry {
	entries := make([]Entry, 0, len(t.order))
	for _, target := range t.order {
		entries = append(entries, Entry{Target: target, Result: t.values[target]})
	}
	return entries
}
