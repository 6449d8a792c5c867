package result

import (
	"bytes"
	"encoding/json"
)

// Grouped maps each Result to the targets that produced it. Keys are kept in
// order of first occurrence and targets in table order.
type Grouped struct {
	keys   []Result
	groups map[Result][]string
}

// Group builds the Result -> targets grouping in a single pass over t.
func Group(t *Table) *Grouped {
	g := &Grouped{groups: make(map[Result][]string)}
	for _, e := range t.Entries() {
		if _, ok := g.groups[e.Result]; !ok {
			g.keys = append(g.keys, e.Result)
		}
		g.groups[e.Result] = append(g.groups[e.Result], e.Target)
	}
	return g
}

// Keys returns the distinct results in first-occurrence order.
func (g *Grouped) Keys() []Result {
	return append([]Result(nil), g.keys...)
}

// Sites returns the targets that produced r.
func (g *Grouped) Sites(r Result) []string {
	return g.groups[r]
}

// Lookup finds a group by its rendered key, as typed by a user.
func (g *Grouped) Lookup(key string) ([]string, bool) {
	r, ok := Parse(key)
	if !ok {
		return nil, false
	}
	sites, ok := g.groups[r]
	return sites, ok
}

// Counts returns the group sizes keyed by rendered result.
func (g *Grouped) Counts() map[string]int {
	counts := make(map[string]int, len(g.keys))
	for _, k := range g.keys {
		counts[k.String()] = len(g.groups[k])
	}
	return counts
}

// Len returns the number of groups.
func (g *Grouped) Len() int {
	return len(g.keys)
}

// MarshalJSON encodes the grouping as an object whose members follow key order.
func (g *Grouped) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range g.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k.String())
		if err != nil {
			return nil, err
		}
		sites, err := json.Marshal(g.groups[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(sites)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
