package result_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazz-dev/sitecheck/internal/result"
)

func TestResult_String(t *testing.T) {
	assert.Equal(t, "200", result.Code(200).String())
	assert.Equal(t, "Error", result.Failure.String())
	assert.True(t, result.Result{}.IsFailure(), "zero value should be Failure")
	assert.Equal(t, "4xx", result.Code(404).Class())
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want result.Result
		ok   bool
	}{
		{"200", result.Code(200), true},
		{"599", result.Code(599), true},
		{"Error", result.Failure, true},
		{"99", result.Failure, false},
		{"600", result.Code(600), true},
		{"1000", result.Failure, false},
		{"abc", result.Failure, false},
		{"", result.Failure, false},
	}
	for _, tt := range tests {
		got, ok := result.Parse(tt.in)
		assert.Equal(t, tt.ok, ok, "Parse(%q) ok", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "Parse(%q)", tt.in)
		}
	}
}

func TestTable_LastWriteWinsKeepsFirstPosition(t *testing.T) {
	tbl := result.NewTable()
	tbl.Set("a", result.Code(200))
	tbl.Set("b", result.Code(404))
	tbl.Set("a", result.Failure)

	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, 3, tbl.Dispatched())

	entries := tbl.Entries()
	assert.Equal(t, "a", entries[0].Target)
	assert.Equal(t, result.Failure, entries[0].Result)
	assert.Equal(t, "b", entries[1].Target)
}

func TestGroup(t *testing.T) {
	tbl := result.NewTable()
	tbl.Set("a.test", result.Code(200))
	tbl.Set("b.test", result.Failure)
	tbl.Set("c.test", result.Code(200))

	g := result.Group(tbl)
	require.Equal(t, 2, g.Len())
	assert.Equal(t, []result.Result{result.Code(200), result.Failure}, g.Keys())
	assert.Equal(t, []string{"a.test", "c.test"}, g.Sites(result.Code(200)))
	assert.Equal(t, []string{"b.test"}, g.Sites(result.Failure))

	sites, ok := g.Lookup("Error")
	require.True(t, ok)
	assert.Equal(t, []string{"b.test"}, sites)

	_, ok = g.Lookup("500")
	assert.False(t, ok)

	assert.Equal(t, map[string]int{"200": 2, "Error": 1}, g.Counts())
}

func TestGroup_EmptyTable(t *testing.T) {
	g := result.Group(result.NewTable())
	assert.Equal(t, 0, g.Len())

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestGrouped_MarshalJSONKeepsKeyOrder(t *testing.T) {
	tbl := result.NewTable()
	tbl.Set("x", result.Code(503))
	tbl.Set("y", result.Code(200))
	tbl.Set("z", result.Failure)

	data, err := json.Marshal(result.Group(tbl))
	require.NoError(t, err)
	assert.Equal(t, `{"503":["x"],"200":["y"],"Error":["z"]}`, string(data))

	indented, err := json.MarshalIndent(result.Group(tbl), "", "    ")
	require.NoError(t, err)
	assert.Contains(t, string(indented), "\n    \"503\": [\n        \"x\"\n    ],")
}
