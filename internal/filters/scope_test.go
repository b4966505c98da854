package filters

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scopingFilters = []Filter{
	{ID: "A", Target: TargetLocal, Type: TypeMultiSelect, Column: "a"},
	{ID: "B", Target: TargetLocal, Type: TypeDropdown, Column: "b"},
}

func scopingRecords() []Record {
	return []Record{
		{"a": 1, "b": "x"},
		{"a": 3, "b": "x"},
		{"a": 1, "b": "y"},
	}
}

func TestScopeListAndScalar(t *testing.T) {
	scoped := Scope(scopingRecords(), scopingFilters, State{"A": []any{1, 2}, "B": "x"}, true)

	assert.Equal(t, []Record{{"a": 1, "b": "x"}}, scoped)
}

func TestScopeWithoutSelectionsIsNoop(t *testing.T) {
	records := scopingRecords()

	assert.Equal(t, records, Scope(records, scopingFilters, State{}, true))
}

func TestScopeNotReadyReturnsInput(t *testing.T) {
	records := scopingRecords()

	assert.Equal(t, records, Scope(records, scopingFilters, State{"B": "y"}, false))
}

func TestScopeEmptyListIsNoConstraint(t *testing.T) {
	records := scopingRecords()

	assert.Len(t, Scope(records, scopingFilters, State{"A": []any{}}, true), 3)
	assert.Len(t, Scope(records, scopingFilters, State{"B": ""}, true), 3)
}

func TestScopeDoesNotMutateInput(t *testing.T) {
	records := scopingRecords()

	scoped := Scope(records, scopingFilters, State{"B": "y"}, true)
	require.Len(t, scoped, 1)

	assert.Equal(t, scopingRecords(), records)
}

func TestScopeIgnoresFiltersWithoutColumn(t *testing.T) {
	defs := []Filter{{ID: "year", Target: TargetAPI, ParamName: "year"}}

	assert.Len(t, Scope(scopingRecords(), defs, State{"year": 2019}, true), 3)
}

func TestScopeIsOrderIndependent(t *testing.T) {
	state := State{"A": []string{"1", "3"}, "B": "x"}
	reversed := []Filter{scopingFilters[1], scopingFilters[0]}

	assert.Equal(t,
		Scope(scopingRecords(), scopingFilters, state, true),
		Scope(scopingRecords(), reversed, state, true),
	)
}

func TestScopeComparesDecodedNumbers(t *testing.T) {
	var records []Record
	require.NoError(t, json.Unmarshal([]byte(`[{"a":1,"b":"x"},{"a":2,"b":"x"}]`), &records))

	scoped := Scope(records, scopingFilters, State{"A": 1}, true)
	require.Len(t, scoped, 1)
	assert.Equal(t, float64(1), scoped[0]["a"])
}

func TestValueKey(t *testing.T) {
	assert.Equal(t, "1", ValueKey(1))
	assert.Equal(t, "1", ValueKey(int64(1)))
	assert.Equal(t, "1", ValueKey(1.0))
	assert.Equal(t, "1.5", ValueKey(json.Number("1.5")))
	assert.Equal(t, "true", ValueKey(true))
	assert.Equal(t, "Jobs", ValueKey("Jobs"))
	assert.Equal(t, "", ValueKey(nil))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(""))
	assert.True(t, IsEmpty([]any{}))
	assert.True(t, IsEmpty([]int{}))
	assert.False(t, IsEmpty(0))
	assert.False(t, IsEmpty([]string{"a"}))
	assert.False(t, IsEmpty(false))
}

func TestScopeMatchesNumericStrings(t *testing.T) {
	// Selections decoded from query strings or forms carry numbers as strings.
	scoped := Scope(scopingRecords(), scopingFilters, State{"A": "1"}, true)
	assert.Len(t, scoped, 2)

	scoped = Scope([]Record{{"a": "3", "b": "x"}}, scopingFilters, State{"A": 3}, true)
	assert.Len(t, scoped, 1)

	assert.Empty(t, Scope(scopingRecords(), scopingFilters, State{"A": "01"}, true))
	assert.Empty(t, Scope(scopingRecords(), scopingFilters, State{"B": "X"}, true))
}
