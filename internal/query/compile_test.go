package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flovouin/dashviz/internal/filters"
)

var defs = []filters.Filter{
	{ID: "oppType", ParamName: "oppTypeId", Target: filters.TargetAPI, Type: filters.TypeDropdown, Required: true},
	{ID: "zones", ParamName: "zoneCode", Target: filters.TargetAPI, Type: filters.TypeMultiSelect},
	{ID: "year", ParamName: "year", Target: filters.TargetAPI, Type: filters.TypeSlider},
	{ID: "scenario", ParamName: "scenarioId", Target: filters.TargetAPI, Type: filters.TypeFixed, Default: 3},
	{ID: "mode", ParamName: "mode", Target: filters.TargetLocal, Type: filters.TypeDropdown, Column: "mode"},
}

func TestCompileScalar(t *testing.T) {
	params := Compile(filters.State{"oppType": 1}, defs[:1])

	assert.Equal(t, Params{"oppTypeId": {Value: 1, Required: true}}, params)
	assert.Equal(t, map[string]any{"oppTypeId": 1}, params.Values())
	assert.True(t, params.Satisfied())
}

func TestCompileOmitsMissingValues(t *testing.T) {
	params := Compile(filters.State{"oppType": 2, "zones": nil, "year": ""}, defs)

	assert.NotContains(t, params, "zoneCode")
	assert.NotContains(t, params, "year")
	assert.NotContains(t, params, "mode")
}

func TestCompileMultiSelect(t *testing.T) {
	params := Compile(filters.State{"zones": []string{"E01", "E02"}}, defs)

	assert.Equal(t, Param{Value: []any{"E01", "E02"}, Multi: true}, params["zoneCode"])
}

func TestCompileEmptyListIsOmitted(t *testing.T) {
	params := Compile(filters.State{"zones": []any{}}, defs)

	assert.NotContains(t, params, "zoneCode")
}

func TestCompileRequiredMarker(t *testing.T) {
	params := Compile(filters.State{"year": 2019}, defs)

	assert.Equal(t, Param{Required: true}, params["oppTypeId"])
	assert.False(t, params.Satisfied())
	assert.NotContains(t, params.Values(), "oppTypeId")
	assert.Equal(t, 2019, params.Values()["year"])
}

func TestCompileFixedDefault(t *testing.T) {
	params := Compile(filters.State{}, defs)
	assert.Equal(t, 3, params["scenarioId"].Value)

	params = Compile(filters.State{"scenario": 4}, defs)
	assert.Equal(t, 4, params["scenarioId"].Value)
}

func TestCompileIsPure(t *testing.T) {
	s1 := filters.State{"oppType": 1, "zones": []any{"E01"}, "year": 2019}
	s2 := filters.State{"year": 2019, "zones": []any{"E01"}, "oppType": 1}

	p1 := Compile(s1, defs)
	p2 := Compile(s2, defs)

	assert.Equal(t, p1, p2)
	assert.Equal(t, p1.Key(), p2.Key())
	assert.Equal(t, filters.State{"oppType": 1, "zones": []any{"E01"}, "year": 2019}, s1)
}

func TestKeyNormalizesNumbers(t *testing.T) {
	fromYAML := Compile(filters.State{"oppType": 1}, defs)
	fromJSON := Compile(filters.State{"oppType": 1.0}, defs)

	assert.True(t, fromYAML.Equal(fromJSON))
	assert.False(t, fromYAML.Equal(Compile(filters.State{"oppType": 2}, defs)))
}

func TestKeyDistinguishesScalarFromList(t *testing.T) {
	scalar := Params{"zoneCode": {Value: "E01"}}
	list := Params{"zoneCode": {Value: []any{"E01"}, Multi: true}}

	assert.NotEqual(t, scalar.Key(), list.Key())
}

func TestCompileDropsNilListElements(t *testing.T) {
	params := Compile(filters.State{"zones": []any{nil, "E01"}}, defs)
	assert.Equal(t, Param{Value: []any{"E01"}, Multi: true}, params["zoneCode"])

	params = Compile(filters.State{"zones": []any{nil}}, defs)
	assert.NotContains(t, params, "zoneCode")
}

func TestCompileRequiredListOfNilIsMissing(t *testing.T) {
	required := []filters.Filter{
		{ID: "zones", ParamName: "zoneCode", Target: filters.TargetAPI, Type: filters.TypeMultiSelect, Required: true},
	}

	params := Compile(filters.State{"zones": []any{nil, nil}}, required)

	assert.Equal(t, Param{Required: true}, params["zoneCode"])
	assert.False(t, params.Satisfied())
}
