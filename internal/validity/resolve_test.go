package validity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flovouin/dashviz/internal/filters"
	"github.com/flovouin/dashviz/internal/metadata"
)

type tableMap map[string]metadata.Table

func (m tableMap) Table(name string) (metadata.Table, bool) {
	t, ok := m[name]
	return t, ok
}

var zonesTable = metadata.Table{
	Name: "zones",
	Rows: []filters.Record{
		{"region": "North", "authority": "Leeds", "zone": "E01", "zone_name": "Leeds Central"},
		{"region": "North", "authority": "Leeds", "zone": "E02", "zone_name": "Headingley"},
		{"region": "North", "authority": "York", "zone": "E03", "zone_name": "York Central"},
		{"region": "South", "authority": "Bath", "zone": "E04", "zone_name": "Bath Spa"},
		{"region": "South", "authority": "Leeds", "zone": "E05", "zone_name": "Odd Leeds"},
	},
}

func tableFilter(id string, column string, display string) filters.Filter {
	return filters.Filter{
		ID:        id,
		ParamName: id,
		Target:    filters.TargetAPI,
		Type:      filters.TypeDropdown,
		Values:    filters.ValueSource{Table: "zones", ParamColumn: column, DisplayColumn: display},
	}
}

var (
	regionFilter    = tableFilter("region", "region", "")
	authorityFilter = tableFilter("authority", "authority", "")
	zoneFilter      = tableFilter("zone", "zone", "zone_name")
)

func validKeys(t *testing.T, r Result, id string) []string {
	t.Helper()

	var keys []string
	for _, o := range r[id].Options {
		assert.Equal(t, !o.IsValid, o.IsHidden)
		if o.IsValid {
			keys = append(keys, filters.ValueKey(o.Option.Value))
		}
	}
	return keys
}

func TestResolveWithoutSelections(t *testing.T) {
	r := Resolve([]filters.Filter{regionFilter, zoneFilter}, filters.State{}, tableMap{"zones": zonesTable})

	assert.Equal(t, []string{"North", "South"}, validKeys(t, r, "region"))
	assert.Equal(t, []string{"E01", "E02", "E03", "E04", "E05"}, validKeys(t, r, "zone"))
	assert.Equal(t, "Leeds Central", r["zone"].Options[0].Option.Display)
}

func TestResolveSingleConstraint(t *testing.T) {
	r := Resolve([]filters.Filter{regionFilter, zoneFilter}, filters.State{"region": "North"}, tableMap{"zones": zonesTable})

	assert.Equal(t, []string{"E01", "E02", "E03"}, validKeys(t, r, "zone"))
	assert.Len(t, r["zone"].Options, 5, "options are never removed")
	// A filter's own selection does not constrain its options.
	assert.Equal(t, []string{"North", "South"}, validKeys(t, r, "region"))
}

func TestResolveIntersectsConstraints(t *testing.T) {
	state := filters.State{"region": "North", "authority": []any{"Leeds"}}
	r := Resolve([]filters.Filter{regionFilter, authorityFilter, zoneFilter}, state, tableMap{"zones": zonesTable})

	assert.Equal(t, []string{"E01", "E02"}, validKeys(t, r, "zone"))
	assert.Equal(t, []string{"Leeds", "York"}, validKeys(t, r, "authority"))
	assert.Equal(t, []string{"North", "South"}, validKeys(t, r, "region"))
}

func TestResolveIsOrderIndependent(t *testing.T) {
	state := filters.State{"region": "South", "authority": "Leeds"}
	tables := tableMap{"zones": zonesTable}

	gh := Resolve([]filters.Filter{zoneFilter, regionFilter, authorityFilter}, state, tables)
	hg := Resolve([]filters.Filter{authorityFilter, zoneFilter, regionFilter}, state, tables)

	assert.Equal(t, []string{"E05"}, validKeys(t, gh, "zone"))
	assert.Equal(t, gh.ValidValues("zone"), hg.ValidValues("zone"))
	assert.Equal(t, gh.ValidValues("region"), hg.ValidValues("region"))
	assert.Equal(t, gh.ValidValues("authority"), hg.ValidValues("authority"))
}

func TestResolveFlagsInvalidSelections(t *testing.T) {
	state := filters.State{"region": "North", "zone": []any{"E01", "E04"}}
	r := Resolve([]filters.Filter{regionFilter, zoneFilter}, state, tableMap{"zones": zonesTable})

	assert.Equal(t, []any{"E04"}, r["zone"].InvalidSelections)
	assert.Empty(t, r["region"].InvalidSelections)
}

func TestResolveMissingTableFailsClosed(t *testing.T) {
	r := Resolve([]filters.Filter{zoneFilter}, filters.State{"zone": "E01"}, tableMap{})

	assert.Empty(t, r["zone"].Options)
	assert.Empty(t, r.ValidValues("zone"))
	assert.Equal(t, []any{"E01"}, r["zone"].InvalidSelections)
}

func TestResolveInlineOptions(t *testing.T) {
	modes := filters.Filter{
		ID:     "mode",
		Target: filters.TargetLocal,
		Values: filters.ValueSource{Options: []filters.Option{
			{Display: "Bus", Value: "bus"},
			{Display: "Rail", Value: "rail"},
		}},
	}
	year := filters.Filter{ID: "year", ParamName: "year", Target: filters.TargetAPI, Type: filters.TypeSlider}

	r := Resolve([]filters.Filter{modes, year, zoneFilter}, filters.State{"mode": "tram", "year": 2030, "zone": "E01"}, tableMap{"zones": zonesTable})

	require.Len(t, r["mode"].Options, 2)
	assert.True(t, r["mode"].Options[0].IsValid)
	assert.Equal(t, []any{"tram"}, r["mode"].InvalidSelections)
	assert.Empty(t, r["year"].InvalidSelections)
	assert.Empty(t, r["zone"].InvalidSelections)
}

func TestResolveOpportunityTypes(t *testing.T) {
	opportunityTypes := metadata.Table{
		Name: "opportunity_types",
		Rows: []filters.Record{{"id": 1, "name": "Jobs"}, {"id": 2, "name": "Health"}},
	}
	oppType := filters.Filter{
		ID:        "oppTypeId",
		ParamName: "oppTypeId",
		Target:    filters.TargetAPI,
		Type:      filters.TypeDropdown,
		Values:    filters.ValueSource{Table: "opportunity_types", ParamColumn: "id", DisplayColumn: "name"},
	}

	r := Resolve([]filters.Filter{oppType}, filters.State{"oppTypeId": 1.0}, tableMap{"opportunity_types": opportunityTypes})

	assert.Equal(t, []OptionState{
		{Option: filters.Option{Display: "Jobs", Value: 1}, IsValid: true},
		{Option: filters.Option{Display: "Health", Value: 2}, IsValid: true},
	}, r["oppTypeId"].Options)
	assert.Empty(t, r["oppTypeId"].InvalidSelections)
}
