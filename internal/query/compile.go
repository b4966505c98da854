// Package query compiles filter selections into the query parameters sent with visualisation requests.
package query

import (
	"encoding/json"
	"sort"

	"github.com/flovouin/dashviz/internal/filters"
)

// A compiled query parameter.
type Param struct {
	Value    any  `json:"value"`    // The value to send. `nil` only for a required parameter that has no value yet.
	Required bool `json:"required"` // Whether requests must wait for this parameter to have a value.
	Multi    bool `json:"multi"`    // Whether the value is a list, to be matched with "IN" semantics.
}

// Compiled query parameters, keyed by parameter name.
type Params map[string]Param

// Compiles the current selections of the API filters into query parameters.
//
// Filters without a value are omitted, except required ones which are kept with a `nil` value so that the
// requirement can be checked. Fixed filters fall back to their default value. List values are marked as `Multi`, and
// their `nil` elements are dropped: a list holding only `nil` counts as no value.
func Compile(state filters.State, defs []filters.Filter) Params {
	params := make(Params)

	for _, f := range defs {
		if f.Target != filters.TargetAPI || len(f.ParamName) == 0 {
			continue
		}

		v, ok := state.Value(f.ID)
		if !ok && f.Type == filters.TypeFixed && !filters.IsEmpty(f.Default) {
			v, ok = f.Default, true
		}

		var list []any
		isList := false
		if ok {
			if list, isList = filters.AsList(v); isList {
				list = withoutNil(list)
				ok = len(list) > 0
			}
		}

		if !ok {
			if f.Required {
				params[f.ParamName] = Param{Required: true}
			}
			continue
		}

		p := Param{Value: v, Required: f.Required}
		if isList {
			p.Value = list
			p.Multi = true
		}
		params[f.ParamName] = p
	}

	return params
}

// Returns the non-nil elements of a list.
func withoutNil(list []any) []any {
	kept := make([]any, 0, len(list))
	for _, e := range list {
		if e != nil {
			kept = append(kept, e)
		}
	}
	return kept
}

// Returns whether every required parameter has a value.
func (p Params) Satisfied() bool {
	for _, param := range p {
		if param.Required && param.Value == nil {
			return false
		}
	}
	return true
}

// Returns the parameters to send to the API: only those with a value.
func (p Params) Values() map[string]any {
	values := make(map[string]any, len(p))
	for name, param := range p {
		if param.Value != nil {
			values[name] = param.Value
		}
	}
	return values
}

// Returns a canonical representation of the parameters, equal for structurally equal parameters regardless of map
// ordering or of the numeric types used for values.
func (p Params) Key() string {
	type entry struct {
		Name     string   `json:"n"`
		Values   []string `json:"v"`
		Required bool     `json:"r,omitempty"`
		Multi    bool     `json:"m,omitempty"`
	}

	entries := make([]entry, 0, len(p))
	for name, param := range p {
		e := entry{Name: name, Required: param.Required, Multi: param.Multi}
		if param.Value != nil {
			e.Values = filters.SelectionKeys(param.Value)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	b, _ := json.Marshal(entries)
	return string(b)
}

// Returns whether two sets of parameters are structurally identical.
func (p Params) Equal(other Params) bool {
	return p.Key() == other.Key()
}
