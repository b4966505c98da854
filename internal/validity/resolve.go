// Package validity computes which filter options remain selectable given the selections of other filters sharing the
// same metadata table.
package validity

import (
	"github.com/flovouin/dashviz/internal/filters"
	"github.com/flovouin/dashviz/internal/metadata"
)

// Provides loaded metadata tables. `*metadata.Store` implements this interface.
type TableSource interface {
	Table(name string) (metadata.Table, bool)
}

// The validity of a single option.
type OptionState struct {
	Option   filters.Option `json:"option"`
	IsValid  bool           `json:"is_valid"`  // Whether the option is compatible with the other selections.
	IsHidden bool           `json:"is_hidden"` // Always the negation of `IsValid`.
}

// The validity of the options of a filter.
type FilterValidity struct {
	Options           []OptionState `json:"options"`                      // All options, in declaration or table order. None is ever removed.
	InvalidSelections []any         `json:"invalid_selections,omitempty"` // Selected values that are not valid.
}

// The validity of each filter, keyed by filter ID.
type Result map[string]FilterValidity

// Returns the keys of the valid options of a filter.
func (r Result) ValidValues(filterID string) map[string]bool {
	valid := make(map[string]bool)
	for _, o := range r[filterID].Options {
		if o.IsValid {
			valid[filters.ValueKey(o.Option.Value)] = true
		}
	}
	return valid
}

// Computes the validity of the options of every filter.
//
// The options of a filter backed by a metadata table are only valid if they appear, in the filter's column, in rows
// matching the selections of all the other filters backed by the same table. Filters without a selection impose no
// constraint. A filter whose table has not been loaded has no valid option.
func Resolve(defs []filters.Filter, state filters.State, tables TableSource) Result {
	result := make(Result, len(defs))

	for _, f := range defs {
		var options []filters.Option
		var valid map[string]bool

		if f.Values.IsTable() {
			table, ok := tables.Table(f.Values.Table)
			if ok {
				options = tableOptions(table, f.Values)
				valid = optionKeys(options)
				for _, g := range defs {
					if g.ID == f.ID || g.Values.Table != f.Values.Table {
						continue
					}
					intersect(valid, compatibleValues(table, f, g, state))
				}
			} else {
				valid = map[string]bool{}
			}
		} else {
			options = f.Values.Options
			valid = optionKeys(options)
		}

		fv := FilterValidity{Options: make([]OptionState, 0, len(options))}
		for _, o := range options {
			isValid := valid[filters.ValueKey(o.Value)]
			fv.Options = append(fv.Options, OptionState{Option: o, IsValid: isValid, IsHidden: !isValid})
		}

		// Inline filters without options (e.g. free sliders) accept any value.
		if v, ok := state.Value(f.ID); ok && (f.Values.IsTable() || len(options) > 0) {
			fv.InvalidSelections = invalidSelections(v, valid)
		}

		result[f.ID] = fv
	}

	return result
}

// Returns the distinct values of the table's parameter column, in row order.
func tableOptions(table metadata.Table, vs filters.ValueSource) []filters.Option {
	seen := make(map[string]bool, len(table.Rows))
	options := make([]filters.Option, 0, len(table.Rows))

	for _, row := range table.Rows {
		v, ok := row[vs.ParamColumn]
		if !ok || v == nil {
			continue
		}

		key := filters.ValueKey(v)
		if seen[key] {
			continue
		}
		seen[key] = true

		display := key
		if len(vs.DisplayColumn) > 0 {
			display = filters.ValueKey(row[vs.DisplayColumn])
		}
		options = append(options, filters.Option{Display: display, Value: v})
	}

	return options
}

// Returns the values of `f`'s column in the rows matching `g`'s selection, or `nil` if `g` has no selection.
func compatibleValues(table metadata.Table, f filters.Filter, g filters.Filter, state filters.State) map[string]bool {
	selection, ok := state.Value(g.ID)
	if !ok {
		return nil
	}

	selected := make(map[string]bool)
	for _, k := range filters.SelectionKeys(selection) {
		selected[k] = true
	}

	compatible := make(map[string]bool)
	for _, row := range table.Rows {
		if selected[filters.ValueKey(row[g.Values.ParamColumn])] {
			compatible[filters.ValueKey(row[f.Values.ParamColumn])] = true
		}
	}

	return compatible
}

// Removes from `valid` the keys missing from `allowed`. A `nil` `allowed` set imposes no constraint.
func intersect(valid map[string]bool, allowed map[string]bool) {
	if allowed == nil {
		return
	}
	for k := range valid {
		if !allowed[k] {
			delete(valid, k)
		}
	}
}

func optionKeys(options []filters.Option) map[string]bool {
	keys := make(map[string]bool, len(options))
	for _, o := range options {
		keys[filters.ValueKey(o.Value)] = true
	}
	return keys
}

func invalidSelections(v any, valid map[string]bool) []any {
	values, ok := filters.AsList(v)
	if !ok {
		values = []any{v}
	}

	var invalid []any
	for _, e := range values {
		if !valid[filters.ValueKey(e)] {
			invalid = append(invalid, e)
		}
	}
	return invalid
}
