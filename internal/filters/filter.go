// Package filters defines page filters, the state of their selections, and the client-side scoping of fetched records.
package filters

// Where a filter is applied.
type Target string

const (
	TargetAPI   Target = "api"   // The filter is compiled into query parameters.
	TargetLocal Target = "local" // The filter only scopes records that have already been fetched.
)

// The kind of input control backing a filter.
type Type string

const (
	TypeFixed       Type = "fixed"
	TypeDropdown    Type = "dropdown"
	TypeSlider      Type = "slider"
	TypeMap         Type = "map"
	TypeMultiSelect Type = "multiSelect"
)

// A single selectable value of a filter.
type Option struct {
	Display string `yaml:"display" json:"display"` // The label shown to the user.
	Value   any    `yaml:"value" json:"value"`     // The value sent as a parameter.
}

// Describes where the options of a filter come from: either an inline list, or a metadata table.
type ValueSource struct {
	Options       []Option `yaml:"options,omitempty" json:"options,omitempty"`               // Inline options. Ignored if `Table` is set.
	Table         string   `yaml:"table,omitempty" json:"table,omitempty"`                   // The name of the metadata table.
	ParamColumn   string   `yaml:"param_column,omitempty" json:"param_column,omitempty"`     // The column of the table holding option values.
	DisplayColumn string   `yaml:"display_column,omitempty" json:"display_column,omitempty"` // The column of the table holding option labels.
}

// Returns whether the options come from a metadata table.
func (vs ValueSource) IsTable() bool {
	return len(vs.Table) > 0
}

// A filter declared by a page. Its definition is immutable for the lifetime of the page.
type Filter struct {
	ID        string      `yaml:"id" json:"id"`                               // Unique within a page.
	ParamName string      `yaml:"param_name" json:"param_name"`               // The query parameter name, for API filters.
	Target    Target      `yaml:"target" json:"target"`                       // Where the filter applies.
	Type      Type        `yaml:"type" json:"type"`                           // The input control.
	Values    ValueSource `yaml:"values" json:"values"`                       // The selectable values.
	Required  bool        `yaml:"required" json:"required"`                   // Whether fetches must wait for a value.
	Column    string      `yaml:"column,omitempty" json:"column,omitempty"`   // The record column used when scoping fetched records.
	Default   any         `yaml:"default,omitempty" json:"default,omitempty"` // The initial value.
}

// A row of a metadata table or of a fetched record set.
type Record map[string]any

// The current selections, keyed by filter ID.
type State map[string]any

// Returns the value selected for a filter, and whether it is set.
// Nil values, empty strings and empty lists are reported as unset.
func (s State) Value(id string) (any, bool) {
	v, ok := s[id]
	if !ok || IsEmpty(v) {
		return nil, false
	}
	return v, true
}

// Returns a shallow copy of the state.
func (s State) Clone() State {
	clone := make(State, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}
