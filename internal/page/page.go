// Package page loads page configurations and binds their filter state to the fetching of visualisation data.
package page

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/flovouin/dashviz/internal/fetcher"
	"github.com/flovouin/dashviz/internal/filters"
	"github.com/flovouin/dashviz/internal/query"
)

// Returned when a page configuration is inconsistent.
var ErrInvalidPage = errors.New("invalid page configuration")

// A visualisation declared by a page.
type VisualisationDef struct {
	Name         string   `yaml:"name" json:"name"`                           // Unique within a page.
	DataPath     string   `yaml:"data_path" json:"data_path"`                 // The API path serving the data.
	RequiresAuth bool     `yaml:"requires_auth" json:"requires_auth"`         // Whether requests must carry credentials.
	Filters      []string `yaml:"filters,omitempty" json:"filters,omitempty"` // The IDs of the filters applying to the visualisation. All filters if empty.
}

// A page of the dashboard: its filters and the visualisations they drive.
type Page struct {
	Name           string             `yaml:"name" json:"name"`
	Filters        []filters.Filter   `yaml:"filters" json:"filters"`
	Visualisations []VisualisationDef `yaml:"visualisations" json:"visualisations"`
}

// Reads a page configuration from a YAML or JSON file, and validates it.
func LoadPage(path string) (*Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Page
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &p)
	default:
		err = yaml.Unmarshal(data, &p)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing page %s: %w", path, err)
	}

	p.normalize()

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Fills in the values that can be omitted from configurations.
func (p *Page) normalize() {
	for i := range p.Filters {
		f := &p.Filters[i]
		if len(f.Target) == 0 {
			f.Target = filters.TargetAPI
		}
		if len(f.Type) == 0 {
			f.Type = filters.TypeDropdown
		}
		if f.Target == filters.TargetAPI && len(f.ParamName) == 0 {
			f.ParamName = f.ID
		}
	}
}

// Checks that filters and visualisations are consistent with each other.
func (p *Page) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidPage, fmt.Sprintf(format, args...)))
	}

	ids := make(map[string]bool, len(p.Filters))
	for _, f := range p.Filters {
		if len(f.ID) == 0 {
			invalid("filter without ID")
			continue
		}
		if ids[f.ID] {
			invalid("duplicate filter %q", f.ID)
		}
		ids[f.ID] = true

		switch f.Target {
		case filters.TargetAPI:
			if len(f.ParamName) == 0 {
				invalid("filter %q targets the API without a parameter name", f.ID)
			}
		case filters.TargetLocal:
		default:
			invalid("filter %q has unknown target %q", f.ID, f.Target)
		}

		switch f.Type {
		case filters.TypeFixed, filters.TypeDropdown, filters.TypeSlider, filters.TypeMap, filters.TypeMultiSelect:
		default:
			invalid("filter %q has unknown type %q", f.ID, f.Type)
		}

		if f.Values.IsTable() && len(f.Values.ParamColumn) == 0 {
			invalid("filter %q references table %q without a parameter column", f.ID, f.Values.Table)
		}
	}

	keys := make(map[string]string, len(p.Visualisations))
	for _, v := range p.Visualisations {
		if len(v.Name) == 0 {
			invalid("visualisation without name")
			continue
		}
		key := fetcher.WatcherKey(v.Name)
		if other, ok := keys[key]; ok {
			invalid("visualisations %q and %q have the same key %q", other, v.Name, key)
		}
		keys[key] = v.Name

		if len(v.DataPath) == 0 {
			invalid("visualisation %q has no data path", v.Name)
		}
		for _, id := range v.Filters {
			if !ids[id] {
				invalid("visualisation %q references unknown filter %q", v.Name, id)
			}
		}
	}

	return errors.Join(errs...)
}

// Returns the filter with the given ID.
func (p *Page) Filter(id string) (filters.Filter, bool) {
	for _, f := range p.Filters {
		if f.ID == id {
			return f, true
		}
	}
	return filters.Filter{}, false
}

// Returns the definition of the visualisation with the given name.
func (p *Page) Visualisation(name string) (VisualisationDef, bool) {
	for _, v := range p.Visualisations {
		if v.Name == name {
			return v, true
		}
	}
	return VisualisationDef{}, false
}

// Returns the filters applying to a visualisation.
func (p *Page) FiltersFor(def VisualisationDef) []filters.Filter {
	if len(def.Filters) == 0 {
		return p.Filters
	}

	defs := make([]filters.Filter, 0, len(def.Filters))
	for _, id := range def.Filters {
		if f, ok := p.Filter(id); ok {
			defs = append(defs, f)
		}
	}
	return defs
}

// Returns the visualisations of the page, with query parameters compiled from the given state.
func (p *Page) CompileVisualisations(state filters.State) []fetcher.Visualisation {
	visualisations := make([]fetcher.Visualisation, 0, len(p.Visualisations))
	for _, def := range p.Visualisations {
		visualisations = append(visualisations, fetcher.Visualisation{
			Name:         def.Name,
			DataPath:     def.DataPath,
			QueryParams:  query.Compile(state, p.FiltersFor(def)),
			RequiresAuth: def.RequiresAuth,
		})
	}
	return visualisations
}

// Returns the names of the metadata tables referenced by the filters, in declaration order.
func (p *Page) Tables() []string {
	seen := make(map[string]bool)
	var tables []string
	for _, f := range p.Filters {
		if f.Values.IsTable() && !seen[f.Values.Table] {
			seen[f.Values.Table] = true
			tables = append(tables, f.Values.Table)
		}
	}
	return tables
}

// Returns a copy of the page restricted to the visualisations for which `match` returns true.
func (p *Page) Select(match func(name string) bool) *Page {
	selected := &Page{
		Name:    p.Name,
		Filters: p.Filters,
	}
	for _, v := range p.Visualisations {
		if match(v.Name) {
			selected.Visualisations = append(selected.Visualisations, v)
		}
	}
	return selected
}

// Returns a file-system friendly identifier for the page.
func (p *Page) Slug() string {
	return slug.Make(p.Name)
}
