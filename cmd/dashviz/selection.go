package main

import (
	"regexp"

	"github.com/flovouin/dashviz/internal/page"
)

// Restricts the page to the visualisations whose name matches the given regexp. All visualisations are kept if the
// regexp is empty.
func selectVisualisations(p *page.Page, pattern string) (*page.Page, error) {
	if len(pattern) == 0 {
		return p, nil
	}

	nameRegexp, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	return p.Select(nameRegexp.MatchString), nil
}
