package filters

// Keeps the records matching the current selections of the filters that declare a record column.
//
// A list selection keeps records whose column value is one of the selected values; an empty list imposes no
// constraint. A scalar selection keeps records whose column value is equal to it; an empty string imposes no
// constraint. If `isReady` is false, the records are returned unchanged, as the data the filters depend on has not
// been loaded yet.
//
// The input slice is never modified.
func Scope(records []Record, defs []Filter, state State, isReady bool) []Record {
	if !isReady {
		return records
	}

	type constraint struct {
		column  string
		allowed map[string]bool
	}

	var constraints []constraint
	for _, f := range defs {
		if len(f.Column) == 0 {
			continue
		}

		v, ok := state.Value(f.ID)
		if !ok {
			continue
		}

		allowed := make(map[string]bool)
		for _, k := range SelectionKeys(v) {
			allowed[k] = true
		}
		constraints = append(constraints, constraint{column: f.Column, allowed: allowed})
	}

	scoped := make([]Record, 0, len(records))
	for _, r := range records {
		keep := true
		for _, c := range constraints {
			if !c.allowed[ValueKey(r[c.column])] {
				keep = false
				break
			}
		}

		if keep {
			scoped = append(scoped, r)
		}
	}

	return scoped
}
