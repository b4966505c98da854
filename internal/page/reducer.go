package page

import (
	"github.com/flovouin/dashviz/internal/filters"
)

// The kind of change applied to a filter state.
type ActionKind int

const (
	ActionSetValue   ActionKind = iota // Sets the value of a filter.
	ActionClearValue                   // Removes the value of a filter.
	ActionReset                        // Restores the initial state.
	ActionReplace                      // Replaces the whole state.
	ActionMerge                        // Sets the values of several filters at once.
)

// A change applied to a filter state.
type Action struct {
	Kind     ActionKind
	FilterID string        // The filter to set or clear.
	Value    any           // The value to set.
	State    filters.State // The state to restore or replace with.
}

// Returns an action setting the value of a filter.
func SetValue(filterID string, value any) Action {
	return Action{Kind: ActionSetValue, FilterID: filterID, Value: value}
}

// Returns an action removing the value of a filter.
func ClearValue(filterID string) Action {
	return Action{Kind: ActionClearValue, FilterID: filterID}
}

// Returns an action restoring the given initial state.
func Reset(initial filters.State) Action {
	return Action{Kind: ActionReset, State: initial}
}

// Returns an action replacing the whole state, for instance after reloading a state file.
func Replace(state filters.State) Action {
	return Action{Kind: ActionReplace, State: state}
}

// Returns an action setting the values of all the filters in the given state, leaving the others untouched.
func Merge(values filters.State) Action {
	return Action{Kind: ActionMerge, State: values}
}

// Returns the state resulting from applying the action. The given state is never modified.
func Reduce(state filters.State, action Action) filters.State {
	switch action.Kind {
	case ActionSetValue:
		next := state.Clone()
		next[action.FilterID] = action.Value
		return next
	case ActionClearValue:
		next := state.Clone()
		delete(next, action.FilterID)
		return next
	case ActionReset, ActionReplace:
		return action.State.Clone()
	case ActionMerge:
		next := state.Clone()
		for id, v := range action.State {
			next[id] = v
		}
		return next
	default:
		return state
	}
}

// Returns the state holding the default value of every filter that has one.
func InitialState(defs []filters.Filter) filters.State {
	state := make(filters.State)
	for _, f := range defs {
		if !filters.IsEmpty(f.Default) {
			state[f.ID] = f.Default
		}
	}
	return state
}
