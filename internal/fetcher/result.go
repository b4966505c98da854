package fetcher

import (
	"encoding/json"

	"github.com/flovouin/dashviz/internal/query"
)

// The state of the data of a visualisation.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// The current data of a visualisation.
// While loading, and after an error, `Data` and `Params` still describe the last successful response.
type Result struct {
	Status Status          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Err    error           `json:"-"`
	Empty  bool            `json:"empty"`  // Whether the last successful response was an empty collection.
	Params query.Params    `json:"params"` // The parameters of the request that produced `Data`.
	Seq    uint64          `json:"seq"`    // The sequence number of the last dispatched request.
}

// Returns whether a request is in flight.
func (r Result) IsLoading() bool {
	return r.Status == StatusLoading
}

// Returns whether the result has settled after at least one request.
func (r Result) Settled() bool {
	return r.Status == StatusSuccess || r.Status == StatusError
}
