package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/flovouin/dashviz/dashapi"
	"github.com/flovouin/dashviz/internal/filters"
)

// The default path of the endpoint serving metadata tables. `{table}` is replaced by the table name.
const DefaultPathTemplate = "/api/metadata/{table}"

// Sends GET requests to the dashboard API.
type Getter interface {
	Get(ctx context.Context, path string, opts dashapi.GetOptions) (*dashapi.Response, error)
}

// Loads metadata tables from the dashboard API.
type APILoader struct {
	Client       Getter // The API client.
	PathTemplate string // The endpoint path, containing `{table}`. Defaults to `DefaultPathTemplate`.
	RowsPath     string // A gjson path locating the rows within the payload. The whole payload is used if empty.
	SkipAuth     bool   // Whether tables are public.
}

func (l *APILoader) LoadTable(ctx context.Context, name string) (Table, error) {
	tpl := l.PathTemplate
	if len(tpl) == 0 {
		tpl = DefaultPathTemplate
	}
	path := strings.ReplaceAll(tpl, "{table}", url.PathEscape(name))

	resp, err := l.Client.Get(ctx, path, dashapi.GetOptions{SkipAuth: l.SkipAuth})
	if err != nil {
		var apiErr *dashapi.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return Table{}, fmt.Errorf("%w: %s", ErrTableNotFound, name)
		}
		return Table{}, err
	}

	data := []byte(resp.Data)
	if len(l.RowsPath) > 0 {
		res := gjson.GetBytes(data, l.RowsPath)
		if !res.Exists() {
			return Table{}, fmt.Errorf("%w: no rows at %q", dashapi.ErrUnexpectedResponse, l.RowsPath)
		}
		data = []byte(res.Raw)
	}

	var rows []filters.Record
	if err := json.Unmarshal(data, &rows); err != nil {
		return Table{}, fmt.Errorf("%w: decoding rows: %v", dashapi.ErrUnexpectedResponse, err)
	}

	return Table{Name: name, Rows: rows}, nil
}
