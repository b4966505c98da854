package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flovouin/dashviz/internal/fetcher"
	"github.com/flovouin/dashviz/internal/query"
)

func TestMakeUniqueSlug(t *testing.T) {
	existing := make(map[string]bool)

	assert.Equal(t, "journey-times", makeUniqueSlug("Journey times", existing))
	assert.Equal(t, "journey-times-001", makeUniqueSlug("Journey Times", existing))
	assert.Equal(t, "journey-times-002", makeUniqueSlug("Journey  Times!", existing))
	assert.Equal(t, "visualisation", makeUniqueSlug("!!!", existing))
	assert.Len(t, makeUniqueSlug(strings.Repeat("a", 200), existing), maxSlugLength)
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	results := map[string]fetcher.Result{
		"Accessibility": {
			Status: fetcher.StatusSuccess,
			Data:   json.RawMessage(`[{"zone":"E01"}]`),
			Params: query.Params{"oppTypeId": {Value: 1, Required: true}},
			Seq:    3,
		},
		"Journey times": {
			Status: fetcher.StatusError,
			Err:    errors.New("boom"),
		},
	}

	paths, err := NewWriter(nil).Write(dir, results, WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "dv-accessibility.json"),
		filepath.Join(dir, "dv-journey-times.json"),
	}, paths)

	content, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"visualisation": "Accessibility",
		"status": "success",
		"params": {"oppTypeId": 1},
		"empty": false,
		"seq": 3,
		"data": [{"zone": "E01"}]
	}`, string(content))

	content, err = os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"visualisation": "Journey times",
		"status": "error",
		"empty": false,
		"error": "boom",
		"seq": 0,
		"data": null
	}`, string(content))
}

func TestWriteClearsOutput(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "out-stale.json")
	kept := filepath.Join(dir, "other.json")
	require.NoError(t, os.WriteFile(stale, []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(kept, []byte("{}"), 0644))

	results := map[string]fetcher.Result{"Flows": {Status: fetcher.StatusIdle}}

	paths, err := NewWriter(nil).Write(dir, results, WriteOptions{FileNamePrefix: "out-", ClearOutput: true})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "out-flows.json")}, paths)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, kept)
}
