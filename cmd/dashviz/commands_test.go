package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `
name: Bus accessibility
filters:
  - id: oppTypeId
    required: true
    values:
      table: opportunity_types
      param_column: id
      display_column: name
  - id: zone
    param_name: zones
    type: multiSelect
visualisations:
  - name: Accessibility
    data_path: /api/bsip/accessibility/prod
`

func writeTestFiles(t *testing.T, state string) (string, string) {
	t.Helper()

	dir := t.TempDir()
	pagePath := filepath.Join(dir, "page.yml")
	statePath := filepath.Join(dir, "state.yml")
	require.NoError(t, os.WriteFile(pagePath, []byte(testPage), 0o644))
	require.NoError(t, os.WriteFile(statePath, []byte(state), 0o644))
	return pagePath, statePath
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "missing.yml")))

	err := root.Execute()
	return out.String(), err
}

func TestCompileCommand(t *testing.T) {
	pagePath, statePath := writeTestFiles(t, "oppTypeId: 1\nzone: [E01, E02]\n")

	out, err := runCommand(t, "compile", "--page", pagePath, "--state", statePath)
	require.NoError(t, err)

	var compiled []compiledVisualisation
	require.NoError(t, json.Unmarshal([]byte(out), &compiled))
	require.Len(t, compiled, 1)
	assert.Equal(t, "/api/bsip/accessibility/prod", compiled[0].Path)
	assert.True(t, compiled[0].Satisfied)
	assert.Equal(t, "oppTypeId=1&zones=E01&zones=E02", compiled[0].Query)
}

func TestValidityCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/metadata/opportunity_types" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":1,"name":"Jobs"},{"id":2,"name":"Health"}]}`))
	}))
	defer server.Close()

	pagePath, statePath := writeTestFiles(t, "oppTypeId: 7\n")

	out, err := runCommand(t, "validity", "--page", pagePath, "--state", statePath, "--api.endpoint", server.URL)
	require.NoError(t, err)

	var result map[string]struct {
		Options []struct {
			Option struct {
				Display string `json:"display"`
			} `json:"option"`
			IsValid bool `json:"is_valid"`
		} `json:"options"`
		InvalidSelections []any `json:"invalid_selections"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result["oppTypeId"].Options, 2)
	assert.Equal(t, "Jobs", result["oppTypeId"].Options[0].Option.Display)
	assert.Equal(t, []any{float64(7)}, result["oppTypeId"].InvalidSelections)
}

func TestFetchCommand(t *testing.T) {
	var mu sync.Mutex
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.RawQuery)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"data":[{"zone":"E01","value":0.5}]}`))
	}))
	defer server.Close()

	pagePath, statePath := writeTestFiles(t, "oppTypeId: 1\n")
	outputPath := t.TempDir()

	_, err := runCommand(t, "fetch",
		"--page", pagePath,
		"--state", statePath,
		"--api.endpoint", server.URL,
		"--fetch.debounce", "1ms",
		"--output.path", outputPath,
	)
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, []string{"oppTypeId=1"}, queries)
	mu.Unlock()

	content, err := os.ReadFile(filepath.Join(outputPath, "dv-accessibility.json"))
	require.NoError(t, err)

	var doc struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(content, &doc))
	assert.Equal(t, "success", doc.Status)
	assert.JSONEq(t, `[{"zone":"E01","value":0.5}]`, string(doc.Data))
}

func TestFetchCommandRequiresEndpoint(t *testing.T) {
	pagePath, statePath := writeTestFiles(t, "oppTypeId: 1\n")

	_, err := runCommand(t, "fetch", "--page", pagePath, "--state", statePath)
	assert.ErrorContains(t, err, "endpoint")
}
