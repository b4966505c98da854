// Package export writes the data fetched for visualisations to JSON files.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/flovouin/dashviz/internal/fetcher"
)

// The default prefix for generated files, if none is specified.
const defaultFileNamePrefix = "dv-"

// Options for the `Writer.Write` method.
type WriteOptions struct {
	FileNamePrefix string // The prefix for generated files.
	ClearOutput    bool   // If `true`, all files at the output path with the right prefix will be removed before writing.
}

// Returns either the prefix set in the options, or the default one.
func (wo *WriteOptions) getFileNamePrefix() string {
	if len(wo.FileNamePrefix) > 0 {
		return wo.FileNamePrefix
	}
	return defaultFileNamePrefix
}

// The content of a generated file.
type document struct {
	Visualisation string          `json:"visualisation"`
	Status        string          `json:"status"`
	Params        map[string]any  `json:"params,omitempty"`
	Empty         bool            `json:"empty"`
	Error         string          `json:"error,omitempty"`
	Seq           uint64          `json:"seq"`
	Data          json.RawMessage `json:"data"`
}

// Writes visualisation results to files.
type Writer struct {
	logger *zap.Logger
}

// Creates a writer. The logger can be `nil`.
func NewWriter(logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{logger: logger}
}

// Removes all files in `path` with the prefix specified in the options (or the default one).
func clearOutput(path string, opts WriteOptions) error {
	glob := fmt.Sprintf("%s*.json", filepath.Join(path, opts.getFileNamePrefix()))
	files, err := filepath.Glob(glob)
	if err != nil {
		return err
	}

	for _, f := range files {
		err := os.Remove(f)
		if err != nil {
			return err
		}
	}

	return nil
}

// Returns a file path for a given visualisation slug.
func makeFilePath(path string, slug string, opts WriteOptions) string {
	return filepath.Join(path, fmt.Sprintf("%s%s.json", opts.getFileNamePrefix(), slug))
}

// Writes one file per visualisation, named after the visualisation, and returns the paths of the written files.
// Visualisations are processed in name order, such that names colliding once slugified are suffixed deterministically.
func (w *Writer) Write(path string, results map[string]fetcher.Result, opts WriteOptions) ([]string, error) {
	if opts.ClearOutput {
		err := clearOutput(path, opts)
		if err != nil {
			return nil, err
		}
	}

	err := os.MkdirAll(path, 0755)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	slugs := make(map[string]bool, len(names))
	paths := make([]string, 0, len(names))
	for _, name := range names {
		res := results[name]

		doc := document{
			Visualisation: name,
			Status:        res.Status.String(),
			Empty:         res.Empty,
			Seq:           res.Seq,
			Data:          res.Data,
		}
		if res.Params != nil {
			doc.Params = res.Params.Values()
		}
		if res.Err != nil {
			doc.Error = res.Err.Error()
		}

		content, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshalling result of %q: %w", name, err)
		}

		filePath := makeFilePath(path, makeUniqueSlug(name, slugs), opts)
		err = os.WriteFile(filePath, append(content, '\n'), 0644)
		if err != nil {
			return nil, err
		}

		w.logger.Debug("wrote visualisation result", zap.String("visualisation", name), zap.String("path", filePath))
		paths = append(paths, filePath)
	}

	return paths, nil
}
