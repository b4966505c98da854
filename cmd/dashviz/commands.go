package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flovouin/dashviz/dashapi"
	"github.com/flovouin/dashviz/internal/export"
	"github.com/flovouin/dashviz/internal/fetcher"
	"github.com/flovouin/dashviz/internal/filters"
	"github.com/flovouin/dashviz/internal/page"
	"github.com/flovouin/dashviz/internal/validity"
)

// Registers the flags selecting the page and its filter state.
func addPageFlags(cmd *cobra.Command) {
	cmd.Flags().String("page", "", "The page configuration file (YAML or JSON).")
	cmd.Flags().String("state", "", "The filter state file (YAML or JSON). The filters' defaults are used if not set.")
	_ = cmd.MarkFlagRequired("page")
}

// Loads the page and the filter state referenced by the command flags.
func loadPageAndState(cmd *cobra.Command) (*page.Page, filters.State, error) {
	pagePath, _ := cmd.Flags().GetString("page")
	statePath, _ := cmd.Flags().GetString("state")

	p, err := page.LoadPage(pagePath)
	if err != nil {
		return nil, nil, err
	}

	if cmd.Flags().Lookup("only") != nil {
		only, _ := cmd.Flags().GetString("only")
		p, err = selectVisualisations(p, only)
		if err != nil {
			return nil, nil, err
		}
	}

	state := page.InitialState(p.Filters)
	if len(statePath) > 0 {
		loaded, err := page.LoadState(statePath)
		if err != nil {
			return nil, nil, err
		}
		state = page.Reduce(state, page.Merge(loaded))
	}

	return p, state, nil
}

// Writes a value as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// The compiled query of a visualisation.
type compiledVisualisation struct {
	Name      string         `json:"name"`
	Path      string         `json:"path"`
	Satisfied bool           `json:"satisfied"` // Whether all required parameters have a value.
	Params    map[string]any `json:"params"`
	Query     string         `json:"query"` // The encoded query string.
}

func newCompileCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Prints the query parameters compiled for each visualisation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, state, err := loadPageAndState(cmd)
			if err != nil {
				return err
			}

			compiled := make([]compiledVisualisation, 0, len(p.Visualisations))
			for _, vis := range p.CompileVisualisations(state) {
				values := vis.QueryParams.Values()
				query, err := dashapi.EncodeQuery(values)
				if err != nil {
					return fmt.Errorf("encoding query of %q: %w", vis.Name, err)
				}

				compiled = append(compiled, compiledVisualisation{
					Name:      vis.Name,
					Path:      vis.DataPath,
					Satisfied: vis.QueryParams.Satisfied(),
					Params:    values,
					Query:     query.Encode(),
				})
			}

			return printJSON(cmd.OutOrStdout(), compiled)
		},
	}
	addPageFlags(cmd)

	return cmd
}

func newValidityCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validity",
		Short: "Prints which filter options are valid given the current selections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, state, err := loadPageAndState(cmd)
			if err != nil {
				return err
			}

			client, err := makeClient(ctx, a.config.API)
			if err != nil {
				return err
			}

			c, closeCache, err := makeCache(a.config.Cache)
			if err != nil {
				return err
			}
			defer closeCache()

			store := makeStore(a, client, c)
			// Missing tables leave their filters without valid options.
			if err := store.Load(ctx, p.Tables()...); err != nil {
				a.logger.Warn("loading metadata tables", zap.Error(err))
			}

			result := validity.Resolve(p.Filters, state, store)
			for _, f := range p.Filters {
				if invalid := result[f.ID].InvalidSelections; len(invalid) > 0 {
					a.logger.Warn("invalid selection", zap.String("filter", f.ID), zap.Any("values", invalid))
				}
			}

			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	addPageFlags(cmd)

	return cmd
}

// Creates a fetcher and a session for the page, using the configuration.
func makeSession(ctx context.Context, a *app, p *page.Page, state filters.State) (*page.Session, func(), error) {
	client, err := makeClient(ctx, a.config.API)
	if err != nil {
		return nil, nil, err
	}

	f := fetcher.New(client, fetcher.Options{
		Debounce: a.config.Fetch.Debounce,
		Timeout:  a.config.Fetch.Timeout,
		Logger:   a.logger,
	})

	s := page.NewSession(p, f, page.WithInitialState(state), page.WithSessionLogger(a.logger))

	return s, func() {
		s.Close()
		f.Close()
	}, nil
}

// Writes the current results of the session to the output directory.
func writeResults(a *app, results map[string]fetcher.Result) error {
	paths, err := export.NewWriter(a.logger).Write(a.config.Output.Path, results, export.WriteOptions{
		FileNamePrefix: a.config.Output.Prefix,
		ClearOutput:    a.config.Output.Clear,
	})
	if err != nil {
		return err
	}

	a.logger.Info("wrote results", zap.Strings("paths", paths))
	return nil
}

func newFetchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetches the data of each visualisation once and writes it to files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, state, err := loadPageAndState(cmd)
			if err != nil {
				return err
			}

			s, closeSession, err := makeSession(ctx, a, p, state)
			if err != nil {
				return err
			}
			defer closeSession()

			results, err := s.Settle(ctx)
			if err != nil {
				return err
			}

			var failed []string
			for name, res := range results {
				switch res.Status {
				case fetcher.StatusIdle:
					a.logger.Warn("visualisation not fetched, required filters are missing", zap.String("visualisation", name))
				case fetcher.StatusError:
					failed = append(failed, name)
				}
			}

			if err := writeResults(a, results); err != nil {
				return err
			}

			if len(failed) > 0 {
				sort.Strings(failed)
				return fmt.Errorf("fetching %d visualisations failed: %v", len(failed), failed)
			}
			return nil
		},
	}
	addPageFlags(cmd)
	cmd.Flags().String("only", "", "A regexp that visualisation names should match in order to be fetched.")

	return cmd
}

// Logs the state transitions of a watcher until it is closed or the context is done. `onSettled` is called whenever
// a request settles.
func followWatcher(ctx context.Context, logger *zap.Logger, name string, w *fetcher.Watcher, onSettled func()) {
	var last fetcher.Result
	for {
		changed := w.Changed()
		res := w.State()

		if res.Status != last.Status || res.Seq != last.Seq {
			logger.Info("visualisation state changed",
				zap.String("visualisation", name),
				zap.Stringer("status", res.Status),
				zap.Uint64("seq", res.Seq),
				zap.Bool("empty", res.Empty))
			if res.Settled() {
				onSettled()
			}
		}
		last = res

		select {
		case <-ctx.Done():
			return
		case <-w.Done():
			return
		case <-changed:
		}
	}
}

func newWatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Fetches visualisation data again whenever the state file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statePath, _ := cmd.Flags().GetString("state")
			if len(statePath) == 0 {
				return fmt.Errorf("the state file should be set when watching")
			}

			p, state, err := loadPageAndState(cmd)
			if err != nil {
				return err
			}

			s, closeSession, err := makeSession(cmd.Context(), a, p, state)
			if err != nil {
				return err
			}
			defer closeSession()

			var writeMu sync.Mutex
			onSettled := func() {
				writeMu.Lock()
				defer writeMu.Unlock()
				if err := writeResults(a, s.Results()); err != nil {
					a.logger.Error("writing results", zap.Error(err))
				}
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return page.WatchState(ctx, statePath, a.logger, func(loaded filters.State) {
					s.Dispatch(page.Replace(page.Reduce(page.InitialState(p.Filters), page.Merge(loaded))))
				})
			})
			for _, def := range p.Visualisations {
				w, ok := s.Watcher(def.Name)
				if !ok {
					continue
				}
				name := def.Name
				g.Go(func() error {
					followWatcher(ctx, a.logger, name, w, onSettled)
					return nil
				})
			}

			a.logger.Info("watching state file", zap.String("path", statePath))
			return g.Wait()
		},
	}
	addPageFlags(cmd)

	return cmd
}
