package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/vibeview/internal/models"
	"github.com/bnema/vibeview/internal/parser"
	"github.com/bnema/vibeview/internal/ruleset"
)

const maxParallelDownloads = 4

// Result describes one downloaded list
type Result struct {
	Name  string
	Path  string
	Bytes int
	Stats parser.Stats
	Err   error
}

// UpdateLists downloads every list into <rulesDir>/lists/<name>.txt. A
// failed list keeps its previous file; the others are still written.
func (f *Fetcher) UpdateLists(ctx context.Context, fs afero.Fs, rulesDir string, lists []models.FilterList) ([]Result, error) {
	dir := filepath.Join(rulesDir, ruleset.ListsDir)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	results := make([]Result, len(lists))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDownloads)

	for i, list := range lists {
		i, list := i, list
		g.Go(func() error {
			results[i] = f.updateList(ctx, fs, dir, list)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

func (f *Fetcher) updateList(ctx context.Context, fs afero.Fs, dir string, list models.FilterList) Result {
	res := Result{Name: list.Name}
	if list.Name == "" || filepath.Base(list.Name) != list.Name {
		res.Err = fmt.Errorf("invalid list name %q", list.Name)
		return res
	}
	res.Path = filepath.Join(dir, list.Name+".txt")

	log.Info().Str("list", list.Name).Str("url", list.URL).Msg("Fetching filter list")
	data, err := f.Fetch(ctx, list.URL)
	if err != nil {
		res.Err = err
		log.Error().Err(err).Str("list", list.Name).Msg("Failed to fetch filter list")
		return res
	}

	p := parser.New()
	if _, err := p.Parse(bytes.NewReader(data)); err != nil {
		res.Err = fmt.Errorf("parse: %w", err)
		return res
	}
	res.Stats = p.Stats()
	res.Bytes = len(data)

	if err := afero.WriteFile(fs, res.Path, data, 0644); err != nil {
		res.Err = fmt.Errorf("write %s: %w", res.Path, err)
		return res
	}

	log.Info().
		Str("list", list.Name).
		Int("bytes", res.Bytes).
		Int("block", res.Stats.Block).
		Int("allow", res.Stats.Allow).
		Msg("Filter list updated")
	return res
}
