package action

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/blang/semver/v4"
	"github.com/sirupsen/logrus"

	"github.com/portainer-templates/tplmerge/pkg/catalog"
	"github.com/portainer-templates/tplmerge/pkg/source"
)

// CatalogFetcher retrieves a batch of catalogs.
type CatalogFetcher interface {
	FetchAll(ctx context.Context, refs []source.Ref) (*source.Batch, error)
}

var _ CatalogFetcher = &source.Fetcher{}

// Merge fetches catalogs from Refs, merges them and writes the result to
// Output. Nothing is written unless the merge succeeds.
type Merge struct {
	Refs    []source.Ref
	Fetcher CatalogFetcher
	// Merger combines the fetched catalogs. It defaults to a
	// catalog.DedupeStrategy.
	Merger catalog.Merger

	// Output is a file path or catalog.StdoutDestination.
	Output string
	// Unclean, when set, receives the undeduplicated concatenation of all
	// fetched templates.
	Unclean string
	Format  catalog.Format

	Stdout io.Writer
	Log    *logrus.Entry
}

// MergeResult summarizes a merge run.
type MergeResult struct {
	Sources  []source.Ref
	Failures []*source.FetchError
	Stats    catalog.MergeStats
	Catalog  *catalog.Catalog
	// OutputPath is the absolute output path, or catalog.StdoutDestination.
	OutputPath string
}

func nullLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// Run executes the merge. When writing fails after a successful merge, the
// result is returned along with the error so callers can still report it.
func (m Merge) Run(ctx context.Context) (*MergeResult, error) {
	log := m.Log
	if log == nil {
		log = nullLogger()
	}
	fetcher := m.Fetcher
	if fetcher == nil {
		fetcher = source.NewFetcher(source.WithLog(log))
	}
	stdout := m.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	format := m.Format
	if format == "" {
		format = catalog.FormatJSON
	}

	batch, err := fetcher.FetchAll(ctx, m.Refs)
	if err != nil {
		return nil, err
	}
	log.Infof("Successfully downloaded %d files.", len(batch.Results))

	res := &MergeResult{Failures: batch.Failures}
	for _, r := range batch.Results {
		res.Sources = append(res.Sources, r.Source)
		if _, err := semver.ParseTolerant(r.Catalog.Version); err != nil {
			log.WithField("source", r.Source.Location).Warnf("catalog version %q is not a semantic version", r.Catalog.Version)
		}
	}

	cfgs := batch.Catalogs()
	merger := m.Merger
	if merger == nil {
		merger = &catalog.DedupeStrategy{}
	}
	merged, err := merger.Merge(cfgs...)
	if err != nil {
		return nil, err
	}
	res.Catalog = merged
	stats := catalog.MergeStats{Output: len(merged.Templates)}
	for _, cfg := range cfgs {
		stats.Input += len(cfg.Templates)
	}
	if d, ok := merger.(*catalog.DedupeStrategy); ok {
		stats = d.Stats
	}
	res.Stats = stats
	log.WithFields(logrus.Fields{
		"input":           stats.Input,
		"exactDuplicates": stats.ExactDuplicates,
		"nearDuplicates":  stats.NearDuplicates,
		"uniqueTemplates": stats.Output,
	}).Debug("merged catalogs")

	// Everything is in memory from here on, so a cancellation seen now
	// still leaves existing output untouched.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.Unclean != "" {
		unclean, err := catalog.ConcatStrategy{}.Merge(cfgs...)
		if err != nil {
			return nil, err
		}
		if err := writeTo(*unclean, m.Unclean, format, stdout); err != nil {
			return res, err
		}
		log.WithField("path", m.Unclean).Infof("Wrote %d unmerged templates", len(unclean.Templates))
	}

	res.OutputPath = m.Output
	if m.Output != catalog.StdoutDestination {
		if abs, err := filepath.Abs(m.Output); err == nil {
			res.OutputPath = abs
		}
	}
	if err := writeTo(*merged, m.Output, format, stdout); err != nil {
		return res, err
	}
	return res, nil
}

func writeTo(cfg catalog.Catalog, dest string, format catalog.Format, stdout io.Writer) error {
	if dest != catalog.StdoutDestination {
		if dir := filepath.Dir(dest); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return &catalog.WriteError{Destination: dest, Err: fmt.Errorf("create parent directory: %v", err)}
			}
		}
	}
	return catalog.WriteFile(cfg, dest, format, stdout)
}
