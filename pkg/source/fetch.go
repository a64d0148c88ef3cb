package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/portainer-templates/tplmerge/pkg/catalog"
	"github.com/portainer-templates/tplmerge/pkg/version"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultWorkers = 8

	// maxCatalogSize bounds how much of a response body is read.
	maxCatalogSize = 64 << 20
)

// Fetcher retrieves and parses catalogs from URLs and local files.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
	workers int
	log     *logrus.Entry
}

type FetcherOption func(*Fetcher)

// WithHTTPClient sets the client used for URL sources.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithTimeout bounds each individual fetch. A timed out source fails with a
// *FetchError like any other unreachable source.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithWorkers caps the number of concurrent fetches.
func WithWorkers(n int) FetcherOption {
	return func(f *Fetcher) {
		f.workers = n
	}
}

func WithLog(log *logrus.Entry) FetcherOption {
	return func(f *Fetcher) {
		f.log = log
	}
}

func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		timeout: DefaultTimeout,
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	if f.workers < 1 {
		f.workers = 1
	}
	if f.log == nil {
		f.log = nullLogger()
	}
	return f
}

func nullLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// Fetch retrieves and parses a single catalog. All failures are returned as
// a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, ref Ref) (*catalog.Catalog, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	data, err := f.read(ctx, ref)
	if err != nil {
		return nil, &FetchError{Source: ref, Err: err}
	}
	cfg, err := catalog.LoadBytes(data)
	if err != nil {
		return nil, &FetchError{Source: ref, Err: err}
	}
	return cfg, nil
}

func (f *Fetcher) read(ctx context.Context, ref Ref) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ref.Kind == KindFile {
		return os.ReadFile(ref.Location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.Location, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %q", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxCatalogSize {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxCatalogSize)
	}
	return data, nil
}

// Result is one successfully fetched source.
type Result struct {
	Source  Ref
	Catalog *catalog.Catalog
}

// Batch is the outcome of fetching a set of sources. Results and Failures
// follow the order of the requested refs.
type Batch struct {
	Results  []Result
	Failures []*FetchError
}

// Catalogs returns the fetched catalogs in source order.
func (b *Batch) Catalogs() []catalog.Catalog {
	out := make([]catalog.Catalog, 0, len(b.Results))
	for _, r := range b.Results {
		out = append(out, *r.Catalog)
	}
	return out
}

// FetchAll fetches refs concurrently. A source that fails is logged and
// recorded in Batch.Failures; the batch only fails as a whole when the
// context is cancelled or when no source succeeds (*EmptyBatchError).
func (f *Fetcher) FetchAll(ctx context.Context, refs []Ref) (*Batch, error) {
	if len(refs) == 0 {
		return nil, &EmptyBatchError{}
	}

	cfgs := make([]*catalog.Catalog, len(refs))
	errs := make([]error, len(refs))
	refChan := make(chan int)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer close(refChan)
		for i := range refs {
			select {
			case <-egCtx.Done():
				return egCtx.Err()
			case refChan <- i:
			}
		}
		return nil
	})

	workers := f.workers
	if len(refs) < workers {
		workers = len(refs)
	}
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			for {
				select {
				case <-egCtx.Done():
					return egCtx.Err()
				case i, ok := <-refChan:
					if !ok {
						return nil
					}
					f.log.WithField("source", refs[i].Location).Infof("Downloading from %s...", refs[i])
					// Each index is owned by exactly one worker.
					cfgs[i], errs[i] = f.Fetch(egCtx, refs[i])
				}
			}
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := &Batch{}
	for i, ref := range refs {
		if errs[i] != nil {
			fe, ok := errs[i].(*FetchError)
			if !ok {
				fe = &FetchError{Source: ref, Err: errs[i]}
			}
			f.log.WithError(fe.Err).WithField("source", ref.Location).Errorf("Error downloading %s", ref)
			batch.Failures = append(batch.Failures, fe)
			continue
		}
		batch.Results = append(batch.Results, Result{Source: ref, Catalog: cfgs[i]})
	}
	if len(batch.Results) == 0 {
		return nil, &EmptyBatchError{Failures: batch.Failures}
	}
	return batch, nil
}
