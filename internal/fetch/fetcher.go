// Package fetch resolves the configured data sources into local files under
// the cache directory. Sources may be HTTP(S) URLs or local paths; remote
// fetches run concurrently with a shared rate limit.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"firmpulse/internal/errors"
)

// Source names a dataset to resolve.
type Source struct {
	Name     string // cache file basename, e.g. "firm_financials.csv"
	Location string // URL or local path
}

// Fetcher downloads or copies sources into the cache directory.
type Fetcher struct {
	cacheDir    string
	client      *http.Client
	limiter     *rate.Limiter
	cacheMaxAge time.Duration
	logger      *slog.Logger
}

// NewFetcher creates a fetcher writing into cacheDir. A cached file younger
// than cacheMaxAge is reused without contacting the source; maxAge <= 0
// disables reuse.
func NewFetcher(cacheDir string, timeout time.Duration, maxRPS float64, cacheMaxAge time.Duration, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRPS <= 0 {
		maxRPS = 1
	}
	return &Fetcher{
		cacheDir:    cacheDir,
		client:      &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(maxRPS), 1),
		cacheMaxAge: cacheMaxAge,
		logger:      logger,
	}
}

// FetchAll resolves every source concurrently and returns the local path for
// each source name. Any failure aborts the whole batch.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) (map[string]string, error) {
	if err := os.MkdirAll(f.cacheDir, 0755); err != nil {
		return nil, errors.NewStorageError("create cache directory", err)
	}

	paths := make([]string, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			path, err := f.Fetch(gctx, src)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", src.Name, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(sources))
	for i, src := range sources {
		out[src.Name] = paths[i]
	}
	return out, nil
}

// Fetch resolves a single source into the cache directory and returns the
// local path.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (string, error) {
	target := filepath.Join(f.cacheDir, src.Name)

	if f.isFresh(target) {
		f.logger.InfoContext(ctx, "using cached source",
			slog.String("source", src.Name),
			slog.String("path", target))
		return target, nil
	}

	if isRemote(src.Location) {
		return target, f.download(ctx, src.Location, target)
	}
	return target, f.copyLocal(ctx, src.Location, target)
}

// isFresh reports whether a cached copy exists and is young enough to reuse.
func (f *Fetcher) isFresh(path string) bool {
	if f.cacheMaxAge <= 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false
	}
	return time.Since(info.ModTime()) < f.cacheMaxAge
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// download fetches a URL into target, honoring the shared rate limit.
func (f *Fetcher) download(ctx context.Context, url, target string) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	f.logger.InfoContext(ctx, "downloading source",
		slog.String("url", url),
		slog.String("target", target))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.NewNetworkError("build request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return errors.NewNetworkError(fmt.Sprintf("download %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.NewNetworkError(
			fmt.Sprintf("download %s: unexpected status %d", url, resp.StatusCode), nil)
	}

	return writeAtomic(target, resp.Body)
}

// copyLocal copies a local source file into the cache.
func (f *Fetcher) copyLocal(ctx context.Context, source, target string) error {
	f.logger.InfoContext(ctx, "copying local source",
		slog.String("source", source),
		slog.String("target", target))

	in, err := os.Open(source)
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("open source %s", source), err)
	}
	defer in.Close()

	return writeAtomic(target, in)
}

// writeAtomic streams into a temp file and renames it over the target so a
// failed fetch never leaves a truncated cache entry.
func writeAtomic(target string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp-*")
	if err != nil {
		return errors.NewStorageError("create temp file", err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmpName)
		return errors.NewStorageError("write cache file", err)
	}
	if closeErr != nil {
		os.Remove(tmpName)
		return errors.NewStorageError("close cache file", closeErr)
	}
	if written == 0 {
		os.Remove(tmpName)
		return errors.NewStorageError(fmt.Sprintf("source %s was empty", filepath.Base(target)), nil)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return errors.NewStorageError("finalize cache file", err)
	}
	return nil
}
