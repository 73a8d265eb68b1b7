// Package assets copies CMS asset files into object storage buckets.
package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ridoystarlord/discontented/codec"
	"github.com/ridoystarlord/discontented/schema"
	"golang.org/x/sync/errgroup"
)

const DefaultProgressInterval = 10 * time.Second

type file struct {
	body        []byte
	contentType string
}

type bucketIndex struct {
	once sync.Once
	keys map[string]bool
	err  error
}

// Uploader copies each asset's default-locale file into every store that
// does not hold it yet. Bucket contents are listed once per store.
type Uploader struct {
	Stores           []ObjectStore
	Locale           string
	HTTPClient       *http.Client
	Logger           *slog.Logger
	ProgressInterval time.Duration

	mu      sync.Mutex
	indexes map[string]*bucketIndex
}

func NewUploader(stores []ObjectStore, locale string, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	if locale == "" {
		locale = codec.DefaultLocale
	}
	return &Uploader{
		Stores:           stores,
		Locale:           locale,
		HTTPClient:       http.DefaultClient,
		Logger:           logger,
		ProgressInterval: DefaultProgressInterval,
		indexes:          map[string]*bucketIndex{},
	}
}

// ObjectKey returns the bucket key for a CMS file URL: its path without the
// leading slash.
func ObjectKey(fileURL string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("parsing asset url %q: %w", fileURL, err)
	}
	return strings.TrimPrefix(u.Path, "/"), nil
}

// Transfer copies one asset. Assets without a file are skipped with a log line.
func (u *Uploader) Transfer(ctx context.Context, asset schema.Asset) error {
	if len(u.Stores) == 0 {
		return nil
	}
	if len(asset.Fields.File) == 0 {
		u.Logger.Warn("skipping asset: no file associated", "asset", asset.Sys.ID)
		return nil
	}
	f, ok := asset.Fields.File[u.Locale]
	if !ok || f.URL == "" {
		u.Logger.Error("skipping asset: no file for default locale", "asset", asset.Sys.ID, "locale", u.Locale)
		return nil
	}

	fileURL := "https:" + f.URL
	key, err := ObjectKey(fileURL)
	if err != nil {
		return err
	}

	download := sync.OnceValues(func() (file, error) {
		return u.download(ctx, fileURL)
	})

	g, gctx := errgroup.WithContext(ctx)
	for _, store := range u.Stores {
		g.Go(func() error {
			has, err := u.hasObject(gctx, store, key)
			if err != nil {
				return err
			}
			if has {
				return nil
			}
			body, err := download()
			if err != nil {
				return fmt.Errorf("downloading asset %s: %w", asset.Sys.ID, err)
			}
			if err := store.Put(gctx, key, body.body, body.contentType); err != nil {
				return fmt.Errorf("uploading asset %s to %s: %w", asset.Sys.ID, store.Name(), err)
			}
			u.markPresent(store, key)
			return nil
		})
	}
	return g.Wait()
}

// TransferAll copies assets with at most concurrency transfers in flight.
func (u *Uploader) TransferAll(ctx context.Context, assets []schema.Asset, concurrency int) error {
	if len(u.Stores) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for _, a := range assets {
		g.Go(func() error { return u.Transfer(gctx, a) })
	}
	return g.Wait()
}

func (u *Uploader) index(store ObjectStore) *bucketIndex {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.indexes == nil {
		u.indexes = map[string]*bucketIndex{}
	}
	idx, ok := u.indexes[store.Name()]
	if !ok {
		idx = &bucketIndex{}
		u.indexes[store.Name()] = idx
	}
	return idx
}

func (u *Uploader) hasObject(ctx context.Context, store ObjectStore, key string) (bool, error) {
	idx := u.index(store)
	idx.once.Do(func() {
		idx.keys, idx.err = u.buildIndex(ctx, store)
	})
	if idx.err != nil {
		return false, idx.err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return idx.keys[key], nil
}

func (u *Uploader) markPresent(store ObjectStore, key string) {
	idx := u.index(store)
	u.mu.Lock()
	defer u.mu.Unlock()
	if idx.keys != nil {
		idx.keys[key] = true
	}
}

func (u *Uploader) buildIndex(ctx context.Context, store ObjectStore) (map[string]bool, error) {
	name := store.Name()
	u.Logger.Info("building bucket key map", "bucket", name)
	start := time.Now()

	var mu sync.Mutex
	keys := map[string]bool{}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(keys)
	}

	interval := u.ProgressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	defer func() {
		ticker.Stop()
		close(done)
	}()
	go func() {
		for {
			select {
			case <-ticker.C:
				u.Logger.Info("bucket key map progress", "bucket", name, "objects", count())
			case <-done:
				return
			}
		}
	}()

	err := store.Keys(ctx, func(page []string) {
		mu.Lock()
		defer mu.Unlock()
		for _, k := range page {
			keys[k] = true
		}
	})
	if err != nil {
		return nil, fmt.Errorf("building key map for %s: %w", name, err)
	}

	u.Logger.Info("finished bucket key map", "bucket", name, "objects", count(), "elapsed", time.Since(start))
	return keys, nil
}

func (u *Uploader) download(ctx context.Context, fileURL string) (file, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return file{}, err
	}
	client := u.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return file{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return file{}, fmt.Errorf("GET %s: %s", fileURL, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return file{}, err
	}
	return file{body: body, contentType: resp.Header.Get("Content-Type")}, nil
}
