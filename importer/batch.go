package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ridoystarlord/discontented/codec"
	"github.com/ridoystarlord/discontented/locator"
	"github.com/ridoystarlord/discontented/schema"
	"github.com/ridoystarlord/discontented/telemetry"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency      = 16
	DefaultProgressInterval = 10 * time.Second
)

// Source is one entry to import. Entry is the latest version the caller has.
type Source struct {
	Entry schema.Entry
	// FromWebhook marks entries delivered by a webhook payload.
	FromWebhook bool
	// Published marks a webhook payload from a publish event.
	Published bool
}

// BatchOptions tunes a BatchImporter.
type BatchOptions struct {
	PageSize         int
	Concurrency      int
	ProgressInterval time.Duration
}

// BatchImporter converts many entries and renders paged upserts.
type BatchImporter struct {
	entries    *EntryImporter
	published  locator.Locator
	store      *schema.Store
	serializer codec.Serializer
	opts       BatchOptions
	logger     *slog.Logger
	rows       metric.Int64Counter
}

// NewBatchImporter builds a batch importer. cfg.Locator doubles as the read
// path for published versions. store supplies the default entries and may
// be nil.
func NewBatchImporter(cfg Config, store *schema.Store, opts BatchOptions) *BatchImporter {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	ei := NewEntryImporter(cfg)
	return &BatchImporter{
		entries:    ei,
		published:  cfg.Locator,
		store:      store,
		serializer: codec.Serializer{DefaultLocale: cfg.Naming.Locale()},
		opts:       opts,
		logger:     ei.logger,
		rows:       telemetry.Counter("dcf.import.rows", "Rows rendered into upsert statements"),
	}
}

// Sources wraps plain entries, as for a full sync.
func Sources(entries []schema.Entry) []Source {
	out := make([]Source, len(entries))
	for i, e := range entries {
		out[i] = Source{Entry: e}
	}
	return out
}

// Batch is the rendered output of a batch import.
type Batch struct {
	Statements []string
	// Prunes must be applied only after every statement succeeded.
	Prunes []LinkPrune
}

// GenerateBatchSQL converts sources and renders one statement per page per
// table. A nil sources slice imports every entry of the store.
func (b *BatchImporter) GenerateBatchSQL(ctx context.Context, sources []Source) ([]string, error) {
	batch, err := b.GenerateBatch(ctx, sources)
	if err != nil {
		return nil, err
	}
	return batch.Statements, nil
}

// GenerateBatch is GenerateBatchSQL that also returns the link prunes of the
// converted entries.
func (b *BatchImporter) GenerateBatch(ctx context.Context, sources []Source) (*Batch, error) {
	res, err := b.Collect(ctx, sources)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Prunes: res.Prunes}
	for _, tr := range res.Tables {
		batch.Statements = append(batch.Statements, RenderTable(tr, b.opts.PageSize, b.serializer)...)
		b.rows.Add(ctx, int64(len(tr.Rows)))
	}
	return batch, nil
}

// Collect converts sources into rows grouped by table. Tables appear in the
// order they are first produced, following source order. When an entry id
// occurs more than once only its last source is converted.
func (b *BatchImporter) Collect(ctx context.Context, sources []Source) (*Result, error) {
	if sources == nil && b.store != nil {
		sources = Sources(b.store.Entries)
	}
	sources = dedupeSources(sources)

	results := make([]*Result, len(sources))
	var done atomic.Int64

	stop := b.reportProgress(&done, len(sources))
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)
	for i := range sources {
		g.Go(func() error {
			defer done.Add(1)
			res, err := b.convert(gctx, sources[i])
			if err != nil {
				return fmt.Errorf("entry %s: %w", sources[i].Entry.Sys.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := newTableSet()
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, tr := range res.Tables {
			for _, row := range tr.Rows {
				if err := set.add(row); err != nil {
					return nil, err
				}
			}
		}
		set.prunes = append(set.prunes, res.Prunes...)
	}
	return &Result{Tables: set.tables(), Prunes: set.prunes}, nil
}

// dedupeSources keeps the last source of every entry id, in the position of
// that last occurrence.
func dedupeSources(sources []Source) []Source {
	last := make(map[string]int, len(sources))
	for i, s := range sources {
		last[s.Entry.Sys.ID] = i
	}
	if len(last) == len(sources) {
		return sources
	}
	out := make([]Source, 0, len(last))
	for i, s := range sources {
		if last[s.Entry.Sys.ID] == i {
			out = append(out, s)
		}
	}
	return out
}

// convert applies the webhook ordering rules and runs the entry importer.
// A nil result means the source was skipped.
func (b *BatchImporter) convert(ctx context.Context, src Source) (*Result, error) {
	latest := src.Entry

	if src.FromWebhook && src.Published {
		return b.entries.Generate(ctx, &latest, &latest)
	}

	var published *schema.Entry
	if b.published != nil {
		p, err := b.published.Entry(ctx, latest.SpaceID(), latest.Sys.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch published version: %w", err)
		}
		published = p
	}

	if src.FromWebhook && published != nil {
		b.logger.Info("skipping non-publish webhook for entry with a published version",
			"entry", latest.Sys.ID)
		return nil, nil
	}
	return b.entries.Generate(ctx, published, &latest)
}

func (b *BatchImporter) reportProgress(done *atomic.Int64, total int) func() {
	ticker := time.NewTicker(b.opts.ProgressInterval)
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				b.logger.Info("import progress", "done", done.Load(), "total", total)
			case <-quit:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(quit)
	}
}
