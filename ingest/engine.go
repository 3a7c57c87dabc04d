// Package ingest writes decoded images into the catalog.
//
// Both operations consume the images in order and issue the store writes in the same order,
// grouped into pipelines of the configured batch size. Nothing is retried: a store error or an
// error yielded by the input ends the run, and writes already sent stay in place.
package ingest

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/teenjuna/tvl"
	"github.com/teenjuna/tvl/buffer"
	"github.com/teenjuna/tvl/catalog"
	"github.com/teenjuna/tvl/internal"
)

// Result counts what a run did.
type Result struct {
	// Records is the number of images consumed.
	Records int
	// Created is the number of collections created.
	Created int
	// Imported is the number of image records written.
	Imported int
	// Reused is the number of images matched to an already stored record.
	Reused int
	// Pruned is the number of stored records deleted because the run didn't see them.
	Pruned int
	// Batches is the number of pipelines sent.
	Batches int
}

type Engine struct {
	cfg     *config
	catalog *catalog.Catalog
}

func New(cat *catalog.Catalog, options ...Option) *Engine {
	return &Engine{
		cfg:     newConfig(options...),
		catalog: cat,
	}
}

// Import stores every image as a new record, creating collections for unknown source files.
func (e *Engine) Import(
	ctx context.Context,
	images iter.Seq2[*tvl.DecodedImage, error],
) (Result, error) {
	r, err := e.start(ctx, false)
	if err != nil {
		return Result{}, err
	}
	return r.consume(ctx, images)
}

// Verify is like Import, but an image whose file name matches a record that its collection held
// before the run reuses that record instead of creating a new one. After the input is consumed,
// records of every touched collection that the run neither created nor reused are deleted.
//
// The match is by file name alone, so two different payloads with the same name in one
// collection resolve to the same record.
func (e *Engine) Verify(
	ctx context.Context,
	images iter.Seq2[*tvl.DecodedImage, error],
) (Result, error) {
	r, err := e.start(ctx, true)
	if err != nil {
		return Result{}, err
	}

	res, err := r.consume(ctx, images)
	if err != nil {
		return res, err
	}

	if err := r.prune(ctx); err != nil {
		return r.result, fmt.Errorf("prune: %w", err)
	}

	return r.result, nil
}

type write struct {
	collectionID string
	imageID      string
	image        *tvl.DecodedImage
}

type run struct {
	*Engine
	log    *logrus.Entry
	verify bool
	buf    buffer.Buffer[write]
	result Result

	// collections by source file name.
	collections map[string]tvl.Collection
	// stored maps a collection id to the file names and ids of the records it had before the run.
	stored map[string]map[string]string
	// seen holds the ids each touched collection keeps, in first-touch order.
	seen  map[string]map[string]struct{}
	order []string
}

func (e *Engine) start(ctx context.Context, verify bool) (*run, error) {
	cols, err := e.catalog.Collections(ctx)
	if err != nil {
		return nil, fmt.Errorf("load collections: %w", err)
	}

	r := run{
		Engine:      e,
		log:         e.cfg.logger.WithField("verify", verify),
		verify:      verify,
		buf:         buffer.Appending[write](e.cfg.batchSize),
		collections: make(map[string]tvl.Collection, len(cols)),
		stored:      make(map[string]map[string]string),
		seen:        make(map[string]map[string]struct{}),
	}
	for _, col := range cols {
		if _, ok := r.collections[col.FileName]; !ok {
			r.collections[col.FileName] = col
		}
	}

	return &r, nil
}

func (r *run) consume(ctx context.Context, images iter.Seq2[*tvl.DecodedImage, error]) (Result, error) {
	for img, err := range images {
		if err != nil {
			return r.result, err
		}
		if err := r.add(ctx, img); err != nil {
			return r.result, err
		}
	}

	if err := r.flush(ctx); err != nil {
		return r.result, err
	}

	r.log.WithFields(logrus.Fields{
		"records":  r.result.Records,
		"imported": r.result.Imported,
		"reused":   r.result.Reused,
		"batches":  r.result.Batches,
	}).Info("Input consumed")

	return r.result, nil
}

func (r *run) add(ctx context.Context, img *tvl.DecodedImage) error {
	col, err := r.collection(ctx, img.Source)
	if err != nil {
		return err
	}

	r.result.Records++
	if r.result.Records%r.cfg.progress == 0 {
		r.log.WithField("records", r.result.Records).Info("Sync progress")
	}

	if r.verify {
		stored, err := r.storedImages(ctx, col.ID)
		if err != nil {
			return err
		}
		if id, ok := stored[img.Record.FileName]; ok {
			r.keep(col.ID, id)
			r.result.Reused++
			r.cfg.metrics.RecordsReused.Inc()
			return nil
		}
	}

	id := internal.GenerateID()
	r.keep(col.ID, id)
	if r.buf.Push(write{collectionID: col.ID, imageID: id, image: img}) {
		return r.flush(ctx)
	}
	return nil
}

// collection resolves the collection of source, creating it right away when it is new.
func (r *run) collection(ctx context.Context, source tvl.Source) (tvl.Collection, error) {
	if col, ok := r.collections[source.FileName]; ok {
		return col, nil
	}

	col, err := r.catalog.CreateCollection(ctx, source)
	if err != nil {
		return tvl.Collection{}, fmt.Errorf("create collection for %s: %w", source.FileName, err)
	}
	r.collections[source.FileName] = col
	r.result.Created++

	r.log.WithFields(logrus.Fields{
		"collection":  col.ID,
		"file":        col.FileName,
		"description": col.Description,
	}).Info("Created collection")

	return col, nil
}

func (r *run) storedImages(ctx context.Context, collectionID string) (map[string]string, error) {
	if stored, ok := r.stored[collectionID]; ok {
		return stored, nil
	}

	summaries, err := r.catalog.Images(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("load images of collection %s: %w", collectionID, err)
	}

	// Ids ascend, so the oldest record wins a shared name.
	stored := make(map[string]string, len(summaries))
	for _, s := range summaries {
		if _, ok := stored[s.FileName]; !ok {
			stored[s.FileName] = s.ID
		}
	}
	r.stored[collectionID] = stored

	return stored, nil
}

func (r *run) keep(collectionID, imageID string) {
	seen, ok := r.seen[collectionID]
	if !ok {
		seen = make(map[string]struct{})
		r.seen[collectionID] = seen
		r.order = append(r.order, collectionID)
	}
	seen[imageID] = struct{}{}
}

func (r *run) flush(ctx context.Context) error {
	size := r.buf.Size()
	if size == 0 {
		return nil
	}

	start := time.Now()
	p := r.catalog.Store().Pipeline()
	for w := range r.buf.Iter() {
		catalog.WriteImage(p, w.collectionID, w.imageID, w.image)
	}
	r.buf.Reset()

	if _, err := p.Exec(ctx); err != nil {
		return fmt.Errorf("flush batch of %d images: %w", size, err)
	}

	elapsed := time.Since(start)
	r.result.Imported += size
	r.result.Batches++
	r.cfg.metrics.RecordsImported.Add(float64(size))
	r.cfg.metrics.BatchesFlushed.Inc()
	r.cfg.metrics.FlushDuration.Observe(elapsed.Seconds())

	r.log.WithFields(logrus.Fields{
		"images":   size,
		"duration": elapsed,
	}).Debug("Batch flushed")

	return nil
}

func (r *run) prune(ctx context.Context) error {
	for _, collectionID := range r.order {
		ids, err := r.catalog.ImageIDs(ctx, collectionID)
		if err != nil {
			return fmt.Errorf("collection %s: %w", collectionID, err)
		}

		seen := r.seen[collectionID]
		p := r.catalog.Store().Pipeline()
		pruned := 0
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			catalog.DeleteImage(p, collectionID, id)
			pruned++
			if pruned%r.cfg.batchSize == 0 {
				if _, err := p.Exec(ctx); err != nil {
					return fmt.Errorf("collection %s: %w", collectionID, err)
				}
			}
		}
		if _, err := p.Exec(ctx); err != nil {
			return fmt.Errorf("collection %s: %w", collectionID, err)
		}

		if pruned > 0 {
			r.log.WithFields(logrus.Fields{
				"collection": collectionID,
				"pruned":     pruned,
			}).Info("Pruned stale images")
		}
		r.result.Pruned += pruned
		r.cfg.metrics.RecordsPruned.Add(float64(pruned))
	}

	return nil
}
