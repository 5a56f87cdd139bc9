package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/shotlens/internal/logger"
	"github.com/timmy/shotlens/internal/source"
)

// Processor is the single-image entry point a BatchIngester fans out to.
type Processor interface {
	Process(ctx context.Context, image []byte, mediaType string) (*ProcessResult, error)
}

// BatchConfig holds configuration for batch ingestion.
type BatchConfig struct {
	Workers        int
	BatchSize      int
	SkipDuplicates bool
}

// BatchStats holds statistics for an ingestion run.
type BatchStats struct {
	TotalItems     int64
	ProcessedItems int64
	SkippedItems   int64
	FailedItems    int64
	DegradedItems  int64
	StartTime      time.Time
	EndTime        time.Time
}

// BatchIngester feeds every image from a Source through the pipeline with a fixed worker pool.
// Each image is still one independent Process call.
type BatchIngester struct {
	pipeline    Processor
	screenshots ScreenshotStore
	cfg         BatchConfig
}

// NewBatchIngester creates a BatchIngester.
func NewBatchIngester(pipeline Processor, screenshots ScreenshotStore, cfg BatchConfig) *BatchIngester {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &BatchIngester{pipeline: pipeline, screenshots: screenshots, cfg: cfg}
}

type itemResult struct {
	sourceID string
	skipped  bool
	degraded bool
	err      error
}

var errSkipDuplicate = errors.New("skipped: duplicate MD5")

// Ingest processes up to limit items from src. A non-positive limit means all items.
// Per-item failures are counted and logged; only a source error stops the run early.
func (b *BatchIngester) Ingest(ctx context.Context, src source.Source, limit int) (*BatchStats, error) {
	stats := &BatchStats{StartTime: time.Now()}
	ctx = logger.SetComponent(ctx, "batch")

	logger.FromContext(ctx).WithFields(logger.Fields{
		"source":  src.GetSourceID(),
		"limit":   limit,
		"workers": b.cfg.Workers,
	}).Info("Starting ingestion")

	items := make(chan source.ImageItem, b.cfg.Workers*2)
	results := make(chan itemResult, b.cfg.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < b.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.worker(ctx, items, results)
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range results {
			atomic.AddInt64(&stats.ProcessedItems, 1)
			switch {
			case r.skipped:
				atomic.AddInt64(&stats.SkippedItems, 1)
			case r.err != nil:
				atomic.AddInt64(&stats.FailedItems, 1)
				logger.FromContext(ctx).WithField("source_id", r.sourceID).WithError(r.err).Error("Failed to process item")
			case r.degraded:
				atomic.AddInt64(&stats.DegradedItems, 1)
			}
		}
	}()

	fetchErr := b.feed(ctx, src, limit, stats, items)

	close(items)
	wg.Wait()
	close(results)
	<-done

	stats.EndTime = time.Now()
	logger.FromContext(ctx).WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"processed": stats.ProcessedItems,
		"skipped":   stats.SkippedItems,
		"failed":    stats.FailedItems,
		"degraded":  stats.DegradedItems,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Ingestion completed")

	return stats, fetchErr
}

func (b *BatchIngester) feed(ctx context.Context, src source.Source, limit int, stats *BatchStats, items chan<- source.ImageItem) error {
	cursor := ""
	fetched := 0
	for ctx.Err() == nil {
		batchLimit := b.cfg.BatchSize
		if limit > 0 {
			remaining := limit - fetched
			if remaining <= 0 {
				return nil
			}
			batchLimit = min(batchLimit, remaining)
		}

		batch, next, err := src.FetchBatch(ctx, cursor, batchLimit)
		if err != nil {
			return fmt.Errorf("failed to fetch batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}
		atomic.AddInt64(&stats.TotalItems, int64(len(batch)))
		fetched += len(batch)

		for _, item := range batch {
			select {
			case items <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if next == "" {
			return nil
		}
		cursor = next
	}
	return ctx.Err()
}

func (b *BatchIngester) worker(ctx context.Context, items <-chan source.ImageItem, results chan<- itemResult) {
	for item := range items {
		if ctx.Err() != nil {
			results <- itemResult{sourceID: item.SourceID, err: ctx.Err()}
			continue
		}
		r := itemResult{sourceID: item.SourceID}
		res, err := b.processItem(ctx, item)
		switch {
		case errors.Is(err, errSkipDuplicate):
			r.skipped = true
		case err != nil:
			r.err = err
		default:
			r.degraded = len(res.Degraded) > 0
		}
		results <- r
	}
}

func (b *BatchIngester) processItem(ctx context.Context, item source.ImageItem) (*ProcessResult, error) {
	data, err := os.ReadFile(item.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	if b.cfg.SkipDuplicates {
		exists, err := b.screenshots.ExistsByMD5Hash(ctx, calculateMD5(data))
		if err != nil {
			return nil, fmt.Errorf("failed to check MD5: %w", err)
		}
		if exists {
			return nil, errSkipDuplicate
		}
	}

	return b.pipeline.Process(ctx, data, item.MediaType)
}
