package media

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mediashare/internal/metrics"
	"mediashare/internal/storage"
)

// Enricher fills in durations the scanner could not know and reports each
// enriched item to the sink as changed.
type Enricher struct {
	storage   *storage.SQLiteStorage
	metadata  *MetadataExtractor
	sink      ChangeSink
	lock      sync.Locker
	batchSize int
	delay     time.Duration
	trigger   chan struct{}
	logger    zerolog.Logger
}

// NewEnricher builds an enricher. lock is held while an item is written and
// reported; pass the scanner's Locker so both writers reach the sink in the
// order they wrote storage.
func NewEnricher(
	store *storage.SQLiteStorage,
	metadata *MetadataExtractor,
	sink ChangeSink,
	lock sync.Locker,
	batchSize int,
	delay time.Duration,
	logger zerolog.Logger,
) *Enricher {
	if batchSize <= 0 {
		batchSize = 10
	}
	if lock == nil {
		lock = &sync.Mutex{}
	}
	return &Enricher{
		storage:   store,
		metadata:  metadata,
		sink:      sink,
		lock:      lock,
		batchSize: batchSize,
		delay:     delay,
		trigger:   make(chan struct{}, 1),
		logger:    logger.With().Str("component", "enricher").Logger(),
	}
}

// Trigger asks a running enricher to look for pending items.
func (e *Enricher) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Serve processes pending items whenever triggered until ctx ends.
func (e *Enricher) Serve(ctx context.Context) error {
	for {
		if _, err := e.RunOnce(ctx); err != nil && ctx.Err() == nil {
			e.logger.Error().Err(err).Msg("enrichment pass failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.trigger:
		}
	}
}

func (e *Enricher) String() string { return "enricher" }

// RunOnce enriches every item that has no duration yet and returns how many
// were processed.
func (e *Enricher) RunOnce(ctx context.Context) (int, error) {
	if !e.metadata.IsAvailable() {
		e.logger.Debug().Msg("ffprobe not available, skipping enrichment")
		return 0, nil
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		items, err := e.storage.GetMediaItemsWithoutDuration(e.batchSize)
		if err != nil {
			return total, err
		}
		if len(items) == 0 {
			break
		}

		progressed := 0
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			if e.process(ctx, item) {
				progressed++
			}
			total++

			if e.delay > 0 {
				select {
				case <-ctx.Done():
					return total, ctx.Err()
				case <-time.After(e.delay):
				}
			}
		}

		// every write in this batch failed; retrying would spin
		if progressed == 0 {
			break
		}
	}

	if total > 0 {
		e.logger.Info().Int("processed", total).Msg("enrichment pass completed")
	}
	return total, nil
}

// process extracts and stores one duration. Items that cannot be probed get
// a zero duration so they are not retried on every pass.
func (e *Enricher) process(ctx context.Context, item storage.MediaItem) bool {
	var ms int64
	meta, err := e.metadata.Extract(ctx, item.Path)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		metrics.EnrichedItems.WithLabelValues("failed").Inc()
		e.logger.Debug().Err(err).Int64("id", item.ID).Msg("metadata extraction failed")
	} else {
		metrics.EnrichedItems.WithLabelValues("ok").Inc()
		ms = meta.Duration.Milliseconds()
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	// the file may have been rescanned or removed while probing
	current, err := e.storage.GetMediaItem(item.ID)
	if err != nil {
		e.logger.Error().Err(err).Int64("id", item.ID).Msg("failed to reload media item")
		return false
	}
	if current == nil || current.Size != item.Size || !current.ModifiedAt.Equal(item.ModifiedAt) {
		return true
	}

	if err := e.storage.UpdateMediaDuration(item.ID, ms); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.Error().Err(err).Int64("id", item.ID).Msg("failed to store duration")
			return false
		}
		return true
	}
	current.DurationMS = &ms

	if e.sink != nil {
		if err := e.sink.Apply(ChangeSet{Changed: []storage.MediaItem{*current}}); err != nil {
			e.logger.Warn().Err(err).Int64("id", item.ID).Msg("failed to publish enriched item")
		}
	}
	return true
}
