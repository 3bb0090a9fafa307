package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"mediashare/internal/cache"
	"mediashare/internal/catalog"
	"mediashare/internal/metrics"
)

// ArtworkService serves cover pictures for catalog items: embedded tag
// pictures for audio, a generated frame for video.
type ArtworkService struct {
	generator *ThumbnailGenerator
	cache     *cache.LRUCache
	logger    zerolog.Logger

	// serializes generation per item
	processing   map[int64]*sync.Mutex
	processingMu sync.Mutex
}

func NewArtworkService(generator *ThumbnailGenerator, cacheCapacity int, cacheMaxSize int64, logger zerolog.Logger) *ArtworkService {
	return &ArtworkService{
		generator:  generator,
		cache:      cache.NewLRUCache(cacheCapacity, cacheMaxSize),
		logger:     logger.With().Str("component", "artwork").Logger(),
		processing: make(map[int64]*sync.Mutex),
	}
}

// Artwork returns picture bytes and MIME type for item, or ErrNoArtwork.
func (s *ArtworkService) Artwork(ctx context.Context, item catalog.Item) ([]byte, string, error) {
	if art, ok := s.cache.Get(item.ID, item.Revision); ok {
		metrics.ArtworkCache.WithLabelValues("hit").Inc()
		return art.Data, art.MIME, nil
	}
	metrics.ArtworkCache.WithLabelValues("miss").Inc()

	lock := s.itemLock(item.ID)
	lock.Lock()
	defer lock.Unlock()

	// another request may have produced it meanwhile
	if art, ok := s.cache.Get(item.ID, item.Revision); ok {
		return art.Data, art.MIME, nil
	}

	var (
		data []byte
		mime string
		err  error
	)
	if item.Kind == catalog.KindVideo {
		data, mime, err = s.videoFrame(ctx, item)
	} else {
		data, mime, err = TagArtwork(item.Path)
	}
	if err != nil {
		if !errors.Is(err, ErrNoArtwork) {
			s.logger.Debug().Err(err).Int64("id", item.ID).Msg("artwork unavailable")
		}
		return nil, "", err
	}

	s.cache.Set(item.ID, item.Revision, cache.Artwork{Data: data, MIME: mime})
	return data, mime, nil
}

func (s *ArtworkService) videoFrame(ctx context.Context, item catalog.Item) ([]byte, string, error) {
	if !s.generator.IsAvailable() {
		return nil, "", fmt.Errorf("%w: ffmpeg not available", ErrNoArtwork)
	}

	path, err := s.generator.Generate(ctx, item.Path, item.ID, item.Duration)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNoArtwork, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Error().Err(err).Str("thumbnail", path).Msg("failed to read generated thumbnail")
		return nil, "", err
	}
	return data, "image/jpeg", nil
}

// Forget drops cached artwork for items that changed or left the library.
func (s *ArtworkService) Forget(ids ...int64) {
	s.cache.Delete(ids...)
	for _, id := range ids {
		if err := s.generator.Delete(id); err != nil {
			s.logger.Warn().Err(err).Int64("id", id).Msg("failed to delete thumbnail")
		}
	}

	s.processingMu.Lock()
	for _, id := range ids {
		delete(s.processing, id)
	}
	s.processingMu.Unlock()
}

func (s *ArtworkService) CacheStats() cache.Stats {
	return s.cache.Stats()
}

func (s *ArtworkService) itemLock(id int64) *sync.Mutex {
	s.processingMu.Lock()
	defer s.processingMu.Unlock()

	l, ok := s.processing[id]
	if !ok {
		l = &sync.Mutex{}
		s.processing[id] = l
	}
	return l
}
