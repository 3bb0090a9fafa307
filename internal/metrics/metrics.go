package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Catalog
	CatalogItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediashare_catalog_items",
			Help: "Number of items currently in the shared catalog",
		},
	)

	Playlists = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediashare_playlists",
			Help: "Number of playlists currently in the playlist index",
		},
	)

	CatalogEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashare_catalog_events_total",
			Help: "Catalog and playlist change notifications applied",
		},
		[]string{"kind", "op"}, // kind: item|playlist, op: added|changed|removed
	)

	TranslationCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashare_translation_cache_total",
			Help: "Translation cache lookups by result",
		},
		[]string{"result"}, // hit|miss
	)

	ArtworkCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashare_artwork_cache_total",
			Help: "Artwork cache lookups by result",
		},
		[]string{"result"}, // hit|miss
	)

	EnrichedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashare_enriched_items_total",
			Help: "Items processed by the metadata enricher by result",
		},
		[]string{"result"}, // ok|failed
	)

	// Share session
	ShareState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediashare_share_state",
			Help: "Share session state (0 stopped, 1 starting, 2 running, 3 stopping)",
		},
	)

	ShareDiscoverable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediashare_share_discoverable",
			Help: "1 while the share is advertised on the local network",
		},
	)

	DiscoveryAdvertisements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashare_discovery_advertisements_total",
			Help: "mDNS advertisement attempts by result",
		},
		[]string{"result"}, // ok|unavailable|timeout
	)

	// Protocol
	DAAPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashare_daap_requests_total",
			Help: "DAAP requests served by endpoint and status code",
		},
		[]string{"endpoint", "status"},
	)

	BytesStreamed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediashare_bytes_streamed_total",
			Help: "Media bytes written to share clients",
		},
	)
)
