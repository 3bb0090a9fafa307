package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"mediashare/internal/catalog"
	"mediashare/internal/media"
	"mediashare/internal/share"
	"mediashare/internal/storage"
	"mediashare/internal/streaming"
	"mediashare/internal/validation"
)

const Version = "0.1.0"

type ScannerInterface interface {
	ScanPath(path, name string) error
	IsScanning() bool
}

type ArtworkSource interface {
	Artwork(ctx context.Context, item catalog.Item) ([]byte, string, error)
}

// ShareController is the part of the share controller the API drives.
type ShareController interface {
	Status() share.Status
	Settings() share.Settings
	Reconcile(ctx context.Context, desired share.Settings) error
}

type Handler struct {
	storage     *storage.SQLiteStorage
	catalog     *catalog.Catalog
	sink        media.ChangeSink
	logger      zerolog.Logger
	scanner     ScannerInterface
	streamer    *streaming.Handler
	artwork     ArtworkSource
	share       ShareController
	libraryPath string
	libraryName string
}

// NewHandler builds the admin handlers. Playlist edits are persisted in store
// and then announced to sink.
func NewHandler(store *storage.SQLiteStorage, cat *catalog.Catalog, sink media.ChangeSink, logger zerolog.Logger, libraryPath, libraryName string) *Handler {
	return &Handler{
		storage:     store,
		catalog:     cat,
		sink:        sink,
		logger:      logger,
		streamer:    streaming.NewHandler(logger),
		libraryPath: libraryPath,
		libraryName: libraryName,
	}
}

func (h *Handler) SetScanner(scanner ScannerInterface) {
	h.scanner = scanner
}

func (h *Handler) SetArtwork(artwork ArtworkSource) {
	h.artwork = artwork
}

func (h *Handler) SetShare(controller ShareController) {
	h.share = controller
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
		Items:   h.catalog.Len(),
	})
}

func (h *Handler) ScanLibrary(w http.ResponseWriter, r *http.Request) {
	if h.scanner == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Scanner not initialized")
		return
	}

	if h.scanner.IsScanning() {
		writeJSON(w, http.StatusOK, ScanResponse{
			Status:  "in_progress",
			Message: "Scan already in progress",
		})
		return
	}

	if h.libraryPath == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "No library path configured")
		return
	}

	go func() {
		if err := h.scanner.ScanPath(h.libraryPath, h.libraryName); err != nil {
			h.logger.Error().Err(err).Msg("scan failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, ScanResponse{
		Status:  "started",
		Message: "Library scan started",
	})
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items := h.catalog.Items()
	resp := ItemsResponse{
		Items:    make([]ItemResponse, 0, len(items)),
		Revision: h.catalog.Revision(),
	}
	kind := r.URL.Query().Get("kind")
	for _, item := range items {
		if kind != "" && string(item.Kind) != kind {
			continue
		}
		resp.Items = append(resp.Items, toItemResponse(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.lookupItem(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) StreamItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.lookupItem(w, r)
	if !ok {
		return
	}
	h.streamer.ServeFile(w, r, item.Path)
}

func (h *Handler) GetArtwork(w http.ResponseWriter, r *http.Request) {
	item, ok := h.lookupItem(w, r)
	if !ok {
		return
	}

	if h.artwork == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Artwork service not available")
		return
	}

	data, mime, err := h.artwork.Artwork(r.Context(), item)
	if err != nil {
		if !errors.Is(err, media.ErrNoArtwork) {
			h.logger.Warn().Err(err).Int64("id", item.ID).Msg("failed to get artwork")
		}
		writeError(w, http.StatusNotFound, "ARTWORK_NOT_FOUND", "Artwork not available")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) lookupItem(w http.ResponseWriter, r *http.Request) (catalog.Item, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid item id")
		return catalog.Item{}, false
	}

	item, err := h.catalog.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "ITEM_NOT_FOUND", "Item not found")
		return catalog.Item{}, false
	}
	return item, true
}

func toItemResponse(item catalog.Item) ItemResponse {
	id := strconv.FormatInt(item.ID, 10)
	return ItemResponse{
		ID:         item.ID,
		Title:      item.Name,
		Kind:       string(item.Kind),
		Format:     item.Extension,
		Size:       item.Size,
		DurationMS: item.Duration.Milliseconds(),
		StreamURL:  "/api/v1/items/" + id + "/stream",
		ArtworkURL: "/api/v1/items/" + id + "/artwork",
	}
}

// decodeJSON reads and validates a request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return false
	}
	if err := validation.ValidateStruct(v); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
