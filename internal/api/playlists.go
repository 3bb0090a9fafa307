package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mediashare/internal/media"
	"mediashare/internal/storage"
)

func (h *Handler) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.storage.ListPlaylists()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list playlists")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list playlists")
		return
	}

	resp := PlaylistsResponse{Playlists: make([]PlaylistResponse, 0, len(lists))}
	for _, p := range lists {
		resp.Playlists = append(resp.Playlists, toPlaylistResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupPlaylist(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPlaylistResponse(*p))
}

func (h *Handler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req PlaylistRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p := storage.Playlist{Title: req.Title, Kind: storage.PlaylistUser, ItemIDs: req.ItemIDs}
	if err := h.storage.CreatePlaylist(&p); err != nil {
		h.logger.Error().Err(err).Msg("failed to create playlist")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create playlist")
		return
	}
	h.publish(media.ChangeSet{PlaylistsAdded: []storage.Playlist{p}})

	h.logger.Info().Int64("id", p.ID).Str("title", p.Title).Msg("playlist created")
	writeJSON(w, http.StatusCreated, toPlaylistResponse(p))
}

func (h *Handler) UpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupPlaylist(w, r)
	if !ok {
		return
	}
	if p.Kind == storage.PlaylistFolder {
		writeError(w, http.StatusConflict, "PLAYLIST_READ_ONLY", "Folder playlists follow the library and cannot be edited")
		return
	}

	var req PlaylistRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p.Title = req.Title
	p.ItemIDs = req.ItemIDs
	if err := h.storage.UpdatePlaylist(p); err != nil {
		h.logger.Error().Err(err).Int64("id", p.ID).Msg("failed to update playlist")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update playlist")
		return
	}
	h.publish(media.ChangeSet{PlaylistsChanged: []storage.Playlist{*p}})

	// re-read for the normalized member list
	if stored, err := h.storage.GetPlaylist(p.ID); err == nil && stored != nil {
		p = stored
	}
	writeJSON(w, http.StatusOK, toPlaylistResponse(*p))
}

func (h *Handler) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupPlaylist(w, r)
	if !ok {
		return
	}
	if p.Kind == storage.PlaylistFolder {
		writeError(w, http.StatusConflict, "PLAYLIST_READ_ONLY", "Folder playlists follow the library and cannot be deleted")
		return
	}

	if err := h.storage.DeletePlaylist(p.ID); err != nil {
		h.logger.Error().Err(err).Int64("id", p.ID).Msg("failed to delete playlist")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete playlist")
		return
	}
	h.publish(media.ChangeSet{PlaylistsRemoved: []int64{p.ID}})

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookupPlaylist(w http.ResponseWriter, r *http.Request) (*storage.Playlist, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid playlist id")
		return nil, false
	}

	p, err := h.storage.GetPlaylist(id)
	if err != nil {
		h.logger.Error().Err(err).Int64("id", id).Msg("failed to get playlist")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get playlist")
		return nil, false
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "PLAYLIST_NOT_FOUND", "Playlist not found")
		return nil, false
	}
	return p, true
}

func (h *Handler) publish(cs media.ChangeSet) {
	if h.sink == nil {
		return
	}
	if err := h.sink.Apply(cs); err != nil {
		h.logger.Warn().Err(err).Msg("failed to publish playlist change")
	}
}

func toPlaylistResponse(p storage.Playlist) PlaylistResponse {
	ids := p.ItemIDs
	if ids == nil {
		ids = []int64{}
	}
	return PlaylistResponse{
		ID:       p.ID,
		Title:    p.Title,
		Kind:     p.Kind,
		ReadOnly: p.Kind == storage.PlaylistFolder,
		ItemIDs:  ids,
	}
}
