package api

import (
	"errors"
	"net/http"

	"mediashare/internal/discovery"
	"mediashare/internal/share"
)

func (h *Handler) GetShare(w http.ResponseWriter, r *http.Request) {
	if h.share == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Sharing not available")
		return
	}
	writeJSON(w, http.StatusOK, h.shareResponse())
}

// UpdateShare applies the requested share state. A share that starts but
// cannot be advertised is reported with a warning, not an error.
func (h *Handler) UpdateShare(w http.ResponseWriter, r *http.Request) {
	if h.share == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Sharing not available")
		return
	}

	var req ShareRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	desired := h.share.Settings()
	if req.Enabled != nil {
		desired.Enabled = *req.Enabled
	}
	if req.Discoverable != nil {
		desired.Discoverable = *req.Discoverable
	}
	if req.Name != nil {
		desired.Name = *req.Name
	}

	err := h.share.Reconcile(r.Context(), desired)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.shareResponse())
	case errors.Is(err, discovery.ErrUnavailable):
		resp := h.shareResponse()
		resp.Warning = "share is running but could not be advertised: " + err.Error()
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, share.ErrShareBindFailed):
		h.logger.Warn().Err(err).Msg("share failed to start")
		writeError(w, http.StatusConflict, "SHARE_BIND_FAILED", err.Error())
	default:
		h.logger.Error().Err(err).Msg("share reconcile failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update share")
	}
}

func (h *Handler) shareResponse() ShareResponse {
	st := h.share.Status()
	desired := h.share.Settings()

	resp := ShareResponse{
		State:        st.State.String(),
		Name:         st.Name,
		Addr:         st.Addr,
		Enabled:      desired.Enabled,
		Discoverable: desired.Discoverable,
		Advertised:   st.Discoverable,
	}
	if !st.Since.IsZero() {
		since := st.Since
		resp.Since = &since
	}
	return resp
}
