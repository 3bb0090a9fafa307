package api

import "time"

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Items   int    `json:"items"`
}

type ItemResponse struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Kind       string `json:"kind"`
	Format     string `json:"format,omitempty"`
	Size       int64  `json:"size"`
	DurationMS int64  `json:"duration_ms"`
	StreamURL  string `json:"stream_url"`
	ArtworkURL string `json:"artwork_url"`
}

type ItemsResponse struct {
	Items    []ItemResponse `json:"items"`
	Revision uint64         `json:"revision"`
}

type ScanResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type PlaylistRequest struct {
	Title   string  `json:"title" validate:"required,max=255"`
	ItemIDs []int64 `json:"item_ids" validate:"dive,gt=0"`
}

type PlaylistResponse struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Kind     string  `json:"kind"`
	ReadOnly bool    `json:"read_only"`
	ItemIDs  []int64 `json:"item_ids"`
}

type PlaylistsResponse struct {
	Playlists []PlaylistResponse `json:"playlists"`
}

// ShareRequest changes the desired share state. Omitted fields keep their
// current value.
type ShareRequest struct {
	Enabled      *bool   `json:"enabled"`
	Discoverable *bool   `json:"discoverable"`
	Name         *string `json:"name" validate:"omitempty,min=1,max=63"`
}

type ShareResponse struct {
	State        string     `json:"state"`
	Name         string     `json:"name"`
	Addr         string     `json:"addr,omitempty"`
	Enabled      bool       `json:"enabled"`
	Discoverable bool       `json:"discoverable"`
	Advertised   bool       `json:"advertised"`
	Since        *time.Time `json:"since,omitempty"`
	Warning      string     `json:"warning,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
