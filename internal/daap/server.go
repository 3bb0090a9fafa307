// Package daap serves the shared catalog to remote clients over DAAP.
//
// One Server is built per share session, so logins never outlive the
// listener that accepted them.
package daap

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"mediashare/internal/catalog"
	"mediashare/internal/dmap"
	"mediashare/internal/metrics"
	"mediashare/internal/playlist"
	"mediashare/internal/server"
	"mediashare/internal/streaming"
	"mediashare/internal/wire"
)

const (
	ServerName = "mediashare/1.0"

	// the share exposes a single database
	databaseID = 1

	// advertised to clients in server-info
	sessionTimeout = 30 * time.Minute
)

// Catalog is the read side of the item catalog.
type Catalog interface {
	Get(id int64) (catalog.Item, error)
	Items() []catalog.Item
	Revision() uint64
}

// Playlists is the read side of the playlist index.
type Playlists interface {
	All() []playlist.Playlist
	Get(id int64) (playlist.Playlist, bool)
	ItemsOf(id int64) []int64
}

type Translator interface {
	Translate(item catalog.Item) wire.Item
}

type ArtworkSource interface {
	Artwork(ctx context.Context, item catalog.Item) ([]byte, string, error)
}

type Config struct {
	Name         string
	PersistentID uint64
}

type Server struct {
	cfg        Config
	catalog    Catalog
	playlists  Playlists
	translator Translator
	artwork    ArtworkSource
	streamer   *streaming.Handler
	sessions   *Sessions
	router     *chi.Mux
	logger     zerolog.Logger
}

func New(cfg Config, cat Catalog, lists Playlists, translator Translator, artwork ArtworkSource, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		catalog:    cat,
		playlists:  lists,
		translator: translator,
		artwork:    artwork,
		streamer:   streaming.NewHandler(logger),
		sessions:   NewSessions(sessionTimeout),
		logger:     logger.With().Str("component", "daap").Logger(),
	}

	s.router = chi.NewRouter()
	s.router.Use(middleware.Recoverer)
	s.router.Use(server.LoggingMiddleware(s.logger))
	s.router.Use(countRequests)
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/server-info", s.serverInfo)
	s.router.Get("/login", s.login)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Get("/logout", s.logout)
		r.Get("/update", s.update)
		r.Get("/databases", s.databases)

		r.Route("/databases/{db}", func(r chi.Router) {
			r.Use(checkDatabase)

			r.Get("/items", s.items)
			r.Get("/items/{item}", s.streamItem)
			r.Get("/items/{item}/extra_data/artwork", s.itemArtwork)
			r.Get("/containers", s.containers)
			r.Get("/containers/{id}/items", s.containerItems)
		})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Sessions() *Sessions {
	return s.sessions
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(r.URL.Query().Get("session-id"), 10, 32)
		if err != nil || !s.sessions.Touch(uint32(id)) {
			writeStatus(w, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func checkDatabase(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "db") != strconv.Itoa(databaseID) {
			writeStatus(w, http.StatusNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.DAAPRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	})
}

func writeDMAP(w http.ResponseWriter, n dmap.Node) {
	body, err := dmap.Marshal(n)
	if err != nil {
		writeStatus(w, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", dmap.ContentType)
	w.Header().Set("DAAP-Server", ServerName)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// writeStatus answers with an empty body, as DAAP clients expect for errors.
func writeStatus(w http.ResponseWriter, status int) {
	w.Header().Set("DAAP-Server", ServerName)
	w.WriteHeader(status)
}
