package daap

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"mediashare/internal/dmap"
	"mediashare/internal/media"
	"mediashare/internal/wire"
)

const statusOK uint32 = 200

func (s *Server) serverInfo(w http.ResponseWriter, r *http.Request) {
	writeDMAP(w, dmap.Container("msrv",
		dmap.Node{Tag: "mstt", Value: statusOK},
		dmap.Node{Tag: "mpro", Value: dmap.Version{Major: 2, Minor: 0, Patch: 0}},
		dmap.Node{Tag: "apro", Value: dmap.Version{Major: 3, Minor: 0, Patch: 0}},
		dmap.Node{Tag: "minm", Value: s.cfg.Name},
		dmap.Node{Tag: "mslr", Value: true},
		dmap.Node{Tag: "mstm", Value: uint32(sessionTimeout.Seconds())},
		dmap.Node{Tag: "msal", Value: false},
		dmap.Node{Tag: "msup", Value: false},
		dmap.Node{Tag: "msau", Value: uint8(0)},
		dmap.Node{Tag: "msdc", Value: uint32(1)},
	))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.sessions.Expire(sessionTimeout)
	id := s.sessions.Open()
	s.logger.Debug().Uint32("session", id).Str("remote", r.RemoteAddr).Msg("client logged in")

	writeDMAP(w, dmap.Container("mlog",
		dmap.Node{Tag: "mstt", Value: statusOK},
		dmap.Node{Tag: "mlid", Value: id},
	))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(r.URL.Query().Get("session-id"), 10, 32)
	s.sessions.Close(uint32(id))
	writeStatus(w, http.StatusNoContent)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	writeDMAP(w, dmap.Container("mupd",
		dmap.Node{Tag: "mstt", Value: statusOK},
		dmap.Node{Tag: "musr", Value: uint32(s.catalog.Revision())},
	))
}

func (s *Server) databases(w http.ResponseWriter, r *http.Request) {
	db := dmap.Container("mlit",
		dmap.Node{Tag: "miid", Value: uint32(databaseID)},
		dmap.Node{Tag: "mper", Value: s.cfg.PersistentID},
		dmap.Node{Tag: "minm", Value: s.cfg.Name},
		dmap.Node{Tag: "mimc", Value: uint32(len(s.catalog.Items()))},
		dmap.Node{Tag: "mctc", Value: uint32(len(s.playlists.All()))},
	)
	writeDMAP(w, listing("avdb", []dmap.Node{db}))
}

func (s *Server) items(w http.ResponseWriter, r *http.Request) {
	items := s.catalog.Items()
	nodes := make([]dmap.Node, 0, len(items))
	for _, item := range items {
		nodes = append(nodes, s.translator.Translate(item).Node())
	}
	writeDMAP(w, listing("adbs", nodes))
}

func (s *Server) containers(w http.ResponseWriter, r *http.Request) {
	nodes := make([]dmap.Node, 0)
	for _, p := range s.playlists.All() {
		nodes = append(nodes, wire.TranslatePlaylist(p).Node())
	}
	writeDMAP(w, listing("aply", nodes))
}

// containerItems lists the members of a playlist that the catalog still
// holds; ids without an item are skipped.
func (s *Server) containerItems(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}
	if _, ok := s.playlists.Get(id); !ok {
		writeStatus(w, http.StatusNotFound)
		return
	}

	nodes := make([]dmap.Node, 0)
	for _, itemID := range s.playlists.ItemsOf(id) {
		item, err := s.catalog.Get(itemID)
		if err != nil {
			continue
		}
		nodes = append(nodes, s.translator.Translate(item).Node())
	}
	writeDMAP(w, listing("apso", nodes))
}

func (s *Server) streamItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(chi.URLParam(r, "item"))
	if !ok {
		writeStatus(w, http.StatusBadRequest)
		return
	}
	item, err := s.catalog.Get(id)
	if err != nil {
		writeStatus(w, http.StatusNotFound)
		return
	}

	s.logger.Debug().Int64("id", id).Str("remote", r.RemoteAddr).Msg("streaming item")
	s.streamer.ServeFile(w, r, item.Path)
}

func (s *Server) itemArtwork(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(chi.URLParam(r, "item"))
	if !ok {
		writeStatus(w, http.StatusBadRequest)
		return
	}
	item, err := s.catalog.Get(id)
	if err != nil || s.artwork == nil {
		writeStatus(w, http.StatusNotFound)
		return
	}

	data, mime, err := s.artwork.Artwork(r.Context(), item)
	if err != nil {
		if !errors.Is(err, media.ErrNoArtwork) {
			s.logger.Warn().Err(err).Int64("id", id).Msg("artwork failed")
		}
		writeStatus(w, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("DAAP-Server", ServerName)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// listing wraps records in the standard listing envelope.
func listing(tag string, records []dmap.Node) dmap.Node {
	return dmap.Container(tag,
		dmap.Node{Tag: "mstt", Value: statusOK},
		dmap.Node{Tag: "muty", Value: uint8(0)},
		dmap.Node{Tag: "mtco", Value: uint32(len(records))},
		dmap.Node{Tag: "mrco", Value: uint32(len(records))},
		dmap.Container("mlcl", records...),
	)
}

// itemID accepts "42" and "42.mp3".
func itemID(s string) (int64, bool) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}
