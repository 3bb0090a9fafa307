// Package wire projects catalog items and playlists into the attribute set
// sent to share clients.
package wire

import (
	"math"

	"mediashare/internal/catalog"
	"mediashare/internal/dmap"
	"mediashare/internal/playlist"
)

// MediaKind is the aeMK value. The protocol has no generic-file kind.
type MediaKind uint32

const (
	MediaKindAudio MediaKind = 1
	MediaKindVideo MediaKind = 2
)

// item kind (mikd) for every listed item
const itemKindMedia uint8 = 2

type Item struct {
	ID       int64
	Name     string
	Format   string
	Size     int64
	Duration int64 // milliseconds
	Kind     MediaKind
}

type Playlist struct {
	ID           int64
	PersistentID int64
	Title        string
	ParentID     int64
	ItemCount    int
}

func TranslateItem(item catalog.Item) Item {
	return Item{
		ID:       item.ID,
		Name:     item.Name,
		Format:   item.Extension,
		Size:     item.Size,
		Duration: item.Duration.Milliseconds(),
		Kind:     kindTag(item.Kind),
	}
}

func kindTag(k catalog.Kind) MediaKind {
	if k == catalog.KindVideo {
		return MediaKindVideo
	}
	return MediaKindAudio
}

// TranslatePlaylist fills parent container and item count with zero: nested
// containers are not modelled.
func TranslatePlaylist(p playlist.Playlist) Playlist {
	return Playlist{
		ID:           p.ID,
		PersistentID: p.ID,
		Title:        p.Title,
		ParentID:     0,
		ItemCount:    0,
	}
}

func (i Item) Node() dmap.Node {
	return dmap.Container("mlit",
		dmap.Node{Tag: "mikd", Value: itemKindMedia},
		dmap.Node{Tag: "miid", Value: uint32(i.ID)},
		dmap.Node{Tag: "minm", Value: i.Name},
		dmap.Node{Tag: "asfm", Value: i.Format},
		dmap.Node{Tag: "assz", Value: clampUint32(i.Size)},
		dmap.Node{Tag: "astm", Value: clampUint32(i.Duration)},
		dmap.Node{Tag: "aeMK", Value: uint32(i.Kind)},
	)
}

func (p Playlist) Node() dmap.Node {
	return dmap.Container("mlit",
		dmap.Node{Tag: "miid", Value: uint32(p.ID)},
		dmap.Node{Tag: "mper", Value: uint64(p.PersistentID)},
		dmap.Node{Tag: "minm", Value: p.Title},
		dmap.Node{Tag: "mpco", Value: uint32(p.ParentID)},
		dmap.Node{Tag: "mimc", Value: uint32(p.ItemCount)},
	)
}

// clampUint32 saturates v into a 32-bit field. Files of 4 GiB or more report
// the maximum rather than wrapping to a small size.
func clampUint32(v int64) uint32 {
	switch {
	case v <= 0:
		return 0
	case v > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(v)
	}
}
