package media

import (
	"errors"
	"os"
	"strings"

	"github.com/dhowden/tag"
)

var ErrNoArtwork = errors.New("no artwork")

func readTags(path string) (tag.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return tag.ReadFrom(f)
}

// TagTitle returns the embedded title of an audio file, or "".
func TagTitle(path string) string {
	m, err := readTags(path)
	if err != nil {
		return ""
	}
	title := strings.TrimSpace(m.Title())
	if title == "" {
		return ""
	}
	if artist := strings.TrimSpace(m.Artist()); artist != "" {
		return artist + " - " + title
	}
	return title
}

// TagArtwork returns the embedded cover picture and its MIME type.
func TagArtwork(path string) ([]byte, string, error) {
	m, err := readTags(path)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return nil, "", ErrNoArtwork
		}
		return nil, "", err
	}

	pic := m.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return nil, "", ErrNoArtwork
	}

	mime := pic.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return pic.Data, mime, nil
}
