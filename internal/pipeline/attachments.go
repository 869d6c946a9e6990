package pipeline

import (
	"net/url"
	"path"
	"strings"

	"shapebot/internal/domain"
)

// MediaKind classifies an attachment by its file extension.
type MediaKind int

const (
	MediaUnknown MediaKind = iota
	MediaImage
	MediaAudio
)

var (
	imageExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true}
	audioExts = map[string]bool{"mp3": true, "wav": true, "ogg": true}
)

// Media holds the attachments selected for the prompt. Either field may be
// empty.
type Media struct {
	ImageURL string
	AudioURL string
}

// KindOf classifies an attachment by the extension of its filename, falling
// back to the URL path. Query strings and fragments are ignored and the
// comparison is case-insensitive.
func KindOf(a domain.Attachment) MediaKind {
	name := a.Filename
	if name == "" {
		name = a.URL
		if u, err := url.Parse(a.URL); err == nil {
			name = u.Path
		}
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	switch {
	case imageExts[ext]:
		return MediaImage
	case audioExts[ext]:
		return MediaAudio
	}
	return MediaUnknown
}

// ClassifyAttachments picks at most one image and one audio URL. When several
// attachments share a kind, the last one wins.
func ClassifyAttachments(atts []domain.Attachment) Media {
	var m Media
	for _, a := range atts {
		switch KindOf(a) {
		case MediaImage:
			m.ImageURL = a.URL
		case MediaAudio:
			m.AudioURL = a.URL
		}
	}
	return m
}
