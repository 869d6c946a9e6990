package pipeline

import (
	"testing"

	"shapebot/internal/domain"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		att  domain.Attachment
		want MediaKind
	}{
		{"png", domain.Attachment{Filename: "a.png"}, MediaImage},
		{"upper jpeg", domain.Attachment{Filename: "PHOTO.JPEG"}, MediaImage},
		{"webp", domain.Attachment{Filename: "x.webp"}, MediaImage},
		{"ogg", domain.Attachment{Filename: "voice.ogg"}, MediaAudio},
		{"wav", domain.Attachment{Filename: "a.WAV"}, MediaAudio},
		{"pdf", domain.Attachment{Filename: "doc.pdf"}, MediaUnknown},
		{"gif", domain.Attachment{Filename: "anim.gif"}, MediaUnknown},
		{"no ext", domain.Attachment{Filename: "README"}, MediaUnknown},
		{"url with query", domain.Attachment{URL: "https://cdn.example/x/a.mp3?ex=1&is=2"}, MediaAudio},
		{"filename wins", domain.Attachment{URL: "https://cdn.example/blob", Filename: "b.jpg"}, MediaImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.att); got != tt.want {
				t.Fatalf("KindOf(%+v) = %d, want %d", tt.att, got, tt.want)
			}
		})
	}
}

func TestClassifyAttachments_LastWins(t *testing.T) {
	atts := []domain.Attachment{
		{URL: "u/a.png", Filename: "a.png"},
		{URL: "u/b.png", Filename: "b.png"},
		{URL: "u/c.mp3", Filename: "c.mp3"},
	}
	got := ClassifyAttachments(atts)
	if got.ImageURL != "u/b.png" {
		t.Fatalf("expected image u/b.png, got %q", got.ImageURL)
	}
	if got.AudioURL != "u/c.mp3" {
		t.Fatalf("expected audio u/c.mp3, got %q", got.AudioURL)
	}
}

func TestClassifyAttachments_Empty(t *testing.T) {
	got := ClassifyAttachments(nil)
	if got != (Media{}) {
		t.Fatalf("expected empty media, got %+v", got)
	}
	got = ClassifyAttachments([]domain.Attachment{{URL: "u/x.zip", Filename: "x.zip"}})
	if got != (Media{}) {
		t.Fatalf("expected unknown attachment to be ignored, got %+v", got)
	}
}
