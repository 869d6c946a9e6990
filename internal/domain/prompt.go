package domain

import (
	"encoding/json"
	"fmt"
)

// Content part types understood by the generation backend.
const (
	PartText  = "text"
	PartImage = "image_url"
	PartAudio = "audio_url"
)

// MediaURL wraps a media reference the way the backend expects it.
type MediaURL struct {
	URL string `json:"url"`
}

// ContentPart is one typed element of a multimodal prompt.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *MediaURL `json:"image_url,omitempty"`
	AudioURL *MediaURL `json:"audio_url,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart builds an image reference part.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartImage, ImageURL: &MediaURL{URL: url}}
}

// AudioPart builds an audio reference part.
func AudioPart(url string) ContentPart {
	return ContentPart{Type: PartAudio, AudioURL: &MediaURL{URL: url}}
}

// Prompt is either plain text or an ordered list of content parts. A prompt
// holding a single text part is always stored flattened to plain text.
type Prompt struct {
	text  string
	parts []ContentPart
}

// TextPrompt returns a plain-text prompt.
func TextPrompt(text string) Prompt {
	return Prompt{text: text}
}

// PartsPrompt returns a prompt from content parts, flattening a lone text
// part to plain text. An empty list stays a (serialized empty) part list.
func PartsPrompt(parts []ContentPart) Prompt {
	if len(parts) == 1 && parts[0].Type == PartText {
		return Prompt{text: parts[0].Text}
	}
	if parts == nil {
		parts = []ContentPart{}
	}
	return Prompt{parts: parts}
}

// IsText reports whether the prompt serializes as a bare string.
func (p Prompt) IsText() bool { return p.parts == nil }

// Text returns the plain-text form; empty for multipart prompts.
func (p Prompt) Text() string { return p.text }

// Parts returns the content parts; nil for plain-text prompts.
func (p Prompt) Parts() []ContentPart { return p.parts }

func (p Prompt) MarshalJSON() ([]byte, error) {
	if p.IsText() {
		return json.Marshal(p.text)
	}
	return json.Marshal(p.parts)
}

func (p *Prompt) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = TextPrompt(s)
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("prompt must be a string or a content part array: %w", err)
	}
	*p = PartsPrompt(parts)
	return nil
}

// GenerationRequest is the body posted to the generation backend.
type GenerationRequest struct {
	Prompt    Prompt `json:"prompt"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
}
