package pipeline

import (
	"fmt"

	"shapebot/internal/domain"
)

const DefaultAttributionTemplate = "Usuário %s disse: %s"

// AssemblePrompt builds the generation prompt for a message. The text part is
// attributed to name and omitted when text is empty; audio is preferred over
// image and at most one media part is added.
func AssemblePrompt(text string, media Media, name, template string) domain.Prompt {
	if template == "" {
		template = DefaultAttributionTemplate
	}

	var parts []domain.ContentPart
	if text != "" {
		parts = append(parts, domain.TextPart(fmt.Sprintf(template, name, text)))
	}
	if media.AudioURL != "" {
		parts = append(parts, domain.AudioPart(media.AudioURL))
	} else if media.ImageURL != "" {
		parts = append(parts, domain.ImagePart(media.ImageURL))
	}
	return domain.PartsPrompt(parts)
}
