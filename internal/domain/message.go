package domain

import "time"

// Attachment is a file reference carried by an incoming chat message.
type Attachment struct {
	URL      string
	Filename string
}

// IncomingMessage is one chat event as seen by the pipeline. It lives for a
// single invocation.
type IncomingMessage struct {
	ID              string
	GuildID         string
	ChannelID       string
	AuthorID        string
	AuthorName      string // account username
	DisplayName     string // guild nickname, empty when unset
	AuthorIsBot     bool
	Content         string
	Attachments     []Attachment
	ReplyToAuthorID string // author of the referenced message, empty when not a reply
	Timestamp       time.Time
}

// Name returns the guild nickname when set, otherwise the username.
func (m IncomingMessage) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.AuthorName
}

// HistoryMessage is one entry of the recent-channel window sent to the
// relevance classifier and, on approval, to the generation backend.
type HistoryMessage struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

// File is a binary artifact attached to a reply.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Reply is one delivery back to the originating channel.
type Reply struct {
	Content string
	Files   []File
}

// IsEmpty reports whether the reply carries nothing to send.
func (r Reply) IsEmpty() bool {
	return r.Content == "" && len(r.Files) == 0
}
