package model

// Identity is who authored a message. ConnectionID is assigned by the transport
// per live connection and is the only basis for deciding "is this mine";
// DisplayName may collide across users.
type Identity struct {
	DisplayName  string `json:"username"`
	ConnectionID string `json:"sid"`
}

// Message is an immutable chat message as projected into the log.
type Message struct {
	ID      string      `json:"id"`
	Text    string      `json:"text"`
	Author  Identity    `json:"author"`
	Color   string      `json:"color"`
	ReplyTo *MessageRef `json:"reply_to,omitempty"`
}

// MessageRef points at a message being replied to. Author and text are copied
// so the reference stays renderable without the original log entry.
type MessageRef struct {
	MessageID   string `json:"message_id"`
	AuthorName  string `json:"author_name"`
	PreviewText string `json:"preview_text"`
}

// AuthoredBy reports whether the message came from the given connection.
// An empty connection id never matches.
func (m *Message) AuthoredBy(connectionID string) bool {
	return connectionID != "" && m.Author.ConnectionID == connectionID
}

// Ref snapshots the message as a reply target.
func (m *Message) Ref() MessageRef {
	return MessageRef{
		MessageID:   m.ID,
		AuthorName:  m.Author.DisplayName,
		PreviewText: m.Text,
	}
}
