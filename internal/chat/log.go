package chat

import "github.com/chatverso/internal/model"

type EntryKind int

const (
	EntryMessage EntryKind = iota
	EntrySystem
)

type Align int

const (
	AlignLeft Align = iota
	AlignRight
	AlignCenter
)

// Entry is one line of the timeline. Message entries carry the structured
// message so reply targets never have to be parsed back out of display text.
type Entry struct {
	Seq     int
	Kind    EntryKind
	Message *model.Message
	Notice  string
	Self    bool
	// LocalName is the local display name at append time; self entries are
	// attributed to it.
	LocalName string
}

// Rendered is the presentation of an entry.
type Rendered struct {
	Align Align
	// Color is empty for self and system entries.
	Color string
	// Quote is "<author>\n<text>" for threaded messages.
	Quote string
	Text  string
}

// Render applies the display rules: self messages are right aligned, plain,
// and show only the text; other messages are left aligned, colored, and
// prefixed with "<author>: ".
func (e Entry) Render() Rendered {
	if e.Kind == EntrySystem {
		return Rendered{Align: AlignCenter, Text: e.Notice}
	}
	m := e.Message
	var r Rendered
	if m.ReplyTo != nil {
		r.Quote = m.ReplyTo.AuthorName + "\n" + m.ReplyTo.PreviewText
	}
	if e.Self {
		r.Align = AlignRight
		r.Text = m.Text
		return r
	}
	r.Align = AlignLeft
	r.Color = m.Color
	r.Text = m.Author.DisplayName + ": " + m.Text
	return r
}

// Ref returns the addressable (id, author, text) triple of a message entry.
// System notices are not addressable.
func (e Entry) Ref() (model.MessageRef, bool) {
	if e.Kind != EntryMessage || e.Message == nil || e.Message.ID == "" {
		return model.MessageRef{}, false
	}
	ref := e.Message.Ref()
	if e.Self && e.LocalName != "" {
		ref.AuthorName = e.LocalName
	}
	return ref, true
}

// Log is the append-only timeline of messages and system notices.
type Log struct {
	entries []Entry
	byID    map[string]int
}

func NewLog() *Log {
	return &Log{byID: make(map[string]int)}
}

// AppendMessage classifies msg against the local connection id and appends it.
func (l *Log) AppendMessage(msg model.Message, local model.Identity) Entry {
	e := Entry{
		Seq:       len(l.entries),
		Kind:      EntryMessage,
		Message:   &msg,
		Self:      msg.AuthoredBy(local.ConnectionID),
		LocalName: local.DisplayName,
	}
	l.entries = append(l.entries, e)
	if msg.ID != "" {
		if _, dup := l.byID[msg.ID]; !dup {
			l.byID[msg.ID] = e.Seq
		}
	}
	return e
}

func (l *Log) AppendNotice(text string) Entry {
	e := Entry{Seq: len(l.entries), Kind: EntrySystem, Notice: text}
	l.entries = append(l.entries, e)
	return e
}

func (l *Log) Len() int { return len(l.entries) }

func (l *Log) At(seq int) (Entry, bool) {
	if seq < 0 || seq >= len(l.entries) {
		return Entry{}, false
	}
	return l.entries[seq], true
}

// Lookup finds the first entry carrying messageID.
func (l *Log) Lookup(messageID string) (Entry, bool) {
	seq, ok := l.byID[messageID]
	if !ok {
		return Entry{}, false
	}
	return l.entries[seq], true
}

// Entries returns a copy of the timeline.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// LastFromOthers returns the newest message entry not authored locally.
func (l *Log) LastFromOthers() (Entry, bool) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if e.Kind == EntryMessage && !e.Self {
			return e, true
		}
	}
	return Entry{}, false
}
