package chat

import "github.com/chatverso/internal/model"

const defaultPlaceholder = "Type your message..."

// ReplyContext holds at most one reply target. The latest Begin wins.
type ReplyContext struct {
	ref *model.MessageRef
}

func (r *ReplyContext) Begin(ref model.MessageRef) {
	r.ref = &ref
}

// Clear drops the target. It reports whether one was set.
func (r *ReplyContext) Clear() bool {
	had := r.ref != nil
	r.ref = nil
	return had
}

// Current returns a copy of the target, or nil.
func (r *ReplyContext) Current() *model.MessageRef {
	if r.ref == nil {
		return nil
	}
	ref := *r.ref
	return &ref
}

// Placeholder is the compose box hint for the given reply state.
func Placeholder(ref *model.MessageRef) string {
	if ref == nil {
		return defaultPlaceholder
	}
	return "Replying to " + ref.AuthorName + "..."
}

// PreviewText is the banner shown above the compose box while replying.
// It is empty when there is no target.
func PreviewText(ref *model.MessageRef) string {
	if ref == nil {
		return ""
	}
	return "Replying to " + ref.AuthorName + ": " + ref.PreviewText
}
