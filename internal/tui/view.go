package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatverso/internal/chat"
	"github.com/chatverso/internal/model"
)

type appendedMsg struct{ entry chat.Entry }

type typingMsg struct{ display string }

type replyMsg struct{ ref *model.MessageRef }

type inputClearedMsg struct{}

type stateMsg struct{ state chat.State }

// View forwards session updates into the bubbletea program. Its methods run
// on the session goroutine; send must be safe to call from there
// (tea.Program.Send is).
type View struct {
	send func(tea.Msg)
}

func NewView(send func(tea.Msg)) *View {
	return &View{send: send}
}

func (v *View) Appended(e chat.Entry)              { v.send(appendedMsg{entry: e}) }
func (v *View) TypingChanged(display string)       { v.send(typingMsg{display: display}) }
func (v *View) ReplyChanged(ref *model.MessageRef) { v.send(replyMsg{ref: ref}) }
func (v *View) InputCleared()                      { v.send(inputClearedMsg{}) }
func (v *View) StateChanged(st chat.State)         { v.send(stateMsg{state: st}) }

// Disconnected lets the host report the end of the transport after the
// session loop has exited.
func (v *View) Disconnected() { v.send(stateMsg{state: chat.Disconnected}) }
