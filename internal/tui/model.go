// Package tui is the terminal front end of the chat client. It renders the
// session's log, typing line and reply banner, and feeds keyboard and mouse
// input back to the session.
package tui

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chatverso/internal/chat"
	"github.com/chatverso/internal/logger"
	"github.com/chatverso/internal/model"
)

const (
	doubleClickInterval = 400 * time.Millisecond
	// rows below the log: typing line, reply banner, input, status
	chromeHeight = 4
)

// Poster schedules work on the session goroutine (chat.Session.Post).
type Poster func(func(*chat.Session)) bool

type Model struct {
	post     Poster
	name     string
	input    textinput.Model
	viewport viewport.Model
	gestures *chat.Gestures

	entries []chat.Entry
	// lines maps each content line of the viewport to an entry seq, -1 for
	// padding.
	lines  []int
	typing string
	reply  *model.MessageRef
	state  chat.State

	lastClick    time.Time
	lastClickSeq int
	// submits cleared locally whose InputCleared is still in flight
	pendingClears int

	width, height int
	ready         bool
}

func New(post Poster, name string) *Model {
	in := textinput.New()
	in.Placeholder = chat.Placeholder(nil)
	in.Prompt = "> "
	in.CharLimit = 2000
	in.Focus()

	m := &Model{
		post:         post,
		name:         name,
		input:        in,
		lastClickSeq: -1,
	}
	m.gestures = chat.NewGestures(func(seq int) {
		m.post(func(s *chat.Session) { s.TryReplyAt(seq) })
	})
	return m
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := max(1, msg.Height-chromeHeight)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.viewport.Width, m.viewport.Height = msg.Width, h
		}
		m.input.Width = max(10, msg.Width-4)
		m.refresh(true)
		return m, nil

	case appendedMsg:
		m.entries = append(m.entries, msg.entry)
		m.refresh(true)
		return m, nil

	case typingMsg:
		m.typing = msg.display
		return m, nil

	case replyMsg:
		m.reply = msg.ref
		m.input.Placeholder = chat.Placeholder(msg.ref)
		return m, nil

	case inputClearedMsg:
		// enter already cleared the input; later keystrokes must survive
		if m.pendingClears > 0 {
			m.pendingClears--
			return m, nil
		}
		m.input.SetValue("")
		return m, nil

	case stateMsg:
		m.state = msg.state
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.post(func(s *chat.Session) { s.Escape() })
		return m, nil
	case "enter":
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.pendingClears++
		posted := m.post(func(s *chat.Session) {
			if err := s.Submit(text); err != nil && !errors.Is(err, chat.ErrEmptyMessage) {
				logger.Errorf("tui: submit: %v", err)
			}
		})
		if !posted {
			m.pendingClears--
			return m, nil
		}
		m.input.SetValue("")
		return m, nil
	case "ctrl+r":
		m.post(func(s *chat.Session) {
			if e, ok := s.Log().LastFromOthers(); ok {
				s.TryReplyAt(e.Seq)
			}
		})
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.post(func(s *chat.Session) { s.Input() })
	}
	return m, cmd
}

func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if tea.MouseEvent(msg).IsWheel() {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	x := float64(msg.X) * cellUnits
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		seq := m.entryAt(msg.Y)
		if seq < 0 {
			m.gestures.Cancel()
			return m, nil
		}
		now := time.Now()
		if seq == m.lastClickSeq && now.Sub(m.lastClick) <= doubleClickInterval {
			m.gestures.Activate(seq)
			m.lastClickSeq = -1
			return m, nil
		}
		m.lastClick, m.lastClickSeq = now, seq
		m.gestures.DragStart(seq, x)
	case tea.MouseActionMotion:
		if m.gestures.Dragging() {
			m.gestures.DragMove(x)
			m.refresh(false)
		}
	case tea.MouseActionRelease:
		if m.gestures.Dragging() {
			m.gestures.DragEnd(x)
			m.refresh(false)
		}
	}
	return m, nil
}

// entryAt maps a screen row to an entry seq.
func (m *Model) entryAt(row int) int {
	if !m.ready || row < 0 || row >= m.viewport.Height {
		return -1
	}
	i := m.viewport.YOffset + row
	if i < 0 || i >= len(m.lines) {
		return -1
	}
	return m.lines[i]
}

// refresh re-renders the log. bottom scrolls to the newest entry.
func (m *Model) refresh(bottom bool) {
	if !m.ready {
		return
	}
	dragSeq, dragCols := m.dragShift()
	content, lines := renderLog(m.entries, m.viewport.Width, dragSeq, dragCols)
	m.lines = lines
	m.viewport.SetContent(content)
	if bottom {
		m.viewport.GotoBottom()
	}
}

// dragShift returns the entry being dragged and its offset in columns.
func (m *Model) dragShift() (int, int) {
	if !m.gestures.Dragging() {
		return -1, 0
	}
	return m.gestures.Entry(), int(m.gestures.Offset() / cellUnits)
}

func renderLog(entries []chat.Entry, width, dragSeq, dragCols int) (string, []int) {
	var (
		b     strings.Builder
		lines []int
	)
	for _, e := range entries {
		offset := 0
		if e.Seq == dragSeq {
			offset = dragCols
		}
		block := renderEntry(e, width, offset)
		for _, l := range strings.Split(block, "\n") {
			if len(lines) > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(l)
			lines = append(lines, e.Seq)
		}
	}
	return b.String(), lines
}

func renderEntry(e chat.Entry, width, offset int) string {
	r := e.Render()
	if e.Kind == chat.EntrySystem {
		return noticeStyle.Width(width).Render(r.Text)
	}
	inner := max(1, width-offset)
	var parts []string
	if r.Quote != "" {
		parts = append(parts, quoteStyle.Render(r.Quote))
	}
	text := lipgloss.NewStyle()
	if r.Color != "" {
		text = text.Foreground(lipgloss.Color(r.Color))
	}
	parts = append(parts, text.Render(r.Text))
	body := lipgloss.JoinVertical(lipgloss.Left, parts...)

	style := otherStyle
	if r.Align == chat.AlignRight {
		style = selfStyle
		body = lipgloss.JoinVertical(lipgloss.Right, parts...)
	}
	return style.Width(inner).MarginLeft(offset).Render(body)
}

func (m *Model) View() string {
	if !m.ready {
		return "connecting..."
	}
	preview := ""
	if m.reply != nil {
		preview = previewStyle.Render(chat.PreviewText(m.reply) + "  (esc to cancel)")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		typingStyle.Render(m.typing),
		preview,
		m.input.View(),
		statusStyle.Render(m.status()),
	)
}

func (m *Model) status() string {
	switch m.state {
	case chat.Joined:
		return "joined as " + m.name + " · enter send · esc cancel reply · ctrl+r reply · ctrl+c quit"
	case chat.Connected:
		return "connected (no username, read only)"
	default:
		return "disconnected · ctrl+c quit"
	}
}
