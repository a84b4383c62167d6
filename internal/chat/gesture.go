package chat

const (
	// SwipeThreshold is the net rightward displacement a drag needs to
	// start a reply.
	SwipeThreshold = 80.0
	// MaxDragOffset caps the visual offset while dragging.
	MaxDragOffset = 100.0
)

// Gestures maps secondary activation and horizontal drag-release on log
// entries to reply actions. It keeps only UI-side drag state; begin is
// called with the entry's sequence number and is expected to route to
// Session.TryReplyAt on the session goroutine.
type Gestures struct {
	begin func(seq int)

	active bool
	seq    int
	startX float64
	offset float64
}

func NewGestures(begin func(seq int)) *Gestures {
	return &Gestures{begin: begin}
}

// Activate is the secondary activation (reply control, double click).
func (g *Gestures) Activate(seq int) {
	g.begin(seq)
}

// DragStart begins tracking a drag on entry seq at position x. A drag that
// was still active is abandoned.
func (g *Gestures) DragStart(seq int, x float64) {
	g.active = true
	g.seq = seq
	g.startX = x
	g.offset = 0
}

// DragMove returns the clamped visual offset for position x. Leftward
// movement gives no feedback.
func (g *Gestures) DragMove(x float64) float64 {
	if !g.active {
		return 0
	}
	g.offset = max(0, min(x-g.startX, MaxDragOffset))
	return g.offset
}

// DragEnd finishes the drag at x. The offset always returns to zero; the
// reply starts only when the net displacement exceeds SwipeThreshold.
func (g *Gestures) DragEnd(x float64) bool {
	if !g.active {
		return false
	}
	g.active = false
	g.offset = 0
	if x > g.startX+SwipeThreshold {
		g.begin(g.seq)
		return true
	}
	return false
}

// Cancel drops an active drag without replying.
func (g *Gestures) Cancel() {
	g.active = false
	g.offset = 0
}

func (g *Gestures) Dragging() bool  { return g.active }
func (g *Gestures) Entry() int      { return g.seq }
func (g *Gestures) Offset() float64 { return g.offset }
