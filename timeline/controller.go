package timeline

import (
	"fmt"
	"time"

	"github.com/ifsi-tools/dossier-api/dossier"
)

// State is the controller's interaction state.
type State int

const (
	StateIdle State = iota
	StateDrawing
	StateResizing
	StateMoving
)

// Zone identifies what the pointer went down on inside a timeline row.
type Zone int

const (
	// ZoneBackground is the empty grid behind the bars.
	ZoneBackground Zone = iota
	// ZoneBarBody is the draggable body of an existing bar.
	ZoneBarBody
	// ZoneBarHandle is the resize handle at a bar's right edge.
	ZoneBarHandle
)

// RowKind tells the controller whether the row renders interval bars or
// zero-width point markers.
type RowKind int

const (
	RowBars RowKind = iota
	RowMarkers
)

// RowKindFor maps a prescription type to its rendering kind.
func RowKindFor(t dossier.PrescriptionType) RowKind {
	if t == dossier.PrescriptionMarqueur {
		return RowMarkers
	}
	return RowBars
}

// Labels carries the derived display strings for one bar: the tooltip and
// the two floating time labels. Marker rows only show a start time.
type Labels struct {
	Start   string
	End     string
	Tooltip string
}

// Controller runs the drag interaction for one prescription row. It owns a
// working copy of the row's bars; the caller commits them back into the
// prescription when PointerUp reports a change.
type Controller struct {
	grid Grid
	kind RowKind
	bars []dossier.Bar

	state  State
	active int
	anchor float64 // pointer-down position, snapped percent
	left0  float64 // geometry of the active bar at pointer-down
	width0 float64

	entryDate time.Time

	// confirm gates double-click deletion; a nil confirm refuses deletes.
	confirm func(prompt string) bool
	// onChange signals that the row needs a save.
	onChange func()
}

// NewController builds a controller for one row.
func NewController(grid Grid, kind RowKind, bars []dossier.Bar, entryDate time.Time, confirm func(string) bool, onChange func()) *Controller {
	return &Controller{
		grid:      grid,
		kind:      kind,
		bars:      append([]dossier.Bar(nil), bars...),
		state:     StateIdle,
		active:    -1,
		entryDate: entryDate,
		confirm:   confirm,
		onChange:  onChange,
	}
}

// State returns the current interaction state.
func (c *Controller) State() State { return c.state }

// Bars returns the current working geometry.
func (c *Controller) Bars() []dossier.Bar {
	return append([]dossier.Bar(nil), c.bars...)
}

// PointerDown starts an interaction. The zone decides the transition:
// background starts a draw, a bar body starts a move, a resize handle
// starts a resize. Resizing a marker row is ignored; markers have no width
// to resize.
func (c *Controller) PointerDown(zone Zone, barIndex int, xPx float64) {
	if c.state != StateIdle {
		return
	}
	p := c.grid.Snap(c.grid.PercentAt(xPx))

	switch zone {
	case ZoneBackground:
		bar := dossier.Bar{Left: p, Width: 0}
		c.bars = append(c.bars, bar)
		c.active = len(c.bars) - 1
		c.anchor = p
		c.left0 = p
		c.width0 = 0
		c.state = StateDrawing

	case ZoneBarBody:
		if barIndex < 0 || barIndex >= len(c.bars) {
			return
		}
		c.active = barIndex
		c.anchor = p
		c.left0 = c.bars[barIndex].Left
		c.width0 = c.bars[barIndex].Width
		c.state = StateMoving

	case ZoneBarHandle:
		if c.kind == RowMarkers {
			return
		}
		if barIndex < 0 || barIndex >= len(c.bars) {
			return
		}
		c.active = barIndex
		c.anchor = p
		c.left0 = c.bars[barIndex].Left
		c.width0 = c.bars[barIndex].Width
		c.state = StateResizing
	}
}

// PointerMove recomputes the active bar's geometry from the pointer
// position, snapped and clamped so the bar never leaves the grid and never
// goes negative.
func (c *Controller) PointerMove(xPx float64) {
	if c.state == StateIdle || c.active < 0 {
		return
	}
	p := c.grid.Snap(c.grid.PercentAt(xPx))
	bar := &c.bars[c.active]

	switch c.state {
	case StateDrawing:
		if c.kind == RowMarkers {
			// Drawing on a marker row only repositions the point; it never
			// gains width.
			bar.Left = clamp(p, 0, 100)
			bar.Width = 0
			return
		}
		left := c.anchor
		width := p - c.anchor
		if width < 0 {
			left = p
			width = -width
		}
		c.place(bar, left, width)

	case StateMoving:
		left := c.left0 + (p - c.anchor)
		c.place(bar, left, c.width0)

	case StateResizing:
		width := p - c.left0
		c.place(bar, c.left0, width)
	}
}

// PointerUp snaps the final geometry once more (sub-pixel drift from the
// last move is discarded), returns to idle, and reports whether the row
// changed and needs a save.
func (c *Controller) PointerUp() bool {
	if c.state == StateIdle {
		return false
	}
	bar := &c.bars[c.active]
	c.place(bar, c.grid.Snap(bar.Left), c.grid.Snap(bar.Width))
	bar.Title = c.tooltip(*bar)

	c.state = StateIdle
	c.active = -1
	c.signalChange()
	return true
}

// DoubleClick asks for confirmation and deletes the bar together with its
// time labels. Returns true when the bar was removed.
func (c *Controller) DoubleClick(barIndex int) bool {
	if c.state != StateIdle || barIndex < 0 || barIndex >= len(c.bars) {
		return false
	}
	if c.confirm == nil || !c.confirm("Supprimer cette administration ?") {
		return false
	}
	c.bars = append(c.bars[:barIndex], c.bars[barIndex+1:]...)
	c.signalChange()
	return true
}

// Labels derives the tooltip and floating time labels for one bar from the
// entry-date anchor and the bar's position within the grid.
func (c *Controller) Labels(barIndex int) Labels {
	if barIndex < 0 || barIndex >= len(c.bars) {
		return Labels{}
	}
	bar := c.bars[barIndex]
	start := c.grid.TimeAt(c.entryDate, bar.Left)
	if c.kind == RowMarkers {
		s := start.Format("02/01 15:04")
		return Labels{Start: s, Tooltip: s}
	}
	end := c.grid.TimeAt(c.entryDate, bar.Left+bar.Width)
	return Labels{
		Start:   start.Format("02/01 15:04"),
		End:     end.Format("02/01 15:04"),
		Tooltip: fmt.Sprintf("%s - %s", start.Format("02/01 15:04"), end.Format("02/01 15:04")),
	}
}

// place writes clamped geometry into bar: left stays in [0, 100-width],
// width keeps at least one snap unit (or exactly zero on marker rows) and
// the bar never extends past the right edge.
func (c *Controller) place(bar *dossier.Bar, left, width float64) {
	if c.kind == RowMarkers {
		bar.Left = clamp(left, 0, 100)
		bar.Width = 0
		return
	}
	unit := c.grid.SnapUnit()
	if width < unit {
		width = unit
	}
	if width > 100 {
		width = 100
	}
	left = clamp(left, 0, 100-width)
	bar.Left = left
	bar.Width = width
}

func (c *Controller) tooltip(bar dossier.Bar) string {
	start := c.grid.TimeAt(c.entryDate, bar.Left)
	if c.kind == RowMarkers {
		return start.Format("02/01 15:04")
	}
	end := c.grid.TimeAt(c.entryDate, bar.Left+bar.Width)
	return fmt.Sprintf("%s - %s", start.Format("02/01 15:04"), end.Format("02/01 15:04"))
}

func (c *Controller) signalChange() {
	if c.onChange != nil {
		c.onChange()
	}
}
