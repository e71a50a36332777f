// Package interact turns pointer and keyboard input into scene mutations.
//
// The Controller is an explicit state machine with three states: Idle,
// DraggingText and DraggingImage. A drag always belongs to exactly one
// layer, so it is not possible to drag a text and an image layer at once.
package interact

import (
	"fmt"

	"github.com/gogpu/gg"

	"github.com/gogpu/behind/hittest"
	"github.com/gogpu/behind/internal/logx"
	"github.com/gogpu/behind/scene"
)

// State is the controller state.
type State int

const (
	Idle State = iota
	DraggingText
	DraggingImage
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DraggingText:
		return "dragging-text"
	case DraggingImage:
		return "dragging-image"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Cursor is the pointer shape a host should display over the canvas.
type Cursor string

const (
	CursorCrosshair Cursor = "crosshair"
	CursorGrab      Cursor = "grab"
	CursorGrabbing  Cursor = "grabbing"
)

// Key identifies a keyboard key the controller reacts to.
type Key string

// KeyDelete is the forward-delete key.
const KeyDelete Key = "Delete"

// Controller routes input to a scene. It is not safe for concurrent use; the
// caller serialises input with every other scene mutation.
type Controller struct {
	scene *scene.Scene
	m     hittest.Measurer

	state  State
	target scene.ID
	offset gg.Point // pointer minus layer position at drag start
	cursor Cursor
}

// New returns an idle controller for sc, measuring text with m.
func New(sc *scene.Scene, m hittest.Measurer) *Controller {
	return &Controller{scene: sc, m: m, cursor: CursorCrosshair}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Dragged returns the layer being dragged, if any.
func (c *Controller) Dragged() (scene.ID, bool) {
	return c.target, c.state != Idle
}

// Cursor returns the cursor for the last pointer position.
func (c *Controller) Cursor() Cursor {
	if c.state != Idle {
		return CursorGrabbing
	}
	return c.cursor
}

// PointerDown picks the layer under p. A text layer is selected and
// dragged; failing that an image layer is; clicking empty canvas clears the
// selection and closes both editors. It returns the pick result.
func (c *Controller) PointerDown(p gg.Point) hittest.Hit {
	hit := hittest.Pick(c.m, c.scene, p)
	switch hit.Kind {
	case hittest.Text:
		t, _ := c.scene.Text(hit.ID)
		c.scene.SelectText(t.ID)
		c.begin(DraggingText, t.ID, p.Sub(gg.Pt(t.Position())))
	case hittest.Image:
		l, _ := c.scene.Image(hit.ID)
		c.scene.SelectImage(l.ID)
		c.begin(DraggingImage, l.ID, p.Sub(gg.Pt(l.Position())))
	default:
		c.scene.ClearSelection()
		c.end()
	}
	logx.Get().Debug("interact: pointer down", "x", p.X, "y", p.Y, "hit", hit.Kind, "layer", hit.ID)
	return hit
}

// PointerMove moves the dragged layer so that it keeps its offset from the
// pointer. Outside a drag it only updates the hover cursor. It reports
// whether the scene changed.
func (c *Controller) PointerMove(p gg.Point) bool {
	pos := p.Sub(c.offset)
	switch c.state {
	case DraggingText:
		if c.scene.MoveText(c.target, pos.X, pos.Y) {
			return true
		}
		c.end()
	case DraggingImage:
		if c.scene.MoveImage(c.target, pos.X, pos.Y) {
			return true
		}
		c.end()
	default:
		if hittest.Pick(c.m, c.scene, p).Kind != hittest.None {
			c.cursor = CursorGrab
		} else {
			c.cursor = CursorCrosshair
		}
	}
	return false
}

// PointerUp ends any drag. The selection is kept.
func (c *Controller) PointerUp(gg.Point) { c.end() }

// PointerLeave ends any drag when the pointer leaves the canvas.
func (c *Controller) PointerLeave() {
	c.end()
	c.cursor = CursorCrosshair
}

// Delete removes the selected layer, clearing its selection and closing its
// editor. It reports whether a layer was removed.
func (c *Controller) Delete() bool {
	sel := c.scene.Selection
	var err error
	switch {
	case sel.TextID != "":
		err = c.scene.DeleteText(sel.TextID)
	case sel.ImageID != "":
		err = c.scene.DeleteImage(sel.ImageID)
	default:
		return false
	}
	if c.state != Idle && (c.target == sel.TextID || c.target == sel.ImageID) {
		c.end()
	}
	return err == nil
}

// KeyDown handles a key press. The Delete key removes the selected text
// layer, but only while the text editor is closed, so that Delete keeps its
// editing meaning inside the editor. It reports whether the scene changed.
func (c *Controller) KeyDown(k Key) bool {
	if k != KeyDelete {
		return false
	}
	sel := c.scene.Selection
	if sel.TextID == "" || sel.TextEditorOpen {
		return false
	}
	return c.Delete()
}

func (c *Controller) begin(s State, id scene.ID, offset gg.Point) {
	c.state, c.target, c.offset = s, id, offset
}

func (c *Controller) end() {
	c.state, c.target, c.offset = Idle, "", gg.Point{}
}
