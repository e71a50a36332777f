package scene

// Selection records which layer is selected and which property editor is
// open. At most one layer is selected: TextID and ImageID are never both set.
type Selection struct {
	TextID  ID
	ImageID ID

	TextEditorOpen  bool
	ImageEditorOpen bool
}

// None reports whether nothing is selected.
func (sel Selection) None() bool {
	return sel.TextID == "" && sel.ImageID == ""
}

// SelectText selects a text layer. The image selection is cleared and the
// image editor closed; the text editor stays open only if it already showed
// this layer.
func (s *Scene) SelectText(id ID) {
	sel := &s.Selection
	sel.ImageID = ""
	sel.ImageEditorOpen = false
	if sel.TextID != id {
		sel.TextEditorOpen = false
	}
	sel.TextID = id
}

// SelectImage selects an image layer. The text selection is cleared and
// the text editor closed; the image editor stays open only if it already
// showed this layer.
func (s *Scene) SelectImage(id ID) {
	sel := &s.Selection
	sel.TextID = ""
	sel.TextEditorOpen = false
	if sel.ImageID != id {
		sel.ImageEditorOpen = false
	}
	sel.ImageID = id
}

// ClearSelection deselects everything and closes both editors as a single
// transition, so no editor outlives its selection.
func (s *Scene) ClearSelection() {
	s.Selection = Selection{}
}

// OpenTextEditor opens the text editor for the selected text layer. It
// reports false when no text layer is selected.
func (s *Scene) OpenTextEditor() bool {
	if s.Selection.TextID == "" {
		return false
	}
	s.Selection.TextEditorOpen = true
	return true
}

// CloseTextEditor closes the text editor; the selection is kept.
func (s *Scene) CloseTextEditor() {
	s.Selection.TextEditorOpen = false
}

// OpenImageEditor opens the image editor for the selected image layer. It
// reports false when no image layer is selected.
func (s *Scene) OpenImageEditor() bool {
	if s.Selection.ImageID == "" {
		return false
	}
	s.Selection.ImageEditorOpen = true
	return true
}

// CloseImageEditor closes the image editor; the selection is kept.
func (s *Scene) CloseImageEditor() {
	s.Selection.ImageEditorOpen = false
}
