// Package behind is a compositing engine for "text behind subject" images.
//
// # Overview
//
// A photo is split into the original image and a foreground cutout of its
// subject (see package segment). Text and extra images are layered between
// the two, so text appears behind the subject while staying in front of the
// background:
//
//	original < image layers < text layers < foreground cutout
//
// The Editor type ties the pieces together: the document model (package
// scene), the renderer (package render), pointer and keyboard handling
// (package interact) and high-resolution PNG export (package export).
//
// # Quick Start
//
//	ed, err := behind.New(photo, cutout, behind.WithRedraw(func() { window.Invalidate() }))
//	if err != nil {
//		return err
//	}
//	id := ed.AddText()
//	_ = ed.UpdateText(id, scene.TextPatch{Content: scene.Ptr("HELLO")})
//
//	art, err := ed.Export(ctx)
//	if err != nil {
//		return err
//	}
//	os.WriteFile(art.Name, art.Data, 0o644)
//
// # Concurrency
//
// Every Editor method is safe for concurrent use. Mutations are serialised
// by the editor; the redraw callback runs after the mutation completed and
// the editor is unlocked, so it may call back into the editor. Exports work
// on a snapshot taken when they start, so editing continues while an export
// runs.
//
// # Logging
//
// behind is silent by default. SetLogger installs a *slog.Logger shared by
// all sub-packages.
package behind
