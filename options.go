package behind

import (
	"github.com/gogpu/behind/export"
	"github.com/gogpu/behind/fonts"
	"github.com/gogpu/behind/scene"
)

// Option configures an Editor during creation.
//
// Example:
//
//	ed, err := behind.New(photo, cutout,
//	    behind.WithRedraw(repaint),
//	    behind.WithExportOptions(export.WithProgress(showProgress)),
//	)
type Option func(*options)

type options struct {
	fonts      *fonts.Registry
	redraw     func()
	exportOpts []export.Option
	maxW, maxH int
}

func defaultOptions() options {
	return options{
		maxW: scene.DefaultMaxWidth,
		maxH: scene.DefaultMaxHeight,
	}
}

// WithFonts sets the font registry used for rendering, hit-testing and
// export. The default is fonts.Default.
func WithFonts(reg *fonts.Registry) Option {
	return func(o *options) {
		o.fonts = reg
	}
}

// WithRedraw registers fn to be called whenever the interactive view is out
// of date: after a mutation, when a layer image finishes decoding, and right
// before an export renders. fn runs without the editor lock held, possibly
// on another goroutine.
func WithRedraw(fn func()) Option {
	return func(o *options) {
		o.redraw = fn
	}
}

// WithExportOptions passes options through to the editor's exporter.
func WithExportOptions(opts ...export.Option) Option {
	return func(o *options) {
		o.exportOpts = append(o.exportOpts, opts...)
	}
}

// WithMaxCanvas sets the box the original image is fitted into to get the
// logical canvas size. The default is 800x600. A value <= 0 disables
// fitting on that axis.
func WithMaxCanvas(width, height int) Option {
	return func(o *options) {
		o.maxW, o.maxH = width, height
	}
}
