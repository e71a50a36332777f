// Command behind renders "text behind subject" images from project files.
//
// Usage:
//
//	behind -project scene.yaml [-out dir] [-preview preview.png] [-watch] [-v]
//
// The project file (YAML or TOML) names the photo, the foreground cutout or a
// threshold segmentation, and the text and image layers. Each run writes
// text-behind-image-<timestamp>.png into the output directory. With -watch
// the project is re-exported whenever the file changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gogpu/behind"
	"github.com/gogpu/behind/export"
	"github.com/gogpu/behind/project"
)

type config struct {
	project string
	out     string
	preview string
	scale   float64
	watch   bool
	verbose bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.project, "project", "", "project file (.yaml, .yml or .toml)")
	flag.StringVar(&cfg.out, "out", "", "output directory (default: the project's output setting)")
	flag.StringVar(&cfg.preview, "preview", "", "also write the interactive view to this PNG file")
	flag.Float64Var(&cfg.scale, "scale", export.DefaultScale, "export scale relative to the canvas")
	flag.BoolVar(&cfg.watch, "watch", false, "re-export whenever the project file changes")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging")
	flag.Parse()

	if cfg.project == "" {
		fmt.Fprintln(os.Stderr, "behind: -project is required")
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	behind.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if cfg.watch {
		err = watch(ctx, cfg, log)
	} else {
		_, err = run(ctx, cfg, log)
	}
	if err != nil && ctx.Err() == nil {
		log.Error("behind: failed", "err", err)
		os.Exit(1)
	}
}

// run loads the project, exports it and returns the path written.
func run(ctx context.Context, cfg config, log *slog.Logger) (string, error) {
	doc, err := project.Load(cfg.project)
	if err != nil {
		return "", err
	}
	ed, err := doc.Build(ctx, behind.WithExportOptions(
		export.WithScale(cfg.scale),
		export.WithProgress(func(p int) { log.Debug("export progress", "percent", p) }),
	))
	if err != nil {
		return "", err
	}

	if cfg.preview != "" {
		if err := writePreview(ed, cfg.preview); err != nil {
			return "", err
		}
		log.Info("preview written", "path", cfg.preview)
	}

	art, err := ed.Export(ctx)
	if err != nil {
		return "", err
	}
	dir := cfg.out
	if dir == "" {
		dir = doc.OutputDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, art.Name)
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return "", err
	}
	log.Info("exported", "path", path, "width", art.Width, "height", art.Height,
		"skipped", len(art.Stats.Failed), "absent", art.Stats.Absent)
	return path, nil
}

func writePreview(ed *behind.Editor, path string) error {
	img, _, err := ed.Preview(1)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
