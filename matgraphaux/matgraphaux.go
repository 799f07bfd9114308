// Package matgraphaux provides helpers to get started with matgraph quickly:
// configuration loading, PNG previews rendered on the CPU and a GPU preview window.
// Applications may vary widely so users are encouraged to write their own.
package matgraphaux

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/matgraph/glbuild"
	"github.com/soypat/matgraph/gleval"
)

// Compile compiles the material rooted at out for all stages with a template configured by cfg.
// Diagnostics are logged through logger and returned by [glbuild.Template.Diagnostics].
func Compile(g *glbuild.Graph, out glbuild.NodeID, cfg Config, logger *slog.Logger) (*glbuild.Template, error) {
	t := cfg.NewTemplate("material", logger)
	err := t.Compile(g, glbuild.AllStages(out)...)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// RenderConfig configures CPU rendering of a material node to an image.
type RenderConfig struct {
	Width, Height int
	// Time is the value of the time input of the rendered frame.
	Time float32
	// Textures maps texture units to images sampled by texture nodes.
	Textures map[int]image.Image
	// Uniforms, if set, supplies live uniform values, usually from a compiled template.
	Uniforms *glbuild.UniformTable
	Flags    glbuild.Flags
	// ScalarColor, if set, renders the node as a scalar mapped to colors,
	// i.e. with [ColorConversionLinearGradient].
	ScalarColor func(v float32) color.Color
	Logger      *slog.Logger
}

var errNoSize = errors.New("render config requires positive width and height")

// RenderImage renders node id to a new image on the CPU.
func RenderImage(g *glbuild.Graph, id glbuild.NodeID, cfg RenderConfig) (*image.NRGBA, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errNoSize
	} else if g == nil {
		return nil, errors.New("nil graph")
	}
	watch := stopwatch()
	ctx := gleval.Context{
		Graph:    g,
		Uniforms: cfg.Uniforms,
		Textures: cfg.Textures,
		Flags:    cfg.Flags,
	}
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	var err error
	if cfg.ScalarColor == nil {
		err = gleval.Rasterize(&ctx, id, img, cfg.Time)
	} else {
		err = rasterizeScalar(&ctx, id, img, cfg)
	}
	if err != nil {
		return nil, err
	}
	if err = ctx.Pool.AssertAllReleased(); err != nil {
		return nil, err
	}
	if cfg.Logger != nil {
		cfg.Logger.Debug("rendered material", slog.Int("node", int(id)), slog.Duration("elapsed", watch()))
	}
	return img, nil
}

func rasterizeScalar(ctx *gleval.Context, id glbuild.NodeID, img *image.NRGBA, cfg RenderConfig) error {
	w, h := cfg.Width, cfg.Height
	frags := make([]gleval.Fragment, w)
	values := make([][4]float32, w)
	for row := 0; row < h; row++ {
		v := 1 - (float32(row)+0.5)/float32(h)
		for col := range frags {
			frags[col] = gleval.Fragment{UV: ms2.Vec{X: (float32(col) + 0.5) / float32(w), Y: v}, Time: cfg.Time}
		}
		err := ctx.EvaluateInput(id, glbuild.ReturnFloat, frags, values)
		if err != nil {
			return err
		}
		for col, c := range values {
			img.Set(col, row, cfg.ScalarColor(c[0]))
		}
	}
	return nil
}

// RenderPNG renders node id on the CPU and encodes the result as PNG to w.
func RenderPNG(w io.Writer, g *glbuild.Graph, id glbuild.NodeID, cfg RenderConfig) error {
	img, err := RenderImage(g, id, cfg)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// RenderPNGFile renders node id on the CPU and saves the result to a PNG file with said filename.
func RenderPNGFile(filename string, g *glbuild.Graph, id glbuild.NodeID, cfg RenderConfig) error {
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	err = RenderPNG(fp, g, id, cfg)
	if err != nil {
		return err
	}
	return fp.Sync()
}

// UIConfig configures the GPU preview window.
type UIConfig struct {
	Width, Height int
	// Material configures the compiled template.
	Material Config
	// Textures maps texture units to images sampled by texture nodes.
	Textures map[int]image.Image
	// Context, if set, closes the window when done.
	Context context.Context
	Logger  *slog.Logger
}

// UI opens a window previewing the material rooted at out on a full screen quad.
// Time runs in real time. Requires CGo.
func UI(g *glbuild.Graph, out glbuild.NodeID, cfg UIConfig) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errNoSize
	} else if g == nil {
		return errors.New("nil graph")
	}
	return ui(g, out, cfg)
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

// Diagnostics formats a template's diagnostics one per line, or returns nil if there are none.
func Diagnostics(t *glbuild.Template) error {
	diags := t.Diagnostics()
	if len(diags) == 0 {
		return nil
	}
	errs := make([]error, len(diags))
	for i, d := range diags {
		errs[i] = fmt.Errorf("%s: %w", t.Name, d)
	}
	return errors.Join(errs...)
}
