package texgen

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"unicode"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// GoRegularTTF returns the Go Regular true type font file.
func GoRegularTTF() []byte {
	return append([]byte{}, goregular.TTF...) // copy contents.
}

// LabelConfig configures text label rasterization.
type LabelConfig struct {
	// Size is the font size in points. If zero 24 is used.
	Size float64
	// DPI is the rasterization resolution. If zero 72 is used.
	DPI float64
	// Padding in pixels around the text.
	Padding int
	// Foreground is the text color. If nil the text is white.
	Foreground color.Color
	// Background fills the label. If nil the background is transparent.
	Background color.Color
}

// Font rasterizes text labels with a parsed TrueType font.
type Font struct {
	ttf   *truetype.Font
	faces map[faceKey]font.Face
}

type faceKey struct {
	size, dpi float64
}

// LoadTTFBytes loads a TTF file blob into f. After calling LoadTTFBytes the Font is ready to rasterize labels.
func (f *Font) LoadTTFBytes(ttf []byte) error {
	parsed, err := truetype.Parse(ttf)
	if err != nil {
		return err
	}
	f.ttf = parsed
	clear(f.faces)
	return nil
}

func (f *Font) face(size, dpi float64) font.Face {
	key := faceKey{size: size, dpi: dpi}
	if face, ok := f.faces[key]; ok {
		return face
	}
	if f.faces == nil {
		f.faces = make(map[faceKey]font.Face)
	}
	face := truetype.NewFace(f.ttf, &truetype.Options{Size: size, DPI: dpi, Hinting: font.HintingFull})
	f.faces[key] = face
	return face
}

// Label rasterizes a single line of text to an image fitted to the text's bounds.
func (f *Font) Label(text string, cfg LabelConfig) (*image.NRGBA, error) {
	if f.ttf == nil {
		return nil, errors.New("font not loaded")
	} else if cfg.Size < 0 || cfg.DPI < 0 || cfg.Padding < 0 {
		return nil, errors.New("negative label size, DPI or padding")
	}
	hasGlyph := false
	for _, c := range text {
		if !unicode.IsGraphic(c) {
			return nil, fmt.Errorf("char %q not graphic", c)
		}
		hasGlyph = hasGlyph || !unicode.IsSpace(c)
	}
	if !hasGlyph {
		return nil, errors.New("no text provided")
	}
	if cfg.Size == 0 {
		cfg.Size = 24
	}
	if cfg.DPI == 0 {
		cfg.DPI = 72
	}
	fg := cfg.Foreground
	if fg == nil {
		fg = color.White
	}
	face := f.face(cfg.Size, cfg.DPI)
	metrics := face.Metrics()
	advance := font.MeasureString(face, text)
	pad := cfg.Padding
	width := advance.Ceil() + 2*pad
	height := (metrics.Ascent + metrics.Descent).Ceil() + 2*pad

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	if cfg.Background != nil {
		draw.Draw(img, img.Bounds(), image.NewUniform(cfg.Background), image.Point{}, draw.Src)
	}
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(pad), Y: fixed.I(pad) + metrics.Ascent},
	}
	d.DrawString(text)
	return img, nil
}
