// Package background renders the watermark images shown behind session
// profiles in the terminal.
package background

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // decoder registration for custom files
	_ "image/jpeg" // decoder registration for custom files
	"image/png"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp" // decoder registration for custom files

	cerrors "github.com/zhubert/claude-menu/internal/errors"
	"github.com/zhubert/claude-menu/internal/fsx"
	"github.com/zhubert/claude-menu/internal/logger"
	"github.com/zhubert/claude-menu/internal/tracking"
)

const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

// Renderer writes a background image for src to dest.
type Renderer interface {
	Render(src Source, dest string) error
}

// PNGRenderer draws text with the built-in bitmap face, scaled up.
type PNGRenderer struct {
	Width      int
	Height     int
	Background color.Color
	Foreground color.Color
	Now        func() time.Time
}

// NewPNGRenderer returns a renderer with the default canvas.
func NewPNGRenderer() *PNGRenderer {
	return &PNGRenderer{
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		Background: color.NRGBA{R: 20, G: 20, B: 40, A: 180},
		Foreground: color.White,
		Now:        time.Now,
	}
}

// line scales relative to the 7x13 base face.
var lineScales = []int{5, 3, 3, 3, 3, 2}

// Render draws src and writes dest atomically, plus a .txt sidecar for
// session backgrounds.
func (r *PNGRenderer) Render(src Source, dest string) error {
	log := logger.ComponentLogger("Background")
	canvas := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(r.Background), image.Point{}, draw.Src)

	var lines []string
	switch src.Kind {
	case tracking.ImageFork, tracking.ImageContinue:
		lines = src.Info.Lines()
	case tracking.ImageCustomText:
		lines = strings.Split(strings.TrimRight(src.Text, "\n"), "\n")
	case tracking.ImageCustomFile:
		if err := r.drawFile(canvas, src.File); err != nil {
			return err
		}
	default:
		return cerrors.E(cerrors.Op("background.Render"), cerrors.KindValidation, "unknown source kind "+string(src.Kind))
	}
	r.drawLines(canvas, lines)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if err := fsx.WriteFileAtomic(dest, buf.Bytes(), 0o644); err != nil {
		return cerrors.E(cerrors.Op("background.Render"), cerrors.KindIO, dest, err)
	}

	sidecar := ""
	switch src.Kind {
	case tracking.ImageFork, tracking.ImageContinue:
		now := time.Now
		if r.Now != nil {
			now = r.Now
		}
		sidecar = src.Info.Sidecar(now())
	case tracking.ImageCustomText:
		sidecar = src.Text
	}
	if sidecar != "" {
		if err := fsx.WriteFileAtomic(SidecarPath(dest), []byte(sidecar), 0o644); err != nil {
			return cerrors.E(cerrors.Op("background.Render"), cerrors.KindIO, SidecarPath(dest), err)
		}
	}

	log.Debug("rendered background", "kind", src.Kind, "path", dest, "lines", len(lines))
	return nil
}

// drawFile scales a user image to fit the canvas, centered.
func (r *PNGRenderer) drawFile(canvas *image.RGBA, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return cerrors.InvalidPath(path, err.Error())
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return cerrors.InvalidPath(path, "not a supported image: "+err.Error())
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return cerrors.InvalidPath(path, "image is empty")
	}
	scale := min(float64(r.Width)/float64(b.Dx()), float64(r.Height)/float64(b.Dy()))
	w, h := int(float64(b.Dx())*scale), int(float64(b.Dy())*scale)
	x, y := (r.Width-w)/2, (r.Height-h)/2
	draw.CatmullRom.Scale(canvas, image.Rect(x, y, x+w, y+h), img, b, draw.Over, nil)
	return nil
}

// drawLines writes lines left-aligned at 60% of the width, each rendered
// at its own scale and truncated to fit.
func (r *PNGRenderer) drawLines(canvas *image.RGBA, lines []string) {
	face := basicfont.Face7x13
	x := r.Width * 6 / 10
	y := r.Height / 10

	for i, line := range lines {
		scale := lineScales[min(i, len(lineScales)-1)]
		cells := (r.Width - x) / (face.Advance * scale)
		line = runewidth.Truncate(line, max(cells, 1), "~")
		if line == "" {
			y += face.Height * scale
			continue
		}

		width := font.MeasureString(face, line).Ceil()
		small := image.NewRGBA(image.Rect(0, 0, width, face.Height))
		d := font.Drawer{
			Dst:  small,
			Src:  image.NewUniform(r.Foreground),
			Face: face,
			Dot:  fixed.P(0, face.Ascent),
		}
		d.DrawString(line)

		dst := image.Rect(x, y, x+width*scale, y+face.Height*scale)
		draw.NearestNeighbor.Scale(canvas, dst, small, small.Bounds(), draw.Over, nil)
		y += face.Height*scale + face.Height*scale/2
	}
}
