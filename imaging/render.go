package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/webp"
)

// MaxSourcePixels bounds the decoded size of an uploaded image.
const MaxSourcePixels = 40_000_000

const jpegQuality = 90

var (
	ErrEmptyCrop    = errors.New("crop region does not intersect the image")
	ErrImageTooWide = errors.New("image dimensions too large")
)

// Result is an encoded crop ready for upload.
type Result struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
}

// Render draws the source rectangle of src, scaled to the output size and
// rotated about the output centre. Avatars are clipped to a circle. An unset
// output size in st falls back to the preset.
func Render(src image.Image, kind Kind, st State) (*image.RGBA, error) {
	preset, err := PresetFor(kind)
	if err != nil {
		return nil, err
	}
	outW, outH, err := preset.OutputSize(st.OutputWidth, st.OutputHeight)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	r := SourceRect(st, b.Dx(), b.Dy(), outW, outH)
	if r.W < 1 || r.H < 1 {
		return nil, ErrEmptyCrop
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	sr := image.Rect(
		b.Min.X+int(math.Floor(r.X)),
		b.Min.Y+int(math.Floor(r.Y)),
		b.Min.X+int(math.Ceil(r.X+r.W)),
		b.Min.Y+int(math.Ceil(r.Y+r.H)),
	).Intersect(b)

	m := sourceToDest(r.X+float64(b.Min.X), r.Y+float64(b.Min.Y), r.W, r.H, outW, outH, st.Rotation)
	draw.CatmullRom.Transform(dst, m, src, sr, draw.Over, nil)

	if !preset.Circular {
		return dst, nil
	}

	clipped := image.NewRGBA(dst.Bounds())
	draw.DrawMask(clipped, clipped.Bounds(), dst, image.Point{}, &circle{
		cx: float64(outW) / 2,
		cy: float64(outH) / 2,
		r:  float64(outW) / 2,
	}, image.Point{}, draw.Over)
	return clipped, nil
}

// sourceToDest maps the source rectangle onto the full output, rotating by deg
// about the output centre.
func sourceToDest(x, y, w, h float64, outW, outH, deg int) f64.Aff3 {
	sx := float64(outW) / w
	sy := float64(outH) / h
	hw := float64(outW) / 2
	hh := float64(outH) / 2

	cos, sin := rightAngle(deg)

	tx := -x*sx - hw
	ty := -y*sy - hh

	return f64.Aff3{
		cos * sx, -sin * sy, cos*tx - sin*ty + hw,
		sin * sx, cos * sy, sin*tx + cos*ty + hh,
	}
}

func rightAngle(deg int) (cos, sin float64) {
	switch NormalizeRotation(deg) {
	case 90:
		return 0, 1
	case 180:
		return -1, 0
	case 270:
		return 0, -1
	}
	return 1, 0
}

type circle struct {
	cx, cy, r float64
}

func (c *circle) ColorModel() color.Model { return color.AlphaModel }

func (c *circle) Bounds() image.Rectangle {
	return image.Rect(int(c.cx-c.r), int(c.cy-c.r), int(math.Ceil(c.cx+c.r)), int(math.Ceil(c.cy+c.r)))
}

func (c *circle) At(x, y int) color.Color {
	dx := float64(x) + 0.5 - c.cx
	dy := float64(y) + 0.5 - c.cy
	if dx*dx+dy*dy <= c.r*c.r {
		return color.Alpha{A: 255}
	}
	return color.Alpha{}
}

// Encode writes img in the preset format of kind.
func Encode(w io.Writer, img image.Image, kind Kind) (contentType, ext string, err error) {
	preset, err := PresetFor(kind)
	if err != nil {
		return "", "", err
	}

	switch preset.Format {
	case FormatPNG:
		return "image/png", "png", png.Encode(w, img)
	default:
		return "image/jpeg", "jpg", jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	}
}

// Process decodes an uploaded image, normalises the editor state (a nil state
// means the untouched editor), renders and encodes the crop.
func Process(data []byte, kind Kind, st *State) (*Result, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width*cfg.Height > MaxSourcePixels {
		return nil, ErrImageTooWide
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	var state State
	if st == nil {
		if state, err = DefaultState(kind, w, h); err != nil {
			return nil, err
		}
	} else if state, err = st.Normalize(kind, w, h); err != nil {
		return nil, err
	}

	out, err := Render(src, kind, state)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	contentType, ext, err := Encode(&buf, out, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", kind, err)
	}

	return &Result{
		Data:        buf.Bytes(),
		ContentType: contentType,
		Ext:         ext,
		Width:       out.Bounds().Dx(),
		Height:      out.Bounds().Dy(),
	}, nil
}
