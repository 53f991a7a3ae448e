// Package imaging reproduces the avatar and banner crop editor: the client
// pans, zooms and rotates an image inside a fixed viewport and the server
// rasterises the visible region to a fixed output size.
package imaging

import (
	"errors"
	"fmt"
	"math"
)

type Kind string

const (
	KindAvatar Kind = "avatar"
	KindBanner Kind = "banner"
)

const (
	MinZoom = 0.5
	MaxZoom = 3.0
)

// Output size overrides may shrink the preset freely down to MinOutputSide
// but grow it at most MaxOutputFactor times.
const (
	MinOutputSide   = 32
	MaxOutputFactor = 2
)

var ErrInvalidOutputSize = errors.New("invalid output size")

type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// Preset holds the viewport and output geometry of an editor kind.
type Preset struct {
	ContainerWidth  float64
	ContainerHeight float64
	OutputWidth     int
	OutputHeight    int
	Circular        bool
	Format          Format
}

func PresetFor(kind Kind) (Preset, error) {
	switch kind {
	case KindAvatar:
		return Preset{
			ContainerWidth:  300,
			ContainerHeight: 300,
			OutputWidth:     400,
			OutputHeight:    400,
			Circular:        true,
			Format:          FormatPNG,
		}, nil
	case KindBanner:
		return Preset{
			ContainerWidth:  800,
			ContainerHeight: 800.0 / 3.0,
			OutputWidth:     1500,
			OutputHeight:    500,
			Format:          FormatJPEG,
		}, nil
	}
	return Preset{}, fmt.Errorf("unknown image kind %q", kind)
}

// OutputSize resolves a requested output size against the preset. Zero means
// unset; a single side derives the other from the preset aspect ratio. The
// result must keep that ratio within one pixel.
func (p Preset) OutputSize(w, h int) (int, int, error) {
	switch {
	case w < 0 || h < 0:
		return 0, 0, fmt.Errorf("%w: negative dimension", ErrInvalidOutputSize)
	case w == 0 && h == 0:
		return p.OutputWidth, p.OutputHeight, nil
	case h == 0:
		h = int(math.Round(float64(w) * float64(p.OutputHeight) / float64(p.OutputWidth)))
	case w == 0:
		w = int(math.Round(float64(h) * float64(p.OutputWidth) / float64(p.OutputHeight)))
	}

	if w < MinOutputSide || h < MinOutputSide {
		return 0, 0, fmt.Errorf("%w: %dx%d is smaller than %dpx", ErrInvalidOutputSize, w, h, MinOutputSide)
	}
	if w > p.OutputWidth*MaxOutputFactor || h > p.OutputHeight*MaxOutputFactor {
		return 0, 0, fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrInvalidOutputSize, w, h,
			p.OutputWidth*MaxOutputFactor, p.OutputHeight*MaxOutputFactor)
	}
	// |w/h - pw/ph| within one pixel of height
	if math.Abs(float64(w*p.OutputHeight-h*p.OutputWidth)) > float64(p.OutputWidth) {
		return 0, 0, fmt.Errorf("%w: %dx%d does not keep the %d:%d aspect ratio", ErrInvalidOutputSize, w, h,
			p.OutputWidth, p.OutputHeight)
	}
	return w, h, nil
}

// State is the editor viewport: container size, pan offset of the image
// centre from the container centre, absolute scale (image pixels to container
// pixels) and rotation in degrees.
type State struct {
	ContainerWidth  float64 `json:"container_width" form:"container_width"`
	ContainerHeight float64 `json:"container_height" form:"container_height"`
	X               float64 `json:"position_x" form:"position_x"`
	Y               float64 `json:"position_y" form:"position_y"`
	Scale           float64 `json:"scale" form:"scale"`
	Rotation        int     `json:"rotation" form:"rotation"`
	OutputWidth     int     `json:"output_width" form:"output_width"`
	OutputHeight    int     `json:"output_height" form:"output_height"`
}

// Rect is a rectangle in source image pixels.
type Rect struct {
	X, Y, W, H float64
}

// InitialScale is the scale the editor opens with. Avatars cover the circle by
// matching diagonals with 10% slack; banners cover the viewport with 20% slack.
func InitialScale(kind Kind, imgW, imgH int, containerW, containerH float64) float64 {
	if imgW <= 0 || imgH <= 0 {
		return 1
	}
	iw, ih := float64(imgW), float64(imgH)

	if kind == KindAvatar {
		containerDiagonal := math.Hypot(containerW, containerH)
		imageDiagonal := math.Hypot(iw, ih)
		return containerDiagonal / imageDiagonal * 1.1
	}
	return math.Max(containerW/iw, containerH/ih) * 1.2
}

// DefaultState centres the image at its initial scale.
func DefaultState(kind Kind, imgW, imgH int) (State, error) {
	preset, err := PresetFor(kind)
	if err != nil {
		return State{}, err
	}
	return State{
		ContainerWidth:  preset.ContainerWidth,
		ContainerHeight: preset.ContainerHeight,
		Scale:           InitialScale(kind, imgW, imgH, preset.ContainerWidth, preset.ContainerHeight),
		OutputWidth:     preset.OutputWidth,
		OutputHeight:    preset.OutputHeight,
	}, nil
}

func ClampZoom(scale float64) float64 {
	return math.Max(MinZoom, math.Min(MaxZoom, scale))
}

// ClampScale bounds a client supplied scale to the zoom range, widened to
// include the initial scale so that very large or very small images can
// still be shown the way the editor opened them.
func ClampScale(scale, initial float64) float64 {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return initial
	}
	switch {
	case scale < MinZoom && initial < MinZoom:
		return math.Max(initial, scale)
	case scale > MaxZoom && initial > MaxZoom:
		return math.Min(initial, scale)
	}
	return ClampZoom(scale)
}

// NormalizeRotation maps any angle onto the nearest of 0, 90, 180 and 270.
func NormalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return ((deg + 45) / 90 % 4) * 90
}

// ClampPosition keeps the pan offset within the range where the scaled image
// still overlaps the container edge it was dragged towards.
func ClampPosition(x, y, scale float64, imgW, imgH int, containerW, containerH float64) (float64, float64) {
	maxX := math.Max(0, (float64(imgW)*scale-containerW)/2)
	maxY := math.Max(0, (float64(imgH)*scale-containerH)/2)
	return math.Max(-maxX, math.Min(maxX, x)), math.Max(-maxY, math.Min(maxY, y))
}

// SourceRect converts the visible part of the viewport into source image
// coordinates: container space, then scaled-image space, then source space.
// The output/container factor and the final clamp to the image bounds match
// the editor the client renders its preview with.
func SourceRect(st State, imgW, imgH, outW, outH int) Rect {
	iw, ih := float64(imgW), float64(imgH)
	cw, ch := st.ContainerWidth, st.ContainerHeight

	scaledW := iw * st.Scale
	scaledH := ih * st.Scale

	centreX := cw/2 + st.X
	centreY := ch/2 + st.Y

	left := centreX - scaledW/2
	top := centreY - scaledH/2

	visibleLeft := math.Max(0, -left)
	visibleTop := math.Max(0, -top)
	visibleRight := math.Min(scaledW, cw-left)
	visibleBottom := math.Min(scaledH, ch-top)

	fx := float64(outW) / cw
	fy := float64(outH) / ch

	sx := visibleLeft / st.Scale * fx
	sy := visibleTop / st.Scale * fy
	sw := (visibleRight - visibleLeft) / st.Scale * fx
	sh := (visibleBottom - visibleTop) / st.Scale * fy

	x := math.Max(0, math.Min(iw-sw, sx))
	y := math.Max(0, math.Min(ih-sh, sy))

	return Rect{
		X: x,
		Y: y,
		W: math.Max(0, math.Min(sw, iw-x)),
		H: math.Max(0, math.Min(sh, ih-y)),
	}
}

// Normalize fills in missing container and output dimensions from the preset,
// validates the output size and clamps scale, rotation and position.
func (st State) Normalize(kind Kind, imgW, imgH int) (State, error) {
	preset, err := PresetFor(kind)
	if err != nil {
		return State{}, err
	}
	if st.ContainerWidth <= 0 || st.ContainerHeight <= 0 {
		st.ContainerWidth = preset.ContainerWidth
		st.ContainerHeight = preset.ContainerHeight
	}
	if st.OutputWidth, st.OutputHeight, err = preset.OutputSize(st.OutputWidth, st.OutputHeight); err != nil {
		return State{}, err
	}

	initial := InitialScale(kind, imgW, imgH, st.ContainerWidth, st.ContainerHeight)
	st.Scale = ClampScale(st.Scale, initial)
	st.Rotation = NormalizeRotation(st.Rotation)
	st.X, st.Y = ClampPosition(st.X, st.Y, st.Scale, imgW, imgH, st.ContainerWidth, st.ContainerHeight)
	return st, nil
}
