// Package predict implements the inference pipeline: deterministic sketch
// normalization, classification, ranking and artifact persistence.
package predict

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"
)

const (
	// CanvasSize is the classifier's input edge length.
	CanvasSize = 28
	// inkSize is the edge length the sketch is resized to before centering.
	inkSize = 26
)

// Tensor is the classifier input: CanvasSize x CanvasSize intensities in
// [0,1], row major.
type Tensor [CanvasSize][CanvasSize]float32

// DecodeDataURL extracts the raw bytes from a canvas data URL. A plain
// base64 string (no comma) is accepted as-is.
func DecodeDataURL(s string) ([]byte, error) {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64 image: %w", domain.ErrValidation, err)
	}
	return data, nil
}

// Normalize converts an arbitrary sketch image into the classifier's fixed
// input. The exact sequence — bounding-box crop of non-transparent pixels,
// alpha channel as ink intensity, aspect-preserving resize with the longer
// side at 26, zero-padded centering on a 28x28 canvas, division by 255 —
// is a compatibility contract with the pretrained model and must not drift.
// A fully transparent image fails with domain.ErrBlankSketch.
func Normalize(imageBytes []byte) (Tensor, error) {
	var t Tensor

	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return t, fmt.Errorf("%w: undecodable image: %w", domain.ErrValidation, err)
	}

	box, ok := alphaBounds(img)
	if !ok {
		return t, domain.ErrBlankSketch
	}

	ink := alphaChannel(img, box)

	w, h := box.Dx(), box.Dy()
	var dstW, dstH int
	if w >= h {
		dstW = inkSize
		dstH = shorterSide(h, w)
	} else {
		dstH = inkSize
		dstW = shorterSide(w, h)
	}

	resized := image.NewGray(image.Rect(0, 0, dstW, dstH))
	xdraw.BiLinear.Scale(resized, resized.Bounds(), ink, ink.Bounds(), xdraw.Src, nil)

	// Integer center offsets; ties round toward the top-left.
	offX := (CanvasSize - dstW) / 2
	offY := (CanvasSize - dstH) / 2
	for y := 0; y < dstH; y++ {
		for x := 0; x < dstW; x++ {
			t[offY+y][offX+x] = float32(resized.GrayAt(x, y).Y) / 255
		}
	}
	return t, nil
}

func shorterSide(short, long int) int {
	scaled := int(math.Round(float64(short) * inkSize / float64(long)))
	if scaled < 1 {
		return 1
	}
	return scaled
}

// alphaBounds returns the bounding box of pixels with non-zero alpha.
func alphaBounds(img image.Image) (image.Rectangle, bool) {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x > maxX {
				maxX = x
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// alphaChannel extracts opacity as a single-channel intensity map: the
// sketch's ink is white-on-transparent, so opacity is the signal, not color.
func alphaChannel(img image.Image, box image.Rectangle) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, box.Dx(), box.Dy()))
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			out.SetGray(x-box.Min.X, y-box.Min.Y, color.Gray{Y: uint8(a >> 8)})
		}
	}
	return out
}
