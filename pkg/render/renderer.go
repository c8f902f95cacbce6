package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"time"

	xdraw "golang.org/x/image/draw"
)

// PageImager rasterizes a 1-based page at a given DPI.
// *document.Document implements it.
type PageImager interface {
	Image(pageNum int, dpi float64) (image.Image, error)
}

// Page is one rendered page: its PNG bytes, a base64 copy for inline
// transport, and the final pixel dimensions. It is a transient value;
// the persisted file is the only durable copy.
type Page struct {
	PageNum    int
	Width      int
	Height     int
	Data       []byte
	Base64     string
	RenderedAt time.Time
}

// Error wraps a rasterization or encoding failure for one page.
type Error struct {
	PageNum int
	Err     error
}

// Error returns the error message with the failing page number.
func (e *Error) Error() string {
	return fmt.Sprintf("render: page %d: %v", e.PageNum, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// RenderPage rasterizes pageNum from src at the quality tier and encodes
// it as PNG. The caller must have validated pageNum against the document's
// page count; any failure of the underlying rasterizer surfaces as *Error.
//
// RenderPage is pure with respect to its inputs and safe to call
// repeatedly for the same page. Output is deliberately not cached here;
// only document parsing is cached.
func RenderPage(src PageImager, pageNum int, quality Quality) (*Page, error) {
	tier := quality.Tier()

	img, err := src.Image(pageNum, tier.DPI())
	if err != nil {
		return nil, &Error{PageNum: pageNum, Err: err}
	}

	img = fit(img, tier.MaxDim)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &Error{PageNum: pageNum, Err: err}
	}

	data := buf.Bytes()
	bounds := img.Bounds()
	return &Page{
		PageNum:    pageNum,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Data:       data,
		Base64:     base64.StdEncoding.EncodeToString(data),
		RenderedAt: time.Now(),
	}, nil
}

// fit downscales img, preserving aspect ratio, so that neither dimension
// exceeds maxDim. Images already inside the box are returned unchanged;
// fit never upscales.
func fit(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	scale := float64(maxDim) / float64(w)
	if hScale := float64(maxDim) / float64(h); hScale < scale {
		scale = hScale
	}
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}
