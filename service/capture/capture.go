// Package capture grabs display frames for the loopback encode mode, where
// the agent feeds its own screen through an encoder instead of reading frames
// off the wire.
package capture

import (
	"fmt"
	"image"

	"github.com/kataras/golog"
	"github.com/kbinani/screenshot"
)

var logger = golog.Child("[capture]")

// Displays reports how many displays can be captured.
func Displays() int {
	return screenshot.NumActiveDisplays()
}

// Bounds returns the pixel bounds of one display.
func Bounds(display int) (image.Rectangle, error) {
	if display < 0 || display >= screenshot.NumActiveDisplays() {
		return image.Rectangle{}, fmt.Errorf("capture: display %d out of range", display)
	}
	return screenshot.GetDisplayBounds(display), nil
}

// Grab captures one display scaled region as RGBA. The returned image is
// freshly allocated per call and safe to hand to an encoder.
func Grab(display int) (*image.RGBA, error) {
	if display < 0 || display >= screenshot.NumActiveDisplays() {
		return nil, fmt.Errorf("capture: display %d out of range", display)
	}
	img, err := screenshot.CaptureDisplay(display)
	if err != nil {
		logger.Debugf("display %d capture failed: %v", display, err)
		return nil, fmt.Errorf("capture: display %d: %w", display, err)
	}
	return img, nil
}

// Repack copies img into a tightly packed RGBA buffer of the given dimensions,
// cropping or zero-padding as needed. Software encode consumes exactly
// width*height*4 bytes with no stride slack.
func Repack(img *image.RGBA, width, height int) []byte {
	out := make([]byte, width*height*4)
	if img == nil {
		return out
	}
	rows := img.Rect.Dy()
	if rows > height {
		rows = height
	}
	cols := img.Rect.Dx()
	if cols > width {
		cols = width
	}
	for y := 0; y < rows; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+cols*4]
		copy(out[y*width*4:], src)
	}
	return out
}
