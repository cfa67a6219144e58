// Copyright 2025 Joseph Cumines

package action

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// CaptureResult extends the envelope with the encoded pixels.
type CaptureResult struct {
	Result
	Image image.Image `json:"-"`
	// PNGBase64 is the PNG-encoded region, ready for a tool response.
	PNGBase64 string `json:"image_base64"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// CaptureElement grabs the element's pixel region. The region is clipped to
// the monitors that show it and captured from the primary intersected
// monitor at that monitor's DPI scale.
func (a *Actor) CaptureElement(ctx context.Context, res uia.Resolution) (CaptureResult, error) {
	el := res.Element
	bounds, err := el.Bounds()
	if err != nil {
		return CaptureResult{}, err
	}
	if bounds.Empty() {
		return CaptureResult{}, uia.NewError(uia.KindElementNotVisible, "element has zero-size bounds")
	}

	monitors, err := a.driver.Monitors()
	if err != nil {
		return CaptureResult{}, err
	}
	var target *uia.Monitor
	var region uia.Bounds
	for i := range monitors {
		overlap := bounds.Intersect(monitors[i].Bounds)
		if overlap.Empty() {
			continue
		}
		if target == nil || (monitors[i].IsPrimary && !target.IsPrimary) {
			target = &monitors[i]
			region = overlap
		}
	}
	if target == nil {
		return CaptureResult{}, uia.NewError(uia.KindElementNotVisible, "element is outside every monitor")
	}

	img, err := a.driver.Capture(*target, region)
	if err != nil {
		return CaptureResult{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return CaptureResult{}, uia.NewError(uia.KindPlatformAPI, "encode capture").WithCause(err)
	}

	out := CaptureResult{
		Result:    a.result("capture_element", el, res),
		Image:     img,
		PNGBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
	}
	out.detail("monitor", target.Name)
	out.detail("scale", target.ScaleDPI)
	return out, nil
}
