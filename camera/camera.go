// Package camera captures still frames of the physical grid. Sources are
// capability implementations behind Controller: an image file on disk or an
// external capture command that writes an image to stdout.
package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
)

// JPEGQuality matches what the detector expects
const JPEGQuality = 80

// Payload is a captured still image
type Payload struct {
	Data     []byte
	MIMEType string
}

// Handle identifies a started stream
type Handle interface {
	ID() string
}

// Controller starts and stops a capture stream and grabs frames from it
type Controller interface {
	Start(ctx context.Context) (Handle, error)
	// Stop releases the stream. It is idempotent and never fails.
	Stop(h Handle)
	Capture(ctx context.Context, h Handle) (Payload, error)
}

// UnavailableError means the camera could not be started
type UnavailableError struct {
	Source string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("camera unavailable (%s): %v", e.Source, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// EncodeJPEG decodes any registered image format and re-encodes it as JPEG
func EncodeJPEG(raw []byte) (Payload, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Payload{}, fmt.Errorf("decode frame: %w", err)
	}
	if format == "jpeg" {
		return Payload{Data: raw, MIMEType: "image/jpeg"}, nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return Payload{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return Payload{Data: buf.Bytes(), MIMEType: "image/jpeg"}, nil
}

// Snapshot runs a full start/capture/stop cycle
func Snapshot(ctx context.Context, c Controller) (Payload, error) {
	h, err := c.Start(ctx)
	if err != nil {
		return Payload{}, err
	}
	defer c.Stop(h)
	return c.Capture(ctx, h)
}
