package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"

	"gridbeat/debug"
)

var errStopped = errors.New("stream stopped")

type handle struct {
	id      string
	stopped atomic.Bool
}

func (h *handle) ID() string { return h.id }

func asHandle(h Handle) (*handle, error) {
	hh, ok := h.(*handle)
	if !ok || hh == nil {
		return nil, fmt.Errorf("foreign camera handle %T", h)
	}
	if hh.stopped.Load() {
		return nil, errStopped
	}
	return hh, nil
}

// FileCamera treats an image file as the camera. Each capture rereads the
// file, so it can be replaced between scans.
type FileCamera struct {
	Path string
}

func (c *FileCamera) Start(ctx context.Context) (Handle, error) {
	info, err := os.Stat(c.Path)
	if err != nil {
		return nil, &UnavailableError{Source: c.Path, Err: err}
	}
	if info.IsDir() {
		return nil, &UnavailableError{Source: c.Path, Err: errors.New("is a directory")}
	}
	debug.Log("camera", "file stream started", "path", c.Path)
	return &handle{id: "file:" + c.Path}, nil
}

func (c *FileCamera) Stop(h Handle) {
	if hh, ok := h.(*handle); ok && hh != nil {
		hh.stopped.Store(true)
	}
}

func (c *FileCamera) Capture(ctx context.Context, h Handle) (Payload, error) {
	if _, err := asHandle(h); err != nil {
		return Payload{}, err
	}
	raw, err := os.ReadFile(c.Path)
	if err != nil {
		return Payload{}, fmt.Errorf("read frame: %w", err)
	}
	return EncodeJPEG(raw)
}

// CommandCamera runs an external capture program that writes one image to
// stdout, e.g. "fswebcam -q --no-banner -" or "libcamera-still -n -o -"
type CommandCamera struct {
	Command []string
}

// ParseCommand splits a command line on whitespace
func ParseCommand(line string) *CommandCamera {
	return &CommandCamera{Command: strings.Fields(line)}
}

func (c *CommandCamera) Start(ctx context.Context) (Handle, error) {
	if len(c.Command) == 0 {
		return nil, &UnavailableError{Source: "command", Err: errors.New("no capture command configured")}
	}
	path, err := exec.LookPath(c.Command[0])
	if err != nil {
		return nil, &UnavailableError{Source: c.Command[0], Err: err}
	}
	debug.Log("camera", "command stream started", "path", path)
	return &handle{id: "cmd:" + path}, nil
}

func (c *CommandCamera) Stop(h Handle) {
	if hh, ok := h.(*handle); ok && hh != nil {
		hh.stopped.Store(true)
	}
}

func (c *CommandCamera) Capture(ctx context.Context, h Handle) (Payload, error) {
	if _, err := asHandle(h); err != nil {
		return Payload{}, err
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Command[0], c.Command[1:]...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return Payload{}, fmt.Errorf("capture command: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return EncodeJPEG(out)
}
