package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gridbeat/camera"
	"gridbeat/grid"
	"gridbeat/sequencer"
)

type nopBank struct{}

func (nopBank) Trigger(grid.Instrument, time.Duration) {}

type fixedDetector struct {
	g     grid.Grid
	calls int
}

func (d *fixedDetector) Detect(context.Context, camera.Payload) grid.Grid {
	d.calls++
	return d.g
}

type stubCamera struct{ err error }

type stubHandle struct{}

func (stubHandle) ID() string { return "stub" }

func (c stubCamera) Start(context.Context) (camera.Handle, error) {
	if c.err != nil {
		return nil, c.err
	}
	return stubHandle{}, nil
}

func (stubCamera) Stop(camera.Handle) {}

func (stubCamera) Capture(context.Context, camera.Handle) (camera.Payload, error) {
	return camera.Payload{Data: []byte{1}, MIMEType: "image/jpeg"}, nil
}

func newTestModel(t *testing.T, cam camera.Controller, det *fixedDetector) Model {
	t.Helper()
	store := grid.NewStore()
	seq := sequencer.New(store, nopBank{}, sequencer.Options{})
	t.Cleanup(func() {
		if seq.Playing() {
			seq.Stop()
		}
	})
	return NewModel(Deps{
		Store:     store,
		Sequencer: seq,
		Camera:    cam,
		Detector:  det,
		ExportDir: t.TempDir(),
	})
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case " ":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestCursorAndToggle(t *testing.T) {
	m := newTestModel(t, stubCamera{}, &fixedDetector{})
	m = press(t, m, "down", "j", "j", "l", " ")

	g := m.Store.Snapshot()
	if !g[3][1] || g.Count() != 1 {
		t.Fatalf("expected only kick step 2 set:\n%s", g)
	}

	m = press(t, m, "j", "h", "h")
	if m.cursorRow != 0 || m.cursorCol != 7 {
		t.Fatalf("cursor should wrap, got %d,%d", m.cursorRow, m.cursorCol)
	}

	m = press(t, m, "c")
	if m.Store.Snapshot().Count() != 0 {
		t.Fatal("c should clear the grid")
	}
}

func TestPlayToggle(t *testing.T) {
	m := newTestModel(t, stubCamera{}, &fixedDetector{})
	m = press(t, m, "p")
	if !m.Sequencer.Playing() {
		t.Fatal("p should start playback")
	}
	if !strings.Contains(m.View(), "PLAY") {
		t.Fatal("view should show PLAY")
	}
	m = press(t, m, "p")
	if m.Sequencer.Playing() {
		t.Fatal("second p should stop playback")
	}
}

func TestScanReplacesGrid(t *testing.T) {
	var want grid.Grid
	want[3][0] = true
	want[1][4] = true
	det := &fixedDetector{g: want}
	m := newTestModel(t, stubCamera{}, det)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	m = next.(Model)
	if cmd == nil || !m.scanning {
		t.Fatal("s should start a scan")
	}

	// a second press while scanning is ignored
	if _, again := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")}); again != nil {
		t.Fatal("scan should not run twice")
	}

	next, _ = m.Update(cmd())
	m = next.(Model)
	if m.scanning || m.Store.Snapshot() != want {
		t.Fatalf("grid not replaced:\n%s", m.Store.Snapshot())
	}
	if det.calls != 1 {
		t.Fatalf("detector called %d times", det.calls)
	}
	if !strings.Contains(m.View(), "2 cells detected") {
		t.Fatal("status line missing")
	}
}

func TestCameraErrorBanner(t *testing.T) {
	det := &fixedDetector{}
	cam := stubCamera{err: &camera.UnavailableError{Source: "/dev/video0", Err: errors.New("busy")}}
	m := newTestModel(t, cam, det)
	m.Store.Set(grid.Grid{{true}})

	m = press(t, m, "p")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	next, _ := m.Update(cmd())
	m = next.(Model)

	view := m.View()
	if !strings.Contains(view, "camera unavailable: busy") {
		t.Fatalf("banner missing:\n%s", view)
	}
	if det.calls != 0 {
		t.Fatal("detector should not run without a frame")
	}
	if m.Store.Snapshot().Count() != 1 {
		t.Fatal("camera failure must not touch the grid")
	}
	if !m.Sequencer.Playing() {
		t.Fatal("camera failure must not stop playback")
	}

	m = press(t, m, "x")
	if strings.Contains(m.View(), "camera unavailable") {
		t.Fatal("x should dismiss the banner")
	}
}

func TestExport(t *testing.T) {
	m := newTestModel(t, stubCamera{}, &fixedDetector{})
	m.Store.Set(grid.Grid{3: {true, false, false, false, true}})
	m = press(t, m, "e")
	if m.err != nil {
		t.Fatal(m.err)
	}

	files, err := filepath.Glob(filepath.Join(m.ExportDir, "*.mid"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one .mid file, got %v (%v)", files, err)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "MThd") {
		t.Fatal("not a standard MIDI file")
	}
}

func TestQuitStopsPlayback(t *testing.T) {
	m := newTestModel(t, stubCamera{}, &fixedDetector{})
	m = press(t, m, "p")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("q should return tea.Quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q should quit")
	}
	if m.Sequencer.Playing() || m.View() != "" {
		t.Fatal("quit should stop playback and clear the view")
	}
}
