package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gridbeat/camera"
	"gridbeat/debug"
	"gridbeat/detect"
	"gridbeat/grid"
	"gridbeat/midi"
	"gridbeat/sequencer"
	"gridbeat/theme"
	"gridbeat/widgets"
)

// scanTimeout bounds one capture plus detection round trip
const scanTimeout = 45 * time.Second

// Deps are the collaborators the model drives
type Deps struct {
	Store     *grid.Store
	Sequencer *sequencer.Sequencer
	Camera    camera.Controller
	Detector  detect.Detector
	DeviceMgr *midi.DeviceManager // optional
	Theme     *theme.Theme
	Kit       midi.DrumKit
	ExportDir string
}

type Model struct {
	Deps

	cursorRow int
	cursorCol int
	scanning  bool
	status    string
	err       error
	quitting  bool

	gridChanged chan struct{}
	surfaces    map[string]context.CancelFunc
}

type UpdateMsg struct{}

type GridChangedMsg struct{}

type DeviceEventMsg midi.DeviceEvent

// ScanResultMsg carries the outcome of a capture and detection round
type ScanResultMsg struct {
	Grid grid.Grid
	Err  error
}

func NewModel(d Deps) Model {
	m := Model{
		Deps:        d,
		gridChanged: make(chan struct{}, 1),
		surfaces:    make(map[string]context.CancelFunc),
	}
	if m.Theme == nil {
		m.Theme = theme.New(theme.DefaultPalette())
	}
	if m.Kit.Name == "" {
		m.Kit = midi.GetKit(midi.DefaultKit)
	}
	changed := m.gridChanged
	d.Store.Subscribe(func(grid.Grid) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	return m
}

func ListenForUpdates(seq *sequencer.Sequencer) tea.Cmd {
	return func() tea.Msg {
		<-seq.Updates()
		return UpdateMsg{}
	}
}

func listenForGrid(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return GridChangedMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	if deviceMgr == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(ev)
	}
}

// Scan captures a frame and runs detection off the UI goroutine
func Scan(cam camera.Controller, det detect.Detector) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
		defer cancel()

		payload, err := camera.Snapshot(ctx, cam)
		if err != nil {
			return ScanResultMsg{Err: err}
		}
		return ScanResultMsg{Grid: det.Detect(ctx, payload)}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Sequencer),
		listenForGrid(m.gridChanged),
		ListenForDevices(m.DeviceMgr),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case UpdateMsg:
		return m, ListenForUpdates(m.Sequencer)

	case GridChangedMsg:
		return m, listenForGrid(m.gridChanged)

	case ScanResultMsg:
		m.scanning = false
		if msg.Err != nil {
			m.err = msg.Err
			m.status = ""
			return m, nil
		}
		m.Store.Set(msg.Grid)
		m.status = fmt.Sprintf("scan: %d cells detected", msg.Grid.Count())
		return m, nil

	case DeviceEventMsg:
		m.handleDevice(midi.DeviceEvent(msg))
		return m, ListenForDevices(m.DeviceMgr)
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		if m.Sequencer.Playing() {
			m.Sequencer.Stop()
		}
		for id, cancel := range m.surfaces {
			cancel()
			delete(m.surfaces, id)
		}
		return m, tea.Quit

	case "up", "k":
		m.cursorRow = (m.cursorRow + grid.Rows - 1) % grid.Rows
	case "down", "j":
		m.cursorRow = (m.cursorRow + 1) % grid.Rows
	case "left", "h":
		m.cursorCol = (m.cursorCol + grid.Cols - 1) % grid.Cols
	case "right", "l":
		m.cursorCol = (m.cursorCol + 1) % grid.Cols

	case " ", "enter":
		if err := m.Store.Toggle(m.cursorRow, m.cursorCol); err != nil {
			m.err = err
		}

	case "p":
		m.status = m.Sequencer.Toggle().String()

	case "c":
		m.Store.Reset()
		m.status = "cleared"

	case "s":
		if m.scanning {
			return m, nil
		}
		m.scanning = true
		m.status = "scanning..."
		return m, Scan(m.Camera, m.Detector)

	case "e":
		path, err := m.export()
		if err != nil {
			m.err = err
		} else {
			m.status = "exported " + path
		}

	case "x", "esc":
		m.err = nil
	}
	return m, nil
}

func (m Model) export() (string, error) {
	name := "gridbeat-" + time.Now().Format("20060102-150405") + ".mid"
	path := filepath.Join(m.ExportDir, name)
	err := midi.ExportFile(path, m.Store.Snapshot(), midi.ExportOptions{
		BPM: m.Sequencer.BPM(),
		Kit: m.Kit,
	})
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	return path, nil
}

func (m Model) handleDevice(ev midi.DeviceEvent) {
	switch ev.Type {
	case midi.DeviceConnected:
		if ev.Controller == nil {
			return
		}
		if cancel, ok := m.surfaces[ev.ID]; ok {
			cancel()
		}
		ctx, cancel := context.WithCancel(context.Background())
		m.surfaces[ev.ID] = cancel
		s := midi.NewSurface(ev.Controller, m.Store, m.Sequencer, m.Theme.Surface())
		go s.Run(ctx)
		debug.Log("tui", "surface attached", "id", ev.ID)

	case midi.DeviceDisconnected:
		if cancel, ok := m.surfaces[ev.ID]; ok {
			cancel()
			delete(m.surfaces, ev.ID)
		}
		debug.Log("tui", "surface detached", "id", ev.ID)
	}
}

var keys = []widgets.KeyBinding{
	{Key: "hjkl", Desc: "move"},
	{Key: "space", Desc: "toggle"},
	{Key: "p", Desc: "play"},
	{Key: "s", Desc: "scan"},
	{Key: "c", Desc: "clear"},
	{Key: "e", Desc: "export"},
	{Key: "q", Desc: "quit"},
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	playhead, playing, bpm := m.Sequencer.GetState()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	errStyle := lipgloss.NewStyle().
		Foreground(m.Theme.BG()).
		Background(m.Theme.Warning()).
		Padding(0, 1)

	playState := "STOP"
	if playing {
		playState = "PLAY"
	} else {
		playhead = -1
	}

	deviceStatus := ""
	if n := len(m.surfaces); n > 0 {
		deviceStatus = fmt.Sprintf("  LP:%d", n)
	}

	header := headerStyle.Render(fmt.Sprintf("gridbeat  %s  %3dbpm  %s%s", playState, bpm, m.Kit.Name, deviceStatus))

	gridView := widgets.RenderGrid(m.Theme, widgets.GridView{
		Grid:      m.Store.Snapshot(),
		Playhead:  playhead,
		CursorRow: m.cursorRow,
		CursorCol: m.cursorCol,
		Focused:   true,
	})

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(gridView)
	out.WriteString("\n\n")

	if m.err != nil {
		out.WriteString(errStyle.Render(errorText(m.err) + "  (x to dismiss)"))
		out.WriteString("\n")
	} else if m.status != "" {
		out.WriteString(dimStyle.Render(m.status))
		out.WriteString("\n")
	}

	out.WriteString(dimStyle.Render(widgets.RenderKeyLine(keys)))
	return out.String()
}

func errorText(err error) string {
	var unavailable *camera.UnavailableError
	if errors.As(err, &unavailable) {
		return "camera unavailable: " + unavailable.Err.Error()
	}
	return err.Error()
}
