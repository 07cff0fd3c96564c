package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"gridbeat/debug"
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// Ports is a snapshot of the system's MIDI ports
type Ports struct {
	In  []drivers.In
	Out []drivers.Out
}

// DeviceManager polls for grid controllers and reports hot-plug events
type DeviceManager struct {
	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration
	match       func(name string) bool

	listPorts func() Ports
	open      func(id string, in drivers.In, out drivers.Out) (Controller, error)
}

// NewDeviceManager watches for ports whose names contain any of names
// (case-insensitive). With no names it looks for any Launchpad.
func NewDeviceManager(names ...string) *DeviceManager {
	dm := &DeviceManager{
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		match:       isLaunchpad,
		listPorts:   systemPorts,
		open: func(id string, in drivers.In, out drivers.Out) (Controller, error) {
			return NewLaunchpadController(id, in, out)
		},
	}
	if len(names) > 0 {
		dm.match = func(name string) bool {
			for _, n := range names {
				if strings.Contains(name, strings.ToLower(n)) {
					return true
				}
			}
			return false
		}
	}
	return dm
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Run polls until ctx is done (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan(ctx)
		}
	}
}

func systemPorts() Ports {
	return Ports{In: gomidi.GetInPorts(), Out: gomidi.GetOutPorts()}
}

func (dm *DeviceManager) scan(ctx context.Context) {
	// port enumeration can hang on some drivers
	ch := make(chan Ports, 1)
	go func() { ch <- dm.listPorts() }()

	var ports Ports
	select {
	case ports = <-ch:
	case <-time.After(3 * time.Second):
		debug.Warn("devices", "port scan timed out")
		return
	case <-ctx.Done():
		return
	}

	var events []DeviceEvent
	seen := make(map[string]bool)

	for _, in := range ports.In {
		name := strings.ToLower(in.String())
		if !dm.match(name) {
			continue
		}
		id := in.String()
		seen[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		var out drivers.Out
		for _, op := range ports.Out {
			if strings.ToLower(op.String()) == name {
				out = op
				break
			}
		}

		ctrl, err := dm.open(id, in, out)
		if err != nil {
			debug.Warn("devices", "cannot open controller", "id", id, "err", err)
			continue
		}
		dm.mu.Lock()
		dm.controllers[id] = ctrl
		dm.mu.Unlock()
		events = append(events, DeviceEvent{Type: DeviceConnected, Controller: ctrl, ID: id})
	}

	dm.mu.Lock()
	for id, c := range dm.controllers {
		if seen[id] {
			continue
		}
		c.Close()
		delete(dm.controllers, id)
		events = append(events, DeviceEvent{Type: DeviceDisconnected, ID: id})
	}
	dm.mu.Unlock()

	for _, ev := range events {
		debug.Log("devices", "hot-plug", "id", ev.ID, "connected", ev.Type == DeviceConnected)
		select {
		case dm.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

func isLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}
