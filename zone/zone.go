package zone

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ktrzcinx/rtls-app/common"
)

const (
	// MeasureDepth is how many distance samples are kept per device pair.
	MeasureDepth = 5
	// TraceDepth is how many estimated positions are kept per device.
	TraceDepth = 3
)

var (
	ErrDeviceExists    = errors.New("zone: device already exists")
	ErrUnknownDevice   = errors.New("zone: unknown device")
	ErrInvalidDistance = errors.New("zone: distance must be a finite non-negative number")
	ErrSelfMeasurement = errors.New("zone: device cannot measure itself")
	ErrIndexOutOfRange = errors.New("zone: device index out of range")
	ErrInvalidPosition = errors.New("zone: position must be finite")
)

// Trace is one position estimate. Cord is (x, y, z) in zone units.
type Trace struct {
	Cord      [3]float64 `json:"cord"`
	Timestamp int64      `json:"timestamp"`
}

// DevicePosition is a device's position as of a query timestamp.
type DevicePosition struct {
	ID  int   `json:"id"`
	Pos Trace `json:"pos"`
}

// DeviceSnapshot is the debug view of one device.
type DeviceSnapshot struct {
	ID        int     `json:"id"`
	Timestamp int64   `json:"timestamp"`
	Trace     []Trace `json:"trace"`
}

// DeviceHandle refers to a device by insertion order.
type DeviceHandle struct {
	index int
	id    int
}

// ID returns the device id the handle points at.
func (h DeviceHandle) ID() int {
	return h.id
}

type device struct {
	id        int
	timestamp int64 // last activity
	trace     []Trace
}

type pairKey struct {
	lo, hi int
}

func keyFor(a, b int) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

type sample struct {
	timestamp int64
	distance  float64
}

// measureList is a ring of the most recent distance samples for one pair.
type measureList struct {
	samples [MeasureDepth]sample
	n       int
	next    int
}

func (m *measureList) push(s sample) {
	m.samples[m.next] = s
	m.next = (m.next + 1) % MeasureDepth
	if m.n < MeasureDepth {
		m.n++
	}
}

// latest returns the newest sample taken at or before ts.
func (m *measureList) latest(ts int64) (sample, bool) {
	var best sample
	found := false
	for i := 0; i < m.n; i++ {
		s := m.samples[i]
		if s.timestamp > ts {
			continue
		}
		if !found || s.timestamp >= best.timestamp {
			best = s
			found = true
		}
	}
	return best, found
}

// Zone tracks devices and estimates their positions from pairwise distance
// measurements. It is safe for concurrent use.
type Zone struct {
	mu       sync.RWMutex
	devices  []*device
	byID     map[int]*device
	measures map[pairKey]*measureList
}

// New creates an empty zone.
func New() *Zone {
	return &Zone{
		byID:     make(map[int]*device),
		measures: make(map[pairKey]*measureList),
	}
}

// AddDevice registers a device at a known starting position.
func (z *Zone) AddDevice(id int, x, y, zc float64) error {
	if !common.Finite(x, y, zc) {
		return ErrInvalidPosition
	}

	z.mu.Lock()
	defer z.mu.Unlock()

	if _, ok := z.byID[id]; ok {
		return fmt.Errorf("%w: %d", ErrDeviceExists, id)
	}
	d := &device{
		id:    id,
		trace: []Trace{{Cord: [3]float64{x, y, zc}}},
	}
	z.devices = append(z.devices, d)
	z.byID[id] = d
	return nil
}

// Len returns the number of registered devices.
func (z *Zone) Len() int {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return len(z.devices)
}

// AddMeasurement records a distance between two devices and re-estimates
// the position of from at timestampMs.
func (z *Zone) AddMeasurement(from, to int, distance float64, timestampMs int64) error {
	if from == to {
		return ErrSelfMeasurement
	}
	if !common.Finite(distance) || distance < 0 {
		return ErrInvalidDistance
	}

	z.mu.Lock()
	defer z.mu.Unlock()

	src, ok := z.byID[from]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDevice, from)
	}
	dst, ok := z.byID[to]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDevice, to)
	}

	key := keyFor(from, to)
	list, ok := z.measures[key]
	if !ok {
		list = &measureList{}
		z.measures[key] = list
	}
	list.push(sample{timestamp: timestampMs, distance: distance})

	if timestampMs > src.timestamp {
		src.timestamp = timestampMs
	}
	if timestampMs > dst.timestamp {
		dst.timestamp = timestampMs
	}

	z.relocate(src, timestampMs)
	return nil
}

// relocate appends a new position estimate for d. Callers hold z.mu.
func (z *Zone) relocate(d *device, ts int64) {
	prev := d.positionAt(ts)

	var peers []anchor
	for key, list := range z.measures {
		var peerID int
		switch d.id {
		case key.lo:
			peerID = key.hi
		case key.hi:
			peerID = key.lo
		default:
			continue
		}
		s, ok := list.latest(ts)
		if !ok {
			continue
		}
		peer := z.byID[peerID]
		pos := peer.positionAt(ts)
		peers = append(peers, anchor{id: peerID, x: pos.Cord[0], y: pos.Cord[1], r: s.distance})
	}
	// Map iteration order is random; the solver should not be.
	sort.Slice(peers, func(i, j int) bool { return peers[i].id < peers[j].id })

	x, y, ok := locate(prev.Cord[0], prev.Cord[1], peers)
	if !ok {
		return
	}
	d.push(Trace{Cord: [3]float64{x, y, prev.Cord[2]}, Timestamp: ts})
}

// push records t. An estimate for a timestamp already in the trace replaces
// the earlier one, so a burst of measurements taken at one instant leaves a
// single entry.
func (d *device) push(t Trace) {
	for i := range d.trace {
		if d.trace[i].Timestamp == t.Timestamp {
			d.trace[i] = t
			return
		}
	}
	d.trace = append(d.trace, t)
	sort.SliceStable(d.trace, func(i, j int) bool { return d.trace[i].Timestamp < d.trace[j].Timestamp })
	if len(d.trace) > TraceDepth {
		d.trace = append([]Trace(nil), d.trace[len(d.trace)-TraceDepth:]...)
	}
}

// positionAt returns the newest estimate at or before ts, or the oldest one
// kept when every estimate is newer.
func (d *device) positionAt(ts int64) Trace {
	for i := len(d.trace) - 1; i >= 0; i-- {
		if d.trace[i].Timestamp <= ts {
			return d.trace[i]
		}
	}
	return d.trace[0]
}

// AllDevicePositions returns every device's position as of timestampMs,
// ordered by id.
func (z *Zone) AllDevicePositions(timestampMs int64) []DevicePosition {
	z.mu.RLock()
	defer z.mu.RUnlock()

	out := make([]DevicePosition, 0, len(z.devices))
	for _, d := range z.devices {
		out = append(out, DevicePosition{ID: d.id, Pos: d.positionAt(timestampMs)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeviceHandle returns a handle to the index-th device added.
func (z *Zone) DeviceHandle(index int) (DeviceHandle, error) {
	z.mu.RLock()
	defer z.mu.RUnlock()

	if index < 0 || index >= len(z.devices) {
		return DeviceHandle{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return DeviceHandle{index: index, id: z.devices[index].id}, nil
}

// Serialize returns a copy of the device's trace for debugging.
func (z *Zone) Serialize(h DeviceHandle) (DeviceSnapshot, error) {
	z.mu.RLock()
	defer z.mu.RUnlock()

	d, ok := z.byID[h.id]
	if !ok {
		return DeviceSnapshot{}, fmt.Errorf("%w: %d", ErrUnknownDevice, h.id)
	}
	return DeviceSnapshot{
		ID:        d.id,
		Timestamp: d.timestamp,
		Trace:     append([]Trace(nil), d.trace...),
	}, nil
}

// Extent returns the bounding box of all positions as of timestampMs.
// ok is false for an empty zone.
func (z *Zone) Extent(timestampMs int64) (minX, minY, maxX, maxY float64, ok bool) {
	positions := z.AllDevicePositions(timestampMs)
	if len(positions) == 0 {
		return 0, 0, 0, 0, false
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range positions {
		minX = math.Min(minX, p.Pos.Cord[0])
		minY = math.Min(minY, p.Pos.Cord[1])
		maxX = math.Max(maxX, p.Pos.Cord[0])
		maxY = math.Max(maxY, p.Pos.Cord[1])
	}
	return minX, minY, maxX, maxY, true
}
