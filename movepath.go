package botmaster

// MovepathStatus tracks the lifecycle of a bot's waypoint walk.
type MovepathStatus int

const (
	MovepathInactive MovepathStatus = iota
	MovepathActive
	MovepathPaused
	MovepathCompleted
)

func (s MovepathStatus) String() string {
	switch s {
	case MovepathActive:
		return "active"
	case MovepathPaused:
		return "paused"
	case MovepathCompleted:
		return "completed"
	default:
		return "inactive"
	}
}

// Movepath is an ordered polyline walked waypoint-by-waypoint.
type Movepath struct {
	waypoints []Vec3
	current   int
	looping   bool
	status    MovepathStatus
}

// newMovepath builds an inactive path over the given waypoints.
func newMovepath(waypoints []Vec3, looping bool) *Movepath {
	wp := make([]Vec3, len(waypoints))
	copy(wp, waypoints)
	return &Movepath{waypoints: wp, looping: looping}
}

// Start begins (or restarts) the walk from the first waypoint.
func (m *Movepath) Start() bool {
	if len(m.waypoints) == 0 {
		return false
	}
	m.current = 0
	m.status = MovepathActive
	return true
}

// Pause halts progress without losing the current waypoint.
func (m *Movepath) Pause() {
	if m.status == MovepathActive {
		m.status = MovepathPaused
	}
}

// Resume continues a paused walk.
func (m *Movepath) Resume() {
	if m.status == MovepathPaused {
		m.status = MovepathActive
	}
}

// Stop abandons the walk.
func (m *Movepath) Stop() {
	m.status = MovepathInactive
	m.current = 0
}

// Advance moves to the next waypoint, wrapping when looping. It returns
// the new target and false when the path has completed.
func (m *Movepath) Advance() (Vec3, bool) {
	if m.status != MovepathActive {
		return Vec3{}, false
	}
	m.current++
	if m.current >= len(m.waypoints) {
		if m.looping {
			m.current = 0
		} else {
			m.status = MovepathCompleted
			return Vec3{}, false
		}
	}
	return m.waypoints[m.current], true
}

// Current returns the waypoint being walked toward.
func (m *Movepath) Current() (Vec3, bool) {
	if m.status != MovepathActive && m.status != MovepathPaused {
		return Vec3{}, false
	}
	if m.current >= len(m.waypoints) {
		return Vec3{}, false
	}
	return m.waypoints[m.current], true
}

// Status returns the path lifecycle state.
func (m *Movepath) Status() MovepathStatus {
	return m.status
}

// Len returns the waypoint count.
func (m *Movepath) Len() int {
	return len(m.waypoints)
}

// Looping reports whether the path wraps at the end.
func (m *Movepath) Looping() bool {
	return m.looping
}

// CurrentIndex returns the index of the waypoint being walked toward.
func (m *Movepath) CurrentIndex() int {
	return m.current
}
