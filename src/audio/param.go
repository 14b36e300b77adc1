package audio

// ----- Param ----- //

// A param is a scalar control that can be scheduled ahead of time with
// step and linear-ramp breakpoints, evaluated against the engine clock.
// With no breakpoints it holds a plain value (depth gains, fixed freqs).
type breakpoint struct {
	time  float64 // sec
	value float64
	ramp  bool // linear from the previous breakpoint; step otherwise
}

type param struct {
	value  float64
	points []breakpoint
}

func newParam(value float64) *param {
	return &param{value: value}
}

func (p *param) setValueAt(value float64, time float64) {
	p.schedule(breakpoint{time: time, value: value})
}

// linearRampTo ramps from the preceding breakpoint. With nothing scheduled
// before it, it degrades to a step at the target time.
func (p *param) linearRampTo(value float64, time float64) {
	p.schedule(breakpoint{time: time, value: value, ramp: true})
}

func (p *param) cancelScheduled() {
	p.points = p.points[:0]
}

func (p *param) schedule(bp breakpoint) {
	i := len(p.points)
	for i > 0 && p.points[i-1].time > bp.time {
		i--
	}
	p.points = append(p.points, breakpoint{})
	copy(p.points[i+1:], p.points[i:])
	p.points[i] = bp
}

func (p *param) valueAt(t float64) float64 {
	if len(p.points) == 0 {
		return p.value
	}
	if t < p.points[0].time {
		return p.value
	}
	i := 0
	for i+1 < len(p.points) && p.points[i+1].time <= t {
		i++
	}
	if i+1 < len(p.points) && p.points[i+1].ramp {
		a := p.points[i]
		b := p.points[i+1]
		if b.time <= a.time {
			return b.value
		}
		u := (t - a.time) / (b.time - a.time)
		return a.value + (b.value-a.value)*u
	}
	return p.points[i].value
}
