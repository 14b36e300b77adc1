package audio

import (
	"math"
)

// ----- Wave Kind ----- //

const (
	waveNone = iota
	waveSine
)

// ----- Signal ----- //

// Nodes memoize per position so a source feeding several destinations is
// stepped exactly once per sample.
type signal interface {
	sample(pos int64) float64
}

func removeSignal(list []signal, s signal) []signal {
	removed := 0
	for i := 0; i < len(list); i++ {
		if list[i] == s {
			removed++
		} else {
			list[i-removed] = list[i]
		}
	}
	return list[:len(list)-removed]
}

// ----- OSC Node ----- //

type oscNode struct {
	kind      int
	freq      *param
	freqMod   []signal // summed into the frequency, Hz
	phase     float64
	started   bool
	stopped   bool
	lastPos   int64
	lastValue float64
	detach    []func()
}

func (e *Engine) newOsc(freq float64) *oscNode {
	return &oscNode{
		kind:    waveSine,
		freq:    newParam(freq),
		lastPos: -1,
	}
}

func (o *oscNode) connect(g *gainNode) {
	g.inputs = append(g.inputs, o)
	o.detach = append(o.detach, func() {
		g.inputs = removeSignal(g.inputs, o)
	})
}

func (o *oscNode) start() {
	o.started = true
}

// stop is a no-op for a node that was never started or is already stopped.
func (o *oscNode) stop() {
	o.stopped = true
}

// release stops and disconnects; double-release is a no-op.
func (o *oscNode) release() {
	o.stop()
	for _, detach := range o.detach {
		detach()
	}
	o.detach = nil
}

func (o *oscNode) sample(pos int64) float64 {
	if pos == o.lastPos {
		return o.lastValue
	}
	o.lastPos = pos
	if !o.started || o.stopped {
		o.lastValue = 0
		return 0
	}
	freq := o.freq.valueAt(float64(pos) * secPerSample)
	for _, m := range o.freqMod {
		freq += m.sample(pos)
	}
	value := 0.0
	switch o.kind {
	case waveSine:
		value = math.Sin(o.phase)
	}
	o.phase += 2.0 * math.Pi * freq * secPerSample
	o.lastValue = value
	return value
}

// ----- Gain Node ----- //

type gainNode struct {
	gain      *param
	scale     float64 // per-voice amplitude factor, read by the envelope
	inputs    []signal
	lastPos   int64
	lastValue float64
	detach    []func()
}

func (e *Engine) newGain(value float64) *gainNode {
	return &gainNode{
		gain:    newParam(value),
		scale:   1,
		lastPos: -1,
	}
}

func (g *gainNode) connect(dst *gainNode) {
	dst.inputs = append(dst.inputs, g)
	g.detach = append(g.detach, func() {
		dst.inputs = removeSignal(dst.inputs, g)
	})
}

// connectFreq feeds this gain into an oscillator's frequency input (Hz).
func (g *gainNode) connectFreq(o *oscNode) {
	o.freqMod = append(o.freqMod, g)
	g.detach = append(g.detach, func() {
		o.freqMod = removeSignal(o.freqMod, g)
	})
}

func (g *gainNode) connectOutput(e *Engine) {
	e.output.inputs = append(e.output.inputs, g)
	g.detach = append(g.detach, func() {
		e.output.inputs = removeSignal(e.output.inputs, g)
	})
}

// release disconnects; double-release is a no-op.
func (g *gainNode) release() {
	for _, detach := range g.detach {
		detach()
	}
	g.detach = nil
}

func (g *gainNode) sample(pos int64) float64 {
	if pos == g.lastPos {
		return g.lastValue
	}
	g.lastPos = pos
	sum := 0.0
	for _, in := range g.inputs {
		sum += in.sample(pos)
	}
	g.lastValue = sum * g.gain.valueAt(float64(pos)*secPerSample)
	return g.lastValue
}
