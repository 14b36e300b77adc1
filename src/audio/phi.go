package audio

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"
)

const phi = 1.618033988749895

const defaultBaseFreq = 220.0
const defaultDuration = 3.0

// ----- Synth Params ----- //

// SynthParams is the externally supplied parameter set. The core treats it
// as immutable per invocation and snapshots it into lastParams.
type SynthParams struct {
	BaseFreq   float64
	Duration   float64
	DriveCurve string
	FreqRange  []float64 // nil, or [low, high] in Hz
}

// ParamSource supplies the current parameters on demand; read-only to the
// core.
type ParamSource interface {
	SynthParams() SynthParams
}

// ControlSurface is the narrow slice of UI the core reads and writes.
// SetField reports whether the named field exists; missing fields are
// skipped independently. SendState carries a state report to whatever
// client is attached.
type ControlSurface interface {
	SetStatus(text string)
	SetStopEnabled(enabled bool)
	Alert(text string)
	SetField(name string, value string) bool
	SendState(state []byte)
}

// ----- Mode ----- //

const (
	modeNone = iota
	modePhiTone
	modePhiAM
	modePhiFM
	modePhiIntervals
	modePhiHarmonics
)

func modeFromString(s string) int {
	switch s {
	case "phi_tone":
		return modePhiTone
	case "phi_am":
		return modePhiAM
	case "phi_fm":
		return modePhiFM
	case "phi_intervals":
		return modePhiIntervals
	case "phi_harmonics":
		return modePhiHarmonics
	}
	return modeNone
}

func modeToString(mode int) string {
	switch mode {
	case modePhiTone:
		return "phi_tone"
	case modePhiAM:
		return "phi_am"
	case modePhiFM:
		return "phi_fm"
	case modePhiIntervals:
		return "phi_intervals"
	case modePhiHarmonics:
		return "phi_harmonics"
	}
	return "none"
}

type modeSpec struct {
	label        string
	build        func(s *PhiSynth, curve int, base float64, dur float64, rng [2]float64)
	defaultRange func(base float64) [2]float64
}

var modeTable = map[int]*modeSpec{
	modePhiTone:      {"Φ Tone", (*PhiSynth).buildTone, phiWindow},
	modePhiAM:        {"Φ AM", (*PhiSynth).buildAM, phiWindow},
	modePhiFM:        {"Φ FM", (*PhiSynth).buildFM, phiWindow},
	modePhiIntervals: {"Φ Interval Stack", (*PhiSynth).buildIntervals, intervalWindow},
	modePhiHarmonics: {"Φ Harmonic Stack", (*PhiSynth).buildHarmonics, harmonicWindow},
}

func phiWindow(base float64) [2]float64 {
	return [2]float64{base, base * phi}
}
func intervalWindow(base float64) [2]float64 {
	return [2]float64{base, base * phi * phi * phi}
}
func harmonicWindow(base float64) [2]float64 {
	return [2]float64{base, base * 8}
}

// clampFreq maps a desired frequency into [low, high]. Deterministic clamp,
// no wrap-around.
func clampFreq(freq float64, rng [2]float64) float64 {
	return math.Max(rng[0], math.Min(rng[1], freq))
}

func safeBaseFreq(v float64) float64 {
	if v > 0 && !math.IsInf(v, 1) {
		return v
	}
	return defaultBaseFreq
}
func safeDuration(v float64) float64 {
	if v > 0 && !math.IsInf(v, 1) {
		return v
	}
	return defaultDuration
}

// ----- Phi Synth ----- //

// PhiSynth owns the one-active-run-at-a-time invariant: the registry of
// live nodes, the auto-stop timer and the lastParams snapshot. All state is
// guarded by the engine lock, shared with the render loop.
type PhiSynth struct {
	engine  *Engine
	surface ControlSurface
	source  ParamSource

	oscs     []*oscNode
	auxNodes []*gainNode
	timer    *time.Timer
	runSeq   uint64
	playing  bool
	mode     int

	lastParams *SynthParams
}

func NewPhiSynth(engine *Engine, surface ControlSurface, source ParamSource) *PhiSynth {
	return &PhiSynth{
		engine:  engine,
		surface: surface,
		source:  source,
	}
}

// RunMode starts the named synthesis mode. A running mode is torn down
// first, so re-triggering never accumulates nodes.
func (s *PhiSynth) RunMode(name string) {
	mode := modeFromString(name)
	spec := modeTable[mode]
	if spec == nil {
		log.Printf("unknown synthesis mode %q\n", name)
		return
	}
	if s.engine == nil {
		s.surface.Alert("Audio engine is not available")
		return
	}
	s.engine.Lock()
	defer s.engine.Unlock()
	if s.engine.output == nil {
		s.surface.Alert("Audio output stage is not available")
		return
	}
	s.teardownLocked()

	p := s.source.SynthParams()
	base := safeBaseFreq(p.BaseFreq)
	dur := safeDuration(p.Duration)
	rng := spec.defaultRange(base)
	if validRange(p.FreqRange) {
		rng = [2]float64{p.FreqRange[0], p.FreqRange[1]}
	}
	curve := driveCurveFromString(p.DriveCurve)
	spec.build(s, curve, base, dur, rng)

	snapshot := p
	if p.FreqRange != nil {
		snapshot.FreqRange = append([]float64(nil), p.FreqRange...)
	}
	s.lastParams = &snapshot
	s.playing = true
	s.mode = mode
	s.surface.SetStopEnabled(true)
	s.surface.SetStatus(fmt.Sprintf("Running %s for %gs", spec.label, dur))
	s.armTimerLocked(dur, spec.label)
}

// Stop tears down the active run unconditionally: oscillators stopped and
// disconnected, aux nodes disconnected, pending auto-stop cancelled. Safe
// to call when idle and safe to call twice. Status and control updates on
// this path belong to the caller.
func (s *PhiSynth) Stop() {
	if s.engine == nil {
		return
	}
	s.engine.Lock()
	defer s.engine.Unlock()
	s.teardownLocked()
}

func (s *PhiSynth) teardownLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	// a stale auto-stop callback must see a different sequence even if
	// Stop() raced with the timer having already fired
	s.runSeq++
	for _, o := range s.oscs {
		o.release()
	}
	for _, g := range s.auxNodes {
		g.release()
	}
	s.oscs = s.oscs[:0]
	s.auxNodes = s.auxNodes[:0]
	s.playing = false
	s.mode = modeNone
}

func (s *PhiSynth) armTimerLocked(duration float64, label string) {
	seq := s.runSeq
	s.timer = time.AfterFunc(time.Duration(duration*float64(time.Second)), func() {
		s.autoStop(seq, label)
	})
}

func (s *PhiSynth) autoStop(seq uint64, label string) {
	s.engine.Lock()
	defer s.engine.Unlock()
	if seq != s.runSeq || s.timer == nil {
		return // superseded by a newer run or an explicit stop
	}
	s.timer = nil
	s.teardownLocked()
	s.surface.SetStopEnabled(false)
	s.surface.SetStatus(label + " complete")
}

// ----- Node Registry ----- //

func (s *PhiSynth) registerOsc(o *oscNode) *oscNode {
	s.oscs = append(s.oscs, o)
	return o
}

func (s *PhiSynth) registerGain(g *gainNode) *gainNode {
	s.auxNodes = append(s.auxNodes, g)
	return g
}

// ----- Envelope ----- //

// applyPhiEnvelope schedules the 4-breakpoint amplitude curve on a voice's
// gain: 0 at start, peak after the attack, the sustain level until the
// release begins, 0 at start+duration. Very short durations degrade to
// attack+release only. Re-arming cancels anything previously scheduled.
func applyPhiEnvelope(g *gainNode, duration float64, curve int, now float64, c clock) {
	safe := safeDuration(duration)
	attack := clampF(0.2*safe, 0.05, 0.5)
	sustainTime := math.Max(safe-2*attack, 0)
	peak := driveCurveValue(curve, 1) * g.scale
	sustainLevel := driveCurveValue(curve, 0.5) * g.scale
	// guard against a stale caller timestamp
	start := math.Max(now, c.now())

	g.gain.cancelScheduled()
	g.gain.setValueAt(0, start)
	g.gain.linearRampTo(peak, start+attack)
	if sustainTime > 0 {
		g.gain.linearRampTo(sustainLevel, start+attack+sustainTime)
	}
	g.gain.linearRampTo(0, start+safe)
}

func clampF(v float64, low float64, high float64) float64 {
	return math.Max(low, math.Min(high, v))
}

// ----- Topology Builders ----- //

func (s *PhiSynth) buildTone(curve int, base float64, dur float64, rng [2]float64) {
	e := s.engine
	osc := s.registerOsc(e.newOsc(clampFreq(base*phi, rng)))
	env := s.registerGain(e.newGain(0))
	env.scale = 0.6
	osc.connect(env)
	env.connectOutput(e)
	applyPhiEnvelope(env, dur, curve, e.now(), e)
	osc.start()
}

// AM and FM route the modulator through a depth gain into the carrier's
// frequency input; the modulator frequency is a Φ ratio of the base and is
// never clamped.
func (s *PhiSynth) buildAM(curve int, base float64, dur float64, rng [2]float64) {
	e := s.engine
	carrierFreq := clampFreq(base, rng)
	carrier := s.registerOsc(e.newOsc(carrierFreq))
	modulator := s.registerOsc(e.newOsc(base / phi))
	depth := s.registerGain(e.newGain(driveCurveValue(curve, 0.6) * carrierFreq * 0.25))
	modulator.connect(depth)
	depth.connectFreq(carrier)
	env := s.registerGain(e.newGain(0))
	env.scale = driveCurveValue(curve, 0.8) * 0.6
	carrier.connect(env)
	env.connectOutput(e)
	applyPhiEnvelope(env, dur, curve, e.now(), e)
	carrier.start()
	modulator.start()
}

func (s *PhiSynth) buildFM(curve int, base float64, dur float64, rng [2]float64) {
	e := s.engine
	modFreq := base * phi
	carrier := s.registerOsc(e.newOsc(clampFreq(base, rng)))
	modulator := s.registerOsc(e.newOsc(modFreq))
	depth := s.registerGain(e.newGain(driveCurveValue(curve, 0.7) * modFreq * 0.35))
	modulator.connect(depth)
	depth.connectFreq(carrier)
	env := s.registerGain(e.newGain(0))
	env.scale = driveCurveValue(curve, 0.9) * 0.6
	carrier.connect(env)
	env.connectOutput(e)
	applyPhiEnvelope(env, dur, curve, e.now(), e)
	carrier.start()
	modulator.start()
}

func (s *PhiSynth) buildIntervals(curve int, base float64, dur float64, rng [2]float64) {
	e := s.engine
	freq := base
	for i := 0; i < 4; i++ {
		osc := s.registerOsc(e.newOsc(clampFreq(freq, rng)))
		env := s.registerGain(e.newGain(0))
		env.scale = driveCurveValue(curve, float64(i+1)/4) * 0.4
		osc.connect(env)
		env.connectOutput(e)
		applyPhiEnvelope(env, dur, curve, e.now(), e)
		osc.start()
		freq *= phi
	}
}

func (s *PhiSynth) buildHarmonics(curve int, base float64, dur float64, rng [2]float64) {
	e := s.engine
	for i := 1; i <= 8; i++ {
		osc := s.registerOsc(e.newOsc(clampFreq(base*float64(i), rng)))
		env := s.registerGain(e.newGain(0))
		env.scale = driveCurveValue(curve, 1/float64(i)) * math.Pow(phi, -float64(i-1)) * 0.5
		osc.connect(env)
		env.connectOutput(e)
		applyPhiEnvelope(env, dur, curve, e.now(), e)
		osc.start()
	}
}

// ----- Restore / Diagnostics ----- //

// RestoreLastParams writes the last successfully started run's parameters
// back into the surface's input fields. No snapshot means no-op.
func (s *PhiSynth) RestoreLastParams() {
	if s.engine == nil {
		return
	}
	s.engine.Lock()
	defer s.engine.Unlock()
	p := s.lastParams
	if p == nil {
		return
	}
	s.surface.SetField("base_freq", strconv.FormatFloat(p.BaseFreq, 'f', -1, 64))
	s.surface.SetField("duration", strconv.FormatFloat(p.Duration, 'f', -1, 64))
	s.surface.SetField("drive_curve", p.DriveCurve)
	if len(p.FreqRange) == 2 {
		s.surface.SetField("freq_range", formatRange(p.FreqRange))
	}
	s.surface.SetStatus("Restored last Φ parameters")
}

// DiagnosticLog emits the current (not snapshotted) parameters to the log
// and a one-line summary to the status text.
func (s *PhiSynth) DiagnosticLog() {
	if s.engine == nil {
		return
	}
	s.engine.Lock()
	defer s.engine.Unlock()
	p := s.source.SynthParams()
	rangeText := "N/A"
	if numericPair(p.FreqRange) {
		rangeText = formatRange(p.FreqRange)
	}
	line := fmt.Sprintf("base=%gHz duration=%gs curve=%s range=%s",
		p.BaseFreq, p.Duration, p.DriveCurve, rangeText)
	log.Printf("Φ params: %s\n", line)
	s.surface.SetStatus("Φ params: " + line)
}

// numericPair reports whether r is a two-element finite pair. Ordering is
// not required; display code renders whatever the user typed.
func numericPair(r []float64) bool {
	if len(r) != 2 {
		return false
	}
	for _, v := range r {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// validRange additionally requires low <= high; only ordered pairs are
// usable as a clamp window.
func validRange(r []float64) bool {
	return numericPair(r) && r[0] <= r[1]
}

func formatRange(r []float64) string {
	return fmt.Sprintf("%g-%g", r[0], r[1])
}

// ----- State JSON ----- //

type synthParamsJSON struct {
	BaseFreq   float64   `json:"baseFreq"`
	Duration   float64   `json:"duration"`
	DriveCurve string    `json:"driveCurve"`
	FreqRange  []float64 `json:"freqRange,omitempty"`
}

type phiStateJSON struct {
	Playing    bool             `json:"playing"`
	Mode       string           `json:"mode"`
	Params     synthParamsJSON  `json:"params"`
	LastParams *synthParamsJSON `json:"lastParams,omitempty"`
}

func paramsToJSON(p SynthParams) synthParamsJSON {
	return synthParamsJSON{
		BaseFreq:   p.BaseFreq,
		Duration:   p.Duration,
		DriveCurve: p.DriveCurve,
		FreqRange:  p.FreqRange,
	}
}

// StateJSON reports the dispatcher state for diagnostics and the IPC
// status stream.
func (s *PhiSynth) StateJSON() []byte {
	if s.engine != nil {
		s.engine.Lock()
		defer s.engine.Unlock()
	}
	j := &phiStateJSON{
		Playing: s.playing,
		Mode:    modeToString(s.mode),
		Params:  paramsToJSON(s.source.SynthParams()),
	}
	if s.lastParams != nil {
		lp := paramsToJSON(*s.lastParams)
		j.LastParams = &lp
	}
	bytes, err := json.Marshal(j)
	if err != nil {
		panic(err)
	}
	return bytes
}
