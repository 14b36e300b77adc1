package audio

import (
	"sync"
)

const (
	sampleRate      = 48000
	channelNum      = 2
	bitDepthInBytes = 2
	samplesPerCycle = 1024
)
const bytesPerSample = bitDepthInBytes * channelNum
const bufferSizeInBytes = samplesPerCycle * bytesPerSample // should be >= 4096
const secPerSample = 1.0 / sampleRate

const outputFilterFreq = 8000.0
const outputFilterQ = 0.7071

// ----- Clock ----- //

type clock interface {
	now() float64
}

// ----- Engine ----- //

// Engine renders the node graph sample by sample. The embedded mutex guards
// the whole graph; everything that builds, tears down or renders it locks
// here. Unexported methods assume the caller holds the lock.
type Engine struct {
	sync.Mutex
	output *outputStage
	pos    int64
	volume float64
}

// outputStage is the fixed downstream filter every voice connects into.
type outputStage struct {
	filter *filter
	inputs []signal
}

func NewEngine() *Engine {
	return &Engine{
		output: &outputStage{
			filter: newOutputFilter(outputFilterFreq, outputFilterQ),
		},
		volume: 1,
	}
}

func (e *Engine) now() float64 {
	return float64(e.pos) * secPerSample
}

// CurrentTime returns the monotonic engine clock in seconds.
func (e *Engine) CurrentTime() float64 {
	e.Lock()
	defer e.Unlock()
	return e.now()
}

// Render fills out with mono samples and advances the clock.
func (e *Engine) Render(out []float64) {
	e.Lock()
	defer e.Unlock()
	for i := 0; i < len(out); i++ {
		sum := 0.0
		for _, in := range e.output.inputs {
			sum += in.sample(e.pos)
		}
		out[i] = e.output.filter.step(sum) * e.volume
		e.pos++
	}
}
