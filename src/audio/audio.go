package audio

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/hajimehoshi/oto"
)

// ----- Audio ----- //

// Audio wires the engine and the Φ dispatcher to the output device and the
// command channel.
type Audio struct {
	ctx        context.Context
	otoContext *oto.Context
	CommandCh  chan []string
	engine     *Engine
	synth      *PhiSynth
	surface    ControlSurface
	out        []float64 // length: samplesPerCycle
}

var _ io.Reader = (*Audio)(nil)

// NewAudio opens the output device and starts consuming commands.
func NewAudio(surface ControlSurface, source ParamSource) (*Audio, error) {
	otoContext, err := oto.NewContext(sampleRate, channelNum, bitDepthInBytes, bufferSizeInBytes)
	if err != nil {
		return nil, err
	}
	engine := NewEngine()
	commandCh := make(chan []string, 256)
	audio := &Audio{
		ctx:        context.Background(),
		otoContext: otoContext,
		CommandCh:  commandCh,
		engine:     engine,
		synth:      NewPhiSynth(engine, surface, source),
		surface:    surface,
		out:        make([]float64, samplesPerCycle),
	}
	go processCommands(audio, commandCh)
	return audio, nil
}

func processCommands(audio *Audio, commandCh <-chan []string) {
	for command := range commandCh {
		if err := audio.update(command); err != nil {
			log.Printf("command %v failed: %v\n", command, err)
		}
	}
	log.Println("processCommands() ended.")
}

func (a *Audio) update(command []string) error {
	switch command[0] {
	case "run":
		if len(command) != 2 {
			return fmt.Errorf("usage: run <mode>")
		}
		a.synth.RunMode(command[1])
	case "stop":
		// explicit stop is the low-level teardown; playing/status updates
		// happen here, not in Stop()
		a.synth.Stop()
		a.surface.SetStopEnabled(false)
		a.surface.SetStatus("Synthesis stopped")
	case "restore":
		a.synth.RestoreLastParams()
	case "state":
		a.surface.SendState(a.StateJSON())
	case "diag":
		a.synth.DiagnosticLog()
	case "set":
		command = command[1:]
		if len(command) != 3 || command[0] != "phi" {
			return fmt.Errorf("usage: set phi <key> <value>")
		}
		if !a.surface.SetField(command[1], command[2]) {
			log.Printf("unknown field %q\n", command[1])
		}
	default:
		return fmt.Errorf("unknown command %v", command[0])
	}
	return nil
}

// StateJSON exposes the dispatcher state for the report stream.
func (a *Audio) StateJSON() []byte {
	return a.synth.StateJSON()
}

func (a *Audio) Read(buf []byte) (int, error) {
	select {
	case <-a.ctx.Done():
		log.Println("Read() interrupted.")
		return 0, io.EOF
	default:
		bufSamples := len(buf) / bytesPerSample
		if bufSamples > len(a.out) {
			a.out = make([]float64, bufSamples)
		}
		out := a.out[:bufSamples]
		a.engine.Render(out)
		writeBuffer(out, buf)
		return bufSamples * bytesPerSample, nil
	}
}

// writeBuffer converts mono float samples to 16-bit interleaved stereo.
func writeBuffer(out []float64, buf []byte) {
	const max = 32767
	for i, value := range out {
		b := int16(value * max)
		for ch := 0; ch < channelNum; ch++ {
			buf[bytesPerSample*i+2*ch] = byte(b)
			buf[bytesPerSample*i+2*ch+1] = byte(b >> 8)
		}
	}
}

// Close ...
func (a *Audio) Close() error {
	log.Println("Closing Audio...")
	close(a.CommandCh)
	return a.otoContext.Close()
}

// Start ...
func (a *Audio) Start(ctx context.Context) error {
	p := a.otoContext.NewPlayer()
	defer func() {
		if err := p.Close(); err != nil {
			log.Printf("error: %v", err)
		}
	}()
	a.ctx = ctx

	// block until cancel() called
	if _, err := io.CopyBuffer(p, a, make([]byte, bufferSizeInBytes)); err != nil {
		return err
	}
	log.Println("Start() ended.")
	return nil
}
