package audio

import (
	"context"
	"log"
	"math"

	"gitlab.com/gomidi/rtmididrv"
)

// ----- MIDI ----- //

// MidiEvent is a parsed note message from the first available MIDI input.
type MidiEvent struct {
	On       bool
	Note     int
	Velocity int
}

// NoteToFreq returns the equal-tempered frequency of a MIDI note (A4=440).
func NoteToFreq(note int) float64 {
	return 440.0 * math.Pow(2, float64(note-69)/12)
}

// ListenToMidiIn opens the first MIDI input and streams note events until
// the context is cancelled. Failures are logged, never fatal: the synth is
// fully usable without a MIDI device.
func ListenToMidiIn(ctx context.Context) <-chan MidiEvent {
	ch := make(chan MidiEvent, 65536)
	go func() {
		drv, err := rtmididrv.New()
		if err != nil {
			log.Printf("failed to initialize MIDI driver: %v\n", err)
			return
		}
		defer func() {
			err := drv.Close()
			if err != nil {
				log.Printf("failed to close MIDI driver: %v\n", err)
			}
		}()
		ins, err := drv.Ins()
		if err != nil {
			log.Printf("failed to get MIDI IN: %v\n", err)
			return
		}
		log.Printf("MIDI IN: %v\n", ins)

		if len(ins) == 0 {
			log.Println("WARN: MIDI IN not found")
			return
		}
		in := ins[0]
		if err := in.Open(); err != nil {
			log.Printf("failed to open MIDI IN: %v\n", err)
			return
		}
		log.Println("opened " + in.String())
		defer func() {
			err := in.Close()
			if err != nil {
				log.Printf("failed to close MIDI IN: %v\n", err)
			}
		}()
		log.Println("start listening MIDI IN...")
		if err := in.SetListener(func(data []byte, deltaMicroseconds int64) {
			if len(data) < 3 {
				return
			}
			if data[0]>>4 == 8 || data[0]>>4 == 9 && data[2] == 0 {
				ch <- MidiEvent{On: false, Note: int(data[1])}
			} else if data[0]>>4 == 9 && data[2] > 0 {
				ch <- MidiEvent{On: true, Note: int(data[1]), Velocity: int(data[2])}
			}
		}); err != nil {
			log.Println("failed to set listener: " + err.Error())
		}
		defer func() {
			log.Println("stop listening MIDI IN...")
			err := in.StopListening()
			if err != nil {
				log.Printf("failed to stop listening: %v\n", err)
			}
		}()
		defer close(ch)
		<-ctx.Done()
	}()
	return ch
}
