package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/soundlab/phisynth/src/audio"
	"golang.org/x/sync/errgroup"
)

var sockFileName = flag.String("sock", "/tmp/phisynth.sock", "unix socket path for the control surface")
var enableMidi = flag.Bool("midi", false, "trigger the default mode from MIDI IN")
var midiMode = flag.String("midi-mode", "phi_tone", "mode triggered by MIDI note-on")

func main() {
	flag.Parse()
	log.SetFlags(log.Lshortfile)

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	surface := newIPCSurface()
	audio, err := audio.NewAudio(surface, surface)
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	defer audio.Close()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, os.Kill, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalCh)
		cancel()
	}()
	go func() {
		sig := <-signalCh
		log.Printf("Caught signal %s: shutting down...\n", sig)
		cancel()
	}()
	err = withIPCConnection(ctx, func(conn net.Conn) error {
		surface.attach(conn)
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return audio.Start(ctx)
		})
		g.Go(func() error {
			return receiveCommands(ctx, conn, audio.CommandCh)
		})
		g.Go(func() error {
			return sendReports(ctx, surface, audio)
		})
		if *enableMidi {
			g.Go(func() error {
				return forwardMidi(ctx, audio, *midiMode)
			})
		}
		return g.Wait()
	})
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	log.Println("main() ended.")
}

func withIPCConnection(ctx context.Context, f func(net.Conn) error) error {
	os.Remove(*sockFileName)
	listener, err := new(net.ListenConfig).Listen(ctx, "unix", *sockFileName)
	if err != nil {
		return err
	}
	defer func() {
		log.Println("Closing IPC...")
		err := listener.Close()
		if err != nil {
			log.Printf("error while closing listener: %v", err)
		}
		os.Remove(*sockFileName)
	}()
	log.Printf("start listening...\n")
	conn, err := listener.Accept()
	if err != nil {
		return err
	}
	defer func() {
		err := conn.Close()
		if err != nil {
			log.Printf("error while closing connection: %v", err)
		}
	}()
	return f(conn)
}

func receiveCommands(ctx context.Context, conn net.Conn, commandCh chan<- []string) error {
	reader := bufio.NewReader(conn)
	var line []byte
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("Connection interrupted")
			break loop
		default:
		}
		next, isPrefix, err := reader.ReadLine()
		if err == io.EOF {
			break loop
		}
		if err != nil {
			return err
		}
		line = append(line, next...)
		if isPrefix {
			continue
		}
		command, err := parseCommand(string(line))
		if err != nil {
			return err
		}
		commandCh <- command
		log.Printf("received: %s\n", string(line))
		line = []byte{}
	}
	log.Println("receiveCommands() ended.")
	return nil
}

func parseCommand(line string) ([]string, error) {
	lineStr := strings.Split(line, " ")
	for i, item := range lineStr {
		escaped, err := url.QueryUnescape(item)
		if err != nil {
			return nil, err
		}
		lineStr[i] = escaped
	}
	return lineStr, nil
}

// sendReports pushes the state line through the surface so that all
// outbound writes share one lock.
func sendReports(ctx context.Context, surface *ipcSurface, audio *audio.Audio) error {
	t := time.NewTicker(time.Second)
	defer t.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("sendReports() interrupted")
			break loop
		case <-t.C:
			surface.SendState(audio.StateJSON())
		}
	}
	log.Println("sendReports() ended.")
	return nil
}

func forwardMidi(ctx context.Context, a *audio.Audio, mode string) error {
	return forwardMidiEvents(ctx, audio.ListenToMidiIn(ctx), a.CommandCh, mode)
}

// forwardMidiEvents translates note events into commands: note-on sets the
// base frequency and triggers the mode, note-off stops the run.
func forwardMidiEvents(ctx context.Context, events <-chan audio.MidiEvent, commandCh chan<- []string, mode string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !ev.On {
				commandCh <- []string{"stop"}
				continue
			}
			freq := audio.NoteToFreq(ev.Note)
			commandCh <- []string{"set", "phi", "base_freq", strconv.FormatFloat(freq, 'f', -1, 64)}
			commandCh <- []string{"run", mode}
		}
	}
}

// ----- IPC Surface ----- //

// ipcSurface is the control surface seen by the synthesis core: parameter
// input fields plus outbound status/alert/field reports, one line each,
// written to the connected client.
type ipcSurface struct {
	mu     sync.Mutex
	conn   io.Writer
	fields map[string]string
}

func newIPCSurface() *ipcSurface {
	return &ipcSurface{
		fields: map[string]string{
			"base_freq":   "220",
			"duration":    "3",
			"drive_curve": "linear",
			"freq_range":  "",
		},
	}
}

func (s *ipcSurface) attach(conn io.Writer) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *ipcSurface) send(kind string, rest string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return
	}
	if _, err := fmt.Fprintf(s.conn, "%s %s\n", kind, rest); err != nil {
		log.Printf("failed to send report: %v\n", err)
	}
}

func (s *ipcSurface) SetStatus(text string) {
	s.send("status", text)
}

func (s *ipcSurface) SetStopEnabled(enabled bool) {
	s.send("stop_enabled", strconv.FormatBool(enabled))
}

func (s *ipcSurface) Alert(text string) {
	s.send("alert", text)
}

func (s *ipcSurface) SendState(state []byte) {
	s.send("state", string(state))
}

func (s *ipcSurface) SetField(name string, value string) bool {
	s.mu.Lock()
	if _, ok := s.fields[name]; !ok {
		s.mu.Unlock()
		return false
	}
	s.fields[name] = value
	s.mu.Unlock()
	s.send("field", name+" "+value)
	return true
}

func (s *ipcSurface) SynthParams() audio.SynthParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	baseFreq, err := strconv.ParseFloat(s.fields["base_freq"], 64)
	if err != nil {
		baseFreq = 0 // the core substitutes its default
	}
	duration, err := strconv.ParseFloat(s.fields["duration"], 64)
	if err != nil {
		duration = 0
	}
	return audio.SynthParams{
		BaseFreq:   baseFreq,
		Duration:   duration,
		DriveCurve: s.fields["drive_curve"],
		FreqRange:  parseRange(s.fields["freq_range"]),
	}
}

func parseRange(text string) []float64 {
	parts := strings.Split(text, "-")
	if len(parts) != 2 {
		return nil
	}
	low, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil
	}
	high, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil
	}
	return []float64{low, high}
}
