// Package serialport provides the serial-line implementations of the polling
// engine's port contract: a real ELM327-style adapter on a serial device and
// a simulated adapter for development without hardware.
package serialport

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/macduff/obdscan/internal/poll"
)

// pollReadTimeout keeps Poll non-blocking: a read returns immediately when
// no bytes are pending.
const pollReadTimeout = time.Millisecond

// Config holds connection parameters for the adapter port.
type Config struct {
	Path string `yaml:"path" json:"path" validate:"required"`
	Baud int    `yaml:"baud" json:"baud" validate:"gt=0"`
}

// ELM drives an ELM327-style adapter over a serial device. The zero state is
// "not open"; Open attaches the device. All methods are safe to call before
// Open succeeds and degrade to no-ops, so the engine can keep ticking while
// the port is being (re)configured.
type ELM struct {
	log zerolog.Logger
	cfg Config

	// mu guards port and userIgnored: Open may run on a retry goroutine
	// while the engine polls.
	mu          sync.Mutex
	port        serial.Port
	userIgnored bool

	armed    bool
	deadline time.Time

	buf []byte
}

// New creates an unopened port.
func New(cfg Config, log zerolog.Logger) *ELM {
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	return &ELM{log: log, cfg: cfg, buf: make([]byte, 256)}
}

// Open attaches the serial device.
func (e *ELM) Open() error {
	mode := &serial.Mode{
		BaudRate: e.cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(e.cfg.Path, mode)
	if err != nil {
		return fmt.Errorf("serialport: open %s: %w", e.cfg.Path, err)
	}
	if err := port.SetReadTimeout(pollReadTimeout); err != nil {
		port.Close()
		return fmt.Errorf("serialport: set read timeout: %w", err)
	}
	port.ResetInputBuffer()
	e.mu.Lock()
	e.port = port
	e.userIgnored = false
	e.mu.Unlock()
	e.log.Info().Str("path", e.cfg.Path).Int("baud", e.cfg.Baud).Msg("port opened")
	return nil
}

// Close detaches the serial device.
func (e *ELM) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.port == nil {
		return nil
	}
	err := e.port.Close()
	e.port = nil
	return err
}

// Send transmits command text terminated by a carriage return. Transmission
// failures are logged and otherwise ignored; silence is handled by the
// engine's request timer.
func (e *ELM) Send(command string) {
	e.mu.Lock()
	port := e.port
	e.mu.Unlock()
	if port == nil {
		return
	}
	if _, err := port.Write([]byte(command + "\r")); err != nil {
		e.log.Error().Err(err).Str("command", command).Msg("serial write failed")
	}
}

// Poll performs one non-blocking receive. Bytes up to a '>' prompt marker
// are delivered as the final chunk of a response; NUL padding some adapters
// emit is dropped.
func (e *ELM) Poll() poll.Event {
	e.mu.Lock()
	port := e.port
	e.mu.Unlock()
	if port == nil {
		return poll.Event{Kind: poll.EventNone}
	}

	n, err := port.Read(e.buf)
	if err != nil {
		e.log.Error().Err(err).Msg("serial read failed")
		return poll.Event{Kind: poll.EventNone}
	}
	if n == 0 {
		return poll.Event{Kind: poll.EventNone}
	}

	data := make([]byte, 0, n)
	prompt := false
	for _, b := range e.buf[:n] {
		switch {
		case b == '>':
			prompt = true
		case b != 0:
			data = append(data, b)
		}
	}
	if prompt {
		return poll.Event{Kind: poll.EventPrompt, Data: data}
	}
	return poll.Event{Kind: poll.EventData, Data: data}
}

// ArmTimer starts the bounded request timer.
func (e *ELM) ArmTimer(d time.Duration) {
	e.armed = true
	e.deadline = time.Now().Add(d)
}

// DisarmTimer cancels it.
func (e *ELM) DisarmTimer() { e.armed = false }

// Expired reports whether an armed timer has run out.
func (e *ELM) Expired() bool {
	return e.armed && time.Now().After(e.deadline)
}

// Status reports the port connection state.
func (e *ELM) Status() poll.PortStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.port != nil:
		return poll.PortReady
	case e.userIgnored:
		return poll.PortUserIgnored
	}
	return poll.PortNotOpen
}

// MarkUserIgnored records the user's choice to proceed without a usable
// port for the rest of the session.
func (e *ELM) MarkUserIgnored() {
	e.mu.Lock()
	e.userIgnored = true
	e.mu.Unlock()
}
