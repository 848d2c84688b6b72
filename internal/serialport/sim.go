package serialport

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/macduff/obdscan/internal/poll"
)

// Sim is a simulated ELM327 adapter for development and demos. Every sent
// command is answered with a plausible mode-01 response, delivered in two
// chunks (echo, then payload plus prompt) to exercise accumulation in the
// engine. A small fraction of exchanges return NO DATA.
type Sim struct {
	t     float64 // virtual time accumulator
	queue []poll.Event

	armed    bool
	deadline time.Time
}

// NewSim creates a simulated adapter.
func NewSim() *Sim { return &Sim{} }

func (s *Sim) Send(command string) {
	s.t += 0.05
	// Half-duplex: a new command supersedes any reply the caller never
	// read, the way the real port flushes its input buffer.
	s.queue = s.queue[:0]
	command = strings.ToUpper(strings.TrimSpace(command))

	if strings.HasPrefix(command, "AT") {
		// Adapter-internal command; answer with a banner like a real reset.
		s.queue = append(s.queue,
			poll.Event{Kind: poll.EventData, Data: []byte("ELM327 v1.4b\r")},
			poll.Event{Kind: poll.EventPrompt, Data: []byte("\r")},
		)
		return
	}

	if len(command) != 4 || !strings.HasPrefix(command, "01") {
		s.queue = append(s.queue,
			poll.Event{Kind: poll.EventPrompt, Data: []byte("?\r")},
		)
		return
	}

	// Echo arrives first, like a real adapter with echo enabled.
	s.queue = append(s.queue, poll.Event{Kind: poll.EventData, Data: []byte(command + "\r")})

	if rand.Float64() < 0.02 {
		s.queue = append(s.queue, poll.Event{Kind: poll.EventPrompt, Data: []byte("NO DATA\r\r")})
		return
	}

	pid := command[2:]
	body := s.response(pid)
	s.queue = append(s.queue, poll.Event{Kind: poll.EventPrompt, Data: []byte(body + "\r\r")})
}

// response builds the positive-response token for a PID with dynamic but
// physically plausible values.
func (s *Sim) response(pid string) string {
	// Simulate RPM cycling between idle and revving; derive load-coupled
	// channels from it the way the demo ECU provider does.
	rpm := 850.0 + 4200.0*math.Sin(s.t*0.3)*math.Sin(s.t*0.3) + rand.Float64()*50
	loadPct := (rpm - 850) / (8000 - 850)
	if loadPct < 0 {
		loadPct = 0
	}

	var raw uint32
	var width int
	switch pid {
	case "0C": // RPM, quarter revs
		raw, width = uint32(rpm*4), 2
	case "0D": // speed km/h
		raw, width = uint32(loadPct*220), 1
	case "04", "11", "45", "47", "48", "49", "4A", "4B", "4C": // percent channels
		raw, width = uint32(loadPct*255), 1
	case "05": // coolant, offset 40
		raw, width = uint32(85+rand.Float64()*5+40), 1
	case "0F", "46": // air temps
		raw, width = uint32(30+rand.Float64()*8+40), 1
	case "0B", "33": // pressures kPa
		raw, width = uint32(30+loadPct*170), 1
	case "0E": // timing advance
		raw, width = uint32(128+(10+loadPct*28)*2), 1
	case "10": // MAF, 0.01 g/s
		raw, width = uint32((2+loadPct*150)*100), 2
	case "06", "07", "08", "09": // fuel trims around 0%
		raw, width = uint32(118+rand.Intn(20)), 2
	case "03": // fuel system status: closed loop / unused
		raw, width = 0x0200, 2
	case "42": // ECU millivolts
		raw, width = uint32(13800+rand.Intn(400)), 2
	default:
		switch widthFor(pid) {
		case 4:
			raw, width = rand.Uint32(), 4
		case 2:
			raw, width = uint32(rand.Intn(1<<16)), 2
		default:
			raw, width = uint32(rand.Intn(1<<8)), 1
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "41 %s", pid)
	for i := width - 1; i >= 0; i-- {
		fmt.Fprintf(&b, " %02X", (raw>>(8*i))&0xFF)
	}
	return b.String()
}

// widthFor mirrors the payload widths of the sensor catalog for PIDs the
// simulator has no dedicated model for.
func widthFor(pid string) int {
	switch {
	case pid >= "24" && pid <= "2B", pid >= "34" && pid <= "3B":
		return 4
	case pid >= "14" && pid <= "1B",
		pid == "1F", pid == "21", pid == "22", pid == "23", pid == "31",
		pid == "32", pid == "43", pid == "44", pid == "4D", pid == "4E",
		pid >= "3C" && pid <= "3F":
		return 2
	}
	return 1
}

func (s *Sim) Poll() poll.Event {
	if len(s.queue) == 0 {
		return poll.Event{Kind: poll.EventNone}
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev
}

func (s *Sim) ArmTimer(d time.Duration) {
	s.armed = true
	s.deadline = time.Now().Add(d)
}

func (s *Sim) DisarmTimer() { s.armed = false }

func (s *Sim) Expired() bool {
	return s.armed && time.Now().After(s.deadline)
}

func (s *Sim) Status() poll.PortStatus { return poll.PortReady }
