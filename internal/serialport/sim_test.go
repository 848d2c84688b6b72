package serialport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/macduff/obdscan/internal/obd"
	"github.com/macduff/obdscan/internal/poll"
)

// drain accumulates events for one exchange, up to and including the prompt.
func drain(t *testing.T, s *Sim) string {
	t.Helper()
	var acc []byte
	for i := 0; i < 16; i++ {
		ev := s.Poll()
		switch ev.Kind {
		case poll.EventData:
			acc = append(acc, ev.Data...)
		case poll.EventPrompt:
			return string(append(acc, ev.Data...))
		case poll.EventNone:
			t.Fatal("queue ran dry before the prompt")
		}
	}
	t.Fatal("no prompt after 16 events")
	return ""
}

func TestSimAnswersEveryCatalogSensor(t *testing.T) {
	sim := NewSim()

	for _, sensor := range obd.NewTable().Sensors {
		sim.Send(sensor.Command)
		text := drain(t, sim)

		kind := obd.Classify(text)
		if kind == obd.NoData {
			continue // injected fault, legitimate
		}
		require.Equal(t, obd.HexData, kind, "command %s got %q", sensor.Command, text)

		token, ok := obd.ExtractPositiveResponse(text)
		require.True(t, ok)
		raw, err := obd.Payload(token, sensor.Bytes)
		require.NoError(t, err, "command %s token %q", sensor.Command, token)
		require.NotEmpty(t, sensor.Decode(raw, obd.Metric))
	}
}

func TestSimEchoesCommandFirst(t *testing.T) {
	sim := NewSim()
	sim.Send("010C")

	ev := sim.Poll()
	require.Equal(t, poll.EventData, ev.Kind)
	require.Equal(t, "010C\r", string(ev.Data))
}

func TestSimNewCommandSupersedesUnreadReply(t *testing.T) {
	sim := NewSim()
	sim.Send("ATZ")
	sim.Send("010C") // reset banner never drained

	ev := sim.Poll()
	require.Equal(t, poll.EventData, ev.Kind)
	require.Equal(t, "010C\r", string(ev.Data))

	text := drain(t, sim)
	require.NotContains(t, text, "ELM327")
}

func TestSimAnswersATWithBanner(t *testing.T) {
	sim := NewSim()
	sim.Send("ATZ")
	text := drain(t, sim)
	require.Contains(t, text, "ELM327")
}

func TestSimRejectsGarbage(t *testing.T) {
	sim := NewSim()
	sim.Send("FOO")
	text := drain(t, sim)
	require.Equal(t, obd.Rubbish, obd.Classify(text))
}

func TestSimPollWithoutTrafficYieldsNone(t *testing.T) {
	sim := NewSim()
	require.Equal(t, poll.EventNone, sim.Poll().Kind)
}

func TestSimTimer(t *testing.T) {
	sim := NewSim()
	require.False(t, sim.Expired())

	sim.ArmTimer(time.Nanosecond)
	time.Sleep(time.Millisecond)
	require.True(t, sim.Expired())

	sim.DisarmTimer()
	require.False(t, sim.Expired())
}

func TestSimAlwaysReady(t *testing.T) {
	require.Equal(t, poll.PortReady, NewSim().Status())
}
