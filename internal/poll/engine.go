// Package poll contains the sensor polling state machine and its refresh
// rate instrumentation.
package poll

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/macduff/obdscan/internal/obd"
)

const (
	// MaxRetries bounds re-issues of one exchange before the failure is
	// surfaced and the cursor moves on.
	MaxRetries = 3
	// TimeoutThreshold is the number of consecutive silent exchanges after
	// which the device is considered disconnected.
	TimeoutThreshold = 3
	// DefaultRequestTimeout bounds one request/response exchange.
	DefaultRequestTimeout = 5 * time.Second
	// ResetCommand reinitializes the adapter.
	ResetCommand = "ATZ"
)

// Config carries the engine's construction parameters.
type Config struct {
	Units          obd.Units
	RequestTimeout time.Duration
}

// Engine is the sensor polling state machine. It owns the polling cursor,
// the in-flight exchange and the retry/timeout policy, and is driven by a
// host scheduler calling Tick. All entry points must be called from a single
// goroutine; the tick counter behind the estimator is the only state shared
// with other goroutines.
type Engine struct {
	log   zerolog.Logger
	port  Port
	pres  Presenter
	table *obd.Table
	rate  *RateEstimator

	units          obd.Units
	requestTimeout time.Duration

	page   int
	cursor int

	awaiting     bool
	accum        []byte
	retries      int
	flushPending bool
	resetPending bool

	timeouts       int
	connected      bool
	ignoreNoDevice bool
	portIgnored    bool
}

// New creates an engine polling the given table through port, surfacing
// conditions through pres.
func New(cfg Config, table *obd.Table, port Port, pres Presenter, rate *RateEstimator, log zerolog.Logger) *Engine {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Engine{
		log:            log,
		port:           port,
		pres:           pres,
		table:          table,
		rate:           rate,
		units:          cfg.Units,
		requestTimeout: timeout,
		retries:        MaxRetries,
		resetPending:   true, // resynchronize the adapter on the first tick
	}
}

// Tick runs one scheduler step. It never blocks: absence of serial data
// simply yields until the next tick.
func (e *Engine) Tick() {
	if e.resetPending {
		e.resetPending = false
		e.abandonExchange()
		e.cursor = 0
		e.retries = MaxRetries
		e.port.Send(ResetCommand)
		e.log.Debug().Msg("adapter reset issued")
		return
	}

	switch e.port.Status() {
	case PortNotOpen:
		if e.portIgnored {
			break
		}
		if e.pres.PromptPortNotReady() == DecisionIgnore {
			e.portIgnored = true
		}
		return
	case PortUserIgnored:
		// the collaborator already recorded the user's choice to proceed
	}

	page := e.table.Page(e.page)
	if len(page) == 0 {
		return
	}
	sensor := &page[e.cursor]

	if !sensor.Enabled {
		e.rate.Observe(SensorOff, len(page), e.table.DisabledOnPage(e.page))
		e.advance()
		return
	}

	if !e.awaiting {
		e.port.Send(sensor.Command)
		e.port.ArmTimer(e.requestTimeout)
		e.accum = e.accum[:0]
		// A pending flush only applies to the exchange that was in flight
		// at the page switch; a fresh command starts a clean exchange.
		e.flushPending = false
		e.awaiting = true
		return
	}

	switch ev := e.port.Poll(); ev.Kind {
	case EventData:
		e.accum = append(e.accum, ev.Data...)
	case EventPrompt:
		if !e.connected {
			e.log.Info().Msg("device connected")
		}
		e.connected = true
		e.timeouts = 0
		e.awaiting = false
		e.port.DisarmTimer()
		if e.flushPending {
			// Stale prompt left over from the previous page's exchange.
			e.flushPending = false
			e.accum = e.accum[:0]
			return
		}
		e.accum = append(e.accum, ev.Data...)
		e.conclude(sensor, page)
		return
	}

	if e.port.Expired() {
		e.onTimeout(sensor, page)
	}
}

// conclude classifies a completed exchange and applies the terminal
// transition for the sensor at the cursor.
func (e *Engine) conclude(sensor *obd.Sensor, page []obd.Sensor) {
	disabled := e.table.DisabledOnPage(e.page)
	response := string(e.accum)
	kind := obd.Classify(response)

	if kind == obd.HexData {
		token, _ := obd.ExtractPositiveResponse(response)
		raw, err := obd.Payload(token, sensor.Bytes)
		if err == nil {
			sensor.Value = sensor.Decode(raw, e.units)
			e.rate.Observe(SensorActive, len(page), disabled)
			e.advance()
			return
		}
		// A positive token that fails to parse degrades like device silence.
		e.log.Debug().Str("token", token).Err(err).Msg("unparsable positive response")
		kind = obd.NoData
	}

	sensor.Value = obd.ValueUnavailable
	e.rate.Observe(SensorNA, len(page), disabled)

	switch {
	case kind == obd.NoData:
		e.advance()
	case kind == obd.BusError:
		e.log.Warn().Str("command", sensor.Command).Msg("bus error")
		e.pres.Alert(CondBusError)
		e.advance()
	default:
		e.retries--
		if e.retries > 0 {
			// Re-issue the same command on the next tick.
			return
		}
		e.log.Warn().Str("command", sensor.Command).Stringer("kind", kind).Msg("retries exhausted")
		e.pres.Alert(conditionFor(kind))
		e.advance()
	}
}

func (e *Engine) onTimeout(sensor *obd.Sensor, page []obd.Sensor) {
	e.awaiting = false
	e.port.DisarmTimer()
	sensor.Value = obd.ValueUnavailable
	e.rate.Observe(SensorNA, len(page), e.table.DisabledOnPage(e.page))

	e.timeouts++
	if e.timeouts >= TimeoutThreshold {
		e.timeouts = 0
		if e.connected {
			e.log.Info().Msg("device disconnected")
		}
		e.connected = false
		if !e.ignoreNoDevice {
			if e.pres.PromptDeviceNotResponding() == DecisionIgnore {
				e.ignoreNoDevice = true
			}
		}
	}
	e.advance()
}

func conditionFor(kind obd.ResponseKind) Condition {
	switch kind {
	case obd.BusBusy:
		return CondBusBusy
	case obd.DataError, obd.DataError2:
		return CondDataError
	}
	return CondSerialError
}

// advance moves the cursor to the next sensor on the page and resets the
// retry budget for the new exchange.
func (e *Engine) advance() {
	page := e.table.Page(e.page)
	if len(page) == 0 {
		e.cursor = 0
	} else {
		e.cursor = (e.cursor + 1) % len(page)
	}
	e.retries = MaxRetries
}

func (e *Engine) abandonExchange() {
	e.awaiting = false
	e.flushPending = false
	e.accum = e.accum[:0]
	e.port.DisarmTimer()
}

// OnPageChanged switches the active page and forces a full reset of the
// polling state. If an exchange is in flight, its eventual prompt is
// discarded rather than classified against the new page's sensor.
func (e *Engine) OnPageChanged(page int) {
	last := e.table.PageCount() - 1
	if page < 0 {
		page = 0
	} else if page > last {
		page = last
	}
	e.page = page
	e.cursor = 0
	e.retries = MaxRetries
	e.timeouts = 0
	e.accum = e.accum[:0]
	e.rate.Reset()
	e.table.FillPage(page)
	if e.awaiting {
		e.flushPending = true
	}
	e.log.Debug().Int("page", page).Msg("page changed")
}

// Page returns the active page index.
func (e *Engine) Page() int { return e.page }

// OnSensorToggled flips the enabled flag of the sensor at the given catalog
// index and updates its display sentinel. Disabling the sensor currently in
// flight abandons its exchange.
func (e *Engine) OnSensorToggled(index int) {
	if index < 0 || index >= len(e.table.Sensors) {
		return
	}
	sensor := &e.table.Sensors[index]
	sensor.Enabled = !sensor.Enabled
	if sensor.Enabled {
		sensor.Value = obd.ValueUnavailable
	} else {
		sensor.Value = obd.ValueNotMonitored
		if index == e.page*obd.SensorsPerPage+e.cursor && e.awaiting {
			e.abandonExchange()
		}
	}

	page := e.table.Page(e.page)
	if len(page) > 0 && e.table.DisabledOnPage(e.page) >= len(page) {
		e.timeouts = 0
	}
	if e.flushPending {
		e.cursor = 0
	}
}

// OnResetRequested schedules a hardware reset; the in-flight exchange is
// abandoned on the next tick.
func (e *Engine) OnResetRequested() {
	e.resetPending = true
}

// SetUnits changes the measurement system used for newly decoded values.
func (e *Engine) SetUnits(u obd.Units) { e.units = u }

// SensorView is one row of a snapshot.
type SensorView struct {
	Index   int    `json:"index"`
	Label   string `json:"label"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

// Snapshot is the read-only per-tick state handed to the presentation
// collaborator.
type Snapshot struct {
	Page            int          `json:"page"`
	Pages           int          `json:"pages"`
	Sensors         []SensorView `json:"sensors"`
	InstantHz       float64      `json:"instantHz"`
	AverageHz       float64      `json:"averageHz"`
	DeviceConnected bool         `json:"deviceConnected"`
	PortStatus      string       `json:"portStatus"`
}

// Snapshot captures the active page's display state and the rate estimates.
func (e *Engine) Snapshot() Snapshot {
	page := e.table.Page(e.page)
	views := make([]SensorView, len(page))
	base := e.page * obd.SensorsPerPage
	for i, s := range page {
		views[i] = SensorView{
			Index:   base + i,
			Label:   s.Label,
			Value:   s.Value,
			Enabled: s.Enabled,
		}
	}
	inst, avg := e.rate.Rates()
	return Snapshot{
		Page:            e.page,
		Pages:           e.table.PageCount(),
		Sensors:         views,
		InstantHz:       inst,
		AverageHz:       avg,
		DeviceConnected: e.connected,
		PortStatus:      e.port.Status().String(),
	}
}
