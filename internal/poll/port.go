package poll

import "time"

// PortStatus mirrors the serial collaborator's connection state.
type PortStatus int

const (
	PortReady PortStatus = iota
	PortNotOpen
	PortUserIgnored
)

func (s PortStatus) String() string {
	switch s {
	case PortReady:
		return "ready"
	case PortNotOpen:
		return "not open"
	}
	return "user ignored"
}

// EventKind tags the outcome of one non-blocking port poll.
type EventKind int

const (
	// EventNone means no bytes were pending.
	EventNone EventKind = iota
	// EventData carries a partial response chunk.
	EventData
	// EventPrompt carries the final chunk of a response: the adapter has
	// printed its prompt character and is ready for the next command.
	EventPrompt
)

// Event is one non-blocking receive result.
type Event struct {
	Kind EventKind
	Data []byte
}

// Port is the half-duplex serial collaborator the engine talks through.
// All calls must return promptly; Poll never blocks waiting for bytes.
type Port interface {
	// Send transmits command text, fire-and-forget.
	Send(command string)
	// Poll performs one non-blocking receive.
	Poll() Event
	// ArmTimer starts the bounded request timer.
	ArmTimer(d time.Duration)
	// DisarmTimer cancels it.
	DisarmTimer()
	// Expired reports whether an armed timer has run out.
	Expired() bool
	// Status reports the port connection state.
	Status() PortStatus
}

// Condition classifies an alert the engine asks the presentation
// collaborator to surface.
type Condition int

const (
	// CondBusError: the OBD bus is shorted to Vbatt or ground.
	CondBusError Condition = iota
	// CondBusBusy: retries exhausted on a busy bus.
	CondBusBusy
	// CondDataError: retries exhausted on corrupted data.
	CondDataError
	// CondSerialError: retries exhausted on a garbled serial link.
	CondSerialError
)

func (c Condition) String() string {
	switch c {
	case CondBusError:
		return "bus error"
	case CondBusBusy:
		return "bus busy"
	case CondDataError:
		return "data error"
	}
	return "serial link error"
}

// Decision is the user's answer to a prompt, forwarded by the presentation
// collaborator. A collaborator may answer immediately from a stored session
// preference.
type Decision int

const (
	// DecisionAck acknowledges the condition; nothing changes.
	DecisionAck Decision = iota
	// DecisionConfigure asks to open port configuration; the collaborator
	// handles it out of band.
	DecisionConfigure
	// DecisionIgnore suppresses the prompt for the rest of the session.
	DecisionIgnore
)

// Presenter is the presentation collaborator the engine raises alerts
// through. Implementations must not block the tick.
type Presenter interface {
	// Alert surfaces a one-shot condition.
	Alert(c Condition)
	// PromptDeviceNotResponding surfaces the disconnect prompt and returns
	// the user's (possibly stored) decision.
	PromptDeviceNotResponding() Decision
	// PromptPortNotReady surfaces the port-not-ready prompt and returns the
	// user's decision.
	PromptPortNotReady() Decision
}
