package domain

import "os"

// CheckMK passes notification context to scripts through NOTIFY_* variables.
const (
	EnvHost          = "NOTIFY_HOSTNAME"
	EnvService       = "NOTIFY_SERVICEDESC"
	EnvState         = "NOTIFY_SERVICESTATE"
	EnvOutput        = "NOTIFY_SERVICEOUTPUT"
	EnvShortDateTime = "NOTIFY_SHORTDATETIME"
)

// Service states reported by CheckMK. Sites may send other strings too.
const (
	StateOK       = "OK"
	StateWarning  = "WARNING"
	StateCritical = "CRITICAL"
	StateUnknown  = "UNKNOWN"
)

// Event is one service state change as seen by a notification script.
// Fields hold the raw values; missing variables are empty strings.
type Event struct {
	Host          string `json:"host"`
	Service       string `json:"service"`
	State         string `json:"state"`
	Output        string `json:"output"`
	ShortDateTime string `json:"short_datetime,omitempty"`

	// variables present in the environment, even if empty
	set field
}

type field uint8

const (
	hostSet field = 1 << iota
	serviceSet
	stateSet
	outputSet
)

// Defaults replaces empty event fields for display and ticket text.
type Defaults struct {
	Host    string
	Service string
	State   string
	Output  string
}

var (
	ChatDefaults = Defaults{
		Host:    "Unknown Server",
		Service: "Windows Services",
		State:   StateUnknown,
		Output:  "No details available",
	}
	TicketDefaults = Defaults{
		Host:    "Unknown",
		Service: "Service",
		State:   StateUnknown,
		Output:  "No output",
	}
)

func EventFromEnv() Event {
	return EventFromLookup(os.LookupEnv)
}

// EventFromLookup reads an event through lookup, which has the shape of
// os.LookupEnv so tests can pass a map-backed function.
func EventFromLookup(lookup func(string) (string, bool)) Event {
	var set field
	get := func(k string, f field) string {
		v, ok := lookup(k)
		if ok {
			set |= f
		}
		return v
	}
	ev := Event{
		Host:          get(EnvHost, hostSet),
		Service:       get(EnvService, serviceSet),
		State:         get(EnvState, stateSet),
		Output:        get(EnvOutput, outputSet),
		ShortDateTime: get(EnvShortDateTime, 0),
	}
	ev.set = set
	return ev
}

// WithDefaults returns a copy with fields filled from d where the variable
// was never set. A variable set to the empty string stays empty.
func (e Event) WithDefaults(d Defaults) Event {
	out := e
	fill := func(v *string, f field, def string) {
		if *v == "" && e.set&f == 0 {
			*v = def
		}
	}
	fill(&out.Host, hostSet, d.Host)
	fill(&out.Service, serviceSet, d.Service)
	fill(&out.State, stateSet, d.State)
	fill(&out.Output, outputSet, d.Output)
	return out
}

// IsProblem reports whether the state should open a ticket.
func (e Event) IsProblem() bool {
	return e.State == StateWarning || e.State == StateCritical
}

func (e Event) IsRecovery() bool { return e.State == StateOK }
