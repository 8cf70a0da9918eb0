package glpi

import "fmt"

// GLPI ticket field codes.
const (
	StatusNew    = 1
	StatusSolved = 6

	PriorityMedium = 3
	UrgencyMedium  = 2
	ImpactMedium   = 2

	TypeIncident        = 1
	RequestTypeHelpdesk = 1

	// DefaultCategoryID is the "CPU Overload" ITIL category of the site the
	// handler was first written for.
	DefaultCategoryID = 698
)

// Ticket is the "input" object of POST /Ticket.
type Ticket struct {
	Name           string `json:"name"`
	Content        string `json:"content"`
	Status         int    `json:"status"`
	Priority       int    `json:"priority"`
	Urgency        int    `json:"urgency"`
	Impact         int    `json:"impact"`
	Type           int    `json:"type"`
	RequestTypesID int    `json:"requesttypes_id"`
	CategoryID     int    `json:"itilcategories_id"`
}

// NewIncident returns a new medium-priority incident for a service problem.
// CategoryID is left for the client to fill in.
func NewIncident(host, service, state, output string) Ticket {
	return Ticket{
		Name:           fmt.Sprintf("%s on %s", state, host),
		Content:        fmt.Sprintf("Issue with service '%s' on host '%s'\n\nDetails: %s", service, host, output),
		Status:         StatusNew,
		Priority:       PriorityMedium,
		Urgency:        UrgencyMedium,
		Impact:         ImpactMedium,
		Type:           TypeIncident,
		RequestTypesID: RequestTypeHelpdesk,
	}
}

type ticketUpdate struct {
	ID     int `json:"id"`
	Status int `json:"status"`
}

type inputEnvelope struct {
	Input any `json:"input"`
}
