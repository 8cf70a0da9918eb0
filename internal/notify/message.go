package notify

import (
	"fmt"
	"strings"
)

// Style is the fixed presentation for a service state.
type Style struct {
	Color       int
	Emoji       string
	Title       string
	Description string
	Details     string
	Footer      string
}

var stateStyles = map[string]Style{
	"OK": {
		Color:       65280, // green
		Emoji:       "✅",
		Title:       "[AWS] Service Recovery",
		Description: "The Windows server services are recovered.",
		Details:     "Every services are working correctly.",
		Footer:      "System back to normal operation",
	},
	"WARNING": {
		Color:       16776960, // yellow
		Emoji:       "⚠️",
		Title:       "[AWS] Performance Warning",
		Description: "The Windows server services could be slower.",
		Details:     "You could have network failure and file access deprecated.",
		Footer:      "Investigate when possible",
	},
	"CRITICAL": {
		Color:       16711680, // red
		Emoji:       "🚨",
		Title:       "[AWS] Service Outage",
		Description: "The Windows server services are down.",
		Details:     "The network could not work correctly and your file access aren't sure.",
		Footer:      "Immediate action required",
	},
}

// StyleFor returns the style for state. Unrecognised states get a grey
// notice that names the state and carries the check output as details.
func StyleFor(state, output string) Style {
	if s, ok := stateStyles[state]; ok {
		return s
	}
	return Style{
		Color:       3553599, // grey
		Emoji:       "ℹ️",
		Title:       "Service Notification",
		Description: fmt.Sprintf("Service state changed to %s", state),
		Details:     output,
		Footer:      "CheckMK Monitoring",
	}
}

var markdownEscaper = strings.NewReplacer(`_`, `\_`, `*`, `\*`, `~`, `\~`)

// Escape backslash-escapes Discord markdown emphasis characters.
func Escape(text string) string {
	if text == "" {
		return ""
	}
	return markdownEscaper.Replace(text)
}
