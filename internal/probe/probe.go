// Package probe checks that the endpoints the notifiers talk to are
// reachable before CheckMK starts calling them.
package probe

import "context"

// CheckResult is the outcome of one probe against one endpoint.
// StatusCode is 0 unless an HTTP response arrived.
type CheckResult struct {
	Name       string
	Success    bool
	Message    string
	StatusCode int
	LatencyMS  float64
}

type Checker interface {
	Check(ctx context.Context, target string) CheckResult
}
