package probe

import "context"

type MultiChecker struct {
	Checkers []Checker
}

func NewMultiChecker(checkers ...Checker) *MultiChecker {
	return &MultiChecker{Checkers: checkers}
}

// Run runs every checker against target in order. A failed DNS check
// stops the run since nothing after it can connect.
func (m *MultiChecker) Run(ctx context.Context, target string) []CheckResult {
	results := make([]CheckResult, 0, len(m.Checkers))
	for _, c := range m.Checkers {
		r := c.Check(ctx, target)
		results = append(results, r)
		if _, isDNS := c.(*DNSChecker); isDNS && !r.Success {
			break
		}
	}
	return results
}
