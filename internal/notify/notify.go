package notify

import "context"

// Alert is what a chat notifier renders. Host and Service are display
// values; notifiers escape them for their own markup.
type Alert struct {
	Host          string
	Service       string
	State         string
	Output        string
	ShortDateTime string
}

type Notifier interface {
	Send(ctx context.Context, a Alert) error
}

// Multi sends to every notifier and returns the first error.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, a Alert) error {
	var firstErr error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, a); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
