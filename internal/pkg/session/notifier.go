// internal/pkg/session/notifier.go
package session

import (
	"context"

	domain "session-service/internal/domain/session"
)

// Notifier receives lifecycle events after they are persisted. Publish is
// called on the request path and must not block.
type Notifier interface {
	Publish(ctx context.Context, evt domain.Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, evt domain.Event)

func (f NotifierFunc) Publish(ctx context.Context, evt domain.Event) {
	f(ctx, evt)
}

// Notifiers fans an event out to every member.
type Notifiers []Notifier

func (ns Notifiers) Publish(ctx context.Context, evt domain.Event) {
	for _, n := range ns {
		if n != nil {
			n.Publish(ctx, evt)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, domain.Event) {}
