package engine

import "context"

type heartbeatKey struct{}

// WithHeartbeat installs fn on the context so pipeline runs report step
// boundaries to it. Long crawls use this to keep their job's updated_at
// fresh while the engine works.
func WithHeartbeat(ctx context.Context, fn func(step string)) context.Context {
	return context.WithValue(ctx, heartbeatKey{}, fn)
}

// Beat reports a completed pipeline step to the heartbeat on ctx, if any.
func Beat(ctx context.Context, step string) {
	if fn, ok := ctx.Value(heartbeatKey{}).(func(string)); ok && fn != nil {
		fn(step)
	}
}
