// Package dedup provides the duplicate-suppression guards around purchase
// events: a request-scoped processed set and a best-effort client-event
// idempotency guard with two backends. Server-side record state stays
// authoritative; these only narrow the duplicate windows.
package dedup

import "context"

type seenKey struct{}

// Seen is the set of order ids already handled within one request. It
// replaces a process-wide static so state cannot leak across requests in a
// long-lived server.
type Seen map[int64]struct{}

func WithSeen(ctx context.Context) context.Context {
	return context.WithValue(ctx, seenKey{}, Seen{})
}

// MarkSeen records the order id in the request's set and reports whether
// this was the first sighting. Without a set on the context it always
// reports true.
func MarkSeen(ctx context.Context, orderID int64) bool {
	seen, ok := ctx.Value(seenKey{}).(Seen)
	if !ok {
		return true
	}
	if _, dup := seen[orderID]; dup {
		return false
	}
	seen[orderID] = struct{}{}
	return true
}
