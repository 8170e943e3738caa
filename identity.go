package slotleads

import "context"

// Identity is the opaque caller handle handed over by the identity provider.
type Identity string

// Anonymous is the identity of callers that presented no credentials.
const Anonymous Identity = ""

func (id Identity) IsAnonymous() bool {
	return id == Anonymous
}

type callerKey struct{}

// WithCaller returns a copy of ctx carrying the authenticated caller.
func WithCaller(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// CallerFrom returns the caller stored in ctx, or Anonymous.
func CallerFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(callerKey{}).(Identity)
	return id
}
